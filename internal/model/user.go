package model

import "time"

// User is a parent account. Children, activities, and rewards all hang off
// a parent through the child relation.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
