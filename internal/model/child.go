package model

import "time"

// Avatars available for child profiles.
var Avatars = []string{"bear", "cat", "dog", "rabbit", "fox", "lion", "panda", "unicorn"}

type Child struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	PINCode     string    `json:"pin_code"`
	TotalPoints int       `json:"total_points"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidAvatar reports whether tag is one of the known avatar tags.
func ValidAvatar(tag string) bool {
	for _, a := range Avatars {
		if a == tag {
			return true
		}
	}
	return false
}
