package model

import "time"

// Activity types. Important tasks are the plain daily schedule; bonus tasks
// award points on completion.
const (
	ActivityTypeImportant = "vigtige_ting"
	ActivityTypeBonus     = "bonus"
)

// Icon and color tags a parent can pick for an activity card.
var (
	ActivityIcons = []string{
		"sun", "utensils", "book", "bus", "home", "shirt", "tooth", "bed",
		"play", "school", "music", "palette", "bike", "ball", "tv",
	}
	ActivityColors = []string{"blue", "orange", "purple", "green", "yellow", "pink", "red"}
)

// Activity is one scheduled task for one child on one date. Activities
// generated from a recurrence request share a SeriesID.
type Activity struct {
	ID              int64     `json:"id"`
	ChildID         int64     `json:"child_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Icon            string    `json:"icon"`
	Color           string    `json:"color"`
	Time            string    `json:"time"`             // HH:MM
	DurationMinutes int       `json:"duration_minutes"` // > 0
	Date            string    `json:"date"`             // YYYY-MM-DD
	Completed       bool      `json:"completed"`
	ActivityType    string    `json:"activity_type"`
	Points          int       `json:"points"` // meaningful for bonus activities only
	SeriesID        string    `json:"series_id,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ValidActivityType(t string) bool {
	return t == ActivityTypeImportant || t == ActivityTypeBonus
}

func ValidIcon(tag string) bool {
	for _, i := range ActivityIcons {
		if i == tag {
			return true
		}
	}
	return false
}

func ValidColor(tag string) bool {
	for _, c := range ActivityColors {
		if c == tag {
			return true
		}
	}
	return false
}
