package model

import "time"

// Reward is a redeemable prize scoped to one child. An active unclaimed
// reward can be claimed by the child; the parent later marks it given by
// deactivating it. Deactivation ends visibility regardless of claim state.
type Reward struct {
	ID             int64     `json:"id"`
	ChildID        int64     `json:"child_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Icon           string    `json:"icon"`
	PointsRequired int       `json:"points_required"`
	IsActive       bool      `json:"is_active"`
	Claimed        bool      `json:"claimed"`
	AudioURL       string    `json:"audio_url,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
