package domain

import "time"

// Occurrence is a single scheduled meeting occurrence owned by a group.
type Occurrence struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
