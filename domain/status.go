package domain

import "time"

// CustomStatus is a user-defined workflow status. Name is the join key used
// by Issue.Status and by the WIP limit map and is unique within a project.
type CustomStatus struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusDraft carries the fields a client supplies when creating a status.
type StatusDraft struct {
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// StatusPatch is a partial status update. A non-nil Name triggers the rename
// cascade on the board.
type StatusPatch struct {
	Name     *string `json:"name,omitempty"`
	Color    *string `json:"color,omitempty"`
	Position *int    `json:"position,omitempty"`
}
