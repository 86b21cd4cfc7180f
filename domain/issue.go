package domain

// Issue is a single board card. Status holds the status NAME, not its id:
// the board groups issues by this label, and renaming a status relabels
// every matching issue.
type Issue struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"projectId"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Order     float64 `json:"order"`
}

// IssuePatch is a partial issue update sent to the core API. Nil fields are
// left untouched by the server.
type IssuePatch struct {
	Status *string  `json:"status,omitempty"`
	Order  *float64 `json:"order,omitempty"`
}
