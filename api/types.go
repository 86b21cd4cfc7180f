package api

import (
	"github.com/oceanondawave/CigroTrack-sub001/board"
	"github.com/oceanondawave/CigroTrack-sub001/domain"
	"github.com/oceanondawave/CigroTrack-sub001/engine"
)

const requestBodyLimit = 64 * 1024 // 64 KiB

// moveRequest is the move endpoint body. A nil index appends to the tail of
// the target column.
type moveRequest struct {
	ToStatus string `json:"toStatus"`
	Index    *int   `json:"index,omitempty"`
}

// wipLimitRequest doubles as the response echo. A null limit clears the cap,
// so the field marshals even when nil.
type wipLimitRequest struct {
	Limit *int `json:"limit"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type wipBlock struct {
	Count int    `json:"count"`
	Limit *int   `json:"limit,omitempty"`
	State string `json:"state"`
}

type boardColumn struct {
	Status domain.CustomStatus `json:"status"`
	Issues []domain.Issue      `json:"issues"`
	Wip    wipBlock            `json:"wip"`
}

type boardResponse struct {
	ProjectID string         `json:"projectId"`
	Columns   []boardColumn  `json:"columns"`
	Orphans   []domain.Issue `json:"orphans,omitempty"`
	Loading   bool           `json:"loading"`
	SyncError string         `json:"syncError,omitempty"`
	Version   uint64         `json:"version"`
}

// renderBoard projects a view into the wire document. Columns come out in
// registry order and WIP states are classified from the counts visible in
// this render, never from stored values.
func renderBoard(v engine.View) boardResponse {
	columns := make([]boardColumn, 0, len(v.Statuses))
	for _, s := range v.Statuses {
		issues := v.Columns[s.Name]
		if issues == nil {
			issues = []domain.Issue{}
		}
		limit := v.WipLimits[s.Name]
		columns = append(columns, boardColumn{
			Status: s,
			Issues: issues,
			Wip: wipBlock{
				Count: len(issues),
				Limit: limit,
				State: board.ClassifyWip(len(issues), limit).String(),
			},
		})
	}
	return boardResponse{
		ProjectID: v.ProjectID,
		Columns:   columns,
		Orphans:   v.Orphans,
		Loading:   v.Loading,
		SyncError: v.Err,
		Version:   v.Version,
	}
}
