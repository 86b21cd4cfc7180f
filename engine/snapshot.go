package engine

import (
	"github.com/oceanondawave/CigroTrack-sub001/board"
	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

// snapshot is the rollback unit: a value copy of everything an operation may
// touch. Restoring it is total, so a failed operation cannot leave partial
// state behind no matter which parts it changed before the backend rejected
// it.
type snapshot struct {
	board    board.Board
	statuses []domain.CustomStatus
	wip      map[string]*int
}

// capture must be called with the engine lock held.
func (e *Engine) capture() snapshot {
	return snapshot{
		board:    e.board.Clone(),
		statuses: cloneStatuses(e.statuses),
		wip:      cloneLimits(e.wip),
	}
}

// restoreLocked replaces the live state with the snapshot verbatim.
func (e *Engine) restoreLocked(snap snapshot) {
	e.board = snap.board
	e.statuses = snap.statuses
	e.wip = snap.wip
}

// rollbackWith restores the snapshot and records the failure on the view.
func (e *Engine) rollbackWith(snap snapshot, cause error) {
	e.mu.Lock()
	e.restoreLocked(snap)
	e.syncErr = cause.Error()
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
}

func cloneStatuses(statuses []domain.CustomStatus) []domain.CustomStatus {
	out := make([]domain.CustomStatus, len(statuses))
	copy(out, statuses)
	return out
}

func cloneLimits(limits map[string]*int) map[string]*int {
	out := make(map[string]*int, len(limits))
	for status, limit := range limits {
		if limit == nil {
			out[status] = nil
			continue
		}
		v := *limit
		out[status] = &v
	}
	return out
}
