package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/board"
	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

// Backend is the slice of the core API the engine synchronizes against.
// remote.Client implements it; tests use function-field fakes.
type Backend interface {
	FetchBoard(ctx context.Context, projectID string) (map[string][]domain.Issue, error)
	FetchStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error)
	FetchWipLimits(ctx context.Context, projectID string) (map[string]*int, error)

	UpdateIssue(ctx context.Context, issueID string, patch domain.IssuePatch) (domain.Issue, error)
	CreateStatus(ctx context.Context, projectID string, draft domain.StatusDraft) (domain.CustomStatus, error)
	UpdateStatus(ctx context.Context, statusID string, patch domain.StatusPatch) (domain.CustomStatus, error)
	DeleteStatus(ctx context.Context, statusID string) error
	PutWipLimit(ctx context.Context, projectID, status string, limit *int) (*int, error)
}

// Engine owns the synchronized board state for one project. Every mutation
// is applied locally first, then confirmed or rolled back when the backend
// answers. The lock is not held while a call is in flight, so overlapping
// operations interleave: each confirmation or rollback lands on whatever
// state exists when its response arrives. The lock only guarantees that each
// local transaction is atomic and that View never observes a torn write.
type Engine struct {
	projectID string
	backend   Backend
	logger    *log.Logger
	broker    *broker

	mu       sync.Mutex
	board    board.Board
	statuses []domain.CustomStatus
	wip      map[string]*int
	loading  bool
	syncErr  string
	version  uint64
}

// New returns an engine with an empty board. Call Refresh to load it.
func New(projectID string, backend Backend, logger *log.Logger) *Engine {
	return &Engine{
		projectID: projectID,
		backend:   backend,
		logger:    logger,
		broker:    newBroker(),
		board:     board.Board{Columns: map[string][]domain.Issue{}},
		wip:       map[string]*int{},
	}
}

// View is a deep copy of the engine state, safe to read and serialize
// without holding the engine lock.
type View struct {
	ProjectID string
	Statuses  []domain.CustomStatus
	Columns   map[string][]domain.Issue
	Orphans   []domain.Issue
	WipLimits map[string]*int
	Loading   bool
	Err       string
	Version   uint64
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.board.Clone()
	return View{
		ProjectID: e.projectID,
		Statuses:  cloneStatuses(e.statuses),
		Columns:   b.Columns,
		Orphans:   b.Orphans,
		WipLimits: cloneLimits(e.wip),
		Loading:   e.loading,
		Err:       e.syncErr,
		Version:   e.version,
	}
}

// Subscribe returns a channel that receives a wakeup whenever the view
// changes. Pair with Unsubscribe.
func (e *Engine) Subscribe() chan struct{} { return e.broker.subscribe() }

func (e *Engine) Unsubscribe(ch chan struct{}) { e.broker.unsubscribe(ch) }

// MoveIssue drops an issue onto toStatus at the given visual index (nil
// appends). The move is applied locally first; a backend failure rolls it
// back and triggers a full refresh since local ranks may have diverged from
// persisted truth.
func (e *Engine) MoveIssue(ctx context.Context, issueID, toStatus string, targetIndex *int) (domain.Issue, error) {
	m, ctx := newOpMetrics(ctx, e.logger, "move_issue", e.projectID)

	e.mu.Lock()
	planStart := time.Now()
	delta, ok, err := board.PlanMove(e.board, issueID, toStatus, targetIndex)
	m.ObservePlan(time.Since(planStart))
	if err != nil {
		e.mu.Unlock()
		m.SetErrorStage(stagePlan)
		m.Log(err)
		return domain.Issue{}, err
	}
	if !ok {
		issue, _ := e.board.Find(issueID)
		e.mu.Unlock()
		m.SetNoop()
		m.Log(nil)
		return issue, nil
	}

	snap := e.capture()
	applyStart := time.Now()
	e.applyMoveLocked(delta)
	m.ObserveApply(time.Since(applyStart))
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	confirmed, err := e.backend.UpdateIssue(ctx, delta.IssueID, domain.IssuePatch{
		Status: &delta.ToStatus,
		Order:  &delta.Order,
	})
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.rollbackWith(snap, err)
		m.SetRolledBack()
		m.SetRefreshTriggered()
		m.SetErrorStage(stageRemote)
		if rerr := e.Refresh(ctx); rerr != nil {
			e.logger.WithFields(log.Fields{
				"projectId": e.projectID,
				"error":     rerr.Error(),
			}).Error("refresh after failed move")
		}
		m.Log(err)
		return domain.Issue{}, err
	}

	confirmStart := time.Now()
	e.mu.Lock()
	e.adoptIssueLocked(confirmed)
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.ObserveConfirm(time.Since(confirmStart))
	m.Log(nil)
	return confirmed, nil
}

// CreateStatus registers a new workflow status. The column appears on the
// board immediately under a temporary id; the server's identity is adopted
// on confirmation.
func (e *Engine) CreateStatus(ctx context.Context, name, color string, position *int) (domain.CustomStatus, error) {
	m, ctx := newOpMetrics(ctx, e.logger, "create_status", e.projectID)

	e.mu.Lock()
	if err := e.validateNewStatusLocked(name); err != nil {
		e.mu.Unlock()
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return domain.CustomStatus{}, err
	}

	snap := e.capture()
	tmp := domain.CustomStatus{
		ID:        "tmp-" + uuid.NewString(),
		ProjectID: e.projectID,
		Name:      name,
		Color:     color,
		Position:  e.nextPositionLocked(position),
		CreatedAt: time.Now().UTC(),
	}
	applyStart := time.Now()
	e.statuses = append(e.statuses, tmp)
	e.sortStatusesLocked()
	e.board.AddColumn(tmp.Name)
	m.ObserveApply(time.Since(applyStart))
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	confirmed, err := e.backend.CreateStatus(ctx, e.projectID, domain.StatusDraft{
		Name:     name,
		Color:    color,
		Position: position,
	})
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.rollbackWith(snap, err)
		m.SetRolledBack()
		m.SetErrorStage(stageRemote)
		m.Log(err)
		return domain.CustomStatus{}, err
	}

	confirmStart := time.Now()
	e.mu.Lock()
	e.adoptStatusLocked(tmp.ID, confirmed)
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.ObserveConfirm(time.Since(confirmStart))
	m.Log(nil)
	return confirmed, nil
}

// UpdateStatus renames, recolors or repositions a status. A rename cascades
// into every issue carrying the old label, the bucket key and the WIP limit
// key in one local transaction; no observer sees the half-applied state.
func (e *Engine) UpdateStatus(ctx context.Context, statusID string, patch domain.StatusPatch) (domain.CustomStatus, error) {
	m, ctx := newOpMetrics(ctx, e.logger, "update_status", e.projectID)

	e.mu.Lock()
	idx := e.statusIndexLocked(statusID)
	if idx < 0 {
		e.mu.Unlock()
		err := domain.NotFoundf("status %s not in the registry", statusID)
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return domain.CustomStatus{}, err
	}
	if patch.Name != nil && *patch.Name != e.statuses[idx].Name {
		if err := e.validateRenameLocked(statusID, *patch.Name); err != nil {
			e.mu.Unlock()
			m.SetErrorStage(stageValidate)
			m.Log(err)
			return domain.CustomStatus{}, err
		}
	}

	snap := e.capture()
	applyStart := time.Now()
	e.applyStatusPatchLocked(idx, patch)
	m.ObserveApply(time.Since(applyStart))
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	confirmed, err := e.backend.UpdateStatus(ctx, statusID, patch)
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.rollbackWith(snap, err)
		m.SetRolledBack()
		m.SetErrorStage(stageRemote)
		m.Log(err)
		return domain.CustomStatus{}, err
	}

	confirmStart := time.Now()
	e.mu.Lock()
	e.adoptStatusLocked(statusID, confirmed)
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.ObserveConfirm(time.Since(confirmStart))
	m.Log(nil)
	return confirmed, nil
}

// DeleteStatus removes a status from the registry. A status whose column
// still holds issues is rejected before anything is sent or changed.
func (e *Engine) DeleteStatus(ctx context.Context, statusID string) error {
	m, ctx := newOpMetrics(ctx, e.logger, "delete_status", e.projectID)

	e.mu.Lock()
	idx := e.statusIndexLocked(statusID)
	if idx < 0 {
		e.mu.Unlock()
		err := domain.NotFoundf("status %s not in the registry", statusID)
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return err
	}
	name := e.statuses[idx].Name
	if n := len(e.board.Columns[name]); n > 0 {
		e.mu.Unlock()
		err := domain.Conflictf("status %q still has %d issues", name, n)
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return err
	}

	snap := e.capture()
	applyStart := time.Now()
	e.statuses = append(e.statuses[:idx], e.statuses[idx+1:]...)
	e.board.DropColumn(name)
	delete(e.wip, name)
	m.ObserveApply(time.Since(applyStart))
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	err := e.backend.DeleteStatus(ctx, statusID)
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.rollbackWith(snap, err)
		m.SetRolledBack()
		m.SetErrorStage(stageRemote)
		m.Log(err)
		return err
	}

	e.mu.Lock()
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.Log(nil)
	return nil
}

// SetWipLimit sets or clears (nil) the issue-count limit for a status name.
func (e *Engine) SetWipLimit(ctx context.Context, status string, limit *int) (*int, error) {
	m, ctx := newOpMetrics(ctx, e.logger, "set_wip_limit", e.projectID)

	e.mu.Lock()
	if err := domain.ValidateWipLimit(limit); err != nil {
		e.mu.Unlock()
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return nil, err
	}
	if e.statusIndexByNameLocked(status) < 0 {
		e.mu.Unlock()
		err := domain.Validationf("unknown status %q", status)
		m.SetErrorStage(stageValidate)
		m.Log(err)
		return nil, err
	}

	snap := e.capture()
	applyStart := time.Now()
	e.setLimitLocked(status, limit)
	m.ObserveApply(time.Since(applyStart))
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	confirmed, err := e.backend.PutWipLimit(ctx, e.projectID, status, limit)
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.rollbackWith(snap, err)
		m.SetRolledBack()
		m.SetErrorStage(stageRemote)
		m.Log(err)
		return nil, err
	}

	confirmStart := time.Now()
	e.mu.Lock()
	e.setLimitLocked(status, confirmed)
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.ObserveConfirm(time.Since(confirmStart))
	m.Log(nil)
	return confirmed, nil
}

// Refresh replaces the whole local state with the backend's truth. On fetch
// failure the previous state stays in place and the error is surfaced on the
// view.
func (e *Engine) Refresh(ctx context.Context) error {
	m, ctx := newOpMetrics(ctx, e.logger, "refresh", e.projectID)

	e.mu.Lock()
	e.loading = true
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()

	remoteStart := time.Now()
	statuses, err := e.backend.FetchStatuses(ctx, e.projectID)
	var grouped map[string][]domain.Issue
	if err == nil {
		grouped, err = e.backend.FetchBoard(ctx, e.projectID)
	}
	var limits map[string]*int
	if err == nil {
		limits, err = e.backend.FetchWipLimits(ctx, e.projectID)
	}
	m.ObserveRemote(time.Since(remoteStart))
	if err != nil {
		e.mu.Lock()
		e.loading = false
		e.syncErr = err.Error()
		e.commitLocked()
		e.mu.Unlock()
		e.broker.notify()
		m.SetErrorStage(stageRemote)
		m.Log(err)
		return err
	}

	applyStart := time.Now()
	b := board.Project(flattenBoard(grouped), statuses)
	e.mu.Lock()
	e.board = b
	e.statuses = board.OrderedStatuses(statuses)
	e.wip = cloneLimits(limits)
	e.loading = false
	e.syncErr = ""
	e.commitLocked()
	e.mu.Unlock()
	e.broker.notify()
	m.ObserveApply(time.Since(applyStart))

	if n := len(b.Orphans); n > 0 {
		e.logger.WithFields(log.Fields{
			"projectId": e.projectID,
			"orphans":   n,
		}).Warn("issues reference unknown statuses")
	}
	m.Log(nil)
	return nil
}

// commitLocked finalizes a local transaction under the lock.
func (e *Engine) commitLocked() {
	e.version++
}

func (e *Engine) applyMoveLocked(delta board.MoveDelta) {
	issue, ok := e.board.Remove(delta.IssueID)
	if !ok {
		return
	}
	issue.Status = delta.ToStatus
	issue.Order = delta.Order
	e.board.Insert(issue)
}

// adoptIssueLocked replaces the local copy of an issue with the server's
// authoritative version, re-placing it if the server adjusted anything. An
// issue a concurrent refresh already removed stays removed.
func (e *Engine) adoptIssueLocked(confirmed domain.Issue) {
	if _, ok := e.board.Remove(confirmed.ID); !ok {
		return
	}
	e.board.Insert(confirmed)
}

// adoptStatusLocked swaps a registry entry for the server's version. A
// changed name re-keys the bucket exactly like a rename.
func (e *Engine) adoptStatusLocked(statusID string, confirmed domain.CustomStatus) {
	idx := e.statusIndexLocked(statusID)
	if idx < 0 {
		return
	}
	prev := e.statuses[idx]
	e.statuses[idx] = confirmed
	if prev.Name != confirmed.Name {
		e.board.Rekey(prev.Name, confirmed.Name)
		if limit, ok := e.wip[prev.Name]; ok {
			delete(e.wip, prev.Name)
			e.wip[confirmed.Name] = limit
		}
	}
	e.sortStatusesLocked()
}

// applyStatusPatchLocked performs the local status update as one
// transaction: registry fields, the rename cascade over bucket and WIP key,
// and registry re-sorting all land before the lock is released.
func (e *Engine) applyStatusPatchLocked(idx int, patch domain.StatusPatch) {
	s := e.statuses[idx]
	if patch.Name != nil && *patch.Name != s.Name {
		oldName := s.Name
		s.Name = *patch.Name
		e.board.Rekey(oldName, s.Name)
		if limit, ok := e.wip[oldName]; ok {
			delete(e.wip, oldName)
			e.wip[s.Name] = limit
		}
	}
	if patch.Color != nil {
		s.Color = *patch.Color
	}
	if patch.Position != nil {
		s.Position = *patch.Position
	}
	e.statuses[idx] = s
	e.sortStatusesLocked()
}

func (e *Engine) validateNewStatusLocked(name string) error {
	if err := domain.ValidateStatusName(name); err != nil {
		return err
	}
	for _, s := range e.statuses {
		if s.Name == name {
			return domain.Validationf("status %q already exists", name)
		}
	}
	if len(e.statuses) >= domain.MaxCustomStatuses {
		return domain.Validationf("project already has the maximum of %d statuses", domain.MaxCustomStatuses)
	}
	return nil
}

func (e *Engine) validateRenameLocked(selfID, newName string) error {
	if err := domain.ValidateStatusName(newName); err != nil {
		return err
	}
	for _, s := range e.statuses {
		if s.ID != selfID && s.Name == newName {
			return domain.Validationf("status %q already exists", newName)
		}
	}
	return nil
}

func (e *Engine) statusIndexLocked(statusID string) int {
	for i, s := range e.statuses {
		if s.ID == statusID {
			return i
		}
	}
	return -1
}

func (e *Engine) statusIndexByNameLocked(name string) int {
	for i, s := range e.statuses {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (e *Engine) sortStatusesLocked() {
	e.statuses = board.OrderedStatuses(e.statuses)
}

func (e *Engine) nextPositionLocked(position *int) int {
	if position != nil {
		return *position
	}
	next := 0
	for _, s := range e.statuses {
		if s.Position >= next {
			next = s.Position + 1
		}
	}
	return next
}

func (e *Engine) setLimitLocked(status string, limit *int) {
	if limit == nil {
		delete(e.wip, status)
		return
	}
	v := *limit
	e.wip[status] = &v
}

// flattenBoard folds the backend's grouped payload into a flat issue list;
// projection re-groups it locally so the grouping rules live in one place.
func flattenBoard(grouped map[string][]domain.Issue) []domain.Issue {
	var issues []domain.Issue
	for _, bucket := range grouped {
		issues = append(issues, bucket...)
	}
	return issues
}
