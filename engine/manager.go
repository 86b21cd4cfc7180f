package engine

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Manager hands out one engine per project, creating it on first use and
// loading its initial state. A failed initial load still returns the engine:
// the view carries the error and the client can retry with a refresh.
type Manager struct {
	backend Backend
	logger  *log.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

func NewManager(backend Backend, logger *log.Logger) *Manager {
	return &Manager{
		backend: backend,
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// Project returns the engine for projectID, creating and loading it on first
// use.
func (m *Manager) Project(ctx context.Context, projectID string) *Engine {
	m.mu.Lock()
	eng, ok := m.engines[projectID]
	if !ok {
		eng = New(projectID, m.backend, m.logger)
		m.engines[projectID] = eng
	}
	m.mu.Unlock()

	if !ok {
		if err := eng.Refresh(ctx); err != nil {
			m.logger.WithFields(log.Fields{
				"projectId": projectID,
				"error":     err.Error(),
			}).Error("initial board load failed")
		}
	}
	return eng
}
