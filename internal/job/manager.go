package job

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nguyentantai21042004/transflow/internal/domain"
	"github.com/nguyentantai21042004/transflow/internal/logger"
)

// Manager tracks live jobs for status polling and cancellation, and records
// finished jobs in a Store.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	store   Store
	logger  logger.Logger
}

// NewManager creates a Manager. A nil store records nothing.
func NewManager(store Store, log logger.Logger) *Manager {
	if store == nil {
		store = NopStore{}
	}
	return &Manager{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		store:   store,
		logger:  log,
	}
}

// Create registers a new job and returns it with a cancellable context that
// carries the job id for logging.
func (m *Manager) Create(ctx context.Context, kind domain.Kind, source string, failClosed bool) (*Job, context.Context) {
	j := New(uuid.New().String(), kind, source, failClosed)
	jobCtx, cancel := context.WithCancel(logger.WithJob(ctx, j.ID))

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.cancels[j.ID] = cancel
	m.mu.Unlock()

	m.logger.Debug(jobCtx, "Job created: kind=%s source=%s", kind, source)
	return j, jobCtx
}

// Get returns a registered job.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// Status returns the snapshot of a registered job.
func (m *Manager) Status(id string) (Snapshot, error) {
	j, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.Snapshot(), nil
}

// List returns snapshots of all registered jobs, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Cancel cancels the context of a running job. The dispatcher observes it,
// stops claiming units and abandons the rest.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	cancel := m.cancels[id]
	m.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if j.Status().Terminal() || cancel == nil {
		return ErrAlreadyFinished
	}
	cancel()
	return nil
}

// Finish records the outcome, releases the job context and saves the final
// snapshot in the store.
func (m *Manager) Finish(ctx context.Context, j *Job, output string, jobErr error) Snapshot {
	cancelled := ctx.Err() != nil && jobErr != nil
	if err := j.Finish(output, jobErr, cancelled); err != nil {
		m.logger.Warn(ctx, "Finish called twice: %v", err)
	}

	m.mu.Lock()
	if cancel, ok := m.cancels[j.ID]; ok {
		cancel()
		delete(m.cancels, j.ID)
	}
	m.mu.Unlock()

	snap := j.Snapshot()
	// The job context is cancelled by now; the store write must not inherit that.
	if err := m.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		m.logger.Warn(ctx, "Failed to record job history: %v", err)
	}
	return snap
}

// Forget drops a finished job from the registry.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	delete(m.jobs, id)
}

// History returns recorded outcomes from the store.
func (m *Manager) History(ctx context.Context, limit int) ([]Snapshot, error) {
	return m.store.List(ctx, limit)
}
