package runs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/logging"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrInvalidRunID   = errors.New("invalid run ID")
	ErrRunNotRunnable = errors.New("run already finished")
	ErrRunActive      = errors.New("run is still in progress")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusCanceled Status = "canceled"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusComplete || s == StatusCanceled
}

// Run is one submitted batch. RowErrors are the submitted rows that could
// not be read; they are counted in Failed but not in Total.
type Run struct {
	ID          string           `json:"id"`
	Status      Status           `json:"status"`
	Total       int              `json:"total"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Results     []batch.Result   `json:"results,omitempty"`
	RowErrors   []batch.RowError `json:"row_errors,omitempty"`
}

// clone returns a copy that shares nothing mutable with r.
func (r *Run) clone() Run {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Results != nil {
		c.Results = make([]batch.Result, len(r.Results))
		copy(c.Results, r.Results)
	}
	if r.RowErrors != nil {
		c.RowErrors = make([]batch.RowError, len(r.RowErrors))
		copy(c.RowErrors, r.RowErrors)
	}
	return c
}

// Manager handles run lifecycle
type Manager struct {
	runs        map[string]*Run
	persistence Persistence
	logger      *zap.Logger
	now         func() time.Time
	mu          sync.RWMutex
}

// NewManager creates an in-memory run manager
func NewManager(logger *zap.Logger) *Manager {
	return NewManagerWithPersistence(nil, logger)
}

// NewManagerWithPersistence creates a run manager that writes every change
// through to persistence
func NewManagerWithPersistence(persistence Persistence, logger *zap.Logger) *Manager {
	return &Manager{
		runs:        make(map[string]*Run),
		persistence: persistence,
		logger:      logging.OrNop(logger),
		now:         time.Now,
	}
}

// Create registers a pending run for total parts. rowErrs records the
// rows that were rejected before the run was submitted.
func (m *Manager) Create(total int, rowErrs ...batch.RowError) Run {
	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Total:     total,
		CreatedAt: m.now(),
		RowErrors: rowErrs,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.persist(run)
	return run.clone()
}

// Start moves a pending run to running
func (m *Manager) Start(id string) error {
	return m.update(id, func(run *Run) error {
		if run.Status.Finished() {
			return ErrRunNotRunnable
		}
		run.Status = StatusRunning
		return nil
	})
}

// Complete records the results of a run. A non-nil runErr marks the run
// canceled and keeps whatever results were produced.
func (m *Manager) Complete(id string, results []batch.Result, runErr error) error {
	return m.update(id, func(run *Run) error {
		if run.Status.Finished() {
			return ErrRunNotRunnable
		}
		now := m.now()
		run.CompletedAt = &now
		run.Results = results
		run.Succeeded, run.Failed = 0, len(run.RowErrors)
		for _, r := range results {
			if r.OK() {
				run.Succeeded++
			} else {
				run.Failed++
			}
		}
		if runErr != nil {
			run.Status = StatusCanceled
			run.Error = runErr.Error()
		} else {
			run.Status = StatusComplete
		}
		return nil
	})
}

// Get retrieves a run by ID, falling back to persistence
func (m *Manager) Get(id string) (Run, error) {
	id, err := parseID(id)
	if err != nil {
		return Run{}, err
	}

	m.mu.RLock()
	run, exists := m.runs[id]
	if exists {
		defer m.mu.RUnlock()
		return run.clone(), nil
	}
	m.mu.RUnlock()

	if m.persistence != nil && m.persistence.Exists(id) {
		loaded, err := m.persistence.Load(id)
		if err != nil {
			return Run{}, fmt.Errorf("failed to load persisted run: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.runs[id]; ok {
			return existing.clone(), nil
		}
		m.runs[id] = &loaded
		return loaded.clone(), nil
	}

	return Run{}, ErrRunNotFound
}

// List returns all known runs, newest first. Results are omitted.
func (m *Manager) List() []Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		summary := *run
		summary.Results = nil
		if run.CompletedAt != nil {
			t := *run.CompletedAt
			summary.CompletedAt = &t
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete removes a finished run from memory and persistence. Pending and
// running runs are refused with ErrRunActive.
func (m *Manager) Delete(id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	run, inMemory := m.runs[id]
	if inMemory && !run.Status.Finished() {
		return ErrRunActive
	}
	delete(m.runs, id)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted run: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrRunNotFound
	}
	return nil
}

// CleanupExpired removes finished runs created more than maxAge ago and
// returns how many were removed. Pending and running runs are kept.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0

	for id, run := range m.runs {
		if !run.Status.Finished() || !run.CreatedAt.Before(cutoff) {
			continue
		}
		delete(m.runs, id)
		if m.persistence != nil && m.persistence.Exists(id) {
			if err := m.persistence.Delete(id); err != nil {
				m.logger.Warn("failed to delete expired run", zap.String("run_id", id), zap.Error(err))
			}
		}
		removed++
	}

	return removed
}

// LoadPersisted loads all persisted runs into memory. Runs that were still
// pending or running when they were saved are marked canceled.
func (m *Manager) LoadPersisted() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted runs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.runs[id]; exists {
			continue
		}

		run, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn("failed to load persisted run", zap.String("run_id", id), zap.Error(err))
			continue
		}
		if !run.Status.Finished() {
			now := m.now()
			run.Status = StatusCanceled
			run.CompletedAt = &now
			run.Error = "interrupted by restart"
			m.persist(&run)
		}

		m.runs[id] = &run
		loaded++
	}

	if loaded > 0 {
		m.logger.Info("loaded persisted runs", zap.Int("count", loaded))
	}
	return nil
}

func (m *Manager) update(id string, fn func(run *Run) error) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[id]
	if !exists {
		return ErrRunNotFound
	}
	if err := fn(run); err != nil {
		return err
	}
	m.persist(run)
	return nil
}

// persist writes run through to storage. Callers hold m.mu.
func (m *Manager) persist(run *Run) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(run.clone()); err != nil {
		m.logger.Warn("failed to persist run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// parseID returns the canonical form of a run ID.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return u.String(), nil
}

func validateID(id string) error {
	_, err := parseID(id)
	return err
}
