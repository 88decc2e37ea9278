// Package store provides in-process aia.Store implementations.
package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps applications in a map. Snapshots are cloned on the way in and
// on the way out, so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	apps    map[aia.ApplicationID]*aia.Application
	numbers map[numberKey]aia.ApplicationID
}

type numberKey struct {
	ProjectID string
	Number    int
}

var _ aia.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		apps:    make(map[aia.ApplicationID]*aia.Application),
		numbers: make(map[numberKey]aia.ApplicationID),
	}
}

// Create stores app at version 1.
func (m *Memory) Create(_ context.Context, app *aia.Application) (aia.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apps[app.ID]; ok {
		return 0, aia.ErrDuplicateApplication
	}
	k := numberKey{ProjectID: app.ProjectID, Number: app.Summary.ApplicationNumber}
	if _, ok := m.numbers[k]; ok {
		return 0, aia.ErrDuplicateApplication
	}

	stored := app.Clone()
	stored.Version = 1
	m.apps[app.ID] = stored
	m.numbers[k] = app.ID
	return stored.Version, nil
}

func (m *Memory) Load(_ context.Context, id aia.ApplicationID) (*aia.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.apps[id]
	if !ok {
		return nil, aia.ErrApplicationNotFound
	}
	return app.Clone(), nil
}

// Commit replaces the stored snapshot when expected matches the stored version.
func (m *Memory) Commit(_ context.Context, app *aia.Application, expected aia.Version) (aia.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.apps[app.ID]
	if !ok {
		return 0, aia.ErrApplicationNotFound
	}
	if current.Version != expected {
		return 0, &aia.StaleWriteError{ID: app.ID, Expected: expected, Actual: current.Version}
	}

	stored := app.Clone()
	stored.Version = current.Version + 1
	m.apps[app.ID] = stored
	return stored.Version, nil
}

func (m *Memory) List(_ context.Context, filter aia.ListFilter) ([]*aia.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*aia.Application
	for _, app := range m.apps {
		if filter.Matches(app) {
			result = append(result, app.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *aia.Application) int {
		return cmp.Or(
			cmp.Compare(a.ProjectID, b.ProjectID),
			cmp.Compare(a.Summary.ApplicationNumber, b.Summary.ApplicationNumber),
		)
	})
	return result, nil
}

func (m *Memory) NextApplicationNumber(_ context.Context, projectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	next := 1
	for k := range m.numbers {
		if k.ProjectID == projectID && k.Number >= next {
			next = k.Number + 1
		}
	}
	return next, nil
}

// Reset drops every application.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.apps)
	clear(m.numbers)
	return nil
}
