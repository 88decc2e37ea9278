/*
store.go - Persistence gateway for payment applications

PURPOSE:
  Defines the interface between the engine and durable storage. A Store
  loads and commits one application snapshot (summary + ledger + history)
  at a time, keyed by application id.

OPTIMISTIC CONCURRENCY:
  Every stored application carries a Version. Commit succeeds only when the
  expected version equals the stored one, and returns the next version.
  Otherwise it returns *StaleWriteError and writes nothing; the caller must
  reload and re-run the whole mutation against the fresh snapshot.

ATOMIC COMMITS:
  Commit replaces the summary and the entire ledger and appends any new
  status history entries in one transaction. Readers never see a summary
  from one version with a ledger from another.

IMPLEMENTATIONS:
  - aia/store/memory.go: in-memory, for tests and dev
  - store/sqldb: SQLite and PostgreSQL

SEE ALSO:
  - service.go: load → mutate → commit
*/
package aia

import "context"

//go:generate mockgen -source=store.go -destination=store_mock.go -package=aia

// Store persists payment applications.
type Store interface {
	// Create stores a new application at version 1 and returns that version.
	// Fails with ErrDuplicateApplication if (project, number) is taken.
	Create(ctx context.Context, app *Application) (Version, error)

	// Load returns the application with its current version.
	// Fails with ErrApplicationNotFound.
	Load(ctx context.Context, id ApplicationID) (*Application, error)

	// Commit atomically replaces the stored snapshot if its version equals
	// expected, returning the new version. Fails with *StaleWriteError.
	Commit(ctx context.Context, app *Application, expected Version) (Version, error)

	// List returns applications matching filter ordered by project then number.
	List(ctx context.Context, filter ListFilter) ([]*Application, error)

	// NextApplicationNumber returns the next sequential number for a project.
	NextApplicationNumber(ctx context.Context, projectID string) (int, error)
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	ProjectID string
	Status    Status
}

// Matches reports whether app passes the filter.
func (f ListFilter) Matches(app *Application) bool {
	if f.ProjectID != "" && app.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && app.Summary.Status != f.Status {
		return false
	}
	return true
}
