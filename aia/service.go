/*
service.go - Application service: load, mutate, commit

PURPOSE:
  Orchestrates every operation against a Store. Mutations follow one path:

    1. Load the application (with its version)
    2. Check the caller's expected version, if any
    3. Run the aggregate method on a clone (guard → recompute → verify)
    4. Commit with the loaded version as the precondition
    5. Log and report the outcome to the Observer

  A rejected mutation is never committed, so the stored snapshot is exactly
  what it was before the call.

CONCURRENCY:
  Two writers that load the same version race at Commit; the loser gets a
  *StaleWriteError and must reload. The service does not retry on its own:
  a retry re-applies the caller's intent to figures the caller has not seen.

LOGGING:
  - reconciliation mismatch: error (should never happen)
  - stale write: warn
  - commit: debug

SEE ALSO:
  - application.go: the aggregate methods
  - store.go: the persistence gateway
*/
package aia

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Observer receives the outcome of every mutation. metrics.Recorder
// implements it.
type Observer interface {
	MutationCommitted(op string)
	MutationRejected(op string, kind ErrorKind)
}

type nopObserver struct{}

func (nopObserver) MutationCommitted(string)            {}
func (nopObserver) MutationRejected(string, ErrorKind) {}

// Service runs payment application operations against a Store.
type Service struct {
	store    Store
	log      zerolog.Logger
	observer Observer
	now      func() time.Time
	newID    func() ApplicationID
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithObserver sets the mutation observer.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the random UUID id generator.
func WithIDGenerator(gen func() ApplicationID) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a service over store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		log:      zerolog.Nop(),
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() ApplicationID { return ApplicationID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// QUERIES
// =============================================================================

// Get loads one application.
func (s *Service) Get(ctx context.Context, id ApplicationID) (*Application, error) {
	return s.store.Load(ctx, id)
}

// List returns applications matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Application, error) {
	return s.store.List(ctx, filter)
}

// Verify loads an application and checks its summary against its ledger.
func (s *Service) Verify(ctx context.Context, id ApplicationID) error {
	app, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := app.Verify(); err != nil {
		s.log.Error().Err(err).Str("application_id", string(id)).Msg("stored application failed verification")
		return err
	}
	return nil
}

// =============================================================================
// CREATION
// =============================================================================

// CreateApplication creates a draft application with the next number in its project.
func (s *Service) CreateApplication(ctx context.Context, in CreateApplicationInput) (*Application, error) {
	const op = "create_application"

	if in.ProjectID == "" {
		err := fmt.Errorf("%w: project id is required", ErrInvalidApplication)
		s.rejected(op, "", err)
		return nil, err
	}

	number, err := s.store.NextApplicationNumber(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("next application number: %w", err)
	}

	app, err := NewApplication(s.newID(), number, in, s.now())
	if err != nil {
		s.rejected(op, "", err)
		return nil, err
	}

	version, err := s.store.Create(ctx, app)
	if err != nil {
		s.rejected(op, app.ID, err)
		return nil, err
	}
	app.Version = version

	s.committed(op, app)
	return app, nil
}

// RollForward creates the next period's draft from a finalized application.
func (s *Service) RollForward(ctx context.Context, id ApplicationID, periodTo time.Time) (*Application, error) {
	const op = "roll_forward"

	prev, err := s.store.Load(ctx, id)
	if err != nil {
		s.rejected(op, id, err)
		return nil, err
	}
	in, err := prev.NextPeriodInput(periodTo)
	if err != nil {
		s.rejected(op, id, err)
		return nil, err
	}

	next, err := s.CreateApplication(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("from_application_id", string(prev.ID)).
		Str("application_id", string(next.ID)).
		Int("application_number", next.Summary.ApplicationNumber).
		Msg("rolled forward")
	return next, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddLineItem adds a line item. expected may be AnyVersion.
func (s *Service) AddLineItem(ctx context.Context, id ApplicationID, expected Version, item LineItem) (*Application, error) {
	return s.mutate(ctx, "add_line_item", id, expected, func(app *Application) error {
		return app.AddLineItem(item)
	})
}

// UpdateLineItem patches a line item's inputs.
func (s *Service) UpdateLineItem(ctx context.Context, id ApplicationID, expected Version, itemNumber string, patch LineItemPatch) (*Application, error) {
	return s.mutate(ctx, "update_line_item", id, expected, func(app *Application) error {
		return app.UpdateLineItem(itemNumber, patch)
	})
}

// RemoveLineItem removes a line item.
func (s *Service) RemoveLineItem(ctx context.Context, id ApplicationID, expected Version, itemNumber string) (*Application, error) {
	return s.mutate(ctx, "remove_line_item", id, expected, func(app *Application) error {
		return app.RemoveLineItem(itemNumber)
	})
}

// UpdateSummary edits summary inputs.
func (s *Service) UpdateSummary(ctx context.Context, id ApplicationID, expected Version, patch SummaryPatch) (*Application, error) {
	return s.mutate(ctx, "update_summary", id, expected, func(app *Application) error {
		return app.UpdateSummary(patch)
	})
}

// TransitionStatus moves the application along its lifecycle.
func (s *Service) TransitionStatus(ctx context.Context, id ApplicationID, expected Version, to Status, actor, note string) (*Application, error) {
	return s.mutate(ctx, "transition_status", id, expected, func(app *Application) error {
		return app.Transition(to, actor, note, s.now())
	})
}

func (s *Service) mutate(ctx context.Context, op string, id ApplicationID, expected Version, fn func(*Application) error) (*Application, error) {
	current, err := s.store.Load(ctx, id)
	if err != nil {
		s.rejected(op, id, err)
		return nil, err
	}
	if expected != AnyVersion && expected != current.Version {
		err := &StaleWriteError{ID: id, Expected: expected, Actual: current.Version}
		s.rejected(op, id, err)
		return nil, err
	}

	work := current.Clone()
	if err := fn(work); err != nil {
		s.rejected(op, id, err)
		return nil, err
	}
	work.UpdatedAt = s.now()

	version, err := s.store.Commit(ctx, work, current.Version)
	if err != nil {
		s.rejected(op, id, err)
		return nil, err
	}
	work.Version = version

	s.committed(op, work)
	return work, nil
}

func (s *Service) committed(op string, app *Application) {
	s.observer.MutationCommitted(op)
	s.log.Debug().
		Str("op", op).
		Str("application_id", string(app.ID)).
		Int64("version", int64(app.Version)).
		Str("status", string(app.Summary.Status)).
		Int64("current_payment_due", app.Summary.CurrentPaymentDue.Cents()).
		Msg("mutation committed")
}

func (s *Service) rejected(op string, id ApplicationID, err error) {
	kind := KindOf(err)
	s.observer.MutationRejected(op, kind)

	var ev *zerolog.Event
	switch kind {
	case KindConsistency, KindInternal:
		ev = s.log.Error()
	case KindConcurrency:
		ev = s.log.Warn()
	default:
		ev = s.log.Debug()
	}
	ev.Err(err).
		Str("op", op).
		Str("application_id", string(id)).
		Str("kind", string(kind)).
		Msg("mutation rejected")
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditFinding is one stored application that failed verification.
type AuditFinding struct {
	ApplicationID     ApplicationID
	ProjectID         string
	ApplicationNumber int
	Err               error
}

// AuditReport summarizes an Audit run.
type AuditReport struct {
	StartedAt time.Time
	Checked   int
	Findings  []AuditFinding
}

// OK reports whether every checked application verified.
func (r AuditReport) OK() bool { return len(r.Findings) == 0 }

// Audit verifies every stored application. Verification failures are
// collected as findings; only store errors abort the run.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	report := AuditReport{StartedAt: s.now()}

	apps, err := s.store.List(ctx, ListFilter{})
	if err != nil {
		return report, fmt.Errorf("list applications: %w", err)
	}

	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := app.Verify(); err != nil {
			if !errors.Is(err, ErrReconciliationMismatch) {
				return report, err
			}
			report.Findings = append(report.Findings, AuditFinding{
				ApplicationID:     app.ID,
				ProjectID:         app.ProjectID,
				ApplicationNumber: app.Summary.ApplicationNumber,
				Err:               err,
			})
			s.log.Error().Err(err).
				Str("application_id", string(app.ID)).
				Str("project_id", app.ProjectID).
				Msg("audit: reconciliation mismatch")
		}
	}

	s.log.Info().Int("checked", report.Checked).Int("findings", len(report.Findings)).Msg("audit complete")
	return report, nil
}
