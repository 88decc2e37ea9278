/*
application.go - The payment application aggregate

PURPOSE:
  An Application owns exactly one Summary and one Ledger. All mutations go
  through it so that the lifecycle guard, recomputation and verification
  always run together and in the same order.

MUTATION PROTOCOL:
  ┌────────┐    ┌──────────────┐    ┌───────────┐    ┌────────┐    ┌──────┐
  │ guard  │ ─▶ │ scratch copy │ ─▶ │ recompute │ ─▶ │ verify │ ─▶ │ swap │
  └────────┘    └──────────────┘    └───────────┘    └────────┘    └──────┘
      │                 │                  │               │
      └─────────────────┴──── any error ───┴───────────────┴──▶ application untouched

  1. GuardMutation(status) runs first: a locked application is never copied,
     recomputed or verified.
  2. The change is applied to a cloned summary and ledger.
  3. RecomputeSummary pulls the new rollup into the summary.
  4. Verify recomputes everything independently from inputs.
  5. Only then are the clones swapped in.

SEE ALSO:
  - service.go: load/commit around these methods
  - lifecycle.go: transitions and mutability
*/
package aia

import (
	"fmt"
	"slices"
	"time"
)

type ApplicationID string

// Version is the optimistic-concurrency stamp. Stored applications start at 1.
type Version int64

// AnyVersion skips the caller-side version precondition.
const AnyVersion Version = 0

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Seq   int
	From  Status
	To    Status
	Actor string
	Note  string
	At    time.Time
}

// Application is one payment application: summary, ledger and bookkeeping.
type Application struct {
	ID        ApplicationID
	ProjectID string
	Summary   Summary
	Ledger    *Ledger
	Version   Version
	History   []StatusChange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (a *Application) Clone() *Application {
	c := *a
	if a.Ledger != nil {
		c.Ledger = a.Ledger.Clone()
	} else {
		c.Ledger = &Ledger{}
	}
	c.History = slices.Clone(a.History)
	return &c
}

// AddLineItem adds an item to the ledger.
func (a *Application) AddLineItem(item LineItem) error {
	return a.mutate(func(_ *Summary, l *Ledger) error {
		return l.AddItem(item)
	})
}

// UpdateLineItem patches an item's inputs.
func (a *Application) UpdateLineItem(itemNumber string, patch LineItemPatch) error {
	return a.mutate(func(_ *Summary, l *Ledger) error {
		return l.UpdateItem(itemNumber, patch)
	})
}

// RemoveLineItem removes an item from the ledger.
func (a *Application) RemoveLineItem(itemNumber string) error {
	return a.mutate(func(_ *Summary, l *Ledger) error {
		return l.RemoveItem(itemNumber)
	})
}

// UpdateSummary edits summary inputs.
func (a *Application) UpdateSummary(patch SummaryPatch) error {
	return a.mutate(func(s *Summary, _ *Ledger) error {
		patch.apply(s)
		return s.ValidateInputs()
	})
}

// Transition moves the application to status to and records the change.
// The figures must still verify; an approval never locks in a broken sheet.
func (a *Application) Transition(to Status, actor, note string, at time.Time) error {
	from := a.Summary.Status
	if err := CheckTransition(from, to); err != nil {
		return err
	}
	if err := a.Verify(); err != nil {
		return err
	}

	a.Summary.Status = to
	a.History = append(a.History, StatusChange{
		Seq:   len(a.History) + 1,
		From:  from,
		To:    to,
		Actor: actor,
		Note:  note,
		At:    at,
	})
	a.UpdatedAt = at
	return nil
}

// Verify checks the summary against the ledger.
func (a *Application) Verify() error {
	return Verify(a.Summary, a.ledger())
}

// Rollup returns the ledger column totals.
func (a *Application) Rollup() Rollup {
	return a.ledger().Rollup()
}

func (a *Application) ledger() *Ledger {
	if a.Ledger == nil {
		return &Ledger{}
	}
	return a.Ledger
}

func (a *Application) mutate(fn func(s *Summary, l *Ledger) error) error {
	if err := GuardMutation(a.Summary.Status); err != nil {
		return err
	}

	summary := a.Summary
	ledger := a.ledger().Clone()
	if err := fn(&summary, ledger); err != nil {
		return err
	}

	RecomputeSummary(&summary, ledger.Rollup())
	if err := Verify(summary, ledger); err != nil {
		return err
	}

	a.Summary = summary
	a.Ledger = ledger
	return nil
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// CreateApplicationInput describes a new draft application.
type CreateApplicationInput struct {
	ProjectID                string
	PeriodTo                 time.Time
	OriginalContractSum      Money
	NetChangeByChangeOrders  Money
	RetainagePercentage      Percent
	LessPreviousCertificates Money
	Items                    []LineItem
}

// NewApplication builds a verified draft application. The caller assigns the
// application number; the store assigns the version.
func NewApplication(id ApplicationID, number int, in CreateApplicationInput, at time.Time) (*Application, error) {
	if in.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidApplication)
	}

	summary := Summary{
		ApplicationNumber:        number,
		PeriodTo:                 in.PeriodTo,
		Status:                   StatusDraft,
		OriginalContractSum:      in.OriginalContractSum,
		NetChangeByChangeOrders:  in.NetChangeByChangeOrders,
		RetainagePercentage:      in.RetainagePercentage,
		LessPreviousCertificates: in.LessPreviousCertificates,
	}
	if err := summary.ValidateInputs(); err != nil {
		return nil, err
	}

	ledger, err := NewLedger(in.Items...)
	if err != nil {
		return nil, err
	}
	RecomputeSummary(&summary, ledger.Rollup())
	if err := Verify(summary, ledger); err != nil {
		return nil, err
	}

	return &Application{
		ID:        id,
		ProjectID: in.ProjectID,
		Summary:   summary,
		Ledger:    ledger,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

// NextPeriodInput carries a finalized application forward into the input for
// the following one. Work completed to date becomes "previous", this-period
// work resets to zero, stored materials stay on site, and the amount already
// certified becomes lessPreviousCertificates.
func (a *Application) NextPeriodInput(periodTo time.Time) (CreateApplicationInput, error) {
	if !a.Summary.Status.IsFinalized() {
		return CreateApplicationInput{}, fmt.Errorf("%w: application %s is %s", ErrNotFinalized, a.ID, a.Summary.Status)
	}

	items := make([]LineItem, 0, a.ledger().Len())
	for _, prev := range a.ledger().Items() {
		items = append(items, LineItem{
			ItemNumber:            prev.ItemNumber,
			Description:           prev.Description,
			CSIDivision:           prev.CSIDivision,
			CSIDivisionName:       prev.CSIDivisionName,
			ScheduledValue:        prev.ScheduledValue,
			WorkCompletedPrevious: prev.WorkCompletedPrevious.Add(prev.WorkCompletedThisPeriod),
			MaterialsStored:       prev.MaterialsStored,
		})
	}

	return CreateApplicationInput{
		ProjectID:                a.ProjectID,
		PeriodTo:                 periodTo,
		OriginalContractSum:      a.Summary.OriginalContractSum,
		NetChangeByChangeOrders:  a.Summary.NetChangeByChangeOrders,
		RetainagePercentage:      a.Summary.RetainagePercentage,
		LessPreviousCertificates: a.Summary.TotalEarnedLessRetainage,
		Items:                    items,
	}, nil
}
