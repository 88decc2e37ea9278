/*
lifecycle.go - Payment application status machine

PURPOSE:
  One authoritative answer to two questions: "may this application move to
  that status?" and "may its ledger or summary inputs still change?".
  Every mutation path consults GuardMutation before any recomputation runs.

STATE DIAGRAM:
  ┌───────┐     ┌───────────┐     ┌──────────────┐     ┌──────────┐     ┌──────┐
  │ draft │ ──▶ │ submitted │ ──▶ │ under_review │ ──▶ │ approved │ ──▶ │ paid │
  └───────┘     └───────────┘     └──────────────┘     └──────────┘     └──────┘
      ▲                                  │
      │                                  ▼
      │                            ┌──────────┐
      └─────────────────────────── │ rejected │
                                   └──────────┘

MUTABILITY:
  draft, submitted, under_review, rejected  → ledger and summary inputs editable
  approved, paid                            → locked (ErrLedgerLocked)
  paid has no outgoing transitions.
*/
package aia

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusPaid        Status = "paid"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusPaid,
}

var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusRejected:    {StatusDraft},
	StatusApproved:    {StatusPaid},
	StatusPaid:        nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Next returns the statuses reachable from s in one step.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransitionTo reports whether s → to is an allowed edge.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowsMutation reports whether line items and summary inputs may change in s.
func (s Status) AllowsMutation() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsFinalized reports whether s is approved or paid: the figures are settled
// and a following application may roll forward from them.
func (s Status) IsFinalized() bool {
	return s == StatusApproved || s == StatusPaid
}

// CheckTransition returns an *InvalidTransitionError unless from → to is allowed.
func CheckTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// GuardMutation returns a *LedgerLockedError when s forbids edits.
func GuardMutation(s Status) error {
	if !s.AllowsMutation() {
		return &LedgerLockedError{Status: s}
	}
	return nil
}
