package aia_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/payapp-engine/aia"
)

func TestStatus_Transitions(t *testing.T) {
	allowed := map[aia.Status][]aia.Status{
		aia.StatusDraft:       {aia.StatusSubmitted},
		aia.StatusSubmitted:   {aia.StatusUnderReview},
		aia.StatusUnderReview: {aia.StatusApproved, aia.StatusRejected},
		aia.StatusRejected:    {aia.StatusDraft},
		aia.StatusApproved:    {aia.StatusPaid},
		aia.StatusPaid:        nil,
	}

	for _, from := range aia.AllStatuses {
		for _, to := range aia.AllStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, from.CanTransitionTo(to))
				err := aia.CheckTransition(from, to)
				if want {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, aia.ErrInvalidTransition)
				}
			})
		}
	}
}

func TestStatus_AllowsMutation(t *testing.T) {
	tests := []struct {
		status    aia.Status
		mutable   bool
		finalized bool
		terminal  bool
	}{
		{aia.StatusDraft, true, false, false},
		{aia.StatusSubmitted, true, false, false},
		{aia.StatusUnderReview, true, false, false},
		{aia.StatusRejected, true, false, false},
		{aia.StatusApproved, false, true, false},
		{aia.StatusPaid, false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.mutable, tt.status.AllowsMutation())
			assert.Equal(t, tt.finalized, tt.status.IsFinalized())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())

			err := aia.GuardMutation(tt.status)
			if tt.mutable {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, aia.ErrLedgerLocked)
			}
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, aia.StatusUnderReview.Valid())
	assert.False(t, aia.Status("archived").Valid())
	assert.False(t, aia.Status("archived").IsTerminal())
	assert.Empty(t, aia.StatusPaid.Next())
	assert.Equal(t, []aia.Status{aia.StatusApproved, aia.StatusRejected}, aia.StatusUnderReview.Next())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want aia.ErrorKind
	}{
		{nil, aia.KindNone},
		{&aia.InvalidAmountError{Value: "x"}, aia.KindValidation},
		{aia.ErrDuplicateItemNumber, aia.KindValidation},
		{aia.ErrItemNotFound, aia.KindNotFound},
		{aia.ErrApplicationNotFound, aia.KindNotFound},
		{&aia.LedgerLockedError{Status: aia.StatusPaid}, aia.KindLifecycle},
		{aia.ErrNotFinalized, aia.KindLifecycle},
		{&aia.ReconciliationMismatchError{Field: "retainageAmount"}, aia.KindConsistency},
		{&aia.StaleWriteError{ID: "a", Expected: 1, Actual: 2}, aia.KindConcurrency},
		{assert.AnError, aia.KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, aia.KindOf(tt.err), "%v", tt.err)
	}

	assert.True(t, aia.IsRetryable(&aia.StaleWriteError{}))
	assert.True(t, aia.IsClientError(aia.ErrInvalidTransition))
	assert.True(t, aia.IsNotFound(aia.ErrItemNotFound))
	assert.False(t, aia.IsClientError(aia.ErrReconciliationMismatch))
}
