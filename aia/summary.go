package aia

import (
	"time"
)

// =============================================================================
// SUMMARY - Application and certificate for payment (G702)
// =============================================================================

// Summary is the aggregate payment-application document. Inputs are entered;
// TotalCompletedAndStoredToDate comes from the ledger rollup; the remaining
// figures are derived by RecomputeSummary.
type Summary struct {
	ApplicationNumber int
	PeriodTo          time.Time
	Status            Status

	// Inputs
	OriginalContractSum      Money
	NetChangeByChangeOrders  Money
	RetainagePercentage      Percent
	LessPreviousCertificates Money

	// From the ledger
	TotalCompletedAndStoredToDate Money

	// Derived
	ContractSumToDate        Money
	RetainageAmount          Money
	TotalEarnedLessRetainage Money
	CurrentPaymentDue        Money
	BalanceToFinish          Money
}

// SummaryPatch edits summary inputs. Nil fields are left unchanged.
type SummaryPatch struct {
	PeriodTo                 *time.Time
	OriginalContractSum      *Money
	NetChangeByChangeOrders  *Money
	RetainagePercentage      *Percent
	LessPreviousCertificates *Money
}

// IsEmpty reports whether the patch changes nothing.
func (p SummaryPatch) IsEmpty() bool {
	return p.PeriodTo == nil && p.OriginalContractSum == nil && p.NetChangeByChangeOrders == nil &&
		p.RetainagePercentage == nil && p.LessPreviousCertificates == nil
}

func (p SummaryPatch) apply(s *Summary) {
	if p.PeriodTo != nil {
		s.PeriodTo = *p.PeriodTo
	}
	if p.OriginalContractSum != nil {
		s.OriginalContractSum = *p.OriginalContractSum
	}
	if p.NetChangeByChangeOrders != nil {
		s.NetChangeByChangeOrders = *p.NetChangeByChangeOrders
	}
	if p.RetainagePercentage != nil {
		s.RetainagePercentage = *p.RetainagePercentage
	}
	if p.LessPreviousCertificates != nil {
		s.LessPreviousCertificates = *p.LessPreviousCertificates
	}
}

// ValidateInputs checks the sign and range contracts of the entered figures.
// Every amount must lie within MaxAmount.
// Change orders may be deductive, so NetChangeByChangeOrders may be negative.
func (s Summary) ValidateInputs() error {
	if s.OriginalContractSum.IsNegative() {
		return &InvalidAmountError{Field: "originalContractSum", Value: s.OriginalContractSum.String(), Reason: "must not be negative"}
	}
	if s.LessPreviousCertificates.IsNegative() {
		return &InvalidAmountError{Field: "lessPreviousCertificates", Value: s.LessPreviousCertificates.String(), Reason: "must not be negative"}
	}
	for _, in := range []struct {
		field string
		value Money
	}{
		{"originalContractSum", s.OriginalContractSum},
		{"netChangeByChangeOrders", s.NetChangeByChangeOrders},
		{"lessPreviousCertificates", s.LessPreviousCertificates},
	} {
		if !in.value.WithinLimit() {
			return &InvalidAmountError{Field: in.field, Value: in.value.String(), Reason: "exceeds maximum amount"}
		}
	}
	if !s.RetainagePercentage.InRange() {
		return &InvalidAmountError{Field: "retainagePercentage", Value: s.RetainagePercentage.String(), Reason: "must be between 0 and 100"}
	}
	return nil
}
