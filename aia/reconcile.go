/*
reconcile.go - Rollup, summary recomputation and verification

PURPOSE:
  Pure functions that tie the continuation sheet to the summary:

    RollupItems       Σ of every money column across line items
    RecomputeSummary  summary derived figures from inputs + rollup
    Verify            independent recomputation, compared cent for cent

DEPENDENCY ORDER (RecomputeSummary):
  totalCompletedAndStoredToDate ← rollup
  contractSumToDate        = originalContractSum + netChangeByChangeOrders
  retainageAmount          = toDate × retainage% / 100   (half-up to the cent)
  totalEarnedLessRetainage = toDate − retainageAmount
  currentPaymentDue        = earnedLessRetainage − lessPreviousCertificates
  balanceToFinish          = contractSumToDate − toDate

  currentPaymentDue is not clamped: overbilling produces a negative figure.

VERIFY NEVER CORRECTS:
  A mismatch is returned as *ReconciliationMismatchError. The caller rejects
  the mutation; nothing here patches stored figures.
*/
package aia

// Rollup holds column totals across a set of line items.
type Rollup struct {
	ScheduledValue          Money
	WorkCompletedPrevious   Money
	WorkCompletedThisPeriod Money
	MaterialsStored         Money
	TotalCompletedAndStored Money
	BalanceToFinish         Money
}

// PercentComplete is the rolled-up completion percentage.
func (r Rollup) PercentComplete() Percent {
	return r.TotalCompletedAndStored.PercentOf(r.ScheduledValue)
}

// RollupItems sums the stored columns of items.
func RollupItems(items []LineItem) Rollup {
	var r Rollup
	for _, item := range items {
		r.ScheduledValue = r.ScheduledValue.Add(item.ScheduledValue)
		r.WorkCompletedPrevious = r.WorkCompletedPrevious.Add(item.WorkCompletedPrevious)
		r.WorkCompletedThisPeriod = r.WorkCompletedThisPeriod.Add(item.WorkCompletedThisPeriod)
		r.MaterialsStored = r.MaterialsStored.Add(item.MaterialsStored)
		r.TotalCompletedAndStored = r.TotalCompletedAndStored.Add(item.TotalCompletedAndStored)
		r.BalanceToFinish = r.BalanceToFinish.Add(item.BalanceToFinish)
	}
	return r
}

// RecomputeSummary sets TotalCompletedAndStoredToDate from rollup and derives
// the remaining summary figures in dependency order.
func RecomputeSummary(s *Summary, rollup Rollup) {
	s.TotalCompletedAndStoredToDate = rollup.TotalCompletedAndStored
	s.ContractSumToDate = s.OriginalContractSum.Add(s.NetChangeByChangeOrders)
	s.RetainageAmount = s.TotalCompletedAndStoredToDate.MulPercent(s.RetainagePercentage)
	s.TotalEarnedLessRetainage = s.TotalCompletedAndStoredToDate.Sub(s.RetainageAmount)
	s.CurrentPaymentDue = s.TotalEarnedLessRetainage.Sub(s.LessPreviousCertificates)
	s.BalanceToFinish = s.ContractSumToDate.Sub(s.TotalCompletedAndStoredToDate)
}

// Verify recomputes every line item and the summary from their inputs alone
// and compares the results to the stored figures. It returns the first
// disagreement as a *ReconciliationMismatchError.
func Verify(s Summary, l *Ledger) error {
	var fresh Rollup
	for _, stored := range l.items {
		computed := stored.Recomputed()
		if err := compareItem(stored, computed); err != nil {
			return err
		}
		fresh.TotalCompletedAndStored = fresh.TotalCompletedAndStored.Add(computed.TotalCompletedAndStored)
	}

	if !s.TotalCompletedAndStoredToDate.Equal(fresh.TotalCompletedAndStored) {
		return &ReconciliationMismatchError{
			Field:    "totalCompletedAndStoredToDate",
			Stored:   s.TotalCompletedAndStoredToDate,
			Computed: fresh.TotalCompletedAndStored,
		}
	}

	expected := s
	RecomputeSummary(&expected, fresh)
	for _, f := range []struct {
		name             string
		stored, computed Money
	}{
		{"contractSumToDate", s.ContractSumToDate, expected.ContractSumToDate},
		{"retainageAmount", s.RetainageAmount, expected.RetainageAmount},
		{"totalEarnedLessRetainage", s.TotalEarnedLessRetainage, expected.TotalEarnedLessRetainage},
		{"currentPaymentDue", s.CurrentPaymentDue, expected.CurrentPaymentDue},
		{"balanceToFinish", s.BalanceToFinish, expected.BalanceToFinish},
	} {
		if !f.stored.Equal(f.computed) {
			return &ReconciliationMismatchError{Field: f.name, Stored: f.stored, Computed: f.computed}
		}
	}
	return nil
}

func compareItem(stored, computed LineItem) error {
	if !stored.TotalCompletedAndStored.Equal(computed.TotalCompletedAndStored) {
		return &ReconciliationMismatchError{
			ItemNumber: stored.ItemNumber,
			Field:      "totalCompletedAndStored",
			Stored:     stored.TotalCompletedAndStored,
			Computed:   computed.TotalCompletedAndStored,
		}
	}
	if !stored.BalanceToFinish.Equal(computed.BalanceToFinish) {
		return &ReconciliationMismatchError{
			ItemNumber: stored.ItemNumber,
			Field:      "balanceToFinish",
			Stored:     stored.BalanceToFinish,
			Computed:   computed.BalanceToFinish,
		}
	}
	if !stored.PercentComplete.Equal(computed.PercentComplete) {
		return &ReconciliationMismatchError{
			ItemNumber:      stored.ItemNumber,
			Field:           "percentComplete",
			StoredPercent:   &stored.PercentComplete,
			ComputedPercent: &computed.PercentComplete,
		}
	}
	return nil
}
