package aia_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// item builds a line item from whole-cent inputs: scheduled, previous,
// this period, stored.
func item(number, division string, scheduled, previous, thisPeriod, stored int64) aia.LineItem {
	return aia.LineItem{
		ItemNumber:              number,
		Description:             "item " + number,
		CSIDivision:             division,
		ScheduledValue:          aia.Cents(scheduled),
		WorkCompletedPrevious:   aia.Cents(previous),
		WorkCompletedThisPeriod: aia.Cents(thisPeriod),
		MaterialsStored:         aia.Cents(stored),
	}
}

func itemNumbers(items []aia.LineItem) []string {
	numbers := make([]string, 0, len(items))
	for _, it := range items {
		numbers = append(numbers, it.ItemNumber)
	}
	return numbers
}

// =============================================================================
// DERIVED FIELD TESTS
// =============================================================================

func TestLedger_AddItem_DerivesFields(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: Adding an item scheduled at 100000 with 50000 done this period
	// THEN: Total 50000, 50.00% complete, 50000 left to finish

	l, err := aia.NewLedger()
	require.NoError(t, err)

	require.NoError(t, l.AddItem(item("1", "03", 100000, 0, 50000, 0)))

	got, ok := l.Item("1")
	require.True(t, ok)
	assert.Equal(t, int64(50000), got.TotalCompletedAndStored.Cents())
	assert.True(t, aia.PercentFromHundredths(5000).Equal(got.PercentComplete), "percent complete was %s", got.PercentComplete)
	assert.Equal(t, int64(50000), got.BalanceToFinish.Cents())
}

func TestLedger_AddItem_IgnoresCallerDerivedFields(t *testing.T) {
	in := item("1", "03", 100000, 20000, 10000, 5000)
	in.TotalCompletedAndStored = aia.Cents(1)
	in.BalanceToFinish = aia.Cents(2)

	l, err := aia.NewLedger(in)
	require.NoError(t, err)

	got, _ := l.Item("1")
	assert.Equal(t, int64(35000), got.TotalCompletedAndStored.Cents())
	assert.Equal(t, int64(65000), got.BalanceToFinish.Cents())
}

func TestRecompute_Idempotent(t *testing.T) {
	it := item("7", "26", 18000, 0, 19250, 0)

	aia.Recompute(&it)
	first := it
	aia.Recompute(&it)

	assert.Equal(t, first, it)
	assert.Equal(t, int64(-1250), it.BalanceToFinish.Cents(), "overbilling is not clamped")
}

// =============================================================================
// MUTATION TESTS
// =============================================================================

func TestLedger_AddItem_DuplicateRejected(t *testing.T) {
	l, err := aia.NewLedger(item("1", "03", 100000, 0, 0, 0))
	require.NoError(t, err)

	err = l.AddItem(item("1", "05", 5000, 0, 0, 0))

	assert.ErrorIs(t, err, aia.ErrDuplicateItemNumber)
	assert.Equal(t, 1, l.Len())
	got, _ := l.Item("1")
	assert.Equal(t, "03", got.CSIDivision, "original item untouched")
}

func TestLedger_AddItem_ValidatesInputs(t *testing.T) {
	tests := []struct {
		name    string
		item    aia.LineItem
		wantErr error
	}{
		{"empty item number", item(" ", "03", 100, 0, 0, 0), aia.ErrInvalidLineItem},
		{"one digit division", item("1", "3", 100, 0, 0, 0), aia.ErrInvalidLineItem},
		{"letter division", item("1", "0A", 100, 0, 0, 0), aia.ErrInvalidLineItem},
		{"negative scheduled value", item("1", "03", -100, 0, 0, 0), aia.ErrInvalidAmount},
		{"negative this period", item("1", "03", 100, 0, -1, 0), aia.ErrInvalidAmount},
		{"negative materials", item("1", "03", 100, 0, 0, -1), aia.ErrInvalidAmount},
		{"scheduled value past maximum", item("1", "03", aia.MaxAmount.Cents()+1, 0, 0, 0), aia.ErrInvalidAmount},
		{"previous work at int64 max", item("1", "03", 100, math.MaxInt64, 0, 1), aia.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &aia.Ledger{}
			err := l.AddItem(tt.item)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, l.Len())
		})
	}
}

func TestLedger_AddItem_CompletedTotalPastMaximumRejected(t *testing.T) {
	// GIVEN: Inputs that are each within the maximum but sum past it
	// WHEN: Adding the item
	// THEN: InvalidAmount on the derived total; nothing wraps around

	limit := aia.MaxAmount.Cents()
	l := &aia.Ledger{}

	err := l.AddItem(item("1", "03", limit, limit, 0, 1))

	var amountErr *aia.InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "totalCompletedAndStored", amountErr.Field)
	assert.Equal(t, 0, l.Len())

	require.NoError(t, l.AddItem(item("1", "03", limit, limit, 0, 0)), "exactly the maximum is allowed")
	got, _ := l.Item("1")
	assert.True(t, got.TotalCompletedAndStored.Equal(aia.MaxAmount))
	assert.True(t, got.BalanceToFinish.IsZero())
}

func TestLedger_ColumnTotalsBounded(t *testing.T) {
	// GIVEN: A ledger already scheduled at the maximum amount
	// WHEN: Adding or growing another item
	// THEN: The ledger total would pass the maximum, so the call is rejected untouched

	limit := aia.MaxAmount.Cents()
	l, err := aia.NewLedger(item("1", "03", limit, 0, limit/2, 0), item("2", "05", 0, 0, 0, 0))
	require.NoError(t, err)
	before := l.Items()

	err = l.AddItem(item("3", "09", 1, 0, 0, 0))
	var amountErr *aia.InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "scheduledValue", amountErr.Field)

	work := aia.Cents(limit/2 + 1)
	err = l.UpdateItem("2", aia.LineItemPatch{WorkCompletedThisPeriod: &work})
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "totalCompletedAndStored", amountErr.Field)

	assert.Equal(t, before, l.Items())
	assert.True(t, l.Rollup().ScheduledValue.Equal(aia.MaxAmount))
}

func TestLedger_UpdateItem(t *testing.T) {
	l, err := aia.NewLedger(item("1", "03", 100000, 0, 10000, 0))
	require.NoError(t, err)

	work := aia.Cents(40000)
	stored := aia.Cents(5000)
	require.NoError(t, l.UpdateItem("1", aia.LineItemPatch{WorkCompletedThisPeriod: &work, MaterialsStored: &stored}))

	got, _ := l.Item("1")
	assert.Equal(t, int64(45000), got.TotalCompletedAndStored.Cents())
	assert.Equal(t, int64(55000), got.BalanceToFinish.Cents())
	assert.Equal(t, int64(4500), got.PercentComplete.Hundredths())
}

func TestLedger_UpdateItem_FailureLeavesItemUntouched(t *testing.T) {
	l, err := aia.NewLedger(item("1", "03", 100000, 0, 10000, 0))
	require.NoError(t, err)
	before := l.Items()

	negative := aia.Cents(-1)
	err = l.UpdateItem("1", aia.LineItemPatch{WorkCompletedThisPeriod: &negative})
	assert.ErrorIs(t, err, aia.ErrInvalidAmount)

	err = l.UpdateItem("9", aia.LineItemPatch{WorkCompletedThisPeriod: &negative})
	assert.ErrorIs(t, err, aia.ErrItemNotFound)

	assert.Equal(t, before, l.Items())
}

func TestLedger_RemoveItem_PreservesOrder(t *testing.T) {
	l, err := aia.NewLedger(
		item("1", "01", 100, 0, 0, 0),
		item("2", "03", 100, 0, 0, 0),
		item("3", "05", 100, 0, 0, 0),
	)
	require.NoError(t, err)

	require.NoError(t, l.RemoveItem("2"))
	assert.Equal(t, []string{"1", "3"}, itemNumbers(l.Items()))

	assert.ErrorIs(t, l.RemoveItem("2"), aia.ErrItemNotFound)
}

func TestLedger_Items_ReturnsCopy(t *testing.T) {
	l, err := aia.NewLedger(item("1", "01", 100, 0, 0, 0))
	require.NoError(t, err)

	items := l.Items()
	items[0].ScheduledValue = aia.Cents(999)

	got, _ := l.Item("1")
	assert.Equal(t, int64(100), got.ScheduledValue.Cents())
}

// =============================================================================
// ROLLUP AND GROUPING TESTS
// =============================================================================

func TestLedger_Rollup(t *testing.T) {
	l, err := aia.NewLedger(
		item("1", "03", 100000, 0, 50000, 0),
		item("2", "05", 60000, 10000, 15000, 5000),
	)
	require.NoError(t, err)

	r := l.Rollup()
	assert.Equal(t, int64(160000), r.ScheduledValue.Cents())
	assert.Equal(t, int64(10000), r.WorkCompletedPrevious.Cents())
	assert.Equal(t, int64(65000), r.WorkCompletedThisPeriod.Cents())
	assert.Equal(t, int64(5000), r.MaterialsStored.Cents())
	assert.Equal(t, int64(80000), r.TotalCompletedAndStored.Cents())
	assert.Equal(t, int64(80000), r.BalanceToFinish.Cents())
	assert.Equal(t, int64(5000), r.PercentComplete().Hundredths())
}

func TestLedger_GroupByDivision_AscendingCodes_LedgerOrderWithin(t *testing.T) {
	// GIVEN: Items added out of division order
	// WHEN: Grouping by division
	// THEN: Groups come back by ascending code; items keep ledger order

	l, err := aia.NewLedger(
		item("E1", "26", 100, 0, 0, 0),
		item("C1", "03", 100, 0, 0, 0),
		item("E2", "26", 100, 0, 0, 0),
		item("G1", "01", 100, 0, 0, 0),
	)
	require.NoError(t, err)

	var codes []string
	groups := map[string][]string{}
	for code, items := range l.GroupByDivision() {
		codes = append(codes, code)
		groups[code] = itemNumbers(items)
	}

	assert.Equal(t, []string{"01", "03", "26"}, codes)
	assert.Equal(t, []string{"E1", "E2"}, groups["26"])
}

func TestLedger_GroupByDivision_Restartable(t *testing.T) {
	l, err := aia.NewLedger(
		item("1", "09", 100, 0, 0, 0),
		item("2", "03", 100, 0, 0, 0),
	)
	require.NoError(t, err)
	seq := l.GroupByDivision()

	collect := func() []string {
		var codes []string
		for code := range seq {
			codes = append(codes, code)
		}
		return codes
	}

	assert.Equal(t, collect(), collect())

	// early exit stops the sequence
	var first string
	for code := range seq {
		first = code
		break
	}
	assert.Equal(t, "03", first)
}

func TestLedger_DivisionTotals(t *testing.T) {
	a := item("1", "09", 20000, 0, 5000, 0)
	a.CSIDivisionName = "Finishes"
	b := item("2", "09", 10000, 0, 5000, 0)
	c := item("3", "03", 50000, 0, 0, 2500)

	l, err := aia.NewLedger(a, b, c)
	require.NoError(t, err)

	totals := l.DivisionTotals()
	require.Len(t, totals, 2)
	assert.Equal(t, "03", totals[0].Division)
	assert.Equal(t, "09", totals[1].Division)
	assert.Equal(t, "Finishes", totals[1].DivisionName)
	assert.Equal(t, 2, totals[1].Items)
	assert.Equal(t, int64(10000), totals[1].Rollup.TotalCompletedAndStored.Cents())
}

// =============================================================================
// RESTORE AND VERIFY TESTS
// =============================================================================

func TestRestoreLedger_KeepsStoredFiguresForVerify(t *testing.T) {
	// GIVEN: A stored item whose derived total was altered outside the engine
	tampered := item("1", "03", 100000, 0, 50000, 0).Recomputed()
	tampered.TotalCompletedAndStored = aia.Cents(60000)

	// WHEN: Restoring and verifying
	l := aia.RestoreLedger([]aia.LineItem{tampered})
	summary := aia.Summary{TotalCompletedAndStoredToDate: aia.Cents(60000)}
	aia.RecomputeSummary(&summary, l.Rollup())
	err := aia.Verify(summary, l)

	// THEN: The item-level mismatch is reported
	var mismatch *aia.ReconciliationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "1", mismatch.ItemNumber)
	assert.Equal(t, "totalCompletedAndStored", mismatch.Field)
	assert.Equal(t, int64(60000), mismatch.Stored.Cents())
	assert.Equal(t, int64(50000), mismatch.Computed.Cents())
}

func TestVerify_SummaryMismatch(t *testing.T) {
	l, err := aia.NewLedger(item("1", "03", 100000, 0, 50000, 0))
	require.NoError(t, err)

	s := aia.Summary{OriginalContractSum: aia.Cents(100000), RetainagePercentage: aia.WholePercent(10)}
	aia.RecomputeSummary(&s, l.Rollup())
	require.NoError(t, aia.Verify(s, l))

	s.RetainageAmount = s.RetainageAmount.Add(aia.Cents(1))
	err = aia.Verify(s, l)

	var mismatch *aia.ReconciliationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, mismatch.ItemNumber)
	assert.Equal(t, "retainageAmount", mismatch.Field)
}

func TestVerify_PercentMismatchReportedAsPercent(t *testing.T) {
	// GIVEN: A stored item whose percent complete was altered
	tampered := item("1", "03", 100000, 0, 50000, 0).Recomputed()
	tampered.PercentComplete = aia.PercentFromHundredths(6000)

	// WHEN: Verifying
	l := aia.RestoreLedger([]aia.LineItem{tampered})
	s := aia.Summary{}
	aia.RecomputeSummary(&s, l.Rollup())
	err := aia.Verify(s, l)

	// THEN: The percentages are carried as percentages, not as cents
	var mismatch *aia.ReconciliationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "percentComplete", mismatch.Field)
	require.True(t, mismatch.IsPercent())
	assert.True(t, aia.WholePercent(60).Equal(*mismatch.StoredPercent))
	assert.True(t, aia.WholePercent(50).Equal(*mismatch.ComputedPercent))
	assert.True(t, mismatch.Stored.IsZero())
	assert.Contains(t, err.Error(), "stored 60.00%, computed 50.00%")
}
