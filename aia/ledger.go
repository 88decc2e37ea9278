/*
ledger.go - The continuation sheet (ordered line items)

PURPOSE:
  The Ledger owns a payment application's line items in insertion order.
  It is the only place items are added, patched or removed, and every change
  to an item's inputs recomputes that item's derived fields before the change
  becomes visible.

CRITICAL INVARIANTS:
  1. UNIQUE: item numbers are unique within a ledger
  2. DERIVED: every item's derived fields match its inputs after each call
  3. ALL-OR-NOTHING: a call that returns an error leaves the ledger untouched
  4. BOUNDED: scheduled and completed column totals stay within MaxAmount

NOT HERE:
  The ledger does not know its owning summary or status. Lock checks and
  summary recomputation happen in Application, which owns both.

SEE ALSO:
  - application.go: guard → scratch copy → recompute → verify → swap
  - reconcile.go: Rollup and Verify
*/
package aia

import (
	"fmt"
	"iter"
	"slices"
)

// Ledger is the ordered set of line items for one payment application.
// The zero value is an empty, usable ledger.
type Ledger struct {
	items []LineItem
}

// NewLedger builds a ledger by adding each item in order.
func NewLedger(items ...LineItem) (*Ledger, error) {
	l := &Ledger{}
	for _, item := range items {
		if err := l.AddItem(item); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// RestoreLedger rebuilds a ledger from persisted items exactly as stored,
// derived fields included. Nothing is recomputed; use Verify to check them.
func RestoreLedger(items []LineItem) *Ledger {
	return &Ledger{items: slices.Clone(items)}
}

// Len returns the number of line items.
func (l *Ledger) Len() int { return len(l.items) }

// Items returns a copy of the line items in insertion order.
func (l *Ledger) Items() []LineItem {
	return slices.Clone(l.items)
}

// Item returns the line item with the given number.
func (l *Ledger) Item(itemNumber string) (LineItem, bool) {
	i := l.indexOf(itemNumber)
	if i < 0 {
		return LineItem{}, false
	}
	return l.items[i], true
}

// Clone returns an independent copy. LineItem holds no shared mutable state,
// so a shallow slice copy is a deep copy.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{items: slices.Clone(l.items)}
}

// AddItem validates item, recomputes its derived fields and appends it.
func (l *Ledger) AddItem(item LineItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if l.indexOf(item.ItemNumber) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateItemNumber, item.ItemNumber)
	}
	Recompute(&item)
	if err := checkColumnTotals(append(slices.Clip(l.items), item)); err != nil {
		return err
	}
	l.items = append(l.items, item)
	return nil
}

// UpdateItem applies patch to the item's inputs and recomputes it.
func (l *Ledger) UpdateItem(itemNumber string, patch LineItemPatch) error {
	i := l.indexOf(itemNumber)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemNumber)
	}

	updated := l.items[i]
	patch.apply(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}
	Recompute(&updated)
	candidate := slices.Clone(l.items)
	candidate[i] = updated
	if err := checkColumnTotals(candidate); err != nil {
		return err
	}
	l.items[i] = updated
	return nil
}

// RemoveItem deletes the item, preserving the order of the rest.
func (l *Ledger) RemoveItem(itemNumber string) error {
	i := l.indexOf(itemNumber)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemNumber)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

// Rollup sums every money column across all items.
func (l *Ledger) Rollup() Rollup {
	return RollupItems(l.items)
}

// checkColumnTotals stops at the first running total past MaxAmount, so with
// validated items the sums never approach the int64 range.
func checkColumnTotals(items []LineItem) error {
	var scheduled, completed Money
	for _, item := range items {
		scheduled = scheduled.Add(item.ScheduledValue)
		if !scheduled.WithinLimit() {
			return &InvalidAmountError{Field: "scheduledValue", Value: scheduled.String(), Reason: "ledger total exceeds maximum amount"}
		}
		completed = completed.Add(item.TotalCompletedAndStored)
		if !completed.WithinLimit() {
			return &InvalidAmountError{Field: "totalCompletedAndStored", Value: completed.String(), Reason: "ledger total exceeds maximum amount"}
		}
	}
	return nil
}

func (l *Ledger) indexOf(itemNumber string) int {
	return slices.IndexFunc(l.items, func(item LineItem) bool {
		return item.ItemNumber == itemNumber
	})
}

// =============================================================================
// DIVISION GROUPING
// =============================================================================

// GroupByDivision yields (division code, items) pairs in ascending code order,
// items in ledger order within each group. The sequence reads the ledger's
// state when iteration starts and can be ranged over any number of times.
func (l *Ledger) GroupByDivision() iter.Seq2[string, []LineItem] {
	return func(yield func(string, []LineItem) bool) {
		groups := make(map[string][]LineItem)
		for _, item := range l.items {
			groups[item.CSIDivision] = append(groups[item.CSIDivision], item)
		}
		codes := make([]string, 0, len(groups))
		for code := range groups {
			codes = append(codes, code)
		}
		slices.Sort(codes)

		for _, code := range codes {
			if !yield(code, groups[code]) {
				return
			}
		}
	}
}

// DivisionTotal is the subtotal row for one CSI division.
type DivisionTotal struct {
	Division     string
	DivisionName string
	Items        int
	Rollup       Rollup
}

// DivisionTotals returns one subtotal per division in ascending code order.
// The name is taken from the first item in the division.
func (l *Ledger) DivisionTotals() []DivisionTotal {
	var totals []DivisionTotal
	for code, items := range l.GroupByDivision() {
		totals = append(totals, DivisionTotal{
			Division:     code,
			DivisionName: items[0].CSIDivisionName,
			Items:        len(items),
			Rollup:       RollupItems(items),
		})
	}
	return totals
}
