package aia

import (
	"fmt"
	"strings"
)

// =============================================================================
// LINE ITEM - One row of the continuation sheet (G703)
// =============================================================================

// LineItem is one scheduled-value entry. The four money inputs are entered by
// the contractor; TotalCompletedAndStored, PercentComplete and BalanceToFinish
// are derived and only ever written by Recompute.
type LineItem struct {
	ItemNumber      string
	Description     string
	CSIDivision     string
	CSIDivisionName string

	ScheduledValue          Money
	WorkCompletedPrevious   Money
	WorkCompletedThisPeriod Money
	MaterialsStored         Money

	TotalCompletedAndStored Money
	PercentComplete         Percent
	BalanceToFinish         Money
}

// LineItemPatch edits the inputs a contractor enters each period. Nil fields
// are left unchanged. WorkCompletedPrevious is not patchable: it is fixed when
// the item is added or carried forward from the prior application.
type LineItemPatch struct {
	ScheduledValue          *Money
	WorkCompletedThisPeriod *Money
	MaterialsStored         *Money
}

// IsEmpty reports whether the patch changes nothing.
func (p LineItemPatch) IsEmpty() bool {
	return p.ScheduledValue == nil && p.WorkCompletedThisPeriod == nil && p.MaterialsStored == nil
}

func (p LineItemPatch) apply(item *LineItem) {
	if p.ScheduledValue != nil {
		item.ScheduledValue = *p.ScheduledValue
	}
	if p.WorkCompletedThisPeriod != nil {
		item.WorkCompletedThisPeriod = *p.WorkCompletedThisPeriod
	}
	if p.MaterialsStored != nil {
		item.MaterialsStored = *p.MaterialsStored
	}
}

// Validate checks identity fields, that every input is non-negative and at
// most MaxAmount, and that the item's completed total stays within MaxAmount.
func (item LineItem) Validate() error {
	if strings.TrimSpace(item.ItemNumber) == "" {
		return fmt.Errorf("%w: item number is required", ErrInvalidLineItem)
	}
	if !IsDivisionCode(item.CSIDivision) {
		return fmt.Errorf("%w: csi division %q must be a 2-digit code", ErrInvalidLineItem, item.CSIDivision)
	}
	for _, in := range []struct {
		field string
		value Money
	}{
		{"scheduledValue", item.ScheduledValue},
		{"workCompletedPrevious", item.WorkCompletedPrevious},
		{"workCompletedThisPeriod", item.WorkCompletedThisPeriod},
		{"materialsStored", item.MaterialsStored},
	} {
		if in.value.IsNegative() {
			return &InvalidAmountError{Field: in.field, Value: in.value.String(), Reason: "must not be negative"}
		}
		if !in.value.WithinLimit() {
			return &InvalidAmountError{Field: in.field, Value: in.value.String(), Reason: "exceeds maximum amount"}
		}
	}
	if total := Sum(item.WorkCompletedPrevious, item.WorkCompletedThisPeriod, item.MaterialsStored); !total.WithinLimit() {
		return &InvalidAmountError{Field: "totalCompletedAndStored", Value: total.String(), Reason: "exceeds maximum amount"}
	}
	return nil
}

// IsDivisionCode reports whether code is exactly two ASCII digits.
func IsDivisionCode(code string) bool {
	return len(code) == 2 && code[0] >= '0' && code[0] <= '9' && code[1] >= '0' && code[1] <= '9'
}

// Recompute sets all three derived fields from the inputs in one step.
// Calling it repeatedly on an unchanged item yields identical results.
func Recompute(item *LineItem) {
	total := Sum(item.WorkCompletedPrevious, item.WorkCompletedThisPeriod, item.MaterialsStored)
	*item = LineItem{
		ItemNumber:              item.ItemNumber,
		Description:             item.Description,
		CSIDivision:             item.CSIDivision,
		CSIDivisionName:         item.CSIDivisionName,
		ScheduledValue:          item.ScheduledValue,
		WorkCompletedPrevious:   item.WorkCompletedPrevious,
		WorkCompletedThisPeriod: item.WorkCompletedThisPeriod,
		MaterialsStored:         item.MaterialsStored,
		TotalCompletedAndStored: total,
		PercentComplete:         total.PercentOf(item.ScheduledValue),
		BalanceToFinish:         item.ScheduledValue.Sub(total),
	}
}

// Recomputed returns a copy of item with derived fields recomputed.
func (item LineItem) Recomputed() LineItem {
	Recompute(&item)
	return item
}
