/*
Package factory converts JSON application templates into engine input.

PURPOSE:
  A template is a schedule of values plus the contract figures of a payment
  application, written as JSON so estimators can prepare one outside the
  engine. The factory validates the JSON, fills in CSI division names from
  the MasterFormat catalog, and produces aia.CreateApplicationInput.

JSON SCHEMA:
  {
    "project_id": "harbor-view",
    "period_to": "2024-03-31",
    "original_contract_sum": "250000.00",
    "net_change_by_change_orders": "0.00",
    "retainage_percentage": "10",
    "less_previous_certificates": "0.00",
    "items": [
      {
        "item_number": "1",
        "description": "Site clearing",
        "csi_division": "31",
        "scheduled_value": "12500.00",
        "work_completed_previous": "0.00",
        "work_completed_this_period": "6250.00",
        "materials_stored": "0.00"
      }
    ]
  }

  Money amounts are decimal strings. Whole-dollar amounts may omit the
  cents ("12500" is $12,500.00); anything else must carry exactly two
  fraction digits.

USAGE:
  f := factory.NewTemplateFactory()
  in, err := f.ParseTemplate(jsonString)
  app, err := svc.CreateApplication(ctx, in)

SEE ALSO:
  - csi.go: MasterFormat division catalog
  - api/scenarios.go: demo templates
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the JSON representation of a payment application.
type TemplateJSON struct {
	ProjectID                string         `json:"project_id"`
	PeriodTo                 string         `json:"period_to"` // YYYY-MM-DD
	OriginalContractSum      string         `json:"original_contract_sum"`
	NetChangeByChangeOrders  string         `json:"net_change_by_change_orders,omitempty"`
	RetainagePercentage      string         `json:"retainage_percentage,omitempty"`
	LessPreviousCertificates string         `json:"less_previous_certificates,omitempty"`
	Items                    []LineItemJSON `json:"items"`
}

// LineItemJSON represents one schedule-of-values row.
type LineItemJSON struct {
	ItemNumber              string `json:"item_number"`
	Description             string `json:"description"`
	CSIDivision             string `json:"csi_division"`
	CSIDivisionName         string `json:"csi_division_name,omitempty"` // defaults from the catalog
	ScheduledValue          string `json:"scheduled_value"`
	WorkCompletedPrevious   string `json:"work_completed_previous,omitempty"`
	WorkCompletedThisPeriod string `json:"work_completed_this_period,omitempty"`
	MaterialsStored         string `json:"materials_stored,omitempty"`
}

const dateLayout = "2006-01-02"

// =============================================================================
// TEMPLATE FACTORY
// =============================================================================

// TemplateFactory converts JSON templates to engine input.
type TemplateFactory struct {
	catalog Catalog
}

// NewTemplateFactory creates a factory backed by the MasterFormat catalog.
func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{catalog: MasterFormat}
}

// ParseTemplate parses a JSON string into application input.
func (f *TemplateFactory) ParseTemplate(jsonStr string) (aia.CreateApplicationInput, error) {
	var tj TemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return aia.CreateApplicationInput{}, fmt.Errorf("invalid template JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// FromJSON converts a TemplateJSON struct to application input.
func (f *TemplateFactory) FromJSON(tj TemplateJSON) (aia.CreateApplicationInput, error) {
	if tj.ProjectID == "" {
		return aia.CreateApplicationInput{}, fmt.Errorf("%w: project_id is required", aia.ErrInvalidApplication)
	}

	in := aia.CreateApplicationInput{ProjectID: tj.ProjectID}

	if tj.PeriodTo != "" {
		t, err := time.Parse(dateLayout, tj.PeriodTo)
		if err != nil {
			return in, fmt.Errorf("%w: period_to %q: %v", aia.ErrInvalidApplication, tj.PeriodTo, err)
		}
		in.PeriodTo = t
	}

	var err error
	if in.OriginalContractSum, err = parseAmount("original_contract_sum", tj.OriginalContractSum); err != nil {
		return in, err
	}
	if in.NetChangeByChangeOrders, err = parseAmount("net_change_by_change_orders", tj.NetChangeByChangeOrders); err != nil {
		return in, err
	}
	if in.LessPreviousCertificates, err = parseAmount("less_previous_certificates", tj.LessPreviousCertificates); err != nil {
		return in, err
	}
	if tj.RetainagePercentage != "" {
		if in.RetainagePercentage, err = aia.ParsePercent(tj.RetainagePercentage); err != nil {
			return in, err
		}
	}

	for _, ij := range tj.Items {
		item, err := f.parseItem(ij)
		if err != nil {
			return in, fmt.Errorf("item %s: %w", ij.ItemNumber, err)
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}

func (f *TemplateFactory) parseItem(ij LineItemJSON) (aia.LineItem, error) {
	item := aia.LineItem{
		ItemNumber:      ij.ItemNumber,
		Description:     ij.Description,
		CSIDivision:     ij.CSIDivision,
		CSIDivisionName: ij.CSIDivisionName,
	}
	if item.CSIDivisionName == "" {
		item.CSIDivisionName = f.catalog.Name(ij.CSIDivision)
	}

	var err error
	for _, field := range []struct {
		name string
		raw  string
		dst  *aia.Money
	}{
		{"scheduled_value", ij.ScheduledValue, &item.ScheduledValue},
		{"work_completed_previous", ij.WorkCompletedPrevious, &item.WorkCompletedPrevious},
		{"work_completed_this_period", ij.WorkCompletedThisPeriod, &item.WorkCompletedThisPeriod},
		{"materials_stored", ij.MaterialsStored, &item.MaterialsStored},
	} {
		if *field.dst, err = parseAmount(field.name, field.raw); err != nil {
			return item, err
		}
	}
	return item, nil
}

// ToJSON converts an application back to a template. Derived figures are
// dropped; they are recomputed on load.
func (f *TemplateFactory) ToJSON(app *aia.Application) TemplateJSON {
	s := app.Summary
	tj := TemplateJSON{
		ProjectID:                app.ProjectID,
		OriginalContractSum:      s.OriginalContractSum.String(),
		NetChangeByChangeOrders:  s.NetChangeByChangeOrders.String(),
		RetainagePercentage:      s.RetainagePercentage.String(),
		LessPreviousCertificates: s.LessPreviousCertificates.String(),
	}
	if !s.PeriodTo.IsZero() {
		tj.PeriodTo = s.PeriodTo.Format(dateLayout)
	}
	if app.Ledger != nil {
		for _, item := range app.Ledger.Items() {
			tj.Items = append(tj.Items, LineItemJSON{
				ItemNumber:              item.ItemNumber,
				Description:             item.Description,
				CSIDivision:             item.CSIDivision,
				CSIDivisionName:         item.CSIDivisionName,
				ScheduledValue:          item.ScheduledValue.String(),
				WorkCompletedPrevious:   item.WorkCompletedPrevious.String(),
				WorkCompletedThisPeriod: item.WorkCompletedThisPeriod.String(),
				MaterialsStored:         item.MaterialsStored.String(),
			})
		}
	}
	return tj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseAmount parses a money string. Empty means zero; a bare integer means
// whole dollars.
func parseAmount(field, raw string) (aia.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return aia.Zero, nil
	}
	if !strings.Contains(raw, ".") {
		raw += ".00"
	}
	m, err := aia.ParseMoney(raw)
	if err != nil {
		var ae *aia.InvalidAmountError
		if errors.As(err, &ae) {
			ae.Field = field
		}
		return aia.Zero, err
	}
	return m, nil
}
