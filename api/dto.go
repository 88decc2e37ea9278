/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the aia domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY ON THE WIRE:
  Money is an integer number of cents (125000 is $1,250.00). Percentages are
  numbers with two decimals (10.00). A fractional cents value is rejected.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, code formats, allowed statuses). Sign and range rules
  for amounts are enforced by the engine and reported as invalid_amount.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/template.go: TemplateJSON for scenario loading
*/
package api

import (
	"time"

	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ApplicationDTO is a payment application: summary plus continuation sheet.
type ApplicationDTO struct {
	ID                string            `json:"id"`
	ProjectID         string            `json:"project_id"`
	ApplicationNumber int               `json:"application_number"`
	PeriodTo          string            `json:"period_to,omitempty"`
	Status            string            `json:"status"`
	Version           int64             `json:"version"`
	Summary           SummaryDTO        `json:"summary"`
	Items             []LineItemDTO     `json:"items"`
	PercentComplete   aia.Percent       `json:"percent_complete"`
	NextStatuses      []string          `json:"next_statuses"`
	Locked            bool              `json:"locked"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	History           []StatusChangeDTO `json:"history,omitempty"`
}

// ApplicationListItemDTO is the list view of an application.
type ApplicationListItemDTO struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	ApplicationNumber int       `json:"application_number"`
	PeriodTo          string    `json:"period_to,omitempty"`
	Status            string    `json:"status"`
	Version           int64     `json:"version"`
	CurrentPaymentDue aia.Money `json:"current_payment_due"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SummaryDTO is the G702 application for payment.
type SummaryDTO struct {
	OriginalContractSum           aia.Money   `json:"original_contract_sum"`
	NetChangeByChangeOrders       aia.Money   `json:"net_change_by_change_orders"`
	ContractSumToDate             aia.Money   `json:"contract_sum_to_date"`
	TotalCompletedAndStoredToDate aia.Money   `json:"total_completed_and_stored_to_date"`
	RetainagePercentage           aia.Percent `json:"retainage_percentage"`
	RetainageAmount               aia.Money   `json:"retainage_amount"`
	TotalEarnedLessRetainage      aia.Money   `json:"total_earned_less_retainage"`
	LessPreviousCertificates      aia.Money   `json:"less_previous_certificates"`
	CurrentPaymentDue             aia.Money   `json:"current_payment_due"`
	BalanceToFinish               aia.Money   `json:"balance_to_finish"`
}

// LineItemDTO is one G703 continuation sheet row.
type LineItemDTO struct {
	ItemNumber              string      `json:"item_number"`
	Description             string      `json:"description"`
	CSIDivision             string      `json:"csi_division"`
	CSIDivisionName         string      `json:"csi_division_name"`
	ScheduledValue          aia.Money   `json:"scheduled_value"`
	WorkCompletedPrevious   aia.Money   `json:"work_completed_previous"`
	WorkCompletedThisPeriod aia.Money   `json:"work_completed_this_period"`
	MaterialsStored         aia.Money   `json:"materials_stored"`
	TotalCompletedAndStored aia.Money   `json:"total_completed_and_stored"`
	PercentComplete         aia.Percent `json:"percent_complete"`
	BalanceToFinish         aia.Money   `json:"balance_to_finish"`
}

// DivisionTotalDTO is the subtotal row for one CSI division.
type DivisionTotalDTO struct {
	Division                string      `json:"division"`
	DivisionName            string      `json:"division_name"`
	Items                   int         `json:"items"`
	ScheduledValue          aia.Money   `json:"scheduled_value"`
	WorkCompletedPrevious   aia.Money   `json:"work_completed_previous"`
	WorkCompletedThisPeriod aia.Money   `json:"work_completed_this_period"`
	MaterialsStored         aia.Money   `json:"materials_stored"`
	TotalCompletedAndStored aia.Money   `json:"total_completed_and_stored"`
	PercentComplete         aia.Percent `json:"percent_complete"`
	BalanceToFinish         aia.Money   `json:"balance_to_finish"`
}

// StatusChangeDTO is one status history entry.
type StatusChangeDTO struct {
	Seq   int       `json:"seq"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor,omitempty"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

// VerifyResponse reports the result of re-verifying a stored application.
type VerifyResponse struct {
	OK         bool       `json:"ok"`
	Field      string     `json:"field,omitempty"`
	ItemNumber string     `json:"item_number,omitempty"`
	Stored     *aia.Money `json:"stored,omitempty"`
	Computed   *aia.Money `json:"computed,omitempty"`

	StoredPercent   *aia.Percent `json:"stored_percent,omitempty"`
	ComputedPercent *aia.Percent `json:"computed_percent,omitempty"`

	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ValidationDetail names one field that failed request validation.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateApplicationRequest creates a draft application.
type CreateApplicationRequest struct {
	ProjectID                string            `json:"project_id" validate:"required,max=64"`
	PeriodTo                 string            `json:"period_to" validate:"omitempty,datetime=2006-01-02"`
	OriginalContractSum      aia.Money         `json:"original_contract_sum"`
	NetChangeByChangeOrders  aia.Money         `json:"net_change_by_change_orders"`
	RetainagePercentage      aia.Percent       `json:"retainage_percentage"`
	LessPreviousCertificates aia.Money         `json:"less_previous_certificates"`
	Items                    []LineItemRequest `json:"items" validate:"dive"`
}

// LineItemRequest adds a line item.
type LineItemRequest struct {
	ItemNumber              string    `json:"item_number" validate:"required,max=32"`
	Description             string    `json:"description" validate:"max=256"`
	CSIDivision             string    `json:"csi_division" validate:"required,len=2,numeric"`
	CSIDivisionName         string    `json:"csi_division_name" validate:"max=128"`
	ScheduledValue          aia.Money `json:"scheduled_value"`
	WorkCompletedPrevious   aia.Money `json:"work_completed_previous"`
	WorkCompletedThisPeriod aia.Money `json:"work_completed_this_period"`
	MaterialsStored         aia.Money `json:"materials_stored"`
}

// LineItemPatchRequest edits a line item's per-period inputs.
type LineItemPatchRequest struct {
	ScheduledValue          *aia.Money `json:"scheduled_value"`
	WorkCompletedThisPeriod *aia.Money `json:"work_completed_this_period"`
	MaterialsStored         *aia.Money `json:"materials_stored"`
}

// SummaryPatchRequest edits summary inputs.
type SummaryPatchRequest struct {
	PeriodTo                 *string      `json:"period_to" validate:"omitempty,datetime=2006-01-02"`
	OriginalContractSum      *aia.Money   `json:"original_contract_sum"`
	NetChangeByChangeOrders  *aia.Money   `json:"net_change_by_change_orders"`
	RetainagePercentage      *aia.Percent `json:"retainage_percentage"`
	LessPreviousCertificates *aia.Money   `json:"less_previous_certificates"`
}

// TransitionRequest moves an application along its lifecycle.
type TransitionRequest struct {
	To    string `json:"to" validate:"required,oneof=draft submitted under_review approved rejected paid"`
	Actor string `json:"actor" validate:"max=128"`
	Note  string `json:"note" validate:"max=1024"`
}

// RollForwardRequest creates the next period's application.
type RollForwardRequest struct {
	PeriodTo string `json:"period_to" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// LoadScenarioResponse lists what a scenario created.
type LoadScenarioResponse struct {
	ScenarioID   string   `json:"scenario_id"`
	Applications []string `json:"applications"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func toApplicationDTO(app *aia.Application) ApplicationDTO {
	s := app.Summary
	dto := ApplicationDTO{
		ID:                string(app.ID),
		ProjectID:         app.ProjectID,
		ApplicationNumber: s.ApplicationNumber,
		PeriodTo:          formatDate(s.PeriodTo),
		Status:            string(s.Status),
		Version:           int64(app.Version),
		Summary: SummaryDTO{
			OriginalContractSum:           s.OriginalContractSum,
			NetChangeByChangeOrders:       s.NetChangeByChangeOrders,
			ContractSumToDate:             s.ContractSumToDate,
			TotalCompletedAndStoredToDate: s.TotalCompletedAndStoredToDate,
			RetainagePercentage:           s.RetainagePercentage,
			RetainageAmount:               s.RetainageAmount,
			TotalEarnedLessRetainage:      s.TotalEarnedLessRetainage,
			LessPreviousCertificates:      s.LessPreviousCertificates,
			CurrentPaymentDue:             s.CurrentPaymentDue,
			BalanceToFinish:               s.BalanceToFinish,
		},
		Items:           []LineItemDTO{},
		PercentComplete: app.Rollup().PercentComplete(),
		NextStatuses:    []string{},
		Locked:          !s.Status.AllowsMutation(),
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
		History:         toStatusChangeDTOs(app.History),
	}
	if app.Ledger != nil {
		for _, item := range app.Ledger.Items() {
			dto.Items = append(dto.Items, toLineItemDTO(item))
		}
	}
	for _, next := range s.Status.Next() {
		dto.NextStatuses = append(dto.NextStatuses, string(next))
	}
	return dto
}

func toListItemDTO(app *aia.Application) ApplicationListItemDTO {
	return ApplicationListItemDTO{
		ID:                string(app.ID),
		ProjectID:         app.ProjectID,
		ApplicationNumber: app.Summary.ApplicationNumber,
		PeriodTo:          formatDate(app.Summary.PeriodTo),
		Status:            string(app.Summary.Status),
		Version:           int64(app.Version),
		CurrentPaymentDue: app.Summary.CurrentPaymentDue,
		UpdatedAt:         app.UpdatedAt,
	}
}

func toLineItemDTO(item aia.LineItem) LineItemDTO {
	return LineItemDTO{
		ItemNumber:              item.ItemNumber,
		Description:             item.Description,
		CSIDivision:             item.CSIDivision,
		CSIDivisionName:         item.CSIDivisionName,
		ScheduledValue:          item.ScheduledValue,
		WorkCompletedPrevious:   item.WorkCompletedPrevious,
		WorkCompletedThisPeriod: item.WorkCompletedThisPeriod,
		MaterialsStored:         item.MaterialsStored,
		TotalCompletedAndStored: item.TotalCompletedAndStored,
		PercentComplete:         item.PercentComplete,
		BalanceToFinish:         item.BalanceToFinish,
	}
}

func toDivisionTotalDTO(t aia.DivisionTotal) DivisionTotalDTO {
	return DivisionTotalDTO{
		Division:                t.Division,
		DivisionName:            t.DivisionName,
		Items:                   t.Items,
		ScheduledValue:          t.Rollup.ScheduledValue,
		WorkCompletedPrevious:   t.Rollup.WorkCompletedPrevious,
		WorkCompletedThisPeriod: t.Rollup.WorkCompletedThisPeriod,
		MaterialsStored:         t.Rollup.MaterialsStored,
		TotalCompletedAndStored: t.Rollup.TotalCompletedAndStored,
		PercentComplete:         t.Rollup.PercentComplete(),
		BalanceToFinish:         t.Rollup.BalanceToFinish,
	}
}

func toStatusChangeDTOs(history []aia.StatusChange) []StatusChangeDTO {
	dtos := make([]StatusChangeDTO, 0, len(history))
	for _, h := range history {
		dtos = append(dtos, StatusChangeDTO{
			Seq:   h.Seq,
			From:  string(h.From),
			To:    string(h.To),
			Actor: h.Actor,
			Note:  h.Note,
			At:    h.At,
		})
	}
	return dtos
}

func (r LineItemRequest) toLineItem() aia.LineItem {
	return aia.LineItem{
		ItemNumber:              r.ItemNumber,
		Description:             r.Description,
		CSIDivision:             r.CSIDivision,
		CSIDivisionName:         r.CSIDivisionName,
		ScheduledValue:          r.ScheduledValue,
		WorkCompletedPrevious:   r.WorkCompletedPrevious,
		WorkCompletedThisPeriod: r.WorkCompletedThisPeriod,
		MaterialsStored:         r.MaterialsStored,
	}
}

func (r LineItemPatchRequest) toPatch() aia.LineItemPatch {
	return aia.LineItemPatch{
		ScheduledValue:          r.ScheduledValue,
		WorkCompletedThisPeriod: r.WorkCompletedThisPeriod,
		MaterialsStored:         r.MaterialsStored,
	}
}

func (r SummaryPatchRequest) toPatch() (aia.SummaryPatch, error) {
	patch := aia.SummaryPatch{
		OriginalContractSum:      r.OriginalContractSum,
		NetChangeByChangeOrders:  r.NetChangeByChangeOrders,
		RetainagePercentage:      r.RetainagePercentage,
		LessPreviousCertificates: r.LessPreviousCertificates,
	}
	if r.PeriodTo != nil {
		t, err := time.Parse(dateLayout, *r.PeriodTo)
		if err != nil {
			return patch, err
		}
		patch.PeriodTo = &t
	}
	return patch, nil
}
