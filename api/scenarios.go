/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	payment applications. Each scenario creates applications from JSON
	templates and walks them through the lifecycle to show a specific
	feature.

AVAILABLE SCENARIOS:

	first-draft:      One draft application, line items across five divisions
	approved-rollover: Application #1 approved, rolled into draft #2 with new work
	locked-paid:      A paid application; every edit is rejected
	rejected-resubmit: Submitted, rejected, returned to draft and corrected

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Parse the template via factory.TemplateFactory
 3. Create the application through aia.Service
 4. Apply edits and transitions as a user would

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approved-rollover"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: uses Service for every step
  - factory/template.go: template JSON format
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "first-draft",
		Name:        "First Draft",
		Description: "A draft application for a mid-rise project with items across five CSI divisions",
	},
	{
		ID:          "approved-rollover",
		Name:        "Approved and Rolled Forward",
		Description: "Application #1 approved; #2 carries its work forward as previous and bills new work",
	},
	{
		ID:          "locked-paid",
		Name:        "Paid and Locked",
		Description: "A paid application whose ledger and summary can no longer change",
	},
	{
		ID:          "rejected-resubmit",
		Name:        "Rejected and Resubmitted",
		Description: "An overbilled application is rejected, corrected in draft and resubmitted",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler) ([]aia.ApplicationID, error)

var scenarioLoaders = map[string]scenarioLoader{
	"first-draft":       loadFirstDraftScenario,
	"approved-rollover": loadApprovedRolloverScenario,
	"locked-paid":       loadLockedPaidScenario,
	"rejected-resubmit": loadRejectedResubmitScenario,
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the id of the last loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids, err := h.LoadScenarioByID(r.Context(), req.ScenarioID)
	if err != nil {
		if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
			writeError(w, http.StatusBadRequest, "unknown scenario", "unknown_scenario", req.ScenarioID)
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	resp := LoadScenarioResponse{ScenarioID: req.ScenarioID, Applications: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.Applications = append(resp.Applications, string(id))
	}
	writeJSON(w, http.StatusOK, resp)
}

// LoadScenarioByID resets the store and runs the named loader.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) ([]aia.ApplicationID, error) {
	loader, ok := scenarioLoaders[id]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		if err := h.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}
	ids, err := loader(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.Log.Info().Str("scenario", id).Int("applications", len(ids)).Msg("scenario loaded")
	return ids, nil
}

// =============================================================================
// TEMPLATES
// =============================================================================

// harborViewTemplate is a $1.2M mid-rise schedule of values, first period.
const harborViewTemplate = `{
  "project_id": "harbor-view",
  "period_to": "2024-03-31",
  "original_contract_sum": "1200000.00",
  "net_change_by_change_orders": "0.00",
  "retainage_percentage": "10",
  "items": [
    {"item_number": "1", "description": "General conditions",  "csi_division": "01", "scheduled_value": "96000.00",  "work_completed_this_period": "12000.00"},
    {"item_number": "2", "description": "Site clearing",       "csi_division": "31", "scheduled_value": "48000.00",  "work_completed_this_period": "48000.00"},
    {"item_number": "3", "description": "Foundations",         "csi_division": "03", "scheduled_value": "210000.00", "work_completed_this_period": "84000.00", "materials_stored": "15500.00"},
    {"item_number": "4", "description": "Structural steel",    "csi_division": "05", "scheduled_value": "325000.00", "materials_stored": "62000.00"},
    {"item_number": "5", "description": "Electrical rough-in", "csi_division": "26", "scheduled_value": "185000.00"},
    {"item_number": "6", "description": "Plumbing rough-in",   "csi_division": "22", "scheduled_value": "142000.00"},
    {"item_number": "7", "description": "Finishes",            "csi_division": "09", "scheduled_value": "194000.00"}
  ]
}`

// millRaceTemplate is a small tenant fit-out that overbills electrical work.
const millRaceTemplate = `{
  "project_id": "mill-race-fitout",
  "period_to": "2024-05-31",
  "original_contract_sum": "86000.00",
  "retainage_percentage": "5",
  "items": [
    {"item_number": "A1", "description": "Demolition",    "csi_division": "02", "scheduled_value": "9500.00",  "work_completed_this_period": "9500.00"},
    {"item_number": "A2", "description": "Framing",       "csi_division": "09", "scheduled_value": "21000.00", "work_completed_this_period": "10500.00"},
    {"item_number": "A3", "description": "Electrical",    "csi_division": "26", "scheduled_value": "18000.00", "work_completed_this_period": "19250.00"},
    {"item_number": "A4", "description": "Ceilings",      "csi_division": "09", "scheduled_value": "12500.00"},
    {"item_number": "A5", "description": "Doors and hardware", "csi_division": "08", "scheduled_value": "25000.00", "materials_stored": "7300.00"}
  ]
}`

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) createFromTemplate(ctx context.Context, tmpl string) (*aia.Application, error) {
	in, err := h.Templates.ParseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	return h.Service.CreateApplication(ctx, in)
}

func (h *Handler) walk(ctx context.Context, app *aia.Application, actor string, statuses ...aia.Status) (*aia.Application, error) {
	var err error
	for _, to := range statuses {
		app, err = h.Service.TransitionStatus(ctx, app.ID, app.Version, to, actor, "")
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

func loadFirstDraftScenario(ctx context.Context, h *Handler) ([]aia.ApplicationID, error) {
	app, err := h.createFromTemplate(ctx, harborViewTemplate)
	if err != nil {
		return nil, err
	}
	return []aia.ApplicationID{app.ID}, nil
}

func loadApprovedRolloverScenario(ctx context.Context, h *Handler) ([]aia.ApplicationID, error) {
	first, err := h.createFromTemplate(ctx, harborViewTemplate)
	if err != nil {
		return nil, err
	}
	first, err = h.walk(ctx, first, "architect@harbor-view", aia.StatusSubmitted, aia.StatusUnderReview, aia.StatusApproved)
	if err != nil {
		return nil, err
	}

	second, err := h.Service.RollForward(ctx, first.ID, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	for itemNumber, amount := range map[string]string{
		"1": "12000.00",
		"3": "98000.00",
		"4": "140000.00",
		"5": "22500.00",
	} {
		work := aia.MustParseMoney(amount)
		second, err = h.Service.UpdateLineItem(ctx, second.ID, second.Version, itemNumber, aia.LineItemPatch{WorkCompletedThisPeriod: &work})
		if err != nil {
			return nil, err
		}
	}
	return []aia.ApplicationID{first.ID, second.ID}, nil
}

func loadLockedPaidScenario(ctx context.Context, h *Handler) ([]aia.ApplicationID, error) {
	app, err := h.createFromTemplate(ctx, harborViewTemplate)
	if err != nil {
		return nil, err
	}
	app, err = h.walk(ctx, app, "owner@harbor-view",
		aia.StatusSubmitted, aia.StatusUnderReview, aia.StatusApproved, aia.StatusPaid)
	if err != nil {
		return nil, err
	}
	return []aia.ApplicationID{app.ID}, nil
}

func loadRejectedResubmitScenario(ctx context.Context, h *Handler) ([]aia.ApplicationID, error) {
	app, err := h.createFromTemplate(ctx, millRaceTemplate)
	if err != nil {
		return nil, err
	}
	app, err = h.walk(ctx, app, "pm@mill-race", aia.StatusSubmitted, aia.StatusUnderReview)
	if err != nil {
		return nil, err
	}
	app, err = h.Service.TransitionStatus(ctx, app.ID, app.Version, aia.StatusRejected,
		"architect@mill-race", "Electrical billed past its scheduled value")
	if err != nil {
		return nil, err
	}
	app, err = h.Service.TransitionStatus(ctx, app.ID, app.Version, aia.StatusDraft, "pm@mill-race", "")
	if err != nil {
		return nil, err
	}

	corrected := aia.MustParseMoney("18000.00")
	app, err = h.Service.UpdateLineItem(ctx, app.ID, app.Version, "A3", aia.LineItemPatch{WorkCompletedThisPeriod: &corrected})
	if err != nil {
		return nil, err
	}
	app, err = h.Service.TransitionStatus(ctx, app.ID, app.Version, aia.StatusSubmitted, "pm@mill-race", "Resubmitted")
	if err != nil {
		return nil, err
	}
	return []aia.ApplicationID{app.ID}, nil
}
