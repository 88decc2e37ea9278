/*
handlers.go - HTTP API handlers for the payment application engine

PURPOSE:
  Exposes aia.Service via REST API. Handles HTTP request/response, JSON
  serialization and request validation, and delegates everything else to
  the service.

ENDPOINTS:
  Applications:
    GET    /api/applications                     List (?project_id=, ?status=)
    POST   /api/applications                     Create draft application
    GET    /api/applications/{id}                Summary + continuation sheet
    GET    /api/applications/{id}/divisions      CSI division subtotals
    PUT    /api/applications/{id}/summary        Edit summary inputs
    POST   /api/applications/{id}/items          Add line item
    PATCH  /api/applications/{id}/items/{item}   Edit line item inputs
    DELETE /api/applications/{id}/items/{item}   Remove line item
    POST   /api/applications/{id}/transitions    Change status
    GET    /api/applications/{id}/history        Status history
    POST   /api/applications/{id}/roll-forward   Create next period's application
    GET    /api/applications/{id}/verify         Re-verify stored figures

  Catalog:
    GET    /api/csi/divisions                    MasterFormat divisions

  Scenarios:
    GET    /api/scenarios                        List demo scenarios
    POST   /api/scenarios/load                   Load a demo scenario

OPTIMISTIC CONCURRENCY:
  Every application response carries ETag: "<version>". A mutating request
  may send If-Match with that value; if the application changed since, the
  request fails with 409 stale_write and nothing is written.

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with a machine-readable code:
  - 400: malformed JSON, request validation, invalid_application
  - 404: application_not_found, item_not_found
  - 409: invalid_transition, ledger_locked, not_finalized, stale_write,
         duplicate_application
  - 422: invalid_amount, invalid_line_item, duplicate_item_number
  - 500: reconciliation_mismatch, internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/warp/payapp-engine/aia"
	"github.com/warp/payapp-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all stored data. Both store implementations provide it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *aia.Service
	Templates *factory.TemplateFactory
	Log       zerolog.Logger

	store    Resetter
	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over svc. store is used only by scenario loading.
func NewHandler(svc *aia.Service, store Resetter, log zerolog.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Templates: factory.NewTemplateFactory(),
		Log:       log,
		store:     store,
		validate:  newValidator(),
	}
}

// =============================================================================
// APPLICATION ENDPOINTS
// =============================================================================

// ListApplications returns applications, optionally filtered by project and status.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	filter := aia.ListFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    aia.Status(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status", "invalid_status", filter.Status)
		return
	}

	apps, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result := make([]ApplicationListItemDTO, 0, len(apps))
	for _, app := range apps {
		result = append(result, toListItemDTO(app))
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateApplication creates a draft application.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := aia.CreateApplicationInput{
		ProjectID:                req.ProjectID,
		OriginalContractSum:      req.OriginalContractSum,
		NetChangeByChangeOrders:  req.NetChangeByChangeOrders,
		RetainagePercentage:      req.RetainagePercentage,
		LessPreviousCertificates: req.LessPreviousCertificates,
	}
	if req.PeriodTo != "" {
		t, err := time.Parse(dateLayout, req.PeriodTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid period_to", "invalid_request", err.Error())
			return
		}
		in.PeriodTo = t
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, h.withDivisionName(item.toLineItem()))
	}

	app, err := h.Service.CreateApplication(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusCreated, app)
}

// GetApplication returns the summary and continuation sheet.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.Get(r.Context(), applicationID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// GetDivisions returns per-division subtotals in ascending division order.
func (h *Handler) GetDivisions(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.Get(r.Context(), applicationID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result := []DivisionTotalDTO{}
	if app.Ledger != nil {
		for _, t := range app.Ledger.DivisionTotals() {
			result = append(result, toDivisionTotalDTO(t))
		}
	}
	setETag(w, app.Version)
	writeJSON(w, http.StatusOK, result)
}

// UpdateSummary edits summary inputs.
func (h *Handler) UpdateSummary(w http.ResponseWriter, r *http.Request) {
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	var req SummaryPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_to", "invalid_request", err.Error())
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update", "invalid_request", nil)
		return
	}

	app, err := h.Service.UpdateSummary(r.Context(), applicationID(r), expected, patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// AddLineItem adds a line item to the continuation sheet.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	var req LineItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.Service.AddLineItem(r.Context(), applicationID(r), expected, h.withDivisionName(req.toLineItem()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusCreated, app)
}

// UpdateLineItem edits a line item's per-period inputs.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	var req LineItemPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := req.toPatch()
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update", "invalid_request", nil)
		return
	}

	app, err := h.Service.UpdateLineItem(r.Context(), applicationID(r), expected, chi.URLParam(r, "item"), patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// RemoveLineItem deletes a line item.
func (h *Handler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}

	app, err := h.Service.RemoveLineItem(r.Context(), applicationID(r), expected, chi.URLParam(r, "item"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// TransitionStatus changes the application's status.
func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	app, err := h.Service.TransitionStatus(r.Context(), applicationID(r), expected, aia.Status(req.To), req.Actor, req.Note)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusOK, app)
}

// GetHistory returns the status history, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.Get(r.Context(), applicationID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	setETag(w, app.Version)
	writeJSON(w, http.StatusOK, toStatusChangeDTOs(app.History))
}

// RollForward creates the next period's application from an approved or paid one.
func (h *Handler) RollForward(w http.ResponseWriter, r *http.Request) {
	var req RollForwardRequest
	if !h.decode(w, r, &req) {
		return
	}
	periodTo, err := time.Parse(dateLayout, req.PeriodTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_to", "invalid_request", err.Error())
		return
	}

	app, err := h.Service.RollForward(r.Context(), applicationID(r), periodTo)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeApplication(w, http.StatusCreated, app)
}

// VerifyApplication re-verifies the stored summary against the stored ledger.
// A mismatch is reported in the body with 200; the request itself succeeded.
func (h *Handler) VerifyApplication(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Verify(r.Context(), applicationID(r))

	var mismatch *aia.ReconciliationMismatchError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, VerifyResponse{OK: true})
	case errors.As(err, &mismatch):
		resp := VerifyResponse{
			Field:      mismatch.Field,
			ItemNumber: mismatch.ItemNumber,
			Error:      mismatch.Error(),
		}
		if mismatch.IsPercent() {
			resp.StoredPercent, resp.ComputedPercent = mismatch.StoredPercent, mismatch.ComputedPercent
		} else {
			resp.Stored, resp.Computed = &mismatch.Stored, &mismatch.Computed
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		h.writeDomainError(w, r, err)
	}
}

// ListCSIDivisions returns the MasterFormat catalog.
func (h *Handler) ListCSIDivisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.MasterFormat.Divisions())
}

// =============================================================================
// HELPERS
// =============================================================================

func applicationID(r *http.Request) aia.ApplicationID {
	return aia.ApplicationID(chi.URLParam(r, "id"))
}

// withDivisionName fills the division name from the catalog when omitted.
func (h *Handler) withDivisionName(item aia.LineItem) aia.LineItem {
	if item.CSIDivisionName == "" {
		item.CSIDivisionName = factory.MasterFormat.Name(item.CSIDivision)
	}
	return item
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, aia.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_amount", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_json", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "request validation failed", "invalid_request", validationDetails(err))
		return false
	}
	return true
}

// ifMatch parses the If-Match header into an expected version.
// A missing header or "*" means any version.
func ifMatch(w http.ResponseWriter, r *http.Request) (aia.Version, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return aia.AnyVersion, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, "If-Match must be an application version", "invalid_request", raw)
		return 0, false
	}
	return aia.Version(v), true
}

func setETag(w http.ResponseWriter, v aia.Version) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(int64(v), 10)))
}

func writeApplication(w http.ResponseWriter, status int, app *aia.Application) {
	setETag(w, app.Version)
	writeJSON(w, status, toApplicationDTO(app))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeDomainError maps an engine error to an HTTP status and error code.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	var details any
	var stale *aia.StaleWriteError
	if errors.As(err, &stale) {
		details = map[string]int64{"expected": int64(stale.Expected), "actual": int64(stale.Actual)}
	}
	writeError(w, status, err.Error(), code, details)
}

func statusFor(err error) (int, string) {
	switch aia.KindOf(err) {
	case aia.KindValidation:
		switch {
		case errors.Is(err, aia.ErrInvalidAmount):
			return http.StatusUnprocessableEntity, "invalid_amount"
		case errors.Is(err, aia.ErrDuplicateItemNumber):
			return http.StatusUnprocessableEntity, "duplicate_item_number"
		case errors.Is(err, aia.ErrInvalidLineItem):
			return http.StatusUnprocessableEntity, "invalid_line_item"
		default:
			return http.StatusBadRequest, "invalid_application"
		}
	case aia.KindNotFound:
		if errors.Is(err, aia.ErrItemNotFound) {
			return http.StatusNotFound, "item_not_found"
		}
		return http.StatusNotFound, "application_not_found"
	case aia.KindLifecycle:
		switch {
		case errors.Is(err, aia.ErrLedgerLocked):
			return http.StatusConflict, "ledger_locked"
		case errors.Is(err, aia.ErrNotFinalized):
			return http.StatusConflict, "not_finalized"
		default:
			return http.StatusConflict, "invalid_transition"
		}
	case aia.KindConcurrency:
		if errors.Is(err, aia.ErrDuplicateApplication) {
			return http.StatusConflict, "duplicate_application"
		}
		return http.StatusConflict, "stale_write"
	case aia.KindConsistency:
		return http.StatusInternalServerError, "reconciliation_mismatch"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
