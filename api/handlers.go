/*
handlers.go - HTTP API handlers for the pro-forma calculator

PURPOSE:
  Exposes the projection engine via REST API. Handles HTTP request/response,
  model document decoding, and delegates the arithmetic to the engine.

ENDPOINTS:
  Calculator:
    GET    /api/variants                    List calculator variants
    GET    /api/defaults?variant=           Default model document
    POST   /api/compute[?strict=true]       Project a model document
    POST   /api/schedule                    Monthly allocator only
    POST   /api/export                      Project a document as .xlsx

  Scenarios:
    GET    /api/scenarios                   List saved scenarios
    POST   /api/scenarios                   Save a scenario
    GET    /api/scenarios/{id}              Scenario with its model
    PUT    /api/scenarios/{id}              Replace name and model
    DELETE /api/scenarios/{id}              Delete scenario and runs
    POST   /api/scenarios/{id}/mode         Switch calculation mode
    PATCH  /api/scenarios/{id}/expenses     Edit operating expenses
    GET    /api/scenarios/{id}/projection   Project and record a run
    GET    /api/scenarios/{id}/runs         Run history, newest first
    GET    /api/scenarios/{id}/export       Projection as .xlsx
    GET    /api/scenarios/{id}/report       Projection memo (HTML, ?format=md)

  Presets:
    GET    /api/presets                     List presets
    POST   /api/presets/load                Reset and load presets

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Scenario persistence
  - Engine: Projection arithmetic
  - Factory: Model document to engine.Model conversion
  - Exporter: Workbook rendering
  - Reporter: Markdown/HTML memo rendering

REQUEST FLOW:
  1. Parse HTTP request
  2. Decode the model document over its variant's defaults
  3. Call the engine
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Undecodable documents, validation errors
  - 404: Scenario not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - presets.go: Preset scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/export"
	"github.com/warp/proforma-engine/factory"
	"github.com/warp/proforma-engine/report"
)

// maxBodyBytes bounds model documents and request bodies.
const maxBodyBytes = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    engine.ScenarioStore
	Engine   *engine.Engine
	Factory  *factory.ModelFactory
	Exporter *export.Exporter
	Reporter *report.Renderer
	Logger   *slog.Logger

	// Strict validates every model before projecting it, whatever the
	// document or query says.
	Strict bool
}

// NewHandler creates a new handler with the given store.
func NewHandler(store engine.ScenarioStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Store:    store,
		Engine:   engine.New(),
		Factory:  factory.NewModelFactory(),
		Exporter: export.NewExporter(),
		Reporter: report.NewRenderer(),
		Logger:   logger,
	}
}

// =============================================================================
// CALCULATOR HANDLERS
// =============================================================================

// ListVariants returns the calculator variants.
// GET /api/variants
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants := campaign.Variants()
	dtos := make([]VariantDTO, 0, len(variants))
	for _, v := range variants {
		m := v.Model()
		streams := make([]string, 0, len(m.Params.Streams))
		for _, k := range m.Params.EnabledStreams() {
			streams = append(streams, string(k))
		}
		dtos = append(dtos, VariantDTO{
			Name:        v.Name,
			Title:       v.Title,
			Description: v.Description,
			Capture:     string(m.Params.Capture.Kind()),
			Streams:     streams,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDefaults returns a variant's complete default document.
// GET /api/defaults?variant=capture-rate
func (h *Handler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	v, err := campaign.LookupVariant(r.URL.Query().Get("variant"))
	if err != nil {
		h.writeFailure(w, "Unknown variant", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(v.Model(), v.Name))
}

// Compute projects the posted model document without storing anything.
// POST /api/compute
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	m, _, err := h.decodeModel(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid model document", err)
		return
	}

	p, err := h.project(r, m)
	if err != nil {
		h.writeFailure(w, "Failed to compute projection", err)
		return
	}
	writeJSON(w, http.StatusOK, NewProjectionDTO(p))
}

// ComputeSchedule runs the monthly allocator on its own.
// POST /api/schedule
func (h *Handler) ComputeSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cal := h.Engine.Calendar
	if req.PayoutMonth != "" && !cal.Has(req.PayoutMonth) {
		writeError(w, http.StatusBadRequest, "Payout month outside the calendar",
			fmt.Errorf("%w: %q", engine.ErrInvalidParameter, req.PayoutMonth))
		return
	}

	var overrides map[string]decimal.Decimal
	if req.ExpenseOverrides != nil {
		overrides = make(map[string]decimal.Decimal, len(req.ExpenseOverrides))
		for k, v := range req.ExpenseOverrides {
			if !cal.Has(k) {
				writeError(w, http.StatusBadRequest, "Expense override outside the calendar",
					fmt.Errorf("%w: %q", engine.ErrInvalidParameter, k))
				return
			}
			overrides[k] = decimal.NewFromFloat(v)
		}
	}

	alloc := engine.Allocator{
		Calendar:         cal,
		ExpenseOverrides: overrides,
		StartingCash:     decimal.NewFromFloat(req.StartingCash),
		Payout:           decimal.NewFromFloat(req.Payout),
		PayoutMonth:      req.PayoutMonth,
	}
	rows := alloc.Allocate(decimal.NewFromFloat(req.AnnualRevenue), decimal.NewFromFloat(req.MonthlyOperatingExpense))

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Revenue)
	}
	writeJSON(w, http.StatusOK, ScheduleDTO{
		Months:        toMonthlyDTOs(rows),
		Quarters:      toQuarterDTOs(engine.Quarters(rows)),
		TotalRevenue:  toFloat(total),
		MultiplierSum: toFloat(cal.MultiplierSum()),
	})
}

// ExportModel renders the posted model document's projection as a workbook.
// POST /api/export
func (h *Handler) ExportModel(w http.ResponseWriter, r *http.Request) {
	m, variant, err := h.decodeModel(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid model document", err)
		return
	}
	h.writeWorkbook(w, r, m, variant)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns saved scenarios without their models.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListScenarios(r.Context())
	if err != nil {
		h.writeFailure(w, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, len(records))
	for i, rec := range records {
		dtos[i] = toScenarioDTO(rec, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario saves a new scenario.
// POST /api/scenarios
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	m, variant, err := h.parseDocument(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid model document", err)
		return
	}

	rec, err := h.saveModel(r.Context(), engine.ScenarioRecord{Name: req.Name}, m, variant)
	if err != nil {
		h.writeFailure(w, "Failed to save scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.scenarioDTO(rec, m))
}

// GetScenario returns one scenario with its model document.
// GET /api/scenarios/{id}
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	rec, m, err := h.loadScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, h.scenarioDTO(rec, m))
}

// UpdateScenario renames a scenario and edits its model. An omitted name or
// model keeps the current one. A model document without a variant overlays
// the stored model; naming a different variant starts from its defaults.
// PUT /api/scenarios/{id}
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, m, err := h.loadScenario(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}

	var req CreateScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) != "" {
		rec.Name = req.Name
	}

	// An omitted model keeps the stored one; a partial one edits it.
	variant := rec.Variant
	if !emptyDocument(req.Model) {
		m, variant, err = h.Factory.Overlay(req.Model, factory.FormatJSON, m, rec.Variant)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid model document", err)
			return
		}
	}

	rec, err = h.saveModel(ctx, rec, m, variant)
	if err != nil {
		h.writeFailure(w, "Failed to save scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, h.scenarioDTO(rec, m))
}

// DeleteScenario removes a scenario and its runs.
// DELETE /api/scenarios/{id}
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteScenario(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, "Failed to delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMode switches a scenario between individual and market-share mode.
// The market share resets to the mode's default.
// POST /api/scenarios/{id}/mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mode := engine.Mode(req.Mode)
	if !mode.IsValid() {
		writeError(w, http.StatusBadRequest, "mode must be individual or marketShare",
			fmt.Errorf("%w: mode %q", engine.ErrInvalidParameter, req.Mode))
		return
	}

	h.editScenario(w, r, func(m *engine.Model) error {
		m.Params = m.Params.WithMode(mode)
		return nil
	})
}

// UpdateExpenses sets and removes operating-expense categories.
// PATCH /api/scenarios/{id}/expenses
func (h *Handler) UpdateExpenses(w http.ResponseWriter, r *http.Request) {
	var req ExpensesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	for name, v := range req.Set {
		if v < 0 {
			writeError(w, http.StatusBadRequest, "Expenses must be non-negative",
				fmt.Errorf("%w: %s = %v", engine.ErrInvalidParameter, name, v))
			return
		}
	}

	h.editScenario(w, r, func(m *engine.Model) error {
		expenses := m.Params.OperatingExpenses.Clone()
		if expenses == nil {
			expenses = engine.ExpenseMap{}
		}
		for name, v := range req.Set {
			expenses[name] = decimal.NewFromFloat(v)
		}
		for _, name := range req.Remove {
			delete(expenses, name)
		}
		m.Params.OperatingExpenses = expenses
		return nil
	})
}

// GetProjection projects a saved scenario and records the run.
// GET /api/scenarios/{id}/projection[?strict=true]
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, m, err := h.loadScenario(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}

	p, err := h.project(r, m)
	if err != nil {
		h.writeFailure(w, "Failed to compute projection", err)
		return
	}

	dto := NewProjectionDTO(p)
	dto.RunID = uuid.NewString()
	result, err := json.Marshal(dto)
	if err != nil {
		h.writeFailure(w, "Failed to encode projection", err)
		return
	}

	run := engine.RunRecord{
		ID:              dto.RunID,
		ScenarioID:      rec.ID,
		ScenarioVersion: rec.Version,
		TotalRevenue:    p.Summary.TotalRevenue,
		NetProfit:       p.Summary.NetProfit,
		Payout:          p.Summary.Investor.Payout,
		PayoutRule:      p.Summary.Investor.Rule,
		ResultJSON:      string(result),
		CreatedAt:       time.Now(),
	}
	if err := h.Store.AppendRun(ctx, run); err != nil {
		h.writeFailure(w, "Failed to record run", err)
		return
	}

	h.Logger.Info("projection recorded",
		"scenario", rec.ID, "version", rec.Version, "run", run.ID,
		"total_revenue", run.TotalRevenue.String(), "payout_rule", run.PayoutRule)
	writeJSON(w, http.StatusOK, dto)
}

// ListRuns returns a scenario's run history, newest first.
// GET /api/scenarios/{id}/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportScenario renders a saved scenario's projection as a workbook.
// GET /api/scenarios/{id}/export
func (h *Handler) ExportScenario(w http.ResponseWriter, r *http.Request) {
	rec, m, err := h.loadScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}
	h.writeWorkbook(w, r, m, rec.Name)
}

// GetReport renders a saved scenario's projection as an HTML memo, or as
// Markdown with ?format=md.
// GET /api/scenarios/{id}/report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rec, m, err := h.loadScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}
	p, err := h.project(r, m)
	if err != nil {
		h.writeFailure(w, "Failed to compute projection", err)
		return
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, h.Reporter.Markdown(rec.Name, p, m))
		return
	}

	var buf bytes.Buffer
	if err := h.Reporter.HTML(&buf, rec.Name, p, m); err != nil {
		h.writeFailure(w, "Failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeModel reads a model document from the body. YAML is accepted when
// the Content-Type says so; an empty body is the default variant.
func (h *Handler) decodeModel(r *http.Request) (engine.Model, string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return engine.Model{}, "", err
	}
	format := factory.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = factory.FormatYAML
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	return h.Factory.Parse(data, format)
}

func (h *Handler) parseDocument(raw json.RawMessage) (engine.Model, string, error) {
	if emptyDocument(raw) {
		raw = json.RawMessage("{}")
	}
	return h.Factory.Parse(raw, factory.FormatJSON)
}

func emptyDocument(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// project runs the engine, validating first when the handler, the model or
// the ?strict query asks for it.
func (h *Handler) project(r *http.Request, m engine.Model) (*engine.Projection, error) {
	if strict, err := strconv.ParseBool(r.URL.Query().Get("strict")); err == nil && strict {
		m.Strict = true
	}
	m.Strict = m.Strict || h.Strict
	return h.Engine.Project(m)
}

func (h *Handler) loadScenario(ctx context.Context, id string) (engine.ScenarioRecord, engine.Model, error) {
	rec, err := h.Store.GetScenario(ctx, id)
	if err != nil {
		return engine.ScenarioRecord{}, engine.Model{}, err
	}
	m, _, err := h.Factory.Decode([]byte(rec.ModelJSON), factory.FormatJSON)
	if err != nil {
		return engine.ScenarioRecord{}, engine.Model{}, fmt.Errorf("scenario %s has an unreadable model: %w", id, err)
	}
	return rec, m, nil
}

// saveModel stores m under rec, validating first in strict mode.
func (h *Handler) saveModel(ctx context.Context, rec engine.ScenarioRecord, m engine.Model, variant string) (engine.ScenarioRecord, error) {
	if h.Strict || m.Strict {
		if err := h.Engine.Validate(m); err != nil {
			return engine.ScenarioRecord{}, err
		}
	}
	doc, err := h.Factory.Encode(m, variant, factory.FormatJSON)
	if err != nil {
		return engine.ScenarioRecord{}, err
	}
	rec.Variant = variant
	rec.ModelJSON = string(doc)
	return h.Store.SaveScenario(ctx, rec)
}

// editScenario loads a scenario, applies edit and saves the result.
func (h *Handler) editScenario(w http.ResponseWriter, r *http.Request, edit func(*engine.Model) error) {
	ctx := r.Context()
	rec, m, err := h.loadScenario(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, "Failed to get scenario", err)
		return
	}
	if err := edit(&m); err != nil {
		h.writeFailure(w, "Failed to edit scenario", err)
		return
	}
	rec, err = h.saveModel(ctx, rec, m, rec.Variant)
	if err != nil {
		h.writeFailure(w, "Failed to save scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, h.scenarioDTO(rec, m))
}

func (h *Handler) scenarioDTO(rec engine.ScenarioRecord, m engine.Model) ScenarioDTO {
	doc := h.Factory.ToJSON(m, rec.Variant)
	return toScenarioDTO(rec, &doc)
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, r *http.Request, m engine.Model, name string) {
	p, err := h.project(r, m)
	if err != nil {
		h.writeFailure(w, "Failed to compute projection", err)
		return
	}

	// Rendered into memory first so a failure can still be a JSON error.
	var buf bytes.Buffer
	if err := h.Exporter.Write(&buf, p, m); err != nil {
		h.writeFailure(w, "Failed to render workbook", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(name)+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("workbook write interrupted", "error", err)
	}
}

func fileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "proforma"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeFailure maps domain errors to a status: not found is 404, invalid
// input is 400, anything else is logged and returned as 500.
func (h *Handler) writeFailure(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			resp.Field = ve.Field
		}
	}
	writeJSON(w, status, resp)
}
