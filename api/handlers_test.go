/*
handlers_test.go - Tests for API handlers

Tests for:
- Stateless computation (compute, schedule, defaults, variants)
- Scenario lifecycle (create, edit, project, runs, delete)
- Workbook export
- Preset loading
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/proforma-engine/export"
	"github.com/warp/proforma-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestRouter(t *testing.T) (*chi.Mux, *Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, nil)
	return NewRouter(h, nil), h
}

func do(t *testing.T, router http.Handler, method, path, body string, contentType ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType[0])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func streamAmount(p ProjectionDTO, key string) float64 {
	for _, s := range p.Streams {
		if s.Key == key {
			return s.Amount
		}
	}
	return -1
}

func createScenario(t *testing.T, router http.Handler, body string) ScenarioDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ScenarioDTO](t, rec)
}

// =============================================================================
// CALCULATOR
// =============================================================================

func TestCompute_EmptyDocumentIsReferenceModel(t *testing.T) {
	// GIVEN: The reference defaults (empty body)
	// WHEN: Computing
	// THEN: Headline figures match the reference calculator

	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/compute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[ProjectionDTO](t, rec)
	assert.Len(t, p.Streams, 5)
	assert.InDelta(t, 1841742.5, p.Summary.TotalRevenue, 1e-6)
	assert.InDelta(t, 1890000, p.Summary.OperatingCosts, 1e-6)
	assert.InDelta(t, -48257.5, p.Summary.NetProfit, 1e-6)
	assert.InDelta(t, 600000, p.Summary.Payout, 1e-6)
	assert.Equal(t, "minimum_guarantee", p.Summary.PayoutRule)
	assert.True(t, p.Summary.GuaranteeApplied)
	assert.InDelta(t, 100, p.Summary.ROI, 1e-9)
	assert.InDelta(t, 521812.5, streamAmount(p, "mediaCommissions"), 1e-6)
	assert.Equal(t, int64(19865), p.Organizations.Addressable)
	assert.Equal(t, int64(201), p.Organizations.Effective)
	assert.Len(t, p.Schedule, 14)
	assert.Len(t, p.Quarters, 5)
	assert.Len(t, p.Segments, 7)
	assert.Empty(t, p.RunID)

	var shares float64
	for _, s := range p.Streams {
		shares += s.SharePercent
	}
	assert.InDelta(t, 100, shares, 1e-6)
}

func TestCompute_MarketShareDocument(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"parameters": {"capture": {"kind": "toggle", "mode": "marketShare", "market_share_percent": 5}}}`

	rec := do(t, router, http.MethodPost, "/api/compute", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[ProjectionDTO](t, rec)
	assert.InDelta(t, 1751737.5, streamAmount(p, "transactionFees"), 1e-6)
	assert.InDelta(t, 1313803.125, streamAmount(p, "mediaCommissions"), 1e-6)
	assert.InDelta(t, 17500, streamAmount(p, "contractorConsultantGmv"), 1e-6)
	assert.Equal(t, int64(993), p.Organizations.Effective)
}

func TestCompute_YAMLDocument(t *testing.T) {
	// GIVEN: A YAML document selecting the capture-rate variant
	// WHEN: Posting it with a YAML content type
	// THEN: All seven streams are computed

	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/compute", "variant: capture-rate\n", "application/yaml")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[ProjectionDTO](t, rec)
	assert.Len(t, p.Streams, 7)
}

func TestCompute_BadDocuments(t *testing.T) {
	router, _ := newTestRouter(t)

	for name, body := range map[string]string{
		"syntax":          `{"parameters":`,
		"unknown variant": `{"variant": "moonshot"}`,
		"bad capture":     `{"parameters": {"capture": {"kind": "lottery"}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/compute", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestCompute_StrictQueryValidates(t *testing.T) {
	// GIVEN: A document with a negative expense
	// WHEN: Computing leniently and then with ?strict=true
	// THEN: Lenient clamps and succeeds; strict names the field

	router, _ := newTestRouter(t)
	body := `{"parameters": {"operating_expenses": {"engineering": -5}}}`

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/compute", body).Code)

	rec := do(t, router, http.MethodPost, "/api/compute?strict=true", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "operatingExpenses.engineering", decode[ErrorResponse](t, rec).Field)
}

func TestCompute_HandlerStrict(t *testing.T) {
	router, h := newTestRouter(t)
	h.Strict = true

	rec := do(t, router, http.MethodPost, "/api/compute", `{"parameters": {"transaction_fee_net_bps": 900}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComputeSchedule(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/schedule", `{
		"annual_revenue": 1000000,
		"monthly_operating_expense": 150000,
		"expense_overrides": {}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[ScheduleDTO](t, rec)
	require.Len(t, s.Months, 14)
	assert.Len(t, s.Quarters, 5)
	assert.InDelta(t, 2095000, s.TotalRevenue, 1e-6)
	assert.InDelta(t, 2.095, s.MultiplierSum, 1e-9)
	assert.Equal(t, "2025-10", s.Months[0].Key)
	for _, m := range s.Months {
		assert.False(t, m.ExpenseOverridden, m.Key)
		assert.InDelta(t, 150000, m.Expenses, 1e-9)
	}
}

func TestComputeSchedule_DefaultOverridesAndPayout(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/schedule", `{
		"annual_revenue": 1000000,
		"monthly_operating_expense": 150000,
		"payout": 600000
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s := decode[ScheduleDTO](t, rec)
	assert.True(t, s.Months[0].ExpenseOverridden)
	assert.InDelta(t, 600000, s.Months[13].InvestorPayout, 1e-9)
	assert.Zero(t, s.Months[12].InvestorPayout)
}

func TestComputeSchedule_OutsideCalendar(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{
		`{"payout_month": "2030-01"}`,
		`{"expense_overrides": {"2024-01": 10}}`,
	} {
		rec := do(t, router, http.MethodPost, "/api/schedule", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestListVariantsAndDefaults(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/variants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	variants := decode[[]VariantDTO](t, rec)
	require.Len(t, variants, 3)
	assert.Equal(t, "advanced-market", variants[0].Name)
	assert.Equal(t, "toggle", variants[0].Capture)
	assert.Equal(t, "percentage", variants[1].Capture)
	assert.Len(t, variants[1].Streams, 7)

	rec = do(t, router, http.MethodGet, "/api/defaults?variant=captured-count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"variant":"captured-count"`)

	rec = do(t, router, http.MethodGet, "/api/defaults?variant=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioLifecycle(t *testing.T) {
	// GIVEN: A saved reference scenario
	// WHEN: Switching mode, projecting, editing expenses and deleting
	// THEN: Versions advance, runs are recorded and deletion is final

	router, _ := newTestRouter(t)

	sc := createScenario(t, router, `{"name": "Base"}`)
	assert.Equal(t, 1, sc.Version)
	assert.Equal(t, "advanced-market", sc.Variant)
	require.NotNil(t, sc.Model)

	rec := do(t, router, http.MethodPost, "/api/scenarios/"+sc.ID+"/mode", `{"mode": "marketShare"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	switched := decode[ScenarioDTO](t, rec)
	assert.Equal(t, 2, switched.Version)
	assert.Equal(t, "marketShare", switched.Model.Parameters.Capture.Mode)
	assert.InDelta(t, 5, switched.Model.Parameters.Capture.MarketSharePercent, 1e-9)

	rec = do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/projection", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[ProjectionDTO](t, rec)
	assert.NotEmpty(t, p.RunID)
	assert.InDelta(t, 1751737.5, streamAmount(p, "transactionFees"), 1e-6)

	rec = do(t, router, http.MethodPatch, "/api/scenarios/"+sc.ID+"/expenses",
		`{"set": {"engineering": 0, "legal": 1000}, "remove": ["marketing"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[ScenarioDTO](t, rec)
	assert.Equal(t, 3, edited.Version)
	assert.Contains(t, edited.Model.Parameters.OperatingExpenses, "legal")
	assert.NotContains(t, edited.Model.Parameters.OperatingExpenses, "marketing")
	assert.Zero(t, edited.Model.Parameters.OperatingExpenses["engineering"])

	do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/projection", "")
	rec = do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunDTO](t, rec)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].ScenarioVersion)
	assert.Equal(t, p.RunID, runs[1].ID)

	rec = do(t, router, http.MethodDelete, "/api/scenarios/"+sc.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/runs", "").Code)
}

func TestCreateScenario_WithModel(t *testing.T) {
	router, _ := newTestRouter(t)

	sc := createScenario(t, router, `{"name": "Rates", "model": {"variant": "capture-rate"}}`)
	assert.Equal(t, "capture-rate", sc.Variant)
	assert.Equal(t, "percentage", sc.Model.Parameters.Capture.Kind)

	rec := do(t, router, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Model)
}

func TestCreateScenario_Rejects(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/scenarios", `{"name": ""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/scenarios", `{"name": "x", "model": {"variant": "nope"}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/scenarios", `not json`).Code)
}

func TestUpdateScenario(t *testing.T) {
	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Before"}`)

	rec := do(t, router, http.MethodPut, "/api/scenarios/"+sc.ID,
		`{"model": {"parameters": {"investor": {"investment": 500000}}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "Before", updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.InDelta(t, 500000, updated.Model.Parameters.Investor.Investment, 1e-9)

	rec = do(t, router, http.MethodPut, "/api/scenarios/missing", `{"name": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateScenario_RenameKeepsModel(t *testing.T) {
	// GIVEN: A capture-rate scenario
	// WHEN: Renaming it, then editing one parameter without naming a variant
	// THEN: The variant, capture model and streams survive both updates

	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Rates", "model": {"variant": "capture-rate"}}`)
	require.Equal(t, "percentage", sc.Model.Parameters.Capture.Kind)
	require.Len(t, sc.Model.Parameters.Streams, 7)

	rec := do(t, router, http.MethodPut, "/api/scenarios/"+sc.ID, `{"name": "Rates renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	renamed := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "Rates renamed", renamed.Name)
	assert.Equal(t, "capture-rate", renamed.Variant)
	assert.Equal(t, "percentage", renamed.Model.Parameters.Capture.Kind)
	assert.Len(t, renamed.Model.Parameters.Streams, 7)

	rec = do(t, router, http.MethodPut, "/api/scenarios/"+sc.ID, `{"model": {"parameters": {"sms_profit_per_message": 0.002}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "capture-rate", edited.Variant)
	assert.Equal(t, "percentage", edited.Model.Parameters.Capture.Kind)
	assert.InDelta(t, 1, edited.Model.Parameters.Capture.Rates["localSmall"], 1e-9)
	assert.InDelta(t, 0.002, edited.Model.Parameters.SMSProfitPerMessage, 1e-12)

	rec = do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "capture-rate", stored.Variant)
	assert.Equal(t, 3, stored.Version)
}

func TestSetMode_Rejects(t *testing.T) {
	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Base"}`)

	rec := do(t, router, http.MethodPost, "/api/scenarios/"+sc.ID+"/mode", `{"mode": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/missing/mode", `{"mode": "individual"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateExpenses_RejectsNegative(t *testing.T) {
	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Base"}`)

	rec := do(t, router, http.MethodPatch, "/api/scenarios/"+sc.ID+"/expenses", `{"set": {"engineering": -1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExportScenario(t *testing.T) {
	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Board Deck"}`)

	rec := do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "board-deck.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), export.SheetSummary)
	assert.Contains(t, f.GetSheetList(), export.SheetMonthly)
}

func TestExportModel(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/export", `{"variant": "captured-count"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "captured-count.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

// =============================================================================
// PRESETS
// =============================================================================

func TestLoadPresets(t *testing.T) {
	// GIVEN: A store holding one user scenario
	// WHEN: Loading every preset
	// THEN: The store is reset and holds exactly the presets

	router, _ := newTestRouter(t)
	createScenario(t, router, `{"name": "Scratch"}`)

	rec := do(t, router, http.MethodPost, "/api/presets/load", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, loaded, len(presets))

	rec = do(t, router, http.MethodGet, "/api/scenarios", "")
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(presets))
	for _, sc := range list {
		assert.NotEqual(t, "Scratch", sc.Name)
	}
}

func TestLoadPresets_Selected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/presets/load", `{"presets": ["market-share", "lean-launch"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[[]ScenarioDTO](t, rec)
	require.Len(t, loaded, 2)

	// Lean launch drops two expense categories.
	rec = do(t, router, http.MethodGet, "/api/scenarios/"+loaded[1].ID, "")
	lean := decode[ScenarioDTO](t, rec)
	assert.NotContains(t, lean.Model.Parameters.OperatingExpenses, "marketing")
	assert.NotContains(t, lean.Model.Parameters.OperatingExpenses, "salesGrowth")
}

func TestLoadPresets_UnknownLeavesStoreAlone(t *testing.T) {
	router, _ := newTestRouter(t)
	createScenario(t, router, `{"name": "Keep me"}`)

	rec := do(t, router, http.MethodPost, "/api/presets/load", `{"presets": ["base-case", "nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := decode[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "Keep me", list[0].Name)
}

func TestListPresets(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/presets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]PresetDTO](t, rec)
	require.Len(t, list, 5)
	assert.Equal(t, "base-case", list[0].ID)
}

func TestHealthAndIndex(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/health", "").Code)
	rec := do(t, router, http.MethodGet, "/", "")
	assert.Contains(t, rec.Body.String(), "Pro-Forma Engine API")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "proforma", fileName("  "))
	assert.Equal(t, "q3-plan--draft-", fileName("Q3 Plan (draft)"))
}

// =============================================================================
// REPORT
// =============================================================================

func TestGetReport(t *testing.T) {
	router, _ := newTestRouter(t)
	sc := createScenario(t, router, `{"name": "Board Memo"}`)

	rec := do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1>Board Memo</h1>")
	assert.Contains(t, rec.Body.String(), "$1,841,742.50")

	rec = do(t, router, http.MethodGet, "/api/scenarios/"+sc.ID+"/report?format=md", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Board Memo\n"))

	rec = do(t, router, http.MethodGet, "/api/scenarios/missing/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
