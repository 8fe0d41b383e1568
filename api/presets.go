/*
presets.go - Preset scenario loaders for demos and comparisons

PURPOSE:

	Provides ready-made scenarios that populate the store with the
	calculator variants and a few what-if edits of the reference model, so
	a fresh install has something to compare.

AVAILABLE PRESETS:

	base-case:      Reference model, individual mode
	market-share:   Reference model at a 5% global market share
	capture-rate:   Percentage capture, all seven streams
	captured-count: Explicit captured counts, three streams
	lean-launch:    Base case without the marketing and sales budgets

HOW PRESETS WORK:
 1. Resolve the requested preset IDs (all when none are given)
 2. Reset the store (scenarios and run history)
 3. Build each preset's model and save it as a scenario

USAGE VIA API:

	POST /api/presets/load
	{"presets": ["base-case", "market-share"]}

NOTE:

	Loading presets resets the store. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Scenario handlers
  - campaign/variants.go: Variant defaults
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

type preset struct {
	PresetDTO
	build func() engine.Model
}

var presets = []preset{
	{
		PresetDTO: PresetDTO{
			ID:          "base-case",
			Name:        "Base Case",
			Description: "Reference model with captured organizations in individual mode",
			Variant:     campaign.VariantAdvancedMarket,
		},
		build: campaign.DefaultModel,
	},
	{
		PresetDTO: PresetDTO{
			ID:          "market-share",
			Name:        "Market Share 5%",
			Description: "Reference model scaled to a 5% share of the whole market",
			Variant:     campaign.VariantAdvancedMarket,
		},
		build: func() engine.Model {
			m := campaign.DefaultModel()
			m.Params = m.Params.WithMode(engine.ModeMarketShare)
			return m
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "capture-rate",
			Name:        "Capture Rate",
			Description: "A percentage of every segment with all seven revenue streams",
			Variant:     campaign.VariantCaptureRate,
		},
		build: variantBuilder(campaign.VariantCaptureRate),
	},
	{
		PresetDTO: PresetDTO{
			ID:          "captured-count",
			Name:        "Captured Count",
			Description: "Explicit captured counts with media, SaaS and transaction fees",
			Variant:     campaign.VariantCapturedCount,
		},
		build: variantBuilder(campaign.VariantCapturedCount),
	},
	{
		PresetDTO: PresetDTO{
			ID:          "lean-launch",
			Name:        "Lean Launch",
			Description: "Base case without the marketing and sales budgets",
			Variant:     campaign.VariantAdvancedMarket,
		},
		build: func() engine.Model {
			m := campaign.DefaultModel()
			delete(m.Params.OperatingExpenses, campaign.ExpenseMarketing)
			delete(m.Params.OperatingExpenses, campaign.ExpenseSalesGrowth)
			return m
		},
	},
}

func variantBuilder(name string) func() engine.Model {
	return func() engine.Model {
		m, err := campaign.VariantModel(name)
		if err != nil {
			panic(err) // registry names are constants
		}
		return m
	}
}

func findPreset(id string) (preset, error) {
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return preset{}, fmt.Errorf("%w: preset %q", engine.ErrUnknownVariant, id)
}

// =============================================================================
// PRESET HANDLERS
// =============================================================================

// ListPresets returns the available presets.
// GET /api/presets
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	dtos := make([]PresetDTO, len(presets))
	for i, p := range presets {
		dtos[i] = p.PresetDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadPresets resets the store and saves the requested presets.
// POST /api/presets/load
func (h *Handler) LoadPresets(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records, err := h.LoadPresetScenarios(r.Context(), req.Presets)
	if err != nil {
		h.writeFailure(w, "Failed to load presets", err)
		return
	}

	dtos := make([]ScenarioDTO, len(records))
	for i, rec := range records {
		dtos[i] = toScenarioDTO(rec, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadPresetScenarios resets the store and saves the presets named by ids,
// or every preset when ids is empty. Unknown IDs fail before anything is
// reset.
func (h *Handler) LoadPresetScenarios(ctx context.Context, ids []string) ([]engine.ScenarioRecord, error) {
	selected := presets
	if len(ids) > 0 {
		selected = make([]preset, 0, len(ids))
		for _, id := range ids {
			p, err := findPreset(id)
			if err != nil {
				return nil, err
			}
			selected = append(selected, p)
		}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}

	records := make([]engine.ScenarioRecord, 0, len(selected))
	for _, p := range selected {
		rec, err := h.saveModel(ctx, engine.ScenarioRecord{Name: p.Name}, p.build(), p.Variant)
		if err != nil {
			return nil, fmt.Errorf("save preset %s: %w", p.ID, err)
		}
		records = append(records, rec)
	}

	h.Logger.Info("presets loaded", "count", len(records))
	return records, nil
}
