package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/factory"
)

func TestParse_EmptyDocumentIsReferenceModel(t *testing.T) {
	// GIVEN: A document with nothing but braces
	// WHEN: Parsing
	// THEN: The reference variant's model comes back and projects identically

	f := factory.NewModelFactory()
	m, variant, err := f.Parse([]byte(`{}`), factory.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, campaign.DefaultVariant, variant)
	assert.Len(t, m.Segments, 7)

	got, err := engine.New().Project(m)
	require.NoError(t, err)
	want, err := engine.New().Project(campaign.DefaultModel())
	require.NoError(t, err)
	assert.True(t, want.Summary.TotalRevenue.Equal(got.Summary.TotalRevenue))
	assert.True(t, want.Summary.NetProfit.Equal(got.Summary.NetProfit))
	assert.Equal(t, "1841742.5", got.Summary.TotalRevenue.String())
}

func TestParse_OverlayScalarsAndMaps(t *testing.T) {
	f := factory.NewModelFactory()
	m, err := f.ParseJSON(`{
		"parameters": {
			"transaction_fee_net_bps": 150,
			"operating_expenses": {"marketing": 30000},
			"capture": {"kind": "toggle", "mode": "marketShare", "market_share_percent": 10}
		}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "150", m.Params.TransactionFeeNetBps.String())
	assert.Equal(t, "350", m.Params.TransactionFeeTotalBps.String())
	assert.Equal(t, "30000", m.Params.OperatingExpenses[campaign.ExpenseMarketing].String())
	assert.Equal(t, "80000", m.Params.OperatingExpenses[campaign.ExpenseEngineering].String())
	assert.Equal(t, engine.ModeMarketShare, m.Params.Mode())
	assert.Equal(t, "10", m.Params.MarketSharePercent().String())
}

func TestParse_YAMLVariantWithSegmentsAndOverrides(t *testing.T) {
	doc := `
variant: captured-count
strict: true
parameters:
  schedule:
    expense_overrides: {}
    payout_month: "2026-06"
segments:
  - id: usSenate
    primary_count: 119
    general_count: 33
    captured_primary_count: 2
    captured_general_count: 1
    primary_fundraising: 2500000
    general_fundraising: 10000000
`
	m, variant, err := factory.NewModelFactory().Parse([]byte(doc), factory.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, campaign.VariantCapturedCount, variant)
	assert.True(t, m.Strict)
	require.Len(t, m.Segments, 1)
	assert.Equal(t, "U.S. Senate", m.Segments[0].Name)
	assert.Equal(t, engine.CaptureAbsolute, m.Params.Capture.Kind())
	assert.NotNil(t, m.Params.Schedule.ExpenseOverrides)
	assert.Empty(t, m.Params.Schedule.ExpenseOverrides)
	assert.Equal(t, "2026-06", m.Params.Schedule.PayoutMonth)
	assert.Len(t, m.Params.Streams, 3)
}

func TestParse_Errors(t *testing.T) {
	f := factory.NewModelFactory()

	_, err := f.ParseJSON(`{"variant": "nope"}`)
	assert.ErrorIs(t, err, engine.ErrUnknownVariant)

	_, err = f.ParseJSON(`{"parameters": {"capture": {"kind": "lottery"}}}`)
	assert.ErrorIs(t, err, engine.ErrInvalidCaptureModel)

	_, err = f.ParseJSON(`{"parameters": {"capture": {"kind": "toggle", "mode": "both"}}}`)
	assert.ErrorIs(t, err, engine.ErrInvalidCaptureModel)

	_, err = f.ParseJSON(`{not json`)
	assert.Error(t, err)
}

func TestEncode_RoundTripPreservesProjection(t *testing.T) {
	f := factory.NewModelFactory()
	for _, v := range campaign.Variants() {
		for _, format := range []factory.Format{factory.FormatJSON, factory.FormatYAML, factory.FormatHJSON} {
			t.Run(v.Name+"/"+string(format), func(t *testing.T) {
				original := v.Model()
				data, err := f.Encode(original, v.Name, format)
				require.NoError(t, err)

				decoded, variant, err := f.Parse(data, format)
				require.NoError(t, err)
				assert.Equal(t, v.Name, variant)

				a, err := engine.New().Project(original)
				require.NoError(t, err)
				b, err := engine.New().Project(decoded)
				require.NoError(t, err)
				assert.True(t, a.Summary.TotalRevenue.Equal(b.Summary.TotalRevenue), "%s vs %s", a.Summary.TotalRevenue, b.Summary.TotalRevenue)
				assert.Equal(t, a.Revenue.Streams.Keys(), b.Revenue.Streams.Keys())
				assert.True(t, a.Schedule[13].CumulativeCash.Equal(b.Schedule[13].CumulativeCash))
			})
		}
	}
}

func TestLoadFile_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yml")
	require.NoError(t, os.WriteFile(path, []byte("parameters:\n  media_commission_percent: 10\n"), 0o644))

	m, _, err := factory.NewModelFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10", m.Params.MediaCommissionPercent.String())

	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("a.YAML"))
	assert.Equal(t, factory.FormatHJSON, factory.FormatFromPath("a.hjson"))
	assert.Equal(t, factory.FormatJSON, factory.FormatFromPath("a.json"))
}

func TestDecode_CompleteDocumentKeepsRemovals(t *testing.T) {
	// GIVEN: An encoded model with an expense category removed
	// WHEN: Decoding it versus parsing it over defaults
	// THEN: Decode keeps the removal; Parse merges the default back

	f := factory.NewModelFactory()
	m := campaign.DefaultModel()
	delete(m.Params.OperatingExpenses, campaign.ExpenseMarketing)
	data, err := f.Encode(m, campaign.VariantAdvancedMarket, factory.FormatJSON)
	require.NoError(t, err)

	decoded, variant, err := f.Decode(data, factory.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, campaign.VariantAdvancedMarket, variant)
	assert.NotContains(t, decoded.Params.OperatingExpenses, campaign.ExpenseMarketing)
	assert.Len(t, decoded.Segments, 7)

	parsed, _, err := f.Parse(data, factory.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, parsed.Params.OperatingExpenses, campaign.ExpenseMarketing)

	_, _, err = f.Decode([]byte(`{"parameters": {"capture": {"kind": "nope"}}}`), factory.FormatJSON)
	assert.ErrorIs(t, err, engine.ErrInvalidCaptureModel)
}

func TestParse_HandWrittenHJSON(t *testing.T) {
	// GIVEN: An Hjson document with comments, unquoted keys and a trailing comma
	// WHEN: Parsing it
	// THEN: It overlays the defaults exactly like JSON

	doc := `{
  # board scenario
  variant: advanced-market
  parameters: {
    transaction_fee_net_bps: 150
    operating_expenses: {
      marketing: 30000,
    }
    capture: {
      kind: toggle
      mode: marketShare
      market_share_percent: 10
    }
  }
}`
	m, variant, err := factory.NewModelFactory().Parse([]byte(doc), factory.FormatHJSON)
	require.NoError(t, err)

	assert.Equal(t, campaign.VariantAdvancedMarket, variant)
	assert.Equal(t, "150", m.Params.TransactionFeeNetBps.String())
	assert.Equal(t, "30000", m.Params.OperatingExpenses[campaign.ExpenseMarketing].String())
	assert.Equal(t, "80000", m.Params.OperatingExpenses[campaign.ExpenseEngineering].String())
	assert.Equal(t, "10", m.Params.MarketSharePercent().String())

	_, _, err = factory.NewModelFactory().Parse([]byte("{ parameters: "), factory.FormatHJSON)
	assert.Error(t, err)
}

func TestOverlay_KeepsBaseVariant(t *testing.T) {
	// GIVEN: A capture-rate model with a non-default investment
	// WHEN: Overlaying documents with no variant, the same variant and another variant
	// THEN: Only a different variant resets to that variant's defaults

	f := factory.NewModelFactory()
	base, err := campaign.VariantModel(campaign.VariantCaptureRate)
	require.NoError(t, err)
	base.Params.Investor.Investment = base.Params.Investor.Investment.Mul(decimal.NewFromInt(2))

	m, variant, err := f.Overlay([]byte(`{"parameters": {"transaction_fee_net_bps": 120}}`), factory.FormatJSON, base, campaign.VariantCaptureRate)
	require.NoError(t, err)
	assert.Equal(t, campaign.VariantCaptureRate, variant)
	assert.IsType(t, engine.PercentageCapture{}, m.Params.Capture)
	assert.Len(t, m.Params.Streams, len(engine.AllStreams))
	assert.Equal(t, "600000", m.Params.Investor.Investment.String())
	assert.Equal(t, "120", m.Params.TransactionFeeNetBps.String())

	m, _, err = f.Overlay([]byte(`{"variant": "capture-rate"}`), factory.FormatJSON, base, campaign.VariantCaptureRate)
	require.NoError(t, err)
	assert.Equal(t, "600000", m.Params.Investor.Investment.String())

	m, variant, err = f.Overlay([]byte(`{"variant": "advanced-market"}`), factory.FormatJSON, base, campaign.VariantCaptureRate)
	require.NoError(t, err)
	assert.Equal(t, campaign.VariantAdvancedMarket, variant)
	assert.IsType(t, engine.ToggleCapture{}, m.Params.Capture)
	assert.Equal(t, "300000", m.Params.Investor.Investment.String())
}
