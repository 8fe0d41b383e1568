/*
Package factory converts model documents (JSON, YAML or Hjson) to engine.Model.

PURPOSE:
  Lets analysts keep scenarios as seed/config files and lets the HTTP
  layer accept and store them. A document names a variant and overrides
  any part of that variant's defaults; absent fields keep the default.

DOCUMENT SCHEMA (YAML shown; JSON and Hjson use the same keys):
  variant: advanced-market
  strict: false
  parameters:
    capture: {kind: toggle, mode: marketShare, market_share_percent: 5}
    transaction_fee_total_bps: 350
    transaction_fee_net_bps: 100
    operating_expenses: {engineering: 80000, marketing: 25000}
    investor: {investment: 300000, profit_share_percent: 15, minimum_payout: 600000}
    schedule: {payout_month: "2026-11", expense_overrides: {"2025-10": 80000}}
    streams: [mediaCommissions, transactionFees]
  segments:
    - id: stateHouse
      primary_count: 4809
      ...

OVERLAY RULES:
  - segments and expense_overrides, when present, replace the variant's
    values wholesale ({} disables the pre-launch overrides)
  - operating_expenses and capture rates merge key by key
  - scalars replace

HJSON:
  Hand-written .hjson files (comments, unquoted keys, trailing commas) are
  converted to JSON first, so they follow the JSON overlay rules exactly.

SEE ALSO:
  - campaign/variants.go: Base models
  - engine/types.go: Target types
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// ModelJSON is the serialized form of an engine.Model.
type ModelJSON struct {
	Variant    string         `json:"variant,omitempty" yaml:"variant,omitempty"`
	Strict     bool           `json:"strict,omitempty" yaml:"strict,omitempty"`
	Parameters ParametersJSON `json:"parameters" yaml:"parameters"`
	Segments   []SegmentJSON  `json:"segments" yaml:"segments"`
}

// SegmentJSON is one organization segment.
type SegmentJSON struct {
	ID                   string     `json:"id" yaml:"id"`
	Name                 string     `json:"name,omitempty" yaml:"name,omitempty"`
	PrimaryCount         int64      `json:"primary_count" yaml:"primary_count"`
	GeneralCount         int64      `json:"general_count" yaml:"general_count"`
	CapturedPrimaryCount int64      `json:"captured_primary_count" yaml:"captured_primary_count"`
	CapturedGeneralCount int64      `json:"captured_general_count" yaml:"captured_general_count"`
	PrimarySpend         float64    `json:"primary_spend" yaml:"primary_spend"`
	GeneralSpend         float64    `json:"general_spend" yaml:"general_spend"`
	PrimaryFundraising   float64    `json:"primary_fundraising" yaml:"primary_fundraising"`
	GeneralFundraising   float64    `json:"general_fundraising" yaml:"general_fundraising"`
	PrimarySMS           int64      `json:"primary_sms" yaml:"primary_sms"`
	GeneralSMS           int64      `json:"general_sms" yaml:"general_sms"`
	SubscriptionPrices   PricesJSON `json:"subscription_prices" yaml:"subscription_prices"`
}

// PricesJSON are the four monthly subscription prices.
type PricesJSON struct {
	Votebuilder       float64 `json:"votebuilder" yaml:"votebuilder"`
	EventPlatform     float64 `json:"event_platform" yaml:"event_platform"`
	Mapping           float64 `json:"mapping" yaml:"mapping"`
	AdvancedVoterData float64 `json:"advanced_voter_data" yaml:"advanced_voter_data"`
}

// ParametersJSON is the global parameter set.
type ParametersJSON struct {
	Capture                    CaptureJSON        `json:"capture" yaml:"capture"`
	TransactionFeeTotalBps     float64            `json:"transaction_fee_total_bps" yaml:"transaction_fee_total_bps"`
	TransactionFeeNetBps       float64            `json:"transaction_fee_net_bps" yaml:"transaction_fee_net_bps"`
	MediaCommissionPercent     float64            `json:"media_commission_percent" yaml:"media_commission_percent"`
	MediaPortalAdoptionPercent float64            `json:"media_portal_adoption_percent" yaml:"media_portal_adoption_percent"`
	MediaSpendRatio            float64            `json:"media_spend_ratio" yaml:"media_spend_ratio"`
	SMSProfitPerMessage        float64            `json:"sms_profit_per_message" yaml:"sms_profit_per_message"`
	Market                     MarketJSON         `json:"market" yaml:"market"`
	Assumptions                AssumptionsJSON    `json:"assumptions" yaml:"assumptions"`
	OperatingExpenses          map[string]float64 `json:"operating_expenses" yaml:"operating_expenses"`
	Investor                   InvestorJSON       `json:"investor" yaml:"investor"`
	Schedule                   ScheduleJSON       `json:"schedule" yaml:"schedule"`
	Streams                    []string           `json:"streams,omitempty" yaml:"streams,omitempty"`
}

// CaptureJSON is a tagged capture model. Kind selects which fields apply:
//
//	toggle:      mode, market_share_percent
//	marketShare: market_share_percent
//	percentage:  default_rate_percent, rates
//	absolute:    (none)
type CaptureJSON struct {
	Kind               string             `json:"kind" yaml:"kind"`
	Mode               string             `json:"mode,omitempty" yaml:"mode,omitempty"`
	MarketSharePercent float64            `json:"market_share_percent,omitempty" yaml:"market_share_percent,omitempty"`
	DefaultRatePercent float64            `json:"default_rate_percent,omitempty" yaml:"default_rate_percent,omitempty"`
	Rates              map[string]float64 `json:"rates,omitempty" yaml:"rates,omitempty"`
}

type MarketJSON struct {
	ContractorGMVAnnual    float64 `json:"contractor_gmv_annual" yaml:"contractor_gmv_annual"`
	ConsultingVolumeAnnual float64 `json:"consulting_volume_annual" yaml:"consulting_volume_annual"`
}

type AssumptionsJSON struct {
	SaaSMultiServicePercent      float64 `json:"saas_multi_service_percent" yaml:"saas_multi_service_percent"`
	MarketplaceCommissionPercent float64 `json:"marketplace_commission_percent" yaml:"marketplace_commission_percent"`
	ConsultingMarginPercent      float64 `json:"consulting_margin_percent" yaml:"consulting_margin_percent"`
	EventPlatformUsagePercent    float64 `json:"event_platform_usage_percent" yaml:"event_platform_usage_percent"`
	AnnualizationMultiplier      float64 `json:"annualization_multiplier" yaml:"annualization_multiplier"`
}

type InvestorJSON struct {
	Investment         float64 `json:"investment" yaml:"investment"`
	ProfitSharePercent float64 `json:"profit_share_percent" yaml:"profit_share_percent"`
	MinimumPayout      float64 `json:"minimum_payout" yaml:"minimum_payout"`
}

// ScheduleJSON configures the monthly allocator. A missing
// expense_overrides keeps the defaults; an empty map disables them.
type ScheduleJSON struct {
	ExpenseOverrides map[string]float64 `json:"expense_overrides" yaml:"expense_overrides"`
	PayoutMonth      string             `json:"payout_month,omitempty" yaml:"payout_month,omitempty"`
}

// =============================================================================
// FORMATS
// =============================================================================

type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatHJSON Format = "hjson"
)

// FormatFromPath picks the format by extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".hjson":
		return FormatHJSON
	default:
		return FormatJSON
	}
}

func unmarshal(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatHJSON:
		converted, err := hjsonToJSON(data)
		if err != nil {
			return err
		}
		return json.Unmarshal(converted, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func hjsonToJSON(data []byte) ([]byte, error) {
	var tree any
	if err := hjson.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// =============================================================================
// MODEL FACTORY
// =============================================================================

// ModelFactory converts documents to models and back.
type ModelFactory struct{}

// NewModelFactory creates a new model factory.
func NewModelFactory() *ModelFactory {
	return &ModelFactory{}
}

// Parse decodes a document and overlays it on its variant's defaults.
func (f *ModelFactory) Parse(data []byte, format Format) (engine.Model, string, error) {
	return f.Overlay(data, format, engine.Model{}, "")
}

// Overlay decodes a document over base, a model of baseVariant. A document
// without a variant, or naming baseVariant, edits base; one naming another
// variant starts from that variant's defaults. An empty baseVariant always
// starts from defaults.
func (f *ModelFactory) Overlay(data []byte, format Format, base engine.Model, baseVariant string) (engine.Model, string, error) {
	var header struct {
		Variant string `json:"variant" yaml:"variant"`
	}
	if err := unmarshal(data, format, &header); err != nil {
		return engine.Model{}, "", fmt.Errorf("failed to parse model %s: %w", format, err)
	}

	variant := header.Variant
	if variant == "" {
		variant = baseVariant
	}
	if variant == "" {
		variant = campaign.DefaultVariant
	}
	if variant != baseVariant {
		var err error
		if base, err = campaign.VariantModel(variant); err != nil {
			return engine.Model{}, "", err
		}
	}

	doc := f.ToJSON(base, variant)
	baseSegments := doc.Segments
	baseOverrides := doc.Parameters.Schedule.ExpenseOverrides

	// cleared so a document's value replaces rather than merges
	doc.Segments = nil
	doc.Parameters.Schedule.ExpenseOverrides = nil
	if err := unmarshal(data, format, &doc); err != nil {
		return engine.Model{}, "", fmt.Errorf("failed to parse model %s: %w", format, err)
	}
	if doc.Segments == nil {
		doc.Segments = baseSegments
	}
	if doc.Parameters.Schedule.ExpenseOverrides == nil {
		doc.Parameters.Schedule.ExpenseOverrides = baseOverrides
	}

	m, err := f.FromJSON(doc)
	if err != nil {
		return engine.Model{}, "", err
	}
	return m, variant, nil
}

// Decode reads a complete document, as written by Encode, without
// overlaying it on defaults. Maps and lists are taken as given, so removed
// expense categories stay removed.
func (f *ModelFactory) Decode(data []byte, format Format) (engine.Model, string, error) {
	var doc ModelJSON
	if err := unmarshal(data, format, &doc); err != nil {
		return engine.Model{}, "", fmt.Errorf("failed to decode model %s: %w", format, err)
	}
	variant := doc.Variant
	if variant == "" {
		variant = campaign.DefaultVariant
	}
	m, err := f.FromJSON(doc)
	if err != nil {
		return engine.Model{}, "", err
	}
	return m, variant, nil
}

// ParseJSON is Parse for a JSON string.
func (f *ModelFactory) ParseJSON(jsonStr string) (engine.Model, error) {
	m, _, err := f.Parse([]byte(jsonStr), FormatJSON)
	return m, err
}

// LoadFile reads and parses a model document, choosing the format by
// extension.
func (f *ModelFactory) LoadFile(path string) (engine.Model, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Model{}, "", fmt.Errorf("read model file: %w", err)
	}
	return f.Parse(data, FormatFromPath(path))
}

// FromJSON converts a complete document to a model.
func (f *ModelFactory) FromJSON(doc ModelJSON) (engine.Model, error) {
	capture, err := parseCapture(doc.Parameters.Capture)
	if err != nil {
		return engine.Model{}, err
	}

	p := doc.Parameters
	params := engine.ParameterSet{
		Capture:                    capture,
		TransactionFeeTotalBps:     dec(p.TransactionFeeTotalBps),
		TransactionFeeNetBps:       dec(p.TransactionFeeNetBps),
		MediaCommissionPercent:     dec(p.MediaCommissionPercent),
		MediaPortalAdoptionPercent: dec(p.MediaPortalAdoptionPercent),
		MediaSpendRatio:            dec(p.MediaSpendRatio),
		SMSProfitPerMessage:        dec(p.SMSProfitPerMessage),
		Market: engine.MarketData{
			ContractorGMVAnnual:    dec(p.Market.ContractorGMVAnnual),
			ConsultingVolumeAnnual: dec(p.Market.ConsultingVolumeAnnual),
		},
		Assumptions: engine.Assumptions{
			SaaSMultiServicePercent:      dec(p.Assumptions.SaaSMultiServicePercent),
			MarketplaceCommissionPercent: dec(p.Assumptions.MarketplaceCommissionPercent),
			ConsultingMarginPercent:      dec(p.Assumptions.ConsultingMarginPercent),
			EventPlatformUsagePercent:    dec(p.Assumptions.EventPlatformUsagePercent),
			AnnualizationMultiplier:      dec(p.Assumptions.AnnualizationMultiplier),
		},
		OperatingExpenses: make(engine.ExpenseMap, len(p.OperatingExpenses)),
		Investor: engine.InvestorTerms{
			Investment:         dec(p.Investor.Investment),
			ProfitSharePercent: dec(p.Investor.ProfitSharePercent),
			MinimumPayout:      dec(p.Investor.MinimumPayout),
		},
		Schedule: engine.ScheduleConfig{
			ExpenseOverrides: decMap(p.Schedule.ExpenseOverrides),
			PayoutMonth:      p.Schedule.PayoutMonth,
		},
	}
	for k, v := range p.OperatingExpenses {
		params.OperatingExpenses[k] = dec(v)
	}
	for _, s := range p.Streams {
		params.Streams = append(params.Streams, engine.StreamKey(s))
	}

	segments := make([]engine.Segment, 0, len(doc.Segments))
	for _, sj := range doc.Segments {
		segments = append(segments, parseSegment(sj))
	}

	return engine.Model{Segments: segments, Params: params, Strict: doc.Strict}, nil
}

// ToJSON converts a model to its document form. Default expense overrides
// are written out explicitly.
func (f *ModelFactory) ToJSON(m engine.Model, variant string) ModelJSON {
	p := m.Params
	overrides := p.Schedule.ExpenseOverrides
	if overrides == nil {
		overrides = engine.DefaultExpenseOverrides(engine.DefaultCalendar())
	}

	doc := ModelJSON{
		Variant: variant,
		Strict:  m.Strict,
		Parameters: ParametersJSON{
			Capture:                    captureJSON(p.Capture),
			TransactionFeeTotalBps:     Float(p.TransactionFeeTotalBps),
			TransactionFeeNetBps:       Float(p.TransactionFeeNetBps),
			MediaCommissionPercent:     Float(p.MediaCommissionPercent),
			MediaPortalAdoptionPercent: Float(p.MediaPortalAdoptionPercent),
			MediaSpendRatio:            Float(p.MediaSpendRatio),
			SMSProfitPerMessage:        Float(p.SMSProfitPerMessage),
			Market: MarketJSON{
				ContractorGMVAnnual:    Float(p.Market.ContractorGMVAnnual),
				ConsultingVolumeAnnual: Float(p.Market.ConsultingVolumeAnnual),
			},
			Assumptions: AssumptionsJSON{
				SaaSMultiServicePercent:      Float(p.Assumptions.SaaSMultiServicePercent),
				MarketplaceCommissionPercent: Float(p.Assumptions.MarketplaceCommissionPercent),
				ConsultingMarginPercent:      Float(p.Assumptions.ConsultingMarginPercent),
				EventPlatformUsagePercent:    Float(p.Assumptions.EventPlatformUsagePercent),
				AnnualizationMultiplier:      Float(p.Assumptions.AnnualizationMultiplier),
			},
			OperatingExpenses: floatMap(p.OperatingExpenses),
			Investor: InvestorJSON{
				Investment:         Float(p.Investor.Investment),
				ProfitSharePercent: Float(p.Investor.ProfitSharePercent),
				MinimumPayout:      Float(p.Investor.MinimumPayout),
			},
			Schedule: ScheduleJSON{
				ExpenseOverrides: floatMap(overrides),
				PayoutMonth:      p.Schedule.PayoutMonth,
			},
		},
		Segments: make([]SegmentJSON, 0, len(m.Segments)),
	}
	for _, k := range p.Streams {
		doc.Parameters.Streams = append(doc.Parameters.Streams, string(k))
	}
	for _, s := range m.Segments {
		doc.Segments = append(doc.Segments, segmentJSON(s))
	}
	return doc
}

// Encode serializes a model in the given format.
func (f *ModelFactory) Encode(m engine.Model, variant string, format Format) ([]byte, error) {
	doc := f.ToJSON(m, variant)
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatHJSON:
		return hjson.Marshal(doc)
	default:
		return json.MarshalIndent(doc, "", "  ")
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCapture(cj CaptureJSON) (engine.CaptureModel, error) {
	switch engine.CaptureKind(cj.Kind) {
	case engine.CaptureToggle, "":
		mode := engine.Mode(cj.Mode)
		if mode == "" {
			mode = engine.ModeIndividual
		}
		if !mode.IsValid() {
			return nil, fmt.Errorf("%w: mode %q", engine.ErrInvalidCaptureModel, cj.Mode)
		}
		share := dec(cj.MarketSharePercent)
		if cj.MarketSharePercent == 0 && mode == engine.ModeIndividual {
			share = decimal.NewFromInt(100)
		}
		return engine.ToggleCapture{Mode: mode, MarketSharePercent: share}, nil
	case engine.CaptureMarketShare:
		return engine.MarketShareCapture{SharePercent: dec(cj.MarketSharePercent)}, nil
	case engine.CapturePercentage:
		pc := engine.PercentageCapture{DefaultRatePercent: dec(cj.DefaultRatePercent)}
		if len(cj.Rates) > 0 {
			pc.Rates = make(map[engine.SegmentID]decimal.Decimal, len(cj.Rates))
			for id, r := range cj.Rates {
				pc.Rates[engine.SegmentID(id)] = dec(r)
			}
		}
		return pc, nil
	case engine.CaptureAbsolute:
		return engine.AbsoluteCapture{}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", engine.ErrInvalidCaptureModel, cj.Kind)
	}
}

func captureJSON(c engine.CaptureModel) CaptureJSON {
	switch m := c.(type) {
	case engine.ToggleCapture:
		return CaptureJSON{Kind: string(engine.CaptureToggle), Mode: string(m.Mode), MarketSharePercent: Float(m.MarketSharePercent)}
	case engine.MarketShareCapture:
		return CaptureJSON{Kind: string(engine.CaptureMarketShare), MarketSharePercent: Float(m.SharePercent)}
	case engine.PercentageCapture:
		cj := CaptureJSON{Kind: string(engine.CapturePercentage), DefaultRatePercent: Float(m.DefaultRatePercent)}
		if len(m.Rates) > 0 {
			cj.Rates = make(map[string]float64, len(m.Rates))
			for id, r := range m.Rates {
				cj.Rates[string(id)] = Float(r)
			}
		}
		return cj
	case engine.AbsoluteCapture:
		return CaptureJSON{Kind: string(engine.CaptureAbsolute)}
	default:
		return captureJSON(engine.DefaultCapture())
	}
}

func parseSegment(sj SegmentJSON) engine.Segment {
	id := engine.SegmentID(sj.ID)
	name := sj.Name
	if name == "" {
		name = campaign.SegmentName(id)
	}
	return engine.Segment{
		ID:                   id,
		Name:                 name,
		PrimaryCount:         sj.PrimaryCount,
		GeneralCount:         sj.GeneralCount,
		CapturedPrimaryCount: sj.CapturedPrimaryCount,
		CapturedGeneralCount: sj.CapturedGeneralCount,
		PrimarySpend:         dec(sj.PrimarySpend),
		GeneralSpend:         dec(sj.GeneralSpend),
		PrimaryFundraising:   dec(sj.PrimaryFundraising),
		GeneralFundraising:   dec(sj.GeneralFundraising),
		PrimarySMS:           sj.PrimarySMS,
		GeneralSMS:           sj.GeneralSMS,
		SubscriptionPrices: engine.SubscriptionPrices{
			Votebuilder:       dec(sj.SubscriptionPrices.Votebuilder),
			EventPlatform:     dec(sj.SubscriptionPrices.EventPlatform),
			Mapping:           dec(sj.SubscriptionPrices.Mapping),
			AdvancedVoterData: dec(sj.SubscriptionPrices.AdvancedVoterData),
		},
	}
}

func segmentJSON(s engine.Segment) SegmentJSON {
	return SegmentJSON{
		ID:                   string(s.ID),
		Name:                 s.Name,
		PrimaryCount:         s.PrimaryCount,
		GeneralCount:         s.GeneralCount,
		CapturedPrimaryCount: s.CapturedPrimaryCount,
		CapturedGeneralCount: s.CapturedGeneralCount,
		PrimarySpend:         Float(s.PrimarySpend),
		GeneralSpend:         Float(s.GeneralSpend),
		PrimaryFundraising:   Float(s.PrimaryFundraising),
		GeneralFundraising:   Float(s.GeneralFundraising),
		PrimarySMS:           s.PrimarySMS,
		GeneralSMS:           s.GeneralSMS,
		SubscriptionPrices: PricesJSON{
			Votebuilder:       Float(s.SubscriptionPrices.Votebuilder),
			EventPlatform:     Float(s.SubscriptionPrices.EventPlatform),
			Mapping:           Float(s.SubscriptionPrices.Mapping),
			AdvancedVoterData: Float(s.SubscriptionPrices.AdvancedVoterData),
		},
	}
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// Float converts a decimal for the wire.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decMap(m map[string]float64) map[string]decimal.Decimal {
	if m == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = dec(v)
	}
	return out
}

func floatMap[M ~map[string]decimal.Decimal](m M) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Float(v)
	}
	return out
}
