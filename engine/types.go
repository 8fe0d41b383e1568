/*
Package engine provides the pro-forma calculation core.

PURPOSE:
  Turns a bag of adjustable assumptions (capture model, fee rates,
  per-segment pricing and volumes, operating expenses) into a revenue
  breakdown, an operating summary with investor returns, and a monthly
  schedule over a fixed campaign-season calendar.

KEY CONCEPTS IN THIS FILE (types.go):
  - Segment: one category of political organization with market sizing
  - ParameterSet: the global adjustable configuration
  - StreamKey / RevenueBreakdown: named revenue streams and their amounts
  - ExpenseMap: monthly operating-expense categories

DESIGN PRINCIPLES:
  1. Purity: every computation is a deterministic function of its inputs
  2. Precision: uses decimal.Decimal so stream formulas are exact
  3. Totality: degenerate ratios yield zero, never NaN or a panic
  4. Configuration over code: variants differ only in ParameterSet

USAGE:
  model := engine.Model{Segments: campaign.DefaultSegments(), Params: campaign.DefaultParameters()}
  projection, err := engine.New().Project(model)

SEE ALSO:
  - capture.go: Capture-model strategies
  - revenue.go: Revenue Engine
  - schedule.go: Monthly Allocator
  - summary.go: Summary / investor-return calculator
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SEGMENTS - One category of campaign / organization
// =============================================================================

type SegmentID string

// SubscriptionPrices are the four monthly SaaS list prices for a segment.
type SubscriptionPrices struct {
	Votebuilder       decimal.Decimal
	EventPlatform     decimal.Decimal
	Mapping           decimal.Decimal
	AdvancedVoterData decimal.Decimal
}

// Average returns the mean of the four monthly prices.
func (p SubscriptionPrices) Average() decimal.Decimal {
	sum := nonNeg(p.Votebuilder).
		Add(nonNeg(p.EventPlatform)).
		Add(nonNeg(p.Mapping)).
		Add(nonNeg(p.AdvancedVoterData))
	return sum.Div(decimal.NewFromInt(4))
}

// Segment holds market sizing, spend and pricing for one organization type.
// Captured counts are only read by capture models that target individual
// organizations; they are expected to stay within the phase totals.
type Segment struct {
	ID   SegmentID
	Name string

	PrimaryCount int64
	GeneralCount int64

	CapturedPrimaryCount int64
	CapturedGeneralCount int64

	// Informational in the reference model; media spend is derived from
	// fundraising via ParameterSet.MediaSpendRatio.
	PrimarySpend decimal.Decimal
	GeneralSpend decimal.Decimal

	PrimaryFundraising decimal.Decimal
	GeneralFundraising decimal.Decimal

	PrimarySMS int64
	GeneralSMS int64

	SubscriptionPrices SubscriptionPrices
}

// AddressableOrganizations is the larger of the two phase counts, since the
// organizations in the general phase are a subset of the primary field.
func (s Segment) AddressableOrganizations() int64 {
	return max(nonNegInt(s.PrimaryCount), nonNegInt(s.GeneralCount))
}

// =============================================================================
// REVENUE STREAMS
// =============================================================================

type StreamKey string

const (
	StreamMediaCommissions  StreamKey = "mediaCommissions"
	StreamSaaSSubscriptions StreamKey = "saasSubscriptions"
	StreamContractorGMV     StreamKey = "contractorConsultantGmv"
	StreamTransactionFees   StreamKey = "transactionFees"
	StreamSMSRevenue        StreamKey = "smsRevenue"
	StreamConsulting        StreamKey = "consulting"
	StreamEventPlatform     StreamKey = "eventPlatform"
)

// AllStreams lists every stream the engine knows, in display order.
var AllStreams = []StreamKey{
	StreamMediaCommissions,
	StreamSaaSSubscriptions,
	StreamContractorGMV,
	StreamTransactionFees,
	StreamSMSRevenue,
	StreamConsulting,
	StreamEventPlatform,
}

// ReferenceStreams is the stream set used when a ParameterSet names none.
var ReferenceStreams = []StreamKey{
	StreamMediaCommissions,
	StreamSaaSSubscriptions,
	StreamContractorGMV,
	StreamTransactionFees,
	StreamSMSRevenue,
}

// IsKnown reports whether k is one of AllStreams.
func (k StreamKey) IsKnown() bool {
	for _, s := range AllStreams {
		if s == k {
			return true
		}
	}
	return false
}

// SegmentDriven reports whether the stream is computed from per-segment
// volumes. The others (contractor GMV, consulting) are market-wide.
func (k StreamKey) SegmentDriven() bool {
	switch k {
	case StreamContractorGMV, StreamConsulting:
		return false
	default:
		return true
	}
}

// StreamAmount is one entry of a RevenueBreakdown.
type StreamAmount struct {
	Key    StreamKey
	Amount decimal.Decimal
}

// RevenueBreakdown maps stream key to annual dollars, in a fixed order.
type RevenueBreakdown []StreamAmount

// Total is the sum of every stream.
func (b RevenueBreakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b {
		total = total.Add(s.Amount)
	}
	return total
}

// Get returns the amount for key and whether the stream is present.
func (b RevenueBreakdown) Get(key StreamKey) (decimal.Decimal, bool) {
	for _, s := range b {
		if s.Key == key {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}

// Keys returns the stream keys in order.
func (b RevenueBreakdown) Keys() []StreamKey {
	keys := make([]StreamKey, len(b))
	for i, s := range b {
		keys[i] = s.Key
	}
	return keys
}

// =============================================================================
// OPERATING EXPENSES
// =============================================================================

// ExpenseMap holds monthly dollars per named operating-expense category.
type ExpenseMap map[string]decimal.Decimal

// MonthlyTotal sums every category.
func (m ExpenseMap) MonthlyTotal() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// Categories returns category names sorted alphabetically.
func (m ExpenseMap) Categories() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (m ExpenseMap) Clone() ExpenseMap {
	if m == nil {
		return nil
	}
	out := make(ExpenseMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================================================================
// PARAMETER SET - Global adjustable configuration
// =============================================================================

// Assumptions are the named business ratios of the model.
type Assumptions struct {
	SaaSMultiServicePercent      decimal.Decimal
	MarketplaceCommissionPercent decimal.Decimal
	ConsultingMarginPercent      decimal.Decimal
	EventPlatformUsagePercent    decimal.Decimal
	AnnualizationMultiplier      decimal.Decimal
}

// MarketData holds market-wide volumes that are not tied to a segment.
type MarketData struct {
	ContractorGMVAnnual    decimal.Decimal
	ConsultingVolumeAnnual decimal.Decimal
}

// InvestorTerms describe a single investment repaid from profit share with a
// guaranteed minimum payout.
type InvestorTerms struct {
	Investment         decimal.Decimal
	ProfitSharePercent decimal.Decimal
	MinimumPayout      decimal.Decimal
}

// MinimumMultiple is MinimumPayout expressed as a multiple of Investment.
func (t InvestorTerms) MinimumMultiple() decimal.Decimal {
	return safeDiv(t.MinimumPayout, t.Investment)
}

// ScheduleConfig tunes the Monthly Allocator.
type ScheduleConfig struct {
	// ExpenseOverrides replace the monthly OpEx total for the named calendar
	// months (keyed "2006-01"). Nil means DefaultExpenseOverrides; an empty
	// non-nil map disables overrides.
	ExpenseOverrides map[string]decimal.Decimal

	// PayoutMonth is the calendar key where the investor payout is deducted
	// from cash. Empty means the final month.
	PayoutMonth string
}

// ParameterSet is the full adjustable configuration of one computation.
type ParameterSet struct {
	Capture CaptureModel

	TransactionFeeTotalBps decimal.Decimal
	TransactionFeeNetBps   decimal.Decimal

	MediaCommissionPercent     decimal.Decimal
	MediaPortalAdoptionPercent decimal.Decimal
	MediaSpendRatio            decimal.Decimal

	SMSProfitPerMessage decimal.Decimal

	Market            MarketData
	Assumptions       Assumptions
	OperatingExpenses ExpenseMap
	Investor          InvestorTerms
	Schedule          ScheduleConfig

	// Streams selects and orders the reported revenue streams. Empty means
	// ReferenceStreams.
	Streams []StreamKey
}

// EnabledStreams returns the known streams to compute, in order, without
// duplicates.
func (p ParameterSet) EnabledStreams() []StreamKey {
	keys := p.Streams
	if len(keys) == 0 {
		keys = ReferenceStreams
	}
	seen := make(map[StreamKey]bool, len(keys))
	out := make([]StreamKey, 0, len(keys))
	for _, k := range keys {
		if !k.IsKnown() || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Mode reports the calculation mode when the capture model is a toggle,
// and ModeIndividual otherwise.
func (p ParameterSet) Mode() Mode {
	if t, ok := p.Capture.(ToggleCapture); ok {
		return t.Mode
	}
	return ModeIndividual
}

// MarketSharePercent reports the toggle's market share, or zero.
func (p ParameterSet) MarketSharePercent() decimal.Decimal {
	if t, ok := p.Capture.(ToggleCapture); ok {
		return t.MarketSharePercent
	}
	return decimal.Zero
}

// WithMode returns a copy switched to mode. Switching into market-share mode
// resets the share to 5%; switching back to individual resets it to 100%.
// Capture models other than a toggle are replaced by a toggle.
func (p ParameterSet) WithMode(mode Mode) ParameterSet {
	out := p
	out.OperatingExpenses = p.OperatingExpenses.Clone()
	out.Streams = append([]StreamKey(nil), p.Streams...)
	out.Schedule.ExpenseOverrides = cloneOverrides(p.Schedule.ExpenseOverrides)
	share := decimal.NewFromInt(100)
	if mode == ModeMarketShare {
		share = decimal.NewFromInt(5)
	}
	out.Capture = ToggleCapture{Mode: mode, MarketSharePercent: share}
	return out
}
