/*
capture.go - Organization capture strategies

PURPOSE:
  The calculator has been modeled three ways over time: a percentage of
  every segment's count, absolute captured counts, and a toggle between
  captured counts and a global market share. Each is a CaptureModel;
  the Revenue Engine only asks a strategy how many organizations it serves.

STRATEGIES:
  PercentageCapture:  count x rate/100 per segment; market-wide streams unscaled
  AbsoluteCapture:    captured counts as entered; market-wide streams unscaled
  MarketShareCapture: count x share/100; market-wide streams scaled by share
  ToggleCapture:      individual -> AbsoluteCapture, marketShare -> MarketShareCapture

NOTE:
  Absolute capture leaves market-wide streams (contractor GMV, consulting)
  fully counted no matter how few organizations are captured. That mirrors
  the reference calculator and is kept deliberately.
*/
package engine

import "github.com/shopspring/decimal"

type CaptureKind string

const (
	CapturePercentage  CaptureKind = "percentage"
	CaptureAbsolute    CaptureKind = "absolute"
	CaptureMarketShare CaptureKind = "marketShare"
	CaptureToggle      CaptureKind = "toggle"
)

// Mode is the toggle capture's calculation method.
type Mode string

const (
	ModeIndividual  Mode = "individual"
	ModeMarketShare Mode = "marketShare"
)

func (m Mode) IsValid() bool { return m == ModeIndividual || m == ModeMarketShare }

// CaptureModel decides how many organizations of each segment are served.
type CaptureModel interface {
	Kind() CaptureKind

	// PrimaryOrganizations is the effective number of primary-phase
	// organizations served in seg.
	PrimaryOrganizations(seg Segment) decimal.Decimal

	// GeneralOrganizations is the general-phase counterpart.
	GeneralOrganizations(seg Segment) decimal.Decimal

	// Subscribers is the effective SaaS subscriber count in seg.
	Subscribers(seg Segment) decimal.Decimal

	// MarketScale multiplies the market-wide streams.
	MarketScale() decimal.Decimal
}

// =============================================================================
// PERCENTAGE CAPTURE
// =============================================================================

// PercentageCapture serves a fixed percentage of every segment's count.
// Rates overrides DefaultRatePercent per segment.
type PercentageCapture struct {
	DefaultRatePercent decimal.Decimal
	Rates              map[SegmentID]decimal.Decimal
}

func (c PercentageCapture) Kind() CaptureKind { return CapturePercentage }

func (c PercentageCapture) rate(seg Segment) decimal.Decimal {
	if r, ok := c.Rates[seg.ID]; ok {
		return pct(r)
	}
	return pct(c.DefaultRatePercent)
}

func (c PercentageCapture) PrimaryOrganizations(seg Segment) decimal.Decimal {
	return count(seg.PrimaryCount).Mul(c.rate(seg))
}

func (c PercentageCapture) GeneralOrganizations(seg Segment) decimal.Decimal {
	return count(seg.GeneralCount).Mul(c.rate(seg))
}

func (c PercentageCapture) Subscribers(seg Segment) decimal.Decimal {
	return count(seg.AddressableOrganizations()).Mul(c.rate(seg))
}

func (c PercentageCapture) MarketScale() decimal.Decimal { return decimal.NewFromInt(1) }

// =============================================================================
// ABSOLUTE CAPTURE
// =============================================================================

// AbsoluteCapture serves exactly the captured counts of each segment.
type AbsoluteCapture struct{}

func (AbsoluteCapture) Kind() CaptureKind { return CaptureAbsolute }

func (AbsoluteCapture) PrimaryOrganizations(seg Segment) decimal.Decimal {
	return count(seg.CapturedPrimaryCount)
}

func (AbsoluteCapture) GeneralOrganizations(seg Segment) decimal.Decimal {
	return count(seg.CapturedGeneralCount)
}

func (AbsoluteCapture) Subscribers(seg Segment) decimal.Decimal {
	return count(max(seg.CapturedPrimaryCount, seg.CapturedGeneralCount))
}

func (AbsoluteCapture) MarketScale() decimal.Decimal { return decimal.NewFromInt(1) }

// =============================================================================
// MARKET SHARE CAPTURE
// =============================================================================

// MarketShareCapture serves a share of the total addressable market.
type MarketShareCapture struct {
	SharePercent decimal.Decimal
}

func (c MarketShareCapture) Kind() CaptureKind { return CaptureMarketShare }

func (c MarketShareCapture) PrimaryOrganizations(seg Segment) decimal.Decimal {
	return count(seg.PrimaryCount).Mul(pct(c.SharePercent))
}

func (c MarketShareCapture) GeneralOrganizations(seg Segment) decimal.Decimal {
	return count(seg.GeneralCount).Mul(pct(c.SharePercent))
}

func (c MarketShareCapture) Subscribers(seg Segment) decimal.Decimal {
	return count(seg.AddressableOrganizations()).Mul(pct(c.SharePercent))
}

func (c MarketShareCapture) MarketScale() decimal.Decimal { return pct(c.SharePercent) }

// =============================================================================
// TOGGLE CAPTURE
// =============================================================================

// ToggleCapture switches between individual targeting and market share.
// MarketSharePercent is ignored in individual mode.
type ToggleCapture struct {
	Mode               Mode
	MarketSharePercent decimal.Decimal
}

func (c ToggleCapture) Kind() CaptureKind { return CaptureToggle }

// Active returns the strategy the toggle currently delegates to.
func (c ToggleCapture) Active() CaptureModel {
	if c.Mode == ModeMarketShare {
		return MarketShareCapture{SharePercent: c.MarketSharePercent}
	}
	return AbsoluteCapture{}
}

func (c ToggleCapture) PrimaryOrganizations(seg Segment) decimal.Decimal {
	return c.Active().PrimaryOrganizations(seg)
}

func (c ToggleCapture) GeneralOrganizations(seg Segment) decimal.Decimal {
	return c.Active().GeneralOrganizations(seg)
}

func (c ToggleCapture) Subscribers(seg Segment) decimal.Decimal {
	return c.Active().Subscribers(seg)
}

func (c ToggleCapture) MarketScale() decimal.Decimal { return c.Active().MarketScale() }

// DefaultCapture is used when a ParameterSet carries no capture model.
func DefaultCapture() CaptureModel {
	return ToggleCapture{Mode: ModeIndividual, MarketSharePercent: decimal.NewFromInt(100)}
}

func captureOrDefault(c CaptureModel) CaptureModel {
	if c == nil {
		return DefaultCapture()
	}
	return c
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// nonNeg clamps negative inputs to zero so no stream can go negative.
func nonNeg(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func nonNegInt(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func count(n int64) decimal.Decimal { return decimal.NewFromInt(nonNegInt(n)) }

// pct converts a percentage to a ratio exactly.
func pct(d decimal.Decimal) decimal.Decimal { return nonNeg(d).Shift(-2) }

// bps converts basis points to a ratio exactly.
func bps(d decimal.Decimal) decimal.Decimal { return nonNeg(d).Shift(-4) }

// safeDiv returns num/den, or zero when den is zero.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// percentOf returns num/den*100, or zero when den is zero.
func percentOf(num, den decimal.Decimal) decimal.Decimal {
	return safeDiv(num, den).Shift(2)
}

func cloneOverrides(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	if m == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
