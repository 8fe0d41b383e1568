package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MODEL - The unit of computation
// =============================================================================

// Model is a complete set of inputs: the segment table and the parameters.
// Strict asks Project to validate before computing.
type Model struct {
	Segments []Segment
	Params   ParameterSet
	Strict   bool
}

// Clone returns a copy that shares no mutable state with m.
func (m Model) Clone() Model {
	out := m
	out.Segments = append([]Segment(nil), m.Segments...)
	out.Params.OperatingExpenses = m.Params.OperatingExpenses.Clone()
	out.Params.Streams = append([]StreamKey(nil), m.Params.Streams...)
	out.Params.Schedule.ExpenseOverrides = cloneOverrides(m.Params.Schedule.ExpenseOverrides)
	if pc, ok := m.Params.Capture.(PercentageCapture); ok && pc.Rates != nil {
		rates := make(map[SegmentID]decimal.Decimal, len(pc.Rates))
		for k, v := range pc.Rates {
			rates[k] = v
		}
		pc.Rates = rates
		out.Params.Capture = pc
	}
	return out
}

// Organizations summarizes market reach.
type Organizations struct {
	// Addressable is the TAM: sum of max(primaryCount, generalCount).
	Addressable int64
	// Effective is the number of organizations served under the capture
	// model, rounded to the nearest whole organization.
	Effective int64
}

// Projection is everything derived from one Model.
type Projection struct {
	Revenue       RevenueResult
	Summary       Summary
	Schedule      []MonthlyRow
	Quarters      []QuarterRow
	Organizations Organizations
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine wires the Revenue Engine, Summary Calculator and Monthly Allocator
// over one calendar. The zero value uses DefaultCalendar.
type Engine struct {
	Calendar Calendar
}

// New returns an engine over the default calendar.
func New() *Engine {
	return &Engine{Calendar: DefaultCalendar()}
}

// Validate checks m with month keys bounded by the engine's calendar.
func (e *Engine) Validate(m Model) error {
	return ValidateFor(m, e.calendar())
}

func (e *Engine) calendar() Calendar {
	if e.Calendar == nil {
		return DefaultCalendar()
	}
	return e.Calendar
}

// Project computes the full projection for m. It only fails when m.Strict is
// set and validation rejects the model.
func (e *Engine) Project(m Model) (*Projection, error) {
	cal := e.calendar()
	if m.Strict {
		if err := ValidateFor(m, cal); err != nil {
			return nil, err
		}
	}

	revenue := AnalyzeRevenue(m.Segments, m.Params)
	summary := ComputeSummary(revenue.Streams, m.Params.OperatingExpenses, m.Params.Investor)

	alloc := Allocator{
		Calendar:         cal,
		ExpenseOverrides: m.Params.Schedule.ExpenseOverrides,
		StartingCash:     m.Params.Investor.Investment,
		Payout:           summary.Investor.Payout,
		PayoutMonth:      m.Params.Schedule.PayoutMonth,
	}
	schedule := alloc.Allocate(summary.TotalRevenue, summary.MonthlyOperatingExpense)

	return &Projection{
		Revenue:  revenue,
		Summary:  summary,
		Schedule: schedule,
		Quarters: Quarters(schedule),
		Organizations: Organizations{
			Addressable: TotalAddressableOrganizations(m.Segments),
			Effective:   EffectiveOrganizations(m.Segments, m.Params.Capture),
		},
	}, nil
}

// TotalAddressableOrganizations sums every segment's addressable count.
func TotalAddressableOrganizations(segments []Segment) int64 {
	var total int64
	for _, s := range segments {
		total += s.AddressableOrganizations()
	}
	return total
}

// EffectiveOrganizations is the number of organizations the capture model
// serves across segments, rounded.
func EffectiveOrganizations(segments []Segment, capture CaptureModel) int64 {
	c := captureOrDefault(capture)
	total := decimal.Zero
	for _, s := range segments {
		total = total.Add(nonNeg(c.Subscribers(s)))
	}
	return total.Round(0).IntPart()
}
