package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate checks a model against the documented domain of every input.
//
// The calculation accepts anything (negative values are clamped, captured
// counts above totals are used as given). Validation is a deliberate, opt-in
// strengthening: it rejects before computing and names the first offending
// field. Month keys are checked against DefaultCalendar; use ValidateFor or
// Engine.Validate for any other calendar.
func Validate(m Model) error {
	return ValidateFor(m, DefaultCalendar())
}

// ValidateFor is Validate with month keys checked against cal.
func ValidateFor(m Model, cal Calendar) error {
	if err := ValidateSegments(m.Segments); err != nil {
		return err
	}
	return ValidateParameters(m.Params, m.Segments, cal)
}

// ValidateSegments checks counts, volumes and prices of every segment.
func ValidateSegments(segments []Segment) error {
	seen := make(map[SegmentID]bool, len(segments))
	for i, s := range segments {
		path := fmt.Sprintf("segments[%s]", s.ID)
		if s.ID == "" {
			return invalid(fmt.Sprintf("segments[%d].id", i), "", "must not be empty")
		}
		if seen[s.ID] {
			return invalid(path+".id", s.ID, "duplicate segment")
		}
		seen[s.ID] = true

		counts := []struct {
			field string
			value int64
		}{
			{"primaryCount", s.PrimaryCount},
			{"generalCount", s.GeneralCount},
			{"capturedPrimaryCount", s.CapturedPrimaryCount},
			{"capturedGeneralCount", s.CapturedGeneralCount},
			{"primarySms", s.PrimarySMS},
			{"generalSms", s.GeneralSMS},
		}
		for _, c := range counts {
			if c.value < 0 {
				return invalid(path+"."+c.field, c.value, "must not be negative")
			}
		}
		if s.CapturedPrimaryCount > s.PrimaryCount {
			return invalid(path+".capturedPrimaryCount", s.CapturedPrimaryCount,
				fmt.Sprintf("exceeds primaryCount %d", s.PrimaryCount))
		}
		if s.CapturedGeneralCount > s.GeneralCount {
			return invalid(path+".capturedGeneralCount", s.CapturedGeneralCount,
				fmt.Sprintf("exceeds generalCount %d", s.GeneralCount))
		}

		amounts := []struct {
			field string
			value decimal.Decimal
		}{
			{"primarySpend", s.PrimarySpend},
			{"generalSpend", s.GeneralSpend},
			{"primaryFundraising", s.PrimaryFundraising},
			{"generalFundraising", s.GeneralFundraising},
			{"subscriptionPrices.votebuilder", s.SubscriptionPrices.Votebuilder},
			{"subscriptionPrices.eventPlatform", s.SubscriptionPrices.EventPlatform},
			{"subscriptionPrices.mapping", s.SubscriptionPrices.Mapping},
			{"subscriptionPrices.advancedVoterData", s.SubscriptionPrices.AdvancedVoterData},
		}
		for _, a := range amounts {
			if a.value.IsNegative() {
				return invalid(path+"."+a.field, a.value, "must not be negative")
			}
		}
	}
	return nil
}

// ValidateParameters checks rates, capture model, streams, expenses and
// schedule settings. segments resolves per-segment capture rates and cal
// bounds the schedule's month keys (DefaultCalendar when nil).
func ValidateParameters(p ParameterSet, segments []Segment, cal Calendar) error {
	if err := validateCapture(p.Capture, segments); err != nil {
		return err
	}

	nonNegative := []struct {
		field string
		value decimal.Decimal
	}{
		{"transactionFeeTotalBps", p.TransactionFeeTotalBps},
		{"transactionFeeNetBps", p.TransactionFeeNetBps},
		{"mediaSpendRatio", p.MediaSpendRatio},
		{"smsProfitPerMessage", p.SMSProfitPerMessage},
		{"market.contractorGmvAnnual", p.Market.ContractorGMVAnnual},
		{"market.consultingVolumeAnnual", p.Market.ConsultingVolumeAnnual},
		{"assumptions.annualizationMultiplier", p.Assumptions.AnnualizationMultiplier},
		{"investor.investment", p.Investor.Investment},
		{"investor.minimumPayout", p.Investor.MinimumPayout},
	}
	for _, f := range nonNegative {
		if f.value.IsNegative() {
			return invalid(f.field, f.value, "must not be negative")
		}
	}

	percents := []struct {
		field string
		value decimal.Decimal
	}{
		{"mediaCommissionPercent", p.MediaCommissionPercent},
		{"mediaPortalAdoptionPercent", p.MediaPortalAdoptionPercent},
		{"assumptions.saasMultiServicePercent", p.Assumptions.SaaSMultiServicePercent},
		{"assumptions.marketplaceCommissionPercent", p.Assumptions.MarketplaceCommissionPercent},
		{"assumptions.consultingMarginPercent", p.Assumptions.ConsultingMarginPercent},
		{"assumptions.eventPlatformUsagePercent", p.Assumptions.EventPlatformUsagePercent},
		{"investor.profitSharePercent", p.Investor.ProfitSharePercent},
	}
	for _, f := range percents {
		if err := checkPercent(f.field, f.value); err != nil {
			return err
		}
	}

	if p.TransactionFeeNetBps.GreaterThan(p.TransactionFeeTotalBps) {
		return invalid("transactionFeeNetBps", p.TransactionFeeNetBps,
			fmt.Sprintf("exceeds transactionFeeTotalBps %s", p.TransactionFeeTotalBps))
	}

	for _, k := range p.Streams {
		if !k.IsKnown() {
			return invalidWith(ErrUnknownStream, "streams", k, "unknown revenue stream")
		}
	}

	for _, name := range p.OperatingExpenses.Categories() {
		if v := p.OperatingExpenses[name]; v.IsNegative() {
			return invalid("operatingExpenses."+name, v, "must not be negative")
		}
	}

	if cal == nil {
		cal = DefaultCalendar()
	}
	for key, v := range p.Schedule.ExpenseOverrides {
		if !cal.Has(key) {
			return invalid("schedule.expenseOverrides", key, "month is not in the calendar")
		}
		if v.IsNegative() {
			return invalid("schedule.expenseOverrides."+key, v, "must not be negative")
		}
	}
	if p.Schedule.PayoutMonth != "" && !cal.Has(p.Schedule.PayoutMonth) {
		return invalid("schedule.payoutMonth", p.Schedule.PayoutMonth, "month is not in the calendar")
	}
	return nil
}

func validateCapture(c CaptureModel, segments []Segment) error {
	switch m := c.(type) {
	case nil:
		return invalidWith(ErrInvalidCaptureModel, "capture", "", "is required")
	case ToggleCapture:
		if !m.Mode.IsValid() {
			return invalidWith(ErrInvalidCaptureModel, "capture.mode", m.Mode, "must be individual or marketShare")
		}
		if m.Mode == ModeMarketShare {
			return checkShare(m.MarketSharePercent)
		}
	case MarketShareCapture:
		return checkShare(m.SharePercent)
	case PercentageCapture:
		if err := checkPercent("capture.defaultRatePercent", m.DefaultRatePercent); err != nil {
			return err
		}
		known := make(map[SegmentID]bool, len(segments))
		for _, s := range segments {
			known[s.ID] = true
		}
		for id, r := range m.Rates {
			if !known[id] {
				return invalidWith(ErrUnknownSegment, "capture.rates", id, "segment is not in the model")
			}
			if err := checkPercent(fmt.Sprintf("capture.rates[%s]", id), r); err != nil {
				return err
			}
		}
	case AbsoluteCapture:
	default:
		return invalidWith(ErrInvalidCaptureModel, "capture.kind", c.Kind(), "unsupported capture model")
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

func checkPercent(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return invalid(field, v, "must be between 0 and 100")
	}
	return nil
}

// checkShare bounds a market share to 1..100; a zero share would project
// nothing from every segment-scaled stream.
func checkShare(v decimal.Decimal) error {
	if v.LessThan(decimal.NewFromInt(1)) || v.GreaterThan(hundred) {
		return invalid("capture.marketSharePercent", v, "must be between 1 and 100")
	}
	return nil
}
