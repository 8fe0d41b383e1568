package campaign

import (
	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/engine"
)

// Operating-expense categories of the reference model.
const (
	ExpenseEngineering    = "engineering"
	ExpenseAIServices     = "aiServices"
	ExpenseSalesGrowth    = "salesGrowth"
	ExpenseInfrastructure = "infrastructure"
	ExpenseMarketing      = "marketing"
	ExpenseCompliance     = "compliance"
)

// DefaultOperatingExpenses totals $157,500 per month.
func DefaultOperatingExpenses() engine.ExpenseMap {
	return engine.ExpenseMap{
		ExpenseEngineering:    decimal.NewFromInt(80000),
		ExpenseAIServices:     decimal.NewFromInt(2500),
		ExpenseSalesGrowth:    decimal.NewFromInt(25000),
		ExpenseInfrastructure: decimal.NewFromInt(15000),
		ExpenseMarketing:      decimal.NewFromInt(25000),
		ExpenseCompliance:     decimal.NewFromInt(10000),
	}
}

// DefaultInvestorTerms: $300k for 15% of profit, 2x minimum.
func DefaultInvestorTerms() engine.InvestorTerms {
	return engine.InvestorTerms{
		Investment:         decimal.NewFromInt(300000),
		ProfitSharePercent: decimal.NewFromInt(15),
		MinimumPayout:      decimal.NewFromInt(600000),
	}
}

// DefaultParameters returns the reference "advanced market" parameter set in
// individual mode.
func DefaultParameters() engine.ParameterSet {
	return engine.ParameterSet{
		Capture:                    engine.DefaultCapture(),
		TransactionFeeTotalBps:     decimal.NewFromInt(350),
		TransactionFeeNetBps:       decimal.NewFromInt(100),
		MediaCommissionPercent:     decimal.NewFromInt(5),
		MediaPortalAdoptionPercent: decimal.NewFromInt(20),
		MediaSpendRatio:            decimal.RequireFromString("0.75"),
		SMSProfitPerMessage:        decimal.RequireFromString("0.001"),
		Market: engine.MarketData{
			ContractorGMVAnnual:    decimal.NewFromInt(3500000),
			ConsultingVolumeAnnual: decimal.NewFromInt(1500000),
		},
		Assumptions: engine.Assumptions{
			SaaSMultiServicePercent:      decimal.NewFromInt(30),
			MarketplaceCommissionPercent: decimal.NewFromInt(10),
			ConsultingMarginPercent:      decimal.NewFromInt(15),
			EventPlatformUsagePercent:    decimal.NewFromInt(20),
			AnnualizationMultiplier:      decimal.NewFromInt(12),
		},
		OperatingExpenses: DefaultOperatingExpenses(),
		Investor:          DefaultInvestorTerms(),
		Streams:           append([]engine.StreamKey(nil), engine.ReferenceStreams...),
	}
}

// DefaultModel pairs DefaultSegments with DefaultParameters.
func DefaultModel() engine.Model {
	return engine.Model{Segments: DefaultSegments(), Params: DefaultParameters()}
}

var streamLabels = map[engine.StreamKey]string{
	engine.StreamMediaCommissions:  "Media Commissions",
	engine.StreamSaaSSubscriptions: "SaaS Subscriptions",
	engine.StreamContractorGMV:     "Contractor/Consultant GMV",
	engine.StreamTransactionFees:   "Transaction Fees",
	engine.StreamSMSRevenue:        "SMS Revenue",
	engine.StreamConsulting:        "Consulting",
	engine.StreamEventPlatform:     "Event Platform",
}

// StreamLabel returns the display label for a stream key.
func StreamLabel(k engine.StreamKey) string {
	if l, ok := streamLabels[k]; ok {
		return l
	}
	return string(k)
}

var expenseLabels = map[string]string{
	ExpenseEngineering:    "Engineering",
	ExpenseAIServices:     "AI Services",
	ExpenseSalesGrowth:    "Sales & Growth",
	ExpenseInfrastructure: "Infrastructure",
	ExpenseMarketing:      "Marketing",
	ExpenseCompliance:     "Compliance",
}

// ExpenseLabel returns the display label for an expense category.
func ExpenseLabel(category string) string {
	if l, ok := expenseLabels[category]; ok {
		return l
	}
	return category
}
