/*
summary.go - Summary and investor-return calculator

PURPOSE:
  Derives the headline figures from a revenue breakdown and the monthly
  expense categories, and settles the investor payout.

FORMULAS:
  totalRevenue   = sum(streams)
  operatingCosts = 12 x sum(monthly expense categories)
  netProfit      = totalRevenue - operatingCosts
  ebitdaMargin   = netProfit / totalRevenue x 100   (0 when totalRevenue = 0)
  profitShare    = netProfit x share%
  payout         = max(profitShare, minimumPayout)   (ties go to profit share)
  roi            = (payout - investment) / investment x 100   (0 when investment = 0)
  cashAtYearEnd  = netProfit + investment - payout
*/
package engine

import "github.com/shopspring/decimal"

var monthsPerYear = decimal.NewFromInt(12)

// PayoutRule records which branch of the payout rule was taken.
type PayoutRule string

const (
	PayoutProfitShare      PayoutRule = "profit_share"
	PayoutMinimumGuarantee PayoutRule = "minimum_guarantee"
)

// InvestorReturn is the settled investor position.
type InvestorReturn struct {
	Investment         decimal.Decimal
	ProfitSharePercent decimal.Decimal
	ProfitShare        decimal.Decimal
	MinimumPayout      decimal.Decimal
	MinimumMultiple    decimal.Decimal
	Payout             decimal.Decimal
	Rule               PayoutRule
	ROI                decimal.Decimal
}

// GuaranteeApplied reports whether the minimum payout was used.
func (r InvestorReturn) GuaranteeApplied() bool { return r.Rule == PayoutMinimumGuarantee }

// StreamShare is a stream's percentage of total revenue.
type StreamShare struct {
	Key     StreamKey
	Percent decimal.Decimal
}

// Summary holds the annual headline figures.
type Summary struct {
	TotalRevenue            decimal.Decimal
	MonthlyOperatingExpense decimal.Decimal
	OperatingCosts          decimal.Decimal
	NetProfit               decimal.Decimal
	EBITDAMargin            decimal.Decimal
	Investor                InvestorReturn
	CashAtYearEnd           decimal.Decimal
	StreamShares            []StreamShare
}

// ComputeSummary derives the summary for revenues and monthly expenses under
// the given investor terms.
func ComputeSummary(revenues RevenueBreakdown, expenses ExpenseMap, terms InvestorTerms) Summary {
	total := revenues.Total()
	monthly := expenses.MonthlyTotal()
	opCosts := monthly.Mul(monthsPerYear)
	net := total.Sub(opCosts)

	s := Summary{
		TotalRevenue:            total,
		MonthlyOperatingExpense: monthly,
		OperatingCosts:          opCosts,
		NetProfit:               net,
		EBITDAMargin:            percentOf(net, total),
		Investor:                ComputeInvestorReturn(net, terms),
		StreamShares:            make([]StreamShare, 0, len(revenues)),
	}
	s.CashAtYearEnd = net.Add(terms.Investment).Sub(s.Investor.Payout)

	for _, r := range revenues {
		s.StreamShares = append(s.StreamShares, StreamShare{Key: r.Key, Percent: percentOf(r.Amount, total)})
	}
	return s
}

// ComputeInvestorReturn pays the greater of the profit share and the minimum.
func ComputeInvestorReturn(netProfit decimal.Decimal, terms InvestorTerms) InvestorReturn {
	share := netProfit.Mul(pct(terms.ProfitSharePercent))
	r := InvestorReturn{
		Investment:         terms.Investment,
		ProfitSharePercent: nonNeg(terms.ProfitSharePercent),
		ProfitShare:        share,
		MinimumPayout:      terms.MinimumPayout,
		MinimumMultiple:    terms.MinimumMultiple(),
	}
	if share.GreaterThanOrEqual(terms.MinimumPayout) {
		r.Payout = share
		r.Rule = PayoutProfitShare
	} else {
		r.Payout = terms.MinimumPayout
		r.Rule = PayoutMinimumGuarantee
	}
	r.ROI = percentOf(r.Payout.Sub(terms.Investment), terms.Investment)
	return r
}
