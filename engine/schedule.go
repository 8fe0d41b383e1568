/*
schedule.go - Monthly Allocator

PURPOSE:
  Spreads annual revenue over the campaign calendar by fixed multipliers
  and tracks monthly profit and the cumulative cash position.

RULES:
  revenue        = annualRevenue x month.RevenueMultiplier (no normalization)
  expenses       = override for the month if present, else monthly OpEx
  netProfit      = revenue - expenses
  cumulativeCash = startingCash + sum(netProfit through this month)
                   - payout (from the payout month onward)

EXAMPLE:
  rows := engine.ComputeMonthlySchedule(annual, opex)
  quarters := engine.Quarters(rows)
*/
package engine

import "github.com/shopspring/decimal"

// PreLaunchExpense is the flat monthly spend of the default overrides.
var PreLaunchExpense = decimal.NewFromInt(80000)

// DefaultExpenseOverrides pins the first three months of cal to
// PreLaunchExpense. On the default calendar that is both pre-launch months
// and the December soft launch; later months carry full OpEx.
func DefaultExpenseOverrides(cal Calendar) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, 3)
	for i, m := range cal {
		if i >= 3 {
			break
		}
		out[m.Key()] = PreLaunchExpense
	}
	return out
}

// MonthlyRow is one month of the projection.
type MonthlyRow struct {
	Month             CalendarMonth
	RevenueMultiplier decimal.Decimal
	Revenue           decimal.Decimal
	Expenses          decimal.Decimal
	ExpenseOverridden bool
	NetProfit         decimal.Decimal
	InvestorPayout    decimal.Decimal
	CumulativeCash    decimal.Decimal
}

// Allocator turns annual figures into a MonthlyRow per calendar month.
type Allocator struct {
	Calendar Calendar

	// ExpenseOverrides replace monthly OpEx for the keyed months. Nil means
	// DefaultExpenseOverrides(Calendar).
	ExpenseOverrides map[string]decimal.Decimal

	StartingCash decimal.Decimal
	Payout       decimal.Decimal

	// PayoutMonth defaults to the final calendar month.
	PayoutMonth string
}

// NewAllocator returns an allocator over the default calendar with the
// default expense overrides and no cash flows.
func NewAllocator() Allocator {
	cal := DefaultCalendar()
	return Allocator{Calendar: cal, ExpenseOverrides: DefaultExpenseOverrides(cal)}
}

// ComputeMonthlySchedule allocates over the default calendar.
func ComputeMonthlySchedule(annualRevenue, monthlyOperatingExpense decimal.Decimal) []MonthlyRow {
	return NewAllocator().Allocate(annualRevenue, monthlyOperatingExpense)
}

// Allocate produces one row per calendar month.
func (a Allocator) Allocate(annualRevenue, monthlyOperatingExpense decimal.Decimal) []MonthlyRow {
	cal := a.Calendar
	if cal == nil {
		cal = DefaultCalendar()
	}
	overrides := a.ExpenseOverrides
	if overrides == nil {
		overrides = DefaultExpenseOverrides(cal)
	}
	payoutMonth := a.PayoutMonth
	if payoutMonth == "" {
		payoutMonth = cal.LastKey()
	}

	rows := make([]MonthlyRow, 0, len(cal))
	running := decimal.Zero
	paid := decimal.Zero
	for _, m := range cal {
		row := MonthlyRow{
			Month:             m,
			RevenueMultiplier: m.RevenueMultiplier,
			Revenue:           annualRevenue.Mul(m.RevenueMultiplier),
			Expenses:          monthlyOperatingExpense,
		}
		if v, ok := overrides[m.Key()]; ok {
			row.Expenses = v
			row.ExpenseOverridden = true
		}
		row.NetProfit = row.Revenue.Sub(row.Expenses)
		running = running.Add(row.NetProfit)

		if m.Key() == payoutMonth {
			row.InvestorPayout = a.Payout
			paid = a.Payout
		}
		row.CumulativeCash = a.StartingCash.Add(running).Sub(paid)
		rows = append(rows, row)
	}
	return rows
}

// =============================================================================
// QUARTERLY ROLLUP
// =============================================================================

// QuarterRow aggregates the months of one calendar quarter.
type QuarterRow struct {
	Key                   string
	Title                 string
	Months                []MonthlyRow
	Revenue               decimal.Decimal
	Expenses              decimal.Decimal
	NetProfit             decimal.Decimal
	AverageMonthlyRevenue decimal.Decimal
}

// Label combines the quarter and its title, e.g. "Q4 2025 - Pre-Launch".
func (q QuarterRow) Label() string {
	label := q.Key
	if len(label) > 2 {
		label = label[:2] + " " + label[3:]
	}
	if q.Title == "" {
		return label
	}
	return label + " - " + q.Title
}

// Quarters groups rows by calendar quarter, preserving order.
func Quarters(rows []MonthlyRow) []QuarterRow {
	var out []QuarterRow
	index := make(map[string]int)
	for _, r := range rows {
		key := r.Month.Quarter()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, QuarterRow{Key: key, Title: quarterTitles[key]})
		}
		q := &out[i]
		q.Months = append(q.Months, r)
		q.Revenue = q.Revenue.Add(r.Revenue)
		q.Expenses = q.Expenses.Add(r.Expenses)
		q.NetProfit = q.NetProfit.Add(r.NetProfit)
	}
	for i := range out {
		out[i].AverageMonthlyRevenue = safeDiv(out[i].Revenue, decimal.NewFromInt(int64(len(out[i].Months))))
	}
	return out
}
