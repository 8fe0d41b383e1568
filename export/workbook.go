/*
Package export writes a projection to an XLSX workbook.

SHEETS:
  Summary:   Headline figures and investor return
  Revenue:   Annual revenue per stream with share of total
  Segments:  Per-segment volumes and stream contributions
  Monthly:   The monthly schedule with cumulative cash
  Quarterly: Calendar-quarter rollups

USAGE:
  f, err := export.NewExporter().Export(projection, model)
  if err != nil { ... }
  err = f.Write(w)
*/
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
)

const (
	SheetSummary   = "Summary"
	SheetRevenue   = "Revenue"
	SheetSegments  = "Segments"
	SheetMonthly   = "Monthly"
	SheetQuarterly = "Quarterly"
)

// Exporter builds workbooks.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// Export builds the workbook for a projection of m. The caller closes the
// returned file.
func (e *Exporter) Export(p *engine.Projection, m engine.Model) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := build(f, p, m); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func build(f *excelize.File, p *engine.Projection, m engine.Model) error {
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetRevenue, SheetSegments, SheetMonthly, SheetQuarterly} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	sheets := []struct {
		name       string
		rows       [][]any
		width      float64
		firstWidth float64
	}{
		{SheetSummary, summaryRows(p, m), 28, 32},
		{SheetRevenue, revenueRows(p), 20, 0},
		{SheetSegments, segmentRows(p), 16, 0},
		{SheetMonthly, monthlyRows(p), 16, 18},
		{SheetQuarterly, quarterlyRows(p), 18, 34},
	}
	for _, s := range sheets {
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
		if err := f.SetRowStyle(s.name, 1, 1, headerStyle); err != nil {
			return err
		}
		last, err := excelize.ColumnNumberToName(max(len(s.rows[0]), 1))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, "A", last, s.width); err != nil {
			return fmt.Errorf("%s column widths: %w", s.name, err)
		}
		if s.firstWidth > 0 {
			if err := f.SetColWidth(s.name, "A", "A", s.firstWidth); err != nil {
				return fmt.Errorf("%s column widths: %w", s.name, err)
			}
		}
	}
	return nil
}

// Write builds the workbook and writes it to w.
func (e *Exporter) Write(w io.Writer, p *engine.Projection, m engine.Model) error {
	f, err := e.Export(p, m)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("%s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// =============================================================================
// SHEET CONTENTS
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

func summaryRows(p *engine.Projection, m engine.Model) [][]any {
	s := p.Summary
	inv := s.Investor
	rule := fmt.Sprintf("%s%% profit share", inv.ProfitSharePercent.String())
	if inv.GuaranteeApplied() {
		rule = fmt.Sprintf("%sx minimum", inv.MinimumMultiple.StringFixed(1))
	}
	mode := string(engine.ModeIndividual)
	switch c := m.Params.Capture.(type) {
	case nil:
	case engine.ToggleCapture:
		mode = string(c.Mode)
	default:
		mode = string(c.Kind())
	}

	return [][]any{
		{"Metric", "Value"},
		{"Capture model", mode},
		{"Total Revenue", money(s.TotalRevenue)},
		{"Monthly Operating Expenses", money(s.MonthlyOperatingExpense)},
		{"Annual Operating Costs", money(s.OperatingCosts)},
		{"Net Profit", money(s.NetProfit)},
		{"EBITDA Margin", percent(s.EBITDAMargin)},
		{"Investment", money(inv.Investment)},
		{"Profit Share", money(inv.ProfitShare)},
		{"Investor Payout", money(inv.Payout)},
		{"Payout Rule", rule},
		{"Investor ROI", percent(inv.ROI)},
		{"Cash at Year End", money(s.CashAtYearEnd)},
		{"Total Fundraising Volume", money(p.Revenue.Totals.Fundraising())},
		{"Payment Processor Cost", money(p.Revenue.Totals.ProcessorCost)},
		{"Addressable Organizations", p.Organizations.Addressable},
		{"Effective Organizations", p.Organizations.Effective},
	}
}

func revenueRows(p *engine.Projection) [][]any {
	shares := make(map[engine.StreamKey]decimal.Decimal, len(p.Summary.StreamShares))
	for _, s := range p.Summary.StreamShares {
		shares[s.Key] = s.Percent
	}

	rows := [][]any{{"Stream", "Annual Revenue", "Share"}}
	totalShare := decimal.Zero
	for _, r := range p.Revenue.Streams {
		share := shares[r.Key]
		totalShare = totalShare.Add(share)
		rows = append(rows, []any{campaign.StreamLabel(r.Key), money(r.Amount), percent(share)})
	}
	rows = append(rows, []any{"Total", money(p.Summary.TotalRevenue), percent(totalShare)})
	return rows
}

func segmentRows(p *engine.Projection) [][]any {
	header := []any{"Segment", "Primary Orgs", "General Orgs", "Subscribers", "Fundraising", "Media Spend", "SMS"}
	var keys []engine.StreamKey
	if len(p.Revenue.Segments) > 0 {
		keys = p.Revenue.Segments[0].Streams.Keys()
	}
	for _, k := range keys {
		header = append(header, campaign.StreamLabel(k))
	}
	header = append(header, "Segment Revenue")

	rows := [][]any{header}
	for _, s := range p.Revenue.Segments {
		row := []any{
			s.Name,
			money(s.PrimaryOrganizations),
			money(s.GeneralOrganizations),
			money(s.Subscribers),
			money(s.PrimaryFundraising.Add(s.GeneralFundraising)),
			money(s.MediaSpend),
			money(s.SMS),
		}
		for _, st := range s.Streams {
			row = append(row, money(st.Amount))
		}
		row = append(row, money(s.Total()))
		rows = append(rows, row)
	}
	return rows
}

func monthlyRows(p *engine.Projection) [][]any {
	rows := [][]any{{"Month", "Phase", "Multiplier", "Revenue", "Expenses", "Net Profit", "Investor Payout", "Cumulative Cash"}}
	for _, r := range p.Schedule {
		mult, _ := r.RevenueMultiplier.Float64()
		rows = append(rows, []any{
			r.Month.Label(),
			string(r.Month.Phase),
			mult,
			money(r.Revenue),
			money(r.Expenses),
			money(r.NetProfit),
			money(r.InvestorPayout),
			money(r.CumulativeCash),
		})
	}
	return rows
}

func quarterlyRows(p *engine.Projection) [][]any {
	rows := [][]any{{"Quarter", "Months", "Revenue", "Expenses", "Net Profit", "Avg Monthly Revenue"}}
	for _, q := range p.Quarters {
		rows = append(rows, []any{
			q.Label(),
			len(q.Months),
			money(q.Revenue),
			money(q.Expenses),
			money(q.NetProfit),
			money(q.AverageMonthlyRevenue),
		})
	}
	return rows
}
