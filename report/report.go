/*
Package report renders a projection as a Markdown memo and as HTML.

PURPOSE:
  The workbook export is for analysts; the report is the one-page version
  for an investor email or a browser tab. Markdown is the source, HTML is
  goldmark's rendering of it with GFM tables.

NUMBER FORMATTING:
  Money and counts are grouped per locale through golang.org/x/text/message
  (English by default): $1,841,742.50, 19,865 orgs.

SEE ALSO:
  - export/workbook.go: XLSX export of the same projection
  - api/handlers.go: GET /api/scenarios/{id}/report
*/
package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
)

// Renderer formats projections. Safe for concurrent use.
type Renderer struct {
	printer *message.Printer
	md      goldmark.Markdown
}

// NewRenderer returns an English renderer.
func NewRenderer() *Renderer {
	return NewRendererFor(language.English)
}

// NewRendererFor groups numbers the way tag does.
func NewRendererFor(tag language.Tag) *Renderer {
	return &Renderer{
		printer: message.NewPrinter(tag),
		md:      goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

// Money formats d as dollars with two decimals and grouped thousands.
func (r *Renderer) Money(d decimal.Decimal) string {
	f, _ := d.Abs().Round(2).Float64()
	s := "$" + r.printer.Sprintf("%.2f", f)
	if d.Round(2).IsNegative() {
		return "-" + s
	}
	return s
}

// Percent formats a percentage value (2.5 -> "2.50%").
func (r *Renderer) Percent(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return r.printer.Sprintf("%.2f%%", f)
}

// Count formats an integer with grouped thousands.
func (r *Renderer) Count(n int64) string {
	return r.printer.Sprintf("%d", n)
}

// PayoutRule names the rule that set the payout.
func PayoutRule(inv engine.InvestorReturn) string {
	if inv.GuaranteeApplied() {
		return fmt.Sprintf("Minimum guarantee (%sx)", inv.MinimumMultiple.StringFixed(1))
	}
	return fmt.Sprintf("Profit share (%s%%)", inv.ProfitSharePercent.String())
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown renders the memo.
func (r *Renderer) Markdown(title string, p *engine.Projection, m engine.Model) string {
	var b strings.Builder
	s := p.Summary
	inv := s.Investor

	fmt.Fprintf(&b, "# %s\n\n", escape(title))
	fmt.Fprintf(&b, "Capture: **%s**. Organizations served: %s of %s addressable.\n\n",
		captureLabel(m.Params), r.Count(p.Organizations.Effective), r.Count(p.Organizations.Addressable))

	b.WriteString("## Summary\n\n| Metric | Value |\n|---|---:|\n")
	row(&b, "Total revenue", r.Money(s.TotalRevenue))
	row(&b, "Operating costs", r.Money(s.OperatingCosts))
	row(&b, "Net profit", r.Money(s.NetProfit))
	row(&b, "EBITDA margin", r.Percent(s.EBITDAMargin))
	row(&b, "Investment", r.Money(inv.Investment))
	row(&b, "Investor payout", r.Money(inv.Payout))
	row(&b, "Payout rule", PayoutRule(inv))
	row(&b, "Investor ROI", r.Percent(inv.ROI))
	row(&b, "Cash at year end", r.Money(s.CashAtYearEnd))
	b.WriteString("\n")

	shares := make(map[engine.StreamKey]decimal.Decimal, len(s.StreamShares))
	for _, sh := range s.StreamShares {
		shares[sh.Key] = sh.Percent
	}
	b.WriteString("## Revenue streams\n\n| Stream | Annual | Share |\n|---|---:|---:|\n")
	for _, st := range p.Revenue.Streams {
		row(&b, campaign.StreamLabel(st.Key), r.Money(st.Amount), r.Percent(shares[st.Key]))
	}
	b.WriteString("\n")

	b.WriteString("## Monthly schedule\n\n| Month | Phase | Revenue | Expenses | Net | Payout | Cash |\n|---|---|---:|---:|---:|---:|---:|\n")
	for _, mr := range p.Schedule {
		row(&b, mr.Month.Short(), string(mr.Month.Phase),
			r.Money(mr.Revenue), r.Money(mr.Expenses), r.Money(mr.NetProfit),
			r.Money(mr.InvestorPayout), r.Money(mr.CumulativeCash))
	}
	b.WriteString("\n")

	b.WriteString("## Quarters\n\n| Quarter | Revenue | Expenses | Net | Avg monthly revenue |\n|---|---:|---:|---:|---:|\n")
	for _, q := range p.Quarters {
		row(&b, q.Label(), r.Money(q.Revenue), r.Money(q.Expenses), r.Money(q.NetProfit), r.Money(q.AverageMonthlyRevenue))
	}
	return b.String()
}

// =============================================================================
// HTML
// =============================================================================

// HTML writes a standalone page rendering the memo.
func (r *Renderer) HTML(w io.Writer, title string, p *engine.Projection, m engine.Model) error {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(title, p, m)), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui; max-width: 960px; margin: 40px auto; padding: 0 20px; }
table { border-collapse: collapse; margin-bottom: 24px; }
th, td { border-bottom: 1px solid #ddd; padding: 4px 12px; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body.String())
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func row(b *strings.Builder, cells ...string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

func captureLabel(p engine.ParameterSet) string {
	switch c := p.Capture.(type) {
	case engine.ToggleCapture:
		if c.Mode == engine.ModeMarketShare {
			return "market share " + c.MarketSharePercent.String() + "%"
		}
		return "captured organizations"
	case engine.MarketShareCapture:
		return "market share " + c.SharePercent.String() + "%"
	case engine.PercentageCapture:
		return "capture rate " + c.DefaultRatePercent.String() + "% default"
	case engine.AbsoluteCapture:
		return "captured organizations"
	default:
		return "captured organizations"
	}
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "#", `\#`)

func escape(s string) string { return markdownEscaper.Replace(s) }
