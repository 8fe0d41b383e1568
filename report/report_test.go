package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/report"
)

func referenceProjection(t *testing.T) (*engine.Projection, engine.Model) {
	t.Helper()
	m := campaign.DefaultModel()
	p, err := engine.New().Project(m)
	require.NoError(t, err)
	return p, m
}

// section returns the table rows under a "## name" heading.
func section(md, name string) []string {
	var rows []string
	in := false
	for _, line := range strings.Split(md, "\n") {
		switch {
		case strings.HasPrefix(line, "## "):
			in = line == "## "+name
		case in && strings.HasPrefix(line, "| ") && !strings.HasPrefix(line, "|---"):
			rows = append(rows, line)
		}
	}
	return rows
}

func TestMoney(t *testing.T) {
	r := report.NewRenderer()

	assert.Equal(t, "$1,841,742.50", r.Money(decimal.RequireFromString("1841742.5")))
	assert.Equal(t, "-$48,257.50", r.Money(decimal.RequireFromString("-48257.5")))
	assert.Equal(t, "$0.00", r.Money(decimal.RequireFromString("-0.001")))
	assert.Equal(t, "-2.62%", r.Percent(decimal.RequireFromString("-2.6202")))
	assert.Equal(t, "19,865", r.Count(19865))
}

func TestMoney_Locale(t *testing.T) {
	r := report.NewRendererFor(language.German)
	assert.Equal(t, "$1.841.742,50", r.Money(decimal.RequireFromString("1841742.5")))
}

func TestMarkdown_Summary(t *testing.T) {
	// GIVEN: The reference projection
	// WHEN: Rendering the memo
	// THEN: The summary table carries the headline figures in order

	p, m := referenceProjection(t)
	md := report.NewRenderer().Markdown("Base Case", p, m)

	want := []string{
		"| Metric | Value |",
		"| Total revenue | $1,841,742.50 |",
		"| Operating costs | $1,890,000.00 |",
		"| Net profit | -$48,257.50 |",
		"| EBITDA margin | -2.62% |",
		"| Investment | $300,000.00 |",
		"| Investor payout | $600,000.00 |",
		"| Payout rule | Minimum guarantee (2.0x) |",
		"| Investor ROI | 100.00% |",
		"| Cash at year end | -$348,257.50 |",
	}
	if diff := cmp.Diff(want, section(md, "Summary")); diff != "" {
		t.Errorf("summary table mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, strings.HasPrefix(md, "# Base Case\n"))
	assert.Contains(t, md, "19,865 addressable")
	assert.Len(t, section(md, "Revenue streams"), 1+5)
	assert.Len(t, section(md, "Monthly schedule"), 1+14)
	assert.Len(t, section(md, "Quarters"), 1+5)
}

func TestMarkdown_EscapesTitle(t *testing.T) {
	p, m := referenceProjection(t)
	md := report.NewRenderer().Markdown("A | B", p, m)
	assert.True(t, strings.HasPrefix(md, `# A \| B`))
}

func TestHTML(t *testing.T) {
	p, m := referenceProjection(t)

	var buf bytes.Buffer
	require.NoError(t, report.NewRenderer().HTML(&buf, "Board <Deck>", p, m))

	out := buf.String()
	assert.Contains(t, out, "<title>Board &lt;Deck&gt;</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h2>Monthly schedule</h2>")
	assert.Contains(t, out, "$1,841,742.50")
}
