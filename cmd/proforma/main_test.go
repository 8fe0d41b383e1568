package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/proforma-engine/api"
	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/export"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompute_ReferenceSummary(t *testing.T) {
	// GIVEN: The default variant in individual mode
	// WHEN: Running compute
	// THEN: The summary carries the reference figures

	out, err := execute(t, "compute")
	require.NoError(t, err)

	assert.Contains(t, out, "advanced-market (individual)")
	assert.Contains(t, out, "$1,841,742.50")
	assert.Contains(t, out, "-$48,257.50")
	assert.Contains(t, out, "-2.62%")
	assert.Contains(t, out, "Minimum guarantee (2.0x)")
	assert.Contains(t, out, "-$348,257.50")
	assert.Contains(t, out, "201 of 19,865")
}

func TestCompute_MarketShareJSON(t *testing.T) {
	out, err := execute(t, "compute", "--mode", "marketShare", "--json")
	require.NoError(t, err)

	var dto api.ProjectionDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	assert.EqualValues(t, 993, dto.Organizations.Effective)
	assert.Len(t, dto.Schedule, 14)
}

func TestCompute_RejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "compute", "--mode", "statewide")
	require.Error(t, err)
	assert.True(t, engine.IsClientError(err))
}

func TestCompute_UnknownVariant(t *testing.T) {
	_, err := execute(t, "compute", "--variant", "nope")
	assert.ErrorIs(t, err, engine.ErrUnknownVariant)
}

func TestCompute_FromFile(t *testing.T) {
	// GIVEN: A YAML overlay that zeroes every expense
	// WHEN: Computing from the file
	// THEN: Net profit equals revenue

	path := filepath.Join(t.TempDir(), "lean.yaml")
	doc := `
parameters:
  operating_expenses:
    engineering: 0
    aiServices: 0
    salesGrowth: 0
    infrastructure: 0
    marketing: 0
    compliance: 0
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, "compute", path)
	require.NoError(t, err)
	assert.Regexp(t, `Net profit\s+\$1,841,742\.50`, out)
}

func TestSchedule_DefaultOverrides(t *testing.T) {
	out, err := execute(t, "schedule", "--revenue", "1000000", "--opex", "100000", "--payout", "50000")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header + 14 months + blank + quarter header + quarters
	require.Greater(t, len(lines), 16)
	assert.Contains(t, lines[1], "Oct 2025")
	assert.Contains(t, lines[1], "$80,000.00")
	assert.Contains(t, lines[14], "Nov 2026")
	assert.Contains(t, lines[14], "$50,000.00")
}

func TestSchedule_RejectsPayoutMonthOutsideCalendar(t *testing.T) {
	_, err := execute(t, "schedule", "--revenue", "1", "--payout-month", "2030-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payout-month")
}

func TestSchedule_RequiresRevenue(t *testing.T) {
	_, err := execute(t, "schedule")
	assert.Error(t, err)
}

func TestExport_WritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	out, err := execute(t, "export", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), export.SheetSummary)
	assert.Contains(t, f.GetSheetList(), export.SheetMonthly)
}

func TestReport_MarkdownAndHTML(t *testing.T) {
	md, err := execute(t, "report")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# Advanced Market"))

	html, err := execute(t, "report", "--html", "--title", "Board Memo")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Board Memo</h1>")
}

func TestDefaults_Formats(t *testing.T) {
	for _, format := range []string{"json", "yaml", "hjson"} {
		t.Run(format, func(t *testing.T) {
			out, err := execute(t, "defaults", "--variant", campaign.VariantCaptureRate, "--format", format)
			require.NoError(t, err)
			assert.Contains(t, out, campaign.VariantCaptureRate)
		})
	}

	_, err := execute(t, "defaults", "--format", "toml")
	assert.Error(t, err)
}

func TestVariants_ListsEvery(t *testing.T) {
	out, err := execute(t, "variants")
	require.NoError(t, err)
	for _, v := range campaign.Variants() {
		assert.Contains(t, out, v.Name)
	}
}

func TestCompare_KeepsSourceOrder(t *testing.T) {
	// GIVEN: Every variant plus the reference variant again
	// WHEN: Comparing concurrently
	// THEN: Results line up with the sources

	sources := []string{
		"variant:" + campaign.VariantCapturedCount,
		"variant:" + campaign.VariantAdvancedMarket,
		"variant:" + campaign.VariantCaptureRate,
		"variant:" + campaign.VariantAdvancedMarket,
	}
	results, err := compareAll(context.Background(), sources, modelFlags{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, campaign.VariantCapturedCount, results[0].name)
	assert.Equal(t, campaign.VariantAdvancedMarket, results[1].name)
	assert.True(t, decimal.RequireFromString("1841742.5").Equal(results[1].p.Summary.TotalRevenue))
	assert.True(t, results[1].p.Summary.TotalRevenue.Equal(results[3].p.Summary.TotalRevenue))
}

func TestCompare_ReportsFailingSource(t *testing.T) {
	_, err := compareAll(context.Background(), []string{"variant:nope"}, modelFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant:nope")
	assert.ErrorIs(t, err, engine.ErrUnknownVariant)
}

func TestCompare_Command(t *testing.T) {
	out, err := execute(t, "compare")
	require.NoError(t, err)
	for _, v := range campaign.Variants() {
		assert.Contains(t, out, v.Name)
	}
}

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestRootCmd_DoesNotReadDotEnv(t *testing.T) {
	// GIVEN: A .env file in the working directory
	// WHEN: Building the command tree and running a non-server command
	// THEN: None of its keys reach the environment

	unsetEnv(t, "PROFORMA_DB")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROFORMA_DB=/tmp/from-dotenv.db\n"), 0o644))
	chdir(t, dir)

	_, err := execute(t, "variants")
	require.NoError(t, err)

	_, ok := os.LookupEnv("PROFORMA_DB")
	assert.False(t, ok)
}

func TestServeConfig_EnvFileBelowFlags(t *testing.T) {
	// GIVEN: A ./.env and an explicit --env file that disagree, plus --port
	// WHEN: Resolving the server config
	// THEN: The --env file wins over ./.env and the flag wins over both

	unsetEnv(t, "PROFORMA_DB")
	unsetEnv(t, "PROFORMA_PORT")
	unsetEnv(t, "PROFORMA_ALLOWED_ORIGINS")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROFORMA_DB=/tmp/dotenv.db\nPROFORMA_PORT=7000\n"), 0o644))
	explicit := filepath.Join(dir, "staging.env")
	require.NoError(t, os.WriteFile(explicit, []byte("PROFORMA_DB=/tmp/staging.db\nPROFORMA_PORT=7100\n"), 0o644))
	chdir(t, dir)

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--env", explicit, "--port", "9300", "--origins", "http://a.test,http://b.test"}))

	cfg, err := serveConfig(explicit, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/staging.db", cfg.DBPath)
	assert.Equal(t, 9300, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestServeConfig_RejectsInvalidFlag(t *testing.T) {
	unsetEnv(t, "PROFORMA_LOG_FORMAT")
	chdir(t, t.TempDir())

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-format", "xml"}))

	_, err := serveConfig("", cmd.Flags())
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
