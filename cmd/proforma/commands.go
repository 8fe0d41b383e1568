package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/warp/proforma-engine/api"
	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/config"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/export"
	"github.com/warp/proforma-engine/factory"
	"github.com/warp/proforma-engine/report"
)

// compareWorkers bounds concurrent projections in compare.
const compareWorkers = 4

// =============================================================================
// COMPUTE
// =============================================================================

func newComputeCmd() *cobra.Command {
	var (
		mf     modelFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "compute [file]",
		Short: "Print the projection summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, m, variant, err := mf.project(args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(api.NewProjectionDTO(p))
			}
			return writeSummary(cmd.OutOrStdout(), report.NewRenderer(), p, m, variant)
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full projection as JSON")
	return cmd
}

func writeSummary(out io.Writer, r *report.Renderer, p *engine.Projection, m engine.Model, variant string) error {
	s := p.Summary
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Variant\t%s (%s)\n", variant, m.Params.Mode())
	fmt.Fprintf(tw, "Total revenue\t%s\n", r.Money(s.TotalRevenue))
	fmt.Fprintf(tw, "Operating costs\t%s\n", r.Money(s.OperatingCosts))
	fmt.Fprintf(tw, "Net profit\t%s\n", r.Money(s.NetProfit))
	fmt.Fprintf(tw, "EBITDA margin\t%s\n", r.Percent(s.EBITDAMargin))
	fmt.Fprintf(tw, "Investor payout\t%s\t%s\n", r.Money(s.Investor.Payout), report.PayoutRule(s.Investor))
	fmt.Fprintf(tw, "Investor ROI\t%s\n", r.Percent(s.Investor.ROI))
	fmt.Fprintf(tw, "Cash at year end\t%s\n", r.Money(s.CashAtYearEnd))
	fmt.Fprintf(tw, "Organizations\t%s of %s\n", r.Count(p.Organizations.Effective), r.Count(p.Organizations.Addressable))

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Stream\tAnnual revenue\tShare")
	for i, stream := range p.Revenue.Streams {
		share := decimal.Zero
		if i < len(s.StreamShares) && s.StreamShares[i].Key == stream.Key {
			share = s.StreamShares[i].Percent
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", campaign.StreamLabel(stream.Key), r.Money(stream.Amount), r.Percent(share))
	}
	return tw.Flush()
}

// =============================================================================
// SCHEDULE
// =============================================================================

func newScheduleCmd() *cobra.Command {
	var (
		revenue, opex, payout, startingCash float64
		payoutMonth                         string
		noOverrides                         bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Spread annual revenue over the campaign calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc := engine.NewAllocator()
			if payoutMonth != "" && !alloc.Calendar.Has(payoutMonth) {
				return &engine.ValidationError{Field: "payout-month", Value: payoutMonth, Reason: "outside the calendar"}
			}
			if noOverrides {
				alloc.ExpenseOverrides = map[string]decimal.Decimal{}
			}
			alloc.StartingCash = decimal.NewFromFloat(startingCash)
			alloc.Payout = decimal.NewFromFloat(payout)
			alloc.PayoutMonth = payoutMonth

			rows := alloc.Allocate(decimal.NewFromFloat(revenue), decimal.NewFromFloat(opex))
			return writeSchedule(cmd.OutOrStdout(), report.NewRenderer(), rows)
		},
	}
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "annual revenue")
	cmd.Flags().Float64Var(&opex, "opex", 0, "monthly operating expense")
	cmd.Flags().Float64Var(&payout, "payout", 0, "investor payout")
	cmd.Flags().StringVar(&payoutMonth, "payout-month", "", "month the payout leaves the cash position (YYYY-MM, default last)")
	cmd.Flags().Float64Var(&startingCash, "starting-cash", 0, "cash on hand before the first month")
	cmd.Flags().BoolVar(&noOverrides, "no-overrides", false, "use monthly OpEx for the pre-launch months too")
	cmd.MarkFlagRequired("revenue")
	return cmd
}

func writeSchedule(out io.Writer, r *report.Renderer, rows []engine.MonthlyRow) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tPhase\tMultiplier\tRevenue\tExpenses\tNet\tPayout\tCash\t")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Month.Short(), row.Month.Phase, row.RevenueMultiplier.String(),
			r.Money(row.Revenue), r.Money(row.Expenses), r.Money(row.NetProfit),
			r.Money(row.InvestorPayout), r.Money(row.CumulativeCash))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Quarter\t\t\tRevenue\tExpenses\tNet\t\t\t")
	for _, q := range engine.Quarters(rows) {
		fmt.Fprintf(tw, "%s\t\t\t%s\t%s\t%s\t\t\t\n", q.Label(), r.Money(q.Revenue), r.Money(q.Expenses), r.Money(q.NetProfit))
	}
	return tw.Flush()
}

// =============================================================================
// EXPORT / REPORT
// =============================================================================

func newExportCmd() *cobra.Command {
	var (
		mf     modelFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the projection workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, m, _, err := mf.project(args)
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(f)
			if err := export.NewExporter().Write(w, p, m); err != nil {
				f.Close()
				return err
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "proforma.xlsx", "workbook path")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		mf    modelFlags
		html  bool
		title string
	)
	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Print the projection memo as markdown or HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, m, variant, err := mf.project(args)
			if err != nil {
				return err
			}
			if title == "" {
				title = reportTitle(args, variant)
			}
			r := report.NewRenderer()
			if html {
				return r.HTML(cmd.OutOrStdout(), title, p, m)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), r.Markdown(title, p, m))
			return err
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&html, "html", false, "render a standalone HTML page")
	cmd.Flags().StringVar(&title, "title", "", "memo title (default from the file or variant)")
	return cmd
}

func reportTitle(args []string, variant string) string {
	if len(args) > 0 {
		return strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	v, err := campaign.LookupVariant(variant)
	if err != nil {
		return variant
	}
	return v.Title
}

// =============================================================================
// DEFAULTS / VARIANTS
// =============================================================================

func newDefaultsCmd() *cobra.Command {
	var variant, format string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print a variant's default model document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := factory.Format(format)
			switch f {
			case factory.FormatJSON, factory.FormatYAML, factory.FormatHJSON:
			default:
				return &engine.ValidationError{Field: "format", Value: format, Reason: "must be json, yaml or hjson"}
			}
			m, err := campaign.VariantModel(variant)
			if err != nil {
				return err
			}
			data, err := factory.NewModelFactory().Encode(m, variant, f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&variant, "variant", campaign.DefaultVariant, "calculator variant")
	cmd.Flags().StringVar(&format, "format", string(factory.FormatYAML), "json, yaml or hjson")
	return cmd
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the calculator variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, v := range campaign.Variants() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, v.Title, v.Description)
			}
			return tw.Flush()
		},
	}
}

// =============================================================================
// COMPARE
// =============================================================================

// comparison is one column of the compare table.
type comparison struct {
	name string
	p    *engine.Projection
}

func newCompareCmd() *cobra.Command {
	var (
		all    bool
		mode   string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "compare [files...]",
		Short: "Project several documents or variants side by side",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sources []string
			if all || len(args) == 0 {
				for _, v := range campaign.Variants() {
					sources = append(sources, "variant:"+v.Name)
				}
			}
			sources = append(sources, args...)

			results, err := compareAll(cmd.Context(), sources, modelFlags{mode: mode, strict: strict})
			if err != nil {
				return err
			}
			return writeComparison(cmd.OutOrStdout(), report.NewRenderer(), results)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include every variant alongside the given files")
	cmd.Flags().StringVar(&mode, "mode", "", "override the capture mode for every model")
	cmd.Flags().BoolVar(&strict, "strict", false, "validate every model before computing")
	return cmd
}

// compareAll projects every source concurrently. A source is a file path or
// "variant:<name>". Results keep the source order.
func compareAll(ctx context.Context, sources []string, base modelFlags) ([]comparison, error) {
	results := make([]comparison, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(compareWorkers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mf := base
			var args []string
			name, isVariant := strings.CutPrefix(src, "variant:")
			if isVariant {
				mf.variant = name
			} else {
				args = []string{src}
				name = filepath.Base(src)
			}
			p, _, _, err := mf.project(args)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			results[i] = comparison{name: name, p: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeComparison(out io.Writer, r *report.Renderer, results []comparison) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Model\tRevenue\tNet profit\tEBITDA\tPayout\tRule\tROI\tOrganizations")
	for _, c := range results {
		s := c.p.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.name, r.Money(s.TotalRevenue), r.Money(s.NetProfit), r.Percent(s.EBITDAMargin),
			r.Money(s.Investor.Payout), s.Investor.Rule, r.Percent(s.Investor.ROI),
			r.Count(c.p.Organizations.Effective))
	}
	return tw.Flush()
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd() *cobra.Command {
	var envFile string
	// Bound only so the flags show their defaults in usage; RunE rebuilds
	// the config once the .env file is known.
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serveConfig(envFile, cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return api.Serve(ctx, cfg, cfg.Logger(cmd.ErrOrStderr()))
		},
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	defaults.RegisterFlags(fs)
	cmd.Flags().AddGoFlagSet(fs)
	cmd.Flags().StringVar(&envFile, "env", "", ".env file read before the flags (default .env)")
	return cmd
}

// serveConfig loads envFile and the environment, then applies the flags
// set explicitly on flags.
func serveConfig(envFile string, flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if setErr == nil && fs.Lookup(f.Name) != nil {
			setErr = fs.Set(f.Name, f.Value.String())
		}
	})
	if setErr != nil {
		return config.Config{}, setErr
	}
	return cfg, cfg.Validate()
}
