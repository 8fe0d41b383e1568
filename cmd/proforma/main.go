/*
main.go - Command-line calculator

PURPOSE:
  Runs the pro-forma engine from the terminal: projections, schedules,
  workbooks and memos from a model document or a named variant, plus the
  API server.

COMMANDS:
  compute [file]    Print the projection summary (or --json)
  schedule          Run the monthly allocator on explicit figures
  export [file]     Write the projection workbook
  report [file]     Print the markdown memo (or --html)
  defaults          Print a variant's default document
  variants          List the calculator variants
  compare [files]   Project several documents or variants side by side
  serve             Run the API server

MODEL SELECTION:
  A file argument is parsed as JSON, YAML or Hjson by extension and
  overlaid on its variant's defaults. Without one, --variant picks a preset.

EXAMPLES:
  proforma compute --mode marketShare
  proforma export scenarios/base.yaml -o base.xlsx
  proforma compare --all

SEE ALSO:
  - commands.go: Command implementations
  - cmd/server/main.go: Server-only entry point
*/
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/factory"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "proforma",
		Short:         "Pro-forma revenue, cash flow and investor return calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(
		newComputeCmd(),
		newScheduleCmd(),
		newExportCmd(),
		newReportCmd(),
		newDefaultsCmd(),
		newVariantsCmd(),
		newCompareCmd(),
		newServeCmd(),
	)
	return root
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// modelFlags select the model a command projects.
type modelFlags struct {
	variant string
	mode    string
	strict  bool
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.variant, "variant", campaign.DefaultVariant, "calculator variant when no file is given")
	cmd.Flags().StringVar(&f.mode, "mode", "", "override the capture mode (individual or marketShare)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "validate the model before computing")
}

// load reads the document named by args, or the selected variant's
// defaults, and applies the mode and strict overrides.
func (f *modelFlags) load(args []string) (engine.Model, string, error) {
	var (
		m       engine.Model
		variant string
		err     error
	)
	if len(args) > 0 {
		m, variant, err = factory.NewModelFactory().LoadFile(args[0])
	} else {
		variant = f.variant
		m, err = campaign.VariantModel(variant)
	}
	if err != nil {
		return engine.Model{}, "", err
	}

	if f.mode != "" {
		mode := engine.Mode(f.mode)
		if !mode.IsValid() {
			return engine.Model{}, "", &engine.ValidationError{Field: "mode", Value: f.mode, Reason: "must be individual or marketShare"}
		}
		m.Params = m.Params.WithMode(mode)
	}
	if f.strict {
		m.Strict = true
	}
	return m, variant, nil
}

// project loads and projects in one step.
func (f *modelFlags) project(args []string) (*engine.Projection, engine.Model, string, error) {
	m, variant, err := f.load(args)
	if err != nil {
		return nil, engine.Model{}, "", err
	}
	p, err := engine.New().Project(m)
	if err != nil {
		return nil, engine.Model{}, "", err
	}
	return p, m, variant, nil
}
