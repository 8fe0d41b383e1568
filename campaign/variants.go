/*
variants.go - Named calculator presets

PURPOSE:
  The calculator went through three iterations that differ only in how
  organizations are captured and which revenue streams are reported.
  Each is a Variant here: same engine, different ParameterSet.

AVAILABLE VARIANTS:
  advanced-market: Toggle capture (individual / market share), 5 streams
  capture-rate:    Percentage of each segment's count, all 7 streams
  captured-count:  Absolute captured counts, media + SaaS + transaction fees
*/
package campaign

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/engine"
)

const (
	VariantAdvancedMarket = "advanced-market"
	VariantCaptureRate    = "capture-rate"
	VariantCapturedCount  = "captured-count"
)

// DefaultVariant is the reference calculator.
const DefaultVariant = VariantAdvancedMarket

// Variant describes one preset.
type Variant struct {
	Name        string
	Title       string
	Description string
	build       func() engine.Model
}

// Model returns a fresh model for the variant.
func (v Variant) Model() engine.Model { return v.build() }

var variants = []Variant{
	{
		Name:        VariantAdvancedMarket,
		Title:       "Advanced Market",
		Description: "Captured counts or a global market share, five revenue streams",
		build:       DefaultModel,
	},
	{
		Name:        VariantCaptureRate,
		Title:       "Capture Rate",
		Description: "A percentage of every segment's organizations, all seven revenue streams",
		build:       captureRateModel,
	},
	{
		Name:        VariantCapturedCount,
		Title:       "Captured Count",
		Description: "Explicit captured organizations, media, SaaS and transaction fees only",
		build:       capturedCountModel,
	},
}

// Variants returns every preset in registry order.
func Variants() []Variant {
	return append([]Variant(nil), variants...)
}

// LookupVariant finds a preset by name. An empty name selects DefaultVariant.
func LookupVariant(name string) (Variant, error) {
	if name == "" {
		name = DefaultVariant
	}
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", engine.ErrUnknownVariant, name)
}

// VariantModel is LookupVariant followed by Model.
func VariantModel(name string) (engine.Model, error) {
	v, err := LookupVariant(name)
	if err != nil {
		return engine.Model{}, err
	}
	return v.Model(), nil
}

// DefaultCaptureRatePercent is the capture-rate variant's rate for every
// segment without an explicit override.
var DefaultCaptureRatePercent = decimal.NewFromInt(2)

func captureRateModel() engine.Model {
	m := DefaultModel()
	m.Params.Capture = engine.PercentageCapture{
		DefaultRatePercent: DefaultCaptureRatePercent,
		Rates: map[engine.SegmentID]decimal.Decimal{
			LocalSmall: decimal.NewFromInt(1),
			USSenate:   decimal.NewFromInt(5),
		},
	}
	m.Params.Streams = append([]engine.StreamKey(nil), engine.AllStreams...)
	return m
}

func capturedCountModel() engine.Model {
	m := DefaultModel()
	m.Params.Capture = engine.AbsoluteCapture{}
	m.Params.Streams = []engine.StreamKey{
		engine.StreamMediaCommissions,
		engine.StreamSaaSSubscriptions,
		engine.StreamTransactionFees,
	}
	return m
}
