/*
Package campaign provides the political-campaign domain data for the
pro-forma engine: the seven organization segments, default operating
expenses, reference parameters and the named calculator variants.

Everything here is configuration, not behavior. The engine computes over
whatever segments and parameters it is given; these are the values the
reference calculator ships with.

USAGE:
  model := engine.Model{Segments: campaign.DefaultSegments(), Params: campaign.DefaultParameters()}

  model, err := campaign.VariantModel("capture-rate")

SEE ALSO:
  - defaults.go: Reference ParameterSet and operating expenses
  - variants.go: Named presets
*/
package campaign

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/engine"
)

// =============================================================================
// SEGMENT IDS
// =============================================================================

const (
	LocalSmall  engine.SegmentID = "localSmall"
	LocalLarge  engine.SegmentID = "localLarge"
	StateHouse  engine.SegmentID = "stateHouse"
	StateSenate engine.SegmentID = "stateSenate"
	Statewide   engine.SegmentID = "statewide"
	USHouse     engine.SegmentID = "usHouse"
	USSenate    engine.SegmentID = "usSenate"
)

// SegmentIDs lists the fixed segment set in display order.
var SegmentIDs = []engine.SegmentID{
	LocalSmall, LocalLarge, StateHouse, StateSenate, Statewide, USHouse, USSenate,
}

var segmentNames = map[engine.SegmentID]string{
	LocalSmall:  "Local Small",
	LocalLarge:  "Local Large",
	StateHouse:  "State House",
	StateSenate: "State Senate",
	Statewide:   "Statewide/Gov",
	USHouse:     "U.S. House",
	USSenate:    "U.S. Senate",
}

// SegmentName returns the display name for id, or the id itself.
func SegmentName(id engine.SegmentID) string {
	if n, ok := segmentNames[id]; ok {
		return n
	}
	return string(id)
}

// =============================================================================
// DEFAULT SEGMENT TABLE
// =============================================================================

type segmentRow struct {
	id                engine.SegmentID
	primary, general  int64
	capP, capG        int64
	spendP, spendG    int64
	raiseP, raiseG    int64
	smsP, smsG        int64
	vb, ev, mapp, avd int64
}

// Statewide general fundraising sits below primary, unlike every other
// segment. Kept as shipped; callers may override.
var defaultRows = []segmentRow{
	{LocalSmall, 12000, 12000, 100, 100, 2000, 7500, 5000, 10000, 50000, 100000, 100, 75, 100, 250},
	{LocalLarge, 350, 350, 20, 20, 25000, 500000, 100000, 250000, 50000, 250000, 250, 100, 200, 400},
	{StateHouse, 4809, 3735, 35, 30, 10000, 100000, 25000, 50000, 10000, 50000, 400, 100, 200, 500},
	{StateSenate, 1254, 982, 20, 18, 10000, 100000, 50000, 150000, 50000, 250000, 500, 150, 250, 750},
	{Statewide, 463, 270, 5, 3, 250000, 10000000, 500000, 2000000, 500000, 2000000, 1000, 250, 450, 1500},
	{USHouse, 870, 425, 20, 12, 25000, 3000000, 500000, 2000000, 50000, 250000, 500, 150, 250, 1000},
	{USSenate, 119, 33, 1, 1, 2500000, 10000000, 2500000, 10000000, 15000000, 35000000, 1000, 250, 450, 1500},
}

// DefaultSegments returns a fresh copy of the reference segment table.
func DefaultSegments() []engine.Segment {
	out := make([]engine.Segment, 0, len(defaultRows))
	for _, r := range defaultRows {
		out = append(out, engine.Segment{
			ID:                   r.id,
			Name:                 SegmentName(r.id),
			PrimaryCount:         r.primary,
			GeneralCount:         r.general,
			CapturedPrimaryCount: r.capP,
			CapturedGeneralCount: r.capG,
			PrimarySpend:         decimal.NewFromInt(r.spendP),
			GeneralSpend:         decimal.NewFromInt(r.spendG),
			PrimaryFundraising:   decimal.NewFromInt(r.raiseP),
			GeneralFundraising:   decimal.NewFromInt(r.raiseG),
			PrimarySMS:           r.smsP,
			GeneralSMS:           r.smsG,
			SubscriptionPrices: engine.SubscriptionPrices{
				Votebuilder:       decimal.NewFromInt(r.vb),
				EventPlatform:     decimal.NewFromInt(r.ev),
				Mapping:           decimal.NewFromInt(r.mapp),
				AdvancedVoterData: decimal.NewFromInt(r.avd),
			},
		})
	}
	return out
}

// FindSegment returns the segment with id.
func FindSegment(segments []engine.Segment, id engine.SegmentID) (engine.Segment, error) {
	for _, s := range segments {
		if s.ID == id {
			return s, nil
		}
	}
	return engine.Segment{}, fmt.Errorf("%w: %s", engine.ErrUnknownSegment, id)
}
