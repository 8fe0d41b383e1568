package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LAUNCH PHASES
// =============================================================================

type LaunchPhase string

const (
	PhasePreLaunch       LaunchPhase = "pre-launch"
	PhaseSoftLaunch      LaunchPhase = "soft-launch"
	PhaseLaunch          LaunchPhase = "launch"
	PhaseEarlyGrowth     LaunchPhase = "early-growth"
	PhaseGrowth          LaunchPhase = "growth"
	PhasePrimarySeason   LaunchPhase = "primary-season"
	PhaseLatePrimary     LaunchPhase = "late-primary"
	PhaseGeneralElection LaunchPhase = "general-election"
	PhaseElectionPeak    LaunchPhase = "election-peak"
)

// =============================================================================
// CALENDAR - Fixed campaign-season revenue curve
// =============================================================================

// CalendarMonth is one month of the campaign cycle and the fraction of annual
// revenue booked in it.
type CalendarMonth struct {
	Year              int
	Month             time.Month
	RevenueMultiplier decimal.Decimal
	Phase             LaunchPhase
}

// Key identifies the month as "2006-01".
func (m CalendarMonth) Key() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Label is the long display name, e.g. "October 2025".
func (m CalendarMonth) Label() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// Short is the abbreviated display name, e.g. "Oct 2025".
func (m CalendarMonth) Short() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}

// Quarter returns the calendar quarter key, e.g. "Q4-2025".
func (m CalendarMonth) Quarter() string {
	return fmt.Sprintf("Q%d-%d", (int(m.Month)-1)/3+1, m.Year)
}

// Calendar is an ordered run of months.
type Calendar []CalendarMonth

func month(year int, m time.Month, multiplier string, phase LaunchPhase) CalendarMonth {
	return CalendarMonth{Year: year, Month: m, RevenueMultiplier: decimal.RequireFromString(multiplier), Phase: phase}
}

// DefaultCalendar is the 14-month ramp from pre-launch in October 2025 to the
// November 2026 election. The multipliers are a modeling approximation and
// deliberately do not sum to one.
func DefaultCalendar() Calendar {
	return Calendar{
		month(2025, time.October, "0", PhasePreLaunch),
		month(2025, time.November, "0", PhasePreLaunch),
		month(2025, time.December, "0.005", PhaseSoftLaunch),
		month(2026, time.January, "0.01", PhaseLaunch),
		month(2026, time.February, "0.05", PhaseEarlyGrowth),
		month(2026, time.March, "0.08", PhaseGrowth),
		month(2026, time.April, "0.12", PhasePrimarySeason),
		month(2026, time.May, "0.15", PhasePrimarySeason),
		month(2026, time.June, "0.18", PhasePrimarySeason),
		month(2026, time.July, "0.20", PhaseLatePrimary),
		month(2026, time.August, "0.25", PhaseGeneralElection),
		month(2026, time.September, "0.30", PhaseGeneralElection),
		month(2026, time.October, "0.35", PhaseElectionPeak),
		month(2026, time.November, "0.40", PhaseElectionPeak),
	}
}

// MultiplierSum is the sum of every month's revenue multiplier.
func (c Calendar) MultiplierSum() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range c {
		sum = sum.Add(m.RevenueMultiplier)
	}
	return sum
}

// Has reports whether key names a month of the calendar.
func (c Calendar) Has(key string) bool {
	for _, m := range c {
		if m.Key() == key {
			return true
		}
	}
	return false
}

// LastKey returns the key of the final month, or "" for an empty calendar.
func (c Calendar) LastKey() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1].Key()
}

var quarterTitles = map[string]string{
	"Q4-2025": "Pre-Launch",
	"Q1-2026": "Platform Launch",
	"Q2-2026": "Primary Season",
	"Q3-2026": "General Election Ramp",
	"Q4-2026": "Election Peak",
}
