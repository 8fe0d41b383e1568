/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The engine works in
  decimals; the wire carries float64 so browser clients can chart the
  figures directly.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Projection:
    ProjectionDTO, StreamDTO, SummaryDTO, MonthlyRowDTO, QuarterDTO,
    MarketTotalsDTO, SegmentRevenueDTO

  Scenarios:
    ScenarioDTO, RunDTO, CreateScenarioRequest, ModeRequest, ExpensesRequest

  Presets:
    VariantDTO, PresetDTO, LoadPresetsRequest

  Schedule:
    ScheduleRequest, ScheduleDTO

VALIDATION:
  Validation is done in handlers and engine.Validate, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/model.go: ModelJSON document type
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/proforma-engine/campaign"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/factory"
)

// =============================================================================
// PROJECTION
// =============================================================================

// ProjectionDTO is the full result of one computation.
type ProjectionDTO struct {
	RunID         string              `json:"run_id,omitempty"`
	Streams       []StreamDTO         `json:"streams"`
	Summary       SummaryDTO          `json:"summary"`
	Totals        MarketTotalsDTO     `json:"totals"`
	Segments      []SegmentRevenueDTO `json:"segments"`
	Schedule      []MonthlyRowDTO     `json:"schedule"`
	Quarters      []QuarterDTO        `json:"quarters"`
	Organizations OrganizationsDTO    `json:"organizations"`
}

// StreamDTO is one revenue stream.
type StreamDTO struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Amount       float64 `json:"amount"`
	SharePercent float64 `json:"share_percent"`
}

// SummaryDTO carries the headline figures and investor return.
type SummaryDTO struct {
	TotalRevenue            float64 `json:"total_revenue"`
	MonthlyOperatingExpense float64 `json:"monthly_operating_expense"`
	OperatingCosts          float64 `json:"operating_costs"`
	NetProfit               float64 `json:"net_profit"`
	EBITDAMargin            float64 `json:"ebitda_margin"`
	Investment              float64 `json:"investment"`
	ProfitShare             float64 `json:"profit_share"`
	MinimumPayout           float64 `json:"minimum_payout"`
	MinimumMultiple         float64 `json:"minimum_multiple"`
	Payout                  float64 `json:"payout"`
	PayoutRule              string  `json:"payout_rule"`
	GuaranteeApplied        bool    `json:"guarantee_applied"`
	ROI                     float64 `json:"roi"`
	CashAtYearEnd           float64 `json:"cash_at_year_end"`
}

type MarketTotalsDTO struct {
	PrimaryFundraising float64 `json:"primary_fundraising"`
	GeneralFundraising float64 `json:"general_fundraising"`
	Fundraising        float64 `json:"fundraising"`
	MediaSpend         float64 `json:"media_spend"`
	SMS                float64 `json:"sms"`
	Subscribers        float64 `json:"subscribers"`
	ProcessorCost      float64 `json:"processor_cost"`
}

type SegmentRevenueDTO struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	PrimaryOrganizations float64            `json:"primary_organizations"`
	GeneralOrganizations float64            `json:"general_organizations"`
	Subscribers          float64            `json:"subscribers"`
	Fundraising          float64            `json:"fundraising"`
	MediaSpend           float64            `json:"media_spend"`
	SMS                  float64            `json:"sms"`
	Streams              map[string]float64 `json:"streams"`
	Total                float64            `json:"total"`
}

type MonthlyRowDTO struct {
	Key               string  `json:"key"`
	Month             string  `json:"month"`
	Label             string  `json:"label"`
	Phase             string  `json:"phase"`
	RevenueMultiplier float64 `json:"revenue_multiplier"`
	Revenue           float64 `json:"revenue"`
	Expenses          float64 `json:"expenses"`
	ExpenseOverridden bool    `json:"expense_overridden"`
	NetProfit         float64 `json:"net_profit"`
	InvestorPayout    float64 `json:"investor_payout"`
	CumulativeCash    float64 `json:"cumulative_cash"`
}

type QuarterDTO struct {
	Key                   string  `json:"key"`
	Label                 string  `json:"label"`
	Months                int     `json:"months"`
	Revenue               float64 `json:"revenue"`
	Expenses              float64 `json:"expenses"`
	NetProfit             float64 `json:"net_profit"`
	AverageMonthlyRevenue float64 `json:"average_monthly_revenue"`
}

type OrganizationsDTO struct {
	Addressable int64 `json:"addressable"`
	Effective   int64 `json:"effective"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ScheduleRequest runs the Monthly Allocator alone. A missing
// expense_overrides uses the pre-launch defaults.
type ScheduleRequest struct {
	AnnualRevenue           float64            `json:"annual_revenue"`
	MonthlyOperatingExpense float64            `json:"monthly_operating_expense"`
	ExpenseOverrides        map[string]float64 `json:"expense_overrides"`
	StartingCash            float64            `json:"starting_cash"`
	Payout                  float64            `json:"payout"`
	PayoutMonth             string             `json:"payout_month"`
}

type ScheduleDTO struct {
	Months        []MonthlyRowDTO `json:"months"`
	Quarters      []QuarterDTO    `json:"quarters"`
	TotalRevenue  float64         `json:"total_revenue"`
	MultiplierSum float64         `json:"multiplier_sum"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Variant   string             `json:"variant"`
	Version   int                `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Model     *factory.ModelJSON `json:"model,omitempty"`
}

// CreateScenarioRequest creates or replaces a scenario. Model is a model
// document; omitted means the variant's defaults.
type CreateScenarioRequest struct {
	Name  string          `json:"name"`
	Model json.RawMessage `json:"model,omitempty"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

// ExpensesRequest sets and removes operating-expense categories.
type ExpensesRequest struct {
	Set    map[string]float64 `json:"set"`
	Remove []string           `json:"remove"`
}

type RunDTO struct {
	ID              string    `json:"id"`
	ScenarioID      string    `json:"scenario_id"`
	ScenarioVersion int       `json:"scenario_version"`
	TotalRevenue    float64   `json:"total_revenue"`
	NetProfit       float64   `json:"net_profit"`
	Payout          float64   `json:"payout"`
	PayoutRule      string    `json:"payout_rule"`
	CreatedAt       time.Time `json:"created_at"`
}

// =============================================================================
// PRESETS
// =============================================================================

type VariantDTO struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Capture     string   `json:"capture"`
	Streams     []string `json:"streams"`
}

type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// LoadPresetsRequest selects presets by ID; empty loads all of them.
type LoadPresetsRequest struct {
	Presets []string `json:"presets"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

var toFloat = factory.Float

// NewProjectionDTO converts a projection for the wire.
func NewProjectionDTO(p *engine.Projection) ProjectionDTO {
	dto := ProjectionDTO{
		Streams:  make([]StreamDTO, 0, len(p.Revenue.Streams)),
		Segments: make([]SegmentRevenueDTO, 0, len(p.Revenue.Segments)),
		Summary:  toSummaryDTO(p.Summary),
		Totals: MarketTotalsDTO{
			PrimaryFundraising: toFloat(p.Revenue.Totals.PrimaryFundraising),
			GeneralFundraising: toFloat(p.Revenue.Totals.GeneralFundraising),
			Fundraising:        toFloat(p.Revenue.Totals.Fundraising()),
			MediaSpend:         toFloat(p.Revenue.Totals.MediaSpend()),
			SMS:                toFloat(p.Revenue.Totals.SMS()),
			Subscribers:        toFloat(p.Revenue.Totals.Subscribers),
			ProcessorCost:      toFloat(p.Revenue.Totals.ProcessorCost),
		},
		Schedule: toMonthlyDTOs(p.Schedule),
		Quarters: toQuarterDTOs(p.Quarters),
		Organizations: OrganizationsDTO{
			Addressable: p.Organizations.Addressable,
			Effective:   p.Organizations.Effective,
		},
	}

	shares := make(map[engine.StreamKey]decimal.Decimal, len(p.Summary.StreamShares))
	for _, sh := range p.Summary.StreamShares {
		shares[sh.Key] = sh.Percent
	}
	for _, s := range p.Revenue.Streams {
		share := shares[s.Key]
		dto.Streams = append(dto.Streams, StreamDTO{
			Key:          string(s.Key),
			Label:        campaign.StreamLabel(s.Key),
			Amount:       toFloat(s.Amount),
			SharePercent: toFloat(share),
		})
	}

	for _, s := range p.Revenue.Segments {
		seg := SegmentRevenueDTO{
			ID:                   string(s.SegmentID),
			Name:                 s.Name,
			PrimaryOrganizations: toFloat(s.PrimaryOrganizations),
			GeneralOrganizations: toFloat(s.GeneralOrganizations),
			Subscribers:          toFloat(s.Subscribers),
			Fundraising:          toFloat(s.PrimaryFundraising.Add(s.GeneralFundraising)),
			MediaSpend:           toFloat(s.MediaSpend),
			SMS:                  toFloat(s.SMS),
			Streams:              make(map[string]float64, len(s.Streams)),
			Total:                toFloat(s.Total()),
		}
		for _, st := range s.Streams {
			seg.Streams[string(st.Key)] = toFloat(st.Amount)
		}
		dto.Segments = append(dto.Segments, seg)
	}
	return dto
}

func toSummaryDTO(s engine.Summary) SummaryDTO {
	inv := s.Investor
	return SummaryDTO{
		TotalRevenue:            toFloat(s.TotalRevenue),
		MonthlyOperatingExpense: toFloat(s.MonthlyOperatingExpense),
		OperatingCosts:          toFloat(s.OperatingCosts),
		NetProfit:               toFloat(s.NetProfit),
		EBITDAMargin:            toFloat(s.EBITDAMargin),
		Investment:              toFloat(inv.Investment),
		ProfitShare:             toFloat(inv.ProfitShare),
		MinimumPayout:           toFloat(inv.MinimumPayout),
		MinimumMultiple:         toFloat(inv.MinimumMultiple),
		Payout:                  toFloat(inv.Payout),
		PayoutRule:              string(inv.Rule),
		GuaranteeApplied:        inv.GuaranteeApplied(),
		ROI:                     toFloat(inv.ROI),
		CashAtYearEnd:           toFloat(s.CashAtYearEnd),
	}
}

func toMonthlyDTOs(rows []engine.MonthlyRow) []MonthlyRowDTO {
	out := make([]MonthlyRowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthlyRowDTO{
			Key:               r.Month.Key(),
			Month:             r.Month.Short(),
			Label:             r.Month.Label(),
			Phase:             string(r.Month.Phase),
			RevenueMultiplier: toFloat(r.RevenueMultiplier),
			Revenue:           toFloat(r.Revenue),
			Expenses:          toFloat(r.Expenses),
			ExpenseOverridden: r.ExpenseOverridden,
			NetProfit:         toFloat(r.NetProfit),
			InvestorPayout:    toFloat(r.InvestorPayout),
			CumulativeCash:    toFloat(r.CumulativeCash),
		})
	}
	return out
}

func toQuarterDTOs(qs []engine.QuarterRow) []QuarterDTO {
	out := make([]QuarterDTO, 0, len(qs))
	for _, q := range qs {
		out = append(out, QuarterDTO{
			Key:                   q.Key,
			Label:                 q.Label(),
			Months:                len(q.Months),
			Revenue:               toFloat(q.Revenue),
			Expenses:              toFloat(q.Expenses),
			NetProfit:             toFloat(q.NetProfit),
			AverageMonthlyRevenue: toFloat(q.AverageMonthlyRevenue),
		})
	}
	return out
}

func toScenarioDTO(rec engine.ScenarioRecord, model *factory.ModelJSON) ScenarioDTO {
	return ScenarioDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Variant:   rec.Variant,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Model:     model,
	}
}

func toRunDTO(r engine.RunRecord) RunDTO {
	return RunDTO{
		ID:              r.ID,
		ScenarioID:      r.ScenarioID,
		ScenarioVersion: r.ScenarioVersion,
		TotalRevenue:    toFloat(r.TotalRevenue),
		NetProfit:       toFloat(r.NetProfit),
		Payout:          toFloat(r.Payout),
		PayoutRule:      string(r.PayoutRule),
		CreatedAt:       r.CreatedAt,
	}
}
