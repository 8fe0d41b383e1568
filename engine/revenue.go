/*
revenue.go - Revenue Engine

PURPOSE:
  Computes annual revenue per stream from the segments and parameters.
  Pure, total and deterministic: negative inputs are clamped to zero and
  no division is performed on caller-controlled denominators.

FORMULAS (per enabled stream):
  mediaCommissions        = mediaSpend x adoption% x commission%
  transactionFees         = fundraising x netBps/10000
  saasSubscriptions       = sum(subscribers x avgPrice x annualization x saasTake%)
  smsRevenue              = messages x profitPerMessage
  eventPlatform           = sum(subscribers x eventPrice x annualization x eventUsage%)
  contractorConsultantGmv = contractorGMV x marketScale x marketplaceCommission%
  consulting              = consultingVolume x marketScale x consultingMargin%

  where fundraising, mediaSpend (= fundraising x MediaSpendRatio) and
  messages are summed over segments using the capture model's counts.

SEE ALSO:
  - capture.go: How many organizations each segment contributes
  - summary.go: Totals, margins and investor return
*/
package engine

import "github.com/shopspring/decimal"

// MarketTotals are the capture-adjusted volumes the streams are built on.
type MarketTotals struct {
	PrimaryFundraising decimal.Decimal
	GeneralFundraising decimal.Decimal
	PrimaryMediaSpend  decimal.Decimal
	GeneralMediaSpend  decimal.Decimal
	PrimarySMS         decimal.Decimal
	GeneralSMS         decimal.Decimal
	Subscribers        decimal.Decimal

	// ProcessorCost is the payment processor's cut of fundraising volume,
	// (total - net) basis points. Reported only; never charged to revenue.
	ProcessorCost decimal.Decimal
}

func (t MarketTotals) Fundraising() decimal.Decimal { return t.PrimaryFundraising.Add(t.GeneralFundraising) }
func (t MarketTotals) MediaSpend() decimal.Decimal  { return t.PrimaryMediaSpend.Add(t.GeneralMediaSpend) }
func (t MarketTotals) SMS() decimal.Decimal         { return t.PrimarySMS.Add(t.GeneralSMS) }

// SegmentRevenue is one segment's share of the segment-driven streams.
type SegmentRevenue struct {
	SegmentID SegmentID
	Name      string

	PrimaryOrganizations decimal.Decimal
	GeneralOrganizations decimal.Decimal
	Subscribers          decimal.Decimal

	PrimaryFundraising decimal.Decimal
	GeneralFundraising decimal.Decimal
	MediaSpend         decimal.Decimal
	SMS                decimal.Decimal

	Streams RevenueBreakdown
}

// Total is the segment's revenue across its segment-driven streams.
func (s SegmentRevenue) Total() decimal.Decimal { return s.Streams.Total() }

// RevenueResult is the full output of the Revenue Engine.
type RevenueResult struct {
	Streams  RevenueBreakdown
	Totals   MarketTotals
	Segments []SegmentRevenue
}

// ComputeRevenues returns the annual revenue per enabled stream.
func ComputeRevenues(segments []Segment, params ParameterSet) RevenueBreakdown {
	return AnalyzeRevenue(segments, params).Streams
}

// AnalyzeRevenue computes the stream totals together with the market totals
// and the per-segment contributions they are built from.
func AnalyzeRevenue(segments []Segment, params ParameterSet) RevenueResult {
	capture := captureOrDefault(params.Capture)
	enabled := params.EnabledStreams()
	r := rates(params)

	result := RevenueResult{Segments: make([]SegmentRevenue, 0, len(segments))}
	totals := MarketTotals{}
	perStream := make(map[StreamKey]decimal.Decimal, len(enabled))

	for _, seg := range segments {
		sr := analyzeSegment(seg, capture, r, enabled)
		result.Segments = append(result.Segments, sr)

		primarySMS := sr.PrimaryOrganizations.Mul(count(seg.PrimarySMS))
		generalSMS := sr.GeneralOrganizations.Mul(count(seg.GeneralSMS))

		totals.PrimaryFundraising = totals.PrimaryFundraising.Add(sr.PrimaryFundraising)
		totals.GeneralFundraising = totals.GeneralFundraising.Add(sr.GeneralFundraising)
		totals.PrimarySMS = totals.PrimarySMS.Add(primarySMS)
		totals.GeneralSMS = totals.GeneralSMS.Add(generalSMS)
		totals.Subscribers = totals.Subscribers.Add(sr.Subscribers)

		for _, s := range sr.Streams {
			perStream[s.Key] = perStream[s.Key].Add(s.Amount)
		}
	}

	totals.PrimaryMediaSpend = totals.PrimaryFundraising.Mul(r.mediaSpendRatio)
	totals.GeneralMediaSpend = totals.GeneralFundraising.Mul(r.mediaSpendRatio)
	processorBps := nonNeg(params.TransactionFeeTotalBps.Sub(params.TransactionFeeNetBps))
	totals.ProcessorCost = totals.Fundraising().Mul(bps(processorBps))
	result.Totals = totals

	scale := nonNeg(capture.MarketScale())
	streams := make(RevenueBreakdown, 0, len(enabled))
	for _, key := range enabled {
		var amount decimal.Decimal
		switch key {
		case StreamMediaCommissions:
			amount = totals.MediaSpend().Mul(r.mediaAdoption).Mul(r.mediaCommission)
		case StreamTransactionFees:
			amount = totals.Fundraising().Mul(r.netFee)
		case StreamSMSRevenue:
			amount = totals.SMS().Mul(r.smsProfit)
		case StreamSaaSSubscriptions, StreamEventPlatform:
			amount = perStream[key]
		case StreamContractorGMV:
			amount = nonNeg(params.Market.ContractorGMVAnnual).Mul(scale).Mul(r.marketplaceCommission)
		case StreamConsulting:
			amount = nonNeg(params.Market.ConsultingVolumeAnnual).Mul(scale).Mul(r.consultingMargin)
		}
		streams = append(streams, StreamAmount{Key: key, Amount: amount})
	}
	result.Streams = streams

	return result
}

// streamRates are the parameter ratios, clamped and converted once.
type streamRates struct {
	mediaSpendRatio       decimal.Decimal
	mediaAdoption         decimal.Decimal
	mediaCommission       decimal.Decimal
	netFee                decimal.Decimal
	smsProfit             decimal.Decimal
	saasTake              decimal.Decimal
	eventUsage            decimal.Decimal
	annualization         decimal.Decimal
	marketplaceCommission decimal.Decimal
	consultingMargin      decimal.Decimal
}

func rates(p ParameterSet) streamRates {
	return streamRates{
		mediaSpendRatio:       nonNeg(p.MediaSpendRatio),
		mediaAdoption:         pct(p.MediaPortalAdoptionPercent),
		mediaCommission:       pct(p.MediaCommissionPercent),
		netFee:                bps(p.TransactionFeeNetBps),
		smsProfit:             nonNeg(p.SMSProfitPerMessage),
		saasTake:              pct(p.Assumptions.SaaSMultiServicePercent),
		eventUsage:            pct(p.Assumptions.EventPlatformUsagePercent),
		annualization:         nonNeg(p.Assumptions.AnnualizationMultiplier),
		marketplaceCommission: pct(p.Assumptions.MarketplaceCommissionPercent),
		consultingMargin:      pct(p.Assumptions.ConsultingMarginPercent),
	}
}

func analyzeSegment(seg Segment, capture CaptureModel, r streamRates, enabled []StreamKey) SegmentRevenue {
	primary := nonNeg(capture.PrimaryOrganizations(seg))
	general := nonNeg(capture.GeneralOrganizations(seg))
	subscribers := nonNeg(capture.Subscribers(seg))

	sr := SegmentRevenue{
		SegmentID:            seg.ID,
		Name:                 seg.Name,
		PrimaryOrganizations: primary,
		GeneralOrganizations: general,
		Subscribers:          subscribers,
		PrimaryFundraising:   primary.Mul(nonNeg(seg.PrimaryFundraising)),
		GeneralFundraising:   general.Mul(nonNeg(seg.GeneralFundraising)),
	}
	fundraising := sr.PrimaryFundraising.Add(sr.GeneralFundraising)
	sr.MediaSpend = fundraising.Mul(r.mediaSpendRatio)
	sr.SMS = primary.Mul(count(seg.PrimarySMS)).Add(general.Mul(count(seg.GeneralSMS)))

	for _, key := range enabled {
		if !key.SegmentDriven() {
			continue
		}
		var amount decimal.Decimal
		switch key {
		case StreamMediaCommissions:
			amount = sr.MediaSpend.Mul(r.mediaAdoption).Mul(r.mediaCommission)
		case StreamTransactionFees:
			amount = fundraising.Mul(r.netFee)
		case StreamSMSRevenue:
			amount = sr.SMS.Mul(r.smsProfit)
		case StreamSaaSSubscriptions:
			amount = subscribers.Mul(seg.SubscriptionPrices.Average()).Mul(r.annualization).Mul(r.saasTake)
		case StreamEventPlatform:
			amount = subscribers.Mul(nonNeg(seg.SubscriptionPrices.EventPlatform)).Mul(r.annualization).Mul(r.eventUsage)
		}
		sr.Streams = append(sr.Streams, StreamAmount{Key: key, Amount: amount})
	}
	return sr
}
