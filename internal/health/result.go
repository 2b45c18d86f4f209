package health

import (
	"github.com/wonny/trendhealth/internal/contracts"
)

// GateReason explains why a point is UNKNOWN
type GateReason string

const (
	ReasonNoEligible       GateReason = "no_eligible"
	ReasonBelowMinEligible GateReason = "below_min_eligible"
	ReasonBelowMinKnownPct GateReason = "below_min_known_pct"
	ReasonEmptyDenominator GateReason = "empty_denominator"
)

// Counts is the population breakdown of a universe on one date
type Counts struct {
	Total   int
	Known   int
	Unknown int

	// Eligibility is set only in eligible denominator mode
	Eligibility *Eligibility
}

// Eligibility counts tickers by data availability
type Eligibility struct {
	Eligible   int // ≥1 bar on or before the date
	Ineligible int // eligible but UNKNOWN (lookback too short)
	Missing    int // total - eligible
}

// Breadth is the known-status split and its regime
type Breadth struct {
	GreenPct  float64
	YellowPct float64
	RedPct    float64
	Regime    contracts.RegimeLabel
}

// Overextension measures how stretched a universe is above its trend bands
type Overextension struct {
	PctAboveUpperBand               float64
	MedianDistanceAboveUpperBandPct float64
	Stretch200MedianPct             float64
	HeatScore                       float64
}

// Outcome is either Valid or Unknown
type Outcome interface {
	isOutcome()
}

// Valid is a point that passed every validity gate
type Valid struct {
	Breadth       Breadth
	Overextension Overextension
}

// Unknown is a point rejected by a validity gate; all percentages are zero
type Unknown struct {
	Reason GateReason
}

func (Valid) isOutcome()   {}
func (Unknown) isOutcome() {}

// Result is the health of one universe on one date
type Result struct {
	Date      string
	Mode      contracts.DenominatorMode
	Counts    Counts
	Outcome   Outcome
	Snapshots []contracts.TickerSnapshot
}

// IsUnknown reports whether the result failed a validity gate
func (r *Result) IsUnknown() bool {
	_, ok := r.Outcome.(Unknown)
	return ok
}

// Statuses returns ticker→status for tickers with a known status
func (r *Result) Statuses() map[string]contracts.TrendStatus {
	out := make(map[string]contracts.TrendStatus, len(r.Snapshots))
	for _, s := range r.Snapshots {
		if s.Status.Known() {
			out[s.Ticker] = s.Status
		}
	}
	return out
}

// Point flattens the result (and diffusion) into the persisted record
func (r *Result) Point(d Diffusion) contracts.HealthHistoryPoint {
	p := contracts.HealthHistoryPoint{
		Date:         r.Date,
		RegimeLabel:  contracts.RegimeUnknown,
		KnownCount:   r.Counts.Known,
		UnknownCount: r.Counts.Unknown,
		TotalTickers: r.Counts.Total,
	}

	if e := r.Counts.Eligibility; e != nil {
		eligible, ineligible, missing := e.Eligible, e.Ineligible, e.Missing
		p.EligibleCount = &eligible
		p.IneligibleCount = &ineligible
		p.MissingCount = &missing
	}

	if v, ok := r.Outcome.(Valid); ok {
		p.RegimeLabel = v.Breadth.Regime
		p.GreenPct = v.Breadth.GreenPct
		p.YellowPct = v.Breadth.YellowPct
		p.RedPct = v.Breadth.RedPct
		p.PctAboveUpperBand = v.Overextension.PctAboveUpperBand
		p.MedianDistanceAboveUpperBandPct = v.Overextension.MedianDistanceAboveUpperBandPct
		p.Stretch200MedianPct = v.Overextension.Stretch200MedianPct
		p.HeatScore = v.Overextension.HeatScore
	}

	if d.Available {
		p.DiffusionPct = d.Pct
		p.DiffusionCount = d.Count
		p.DiffusionTotalCompared = d.Compared
	}
	return p
}
