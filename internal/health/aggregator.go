// Package health turns per-ticker trend snapshots into a universe's daily
// health point: counts, validity gates, regime and overextension.
package health

import (
	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
	"github.com/wonny/trendhealth/internal/trend"
	"github.com/wonny/trendhealth/pkg/logger"
)

// Aggregator computes health results for universes
// ⭐ SSOT: 유니버스 건강도 계산은 여기서만
type Aggregator struct {
	minKnownPct float64
	logger      *logger.Logger
}

// NewAggregator creates a new Aggregator with the global minimum known share
func NewAggregator(minKnownPct float64, log *logger.Logger) *Aggregator {
	return &Aggregator{
		minKnownPct: minKnownPct,
		logger:      log.Module("health"),
	}
}

// MinKnownPct returns the effective gate of a universe (override or global)
func (a *Aggregator) MinKnownPct(u *contracts.Universe) float64 {
	if u.MinKnownPct > 0 {
		return u.MinKnownPct
	}
	return a.minKnownPct
}

// Compute derives the health of u on date from cached bars keyed by provider symbol.
// Each series must be sorted ascending; bars after date are ignored.
func (a *Aggregator) Compute(u *contracts.Universe, bars map[string][]contracts.Bar, date string) *Result {
	mode := u.DenominatorMode
	if mode == "" {
		mode = contracts.DenominatorTotal
	}

	res := &Result{
		Date:      date,
		Mode:      mode,
		Snapshots: make([]contracts.TickerSnapshot, 0, len(u.Items)),
	}

	var eligible, ineligible int
	statuses := make([]contracts.TrendStatus, 0, len(u.Items))
	for _, item := range u.Items {
		series := timeseries.Until(bars[item.Symbol()], date, timeseries.BarDate)
		snap := trend.BuildSnapshot(item.Ticker, series)
		res.Snapshots = append(res.Snapshots, snap)
		statuses = append(statuses, snap.Status)

		if len(series) == 0 {
			continue
		}
		eligible++
		if !snap.Status.Known() {
			ineligible++
		}
	}

	total := len(u.Items)
	known := eligible - ineligible
	res.Counts = Counts{Total: total, Known: known}

	denominator := total
	if mode == contracts.DenominatorEligible {
		res.Counts.Unknown = ineligible
		res.Counts.Eligibility = &Eligibility{
			Eligible:   eligible,
			Ineligible: ineligible,
			Missing:    total - eligible,
		}
		denominator = eligible
	} else {
		res.Counts.Unknown = total - known
	}

	// Validity gates (순서대로)
	if mode == contracts.DenominatorEligible {
		if eligible == 0 {
			return a.unknown(u, res, ReasonNoEligible)
		}
		if eligible < u.MinEligibleCount {
			return a.unknown(u, res, ReasonBelowMinEligible)
		}
	}
	if denominator == 0 {
		return a.unknown(u, res, ReasonEmptyDenominator)
	}
	if float64(known)/float64(denominator) < a.MinKnownPct(u) {
		return a.unknown(u, res, ReasonBelowMinKnownPct)
	}

	res.Outcome = Valid{
		Breadth:       ComputeBreadth(statuses),
		Overextension: ComputeOverextension(res.Snapshots),
	}
	return res
}

func (a *Aggregator) unknown(u *contracts.Universe, res *Result, reason GateReason) *Result {
	a.logger.WithFields(map[string]interface{}{
		"universe": u.ID,
		"date":     res.Date,
		"reason":   string(reason),
		"known":    res.Counts.Known,
		"total":    res.Counts.Total,
	}).Debug("Health point gated to UNKNOWN")

	res.Outcome = Unknown{Reason: reason}
	return res
}
