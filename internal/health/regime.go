package health

import (
	"math"
	"sort"

	"github.com/wonny/trendhealth/internal/contracts"
)

const (
	// RiskOnGreenPct is the green share at or above which the regime is RISK_ON
	RiskOnGreenPct = 70.0
	// TransitionGreenPct is the green share at or above which the regime is TRANSITION
	TransitionGreenPct = 45.0
)

// ComputeBreadth splits known statuses into percentages and labels the regime.
// UNKNOWN statuses are excluded from the denominator.
// ⭐ SSOT: 레짐 분류 규칙
func ComputeBreadth(statuses []contracts.TrendStatus) Breadth {
	var green, yellow, red int
	for _, s := range statuses {
		switch s {
		case contracts.StatusGreen:
			green++
		case contracts.StatusYellow:
			yellow++
		case contracts.StatusRed:
			red++
		}
	}

	known := green + yellow + red
	if known == 0 {
		return Breadth{Regime: contracts.RegimeRiskOff}
	}

	b := Breadth{
		GreenPct:  pct(green, known),
		YellowPct: pct(yellow, known),
		RedPct:    pct(red, known),
	}
	b.Regime = RegimeFor(b.GreenPct)
	return b
}

// RegimeFor labels a green percentage
func RegimeFor(greenPct float64) contracts.RegimeLabel {
	switch {
	case greenPct >= RiskOnGreenPct:
		return contracts.RegimeRiskOn
	case greenPct >= TransitionGreenPct:
		return contracts.RegimeTransition
	default:
		return contracts.RegimeRiskOff
	}
}

// pct returns n/d as a percentage rounded to one decimal
func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round1(float64(n) / float64(d) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// median returns the median of values (0 if empty); values is not mutated
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
