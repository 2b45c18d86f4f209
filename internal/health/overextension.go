package health

import (
	"math"

	"github.com/wonny/trendhealth/internal/contracts"
)

const (
	heatBreadthWeight = 0.6
	heatStretchWeight = 0.4
	// heatStretchFullPct is the median 200d stretch that maps to a full stretch score
	heatStretchFullPct = 60.0
)

// ComputeOverextension measures breadth above the upper band and stretch over sma200.
// Only snapshots with a known status are considered.
func ComputeOverextension(snapshots []contracts.TickerSnapshot) Overextension {
	var known int
	above := make([]float64, 0)
	stretch := make([]float64, 0)

	for _, s := range snapshots {
		if !s.Status.Known() {
			continue
		}
		known++
		if s.DistanceToUpperBandPct != nil && *s.DistanceToUpperBandPct > 0 {
			above = append(above, *s.DistanceToUpperBandPct)
		}
		if s.DistanceTo200dPct != nil {
			stretch = append(stretch, *s.DistanceTo200dPct)
		}
	}

	o := Overextension{
		PctAboveUpperBand:               pct(len(above), known),
		MedianDistanceAboveUpperBandPct: round1(median(above)),
		Stretch200MedianPct:             round1(median(stretch)),
	}
	o.HeatScore = HeatScore(o.PctAboveUpperBand, o.Stretch200MedianPct)
	return o
}

// HeatScore = round(0.6*pctAbove + 0.4*clamp(stretch/60*100, 0, 100))
func HeatScore(pctAboveUpperBand, stretch200MedianPct float64) float64 {
	stretchScore := math.Max(0, math.Min(100, stretch200MedianPct/heatStretchFullPct*100))
	return math.Round(heatBreadthWeight*pctAboveUpperBand + heatStretchWeight*stretchScore)
}
