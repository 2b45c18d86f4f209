package health

import "math"

// Diffusion is the share of compared tickers whose status flipped between two dates
type Diffusion struct {
	Pct       float64
	Count     int
	Compared  int
	Available bool
}

// ComputeDiffusion compares known statuses of two results of the same universe.
// Unavailable when either side is UNKNOWN or no ticker is known on both dates.
func ComputeDiffusion(prev, cur *Result) Diffusion {
	if prev == nil || cur == nil || prev.IsUnknown() || cur.IsUnknown() {
		return Diffusion{}
	}

	before := prev.Statuses()
	after := cur.Statuses()

	var compared, flips int
	for ticker, status := range after {
		old, ok := before[ticker]
		if !ok {
			continue
		}
		compared++
		if old != status {
			flips++
		}
	}

	if compared == 0 {
		return Diffusion{}
	}

	return Diffusion{
		Pct:       math.Round(float64(flips)/float64(compared)*1000) / 10,
		Count:     flips,
		Compared:  compared,
		Available: true,
	}
}
