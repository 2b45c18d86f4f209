// Package trend implements the moving averages, weekly resampling and
// GREEN/YELLOW/RED classification behind every ticker snapshot.
package trend

import (
	"math"
	"time"

	"github.com/wonny/trendhealth/internal/contracts"
)

// CalcSMA returns the simple moving average, aligned with values.
// The first window-1 entries are NaN (undefined).
func CalcSMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// CalcEMA returns the exponential moving average seeded with the first value.
// multiplier = 2/(window+1)
func CalcEMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	k := 2.0 / float64(window+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// ResampleDailyToWeekly keeps the last trading day of each week.
// A bar closes its week when it is a Friday, the final bar, or the next
// bar's weekday index is lower (week rolled over).
func ResampleDailyToWeekly(bars []contracts.Bar) []contracts.Bar {
	weekly := make([]contracts.Bar, 0, len(bars)/5+1)

	for i, bar := range bars {
		t, err := bar.Time()
		if err != nil {
			continue
		}

		if i == len(bars)-1 || t.Weekday() == time.Friday {
			weekly = append(weekly, bar)
			continue
		}

		next, err := bars[i+1].Time()
		if err != nil {
			continue
		}
		if next.Weekday() < t.Weekday() {
			weekly = append(weekly, bar)
		}
	}
	return weekly
}

// Closes extracts close prices
func Closes(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the final element of a series, or ok=false if empty/undefined
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
