package trend

import (
	"math"

	"github.com/wonny/trendhealth/internal/contracts"
)

const (
	// SMA200Window is the daily lookback for the long-term average
	SMA200Window = 200
	// WeeklyWindow is the weekly lookback for the upper band (sma50w/ema50w)
	WeeklyWindow = 50
)

// Inputs are the classifier inputs; nil means undefined
type Inputs struct {
	Price  float64
	SMA200 *float64
	SMA50W *float64
	EMA50W *float64
}

// ClassifyTrend maps price vs moving averages to a trend status
// ⭐ SSOT: 트렌드 분류 규칙
//
// Boundaries are strict: price == sma200 is not RED, price == upper is not GREEN.
func ClassifyTrend(in Inputs) contracts.TrendStatus {
	if in.SMA200 == nil || in.SMA50W == nil || in.EMA50W == nil {
		return contracts.StatusUnknown
	}

	upper := math.Max(*in.SMA50W, *in.EMA50W)
	switch {
	case in.Price < *in.SMA200:
		return contracts.StatusRed
	case in.Price > upper:
		return contracts.StatusGreen
	default:
		return contracts.StatusYellow
	}
}

// BuildSnapshot derives a ticker's snapshot from its daily bars.
// bars must be sorted ascending and already cut to the target date.
func BuildSnapshot(ticker string, bars []contracts.Bar) contracts.TickerSnapshot {
	snap := contracts.TickerSnapshot{Ticker: ticker, Status: contracts.StatusUnknown}
	if len(bars) == 0 {
		return snap
	}

	closes := Closes(bars)
	snap.Price = closes[len(closes)-1]

	if n := len(closes); n >= 2 && closes[n-2] != 0 {
		snap.ChangePct = ptr((closes[n-1]/closes[n-2] - 1) * 100)
	}

	if len(closes) >= SMA200Window {
		if v, ok := Last(CalcSMA(closes, SMA200Window)); ok {
			snap.SMA200 = ptr(v)
		}
	}

	weekly := Closes(ResampleDailyToWeekly(bars))
	if len(weekly) >= WeeklyWindow {
		if v, ok := Last(CalcSMA(weekly, WeeklyWindow)); ok {
			snap.SMA50W = ptr(v)
		}
		if v, ok := Last(CalcEMA(weekly, WeeklyWindow)); ok {
			snap.EMA50W = ptr(v)
		}
	}

	snap.Status = ClassifyTrend(Inputs{
		Price:  snap.Price,
		SMA200: snap.SMA200,
		SMA50W: snap.SMA50W,
		EMA50W: snap.EMA50W,
	})

	if snap.SMA200 != nil && *snap.SMA200 != 0 {
		snap.DistanceTo200dPct = ptr((snap.Price / *snap.SMA200 - 1) * 100)
	}
	if snap.SMA50W != nil && snap.EMA50W != nil {
		if upper := math.Max(*snap.SMA50W, *snap.EMA50W); upper != 0 {
			snap.DistanceToUpperBandPct = ptr((snap.Price/upper - 1) * 100)
		}
	}

	return snap
}

func ptr(v float64) *float64 {
	return &v
}
