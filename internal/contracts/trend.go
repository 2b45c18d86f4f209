package contracts

// TrendStatus is the per-ticker trend state
type TrendStatus string

const (
	StatusGreen   TrendStatus = "GREEN"
	StatusYellow  TrendStatus = "YELLOW"
	StatusRed     TrendStatus = "RED"
	StatusUnknown TrendStatus = "UNKNOWN"
)

// Known reports whether the status is one of GREEN/YELLOW/RED
func (s TrendStatus) Known() bool {
	return s == StatusGreen || s == StatusYellow || s == StatusRed
}

// TickerSnapshot is the derived trend state of one ticker on one date
// 날짜별로 재계산되는 휘발성 값 (저장하지 않음)
type TickerSnapshot struct {
	Ticker string      `json:"ticker"`
	Status TrendStatus `json:"status"`
	Price  float64     `json:"price"`

	ChangePct              *float64 `json:"changePct,omitempty"`
	SMA200                 *float64 `json:"sma200,omitempty"`
	SMA50W                 *float64 `json:"sma50w,omitempty"`
	EMA50W                 *float64 `json:"ema50w,omitempty"`
	DistanceTo200dPct      *float64 `json:"distanceTo200dPct,omitempty"`
	DistanceToUpperBandPct *float64 `json:"distanceToUpperBandPct,omitempty"`
}
