package contracts

// RegimeLabel classifies a universe's overall trend breadth
type RegimeLabel string

const (
	RegimeRiskOn     RegimeLabel = "RISK_ON"
	RegimeTransition RegimeLabel = "TRANSITION"
	RegimeRiskOff    RegimeLabel = "RISK_OFF"
	RegimeUnknown    RegimeLabel = "UNKNOWN"
)

// HealthHistoryPoint is one persisted record per (universe, trading date)
// ⭐ SSOT: health-history 아티팩트 스키마
//
// EligibleCount/IneligibleCount/MissingCount are present only for universes
// in eligible denominator mode.
type HealthHistoryPoint struct {
	Date        string      `json:"date"`
	RegimeLabel RegimeLabel `json:"regimeLabel"`

	GreenPct  float64 `json:"greenPct"`
	YellowPct float64 `json:"yellowPct"`
	RedPct    float64 `json:"redPct"`

	KnownCount   int `json:"knownCount"`
	UnknownCount int `json:"unknownCount"`
	TotalTickers int `json:"totalTickers"`

	EligibleCount   *int `json:"eligibleCount,omitempty"`
	IneligibleCount *int `json:"ineligibleCount,omitempty"`
	MissingCount    *int `json:"missingCount,omitempty"`

	DiffusionPct           float64 `json:"diffusionPct"`
	DiffusionCount         int     `json:"diffusionCount"`
	DiffusionTotalCompared int     `json:"diffusionTotalCompared"`

	PctAboveUpperBand               float64 `json:"pctAboveUpperBand"`
	MedianDistanceAboveUpperBandPct float64 `json:"medianDistanceAboveUpperBandPct"`
	Stretch200MedianPct             float64 `json:"stretch200MedianPct"`
	HeatScore                       float64 `json:"heatScore"`
}
