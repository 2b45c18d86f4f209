// Package history maintains the append-only health-history artifacts:
// sanitize, retention trim, atomic persistence and the daily updater.
package history

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
)

// requiredFields must be present (and numeric ones finite) in every persisted point
var requiredFields = []string{
	"date", "regimeLabel",
	"greenPct", "yellowPct", "redPct",
	"knownCount", "unknownCount", "totalTickers",
	"diffusionPct", "diffusionCount", "diffusionTotalCompared",
	"pctAboveUpperBand", "medianDistanceAboveUpperBandPct", "stretch200MedianPct", "heatScore",
}

// SanitizeStats counts what a sanitize pass dropped
type SanitizeStats struct {
	Weekend    int
	Incomplete int
	Duplicates int
}

// Dropped returns the total number of removed points
func (s SanitizeStats) Dropped() int {
	return s.Weekend + s.Incomplete + s.Duplicates
}

// Add accumulates other into s
func (s SanitizeStats) Add(other SanitizeStats) SanitizeStats {
	return SanitizeStats{
		Weekend:    s.Weekend + other.Weekend,
		Incomplete: s.Incomplete + other.Incomplete,
		Duplicates: s.Duplicates + other.Duplicates,
	}
}

// PointDate is the DateFunc for health points
func PointDate(p contracts.HealthHistoryPoint) string { return p.Date }

// DecodePoints parses a persisted artifact, dropping schema-incomplete records.
// A payload that is not a JSON array is an error.
func DecodePoints(data []byte) ([]contracts.HealthHistoryPoint, SanitizeStats, error) {
	var stats SanitizeStats

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, stats, fmt.Errorf("decode health history: %w", err)
	}

	points := make([]contracts.HealthHistoryPoint, 0, len(raw))
	for _, rec := range raw {
		if !hasRequired(rec) {
			stats.Incomplete++
			continue
		}
		buf, err := json.Marshal(rec)
		if err != nil {
			stats.Incomplete++
			continue
		}
		var p contracts.HealthHistoryPoint
		if err := json.Unmarshal(buf, &p); err != nil {
			stats.Incomplete++
			continue
		}
		points = append(points, p)
	}
	return points, stats, nil
}

func hasRequired(rec map[string]json.RawMessage) bool {
	for _, f := range requiredFields {
		v, ok := rec[f]
		if !ok || string(v) == "null" {
			return false
		}
	}
	return true
}

// Sanitize drops weekend and non-finite points, then dedupes by date keeping
// the last occurrence. Output is sorted ascending.
func Sanitize(points []contracts.HealthHistoryPoint) ([]contracts.HealthHistoryPoint, SanitizeStats) {
	var stats SanitizeStats

	kept := make([]contracts.HealthHistoryPoint, 0, len(points))
	for _, p := range points {
		if _, err := contracts.ParseDate(p.Date); err != nil || !finite(p) {
			stats.Incomplete++
			continue
		}
		if contracts.IsWeekend(p.Date) {
			stats.Weekend++
			continue
		}
		kept = append(kept, p)
	}

	out := timeseries.Dedupe(kept, PointDate)
	stats.Duplicates = len(kept) - len(out)
	return out, stats
}

// mergePoints merges by date; incoming wins
func mergePoints(existing, incoming []contracts.HealthHistoryPoint) []contracts.HealthHistoryPoint {
	return timeseries.Merge(existing, incoming, PointDate)
}

// Trim drops points older than latest - retentionDays (<=0 keeps everything)
func Trim(points []contracts.HealthHistoryPoint, retentionDays int) []contracts.HealthHistoryPoint {
	return timeseries.Trim(points, retentionDays, PointDate)
}

func finite(p contracts.HealthHistoryPoint) bool {
	for _, v := range []float64{
		p.GreenPct, p.YellowPct, p.RedPct,
		p.DiffusionPct,
		p.PctAboveUpperBand, p.MedianDistanceAboveUpperBandPct, p.Stretch200MedianPct, p.HeatScore,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.RegimeLabel != ""
}
