// Package timeseries holds date-keyed merge/trim helpers shared by the bar
// cache and the health-history artifacts.
package timeseries

import (
	"sort"

	"github.com/wonny/trendhealth/internal/contracts"
)

// DateFunc extracts the YYYY-MM-DD key of an element
type DateFunc[T any] func(T) string

// Merge combines existing and incoming into an ascending, date-unique series.
// Incoming wins on conflict. Neither input is mutated.
func Merge[T any](existing, incoming []T, dateOf DateFunc[T]) []T {
	byDate := make(map[string]T, len(existing)+len(incoming))
	for _, v := range existing {
		byDate[dateOf(v)] = v
	}
	for _, v := range incoming {
		byDate[dateOf(v)] = v
	}

	out := make([]T, 0, len(byDate))
	for _, v := range byDate {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return dateOf(out[i]) < dateOf(out[j]) })
	return out
}

// Dedupe sorts by date (stable) and keeps the last occurrence of each date
func Dedupe[T any](items []T, dateOf DateFunc[T]) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return dateOf(sorted[i]) < dateOf(sorted[j]) })

	out := make([]T, 0, len(sorted))
	for _, v := range sorted {
		if n := len(out); n > 0 && dateOf(out[n-1]) == dateOf(v) {
			out[n-1] = v
			continue
		}
		out = append(out, v)
	}
	return out
}

// Trim keeps elements dated on or after latest - retentionDays.
// retentionDays <= 0 retains everything. Input must be sorted ascending.
func Trim[T any](items []T, retentionDays int, dateOf DateFunc[T]) []T {
	if retentionDays <= 0 || len(items) == 0 {
		return items
	}

	cutoff, err := contracts.AddDays(dateOf(items[len(items)-1]), -retentionDays)
	if err != nil {
		return items
	}

	idx := sort.Search(len(items), func(i int) bool { return dateOf(items[i]) >= cutoff })
	return items[idx:]
}

// Until returns the prefix of a sorted series dated on or before date
func Until[T any](items []T, date string, dateOf DateFunc[T]) []T {
	idx := sort.Search(len(items), func(i int) bool { return dateOf(items[i]) > date })
	return items[:idx]
}

// BarDate is the DateFunc for contracts.Bar
func BarDate(b contracts.Bar) string { return b.Date }

// MergeBars merges bar series, incoming wins
func MergeBars(existing, incoming []contracts.Bar) []contracts.Bar {
	return Merge(existing, incoming, BarDate)
}

// TrimBars applies the retention window to a sorted bar series
func TrimBars(bars []contracts.Bar, retentionDays int) []contracts.Bar {
	return Trim(bars, retentionDays, BarDate)
}

// Span returns calendar days between the first and last bar (0 if < 2 bars)
func Span(bars []contracts.Bar) int {
	if len(bars) < 2 {
		return 0
	}
	days, err := contracts.DaysBetween(bars[0].Date, bars[len(bars)-1].Date)
	if err != nil {
		return 0
	}
	return days
}
