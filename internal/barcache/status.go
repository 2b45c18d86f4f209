package barcache

import (
	"fmt"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
)

// Status describes the cached series of one symbol
type Status struct {
	Symbol    string                   `json:"symbol"`
	Exists    bool                     `json:"exists"`
	Bars      int                      `json:"bars"`
	FirstDate string                   `json:"firstDate,omitempty"`
	LastDate  string                   `json:"lastDate,omitempty"`
	SpanDays  int                      `json:"spanDays"`
	Metadata  *contracts.CacheMetadata `json:"metadata,omitempty"`
}

// Inspect reads the cache and metadata of symbol without fetching
func Inspect(store *Store, meta *MetadataStore, symbol string) (Status, error) {
	st := Status{Symbol: symbol, Exists: store.Exists(symbol)}

	bars, err := store.Load(symbol)
	if err != nil {
		return st, fmt.Errorf("load cache %s: %w", symbol, err)
	}
	st.Bars = len(bars)
	if len(bars) > 0 {
		st.FirstDate = bars[0].Date
		st.LastDate = bars[len(bars)-1].Date
		st.SpanDays = timeseries.Span(bars)
	}

	m, err := meta.Load(symbol)
	if err != nil {
		return st, fmt.Errorf("load metadata %s: %w", symbol, err)
	}
	st.Metadata = m
	return st, nil
}
