// Package barcache keeps one durable, bounded bar series per provider symbol
// and decides per run how each series is refreshed.
package barcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
	"github.com/wonny/trendhealth/pkg/fileutil"
	"github.com/wonny/trendhealth/pkg/logger"
)

// Store persists per-symbol bar series as JSON arrays
// ⭐ SSOT: 심볼별 캐시 파일은 이 Store 를 통해서만 읽고 씀
type Store struct {
	dir           string
	retentionDays int
	logger        *logger.Logger
}

// NewStore creates a store rooted at dir; saves are trimmed to retentionDays
func NewStore(dir string, retentionDays int, log *logger.Logger) *Store {
	return &Store{
		dir:           dir,
		retentionDays: retentionDays,
		logger:        log.Module("barcache.store"),
	}
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the cache file path of a symbol
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.dir, fileKey(symbol)+".json")
}

// Load returns the cached bars of symbol, sorted ascending.
// A missing or malformed file is reported as an empty cache.
func (s *Store) Load(symbol string) ([]contracts.Bar, error) {
	var bars []contracts.Bar
	found, err := fileutil.ReadJSON(s.Path(symbol), &bars)
	if err != nil {
		if errors.Is(err, fileutil.ErrMalformed) {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Malformed cache treated as empty")
			return nil, nil
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return timeseries.Dedupe(bars, timeseries.BarDate), nil
}

// Save sorts, dedupes and trims bars to the retention window, then writes atomically.
// Returns the bars as persisted.
func (s *Store) Save(symbol string, bars []contracts.Bar) ([]contracts.Bar, error) {
	out := timeseries.TrimBars(timeseries.MergeBars(nil, bars), s.retentionDays)

	if err := fileutil.WriteJSONAtomic(s.Path(symbol), out); err != nil {
		return nil, fmt.Errorf("save cache %s: %w", symbol, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(out),
	}).Debug("Saved cache")
	return out, nil
}

// Exists reports whether a cache file exists for symbol
func (s *Store) Exists(symbol string) bool {
	_, err := os.Stat(s.Path(symbol))
	return err == nil
}

// keyReplacer maps characters unsafe in file names
var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "^", "_", " ", "_")

// fileKey maps a provider symbol to a safe file name (case-insensitive).
// A rewritten symbol gets a short hash suffix so "BRK/B" and "BRK_B" never
// share a file.
// 예: "BRK/B" → "BRK_B-82f67012", "AAPL" → "AAPL"
func fileKey(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	key := keyReplacer.Replace(upper)
	if key == upper {
		return key
	}
	sum := sha256.Sum256([]byte(upper))
	return key + "-" + hex.EncodeToString(sum[:4])
}
