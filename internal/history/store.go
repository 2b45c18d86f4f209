package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/fileutil"
	"github.com/wonny/trendhealth/pkg/logger"
)

// groupSeparator joins universe id and group in variant keys
const groupSeparator = "__"

// Key returns the artifact key of a universe or one of its group variants
func Key(universeID, group string) string {
	if group == "" {
		return universeID
	}
	return universeID + groupSeparator + sanitizeKey(group)
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '.':
			return '_'
		}
		return r
	}, s)
}

// Store persists one health-history artifact per key as a JSON array
// ⭐ SSOT: health-history 파일 읽기/쓰기는 여기서만
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
		logger:        log.Module("history.store"),
	}
}

// Path returns the artifact path of key
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load returns the sanitized points of key, sorted ascending.
// A missing file is an empty history; a file that is not a JSON array is an
// error wrapping fileutil.ErrMalformed so callers never overwrite it blindly.
func (s *Store) Load(key string) ([]contracts.HealthHistoryPoint, error) {
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []contracts.HealthHistoryPoint{}, nil
		}
		return nil, fmt.Errorf("read history %s: %w", key, err)
	}

	points, decodeStats, err := DecodePoints(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", fileutil.ErrMalformed, path, err)
	}
	points, stats := Sanitize(points)
	s.logDropped(key, "load", decodeStats.Add(stats))
	return points, nil
}

// Latest returns the newest point of key
func (s *Store) Latest(key string) (contracts.HealthHistoryPoint, bool, error) {
	points, err := s.Load(key)
	if err != nil {
		return contracts.HealthHistoryPoint{}, false, err
	}
	if len(points) == 0 {
		return contracts.HealthHistoryPoint{}, false, nil
	}
	return points[len(points)-1], true, nil
}

// Save sanitizes, dedupes and trims points, then writes atomically.
// Returns the points as persisted.
func (s *Store) Save(key string, points []contracts.HealthHistoryPoint) ([]contracts.HealthHistoryPoint, error) {
	clean, stats := Sanitize(points)
	s.logDropped(key, "save", stats)

	out := Trim(clean, s.retentionDays)
	if trimmed := len(clean) - len(out); trimmed > 0 {
		s.logger.WithFields(map[string]interface{}{
			"key":     key,
			"trimmed": trimmed,
		}).Debug("Retention trim")
	}

	if err := fileutil.WriteJSONAtomic(s.Path(key), out); err != nil {
		return nil, fmt.Errorf("save history %s: %w", key, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"key":    key,
		"points": len(out),
	}).Debug("Saved history")
	return out, nil
}

func (s *Store) logDropped(key, phase string, stats SanitizeStats) {
	if stats.Dropped() == 0 {
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"key":        key,
		"phase":      phase,
		"weekend":    stats.Weekend,
		"incomplete": stats.Incomplete,
		"duplicates": stats.Duplicates,
	}).Info("Sanitizer dropped points")
}
