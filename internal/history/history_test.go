package history

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/health"
	"github.com/wonny/trendhealth/internal/timeseries"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/fileutil"
	"github.com/wonny/trendhealth/pkg/logger"
)

const testDate = "2024-03-08" // Friday

func point(date string) contracts.HealthHistoryPoint {
	return contracts.HealthHistoryPoint{
		Date:         date,
		RegimeLabel:  contracts.RegimeRiskOn,
		GreenPct:     80,
		YellowPct:    10,
		RedPct:       10,
		KnownCount:   10,
		TotalTickers: 10,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "core", Key("core", ""))
	assert.Equal(t, "core__tech", Key("core", "tech"))
	assert.Equal(t, "core__large_cap", Key("core", "large cap"))
}

func TestDecodePoints_DropsIncomplete(t *testing.T) {
	full, err := json.Marshal(point("2024-03-04"))
	require.NoError(t, err)

	var partial map[string]interface{}
	require.NoError(t, json.Unmarshal(full, &partial))
	delete(partial, "heatScore")

	var nulled map[string]interface{}
	require.NoError(t, json.Unmarshal(full, &nulled))
	nulled["greenPct"] = nil

	data, err := json.Marshal([]interface{}{json.RawMessage(full), partial, nulled})
	require.NoError(t, err)

	points, stats, err := DecodePoints(data)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, "2024-03-04", points[0].Date)
	assert.Equal(t, 2, stats.Incomplete)
}

func TestDecodePoints_NotArray(t *testing.T) {
	_, _, err := DecodePoints([]byte(`{"date":"2024-03-04"}`))
	assert.Error(t, err)

	_, _, err = DecodePoints([]byte(`not json`))
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	nan := point("2024-03-05")
	nan.HeatScore = math.NaN()

	first := point("2024-03-06")
	last := point("2024-03-06")
	last.HeatScore = 42

	points, stats := Sanitize([]contracts.HealthHistoryPoint{
		point("2024-03-07"),
		point("2024-03-09"), // Saturday
		point("2024-03-10"), // Sunday
		nan,
		first,
		last,
		point("2024-03-04"),
	})

	require.Len(t, points, 3)
	assert.Equal(t, []string{"2024-03-04", "2024-03-06", "2024-03-07"},
		[]string{points[0].Date, points[1].Date, points[2].Date})
	assert.Equal(t, 42.0, points[1].HeatScore, "duplicate keeps the last occurrence")
	assert.Equal(t, SanitizeStats{Weekend: 2, Incomplete: 1, Duplicates: 1}, stats)
	assert.Equal(t, 4, stats.Dropped())
}

func TestTrim_RetentionWindow(t *testing.T) {
	start, _ := contracts.ParseDate("2024-01-01")
	points := make([]contracts.HealthHistoryPoint, 0, 100)
	for i := 0; i < 100; i++ {
		points = append(points, point(contracts.FormatDate(start.AddDate(0, 0, i))))
	}

	kept := Trim(points, 30)

	require.Len(t, kept, 31)
	assert.Equal(t, "2024-03-10", kept[0].Date, "cutoff is inclusive")
	assert.Equal(t, "2024-04-09", kept[len(kept)-1].Date)

	assert.Len(t, Trim(points, 0), 100)
	assert.Len(t, Trim(points, -1), 100)
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	store := NewStore(t.TempDir(), 0, logger.Nop())

	points, err := store.Load("core")
	require.NoError(t, err)
	assert.Empty(t, points)

	_, ok, err := store.Latest("core")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LoadMalformedIsError(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0, logger.Nop())
	require.NoError(t, os.WriteFile(store.Path("core"), []byte(`{"oops":true}`), 0o644))

	_, err := store.Load("core")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fileutil.ErrMalformed))
}

func TestStore_SaveSanitizesAndTrims(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 10, logger.Nop())

	saved, err := store.Save("core", []contracts.HealthHistoryPoint{
		point("2024-03-08"),
		point("2024-02-01"), // outside retention
		point("2024-03-02"), // Saturday
		point("2024-03-04"),
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	loaded, err := store.Load("core")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	latest, ok, err := store.Latest("core")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-08", latest.Date)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

// --- updater ---

type mapSource map[string][]contracts.Bar

func (m mapSource) Load(symbol string) ([]contracts.Bar, error) {
	return m[symbol], nil
}

type recordingMirror struct {
	calls map[string][]contracts.HealthHistoryPoint
}

func (r *recordingMirror) Upsert(ctx context.Context, key string, points []contracts.HealthHistoryPoint) error {
	if r.calls == nil {
		r.calls = make(map[string][]contracts.HealthHistoryPoint)
	}
	r.calls[key] = append(r.calls[key], points...)
	return nil
}

// weekdayBars generates n weekday bars ending on or before end, close = f(i)
func weekdayBars(end string, n int, f func(i int) float64) []contracts.Bar {
	t, _ := contracts.ParseDate(end)
	bars := make([]contracts.Bar, n)
	for i := n - 1; i >= 0; t = t.AddDate(0, 0, -1) {
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			continue
		}
		bars[i] = contracts.Bar{Date: contracts.FormatDate(t), Close: f(i)}
		i--
	}
	return bars
}

func testUniverse() (*contracts.Universe, mapSource) {
	rising := weekdayBars(testDate, 300, func(i int) float64 { return 100 + float64(i) })
	falling := weekdayBars(testDate, 300, func(i int) float64 { return 500 - float64(i) })

	u := &contracts.Universe{
		ID:           "core",
		GroupHistory: true,
		Items: []contracts.UniverseItem{
			{Ticker: "AAPL", Group: "tech"},
			{Ticker: "MSFT", Group: "tech"},
			{Ticker: "SPY"},
			{Ticker: "XOM", Group: "energy"},
		},
	}
	return u, mapSource{"AAPL": rising, "MSFT": rising, "SPY": rising, "XOM": falling}
}

func newUpdater(t *testing.T, src BarSource) (*Updater, *Store) {
	t.Helper()
	store := NewStore(t.TempDir(), 0, logger.Nop())
	agg := health.NewAggregator(0.9, logger.Nop())
	return NewUpdater(store, src, agg, 7, logger.Nop()), store
}

func TestUpdater_ComputesWindow(t *testing.T) {
	u, src := testUniverse()
	updater, store := newUpdater(t, src)
	mirror := &recordingMirror{}
	updater.WithMirror(mirror)

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	require.NoError(t, summary.Err())
	assert.NotEmpty(t, summary.RunID)

	require.Len(t, summary.Variants, 3)
	assert.Equal(t, "core", summary.Variants[0].Key)
	assert.Equal(t, "core__tech", summary.Variants[1].Key)
	assert.Equal(t, "core__energy", summary.Variants[2].Key)

	// 2024-03-01 .. 2024-03-08 weekdays
	assert.Equal(t, 6, summary.Variants[0].Computed)
	assert.Equal(t, 6, summary.Variants[0].Points)

	points, err := store.Load("core")
	require.NoError(t, err)
	require.Len(t, points, 6)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.Equal(t, testDate, points[5].Date)

	p := points[5]
	assert.Equal(t, contracts.RegimeRiskOn, p.RegimeLabel)
	assert.Equal(t, 75.0, p.GreenPct)
	assert.Equal(t, 25.0, p.RedPct)
	assert.Equal(t, 4, p.KnownCount)
	assert.Equal(t, 4, p.TotalTickers)
	assert.Equal(t, 0.0, p.DiffusionPct)
	assert.Equal(t, 4, p.DiffusionTotalCompared)

	tech, err := store.Load("core__tech")
	require.NoError(t, err)
	require.Len(t, tech, 6)
	assert.Equal(t, 100.0, tech[5].GreenPct)
	assert.Equal(t, 2, tech[5].TotalTickers)

	energy, err := store.Load("core__energy")
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeRiskOff, energy[5].RegimeLabel)

	assert.Len(t, mirror.calls["core"], 6)
}

func TestUpdater_AppendOnly(t *testing.T) {
	u, src := testUniverse()
	u.GroupHistory = false
	updater, store := newUpdater(t, src)

	marker := point("2024-03-05")
	marker.HeatScore = 99
	_, err := store.Save("core", []contracts.HealthHistoryPoint{point("2024-02-01"), marker})
	require.NoError(t, err)

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Variants, 1)
	assert.Equal(t, 5, summary.Variants[0].Computed, "persisted date is not recomputed")
	assert.Equal(t, 7, summary.Variants[0].Points, "points outside the window are kept")

	points, err := store.Load("core")
	require.NoError(t, err)
	for _, p := range points {
		if p.Date == "2024-03-05" {
			assert.Equal(t, 99.0, p.HeatScore)
		}
	}

	// second run has nothing to do
	summary, err = updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Variants[0].Computed)
	assert.Equal(t, 7, summary.Variants[0].Points)
}

func TestUpdater_RebuildAndDate(t *testing.T) {
	u, src := testUniverse()
	u.GroupHistory = false
	updater, store := newUpdater(t, src)

	marker := point("2024-03-05")
	marker.HeatScore = 99
	_, err := store.Save("core", []contracts.HealthHistoryPoint{marker})
	require.NoError(t, err)

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{Date: "2024-03-05"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Variants[0].Computed)

	latest, ok, err := store.Latest("core")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-05", latest.Date)
	assert.NotEqual(t, 99.0, latest.HeatScore)

	summary, err = updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{Rebuild: true})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Variants[0].Computed)

	// weekend or unknown dates compute nothing
	summary, err = updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{Date: "2024-03-09"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Variants[0].Computed)

	_, err = updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{Date: "03/05/2024"})
	assert.Error(t, err)
}

func TestUpdater_MalformedArtifactIsNotOverwritten(t *testing.T) {
	u, src := testUniverse()
	updater, store := newUpdater(t, src)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path("core")), 0o755))
	require.NoError(t, os.WriteFile(store.Path("core"), []byte(`{"broken":`), 0o644))

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	require.Error(t, summary.Err())
	assert.NotEmpty(t, summary.Variants[0].Error)

	data, err := os.ReadFile(store.Path("core"))
	require.NoError(t, err)
	assert.Equal(t, `{"broken":`, string(data))

	// group variants still saved
	tech, err := store.Load("core__tech")
	require.NoError(t, err)
	assert.Len(t, tech, 6)
}

func TestUpdater_InsufficientCoverageIsUnknown(t *testing.T) {
	u, src := testUniverse()
	u.GroupHistory = false
	u.Items = append(u.Items, contracts.UniverseItem{Ticker: "NEW"})
	src["NEW"] = weekdayBars(testDate, 20, func(i int) float64 { return float64(i + 1) })
	updater, store := newUpdater(t, src)

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Variants[0].Unknown)

	latest, ok, err := store.Latest("core")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, contracts.RegimeUnknown, latest.RegimeLabel)
	assert.Equal(t, 0.0, latest.GreenPct)
	assert.Equal(t, 0, latest.DiffusionTotalCompared)
	assert.Equal(t, 4, latest.KnownCount)
	assert.Equal(t, 5, latest.TotalTickers)
}

func TestUpdater_DefaultWindowsHaveLookback(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	// cache as Store.Save leaves it after a full backfill
	rising := timeseries.TrimBars(weekdayBars(testDate, 800, func(i int) float64 { return 100 + float64(i) }), cfg.Cache.WindowDays)
	falling := timeseries.TrimBars(weekdayBars(testDate, 800, func(i int) float64 { return 900 - float64(i) }), cfg.Cache.WindowDays)

	u := &contracts.Universe{
		ID:    "core",
		Items: []contracts.UniverseItem{{Ticker: "AAPL"}, {Ticker: "XOM"}},
	}
	store := NewStore(t.TempDir(), cfg.Health.RetentionDays, logger.Nop())
	agg := health.NewAggregator(cfg.Health.MinKnownPct, logger.Nop())
	updater := NewUpdater(store, mapSource{"AAPL": rising, "XOM": falling}, agg, cfg.Health.HistoryWindowDays, logger.Nop())

	summary, err := updater.Run(context.Background(), []*contracts.Universe{u}, RunOptions{})
	require.NoError(t, err)
	require.NoError(t, summary.Err())
	require.Len(t, summary.Variants, 1)
	assert.Greater(t, summary.Variants[0].Computed, 100)
	assert.Zero(t, summary.Variants[0].Unknown, "every window date has 200d / 50w lookback")

	points, err := store.Load("core")
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.NotEqual(t, contracts.RegimeUnknown, p.RegimeLabel, p.Date)
		assert.Equal(t, 2, p.KnownCount, p.Date)
	}
}

func TestUpdater_CancelledContext(t *testing.T) {
	u, src := testUniverse()
	updater, _ := newUpdater(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := updater.Run(ctx, []*contracts.Universe{u}, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTradingDates(t *testing.T) {
	dates := tradingDates(map[string][]contracts.Bar{
		"A": {{Date: "2024-03-08"}, {Date: "2024-03-09"}},
		"B": {{Date: "2024-03-07"}, {Date: "2024-03-08"}, {Date: "bad"}},
	})
	assert.Equal(t, []string{"2024-03-07", "2024-03-08"}, dates)

	prev, ok := previousDate(dates, "2024-03-08")
	assert.True(t, ok)
	assert.Equal(t, "2024-03-07", prev)

	_, ok = previousDate(dates, "2024-03-07")
	assert.False(t, ok)
}
