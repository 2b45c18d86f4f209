package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/health"
	"github.com/wonny/trendhealth/pkg/logger"
)

// BarSource reads cached bars of a provider symbol (barcache.Store)
type BarSource interface {
	Load(symbol string) ([]contracts.Bar, error)
}

// Mirror receives every freshly computed point (optional)
type Mirror interface {
	Upsert(ctx context.Context, key string, points []contracts.HealthHistoryPoint) error
}

// RunOptions controls one updater run
type RunOptions struct {
	// Rebuild recomputes every candidate date instead of only missing ones
	Rebuild bool

	// Date, when set, recomputes only that date (overwriting a persisted point)
	Date string
}

// VariantSummary is the outcome for one artifact key
type VariantSummary struct {
	Key      string `json:"key"`
	Computed int    `json:"computed"`
	Unknown  int    `json:"unknown"`
	Points   int    `json:"points"`
	Error    string `json:"error,omitempty"`
}

// RunSummary is the outcome of one updater run
type RunSummary struct {
	RunID     string           `json:"runId"`
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"duration"`
	Variants  []VariantSummary `json:"variants"`

	errs []error
}

// Err joins every per-variant failure (nil when all artifacts were saved)
func (s *RunSummary) Err() error {
	return errors.Join(s.errs...)
}

// Updater appends missing daily health points to each universe's artifact
// ⭐ SSOT: health-history 갱신 흐름은 여기서만
type Updater struct {
	store      *Store
	bars       BarSource
	aggregator *health.Aggregator
	windowDays int
	mirror     Mirror
	logger     *logger.Logger
}

// NewUpdater creates a new Updater
func NewUpdater(store *Store, bars BarSource, aggregator *health.Aggregator, windowDays int, log *logger.Logger) *Updater {
	return &Updater{
		store:      store,
		bars:       bars,
		aggregator: aggregator,
		windowDays: windowDays,
		logger:     log.Module("history"),
	}
}

// WithMirror sets the optional mirror for computed points
func (u *Updater) WithMirror(m Mirror) *Updater {
	u.mirror = m
	return u
}

// Run updates the artifacts of every universe (and its group variants).
// Per-variant failures are collected in the summary; only ctx cancellation
// stops the run early.
func (u *Updater) Run(ctx context.Context, universes []*contracts.Universe, opts RunOptions) (*RunSummary, error) {
	if opts.Date != "" {
		if _, err := contracts.ParseDate(opts.Date); err != nil {
			return nil, fmt.Errorf("invalid date: %w", err)
		}
	}

	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Variants:  make([]VariantSummary, 0, len(universes)),
	}
	log := u.logger.WithField("run_id", summary.RunID)

	for _, uni := range universes {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(summary.StartedAt)
			return summary, err
		}

		bars := u.loadBars(uni)
		dates := tradingDates(bars)

		for _, v := range variants(uni) {
			vs, err := u.updateVariant(ctx, v, bars, dates, opts)
			if err != nil {
				vs.Error = err.Error()
				summary.errs = append(summary.errs, fmt.Errorf("%s: %w", vs.Key, err))
				log.WithError(err).WithField("key", vs.Key).Warn("History update failed")
			}
			summary.Variants = append(summary.Variants, vs)
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	log.WithFields(map[string]interface{}{
		"variants": len(summary.Variants),
		"failures": len(summary.errs),
		"duration": summary.Duration.String(),
	}).Info("History run completed")
	return summary, nil
}

type variant struct {
	key      string
	universe *contracts.Universe
}

func variants(u *contracts.Universe) []variant {
	out := []variant{{key: Key(u.ID, ""), universe: u}}
	if !u.GroupHistory {
		return out
	}
	for _, g := range u.Groups() {
		out = append(out, variant{key: Key(u.ID, g), universe: u.Subset(g)})
	}
	return out
}

func (u *Updater) updateVariant(ctx context.Context, v variant, bars map[string][]contracts.Bar, dates []string, opts RunOptions) (VariantSummary, error) {
	vs := VariantSummary{Key: v.key}

	// 손상된 파일은 덮어쓰지 않음
	existing, err := u.store.Load(v.key)
	if err != nil {
		return vs, err
	}

	targets := u.targetDates(dates, existing, opts)
	if len(targets) == 0 {
		vs.Points = len(existing)
		return vs, nil
	}

	computed := make([]contracts.HealthHistoryPoint, 0, len(targets))
	results := make(map[string]*health.Result)
	compute := func(date string) *health.Result {
		if r, ok := results[date]; ok {
			return r
		}
		r := u.aggregator.Compute(v.universe, bars, date)
		results[date] = r
		return r
	}

	for _, date := range targets {
		cur := compute(date)

		var diff health.Diffusion
		if prev, ok := previousDate(dates, date); ok {
			diff = health.ComputeDiffusion(compute(prev), cur)
		}

		if cur.IsUnknown() {
			vs.Unknown++
		}
		computed = append(computed, cur.Point(diff))
	}
	vs.Computed = len(computed)

	saved, err := u.store.Save(v.key, mergePoints(existing, computed))
	if err != nil {
		return vs, err
	}
	vs.Points = len(saved)

	if u.mirror != nil {
		if err := u.mirror.Upsert(ctx, v.key, computed); err != nil {
			return vs, fmt.Errorf("mirror: %w", err)
		}
	}
	return vs, nil
}

// targetDates selects the candidate dates that need a computed point
func (u *Updater) targetDates(dates []string, existing []contracts.HealthHistoryPoint, opts RunOptions) []string {
	if opts.Date != "" {
		if i := sort.SearchStrings(dates, opts.Date); i < len(dates) && dates[i] == opts.Date {
			return []string{opts.Date}
		}
		return nil
	}

	window := windowDates(dates, u.windowDays)
	if opts.Rebuild {
		return window
	}

	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Date] = true
	}
	missing := make([]string, 0)
	for _, d := range window {
		if !have[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

func (u *Updater) loadBars(uni *contracts.Universe) map[string][]contracts.Bar {
	out := make(map[string][]contracts.Bar, len(uni.Items))
	for _, item := range uni.Items {
		symbol := item.Symbol()
		if _, ok := out[symbol]; ok {
			continue
		}
		bars, err := u.bars.Load(symbol)
		if err != nil {
			u.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to load cached bars")
		}
		out[symbol] = bars
	}
	return out
}

// tradingDates returns the sorted union of weekday bar dates
func tradingDates(bars map[string][]contracts.Bar) []string {
	seen := make(map[string]bool)
	for _, series := range bars {
		for _, b := range series {
			if contracts.IsWeekend(b.Date) {
				continue
			}
			if _, err := contracts.ParseDate(b.Date); err != nil {
				continue
			}
			seen[b.Date] = true
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// windowDates keeps dates within [latest - windowDays, latest]
func windowDates(dates []string, windowDays int) []string {
	if len(dates) == 0 || windowDays <= 0 {
		return dates
	}
	cutoff, err := contracts.AddDays(dates[len(dates)-1], -windowDays)
	if err != nil {
		return dates
	}
	i := sort.SearchStrings(dates, cutoff)
	return dates[i:]
}

func previousDate(dates []string, date string) (string, bool) {
	i := sort.SearchStrings(dates, date)
	if i == 0 {
		return "", false
	}
	return dates[i-1], true
}
