package barcache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
	"github.com/wonny/trendhealth/pkg/logger"
)

const (
	// LatestStaleTradingDays is the staleness up to which the batched latest fetch is used
	LatestStaleTradingDays = 3
	// GapFillOverlapDays re-fetches this many days before the last cached bar
	GapFillOverlapDays = 5
)

// Action is what the policy did to a symbol during a run
type Action string

const (
	ActionBackfill         Action = "backfill"
	ActionExtend           Action = "extend"
	ActionInceptionLimited Action = "inception_limited"
	ActionLatest           Action = "latest"
	ActionGapFill          Action = "gap_fill"
	ActionUnchanged        Action = "unchanged"
	ActionFallback         Action = "fallback"
)

// Bucket is the partition a symbol falls into at the start of a run
type Bucket string

const (
	BucketBackfill Bucket = "backfill"
	BucketExtend   Bucket = "extend"
	BucketUpdate   Bucket = "update"
)

// PolicyConfig holds the cache lifecycle knobs
type PolicyConfig struct {
	WindowDays  int
	BufferDays  int
	ForceExtend bool
}

// State is the cached view of one symbol at the start of a run
type State struct {
	Symbol string
	Bars   []contracts.Bar
	Meta   *contracts.CacheMetadata
}

// Earliest returns the first cached date, or ""
func (s State) Earliest() string {
	if len(s.Bars) == 0 {
		return ""
	}
	return s.Bars[0].Date
}

// Latest returns the last cached date, or ""
func (s State) Latest() string {
	if len(s.Bars) == 0 {
		return ""
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Result is the outcome of the policy for one symbol
// Err 가 있어도 Bars 가 있으면 기존 캐시로 fallback 한 것
type Result struct {
	Symbol  string
	Bars    []contracts.Bar
	Actions []Action
	Err     error
}

// OK reports whether the symbol has usable bars
func (r Result) OK() bool {
	return len(r.Bars) > 0
}

// Policy is the per-symbol cache freshness state machine
// ⭐ SSOT: backfill / extend / gap-fill 결정은 여기서만
type Policy struct {
	provider contracts.PriceProvider
	store    *Store
	meta     *MetadataStore
	cfg      PolicyConfig
	now      func() time.Time
	logger   *logger.Logger
}

// NewPolicy creates a new Policy
func NewPolicy(provider contracts.PriceProvider, store *Store, meta *MetadataStore, cfg PolicyConfig, log *logger.Logger) *Policy {
	return &Policy{
		provider: provider,
		store:    store,
		meta:     meta,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.Module("barcache.policy"),
	}
}

// WithClock overrides the clock (tests)
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now
	return p
}

// Today returns the current UTC date
func (p *Policy) Today() string {
	return contracts.FormatDate(p.now())
}

// LoadState reads the cache and metadata of a symbol
func (p *Policy) LoadState(symbol string) (State, error) {
	bars, err := p.store.Load(symbol)
	if err != nil {
		return State{Symbol: symbol}, fmt.Errorf("load cache %s: %w", symbol, err)
	}
	meta, err := p.meta.Load(symbol)
	if err != nil {
		return State{Symbol: symbol, Bars: bars}, fmt.Errorf("load metadata %s: %w", symbol, err)
	}
	return State{Symbol: symbol, Bars: bars, Meta: meta}, nil
}

// Classify returns the bucket of a symbol
func (p *Policy) Classify(st State) Bucket {
	if len(st.Bars) == 0 {
		return BucketBackfill
	}
	if p.NeedsExtension(st) {
		return BucketExtend
	}
	return BucketUpdate
}

// NeedsExtension reports whether the cache is shorter than the window and
// the symbol is not known to be inception-limited (unless forced)
func (p *Policy) NeedsExtension(st State) bool {
	if len(st.Bars) == 0 {
		return false
	}
	if st.Meta != nil && st.Meta.InceptionLimited && !p.cfg.ForceExtend {
		return false
	}
	return timeseries.Span(st.Bars) < p.cfg.WindowDays-p.cfg.BufferDays
}

// Backfill fetches the full window for a symbol without cache
func (p *Policy) Backfill(ctx context.Context, symbol string) Result {
	res := Result{Symbol: symbol, Actions: []Action{ActionBackfill}}
	today := p.Today()
	start, _ := contracts.AddDays(today, -p.cfg.WindowDays)

	bars, err := p.provider.FetchSeries(ctx, symbol, contracts.FetchRange{
		StartDate: start,
		EndDate:   today,
		Limit:     p.cfg.WindowDays,
	})
	if err != nil {
		res.Err = fmt.Errorf("backfill %s: %w", symbol, err)
		return res
	}
	if len(bars) == 0 {
		res.Err = contracts.NewFetchError(contracts.ErrKindNotFound, symbol, "backfill returned no bars", nil)
		return res
	}

	saved, err := p.store.Save(symbol, bars)
	if err != nil {
		res.Err = err
		return res
	}

	p.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(saved),
		"from":   saved[0].Date,
		"to":     saved[len(saved)-1].Date,
	}).Info("Backfill completed")

	res.Bars = saved
	return res
}

// Extend fetches the missing front of the window and merges it in.
// Zero returned bars marks the symbol inception-limited. Failures keep the
// existing cache.
func (p *Policy) Extend(ctx context.Context, st State) Result {
	res := Result{Symbol: st.Symbol, Bars: st.Bars, Actions: []Action{ActionExtend}}
	if len(st.Bars) == 0 {
		return res
	}

	earliest := st.Earliest()
	missingDays := p.cfg.WindowDays - timeseries.Span(st.Bars)
	start, _ := contracts.AddDays(earliest, -(missingDays + p.cfg.BufferDays))
	end, _ := contracts.AddDays(earliest, -1)

	log := p.logger.WithFields(map[string]interface{}{
		"symbol": st.Symbol,
		"from":   start,
		"to":     end,
	})

	bars, err := p.provider.FetchSeries(ctx, st.Symbol, contracts.FetchRange{
		StartDate: start,
		EndDate:   end,
		Limit:     missingDays + p.cfg.BufferDays,
	})
	if err != nil && !contracts.IsNotFound(err) {
		log.WithError(err).Warn("Extension failed, keeping existing cache")
		res.Actions = append(res.Actions, ActionFallback)
		res.Err = fmt.Errorf("extend %s: %w", st.Symbol, err)
		return res
	}

	// 과거 구간에 데이터가 없음 → 상장일 제한
	if len(bars) == 0 {
		meta := contracts.CacheMetadata{
			Symbol:           st.Symbol,
			InceptionLimited: true,
			OldestCachedDate: earliest,
			CheckedAt:        p.now().UTC(),
		}
		if err := p.meta.Save(meta); err != nil {
			log.WithError(err).Warn("Failed to save inception metadata")
		}
		log.Info("No data before earliest cached bar, marked inception-limited")
		res.Actions = append(res.Actions, ActionInceptionLimited)
		return res
	}

	saved, err := p.store.Save(st.Symbol, timeseries.MergeBars(st.Bars, bars))
	if err != nil {
		log.WithError(err).Warn("Failed to save extended cache, keeping existing cache")
		res.Actions = append(res.Actions, ActionFallback)
		res.Err = err
		return res
	}

	if st.Meta != nil {
		if err := p.meta.Clear(st.Symbol); err != nil {
			log.WithError(err).Warn("Failed to clear inception metadata")
		}
	}

	log.WithFields(map[string]interface{}{
		"added": len(saved) - len(st.Bars),
		"bars":  len(saved),
	}).Info("Extension completed")

	res.Bars = saved
	return res
}

// TradingDaysSince approximates trading days between two dates as ceil(calendar*5/7)
func TradingDaysSince(last, today string) int {
	days, err := contracts.DaysBetween(last, today)
	if err != nil || days <= 0 {
		return 0
	}
	return int(math.Ceil(float64(days) * 5 / 7))
}

// UseLatest reports whether the batched latest fetch is enough for st
func (p *Policy) UseLatest(st State) bool {
	return TradingDaysSince(st.Latest(), p.Today()) <= LatestStaleTradingDays
}

// GapFill fetches [last-5, today] and merges it in; failures keep the cache
func (p *Policy) GapFill(ctx context.Context, st State) Result {
	res := Result{Symbol: st.Symbol, Bars: st.Bars, Actions: []Action{ActionGapFill}}
	if len(st.Bars) == 0 {
		return res
	}

	today := p.Today()
	start, _ := contracts.AddDays(st.Latest(), -GapFillOverlapDays)
	days, _ := contracts.DaysBetween(start, today)

	log := p.logger.WithFields(map[string]interface{}{
		"symbol": st.Symbol,
		"from":   start,
		"to":     today,
	})

	bars, err := p.provider.FetchSeries(ctx, st.Symbol, contracts.FetchRange{
		StartDate: start,
		EndDate:   today,
		Limit:     days + 1,
	})
	if err != nil {
		log.WithError(err).Warn("Gap fill failed, keeping existing cache")
		res.Actions = append(res.Actions, ActionFallback)
		res.Err = fmt.Errorf("gap fill %s: %w", st.Symbol, err)
		return res
	}
	if len(bars) == 0 {
		res.Actions = append(res.Actions, ActionUnchanged)
		return res
	}

	saved, err := p.store.Save(st.Symbol, timeseries.MergeBars(st.Bars, bars))
	if err != nil {
		log.WithError(err).Warn("Failed to save gap fill, keeping existing cache")
		res.Actions = append(res.Actions, ActionFallback)
		res.Err = err
		return res
	}

	log.WithField("bars", len(saved)).Debug("Gap fill completed")
	res.Bars = saved
	return res
}

// ApplyLatest merges a batched latest bar if it is newer than the cache.
// ok=false means the symbol was absent from the batch response.
func (p *Policy) ApplyLatest(st State, latest contracts.Bar, ok bool) Result {
	res := Result{Symbol: st.Symbol, Bars: st.Bars, Actions: []Action{ActionLatest}}
	if !ok || len(st.Bars) == 0 || latest.Date <= st.Latest() {
		res.Actions = append(res.Actions, ActionUnchanged)
		return res
	}

	saved, err := p.store.Save(st.Symbol, timeseries.MergeBars(st.Bars, []contracts.Bar{latest}))
	if err != nil {
		p.logger.WithError(err).WithField("symbol", st.Symbol).Warn("Failed to save latest bar, keeping existing cache")
		res.Actions = append(res.Actions, ActionFallback)
		res.Err = err
		return res
	}

	res.Bars = saved
	return res
}
