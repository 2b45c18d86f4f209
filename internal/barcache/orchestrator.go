package barcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/logger"
)

// OrchestratorConfig holds batch-level knobs
type OrchestratorConfig struct {
	MaxExtendPerRun  int
	LatestBatchSize  int
	LatestBatchDelay time.Duration
}

// Failure is one symbol that could not be refreshed
// UsedCache 가 true 이면 기존 캐시로 fallback 되어 Bars 에 포함됨
type Failure struct {
	Symbol    string `json:"symbol"`
	Stage     Action `json:"stage"`
	Reason    string `json:"reason"`
	Kind      string `json:"kind"`
	UsedCache bool   `json:"usedCache"`
}

// RunSummary is the outcome of one batch run
type RunSummary struct {
	RunID      string                     `json:"runId"`
	StartedAt  time.Time                  `json:"startedAt"`
	Duration   time.Duration              `json:"duration"`
	Symbols    int                        `json:"symbols"`
	Counts     map[Action]int             `json:"counts"`
	Deferred   []string                   `json:"deferred,omitempty"`
	Failures   []Failure                  `json:"failures,omitempty"`
	Bars       map[string][]contracts.Bar `json:"-"`
	Incomplete bool                       `json:"incomplete"`
}

func (s *RunSummary) count(a Action) {
	s.Counts[a]++
}

func (s *RunSummary) fail(symbol string, stage Action, err error, usedCache bool) {
	s.Failures = append(s.Failures, Failure{
		Symbol:    symbol,
		Stage:     stage,
		Reason:    err.Error(),
		Kind:      string(contracts.KindOf(err)),
		UsedCache: usedCache,
	})
}

// Orchestrator refreshes a deduplicated set of symbols under a fetch budget
// ⭐ SSOT: 배치 캐시 갱신 오케스트레이션은 여기서만
type Orchestrator struct {
	policy   *Policy
	provider contracts.PriceProvider
	cfg      OrchestratorConfig
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logger.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(policy *Policy, cfg OrchestratorConfig, log *logger.Logger) *Orchestrator {
	if cfg.LatestBatchSize <= 0 {
		cfg.LatestBatchSize = 50
	}
	return &Orchestrator{
		policy:   policy,
		provider: policy.provider,
		cfg:      cfg,
		sleep:    sleepCtx,
		logger:   log.Module("barcache"),
	}
}

// New wires store, metadata, policy and orchestrator from config
func New(cfg *config.Config, provider contracts.PriceProvider, log *logger.Logger) *Orchestrator {
	dir := cfg.CacheDir()
	store := NewStore(dir, cfg.Cache.WindowDays, log)
	meta := NewMetadataStore(dir, log)
	policy := NewPolicy(provider, store, meta, PolicyConfig{
		WindowDays:  cfg.Cache.WindowDays,
		BufferDays:  cfg.Cache.BufferDays,
		ForceExtend: cfg.Cache.ForceExtend,
	}, log)
	return NewOrchestrator(policy, OrchestratorConfig{
		MaxExtendPerRun:  cfg.Cache.MaxExtendPerRun,
		LatestBatchSize:  cfg.Provider.LatestBatchSize,
		LatestBatchDelay: cfg.Provider.LatestBatchDelay,
	}, log)
}

// Run refreshes every symbol and returns the symbol→bars map of those with data.
// Individual failures are accumulated in the summary, never returned as error.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) *RunSummary {
	symbols = DedupeSymbols(symbols)
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Symbols:   len(symbols),
		Counts:    make(map[Action]int),
		Bars:      make(map[string][]contracts.Bar, len(symbols)),
	}
	log := o.logger.WithField("run_id", summary.RunID)

	// 1. Partition
	var backfill []string
	var extend, update []State
	for _, symbol := range symbols {
		st, err := o.policy.LoadState(symbol)
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("Failed to read cache state")
		}

		switch o.policy.Classify(st) {
		case BucketBackfill:
			backfill = append(backfill, symbol)
		case BucketExtend:
			if len(extend) < o.cfg.MaxExtendPerRun {
				extend = append(extend, st)
				continue
			}
			// 예산 초과 → 다음 실행으로 연기
			summary.Deferred = append(summary.Deferred, symbol)
			update = append(update, st)
		default:
			update = append(update, st)
		}
	}

	log.WithFields(map[string]interface{}{
		"symbols":  len(symbols),
		"backfill": len(backfill),
		"extend":   len(extend),
		"deferred": len(summary.Deferred),
		"update":   len(update),
	}).Info("Starting cache refresh")

	// 2. Backfill (직렬)
	for _, symbol := range backfill {
		if ctx.Err() != nil {
			summary.Incomplete = true
			summary.fail(symbol, ActionBackfill, ctx.Err(), false)
			continue
		}
		res := o.policy.Backfill(ctx, symbol)
		summary.count(ActionBackfill)
		if res.Err != nil {
			log.WithError(res.Err).WithField("symbol", symbol).Warn("Backfill failed")
			summary.fail(symbol, ActionBackfill, res.Err, false)
			continue
		}
		summary.Bars[symbol] = res.Bars
	}

	// 3. Extension (직렬, 예산 내)
	for _, st := range extend {
		if ctx.Err() == nil {
			res := o.policy.Extend(ctx, st)
			o.record(summary, res)
			st.Bars = res.Bars
		}
		update = append(update, st)
	}

	// 4. Freshness: latest batch vs gap fill
	var latest []State
	for _, st := range update {
		if len(st.Bars) == 0 {
			continue
		}
		if o.policy.UseLatest(st) {
			latest = append(latest, st)
			continue
		}
		if ctx.Err() != nil {
			o.keep(summary, st, ActionGapFill, ctx.Err())
			continue
		}
		o.record(summary, o.policy.GapFill(ctx, st))
	}

	o.runLatest(ctx, summary, latest)

	summary.Duration = time.Since(summary.StartedAt)
	if ctx.Err() != nil {
		summary.Incomplete = true
	}

	fields := map[string]interface{}{
		"symbols":   summary.Symbols,
		"with_data": len(summary.Bars),
		"failed":    len(summary.Failures),
		"deferred":  len(summary.Deferred),
		"duration":  summary.Duration.String(),
	}
	for action, n := range summary.Counts {
		fields[string(action)] = n
	}
	log.WithFields(fields).Info("Cache refresh completed")

	return summary
}

// runLatest fetches latest bars in chunks with an inter-chunk delay
func (o *Orchestrator) runLatest(ctx context.Context, summary *RunSummary, states []State) {
	size := o.cfg.LatestBatchSize
	for start := 0; start < len(states); start += size {
		end := start + size
		if end > len(states) {
			end = len(states)
		}
		chunk := states[start:end]

		if start > 0 {
			if err := o.sleep(ctx, o.cfg.LatestBatchDelay); err != nil {
				for _, st := range states[start:] {
					o.keep(summary, st, ActionLatest, err)
				}
				return
			}
		}

		symbols := make([]string, len(chunk))
		for i, st := range chunk {
			symbols[i] = st.Symbol
		}

		bars, err := o.provider.FetchLatestBatch(ctx, symbols)
		if err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{
				"chunk_start": start,
				"chunk_size":  len(chunk),
			}).Warn("Latest batch failed, keeping existing cache")
			for _, st := range chunk {
				o.keep(summary, st, ActionLatest, err)
			}
			continue
		}

		for _, st := range chunk {
			bar, ok := bars[st.Symbol]
			if !ok {
				o.logger.WithField("symbol", st.Symbol).Debug("Symbol absent from latest batch")
			}
			o.record(summary, o.policy.ApplyLatest(st, bar, ok))
		}
	}
}

// record folds a policy result into the summary
func (o *Orchestrator) record(summary *RunSummary, res Result) {
	for _, a := range res.Actions {
		summary.count(a)
	}
	if res.OK() {
		summary.Bars[res.Symbol] = res.Bars
	}
	if res.Err != nil {
		stage := ActionFallback
		if len(res.Actions) > 0 {
			stage = res.Actions[0]
		}
		summary.fail(res.Symbol, stage, res.Err, res.OK())
	}
}

// keep falls back to the cached bars of st after err
func (o *Orchestrator) keep(summary *RunSummary, st State, stage Action, err error) {
	summary.count(ActionFallback)
	if len(st.Bars) > 0 {
		summary.Bars[st.Symbol] = st.Bars
	}
	summary.fail(st.Symbol, stage, err, len(st.Bars) > 0)
}

// DedupeSymbols trims and dedupes symbols in first-seen order
func DedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Err summarizes failures without cached fallback as a single error, or nil
func (s *RunSummary) Err() error {
	var errs []error
	for _, f := range s.Failures {
		if !f.UsedCache {
			errs = append(errs, fmt.Errorf("%s (%s): %s", f.Symbol, f.Stage, f.Reason))
		}
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
