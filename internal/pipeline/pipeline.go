// Package pipeline runs the daily flow: cache refresh, then health history.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trendhealth/internal/barcache"
	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/history"
	"github.com/wonny/trendhealth/internal/universe"
	"github.com/wonny/trendhealth/pkg/logger"
)

// Refresher refreshes cached bars of a symbol set (barcache.Orchestrator)
type Refresher interface {
	Run(ctx context.Context, symbols []string) *barcache.RunSummary
}

// HistoryUpdater appends health points (history.Updater)
type HistoryUpdater interface {
	Run(ctx context.Context, universes []*contracts.Universe, opts history.RunOptions) (*history.RunSummary, error)
}

// Report is the combined outcome of one pipeline run
type Report struct {
	Refresh  *barcache.RunSummary `json:"refresh,omitempty"`
	History  *history.RunSummary  `json:"history,omitempty"`
	Duration time.Duration        `json:"duration"`
}

// Pipeline wires registry, refresher and updater
// ⭐ SSOT: refresh → history 순서는 여기서만
type Pipeline struct {
	registry  *universe.Registry
	refresher Refresher
	updater   HistoryUpdater
	logger    *logger.Logger
}

// New creates a new Pipeline
func New(registry *universe.Registry, refresher Refresher, updater HistoryUpdater, log *logger.Logger) *Pipeline {
	return &Pipeline{
		registry:  registry,
		refresher: refresher,
		updater:   updater,
		logger:    log.Module("pipeline"),
	}
}

// Refresh refreshes every provider symbol of the registry.
// Symbol failures are in the summary; they never fail the run.
func (p *Pipeline) Refresh(ctx context.Context) *barcache.RunSummary {
	summary := p.refresher.Run(ctx, p.registry.ProviderSymbols())
	for _, f := range summary.Failures {
		p.logger.WithFields(map[string]interface{}{
			"symbol":     f.Symbol,
			"stage":      string(f.Stage),
			"kind":       f.Kind,
			"used_cache": f.UsedCache,
		}).Warn(f.Reason)
	}
	return summary
}

// History updates the health history of every universe
func (p *Pipeline) History(ctx context.Context, opts history.RunOptions) (*history.RunSummary, error) {
	summary, err := p.updater.Run(ctx, p.registry.All(), opts)
	if err != nil {
		return summary, fmt.Errorf("history: %w", err)
	}
	if err := summary.Err(); err != nil {
		return summary, fmt.Errorf("history: %w", err)
	}
	return summary, nil
}

// Run refreshes the cache then updates history
func (p *Pipeline) Run(ctx context.Context, opts history.RunOptions) (*Report, error) {
	start := time.Now()
	report := &Report{}

	report.Refresh = p.Refresh(ctx)
	if err := ctx.Err(); err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	summary, err := p.History(ctx, opts)
	report.History = summary
	report.Duration = time.Since(start)

	p.logger.WithFields(map[string]interface{}{
		"refresh_run_id": report.Refresh.RunID,
		"symbols":        report.Refresh.Symbols,
		"failed_symbols": len(report.Refresh.Failures),
		"duration":       report.Duration.String(),
	}).Info("Pipeline run completed")
	return report, err
}
