package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trendhealth/internal/history"
)

// refreshCmd refreshes the per-symbol bar cache
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "바 캐시 갱신",
	Long: `Refresh the bar cache of every provider symbol in the registry.

Each symbol is backfilled, extended backward, gap-filled or updated from the
latest-bar batch. Symbol failures fall back to cached data and are reported,
never fatal.

Example:
  go run ./cmd/trendhealth refresh
  go run ./cmd/trendhealth refresh --symbol AAPL --symbol BRK-B`,
	RunE: runRefresh,
}

// historyCmd updates the health history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "건강도 히스토리 갱신",
	Long: `Append missing daily health points per universe from the cached bars.

Example:
  go run ./cmd/trendhealth history
  go run ./cmd/trendhealth history --rebuild
  go run ./cmd/trendhealth history --date 2024-03-08`,
	RunE: runHistory,
}

// runCmd runs refresh then history
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "캐시 갱신 + 히스토리 갱신",
	RunE:  runPipeline,
}

var (
	refreshSymbols []string
	historyRebuild bool
	historyDate    string
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(runCmd)

	refreshCmd.Flags().StringSliceVar(&refreshSymbols, "symbol", nil, "refresh only these provider symbols")

	for _, cmd := range []*cobra.Command{historyCmd, runCmd} {
		cmd.Flags().BoolVar(&historyRebuild, "rebuild", false, "recompute every date in the history window")
		cmd.Flags().StringVar(&historyDate, "date", "", "recompute a single date (YYYY-MM-DD)")
	}
}

// signalContext is cancelled on Ctrl+C / SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func historyOptions() history.RunOptions {
	return history.RunOptions{Rebuild: historyRebuild, Date: historyDate}
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.registry.ProviderSymbols()
	if len(refreshSymbols) > 0 {
		symbols = refreshSymbols
	}

	PrintHeader("Cache Refresh", map[string]string{
		"Provider": a.cfg.Provider.Name,
		"Symbols":  fmt.Sprint(len(symbols)),
		"Cache":    a.cfg.CacheDir(),
	})

	orch, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}
	printRefreshSummary(orch.Run(ctx, symbols))
	return ctx.Err()
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := historyOptions()
	PrintHeader("Health History", map[string]string{
		"Universes": fmt.Sprint(len(a.registry.All())),
		"Window":    fmt.Sprintf("%d days", a.cfg.Health.HistoryWindowDays),
		"Mode":      mode(opts),
	})

	upd, err := a.updater(ctx)
	if err != nil {
		return err
	}
	summary, err := upd.Run(ctx, a.registry.All(), opts)
	printHistorySummary(summary)
	if err != nil {
		return err
	}
	return summary.Err()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := historyOptions()
	PrintHeader("Refresh + History", map[string]string{
		"Provider":  a.cfg.Provider.Name,
		"Universes": fmt.Sprint(len(a.registry.All())),
		"Mode":      mode(opts),
	})

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx, opts)
	printRefreshSummary(report.Refresh)
	printHistorySummary(report.History)
	return err
}

func mode(opts history.RunOptions) string {
	switch {
	case opts.Date != "":
		return "date " + opts.Date
	case opts.Rebuild:
		return "rebuild"
	default:
		return "append"
	}
}
