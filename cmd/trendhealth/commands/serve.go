package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trendhealth/internal/api"
	"github.com/wonny/trendhealth/internal/api/handlers"
	"github.com/wonny/trendhealth/pkg/database"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "읽기 전용 API 서버 시작",
	Long: `Start the read-only artifact API.

Endpoints:
  GET /health                         - Health check (+ Postgres mirror when DATABASE_URL is set)
  GET /api/universes                  - Configured universes
  GET /api/history/{universe}         - Health history (?group=)
  GET /api/history/{universe}/latest  - Latest health point (?group=)
  GET /api/cache/{symbol}             - Bar cache status

Example:
  go run ./cmd/trendhealth serve
  go run ./cmd/trendhealth serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	// mirror 는 DATABASE_URL 이 있을 때만 /health 에 포함
	var mirror api.MirrorChecker
	if a.cfg.Database.Enabled() {
		db, err := database.New(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		mirror = db
	}

	bars, meta := a.barStores()
	router := api.NewRouter(
		handlers.NewHistoryHandler(a.registry, a.historyStore(), a.log),
		handlers.NewCacheHandler(bars, meta, a.cfg.Provider.Name, a.log),
		mirror,
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("API server listening on :%s (Ctrl+C to stop)\n", a.cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return server.Shutdown(shutdownCtx)
}
