package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/trendhealth/internal/history"
	"github.com/wonny/trendhealth/internal/pipeline"
	"github.com/wonny/trendhealth/pkg/logger"
)

// DefaultSchedule runs after the US close on weekdays (with seconds)
const DefaultSchedule = "0 30 22 * * MON-FRI"

// Runner executes one full pipeline run (pipeline.Pipeline)
type Runner interface {
	Run(ctx context.Context, opts history.RunOptions) (*pipeline.Report, error)
}

// DailyRefreshJob refreshes the bar cache and appends health history
// ⭐ SSOT: 일일 갱신 스케줄은 이 Job에서만
type DailyRefreshJob struct {
	runner   Runner
	schedule string
	logger   *logger.Logger
}

// NewDailyRefreshJob creates a new daily refresh job
func NewDailyRefreshJob(runner Runner, schedule string, log *logger.Logger) *DailyRefreshJob {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &DailyRefreshJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.Module("jobs"),
	}
}

// Name returns the job name
func (j *DailyRefreshJob) Name() string {
	return "daily_refresh"
}

// Schedule returns the cron schedule
func (j *DailyRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes refresh + history
func (j *DailyRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled refresh")

	report, err := j.runner.Run(ctx, history.RunOptions{})
	if err != nil {
		return fmt.Errorf("daily refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols":  report.Refresh.Symbols,
		"failures": len(report.Refresh.Failures),
		"variants": len(report.History.Variants),
	}).Info("Scheduled refresh completed")
	return nil
}
