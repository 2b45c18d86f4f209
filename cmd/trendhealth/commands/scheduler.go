package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/trendhealth/internal/scheduler"
	"github.com/wonny/trendhealth/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 시작",
	Long: `Start the scheduler daemon.

등록되는 작업:
- daily_refresh: REFRESH_SCHEDULE (default 평일 22:30, cache refresh + history)

A tick that fires while the previous run is still going is skipped.
스케줄러는 Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/trendhealth scheduler
  go run ./cmd/trendhealth scheduler --run-now`,
	RunE: runScheduler,
}

var schedulerRunNow bool

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "run daily_refresh once before waiting for the schedule")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.log)
	job := jobs.NewDailyRefreshJob(p, a.cfg.RefreshSchedule, a.log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	PrintHeader("Scheduler", map[string]string{
		"Job":      job.Name(),
		"Schedule": job.Schedule(),
	})
	if next, ok := sched.Next(job.Name()); ok && !next.IsZero() {
		PrintKeyValue("Next run", next.Format("2006-01-02 15:04:05 MST"), 10)
	}

	if schedulerRunNow {
		go func() {
			if err := sched.RunJob(job.Name()); err != nil {
				a.log.WithError(err).Warn("Immediate run skipped")
			}
		}()
	}

	fmt.Println("\nPress Ctrl+C to stop")
	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	return nil
}
