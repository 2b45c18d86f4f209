package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendhealth/pkg/logger"
)

type testJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	failFor  int32
	block    chan struct{}
	started  chan struct{}
}

func (j *testJob) Name() string     { return j.name }
func (j *testJob) Schedule() string { return j.schedule }

func (j *testJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.started != nil {
		j.started <- struct{}{}
	}
	if j.block != nil {
		<-j.block
	}
	if n <= j.failFor {
		return errors.New("boom")
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&testJob{name: "a", schedule: "0 30 22 * * MON-FRI"}))
	assert.Error(t, s.AddJob(&testJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&testJob{name: "b", schedule: "not a cron"}))

	assert.Equal(t, []string{"a"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, 0))
	job := &testJob{name: "daily_refresh", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("daily_refresh"))
	assert.Error(t, s.RunJob("missing"))

	hist, err := s.GetJobHistory("daily_refresh")
	require.NoError(t, err)
	require.Len(t, hist.Results, 1)
	assert.True(t, hist.Results[0].Success)

	stats := s.GetJobStats()["daily_refresh"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunJob_Retries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, 0))
	job := &testJob{name: "flaky", schedule: "@daily", failFor: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	assert.Equal(t, int32(3), job.calls.Load())

	hist, _ := s.GetJobHistory("flaky")
	assert.True(t, hist.Results[0].Success)

	job2 := &testJob{name: "broken", schedule: "@daily", failFor: 10}
	require.NoError(t, s.AddJob(job2))
	require.NoError(t, s.RunJob("broken"))
	assert.Equal(t, int32(3), job2.calls.Load())

	hist, _ = s.GetJobHistory("broken")
	assert.False(t, hist.Results[0].Success)
	assert.Equal(t, "boom", hist.Results[0].Error)
}

func TestRunJob_SkipsWhileRunning(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, 0))
	job := &testJob{
		name:     "slow",
		schedule: "@daily",
		block:    make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	require.NoError(t, s.AddJob(job))

	done := make(chan error, 1)
	go func() { done <- s.RunJob("slow") }()
	<-job.started

	assert.ErrorContains(t, s.RunJob("slow"), "already running")

	close(job.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestNext(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&testJob{name: "a", schedule: "@every 1h"}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		next, ok := s.Next("a")
		return ok && next.After(time.Now())
	}, time.Second, 10*time.Millisecond)

	_, ok := s.Next("missing")
	assert.False(t, ok)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetLatestResults(1000), maxHistory)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(5))
}

func TestCronLoggerFields(t *testing.T) {
	f := fields([]interface{}{"entry", 1, "now", "x", "dangling"})
	assert.Equal(t, map[string]interface{}{"entry": 1, "now": "x"}, f)
}
