package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  atomic.Int32
	block chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return nil
}

func TestAddJobRejectsInvalidSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "every minute"))
	require.NoError(t, s.AddJob(&countingJob{}, "*/5 * * * *"))
	require.NoError(t, s.AddJob(&countingJob{}, "@every 30s"))
}

func TestRunNowSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{block: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "@every 1h"))
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.RunNow("counting"))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, s.RunNow("counting"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	require.False(t, s.RunNow("missing"))
}
