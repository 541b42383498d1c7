package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	err   error
	panic bool
	runs  atomic.Int32
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestAddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 */15 * * * *", &countingJob{name: "cache_cleanup"}))
	assert.ElementsMatch(t, []string{"cache_cleanup"}, s.JobNames())

	err := s.AddJob("@hourly", &countingJob{name: "cache_cleanup"})
	assert.ErrorContains(t, err, "already registered")

	err = s.AddJob("not a schedule", &countingJob{name: "other"})
	assert.ErrorContains(t, err, "invalid schedule")
	assert.Len(t, s.JobNames(), 1)
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "job", err: errors.New("failed")}

	assert.EqualError(t, s.RunNow(job), "failed")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "backup"}
	require.NoError(t, s.AddJob("@daily", job))

	require.NoError(t, s.RunByName("backup"))
	assert.Equal(t, int32(1), job.runs.Load())

	assert.ErrorContains(t, s.RunByName("missing"), "unknown job")
}

func TestScheduledExecution(t *testing.T) {
	s := New(zerolog.Nop())
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	panicking := &countingJob{name: "panicking", panic: true}
	require.NoError(t, s.AddJob("@every 1s", failing))
	require.NoError(t, s.AddJob("@every 1s", panicking))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return failing.runs.Load() > 0 && panicking.runs.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}
