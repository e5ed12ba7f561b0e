package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/harperreed/gappsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls []int
	err   error
}

func (r *countingRunner) Run(_ context.Context, maxOverride int) (*models.JobLog, error) {
	r.calls = append(r.calls, maxOverride)
	if r.err != nil {
		return &models.JobLog{Code: "remote_api"}, r.err
	}
	return &models.JobLog{OK: true, Created: 2, Processed: 2}, nil
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(&countingRunner{}, log.New(&bytes.Buffer{}), 0)

	assert.Error(t, s.Schedule("every now and then"))
	assert.NoError(t, s.Schedule("@every 15m"))
	assert.NoError(t, s.Schedule("*/10 * * * *"))
}

func TestSchedulerTickRunsJob(t *testing.T) {
	var buf bytes.Buffer
	runner := &countingRunner{}
	s := NewScheduler(runner, log.New(&buf), 3)

	s.tick()
	assert.Equal(t, []int{3}, runner.calls)
	assert.Contains(t, buf.String(), "scheduled sync finished")

	runner.err = errors.New("boom")
	s.tick()
	assert.Contains(t, buf.String(), "scheduled sync failed")
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&countingRunner{}, log.New(&bytes.Buffer{}), 0)
	require.NoError(t, s.Schedule("@every 1h"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Stop()
}

func TestCronLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	cl := cronLogger{logger: logger}

	cl.Error(errors.New("panic"), "job failed", "entry", 1)
	assert.Contains(t, buf.String(), "job failed")
	assert.Contains(t, buf.String(), "panic")
}
