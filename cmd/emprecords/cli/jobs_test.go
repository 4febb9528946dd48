package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprecords/emprecords/jobs"
)

type stubJobs struct {
	triggered []string
	stats     QueueStats
	scheduled []*asynq.TaskInfo
	size      int
	err       error
}

func (s *stubJobs) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.triggered = append(s.triggered, name)
	return &asynq.TaskInfo{ID: "abc", Type: name, Queue: "default"}, nil
}

func (s *stubJobs) InspectQueue(context.Context) (QueueStats, error) {
	return s.stats, s.err
}

func (s *stubJobs) ListScheduled(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	s.size = size
	return s.scheduled, s.err
}

func TestRunJobsTrigger(t *testing.T) {
	j := &stubJobs{}
	var out bytes.Buffer
	require.NoError(t, RunJobs(context.Background(), j, []string{"trigger", jobs.TaskAuditPrune}, &out))
	assert.Equal(t, []string{jobs.TaskAuditPrune}, j.triggered)
	assert.Contains(t, out.String(), "enqueued audit:prune id=abc")
}

func TestRunJobsStats(t *testing.T) {
	j := &stubJobs{stats: QueueStats{Queue: "default", Pending: 3, Retry: 1}}
	var out bytes.Buffer
	require.NoError(t, RunJobs(context.Background(), j, []string{"stats"}, &out))
	assert.Contains(t, out.String(), "PENDING")
	assert.Contains(t, out.String(), "default")
}

func TestRunJobsScheduledPageSize(t *testing.T) {
	next := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	j := &stubJobs{scheduled: []*asynq.TaskInfo{{ID: "t1", Type: jobs.TaskAuditPrune, NextProcessAt: next}}}
	var out bytes.Buffer
	require.NoError(t, RunJobs(context.Background(), j, []string{"scheduled", "-n", "5"}, &out))
	assert.Equal(t, 5, j.size)
	assert.Contains(t, out.String(), "2026-01-02T03:00:00Z")
}

func TestRunJobsUsageErrors(t *testing.T) {
	for _, args := range [][]string{nil, {"trigger"}, {"bogus"}, {"scheduled", "-n", "x"}} {
		err := RunJobs(context.Background(), &stubJobs{}, args, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrUsage, "args %v", args)
	}
}

func TestRunJobsPropagatesErrors(t *testing.T) {
	boom := errors.New("redis down")
	err := RunJobs(context.Background(), &stubJobs{err: boom}, []string{"stats"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, boom)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := &JobsCLI{retention: time.Hour}
	_, err := c.Trigger(context.Background(), "analytics:warmup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported job")
}

func TestTriggerRequiresRetention(t *testing.T) {
	c := &JobsCLI{}
	_, err := c.Trigger(context.Background(), jobs.TaskAuditPrune)
	require.Error(t, err)
}

func TestAuditPruneTaskCarriesRetention(t *testing.T) {
	c := &JobsCLI{retention: 48 * time.Hour}
	task, err := c.task(jobs.TaskAuditPrune)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskAuditPrune, task.Type())
	assert.JSONEq(t, `{"retention":172800000000000}`, string(task.Payload()))
}

func TestInspectQueueWithoutInspector(t *testing.T) {
	var c *JobsCLI
	_, err := c.InspectQueue(context.Background())
	require.Error(t, err)
}

var _ Jobs = (*JobsCLI)(nil)
