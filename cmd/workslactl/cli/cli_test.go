package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/jobs"
)

type fakeQueue struct {
	enqueued []*asynq.Task
	options  [][]asynq.Option
	err      error
	stats    jobs.QueueStats
	closed   bool
}

func (q *fakeQueue) Enqueue(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.enqueued = append(q.enqueued, task)
	q.options = append(q.options, opts)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (q *fakeQueue) Stats(context.Context) (jobs.QueueStats, error) { return q.stats, nil }

func (q *fakeQueue) Scheduled(int) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskWorkpackagesRefresh, NextProcessAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}}, nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsTriggerSync(t *testing.T) {
	q := &fakeQueue{}
	cmd := newJobsCmd(&Options{}, func(*Options) Queue { return q })

	out, err := run(t, cmd, "trigger", jobs.TaskWorkpackagesSync)
	require.NoError(t, err)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, jobs.TaskWorkpackagesSync, q.enqueued[0].Type())
	assert.Contains(t, out, "enqueued workpackages:sync as t-1")
	assert.True(t, q.closed)

	require.Len(t, q.options, 1)
	var taskID string
	for _, opt := range q.options[0] {
		assert.NotEqual(t, asynq.RetentionOpt, opt.Type(), "finished syncs must not block the next trigger")
		if opt.Type() == asynq.TaskIDOpt {
			taskID = opt.Value().(string)
		}
	}
	assert.Equal(t, jobs.TaskWorkpackagesSync, taskID)
}

func TestJobsTriggerAlreadyQueued(t *testing.T) {
	q := &fakeQueue{err: jobs.ErrAlreadyQueued}
	cmd := newJobsCmd(&Options{}, func(*Options) Queue { return q })

	out, err := run(t, cmd, "trigger", jobs.TaskWorkpackagesSync)
	require.NoError(t, err)
	assert.Contains(t, out, "already queued")
}

func TestJobsTriggerUnknownTask(t *testing.T) {
	cmd := newJobsCmd(&Options{}, func(*Options) Queue { return &fakeQueue{} })

	_, err := run(t, cmd, "trigger", "reports:mail")
	require.ErrorContains(t, err, "unsupported task")
}

func TestJobsQueue(t *testing.T) {
	q := &fakeQueue{stats: jobs.QueueStats{Queue: jobs.QueueDefault, Pending: 3, Failed: 1}}
	cmd := newJobsCmd(&Options{}, func(*Options) Queue { return q })

	out, err := run(t, cmd, "queue")
	require.NoError(t, err)
	assert.Regexp(t, `pending\s+3`, out)
	assert.Regexp(t, `failed today\s+1`, out)
}

func TestJobsScheduled(t *testing.T) {
	cmd := newJobsCmd(&Options{}, func(*Options) Queue { return &fakeQueue{} })

	out, err := run(t, cmd, "scheduled", "--size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "workpackages:refresh")
	assert.Contains(t, out, "2025-06-01T09:00:00Z")
}

func TestPingReportsFailures(t *testing.T) {
	cmd := newPingCmd(&Options{}, func(*Options) []Checker {
		return []Checker{
			{Name: "backend", Check: func(context.Context) error { return nil }},
			{Name: "gotenberg", Check: func(context.Context) error { return errors.New("connection refused") }},
		}
	})

	out, err := run(t, cmd)
	require.ErrorIs(t, err, errUnreachable)
	assert.Regexp(t, `backend\s+ok`, out)
	assert.Contains(t, out, "connection refused")
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"jobs", "ping"})
}
