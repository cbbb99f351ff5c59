package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}

	q := NewQueue("reports", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "generate_report"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestQueueFailureLogsCarryWorkerID(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	handler := func(ctx context.Context, job Job) error {
		return errors.New("boom")
	}

	q := NewQueue("reports", handler, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
		Logger:     zap.New(core),
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "generate_report"}))

	deadline := time.After(2 * time.Second)
	for logs.FilterMessage("job exceeded retries").Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never exhausted its retries")
		case <-time.After(10 * time.Millisecond):
		}
	}

	entry := logs.FilterMessage("job exceeded retries").All()[0]
	fields := entry.ContextMap()
	assert.EqualValues(t, 1, fields["worker"])
	assert.Equal(t, "job-1", fields["job_id"])

	retry := logs.FilterMessage("job failed, retrying").All()
	require.NotEmpty(t, retry)
	assert.EqualValues(t, 1, retry[0].ContextMap()["worker"])
}

func TestQueueEnqueueRequiresStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "job-1"})
	require.Error(t, err)
}
