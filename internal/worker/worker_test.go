package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(2)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	pool.Shutdown()
	assert.Equal(t, int32(10), ran.Load())
}

func TestWorkerPoolSurvivesFailingTask(t *testing.T) {
	pool := NewWorkerPool(1)

	done := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		return errors.New("boom")
	})
	pool.Submit(func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task after a failure never ran")
	}
	pool.Shutdown()
}

func TestWorkerPoolDropsAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	// must not panic or block
	pool.Submit(func(ctx context.Context) error { return nil })
}
