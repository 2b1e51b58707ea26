package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunnerRunsImmediatelyAndOnTicks(t *testing.T) {
	var runs int64
	r := NewRunner(zap.NewNop())
	r.jobs = append(r.jobs, Job{
		Name:     "counter",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	r.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	r.Stop()

	// 启动即跑一次，之后每 20ms 一次
	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(3))
}

func TestRunnerSurvivesJobErrors(t *testing.T) {
	var runs int64
	r := NewRunner(zap.NewNop())
	r.jobs = append(r.jobs, Job{
		Name:     "flaky",
		Interval: 15 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return errors.New("boom")
		},
	})

	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2))
}

func TestRunnerIgnoresNonPositiveInterval(t *testing.T) {
	r := NewRunner(zap.NewNop())
	r.Add("disabled", 0, func(ctx context.Context) error { return nil })
	assert.Empty(t, r.jobs)
}

func TestRunnerStopUnblocks(t *testing.T) {
	r := NewRunner(zap.NewNop())
	r.Add("slow", 3600, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	r.Start(context.Background())

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
