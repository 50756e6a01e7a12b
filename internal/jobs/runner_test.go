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

func TestRunPeriodic_RetriesWithinCycle(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		RunPeriodic(ctx, "test", time.Hour, RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond},
			zap.NewNop().Sugar(), func(context.Context) error {
				if calls.Add(1) < 3 {
					return errors.New("transient")
				}
				close(done)
				return nil
			})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunPeriodic_GivesUpUntilNextTick(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	go RunPeriodic(ctx, "test", time.Hour, RetryPolicy{MaxAttempts: 2, BackoffBase: time.Millisecond},
		zap.NewNop().Sugar(), func(context.Context) error {
			calls.Add(1)
			return errors.New("down")
		})

	time.Sleep(200 * time.Millisecond)
	cancel()
	assert.Equal(t, int32(2), calls.Load(), "attempts are bounded per cycle")
}

func TestRunPeriodic_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		RunPeriodic(ctx, "test", 10*time.Millisecond, RetryPolicy{MaxAttempts: 1, BackoffBase: time.Millisecond},
			zap.NewNop().Sugar(), func(context.Context) error { return nil })
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}
