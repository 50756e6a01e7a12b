// internal/jobs/runner.go
package jobs

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is the bounded-retry configuration shared by the background
// jobs. Attempts are spaced by exponential backoff with up to 20% jitter.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BackoffBase * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}

// RunPeriodic executes fn immediately and then every interval until ctx is
// cancelled. A failing execution is retried within the cycle according to
// pol; once attempts are exhausted the cycle is abandoned and the job waits
// for the next tick. Background jobs never block request traffic, so giving
// up until the next cycle is always safe.
func RunPeriodic(ctx context.Context, name string, interval time.Duration, pol RetryPolicy, log *zap.SugaredLogger, fn func(context.Context) error) {
	run := func() {
		attempts := pol.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
		for attempt := 1; attempt <= attempts; attempt++ {
			err := fn(ctx)
			if err == nil {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if attempt == attempts {
				log.Warnw("cycle failed, waiting for next interval", "job", name, "attempt", attempt, "err", err)
				return
			}
			wait := pol.backoff(attempt)
			log.Warnw("cycle failed, backing off", "job", name, "attempt", attempt, "backoff", wait, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infow("job stopped", "job", name)
			return
		case <-ticker.C:
			run()
		}
	}
}
