package rewrite

import (
	"context"
	"time"
)

// RetryPolicy bounds calls to the generator. Backoff receives the number of
// the attempt that just failed (1-based) and returns the wait before the next.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy makes three attempts, waiting 500ms then 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: LinearBackoff(500 * time.Millisecond)}
}

func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// wait sleeps for the backoff after attempt, returning early with the
// context error if ctx ends first.
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	if p.Backoff == nil {
		return ctx.Err()
	}
	d := p.Backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
