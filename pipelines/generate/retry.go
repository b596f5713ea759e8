// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package generate

import (
	"context"
	"time"
)

// RetryPolicy controls how rate-limited and transport failures are retried.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // wait after the first failed attempt
	Multiplier   float64
}

// DefaultRetryPolicy allows five attempts with waits of 2s, 4s, 8s and 16s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialDelay: 2 * time.Second, Multiplier: 2}
}

// Delay returns the wait after the given failed attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for range attempt {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
