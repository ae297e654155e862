package provider

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy describes how many times and how quickly a failed call is retried.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	Retryable     func(error) bool
}

// DefaultRetryPolicy retries transient failures twice with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Second,
		Retryable:     IsRetryable,
	}
}

// NoRetry returns a policy that runs the call once.
func NoRetry() RetryPolicy {
	return RetryPolicy{Retryable: func(error) bool { return false }}
}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	for range attempt {
		delay = time.Duration(float64(delay) * factor)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do executes fn, retrying with exponential backoff while Retryable allows it.
// It stops as soon as ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < p.MaxRetries {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
