// Package retry runs an operation with bounded retries and exponential backoff.
// Only errors that report themselves as transient are retried.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 8 * time.Second
)

// transient is implemented by errors that may succeed when retried.
type transient interface {
	Transient() bool
}

// IsTransient reports whether any error in err's chain declares itself
// transient.
func IsTransient(err error) bool {
	var t transient
	return errors.As(err, &t) && t.Transient()
}

// Scheduler retries transient failures with a doubling delay.
type Scheduler struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Retryable overrides IsTransient when set.
	Retryable func(error) bool
	// OnRetry is called before each sleep with the failed attempt number.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a scheduler; non-positive values fall back to the defaults.
func New(maxAttempts int, initialDelay time.Duration) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Do runs op until it succeeds, fails with a non-transient error, the attempt
// budget is spent or ctx is done. The last error is returned unchanged.
func (s *Scheduler) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := s.maxAttempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !s.retryable(err) {
			return err
		}
		delay := Backoff(attempt-1, s.initialDelay(), s.MaxDelay)
		if s.OnRetry != nil {
			s.OnRetry(attempt, delay, err)
		}
		if sleepErr := s.doSleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
	return err
}

// Backoff returns base doubled once per failure, capped at max. A non-positive
// max disables the cap.
func Backoff(failures int, base, max time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	return delay
}

func (s *Scheduler) maxAttempts() int {
	if s == nil || s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

func (s *Scheduler) initialDelay() time.Duration {
	if s.InitialDelay <= 0 {
		return DefaultInitialDelay
	}
	return s.InitialDelay
}

func (s *Scheduler) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if s.Retryable != nil {
		return s.Retryable(err)
	}
	return IsTransient(err)
}

func (s *Scheduler) doSleep(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
