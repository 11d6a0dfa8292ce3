package app

import (
	"context"
	"log"
	"time"

	"github.com/five82/newsdesk/internal/retry"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// Refresher reloads every queue. *desk.Desk satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StartPoller launches a background goroutine that refreshes at a fixed
// cadence, backing off while refreshes keep failing. It returns immediately.
func StartPoller(ctx context.Context, r Refresher, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		failures := 0
		for {
			wait := calculateBackoff(failures, interval)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if err := r.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Printf("refresh failed (%d in a row): %v", failures, err)
				continue
			}
			if failures > 0 {
				logger.Printf("refresh recovered after %d failures", failures)
			}
			failures = 0
		}
	}()
}

// calculateBackoff doubles the interval per consecutive failure up to
// maxBackoff.
func calculateBackoff(failures int, interval time.Duration) time.Duration {
	return retry.Backoff(failures, interval, maxBackoff)
}
