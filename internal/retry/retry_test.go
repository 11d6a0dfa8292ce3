package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type flaky struct{ transient bool }

func (f flaky) Error() string   { return "flaky" }
func (f flaky) Transient() bool { return f.transient }

func newTestScheduler(attempts int) (*Scheduler, *[]time.Duration) {
	var slept []time.Duration
	s := New(attempts, 100*time.Millisecond)
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second},
		{"many failures capped", 40, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(tt.failures, base, max); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.failures, got, tt.want)
			}
		})
	}
}

func TestDo_RetriesTransientWithDoublingDelay(t *testing.T) {
	s, slept := newTestScheduler(3)
	calls := 0
	err := s.Do(context.Background(), func(context.Context) error {
		calls++
		return flaky{transient: true}
	})
	if err == nil {
		t.Fatalf("Do returned nil error, want flaky")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("sleeps = %v, want %v", *slept, want)
	}
}

func TestDo_StopsOnSuccess(t *testing.T) {
	s, _ := newTestScheduler(5)
	calls := 0
	err := s.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return flaky{transient: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	s, slept := newTestScheduler(3)
	calls := 0
	err := s.Do(context.Background(), func(context.Context) error {
		calls++
		return flaky{transient: false}
	})
	if err == nil || calls != 1 || len(*slept) != 0 {
		t.Fatalf("calls = %d sleeps = %v err = %v, want one call and no sleep", calls, *slept, err)
	}
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	s := New(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, func(context.Context) error {
			calls++
			return flaky{transient: true}
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		var f flaky
		if !errors.As(err, &f) {
			t.Fatalf("Do error = %v, want last attempt error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Do did not return after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestIsTransientFollowsWrapChain(t *testing.T) {
	if !IsTransient(fmt.Errorf("fetch: %w", flaky{transient: true})) {
		t.Fatalf("IsTransient(wrapped) = false, want true")
	}
	if IsTransient(fmt.Errorf("fetch: %w", flaky{transient: false})) {
		t.Fatalf("IsTransient(permanent) = true, want false")
	}
	if IsTransient(nil) {
		t.Fatalf("IsTransient(nil) = true, want false")
	}
}
