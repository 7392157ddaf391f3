package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThresholdFailures(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	b := New(3, 10*time.Second, WithClock(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("expected call %d allowed, got %v", i, err)
		}
		b.MarkFailure()
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed before threshold, got %s", got)
	}

	b.MarkFailure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after threshold, got %s", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}
}

func TestBreakerHalfOpenProbeClosesOnSuccess(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, 10*time.Second, WithClock(func() time.Time { return now }))

	if err := b.Allow(); err != nil {
		t.Fatalf("expected initial call allowed, got %v", err)
	}
	b.MarkFailure()
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen immediately after trip, got %v", err)
	}

	now = now.Add(11 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe allowed after cooldown, got %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("expected half-open during probe, got %s", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected concurrent probe rejected, got %v", err)
	}

	b.MarkSuccess()
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("expected calls allowed after recovery, got %v", err)
	}
}

func TestBreakerHalfOpenProbeReopensOnFailure(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, 10*time.Second, WithClock(func() time.Time { return now }))

	_ = b.Allow()
	b.MarkFailure()

	now = now.Add(11 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe allowed after cooldown, got %v", err)
	}
	b.MarkFailure()

	if got := b.State(); got != StateOpen {
		t.Fatalf("expected reopened after failed probe, got %s", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after failed probe, got %v", err)
	}

	// A fresh cooldown must elapse before the next probe.
	now = now.Add(9 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen before new cooldown elapses, got %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe after new cooldown, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(2, 10*time.Second)

	_ = b.Allow()
	b.MarkFailure()
	_ = b.Allow()
	b.MarkSuccess()
	_ = b.Allow()
	b.MarkFailure()

	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed when failures are not consecutive, got %s", got)
	}
}
