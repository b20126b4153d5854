package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond)
	attempts := 0
	err := policy.Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	policy := NewRetryPolicy(2, time.Millisecond)
	attempts := 0
	sentinel := errors.New("down")
	err := policy.Do(func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (initial + 2 retries), got %d", attempts)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	policy := NewRetryPolicy(5, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := policy.DoWithContext(ctx, func() error {
		attempts++
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", attempts)
	}
}
