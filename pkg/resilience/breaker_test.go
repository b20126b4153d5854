package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(2, time.Hour)
	if !b.Allow() {
		t.Fatalf("new breaker must allow")
	}
	b.OnFailure()
	if !b.Allow() {
		t.Fatalf("breaker opened below threshold")
	}
	b.OnFailure()
	if b.Allow() {
		t.Fatalf("breaker must open at threshold")
	}
}

func TestBreakerSuccessCloses(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	b.OnFailure()
	if b.Allow() {
		t.Fatalf("breaker should be open")
	}
	b.OnSuccess()
	if !b.Allow() {
		t.Fatalf("success must close the breaker")
	}
	// Failure count restarts from zero after a success.
	b.OnSuccess()
	if !b.Allow() {
		t.Fatalf("breaker reopened without failures")
	}
}

func TestBreakerCooldownExpires(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.OnFailure()
	if b.Allow() {
		t.Fatalf("breaker should be open during cooldown")
	}
	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("breaker must allow again after cooldown")
	}
}
