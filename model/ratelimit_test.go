package model

import (
	"context"
	"errors"
	"testing"
)

type fakeAdapter struct {
	err   error
	calls int
}

func (f *fakeAdapter) Invoke(context.Context, Request) (Response, error) {
	f.calls++
	return Response{}, f.err
}

func TestAdaptiveRateLimiterBackoffOnRateLimited(t *testing.T) {
	adapter := &fakeAdapter{err: ErrRateLimited}
	limiter := NewAdaptiveRateLimiter(adapter, 60000, 60000)
	initialTPM := limiter.currentTPM

	_, err := limiter.Invoke(context.Background(), Request{UserPrompt: "hello"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if limiter.currentTPM >= initialTPM {
		t.Fatalf("expected TPM to decrease, got %f (initial %f)", limiter.currentTPM, initialTPM)
	}
}

func TestAdaptiveRateLimiterProbeOnSuccess(t *testing.T) {
	adapter := &fakeAdapter{}
	limiter := NewAdaptiveRateLimiter(adapter, 60000, 120000)
	limiter.mu.Lock()
	initialTPM := limiter.currentTPM
	limiter.recoveryRate = 1000
	limiter.mu.Unlock()

	_, err := limiter.Invoke(context.Background(), Request{UserPrompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if limiter.currentTPM <= initialTPM {
		t.Fatalf("expected TPM to increase, got %f (initial %f)", limiter.currentTPM, initialTPM)
	}
}

func TestAdaptiveRateLimiterClampsToMinAndMax(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(&fakeAdapter{}, 10, 0)
	if limiter.maxTPM != 10 {
		t.Fatalf("expected maxTPM clamped to initialTPM (10), got %f", limiter.maxTPM)
	}
	if limiter.minTPM < 1 {
		t.Fatalf("expected minTPM floor of 1, got %f", limiter.minTPM)
	}
}

func TestAdaptiveRateLimiterDelegatesCall(t *testing.T) {
	adapter := &fakeAdapter{}
	limiter := NewAdaptiveRateLimiter(adapter, 60000, 60000)

	if _, err := limiter.Invoke(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected underlying adapter to be called once, got %d", adapter.calls)
	}
}
