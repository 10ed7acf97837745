package model

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// AdaptiveRateLimiter applies an AIMD-style adaptive token bucket in front of
// an Adapter. It estimates the token cost of a request, blocks the caller
// until capacity is available, and halves its effective tokens-per-minute
// budget whenever the wrapped Adapter reports ErrRateLimited, recovering
// gradually on successful calls.
//
// One limiter should be shared by every call to a given provider within a
// process; cmd/codeforge's newAdapters wraps each provider's Adapter in its
// own limiter and shares that limiter across the provider's model tiers.
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64

	next Adapter
}

// NewAdaptiveRateLimiter wraps next with an adaptive tokens-per-minute
// budget. When maxTPM is zero or below initialTPM, it is clamped to
// initialTPM; initialTPM defaults to a conservative 60000 when non-positive.
func NewAdaptiveRateLimiter(next Adapter, initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}

	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
		next:         next,
	}
}

// Invoke waits for capacity proportional to req's estimated token cost, then
// delegates to the wrapped Adapter and adjusts the budget based on the
// outcome.
func (l *AdaptiveRateLimiter) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.WaitN(ctx, estimateTokens(req)); err != nil {
		return Response{}, err
	}
	resp, err := l.next.Invoke(ctx, req)
	l.observe(err)
	return resp, err
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()

	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// estimateTokens is a cheap heuristic for a request's token cost: roughly one
// token per three characters of prompt text, plus a fixed buffer for
// provider framing overhead.
func estimateTokens(req Request) int {
	charCount := len(req.SystemPrompt) + len(req.UserPrompt)
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
