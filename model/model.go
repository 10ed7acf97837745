// Package model defines the ModelAdapter external collaborator interface
// from spec.md §6: invoke(systemPrompt, userPrompt, toolScopes,
// containerHandle, deadline) -> {text, cost, duration, errorKind?}. The core
// never talks to a model provider directly; AgentInvoker only ever calls
// through this interface.
package model

import (
	"context"
	"errors"
	"net"
	"time"
)

type (
	// ContainerHandle is the opaque isolation handle an Adapter uses to
	// execute model-driven tool calls against the task's working tree. The
	// core treats it as opaque; concrete Adapter implementations type-assert
	// it to whatever their tool-execution transport requires.
	ContainerHandle any

	// Request is one agent turn's invocation parameters.
	Request struct {
		SystemPrompt string
		UserPrompt   string
		ToolScopes   []string
		Container    ContainerHandle
		Deadline     time.Time
		// ModelTier selects a provider-specific model class ("default",
		// "high-reasoning", "small") when the adapter supports more than one
		// tier, mirroring AgentCapability.PreferredModelTier.
		ModelTier string
	}

	// Response is one agent turn's result.
	Response struct {
		Text      string
		Cost      float64
		Duration  time.Duration
		TokensIn  int
		TokensOut int
		// ErrorKind classifies a failed invocation per spec.md §4.4/§7. Zero
		// value means success.
		ErrorKind ErrorKind
	}

	// ErrorKind categorizes a failed Adapter.Invoke call so AgentInvoker can
	// apply the retry policy from spec.md §4.4: transient errors are
	// retried, permanent errors are surfaced immediately.
	ErrorKind string

	// Adapter is the ModelAdapter external collaborator.
	Adapter interface {
		Invoke(ctx context.Context, req Request) (Response, error)
	}
)

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
)

// ErrRateLimited is a sentinel wrapped into provider-specific errors so
// callers can classify rate-limit responses as transient without depending
// on any one SDK's error types, mirroring the teacher's model.ErrRateLimited.
var ErrRateLimited = errors.New("model: rate limited")

// ClassifyErrorKind inspects err and decides whether it is transient
// (network, rate-limit, timeout) or permanent (auth, not-found, invalid
// response), per spec.md §4.4/§7. Adapters that can produce a clearer
// classification should still prefer setting Response.ErrorKind explicitly.
func ClassifyErrorKind(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrRateLimited) || errors.As(err, &netErr) {
		return ErrorKindTransient
	}
	return ErrorKindPermanent
}
