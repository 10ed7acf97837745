package invoker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/agentreg"
	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/model"
)

type fakeAdapter struct {
	responses []model.Response
	errs      []error
	calls     int
}

func (f *fakeAdapter) Invoke(_ context.Context, _ model.Request) (model.Response, error) {
	i := f.calls
	f.calls++
	var resp model.Response
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func newTestRegistry(t *testing.T) *agentreg.Registry {
	t.Helper()
	r := agentreg.New()
	require.NoError(t, r.Register(agentreg.Capability{
		Name:                 "coder",
		CostEstimate:         0.01,
		PreferredModelTier:   "default",
		SystemPromptTemplate: "you are coder",
	}))
	require.NoError(t, r.Register(agentreg.Capability{Name: "reviewer", PreferredModelTier: "default"}))
	return r
}

func TestInvokerRunSuccess(t *testing.T) {
	r := newTestRegistry(t)
	adapter := &fakeAdapter{responses: []model.Response{{Text: "all good\nNEXT: COMPLETE\nREASON: done"}}}
	inv := &invoker.Invoker{Registry: r, Adapters: map[string]model.Adapter{"default": adapter}}

	log := conversation.New()
	acct := cost.New(10)

	turn, err := inv.Run(context.Background(), "coder", "do the thing", log, acct, invoker.Isolation{})
	require.NoError(t, err)
	require.True(t, turn.Decision.Terminal)
	require.Equal(t, 1, log.Len())
}

func TestInvokerRunRetriesTransientThenSucceeds(t *testing.T) {
	r := newTestRegistry(t)
	adapter := &fakeAdapter{
		errs:      []error{model.ErrRateLimited, nil},
		responses: []model.Response{{}, {Text: "NEXT: COMPLETE\nREASON: ok"}},
	}
	inv := &invoker.Invoker{
		Registry:     r,
		Adapters:     map[string]model.Adapter{"default": adapter},
		RetryBackoff: []time.Duration{0, 0, 0},
		Sleep:        func(time.Duration) {},
	}
	log := conversation.New()
	acct := cost.New(10)

	turn, err := inv.Run(context.Background(), "coder", "retry me", log, acct, invoker.Isolation{})
	require.NoError(t, err)
	require.True(t, turn.Decision.Terminal)
	require.Equal(t, 2, adapter.calls)
}

func TestInvokerRunPermanentErrorNotRetried(t *testing.T) {
	r := newTestRegistry(t)
	permanentErr := errors.New("invalid api key")
	adapter := &fakeAdapter{errs: []error{permanentErr}}
	inv := &invoker.Invoker{Registry: r, Adapters: map[string]model.Adapter{"default": adapter}}

	log := conversation.New()
	acct := cost.New(10)

	_, err := inv.Run(context.Background(), "coder", "fail fast", log, acct, invoker.Isolation{})
	require.Error(t, err)
	require.Equal(t, 1, adapter.calls)
}

func TestInvokerRunRefusesOverBudget(t *testing.T) {
	r := newTestRegistry(t)
	adapter := &fakeAdapter{}
	inv := &invoker.Invoker{Registry: r, Adapters: map[string]model.Adapter{"default": adapter}}

	log := conversation.New()
	acct := cost.New(0.001) // below the coder's 0.01 estimate

	_, err := inv.Run(context.Background(), "coder", "too expensive", log, acct, invoker.Isolation{})
	require.ErrorIs(t, err, cost.ErrBudgetExceeded)
	require.Equal(t, 0, adapter.calls)
}

func TestInvokerRunUnknownAgent(t *testing.T) {
	r := newTestRegistry(t)
	inv := &invoker.Invoker{Registry: r, Adapters: map[string]model.Adapter{}}
	log := conversation.New()
	acct := cost.New(10)

	_, err := inv.Run(context.Background(), "ghost", "x", log, acct, invoker.Isolation{})
	require.ErrorIs(t, err, invoker.ErrUnknownAgent)
}
