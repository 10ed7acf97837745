package sequential_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/agentreg"
	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/exec/sequential"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/model"
	"github.com/codeforge-ai/orchestrator/task"
)

func newAdapterFor(responses []string) *fixedAdapter {
	return &fixedAdapter{responses: responses}
}

type fixedAdapter struct {
	responses []string
	calls     int
}

func (f *fixedAdapter) Invoke(_ context.Context, _ model.Request) (model.Response, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return model.Response{Text: f.responses[i]}, nil
}

func newRegistryWithTiers(t *testing.T, names ...string) *agentreg.Registry {
	t.Helper()
	r := agentreg.New()
	for _, n := range names {
		require.NoError(t, r.Register(agentreg.Capability{
			Name:               n,
			PreferredModelTier: n,
		}))
	}
	return r
}

func TestSequentialExecutorFollowsHandoffToCompletion(t *testing.T) {
	reg := newRegistryWithTiers(t, "architect", "coder", "reviewer")
	inv := &invoker.Invoker{
		Registry: reg,
		Adapters: map[string]model.Adapter{
			"architect": newAdapterFor([]string{"NEXT: coder\nREASON: design done"}),
			"coder":     newAdapterFor([]string{"NEXT: reviewer\nREASON: implemented"}),
			"reviewer":  newAdapterFor([]string{"NEXT: COMPLETE\nREASON: looks good"}),
		},
	}
	exe := &sequential.Executor{Invoker: inv}

	plan := task.Plan{Agents: []string{"architect", "coder", "reviewer"}}
	log := conversation.New()
	acct := cost.New(10)

	res, err := exe.Run(context.Background(), plan, "build it", log, acct, invoker.Isolation{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "complete", res.Reason)
	require.Len(t, res.History, 3)
}

func TestSequentialExecutorDetectsCycle(t *testing.T) {
	reg := newRegistryWithTiers(t, "coder", "reviewer")
	inv := &invoker.Invoker{
		Registry: reg,
		Adapters: map[string]model.Adapter{
			"coder":    newAdapterFor([]string{"NEXT: reviewer\nREASON: review please"}),
			"reviewer": newAdapterFor([]string{"NEXT: coder\nREASON: needs changes"}),
		},
	}
	exe := &sequential.Executor{Invoker: inv}

	plan := task.Plan{Agents: []string{"coder", "reviewer"}}
	log := conversation.New()
	acct := cost.New(10)

	res, err := exe.Run(context.Background(), plan, "loop forever", log, acct, invoker.Isolation{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "cycle", res.Reason)
}

func TestSequentialExecutorStopsAtMaxIterations(t *testing.T) {
	reg := agentreg.New()
	// Each of sequential.MaxIterations+1 distinct agents hands off to the
	// next; no name repeats, so the cycle guard cannot trip and only the
	// iteration ceiling can stop the loop.
	adapters := map[string]model.Adapter{}
	for i := 0; i < sequential.MaxIterations+1; i++ {
		name := string(rune('a' + i))
		next := string(rune('a' + i + 1))
		require.NoError(t, reg.Register(agentreg.Capability{Name: name, PreferredModelTier: name}))
		adapters[name] = newAdapterFor([]string{"NEXT: " + next + "\nREASON: keep going"})
	}
	inv := &invoker.Invoker{Registry: reg, Adapters: adapters}
	exe := &sequential.Executor{Invoker: inv}

	plan := task.Plan{Agents: []string{"a"}}
	log := conversation.New()
	acct := cost.New(100)

	res, err := exe.Run(context.Background(), plan, "never stop", log, acct, invoker.Isolation{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "max iterations reached", res.Reason)
	require.Len(t, res.History, sequential.MaxIterations)
}

func TestSequentialExecutorEmptyPlanFails(t *testing.T) {
	exe := &sequential.Executor{Invoker: &invoker.Invoker{Registry: agentreg.New()}}
	_, err := exe.Run(context.Background(), task.Plan{}, "x", conversation.New(), cost.New(1), invoker.Isolation{})
	require.Error(t, err)
}
