// Package invoker implements AgentInvoker: the component that performs
// exactly one agent turn (spec.md §4.4).
package invoker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeforge-ai/orchestrator/agentreg"
	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/model"
)

type (
	// Turn is the record appended for one agent invocation (spec.md §3
	// AgentTurn).
	Turn struct {
		Speaker   string
		Prompt    string
		Response  string
		Decision  Decision
		Duration  time.Duration
		Cost      float64
		StartedAt time.Time
		EndedAt   time.Time
	}

	// Isolation carries the working-context handles AgentInvoker threads
	// through to the ModelAdapter: the container handle and the resolved
	// tool scopes for this agent. When ToolScopes is empty, Run passes the
	// agent's registered Capability.ToolScopes instead.
	Isolation struct {
		Container  model.ContainerHandle
		ToolScopes []string
	}

	// Invoker runs one agent turn against a registry, a shared
	// ConversationLog, a CostAccount, and a set of ModelAdapters keyed by
	// model tier.
	Invoker struct {
		Registry *agentreg.Registry
		Adapters map[string]model.Adapter // tier -> adapter
		// TurnTimeout bounds one agent turn, default 300s per spec.md §4.4.
		TurnTimeout time.Duration
		// RetryBackoff lists the exponential backoff delays for transient
		// errors, default [2s, 4s, 6s] per spec.md §4.4.
		RetryBackoff []time.Duration
		// Sleep is injectable for tests; defaults to time.Sleep.
		Sleep func(time.Duration)
		// Now is injectable for tests; defaults to time.Now.
		Now func() time.Time
	}
)

// ErrUnknownAgent is returned when the requested agent is not registered.
var ErrUnknownAgent = agentreg.ErrUnknownAgent

// ErrNoAdapter is returned when no ModelAdapter is configured for the
// agent's preferred model tier.
var ErrNoAdapter = errors.New("invoker: no model adapter configured for tier")

func (inv *Invoker) turnTimeout() time.Duration {
	if inv.TurnTimeout > 0 {
		return inv.TurnTimeout
	}
	return 300 * time.Second
}

func (inv *Invoker) retryBackoff() []time.Duration {
	if len(inv.RetryBackoff) > 0 {
		return inv.RetryBackoff
	}
	return []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
}

func (inv *Invoker) sleep(d time.Duration) {
	if inv.Sleep != nil {
		inv.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (inv *Invoker) now() time.Time {
	if inv.Now != nil {
		return inv.Now()
	}
	return time.Now()
}

// Run performs one agent turn, per the AgentInvoker contract in spec.md
// §4.4:
//  1. Resolve capability via registry.
//  2. Build prompt (system template + description + rendered history +
//     peer list + hand-off instruction).
//  3. Invoke the model adapter, retrying transient errors up to 3 times
//     with exponential backoff, enforcing the per-turn timeout.
//  4. Parse the hand-off directive.
//  5. Charge the CostAccount; append to the ConversationLog.
func (inv *Invoker) Run(ctx context.Context, agentName, taskDescription string, log *conversation.Log, acct *cost.Account, iso Isolation) (Turn, error) {
	cap, err := inv.Registry.Get(agentName)
	if err != nil {
		return Turn{}, err
	}

	adapter, ok := inv.Adapters[cap.PreferredModelTier]
	if !ok {
		return Turn{}, fmt.Errorf("%w: %s", ErrNoAdapter, cap.PreferredModelTier)
	}

	if !acct.CanAfford(cap.CostEstimate) {
		return Turn{}, cost.ErrBudgetExceeded
	}

	prompt := inv.buildPrompt(cap, taskDescription, log, agentName)
	start := inv.now()

	scopes := iso.ToolScopes
	if len(scopes) == 0 {
		scopes = cap.ToolScopes
	}
	resp, errKind, err := inv.invokeWithRetry(ctx, adapter, model.Request{
		SystemPrompt: cap.SystemPromptTemplate,
		UserPrompt:   prompt,
		ToolScopes:   scopes,
		Container:    iso.Container,
		ModelTier:    cap.PreferredModelTier,
		Deadline:     start.Add(inv.turnTimeout()),
	})
	end := inv.now()
	if err != nil {
		return Turn{}, &TurnError{Agent: agentName, Kind: errKind, Err: err}
	}

	if err := acct.Charge(cost.Turn{
		Agent:     agentName,
		Dollars:   resp.Cost,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		Elapsed:   resp.Duration,
	}); err != nil {
		return Turn{}, err
	}

	knownAgents := make(map[string]bool)
	for _, c := range inv.Registry.ListAll() {
		knownAgents[c.Name] = true
	}
	decision := ParseHandoff(resp.Text, knownAgents)

	turn := Turn{
		Speaker:   agentName,
		Prompt:    prompt,
		Response:  resp.Text,
		Decision:  decision,
		Duration:  end.Sub(start),
		Cost:      resp.Cost,
		StartedAt: start,
		EndedAt:   end,
	}

	log.Append(agentName, resp.Text, map[string]any{
		"decision_terminal": decision.Terminal,
		"decision_next":     decision.Next,
		"cost":              resp.Cost,
		"duration_ms":       turn.Duration.Milliseconds(),
	}, true)

	return turn, nil
}

// invokeWithRetry applies the retry policy from spec.md §4.4: transient
// errors retried up to 3 times with exponential backoff (2s, 4s, 6s);
// permanent errors surfaced immediately. The per-turn timeout is enforced by
// req.Deadline on each attempt.
func (inv *Invoker) invokeWithRetry(ctx context.Context, adapter model.Adapter, req model.Request) (model.Response, model.ErrorKind, error) {
	backoff := inv.retryBackoff()
	var lastErr error
	for attempt := 0; attempt <= len(backoff); attempt++ {
		turnCtx, cancel := context.WithDeadline(ctx, req.Deadline)
		resp, err := adapter.Invoke(turnCtx, req)
		cancel()
		if err == nil {
			return resp, model.ErrorKindNone, nil
		}
		kind := resp.ErrorKind
		if kind == model.ErrorKindNone {
			kind = model.ClassifyErrorKind(err)
		}
		lastErr = err
		if kind != model.ErrorKindTransient || attempt == len(backoff) {
			return model.Response{}, kind, lastErr
		}
		inv.sleep(backoff[attempt])
	}
	return model.Response{}, model.ErrorKindTransient, lastErr
}

func (inv *Invoker) buildPrompt(cap agentreg.Capability, taskDescription string, log *conversation.Log, agentName string) string {
	peers := make([]string, 0)
	for _, c := range inv.Registry.ListAll() {
		if c.Name != agentName {
			peers = append(peers, c.Name)
		}
	}
	history := log.RenderForAgent(context.Background(), agentName)
	return fmt.Sprintf(
		"%s\n\nTASK:\n%s\n\nCONVERSATION HISTORY:\n%s\n\nAVAILABLE PEERS: %v\n\n%s",
		cap.SystemPromptTemplate, taskDescription, history, peers, handoffInstruction,
	)
}

const handoffInstruction = `When you are done with your turn, end your response with exactly:
NEXT: <agent-name> | COMPLETE
REASON: <one-line rationale>`

// TurnError wraps a failed turn with its classified ErrorKind so callers
// (SequentialExecutor, ParallelExecutor) can distinguish permanent failures
// (abort) from exhausted transient retries (also abort, but logged
// differently).
type TurnError struct {
	Agent string
	Kind  model.ErrorKind
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("invoker: agent %s turn failed (%s): %v", e.Agent, e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
