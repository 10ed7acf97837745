// Package sequential implements the SequentialExecutor from spec.md §4.6:
// a dynamic, hand-off-driven loop over a fixed starting agent, bounded by a
// visited-set cycle guard and a hard iteration ceiling.
package sequential

import (
	"context"
	"fmt"

	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/task"
)

// MaxIterations bounds the hand-off loop per spec.md §4.6 step 2.
const MaxIterations = 10

// Result is the outcome of one SequentialExecutor run.
type Result struct {
	Success bool
	Reason  string
	History []invoker.Turn
}

// Executor drives the dynamic agent hand-off loop described in spec.md §4.6.
type Executor struct {
	Invoker *invoker.Invoker
}

// Run executes plan.Agents[0] and follows NEXT hand-offs until a terminal
// decision, a cycle, or the iteration ceiling.
func (e *Executor) Run(ctx context.Context, plan task.Plan, taskDescription string, log *conversation.Log, acct *cost.Account, iso invoker.Isolation) (Result, error) {
	if len(plan.Agents) == 0 {
		return Result{}, fmt.Errorf("sequential: plan has no agents")
	}
	current := plan.Agents[0]
	visited := make(map[string]bool, len(plan.Agents))
	history := make([]invoker.Turn, 0, MaxIterations)

	for iterations := 0; current != "" && iterations < MaxIterations; iterations++ {
		if visited[current] {
			return Result{Success: false, Reason: "cycle", History: history}, nil
		}
		visited[current] = true

		turn, err := e.Invoker.Run(ctx, current, taskDescription, log, acct, iso)
		if err != nil {
			return Result{Success: false, Reason: fmt.Sprintf("agent %s failed: %v", current, err), History: history}, err
		}
		history = append(history, turn)

		if turn.Decision.Terminal {
			return Result{Success: true, Reason: "complete", History: history}, nil
		}
		current = turn.Decision.Next
	}
	return Result{Success: false, Reason: "max iterations reached", History: history}, nil
}
