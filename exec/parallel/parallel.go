// Package parallel implements ParallelExecutor from spec.md §4.7: per-part
// branch+container+agent fan-out with a cooperative cost ceiling, a join
// barrier, and hand-off to BranchMerger plus a finalizing reviewer.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/merge"
	"github.com/codeforge-ai/orchestrator/task"
	"github.com/codeforge-ai/orchestrator/telemetry"
)

// PartResult is the outcome of running one Part's agent to completion (or
// failure/cancellation).
type PartResult struct {
	Part      task.Part
	Index     int
	Branch    string
	Turn      invoker.Turn
	Err       error
	Cancelled bool

	// log and acct carry the part's independent ConversationLog-clone and
	// CostAccount-slice out of runPart so Run can reconcile them onto the
	// parent in part-index order after the join barrier, rather than in
	// goroutine completion order.
	log  *conversation.Log
	acct *cost.Account
}

// Result is the outcome of a full ParallelExecutor run.
type Result struct {
	Success       bool
	Reason        string
	PartResults   []PartResult
	Merges        []merge.PartMerge
	ConflictError *merge.ConflictError
}

// Executor fans a Plan's parts out across isolated branches/containers,
// joins them, and merges the results.
type Executor struct {
	Invoker *invoker.Invoker
	Git     isolation.GitRuntime
	Merger  *merge.Merger
	Runtime isolation.ContainerRuntime
	Image   string
	Limits  isolation.Limits
	// Telemetry, if unset, falls back to no-op logging/metrics/tracing.
	Telemetry telemetry.RunTelemetry
}

func (e *Executor) telemetry() telemetry.RunTelemetry {
	rt := e.Telemetry
	if rt.Log == nil {
		rt.Log = telemetry.NewNoopLogger()
	}
	if rt.Metrics == nil {
		rt.Metrics = telemetry.NewNoopMetrics()
	}
	if rt.Trace == nil {
		rt.Trace = telemetry.NewNoopTracer()
	}
	return rt
}

// Run executes plan.Parts concurrently against repoPath, each on its own
// child branch off the coordination branch "task-<taskID>-main", then merges
// the results via BranchMerger and runs a finalizing reviewer turn (spec.md
// §4.7).
//
// maxDuration is the project's safety.max_duration global deadline (step 4);
// when it elapses, remaining in-flight parts observe ctx cancellation and
// stop before their next suspension point.
func (e *Executor) Run(ctx context.Context, taskID, repoPath, baseBranch string, plan task.Plan, parentLog *conversation.Log, parentAcct *cost.Account, maxDuration time.Duration) (result Result, runErr error) {
	if len(plan.Parts) < 2 {
		return Result{}, fmt.Errorf("parallel: plan has %d parts, need at least 2", len(plan.Parts))
	}

	tel := e.telemetry()
	ctx, span := tel.Trace.Start(ctx, "parallel.Run")
	started := time.Now()
	tel.Log.Info(ctx, "parallel run starting", "task_id", taskID, "parts", len(plan.Parts))
	defer func() {
		tel.Metrics.RecordTimer("parallel.run.duration", time.Since(started), "task_id", taskID)
		if runErr != nil || !result.Success {
			tel.Metrics.IncCounter("parallel.run.failed", 1, "task_id", taskID)
			span.RecordError(runErr)
			tel.Log.Warn(ctx, "parallel run did not complete", "task_id", taskID, "reason", result.Reason)
		} else {
			tel.Metrics.IncCounter("parallel.run.succeeded", 1, "task_id", taskID)
		}
		span.End()
	}()

	coordBranch := fmt.Sprintf("task-%s-main", taskID)
	if err := e.Git.CreateBranch(ctx, repoPath, coordBranch, baseBranch); err != nil {
		return Result{}, fmt.Errorf("parallel: create coordination branch: %w", err)
	}

	runCtx := ctx
	if maxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, maxDuration)
		defer cancel()
	}

	results := make([]PartResult, len(plan.Parts))
	var wg sync.WaitGroup
	for i, part := range plan.Parts {
		wg.Add(1)
		go func(i int, part task.Part) {
			defer wg.Done()
			results[i] = e.runPart(runCtx, taskID, repoPath, coordBranch, i, part, parentLog, parentAcct, tel)
		}(i, part)
	}
	wg.Wait()

	// Reconcile in part-index order, not goroutine completion order, so the
	// joined log contains each part's turns contiguously by index (spec.md §5).
	for i := range results {
		if results[i].log != nil {
			parentLog.AppendClone(results[i].log)
		}
		if results[i].acct != nil {
			parentAcct.Merge(results[i].acct)
		}
	}

	for i := range results {
		if results[i].Err != nil {
			return Result{
				Success:     false,
				Reason:      fmt.Sprintf("part %d failed: %v", results[i].Index, results[i].Err),
				PartResults: results,
			}, nil
		}
	}

	branches := make([]string, len(results))
	for i, r := range results {
		branches[i] = r.Branch
	}
	if err := e.Git.Checkout(ctx, repoPath, coordBranch); err != nil {
		return Result{}, fmt.Errorf("parallel: checkout coordination branch: %w", err)
	}
	merges, err := e.Merger.Merge(ctx, repoPath, branches)
	if err != nil {
		var conflictErr *merge.ConflictError
		if errors.As(err, &conflictErr) {
			return Result{
				Success:       false,
				Reason:        "merge-conflict",
				PartResults:   results,
				Merges:        merges,
				ConflictError: conflictErr,
			}, nil
		}
		return Result{}, fmt.Errorf("parallel: merge: %w", err)
	}

	if _, err := e.Invoker.Run(ctx, "reviewer", "Review the merged result of all parallel parts.", parentLog, parentAcct, invoker.Isolation{}); err != nil {
		return Result{Success: false, Reason: fmt.Sprintf("finalizing review failed: %v", err), PartResults: results, Merges: merges}, nil
	}

	return Result{Success: true, Reason: "complete", PartResults: results, Merges: merges}, nil
}

// runPart creates the part's branch and container, seeds an independent
// ConversationLog-clone and CostAccount-slice (spec.md §4.7 step 3), and runs
// the part's single agent turn. The log-clone and cost-slice are returned on
// PartResult rather than reconciled here, since goroutines finish in
// completion order and reconciliation must happen in part-index order after
// the join barrier in Run (spec.md §5).
func (e *Executor) runPart(ctx context.Context, taskID, repoPath, coordBranch string, index int, part task.Part, parentLog *conversation.Log, parentAcct *cost.Account, tel telemetry.RunTelemetry) PartResult {
	branch := fmt.Sprintf("task-%s-part%d", taskID, index+1)
	res := PartResult{Part: part, Index: index, Branch: branch}
	ctx, span := tel.Trace.Start(ctx, "parallel.runPart")
	defer span.End()
	defer func() {
		if res.Err != nil {
			tel.Log.Warn(ctx, "part failed", "task_id", taskID, "part_index", index, "error", res.Err.Error())
		}
	}()

	select {
	case <-ctx.Done():
		res.Cancelled = true
		res.Err = ctx.Err()
		return res
	default:
	}

	if err := e.Git.CreateBranch(ctx, repoPath, branch, coordBranch); err != nil {
		res.Err = fmt.Errorf("parallel: create part branch %s: %w", branch, err)
		return res
	}

	var container isolation.ContainerHandle
	if e.Runtime != nil {
		h, err := e.Runtime.Create(ctx, e.Image, e.Limits, part.AssignedFiles)
		if err != nil {
			res.Err = fmt.Errorf("parallel: create container for %s: %w", branch, err)
			return res
		}
		container = h
		defer e.Runtime.Destroy(context.Background(), h)
	}

	partLog := conversation.New()
	partLog.AppendClone(parentLog)
	partAcct := parentAcct.Slice()

	if !partAcct.CanAffordAgainst(parentAcct, 0) {
		res.Err = cost.ErrBudgetExceeded
		return res
	}

	turn, err := e.Invoker.Run(ctx, part.AgentName, part.Description, partLog, partAcct, invoker.Isolation{
		Container: container,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Turn = turn
	res.log = partLog
	res.acct = partAcct
	return res
}
