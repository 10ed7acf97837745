// Package orchestrator implements the Orchestrator facade from spec.md
// §4.9: given (project, description) it loads project configuration, sets
// up isolation, chooses the sequential or parallel path, and finalizes with
// merge + review + PR.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeforge-ai/orchestrator/config"
	"github.com/codeforge-ai/orchestrator/conversation"
	"github.com/codeforge-ai/orchestrator/cost"
	"github.com/codeforge-ai/orchestrator/exec/parallel"
	"github.com/codeforge-ai/orchestrator/exec/sequential"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/merge"
	"github.com/codeforge-ai/orchestrator/planner"
	"github.com/codeforge-ai/orchestrator/task"
	"github.com/codeforge-ai/orchestrator/telemetry"
)

// ErrPreflightFailed wraps any pre-flight validation failure from spec.md
// §4.9 step 2.
var ErrPreflightFailed = errors.New("orchestrator: preflight validation failed")

// Orchestrator is the top-level task runner, usable identically in the
// foreground CLI path and inside a Supervisor-spawned worker process.
type Orchestrator struct {
	Config     config.ConfigSource
	Store      task.Store
	Planner    *planner.Planner
	Invoker    *invoker.Invoker
	Sequential *sequential.Executor
	Parallel   *parallel.Executor
	Git        isolation.GitRuntime
	Containers isolation.ContainerRuntime
	Host       isolation.HostAdapter
	// TestRunner, if set, runs the project's configured test command inside
	// the task's container once execution completes (spec.md §4.9 step 6).
	// A nil TestRunner skips the step entirely.
	TestRunner func(ctx context.Context, repoPath string) (passed bool, output string, err error)
	Now        func() time.Time
	// Telemetry, if unset, falls back to no-op logging/metrics/tracing.
	Telemetry telemetry.RunTelemetry
}

func (o *Orchestrator) telemetry() telemetry.RunTelemetry {
	rt := o.Telemetry
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

// Outcome is the final result of one Run call.
type Outcome struct {
	Task   *task.Task
	Plan   task.Plan
	Totals cost.Totals
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes the full flow described in spec.md §4.9 for a single task.
// repoPath is the working tree the task operates on (already cloned/present
// on disk; cloning itself is outside the orchestration core's scope).
func (o *Orchestrator) Run(ctx context.Context, repoPath, project, description string) (Outcome, error) {
	id, err := task.NewID()
	if err != nil {
		return Outcome{}, fmt.Errorf("orchestrator: %w", err)
	}
	return o.RunID(ctx, id, repoPath, project, description)
}

// RunID behaves like Run but executes under a caller-supplied task id
// instead of minting a fresh one. A Supervisor-spawned worker uses this to
// continue the same Task record StartBackground already created and saved,
// rather than producing a second, orphaned record.
func (o *Orchestrator) RunID(ctx context.Context, id, repoPath, project, description string) (Outcome, error) {
	tel := o.telemetry()
	ctx, span := tel.Trace.Start(ctx, "orchestrator.Run")
	defer span.End()
	started := time.Now()

	proj, err := o.Config.LoadProject(ctx, project)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: load project: %v", ErrPreflightFailed, err)
	}

	existing, loadErr := o.Store.Load(ctx, id)
	reuseExisting := loadErr == nil
	t := &task.Task{
		ID:          id,
		Project:     project,
		Description: description,
		Status:      task.StatusRunning,
		StartedAt:   o.now(),
		Branch:      fmt.Sprintf("task-%s", id),
	}
	if reuseExisting {
		t.PID = existing.PID
		t.LogPath = existing.LogPath
		t.RestartedFrom = existing.RestartedFrom
	}
	tel.Log.Info(ctx, "task starting", "task_id", id, "project", project)
	defer func() {
		tel.Metrics.RecordTimer("orchestrator.run.duration", time.Since(started), "project", project)
		tel.Metrics.IncCounter("orchestrator.run.status."+string(t.Status), 1, "project", project)
	}()

	persist := o.Store.Save
	if reuseExisting {
		persist = func(ctx context.Context, t *task.Task) error {
			return o.Store.Update(ctx, t.ID, func(stored *task.Task) error { *stored = *t; return nil })
		}
	}

	if err := o.preflight(ctx, proj); err != nil {
		t.Status = task.StatusFailed
		t.FailureCause = "preflight"
		t.CompletedAt = o.now()
		_ = persist(ctx, t)
		return Outcome{Task: t}, fmt.Errorf("%w: %v", ErrPreflightFailed, err)
	}

	if err := persist(ctx, t); err != nil {
		return Outcome{}, fmt.Errorf("orchestrator: persist initial state: %w", err)
	}

	var (
		container        isolation.ContainerHandle
		containerCreated bool
		branchCreated    bool
	)
	defer func() {
		o.cleanup(context.Background(), t, proj, repoPath, container, containerCreated, branchCreated)
	}()

	if err := o.Git.CreateBranch(ctx, repoPath, t.Branch, proj.BaseBranch); err != nil {
		return o.fail(ctx, t, "isolation", err)
	}
	branchCreated = true
	if err := o.Git.Checkout(ctx, repoPath, t.Branch); err != nil {
		return o.fail(ctx, t, "isolation", err)
	}

	planRes, err := o.Planner.Plan(ctx, description)
	if err != nil {
		return o.fail(ctx, t, "planning", err)
	}
	plan := planRes.Plan

	log := conversation.New()
	ceiling := proj.Safety.MaxCostPerTaskUSD
	acct := cost.New(ceiling)

	// Per-task deadline (spec.md §4.9 step 3, §5): expiry classifies the
	// task's failure cause as "timeout" regardless of which executor was
	// running when it fired.
	runCtx := ctx
	if proj.Safety.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, proj.Safety.MaxDuration)
		defer cancel()
	}

	var runErr error
	var runSuccess bool
	var runReason string
	if plan.Parallelizable {
		res, err := o.Parallel.Run(runCtx, id, repoPath, proj.BaseBranch, plan, log, acct, proj.Safety.MaxDuration)
		runErr = err
		runSuccess = res.Success
		runReason = res.Reason
	} else {
		iso := invoker.Isolation{}
		if o.Containers != nil {
			limits := isolation.Limits{CPUs: proj.Docker.CPUs, MemoryMiB: proj.Docker.MemoryMiB}
			h, cerr := o.Containers.Create(ctx, proj.Docker.Image, limits, []string{repoPath})
			if cerr != nil {
				return o.fail(ctx, t, "isolation", fmt.Errorf("create container: %w", cerr))
			}
			container = h
			containerCreated = true
			iso.Container = h
		}
		res, err := o.Sequential.Run(runCtx, plan, description, log, acct, iso)
		runErr = err
		runSuccess = res.Success
		runReason = res.Reason
	}
	if runErr != nil {
		return o.fail(ctx, t, classifyFailure(runErr, runCtx), runErr)
	}
	if !runSuccess {
		return o.fail(ctx, t, runReason, fmt.Errorf("orchestrator: run did not complete: %s", runReason))
	}

	if o.TestRunner != nil {
		passed, output, err := o.TestRunner(ctx, repoPath)
		log.Append("system", output, map[string]any{"tests_passed": passed}, true)
		if err != nil {
			return o.fail(ctx, t, "test-run-error", err)
		}
	}

	t.Status = task.StatusCompleted
	t.CompletedAt = o.now()
	t.Progress = task.Progress{Percent: 100}
	if err := o.finalize(ctx, t, proj, repoPath); err != nil {
		// PR creation failures do not fail the task (spec.md §4.9 step 8).
		t.FailureCause = ""
	}
	if err := o.Store.Update(ctx, t.ID, func(stored *task.Task) error { *stored = *t; return nil }); err != nil {
		return Outcome{Task: t, Plan: plan, Totals: acct.Totals()}, fmt.Errorf("orchestrator: persist final state: %w", err)
	}

	return Outcome{Task: t, Plan: plan, Totals: acct.Totals()}, nil
}

// preflight implements spec.md §4.9 step 2: project exists (implicit, we
// already loaded it), budget is non-zero, a base branch is configured, and,
// when a Host is set, the repository grants push access. It does not check
// that the base branch exists in the repository, that the container runtime
// is reachable, or the base branch against the protected-branch list.
func (o *Orchestrator) preflight(ctx context.Context, proj config.ProjectConfig) error {
	if proj.Safety.MaxCostPerTaskUSD <= 0 {
		return fmt.Errorf("project %q has no positive max_cost_per_task budget configured", proj.Name)
	}
	if proj.BaseBranch == "" {
		return fmt.Errorf("project %q has no base branch configured", proj.Name)
	}
	if o.Host != nil {
		ok, err := o.Host.CheckAccess(ctx, proj.Repository)
		if err != nil {
			return fmt.Errorf("checking remote access: %w", err)
		}
		if !ok {
			return fmt.Errorf("no push access to %q", proj.Repository)
		}
	}
	return nil
}

// classifyFailure maps a run error onto the FailureCause taxonomy documented
// on task.Task: a budget overrun and a per-task deadline expiry both have a
// named cause distinct from the generic "execution" fallback.
func classifyFailure(err error, runCtx context.Context) string {
	switch {
	case errors.Is(err, cost.ErrBudgetExceeded):
		return "budget-exceeded"
	case errors.Is(err, context.DeadlineExceeded), runCtx.Err() == context.DeadlineExceeded:
		return "timeout"
	default:
		return "execution"
	}
}

func (o *Orchestrator) fail(ctx context.Context, t *task.Task, cause string, err error) (Outcome, error) {
	t.Status = task.StatusFailed
	t.FailureCause = cause
	t.CompletedAt = o.now()
	if uerr := o.Store.Update(ctx, t.ID, func(stored *task.Task) error { *stored = *t; return nil }); uerr != nil {
		return Outcome{Task: t}, fmt.Errorf("orchestrator: %w (also failed to persist: %v)", err, uerr)
	}
	return Outcome{Task: t}, err
}

// finalize pushes the task's branch and requests PR creation (spec.md §4.9
// step 8); a PR creation failure never fails the task.
func (o *Orchestrator) finalize(ctx context.Context, t *task.Task, proj config.ProjectConfig, repoPath string) error {
	if err := o.Git.Push(ctx, repoPath, t.Branch); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if o.Host == nil {
		return nil
	}
	title := proj.PRTitleTemplate
	if title == "" {
		title = fmt.Sprintf("[codeforge] %s", t.Description)
	}
	pr, err := o.Host.CreatePR(ctx, proj.Repository, t.Branch, proj.BaseBranch, title, proj.PRBodyTemplate)
	if err != nil {
		return fmt.Errorf("create PR: %w", err)
	}
	t.PRURL = pr.URL
	return nil
}

// cleanup always runs regardless of success/failure (spec.md §4.9 step 9):
// it destroys any container the task created, then deletes the task's
// branch if it is both unprotected and empty relative to the base branch
// (spec.md §8 scenario 2: an analysis-only task leaves no diff, so its
// branch is removed rather than left around for review). A branch carrying
// real changes is always left in place, regardless of task outcome.
func (o *Orchestrator) cleanup(ctx context.Context, t *task.Task, proj config.ProjectConfig, repoPath string, container isolation.ContainerHandle, containerCreated, branchCreated bool) {
	tel := o.telemetry()

	if containerCreated && o.Containers != nil {
		if err := o.Containers.Destroy(ctx, container); err != nil {
			tel.Log.Warn(ctx, "destroy container failed", "task_id", t.ID, "error", err.Error())
		}
	}

	if !branchCreated || o.Git == nil || t.Branch == "" {
		return
	}
	if o.Git.IsProtected(t.Branch, proj.ProtectedBranches) {
		return
	}
	diff, err := o.Git.Diff(ctx, repoPath, proj.BaseBranch, t.Branch)
	if err != nil {
		tel.Log.Warn(ctx, "diff task branch failed", "task_id", t.ID, "branch", t.Branch, "error", err.Error())
		return
	}
	if len(diff.FilesChanged) > 0 {
		return
	}
	if err := o.Git.DeleteBranch(ctx, repoPath, t.Branch); err != nil {
		tel.Log.Warn(ctx, "delete empty task branch failed", "task_id", t.ID, "branch", t.Branch, "error", err.Error())
	}
}
