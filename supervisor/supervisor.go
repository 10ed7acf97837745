//go:build unix

// Package supervisor implements the Supervisor background-task process
// manager from spec.md §4.11: start_background, list_running, tail_logs,
// cancel, and restart, each spawning or signalling detached worker
// processes rather than executing agents itself.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/stream"
	"github.com/codeforge-ai/orchestrator/task"
	"github.com/codeforge-ai/orchestrator/telemetry"
)

// ErrCapacityExceeded is returned by StartBackground when the number of
// already-running tasks is at or above MaxParallelTasks.
var ErrCapacityExceeded = errors.New("supervisor: capacity exceeded")

// Supervisor manages detached worker processes, one per background task.
type Supervisor struct {
	Store            task.Store
	LogsDir          string
	MaxParallelTasks int
	// WorkerBinary is the path to this binary (or a dedicated worker
	// subcommand) invoked to actually run one task; it is called with
	// arguments (id, project, description).
	WorkerBinary string
	// WorkerArgs lets callers prepend fixed arguments (e.g. a "worker"
	// cobra subcommand name) before (id, project, description).
	WorkerArgs []string
	// Runtime, if set, lets Sweep attempt best-effort destruction of
	// containers recorded against tasks that are no longer running.
	Runtime isolation.ContainerRuntime
	// Stream, if set, relays each spawned worker's log lines onto a
	// cross-process Pulse stream as they are written, so `logs -f` can
	// tail a task from a host other than the one running its worker.
	Stream *stream.PulseLog
	// GracefulWait/ForceWait are the cancel() signal timeouts from spec.md
	// §4.11 cancel step 2-3; defaults are 5s and 1s.
	GracefulWait time.Duration
	ForceWait    time.Duration
	Now          func() time.Time
	// Telemetry, if unset, falls back to no-op logging/metrics/tracing.
	Telemetry telemetry.RunTelemetry
}

func (s *Supervisor) telemetry() telemetry.RunTelemetry {
	rt := s.Telemetry
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

func (s *Supervisor) maxParallelTasks() int {
	if s.MaxParallelTasks > 0 {
		return s.MaxParallelTasks
	}
	return 10
}

func (s *Supervisor) gracefulWait() time.Duration {
	if s.GracefulWait > 0 {
		return s.GracefulWait
	}
	return 5 * time.Second
}

func (s *Supervisor) forceWait() time.Duration {
	if s.ForceWait > 0 {
		return s.ForceWait
	}
	return 1 * time.Second
}

func (s *Supervisor) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StartBackground spawns a detached worker process for (project,
// description), per spec.md §4.11 start_background steps 1-6.
func (s *Supervisor) StartBackground(ctx context.Context, project, description string) (*task.Task, error) {
	if _, err := s.Store.Sync(ctx); err != nil {
		return nil, fmt.Errorf("supervisor: sync: %w", err)
	}
	if err := s.Sweep(ctx); err != nil {
		return nil, err
	}
	all, err := s.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("supervisor: list: %w", err)
	}
	runningCount := 0
	for _, t := range all {
		if t.Status == task.StatusRunning {
			runningCount++
		}
	}
	tel := s.telemetry()
	if runningCount >= s.maxParallelTasks() {
		tel.Metrics.IncCounter("supervisor.start.rejected_capacity", 1, "project", project)
		return nil, fmt.Errorf("%w: %d running, max %d", ErrCapacityExceeded, runningCount, s.maxParallelTasks())
	}

	id, err := task.NewID()
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	logPath := filepath.Join(s.LogsDir, id+".log")

	pid, err := s.spawn(id, project, description, logPath)
	if err != nil {
		tel.Log.Error(ctx, "failed to spawn worker", "task_id", id, "project", project, "error", err.Error())
		return nil, fmt.Errorf("supervisor: spawn worker: %w", err)
	}
	tel.Log.Info(ctx, "worker spawned", "task_id", id, "project", project, "pid", pid)
	tel.Metrics.RecordGauge("supervisor.running_tasks", float64(runningCount+1), "project", project)

	t := &task.Task{
		ID:          id,
		Project:     project,
		Description: description,
		Status:      task.StatusRunning,
		PID:         pid,
		StartedAt:   s.now(),
		LogPath:     logPath,
	}
	if err := s.Store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("supervisor: persist initial state: %w", err)
	}
	return t, nil
}

func (s *Supervisor) spawn(id, project, description, logPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	args := append(append([]string{}, s.WorkerArgs...), id, project, description)
	cmd := exec.Command(s.WorkerBinary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	if s.Stream != nil {
		go s.relayLog(id, logPath, cmd.Process.Pid)
	}
	go cmd.Wait() // reap without blocking the caller; the worker owns its own lifecycle
	return cmd.Process.Pid, nil
}

// relayLog tails a just-spawned worker's log file and republishes each new
// line to s.Stream, so `logs -f` can tail a task from a different host than
// the one running its worker instead of being limited to a local file. It
// stops once the worker process is no longer alive.
func (s *Supervisor) relayLog(id, logPath string, pid int) {
	f, err := os.Open(logPath)
	if err != nil {
		return
	}
	defer f.Close()

	ctx := context.Background()
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			_ = s.Stream.Publish(ctx, id, line)
		}
		if err != nil {
			if syscall.Kill(pid, 0) != nil {
				return
			}
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// ListRunning returns every task currently recorded as running, after first
// reconciling dead workers via Store.Sync.
func (s *Supervisor) ListRunning(ctx context.Context) ([]*task.Task, error) {
	if _, err := s.Store.Sync(ctx); err != nil {
		return nil, fmt.Errorf("supervisor: sync: %w", err)
	}
	if err := s.Sweep(ctx); err != nil {
		return nil, err
	}
	all, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	var running []*task.Task
	for _, t := range all {
		if t.Status == task.StatusRunning {
			running = append(running, t)
		}
	}
	return running, nil
}

// TailLogs returns the contents of id's log file as of the call. Following
// the log is left to the caller (spec.md §4.11's tail_logs is a streaming
// operation at the CLI layer; this method gives the one-shot read building
// block).
func (s *Supervisor) TailLogs(ctx context.Context, id string) ([]byte, error) {
	t, err := s.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(t.LogPath)
}

// Cancel implements spec.md §4.11 cancel: graceful signal, wait up to
// GracefulWait, force signal, wait up to ForceWait, then transition status.
func (s *Supervisor) Cancel(ctx context.Context, id string) error {
	t, err := s.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusRunning {
		return nil // no-op: task is not running
	}

	tel := s.telemetry()
	tel.Log.Info(ctx, "cancelling task", "task_id", id, "pid", t.PID)

	_ = syscall.Kill(-t.PID, syscall.SIGTERM)
	if waitDead(t.PID, s.gracefulWait()) {
		return s.markCancelled(ctx, id)
	}

	tel.Log.Warn(ctx, "task did not stop gracefully, force killing", "task_id", id, "pid", t.PID)
	_ = syscall.Kill(-t.PID, syscall.SIGKILL)
	waitDead(t.PID, s.forceWait())
	return s.markCancelled(ctx, id)
}

func (s *Supervisor) markCancelled(ctx context.Context, id string) error {
	return s.Store.Update(ctx, id, func(t *task.Task) error {
		t.Status = task.StatusCancelled
		t.CompletedAt = s.now()
		return nil
	})
}

func waitDead(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if syscall.Kill(pid, 0) != nil {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return syscall.Kill(pid, 0) != nil
}

// Restart loads id, generates a fresh task copying (project, description),
// and either runs it in the foreground (returning immediately with the new
// id for the caller to run) or starts it in the background, per spec.md
// §4.11 restart.
func (s *Supervisor) Restart(ctx context.Context, id string, background bool) (*task.Task, error) {
	old, err := s.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if background {
		t, err := s.StartBackground(ctx, old.Project, old.Description)
		if err != nil {
			return nil, err
		}
		t.RestartedFrom = old.ID
		if err := s.Store.Update(ctx, t.ID, func(stored *task.Task) error {
			stored.RestartedFrom = old.ID
			return nil
		}); err != nil {
			return nil, err
		}
		return t, nil
	}

	newID, err := task.NewID()
	if err != nil {
		return nil, err
	}
	fresh := &task.Task{
		ID:            newID,
		Project:       old.Project,
		Description:   old.Description,
		Status:        task.StatusRunning,
		StartedAt:     s.now(),
		RestartedFrom: old.ID,
	}
	if err := s.Store.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Sweep implements the orphan-resource cleanup referenced by spec.md §4.11
// cancel step 5 and §5: it is run at the start of every list/start_background
// call (ListRunning and StartBackground already call Store.Sync; Sweep adds
// the container side) and best-effort destroys containers still recorded
// against tasks that are no longer running. A container whose owning
// worker was force-killed before its own cleanup handlers ran is exactly
// the case this guards against; testcontainers-go's own reaper (ryuk) is
// the backstop for anything this reconciliation pass misses.
func (s *Supervisor) Sweep(ctx context.Context) error {
	if s.Runtime == nil {
		return nil
	}
	all, err := s.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: sweep: list: %w", err)
	}
	for _, t := range all {
		if t.Status == task.StatusRunning {
			continue
		}
		for _, sub := range t.Subtasks {
			if sub.ContainerID == "" {
				continue
			}
			_ = s.Runtime.Destroy(ctx, isolation.ContainerHandle{ID: sub.ContainerID})
		}
	}
	return nil
}
