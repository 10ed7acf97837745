package task

import (
	"context"
	"errors"
)

// ErrNotFound indicates no task record exists for the given id. Callers use
// this to distinguish missing tasks from storage failures, mirroring
// run.ErrNotFound in the agent runtime this engine is descended from.
var ErrNotFound = errors.New("task not found")

// Store is the durable TaskStateStore described in spec.md §4.10. A Store
// implementation owns the on-disk (or otherwise durable) representation of
// every Task; the default implementation is the filesystem-backed Store in
// this package (see NewFSStore), one subdirectory per task id.
type Store interface {
	// Save persists a newly created task. Fails if a task with the same id
	// already exists.
	Save(ctx context.Context, t *Task) error

	// Load retrieves a task by id. Returns ErrNotFound if absent.
	Load(ctx context.Context, id string) (*Task, error)

	// Update loads the task, applies fn, and persists the result under the
	// same per-task lock, so read-modify-write is atomic with respect to
	// other callers in this or other processes.
	Update(ctx context.Context, id string, fn func(t *Task) error) error

	// List returns every known task, most-recently-started first.
	List(ctx context.Context) ([]*Task, error)

	// ListByProject returns every known task for project, most-recently-started
	// first.
	ListByProject(ctx context.Context, project string) ([]*Task, error)

	// Sync probes the OS for every running task's pid and transitions dead
	// ones to StatusInterrupted, per spec.md §4.10. Apart from
	// Supervisor.Cancel, which marks a task it has signalled as cancelled,
	// it is the only code path that moves a task out of StatusRunning from
	// outside the owning worker process. Sync is idempotent: running it twice in a row yields
	// the same state on the second call.
	Sync(ctx context.Context) ([]*Task, error)
}
