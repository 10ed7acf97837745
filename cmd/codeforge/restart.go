package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/task"
)

var restartCmd = &cobra.Command{
	Use:   "restart <id>",
	Short: "Restart a failed, cancelled, or interrupted task",
	Long: `Restart a task under a fresh id, copying its project and description.
Runs in the foreground by default; pass --background to hand it to a
detached worker instead.

Example:
  codeforge restart a1b2c3d4e5f6
  codeforge restart a1b2c3d4e5f6 -b`,
	Args: cobra.ExactArgs(1),
	RunE: runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)
	restartCmd.Flags().BoolVarP(&flagBackground, "background", "b", false, "hand the restarted task off to a background worker")
}

func runRestart(cmd *cobra.Command, args []string) error {
	id := args[0]

	sup, err := newSupervisor()
	if err != nil {
		return err
	}

	if flagBackground {
		t, err := sup.Restart(cmd.Context(), id, true)
		if err != nil {
			return err
		}
		fmt.Printf("restarted task %s as %s (pid %d)\n", id, t.ID, t.PID)
		return nil
	}

	old, err := newTaskStoreLoad(cmd, id)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	cfg := newConfigSource()
	proj, err := cfg.LoadProject(cmd.Context(), old.Project)
	if err != nil {
		return err
	}

	newID, err := task.NewID()
	if err != nil {
		return err
	}
	outcome, runErr := orch.RunID(cmd.Context(), newID, proj.Repository, old.Project, old.Description)
	if outcome.Task != nil {
		outcome.Task.RestartedFrom = old.ID
		store, serr := newTaskStore()
		if serr == nil {
			_ = store.Update(cmd.Context(), outcome.Task.ID, func(stored *task.Task) error {
				stored.RestartedFrom = old.ID
				return nil
			})
		}
		fmt.Printf("task %s (restarted from %s): %s\n", outcome.Task.ID, old.ID, outcome.Task.Status)
	}
	if runErr != nil {
		return runErr
	}
	if outcome.Task == nil || outcome.Task.Status != task.StatusCompleted {
		return fmt.Errorf("restart did not complete successfully")
	}
	return nil
}

func newTaskStoreLoad(cmd *cobra.Command, id string) (*task.Task, error) {
	store, err := newTaskStore()
	if err != nil {
		return nil, err
	}
	return store.Load(cmd.Context(), id)
}
