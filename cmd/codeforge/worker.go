package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// workerCmd is the hidden entrypoint Supervisor.spawn invokes: it is never
// typed by a human, only appended as (id, project, description) after
// Supervisor.WorkerArgs by the spawned process's own argv.
var workerCmd = &cobra.Command{
	Use:    "worker <id> <project> <description>",
	Short:  "Run a single task to completion under an existing task id (internal)",
	Hidden: true,
	Args:   cobra.ExactArgs(3),
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	id, project, description := args[0], args[1], args[2]

	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	proj, err := newConfigSource().LoadProject(cmd.Context(), project)
	if err != nil {
		return err
	}

	outcome, err := orch.RunID(cmd.Context(), id, proj.Repository, project, description)
	if err != nil {
		return err
	}
	if outcome.Task == nil {
		return fmt.Errorf("worker: task %s produced no outcome", id)
	}
	return nil
}
