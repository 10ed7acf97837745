package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/config"
	"github.com/codeforge-ai/orchestrator/task"
)

var taskCmd = &cobra.Command{
	Use:   "task <project> <description>",
	Short: "Run a new task against a project",
	Long: `Run a new multi-agent task against a configured project.

By default codeforge blocks in the foreground and streams the task's
combined log to stdout, exiting 0 on success, 1 on failure, and 130 if
interrupted with Ctrl-C. Pass --background to hand the task off to a
detached worker process and return immediately.

Example:
  codeforge task backend "add rate limiting to the public API"
  codeforge task backend "migrate the queue to SQS" --background`,
	Args: cobra.ExactArgs(2),
	RunE: runTask,
}

var flagBackground bool

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.Flags().BoolVarP(&flagBackground, "background", "b", false, "hand the task off to a background worker and return immediately")
}

func runTask(cmd *cobra.Command, args []string) error {
	project, description := args[0], args[1]

	if flagBackground {
		sup, err := newSupervisor()
		if err != nil {
			return err
		}
		t, err := sup.StartBackground(cmd.Context(), project, description)
		if err != nil {
			return err
		}
		fmt.Printf("started task %s in the background (pid %d)\n", t.ID, t.PID)
		fmt.Printf("follow it with: codeforge logs %s -f\n", t.ID)
		return nil
	}

	return runForeground(cmd, project, description)
}

// runForeground runs orchestrator.Run to completion in this process,
// translating its outcome into the exit-code contract of spec.md §6: 0 on
// success, 1 on failure, 130 if interrupted.
func runForeground(cmd *cobra.Command, project, description string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch, err := newOrchestrator()
	if err != nil {
		return err
	}
	cfg := newConfigSource()
	proj, err := cfg.LoadProject(ctx, project)
	if err != nil {
		var notFound *config.ErrProjectNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("project %q is not configured under %s", project, flagConfigDir)
		}
		return err
	}

	outcome, err := orch.Run(ctx, proj.Repository, project, description)
	if outcome.Task != nil {
		fmt.Printf("task %s: %s\n", outcome.Task.ID, outcome.Task.Status)
	}
	if err != nil {
		if ctx.Err() != nil {
			os.Exit(130)
		}
		return err
	}
	if outcome.Task == nil || outcome.Task.Status != task.StatusCompleted {
		os.Exit(1)
	}
	if outcome.Task.PRURL != "" {
		fmt.Printf("pull request: %s\n", outcome.Task.PRURL)
	}
	return nil
}
