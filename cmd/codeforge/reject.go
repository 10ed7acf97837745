package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/isolation"
)

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Delete a task's branch",
	Long: `Delete a completed or failed task's branch, discarding its changes.
Refuses to delete a branch that matches one of the project's protected
branches.

Example:
  codeforge reject a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: runReject,
}

func init() {
	rootCmd.AddCommand(rejectCmd)
}

func runReject(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := cmd.Context()

	store, err := newTaskStore()
	if err != nil {
		return err
	}
	t, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	if t.Branch == "" {
		return fmt.Errorf("task %s has no branch recorded", id)
	}

	cfg := newConfigSource()
	proj, err := cfg.LoadProject(ctx, t.Project)
	if err != nil {
		return err
	}

	git := isolation.ExecGitRuntime{}
	if git.IsProtected(t.Branch, proj.ProtectedBranches) {
		return fmt.Errorf("refusing to delete protected branch %q", t.Branch)
	}
	if err := git.DeleteBranch(ctx, proj.Repository, t.Branch); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	fmt.Printf("deleted branch %s for task %s\n", t.Branch, id)
	return nil
}
