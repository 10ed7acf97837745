package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/task"
)

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Manually create a pull request from a task's branch",
	Long: `Manually create a pull request from a completed task's branch, for
when the automatic PR creation at the end of a run failed or was skipped
(no host adapter configured at the time).

Example:
  codeforge approve a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
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
	if t.Status != task.StatusCompleted {
		return fmt.Errorf("task %s is %s, not completed; refusing to open a PR", id, t.Status)
	}
	if t.PRURL != "" {
		fmt.Printf("task %s already has a pull request: %s\n", id, t.PRURL)
		return nil
	}

	token := githubTokenOrFail()
	if token == "" {
		return fmt.Errorf("approve requires GITHUB_TOKEN to be set")
	}
	host := isolation.NewGitHubAdapter(token)

	cfg := newConfigSource()
	proj, err := cfg.LoadProject(ctx, t.Project)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("codeforge: %s", t.Description)
	body := fmt.Sprintf("Task %s, completed %s.\n\n%s", t.ID, t.CompletedAt.Format("2006-01-02 15:04:05"), t.Description)
	pr, err := host.CreatePR(ctx, proj.Repository, t.Branch, proj.BaseBranch, title, body)
	if err != nil {
		return fmt.Errorf("create pull request: %w", err)
	}

	if err := store.Update(ctx, id, func(stored *task.Task) error {
		stored.PRURL = pr.URL
		return nil
	}); err != nil {
		return err
	}
	fmt.Printf("pull request created: %s\n", pr.URL)
	return nil
}

func githubTokenOrFail() string {
	return os.Getenv("GITHUB_TOKEN")
}
