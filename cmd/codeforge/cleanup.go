package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/isolation"
)

var flagCleanupAll bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphan containers left behind by dead tasks",
	Long: `Remove containers still recorded against tasks that are no longer
running. With --all, also destroys every container recorded against any
task, whatever its status. Containers that no task record references are
not looked up and are left in place.

Example:
  codeforge cleanup
  codeforge cleanup --all`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&flagCleanupAll, "all", false, "destroy every container recorded against any task, not just ones tied to dead tasks")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	if _, err := sup.Store.Sync(ctx); err != nil {
		return err
	}
	if err := sup.Sweep(ctx); err != nil {
		return err
	}
	fmt.Println("swept orphan containers tied to dead tasks")

	if !flagCleanupAll {
		return nil
	}
	return destroyAllLabeled(ctx)
}

// destroyAllLabeled is the --all path: it walks every known task's
// subtasks for container ids regardless of status, best-effort destroying
// each one. It does not attempt to discover containers the store never
// recorded; that gap is testcontainers-go's ryuk reaper's job.
func destroyAllLabeled(ctx context.Context) error {
	store, err := newTaskStore()
	if err != nil {
		return err
	}
	all, err := store.List(ctx)
	if err != nil {
		return err
	}
	runtime := &isolation.TestcontainersRuntime{LabelPrefix: "codeforge"}
	destroyed := 0
	for _, t := range all {
		for _, sub := range t.Subtasks {
			if sub.ContainerID == "" {
				continue
			}
			if err := runtime.Destroy(ctx, isolation.ContainerHandle{ID: sub.ContainerID}); err == nil {
				destroyed++
			}
		}
	}
	fmt.Printf("destroyed %d container(s)\n", destroyed)
	return nil
}
