package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/task"
)

var statusCmd = &cobra.Command{
	Use:   "status [project]",
	Short: "List running tasks",
	Long: `List tasks currently running, optionally filtered to one project.

Example:
  codeforge status
  codeforge status backend`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	running, err := sup.ListRunning(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		project := args[0]
		filtered := running[:0]
		for _, t := range running {
			if t.Project == project {
				filtered = append(filtered, t)
			}
		}
		running = filtered
	}

	if len(running) == 0 {
		fmt.Println("no tasks running")
		return nil
	}

	fmt.Printf("%-14s %-16s %-20s %6s %8s %s\n", "ID", "PROJECT", "AGENT", "PCT", "ETA", "STARTED")
	for _, t := range running {
		fmt.Println(formatStatusRow(t, time.Now()))
	}
	return nil
}

// formatStatusRow renders one fixed-width status line; now is injected so
// the "STARTED ago" column is deterministic under test.
func formatStatusRow(t *task.Task, now time.Time) string {
	eta := "-"
	if t.Progress.ETASeconds > 0 {
		eta = (time.Duration(t.Progress.ETASeconds) * time.Second).String()
	}
	agent := t.CurrentAgent
	if agent == "" {
		agent = "-"
	}
	return fmt.Sprintf("%-14s %-16s %-20s %5d%% %8s %s ago",
		t.ID, t.Project, agent, t.Progress.Percent, eta, now.Sub(t.StartedAt).Round(time.Second))
}
