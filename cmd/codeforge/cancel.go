package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a running task",
	Long: `Cancel a running task: graceful signal first, force-kill if it does
not stop within 5s. If id is omitted, prompts interactively among currently
running tasks.

Example:
  codeforge cancel a1b2c3d4e5f6
  codeforge cancel`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		id, err = pickRunningTask(cmd, sup, "cancel")
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Println("no tasks running")
			return nil
		}
	}

	if err := sup.Cancel(cmd.Context(), id); err != nil {
		os.Exit(1)
	}
	fmt.Printf("task %s cancelled\n", id)
	return nil
}
