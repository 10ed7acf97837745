package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfigDir string
	flagTasksDir  string
	flagLogsDir   string
)

var rootCmd = &cobra.Command{
	Use:   "codeforge",
	Short: "Multi-agent coding orchestration engine",
	Long: `codeforge plans, executes, and merges multi-agent coding tasks against a
git repository, running each agent turn through an isolated container and a
shared cost ceiling.

Example:
  codeforge task backend "add rate limiting to the public API" --background`,
}

// Execute runs the root command with a Clue-instrumented base context.
func Execute() error {
	return rootCmd.ExecuteContext(rootContext())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", defaultConfigDir(), "directory containing <project>.yaml project configs")
	rootCmd.PersistentFlags().StringVar(&flagTasksDir, "tasks-dir", defaultTasksDir(), "directory holding per-task state")
	rootCmd.PersistentFlags().StringVar(&flagLogsDir, "logs-dir", defaultLogsDir(), "directory holding per-task combined logs")
}
