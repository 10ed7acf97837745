package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/supervisor"
)

func init() {
	rootCmd.RunE = runInteractive
}

// runInteractive drives the no-args workflow: pick a configured project,
// prompt for a description, then run it in the foreground exactly like
// `codeforge task <project> <description>`.
func runInteractive(cmd *cobra.Command, args []string) error {
	cfg := newConfigSource()
	projects, err := cfg.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("no projects configured under %s", flagConfigDir)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("configured projects:")
	for i, p := range projects {
		fmt.Printf("  %d) %s\n", i+1, p)
	}
	fmt.Print("pick a project: ")
	choice, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(projects) {
		return fmt.Errorf("invalid selection %q", strings.TrimSpace(choice))
	}
	project := projects[idx-1]

	fmt.Print("describe the task: ")
	description, _ := reader.ReadString('\n')
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("task description must not be empty")
	}

	return runForeground(cmd, project, description)
}

// pickRunningTask lists currently running tasks and prompts the user to
// choose one by number, for commands (cancel, restart) that accept an
// optional id argument.
func pickRunningTask(cmd *cobra.Command, sup *supervisor.Supervisor, verb string) (string, error) {
	running, err := sup.ListRunning(cmd.Context())
	if err != nil {
		return "", err
	}
	if len(running) == 0 {
		return "", nil
	}
	fmt.Printf("running tasks to %s:\n", verb)
	for i, t := range running {
		fmt.Printf("  %d) %s  %-16s %s\n", i+1, t.ID, t.Project, t.Description)
	}
	fmt.Print("pick one: ")
	reader := bufio.NewReader(os.Stdin)
	choice, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(running) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(choice))
	}
	return running[idx-1].ID, nil
}
