// Command codeforge is the CLI entrypoint for the multi-agent orchestration
// engine described in spec.md §6: task, status, logs, cancel, restart,
// approve, reject, and cleanup, plus a no-args interactive workflow.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
