package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeforge-ai/orchestrator/stream"
	"github.com/codeforge-ai/orchestrator/task"
)

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Print or follow a task's combined log",
	Long: `Print the last N lines of a task's combined stdout+stderr log, or
follow it as the task continues to run.

Example:
  codeforge logs a1b2c3d4e5f6
  codeforge logs a1b2c3d4e5f6 -f
  codeforge logs a1b2c3d4e5f6 -n 200`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var (
	flagFollow bool
	flagTailN  int
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "stream new lines as they are written")
	logsCmd.Flags().IntVarP(&flagTailN, "lines", "n", 100, "number of trailing lines to print before following")
}

func runLogs(cmd *cobra.Command, args []string) error {
	id := args[0]
	store, err := newTaskStore()
	if err != nil {
		return err
	}
	t, err := store.Load(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			os.Exit(1)
		}
		return err
	}
	if t.LogPath == "" {
		return fmt.Errorf("task %s has no log file (foreground tasks log to the invoking terminal)", id)
	}

	f, err := os.Open(t.LogPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if err := tailLines(f, flagTailN); err != nil {
		return err
	}
	if !flagFollow {
		return nil
	}

	if pulse := newPulseLog(); pulse != nil {
		return followStream(cmd.Context(), pulse, store, id)
	}
	return followFile(cmd.Context(), f, store, id)
}

// followStream tails id's cross-process log stream instead of the local
// file, used when CODEFORGE_REDIS_ADDR is configured so `logs -f` works
// against a task whose worker is running on a different host.
func followStream(ctx context.Context, pulse *stream.PulseLog, store task.Store, id string) error {
	lines, err := pulse.Subscribe(ctx, id)
	if err != nil {
		return fmt.Errorf("subscribe to log stream: %w", err)
	}
	for line := range lines {
		fmt.Print(line)
		if t, err := store.Load(ctx, id); err == nil && t.Status != task.StatusRunning {
			return nil
		}
	}
	return nil
}

// tailLines prints the last n lines of an already-open file without
// reading the whole thing into memory when it's large, by scanning it once
// and keeping only a sliding window of the most recent n lines.
func tailLines(f *os.File, n int) error {
	if n <= 0 {
		_, err := f.Seek(0, io.SeekEnd)
		return err
	}
	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// followFile polls the log file for new data until the task leaves
// StatusRunning, then prints anything still unread and returns.
func followFile(ctx context.Context, f *os.File, store task.Store, id string) error {
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				fmt.Print(line)
			}
			if err != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		t, err := store.Load(ctx, id)
		if err == nil && t.Status != task.StatusRunning {
			// drain anything written between the last read and completion
			for {
				line, err := reader.ReadString('\n')
				if line != "" {
					fmt.Print(line)
				}
				if err != nil {
					break
				}
			}
			return nil
		}
	}
}
