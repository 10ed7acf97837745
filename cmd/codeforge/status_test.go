package main

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/task"
)

func TestFormatStatusRowShowsDashesWhenUnset(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Second)
	t1 := &task.Task{ID: "abc123", Project: "backend", StartedAt: started}

	row := formatStatusRow(t1, now)
	require.Contains(t, row, "abc123")
	require.Contains(t, row, "backend")
	require.Contains(t, row, "-") // agent and eta both unset
	require.Contains(t, row, "1m30s ago")
}

func TestFormatStatusRowIncludesAgentAndETA(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	t1 := &task.Task{
		ID:           "def456",
		Project:      "frontend",
		CurrentAgent: "coder",
		StartedAt:    now,
		Progress:     task.Progress{Percent: 42, ETASeconds: 120},
	}

	row := formatStatusRow(t1, now)
	require.Contains(t, row, "coder")
	require.Contains(t, row, "42%")
	require.Contains(t, row, "2m0s")
}

func TestTailLinesPrintsOnlyLastN(t *testing.T) {
	f, err := createTempLogFile(t, "one\ntwo\nthree\nfour\nfive\n")
	require.NoError(t, err)
	defer f.Close()

	out := captureStdout(t, func() {
		require.NoError(t, tailLines(f, 2))
	})
	require.Equal(t, "four\nfive\n", out)
}

func TestTailLinesZeroSeeksToEnd(t *testing.T) {
	f, err := createTempLogFile(t, "one\ntwo\n")
	require.NoError(t, err)
	defer f.Close()

	out := captureStdout(t, func() {
		require.NoError(t, tailLines(f, 0))
	})
	require.Empty(t, out)
}

func createTempLogFile(t *testing.T, contents string) (*os.File, error) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(contents); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	var buf strings.Builder
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}
