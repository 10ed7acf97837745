package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/config"
)

func TestLoadProjectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	yaml := `
name: demo
repository: acme/demo
baseBranch: main
protectedBranches: [main, release]
docker:
  image: acme/build:latest
  cpus: 2
  memoryMiB: 2048
safety:
  maxCostPerTaskUSD: 5
  maxDuration: 30m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(yaml), 0o644))

	src := &config.FileConfigSource{ConfigDir: dir}
	pc, err := src.LoadProject(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, "demo", pc.Name)
	require.Equal(t, "acme/demo", pc.Repository)
	require.Equal(t, []string{"main", "release"}, pc.ProtectedBranches)
	require.Equal(t, 2048, int(pc.Docker.MemoryMiB))
}

func TestLoadProjectNotFound(t *testing.T) {
	src := &config.FileConfigSource{ConfigDir: t.TempDir()}
	_, err := src.LoadProject(context.Background(), "missing")
	require.Error(t, err)
	var notFound *config.ErrProjectNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLoadGlobalAppliesDefaultMaxParallelTasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("tasksDir: /tmp/tasks\nlogsDir: /tmp/logs\n"), 0o644))

	src := &config.FileConfigSource{GlobalFilePath: path}
	gc, err := src.LoadGlobal(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, gc.MaxParallelTasks)
}

func TestListProjectsReturnsYAMLStems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("name: a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src := &config.FileConfigSource{ConfigDir: dir}
	names, err := src.ListProjects(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, names)
}
