package isolation_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/isolation"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("base\n"), 0o644))
	run("add", "base.txt")
	run("commit", "-m", "base")
	return dir
}

func TestExecGitRuntimeCleanMerge(t *testing.T) {
	dir := initRepo(t)
	g := isolation.ExecGitRuntime{}
	ctx := context.Background()

	require.NoError(t, g.CreateBranch(ctx, dir, "feature", "main"))
	require.NoError(t, g.Checkout(ctx, dir, "feature"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("feature\n"), 0o644))
	commit(t, dir, "feature.txt", "add feature")

	require.NoError(t, g.Checkout(ctx, dir, "main"))
	res, err := g.MergeNoFF(ctx, dir, "feature")
	require.NoError(t, err)
	require.Contains(t, res.FilesChanged, "feature.txt")
}

func TestExecGitRuntimeConflictAborts(t *testing.T) {
	dir := initRepo(t)
	g := isolation.ExecGitRuntime{}
	ctx := context.Background()

	require.NoError(t, g.CreateBranch(ctx, dir, "feature", "main"))
	require.NoError(t, g.Checkout(ctx, dir, "feature"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("feature-change\n"), 0o644))
	commit(t, dir, "base.txt", "feature change")

	require.NoError(t, g.Checkout(ctx, dir, "main"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("main-change\n"), 0o644))
	commit(t, dir, "base.txt", "main change")

	_, err := g.MergeNoFF(ctx, dir, "feature")
	require.Error(t, err)
	var conflictErr *isolation.MergeConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Contains(t, conflictErr.ConflictedFiles, "base.txt")

	require.NoError(t, g.AbortMerge(ctx, dir))
	status, err := exec.Command("git", "-C", dir, "status", "--porcelain").CombinedOutput()
	require.NoError(t, err)
	require.Empty(t, string(status))
}

func TestExecGitRuntimeIsProtected(t *testing.T) {
	g := isolation.ExecGitRuntime{}
	require.True(t, g.IsProtected("main", []string{"main", "master"}))
	require.False(t, g.IsProtected("feature/x", []string{"main", "master"}))
}

func commit(t *testing.T, dir, file, msg string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("add", file)
	run("commit", "-m", msg)
}
