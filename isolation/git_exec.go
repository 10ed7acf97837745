package isolation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecGitRuntime implements GitRuntime by shelling out to the system `git`
// binary. Every example repo in the pack that touches git does the same
// (shelling out rather than a pure-Go git library), because non-fast-forward
// merge with conflict markers and a clean abort is exactly what the real
// git porcelain gives you for free; see DESIGN.md for why no pure-Go git
// library is used here.
type ExecGitRuntime struct{}

func (ExecGitRuntime) run(ctx context.Context, repoPath string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (g ExecGitRuntime) CreateBranch(ctx context.Context, repoPath, name, from string) error {
	_, stderr, err := g.run(ctx, repoPath, "branch", name, from)
	if err != nil {
		return fmt.Errorf("isolation: git branch %s %s: %w: %s", name, from, err, stderr)
	}
	return nil
}

func (g ExecGitRuntime) Checkout(ctx context.Context, repoPath, branch string) error {
	_, stderr, err := g.run(ctx, repoPath, "checkout", branch)
	if err != nil {
		return fmt.Errorf("isolation: git checkout %s: %w: %s", branch, err, stderr)
	}
	return nil
}

func (g ExecGitRuntime) MergeNoFF(ctx context.Context, repoPath, source string) (MergeResult, error) {
	stdout, stderr, err := g.run(ctx, repoPath, "merge", "--no-ff", "--no-edit", source)
	if err != nil {
		conflicted := g.conflictedFiles(ctx, repoPath)
		if len(conflicted) > 0 || strings.Contains(stderr+stdout, "CONFLICT") {
			return MergeResult{}, &MergeConflictError{Source: source, ConflictedFiles: conflicted}
		}
		return MergeResult{}, fmt.Errorf("isolation: git merge --no-ff %s: %w: %s", source, err, stderr)
	}
	ref, _, err := g.run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return MergeResult{}, fmt.Errorf("isolation: git rev-parse HEAD: %w", err)
	}
	filesOut, _, err := g.run(ctx, repoPath, "diff", "--name-only", "HEAD~1", "HEAD")
	if err != nil {
		return MergeResult{}, fmt.Errorf("isolation: git diff HEAD~1 HEAD: %w", err)
	}
	return MergeResult{
		CommitRef:    strings.TrimSpace(ref),
		FilesChanged: splitNonEmpty(filesOut),
	}, nil
}

func (g ExecGitRuntime) conflictedFiles(ctx context.Context, repoPath string) []string {
	stdout, _, err := g.run(ctx, repoPath, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil
	}
	return splitNonEmpty(stdout)
}

func (g ExecGitRuntime) AbortMerge(ctx context.Context, repoPath string) error {
	_, stderr, err := g.run(ctx, repoPath, "merge", "--abort")
	if err != nil {
		return fmt.Errorf("isolation: git merge --abort: %w: %s", err, stderr)
	}
	return nil
}

func (g ExecGitRuntime) Push(ctx context.Context, repoPath, branch string) error {
	_, stderr, err := g.run(ctx, repoPath, "push", "origin", branch)
	if err != nil {
		return fmt.Errorf("isolation: git push origin %s: %w: %s", branch, err, stderr)
	}
	return nil
}

func (g ExecGitRuntime) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	_, stderr, err := g.run(ctx, repoPath, "branch", "-D", branch)
	if err != nil {
		return fmt.Errorf("isolation: git branch -D %s: %w: %s", branch, err, stderr)
	}
	return nil
}

func (ExecGitRuntime) IsProtected(branch string, protected []string) bool {
	for _, p := range protected {
		if p == branch {
			return true
		}
	}
	return false
}

func (g ExecGitRuntime) Diff(ctx context.Context, repoPath, base, branch string) (DiffResult, error) {
	stdout, stderr, err := g.run(ctx, repoPath, "diff", "--name-only", base, branch)
	if err != nil {
		return DiffResult{}, fmt.Errorf("isolation: git diff %s %s: %w: %s", base, branch, err, stderr)
	}
	return DiffResult{FilesChanged: splitNonEmpty(stdout)}, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
