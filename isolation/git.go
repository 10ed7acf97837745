// Package isolation defines the external collaborator interfaces from
// spec.md §6 (GitRuntime, ContainerRuntime, HostAdapter) and their concrete
// adapters. The orchestration core never shells out to git/container/host
// commands directly; it only calls through these interfaces.
package isolation

import "context"

// GitRuntime is the external GitRuntime collaborator.
type GitRuntime interface {
	CreateBranch(ctx context.Context, repoPath, name, from string) error
	Checkout(ctx context.Context, repoPath, branch string) error
	// MergeNoFF attempts a non-fast-forward merge of source into the
	// currently checked-out branch. On a clean merge it returns the new
	// commit ref and the list of changed files. On conflict it returns a
	// *MergeConflictError and leaves the merge in progress; the caller
	// restores the working tree with AbortMerge (BranchMerger does so to
	// roll back).
	MergeNoFF(ctx context.Context, repoPath, source string) (MergeResult, error)
	AbortMerge(ctx context.Context, repoPath string) error
	Push(ctx context.Context, repoPath, branch string) error
	DeleteBranch(ctx context.Context, repoPath, branch string) error
	IsProtected(branch string, protected []string) bool
	// Diff reports whether branch has any changes relative to base (used to
	// detect the "no code changes" case in spec.md §8 scenario 2).
	Diff(ctx context.Context, repoPath, base, branch string) (DiffResult, error)
}

// MergeResult describes a clean merge outcome.
type MergeResult struct {
	CommitRef    string
	FilesChanged []string
}

// DiffResult summarizes a diff between two refs.
type DiffResult struct {
	FilesChanged []string
}

// MergeConflictError is returned by MergeNoFF when the merge cannot proceed
// without human reconciliation, per spec.md §4.8 step 3.
type MergeConflictError struct {
	Source          string
	ConflictedFiles []string
}

func (e *MergeConflictError) Error() string {
	return "isolation: merge conflict merging " + e.Source
}
