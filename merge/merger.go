// Package merge implements BranchMerger, the component that recombines a
// parallel task's per-part branches into its coordination branch, strictly
// in part-index order and with no invented conflict resolution (spec.md
// §4.8).
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeforge-ai/orchestrator/isolation"
)

// PartMerge records one successful part merge.
type PartMerge struct {
	PartIndex    int
	Branch       string
	CommitRef    string
	FilesChanged []string
}

// ConflictError reports a merge conflict plus the merges that had already
// succeeded before it, so the caller can report exactly what must be
// reconciled (spec.md §4.8 step 3).
type ConflictError struct {
	PartIndex       int
	Branch          string
	ConflictedFiles []string
	PriorMerges     []PartMerge
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge: conflict merging part %d (branch %s)", e.PartIndex, e.Branch)
}

// Merger combines child branches into a coordination branch.
type Merger struct {
	Git isolation.GitRuntime
}

// Merge attempts, in order, a non-fast-forward merge of each of branches
// (indexed 0..N-1, corresponding to part index) into the currently
// checked-out coordination branch at repoPath. On the first conflict it
// aborts that merge, rolls back to the pre-attempt state, and returns a
// *ConflictError carrying every merge that succeeded before the conflict.
// Merges are always attempted in the given order (spec.md §4.8 invariant:
// "merges are serial and deterministic given the same inputs").
func (m *Merger) Merge(ctx context.Context, repoPath string, branches []string) ([]PartMerge, error) {
	merges := make([]PartMerge, 0, len(branches))
	for idx, branch := range branches {
		res, err := m.Git.MergeNoFF(ctx, repoPath, branch)
		if err != nil {
			var conflictErr *isolation.MergeConflictError
			if errors.As(err, &conflictErr) {
				if abortErr := m.Git.AbortMerge(ctx, repoPath); abortErr != nil {
					return merges, fmt.Errorf("merge: abort after conflict on part %d: %w", idx, abortErr)
				}
				return merges, &ConflictError{
					PartIndex:       idx,
					Branch:          branch,
					ConflictedFiles: conflictErr.ConflictedFiles,
					PriorMerges:     merges,
				}
			}
			return merges, fmt.Errorf("merge: part %d (%s): %w", idx, branch, err)
		}
		merges = append(merges, PartMerge{
			PartIndex:    idx,
			Branch:       branch,
			CommitRef:    res.CommitRef,
			FilesChanged: res.FilesChanged,
		})
	}
	return merges, nil
}
