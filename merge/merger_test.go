package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/merge"
)

type fakeGit struct {
	isolation.GitRuntime
	conflictAt int
	merges     int
	aborted    bool
}

func (g *fakeGit) MergeNoFF(_ context.Context, _ string, source string) (isolation.MergeResult, error) {
	idx := g.merges
	g.merges++
	if idx == g.conflictAt {
		return isolation.MergeResult{}, &isolation.MergeConflictError{
			Source:          source,
			ConflictedFiles: []string{"shared.go"},
		}
	}
	return isolation.MergeResult{CommitRef: "sha" + source, FilesChanged: []string{source + ".go"}}, nil
}

func (g *fakeGit) AbortMerge(context.Context, string) error {
	g.aborted = true
	return nil
}

func TestMergerMergesAllCleanly(t *testing.T) {
	git := &fakeGit{conflictAt: -1}
	m := &merge.Merger{Git: git}

	merges, err := m.Merge(context.Background(), "/repo", []string{"part0", "part1", "part2"})
	require.NoError(t, err)
	require.Len(t, merges, 3)
	require.Equal(t, 0, merges[0].PartIndex)
	require.Equal(t, "part1", merges[1].Branch)
}

func TestMergerStopsAndAbortsOnConflict(t *testing.T) {
	git := &fakeGit{conflictAt: 1}
	m := &merge.Merger{Git: git}

	merges, err := m.Merge(context.Background(), "/repo", []string{"part0", "part1", "part2"})
	require.Error(t, err)
	require.True(t, git.aborted)

	var conflictErr *merge.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, 1, conflictErr.PartIndex)
	require.Equal(t, []string{"shared.go"}, conflictErr.ConflictedFiles)
	require.Len(t, conflictErr.PriorMerges, 1)
	require.Len(t, merges, 1, "merges already succeeded before the conflict must be reported back")
}

func TestMergerOrderIsDeterministic(t *testing.T) {
	git := &fakeGit{conflictAt: -1}
	m := &merge.Merger{Git: git}

	branches := []string{"part0", "part1", "part2", "part3"}
	merges, err := m.Merge(context.Background(), "/repo", branches)
	require.NoError(t, err)
	for i, pm := range merges {
		require.Equal(t, branches[i], pm.Branch)
		require.Equal(t, i, pm.PartIndex)
	}
}
