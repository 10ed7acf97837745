package isolation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/isolation"
)

func TestGitHubAdapterCreatePRBadRepoNameFails(t *testing.T) {
	a := isolation.NewGitHubAdapter("")
	_, err := a.CreatePR(context.Background(), "not-owner-slash-name", "feature", "main", "t", "b")
	require.Error(t, err)
}
