package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/conversation"
)

func TestAppendOrderIsTimeOrder(t *testing.T) {
	l := conversation.New()
	l.Append("architect", "first", nil, true)
	l.Append("coder", "second", nil, true)

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Text)
	require.Equal(t, "second", entries[1].Text)
	require.True(t, entries[0].Timestamp.Before(entries[1].Timestamp) || entries[0].Timestamp.Equal(entries[1].Timestamp))
}

func TestRenderForAgentFiltersInvisible(t *testing.T) {
	l := conversation.New()
	l.Append("architect", "visible turn", nil, true)
	l.Append("system", "hidden turn", nil, false)

	rendered := l.RenderForAgent(context.Background(), "coder")
	require.Contains(t, rendered, "visible turn")
	require.NotContains(t, rendered, "hidden turn")
}

func TestCloneAndAppendClonePreservesPartOrder(t *testing.T) {
	parent := conversation.New()
	parent.Append("architect", "shared history", nil, true)

	part1 := parent.Clone()
	part1.Append("coder", "part1 turn", nil, true)

	part2 := parent.Clone()
	part2.Append("coder", "part2 turn", nil, true)

	joined := conversation.New()
	joined.AppendClone(parent)
	joined.AppendClone(part1)
	joined.AppendClone(part2)

	texts := make([]string, 0)
	for _, e := range joined.Entries() {
		texts = append(texts, e.Text)
	}
	require.Equal(t, []string{"shared history", "shared history", "part1 turn", "shared history", "part2 turn"}, texts)
}
