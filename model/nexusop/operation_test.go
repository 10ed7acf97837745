package nexusop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/model"
)

type fixedAdapter struct {
	resp model.Response
	err  error
}

func (f *fixedAdapter) Invoke(context.Context, model.Request) (model.Response, error) {
	return f.resp, f.err
}

func TestNewInvokeOperationReturnsOperation(t *testing.T) {
	op := NewInvokeOperation(&fixedAdapter{resp: model.Response{Text: "ok"}})
	require.NotNil(t, op)
}
