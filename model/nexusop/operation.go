// Package nexusop exposes a model.Adapter as a Nexus synchronous operation,
// grounded on github.com/nexus-rpc/sdk-go. Nexus operations are
// cancellable and context-deadline-aware, which fits the per-turn timeout
// and cancellation policy in spec.md §4.4/§5. AgentInvoker does not use
// this package: it calls ModelAdapter.Invoke directly under a
// context.WithDeadline.
package nexusop

import (
	"context"
	"fmt"

	"github.com/nexus-rpc/sdk-go/nexus"

	"github.com/codeforge-ai/orchestrator/model"
)

// InvokeOperationName identifies the Nexus operation wrapping
// model.Adapter.Invoke in a handler registered for a task's agent pool.
const InvokeOperationName = "agent-invoke"

// NewInvokeOperation returns a Nexus synchronous operation that delegates to
// adapter. Registering it on a nexus.ServiceHandler lets a caller start
// the call via nexus.HTTPClient.ExecuteOperation with a deadline-bearing
// context; Nexus's own cancel-on-context-cancellation semantics then provide
// the graceful-termination behavior spec.md §4.4 asks for (forced
// termination 5s later remains the caller's responsibility, since Nexus has
// no concept of "upgrade a cancel to a kill").
func NewInvokeOperation(adapter model.Adapter) nexus.Operation[model.Request, model.Response] {
	return nexus.NewSyncOperation(InvokeOperationName, func(ctx context.Context, req model.Request, _ nexus.StartOperationOptions) (model.Response, error) {
		resp, err := adapter.Invoke(ctx, req)
		if err != nil {
			return model.Response{}, fmt.Errorf("nexusop: invoke: %w", err)
		}
		return resp, nil
	})
}
