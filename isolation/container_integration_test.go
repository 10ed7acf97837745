package isolation_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/isolation"
)

var skipContainerIntegration bool

func TestMain(m *testing.M) {
	if _, err := isolation.ProbeDocker(context.Background()); err != nil {
		fmt.Printf("Docker not available, container integration tests will be skipped: %v\n", err)
		skipContainerIntegration = true
	}
	os.Exit(m.Run())
}

func TestTestcontainersRuntimeCreateExecDestroy(t *testing.T) {
	if skipContainerIntegration {
		t.Skip("docker not available")
	}
	rt := &isolation.TestcontainersRuntime{LabelPrefix: "codeforge-test"}
	ctx := context.Background()

	h, err := rt.Create(ctx, "alpine:3.19", isolation.Limits{CPUs: 0.5, MemoryMiB: 128}, nil)
	require.NoError(t, err)
	defer rt.Destroy(ctx, h)

	res, err := rt.Exec(ctx, h, []string{"echo", "hello"}, time.Now().Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "hello")
}
