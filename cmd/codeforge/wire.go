package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"goa.design/clue/log"

	"github.com/codeforge-ai/orchestrator/agentreg"
	"github.com/codeforge-ai/orchestrator/config"
	"github.com/codeforge-ai/orchestrator/exec/parallel"
	"github.com/codeforge-ai/orchestrator/exec/sequential"
	"github.com/codeforge-ai/orchestrator/invoker"
	"github.com/codeforge-ai/orchestrator/isolation"
	"github.com/codeforge-ai/orchestrator/merge"
	"github.com/codeforge-ai/orchestrator/model"
	"github.com/codeforge-ai/orchestrator/model/anthropic"
	"github.com/codeforge-ai/orchestrator/model/bedrock"
	"github.com/codeforge-ai/orchestrator/model/openai"
	"github.com/codeforge-ai/orchestrator/orchestrator"
	"github.com/codeforge-ai/orchestrator/planner"
	"github.com/codeforge-ai/orchestrator/stream"
	"github.com/codeforge-ai/orchestrator/supervisor"
	"github.com/codeforge-ai/orchestrator/task"
	"github.com/codeforge-ai/orchestrator/telemetry"
)

func installDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "codeforge")
}

func defaultConfigDir() string { return filepath.Join(installDir(), "projects") }
func defaultTasksDir() string  { return filepath.Join(installDir(), "tasks") }
func defaultLogsDir() string   { return filepath.Join(installDir(), "logs") }

// rootContext installs a Clue logger (terminal-formatted when attached to a
// TTY, JSON otherwise) so every telemetry.Logger call in the orchestration
// packages has somewhere to go.
func rootContext() context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if os.Getenv("CODEFORGE_DEBUG") != "" {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

func newConfigSource() config.ConfigSource {
	return &config.FileConfigSource{
		ConfigDir:      flagConfigDir,
		GlobalFilePath: filepath.Join(installDir(), "config.json"),
	}
}

// newTaskStore opens the on-disk task store, attaching a Redis-backed
// distributed lock in place of the default flock when CODEFORGE_REDIS_ADDR
// is set, since flock is only reliable when a single supervisor process
// owns the tasks directory.
func newTaskStore() (task.Store, error) {
	store, err := task.NewFSStore(flagTasksDir)
	if err != nil {
		return nil, err
	}
	if addr := os.Getenv("CODEFORGE_REDIS_ADDR"); addr != "" {
		store.DistLock = &task.RedisLocker{Client: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return store, nil
}

// newAdapters wires one model.Adapter per registered provider, each wrapped
// in an AdaptiveRateLimiter so a single process never exceeds a provider's
// tokens-per-minute budget regardless of how many agents/parts run
// concurrently. Only providers with credentials present in the environment
// are registered; at least one must be configured.
func newAdapters() (map[string]model.Adapter, error) {
	adapters := map[string]model.Adapter{}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		a, err := anthropic.NewFromAPIKey(key, anthropic.Options{
			DefaultModel: envOr("CODEFORGE_ANTHROPIC_DEFAULT_MODEL", "claude-sonnet-4-5"),
			HighModel:    envOr("CODEFORGE_ANTHROPIC_HIGH_MODEL", "claude-opus-4-1"),
			SmallModel:   envOr("CODEFORGE_ANTHROPIC_SMALL_MODEL", "claude-haiku-4-5"),
		})
		if err != nil {
			return nil, fmt.Errorf("wire anthropic adapter: %w", err)
		}
		limited := model.NewAdaptiveRateLimiter(a, 60000, 200000)
		adapters["default"] = limited
		adapters["high-reasoning"] = limited
		adapters["small"] = limited
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		a, err := openai.NewFromAPIKey(key, envOr("CODEFORGE_OPENAI_DEFAULT_MODEL", "gpt-4o"))
		if err != nil {
			return nil, fmt.Errorf("wire openai adapter: %w", err)
		}
		limited := model.NewAdaptiveRateLimiter(a, 60000, 200000)
		for _, tier := range []string{"default", "high-reasoning", "small"} {
			if _, ok := adapters[tier]; !ok {
				adapters[tier] = limited
			}
		}
	}

	if os.Getenv("CODEFORGE_USE_BEDROCK") != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("wire bedrock adapter: load AWS config: %w", err)
		}
		b, err := bedrock.New(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{
			DefaultModelID: envOr("CODEFORGE_BEDROCK_DEFAULT_MODEL", "anthropic.claude-sonnet-4-5-v1:0"),
			HighModelID:    envOr("CODEFORGE_BEDROCK_HIGH_MODEL", "anthropic.claude-opus-4-1-v1:0"),
			SmallModelID:   envOr("CODEFORGE_BEDROCK_SMALL_MODEL", "anthropic.claude-haiku-4-5-v1:0"),
		})
		if err != nil {
			return nil, fmt.Errorf("wire bedrock adapter: %w", err)
		}
		limited := model.NewAdaptiveRateLimiter(b, 60000, 200000)
		for _, tier := range []string{"default", "high-reasoning", "small"} {
			if _, ok := adapters[tier]; !ok {
				adapters[tier] = limited
			}
		}
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no model provider credentials found (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or CODEFORGE_USE_BEDROCK)")
	}
	return adapters, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newOrchestrator assembles the full component graph from spec.md §4 for a
// single foreground or worker-process run.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	reg, err := agentreg.Standard()
	if err != nil {
		return nil, fmt.Errorf("build agent registry: %w", err)
	}
	adapters, err := newAdapters()
	if err != nil {
		return nil, err
	}
	store, err := newTaskStore()
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	inv := &invoker.Invoker{Registry: reg, Adapters: adapters}
	git := isolation.ExecGitRuntime{}
	containers := &isolation.TestcontainersRuntime{LabelPrefix: "codeforge"}
	tel := telemetry.Default()

	var host isolation.HostAdapter
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		host = isolation.NewGitHubAdapter(token)
	}

	return &orchestrator.Orchestrator{
		Config:     newConfigSource(),
		Store:      store,
		Planner:    &planner.Planner{Adapter: adapters["default"], Registry: reg},
		Invoker:    inv,
		Sequential: &sequential.Executor{Invoker: inv},
		Parallel: &parallel.Executor{
			Invoker:   inv,
			Git:       git,
			Merger:    &merge.Merger{Git: git},
			Runtime:   containers,
			Telemetry: tel,
		},
		Git:        git,
		Containers: containers,
		Host:       host,
		Telemetry:  tel,
	}, nil
}

func newSupervisor() (*supervisor.Supervisor, error) {
	store, err := newTaskStore()
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own binary path: %w", err)
	}
	return &supervisor.Supervisor{
		Store:        store,
		LogsDir:      flagLogsDir,
		WorkerBinary: self,
		WorkerArgs:   []string{"worker", "--config-dir", flagConfigDir, "--tasks-dir", flagTasksDir, "--logs-dir", flagLogsDir},
		Runtime:      &isolation.TestcontainersRuntime{LabelPrefix: "codeforge"},
		Stream:       newPulseLog(),
		Telemetry:    telemetry.Default(),
	}, nil
}

// newPulseLog returns a Redis-backed cross-process log relay when
// CODEFORGE_REDIS_ADDR is set, or nil otherwise (every *stream.PulseLog
// method tolerates a nil receiver: Publish and Destroy do nothing, and
// Subscribe returns an error).
func newPulseLog() *stream.PulseLog {
	addr := os.Getenv("CODEFORGE_REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return stream.NewPulseLog(client, 10000)
}
