// Package config defines the ConfigSource external collaborator from
// spec.md §6 and its concrete YAML-backed implementation. Core components
// never read files or environment variables directly; they receive a
// GlobalConfig value constructed once at process start (spec.md §9
// "Replaced by an explicit GlobalConfig value constructed once at process
// start and injected into every component that needs it").
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DockerDefaults carries the fallback container image/limits applied when a
// ProjectConfig does not override them.
type DockerDefaults struct {
	Image     string  `yaml:"image"`
	CPUs      float64 `yaml:"cpus"`
	MemoryMiB int64   `yaml:"memoryMiB"`
}

// SafetyDefaults carries the fallback safety ceilings applied when a
// ProjectConfig does not override them.
type SafetyDefaults struct {
	MaxCostPerTaskUSD float64       `yaml:"maxCostPerTaskUSD"`
	MaxDuration       time.Duration `yaml:"maxDuration"`
}

// RedisConfig holds the address of the Redis server for the distributed
// per-task lock backend (§7 domain stack). The CLI does not read this
// field: cmd/codeforge attaches a task.RedisLocker to FSStore, in place of
// flock, when the CODEFORGE_REDIS_ADDR environment variable is set.
type RedisConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// GlobalConfig is the process-wide configuration loaded once at startup from
// <install_dir>/config.json (spec.md §6).
type GlobalConfig struct {
	ConfigDir        string         `json:"configDir" yaml:"configDir"`
	TasksDir         string         `json:"tasksDir" yaml:"tasksDir"`
	LogsDir          string         `json:"logsDir" yaml:"logsDir"`
	MaxParallelTasks int            `json:"maxParallelTasks" yaml:"maxParallelTasks"`
	Docker           DockerDefaults `json:"docker" yaml:"docker"`
	Safety           SafetyDefaults `json:"safety" yaml:"safety"`
	Redis            *RedisConfig   `json:"redis" yaml:"redis"`
}

// ProjectConfig describes one registered project (spec.md §3 "Project
// config (consumed, not owned)").
type ProjectConfig struct {
	Name               string         `yaml:"name"`
	Repository         string         `yaml:"repository"`
	BaseBranch         string         `yaml:"baseBranch"`
	ProtectedBranches  []string       `yaml:"protectedBranches"`
	Docker             DockerDefaults `yaml:"docker"`
	Safety             SafetyDefaults `yaml:"safety"`
	PRTitleTemplate    string         `yaml:"prTitleTemplate"`
	PRBodyTemplate     string         `yaml:"prBodyTemplate"`
}

// ErrProjectNotFound is returned by ConfigSource.LoadProject when no
// <config_dir>/<project>.yaml file exists.
type ErrProjectNotFound struct{ Project string }

func (e *ErrProjectNotFound) Error() string {
	return fmt.Sprintf("config: project %q not found", e.Project)
}

// ConfigSource is the external ConfigSource collaborator.
type ConfigSource interface {
	LoadProject(ctx context.Context, name string) (ProjectConfig, error)
	LoadGlobal(ctx context.Context) (GlobalConfig, error)
	ListProjects(ctx context.Context) ([]string, error)
}

// FileConfigSource implements ConfigSource by reading YAML project files out
// of a config directory and a JSON global config file, following the layout
// in spec.md §7:
//
//	<config_dir>/<project>.yaml
//	<install_dir>/config.json
type FileConfigSource struct {
	ConfigDir      string
	GlobalFilePath string
}

func (s *FileConfigSource) LoadProject(_ context.Context, name string) (ProjectConfig, error) {
	path := filepath.Join(s.ConfigDir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfig{}, &ErrProjectNotFound{Project: name}
		}
		return ProjectConfig{}, fmt.Errorf("config: read project %q: %w", name, err)
	}
	var pc ProjectConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return ProjectConfig{}, fmt.Errorf("config: parse project %q: %w", name, err)
	}
	if pc.Name == "" {
		pc.Name = name
	}
	return pc, nil
}

func (s *FileConfigSource) LoadGlobal(_ context.Context) (GlobalConfig, error) {
	data, err := os.ReadFile(s.GlobalFilePath)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("config: read global config: %w", err)
	}
	var gc GlobalConfig
	if err := yaml.Unmarshal(data, &gc); err != nil {
		return GlobalConfig{}, fmt.Errorf("config: parse global config: %w", err)
	}
	if gc.MaxParallelTasks == 0 {
		gc.MaxParallelTasks = 10
	}
	return gc, nil
}

func (s *FileConfigSource) ListProjects(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.ConfigDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: list projects: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(".yaml")])
	}
	return names, nil
}
