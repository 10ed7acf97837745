// Package planner implements the Planner component from spec.md §4.5: a
// single planning-agent call that produces a structured Plan, tolerant of
// malformed or schema-invalid JSON.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/codeforge-ai/orchestrator/agentreg"
	"github.com/codeforge-ai/orchestrator/model"
	"github.com/codeforge-ai/orchestrator/task"
)

// Planner invokes a lightweight planning agent and turns its JSON output
// into a validated task.Plan, falling back to task.DefaultPlan on any
// failure (spec.md §4.5 step 2, §9 "prompt-embedded JSON... treated as
// untrusted input").
type Planner struct {
	Adapter  model.Adapter
	Registry *agentreg.Registry
	// SystemPrompt is the strict prompt demanding the JSON object described
	// in spec.md §4.5 step 1. A default is used if empty.
	SystemPrompt string
}

// Result carries the produced Plan plus a warning, set whenever a
// fallback/correction path was taken (spec.md §7 "Planning... logged as
// warning").
type Result struct {
	Plan    task.Plan
	Warning string
}

// Plan runs the planner agent against description and returns a validated
// Plan, applying the heuristic parallelization guard and agent-list
// sanitization from spec.md §4.5 steps 3-4.
func (p *Planner) Plan(ctx context.Context, description string) (Result, error) {
	sys := p.SystemPrompt
	if sys == "" {
		sys = defaultSystemPrompt
	}
	resp, err := p.Adapter.Invoke(ctx, model.Request{
		SystemPrompt: sys,
		UserPrompt:   description,
		ModelTier:    "small",
	})
	if err != nil {
		return Result{Plan: task.DefaultPlan(), Warning: fmt.Sprintf("planner call failed: %v", err)}, nil
	}

	raw, ok := extractJSON(resp.Text)
	if !ok {
		return Result{Plan: task.DefaultPlan(), Warning: "planner response contained no JSON object"}, nil
	}

	var doc planDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Result{Plan: task.DefaultPlan(), Warning: fmt.Sprintf("planner JSON parse failed: %v", err)}, nil
	}
	if err := validateSchema(raw); err != nil {
		return Result{Plan: task.DefaultPlan(), Warning: fmt.Sprintf("planner JSON failed schema validation: %v", err)}, nil
	}

	plan, warning := doc.toPlan(p.Registry)
	if err := plan.Validate(); err != nil {
		plan.Parallelizable = false
		plan.Parts = nil
		if warning == "" {
			warning = fmt.Sprintf("parallel plan failed heuristic guard: %v", err)
		} else {
			warning += fmt.Sprintf("; parallel plan failed heuristic guard: %v", err)
		}
	}
	return Result{Plan: plan, Warning: warning}, nil
}

// planDoc mirrors the JSON object the planning agent is asked to produce
// (spec.md §4.5 step 1: taskType, agents, reasoning, complexity,
// parallel.canParallelize, parallel.parts[]).
type planDoc struct {
	TaskType   string     `json:"taskType"`
	Agents     []string   `json:"agents"`
	Reasoning  string     `json:"reasoning"`
	Complexity complexity `json:"complexity"`
	Parallel   parallel   `json:"parallel"`
}

type complexity struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

type parallel struct {
	CanParallelize bool     `json:"canParallelize"`
	Parts          []partIn `json:"parts"`
}

type partIn struct {
	Description   string   `json:"description"`
	AssignedFiles []string `json:"assignedFiles"`
	AgentName     string   `json:"agentName"`
	Dependencies  []int    `json:"dependencies"`
}

func (d planDoc) toPlan(reg *agentreg.Registry) (task.Plan, string) {
	var warning string

	agents := sanitizeAgents(d.Agents, reg)
	if len(agents) == 0 {
		agents = task.DefaultPlan().Agents
		warning = "planner agent list was empty after sanitization; using default sequence"
	} else if len(agents) < len(d.Agents) {
		warning = "planner named unregistered agents; they were dropped"
	}

	parts := make([]task.Part, 0, len(d.Parallel.Parts))
	for _, pi := range d.Parallel.Parts {
		parts = append(parts, task.Part{
			Description:   pi.Description,
			AssignedFiles: pi.AssignedFiles,
			AgentName:     pi.AgentName,
			Dependencies:  pi.Dependencies,
		})
	}

	score := d.Complexity.Score
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	parallelizable := d.Parallel.CanParallelize && score >= 3
	if d.Parallel.CanParallelize && !parallelizable {
		if warning != "" {
			warning += "; "
		}
		warning += fmt.Sprintf("parallel plan forced sequential: complexity %d is below 3", score)
	}

	return task.Plan{
		TaskType:        task.TaskType(orDefault(d.TaskType, string(task.TaskTypeImplementation))),
		Complexity:      task.ComplexityLabel(orDefault(d.Complexity.Label, string(task.ComplexityMedium))),
		ComplexityScore: score,
		Agents:          agents,
		Parallelizable:  parallelizable,
		Parts:           parts,
		Reasoning:       d.Reasoning,
	}, warning
}

func sanitizeAgents(names []string, reg *agentreg.Registry) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if reg == nil || reg.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var fencedJSONRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON is tolerant of surrounding prose or fenced code blocks, per
// spec.md §4.5 step 2.
func extractJSON(text string) (string, bool) {
	if m := fencedJSONRE.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["taskType", "agents", "complexity", "parallel"],
  "properties": {
    "taskType": {"type": "string"},
    "agents": {"type": "array", "items": {"type": "string"}},
    "reasoning": {"type": "string"},
    "complexity": {
      "type": "object",
      "required": ["score"],
      "properties": {
        "score": {"type": "integer", "minimum": 1, "maximum": 10},
        "label": {"type": "string"}
      }
    },
    "parallel": {
      "type": "object",
      "required": ["canParallelize"],
      "properties": {
        "canParallelize": {"type": "boolean"},
        "parts": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["agentName"],
            "properties": {
              "description": {"type": "string"},
              "assignedFiles": {"type": "array", "items": {"type": "string"}},
              "agentName": {"type": "string"},
              "dependencies": {"type": "array", "items": {"type": "integer"}}
            }
          }
        }
      }
    }
  }
}`

var planSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan.schema.json", mustDecodeSchema(planSchemaJSON)); err != nil {
		panic(fmt.Sprintf("planner: add schema resource: %v", err))
	}
	sch, err := c.Compile("plan.schema.json")
	if err != nil {
		panic(fmt.Sprintf("planner: compile schema: %v", err))
	}
	planSchema = sch
}

func mustDecodeSchema(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(fmt.Sprintf("planner: decode schema: %v", err))
	}
	return v
}

func validateSchema(raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	return planSchema.Validate(v)
}

const defaultSystemPrompt = `You are the planning agent. Given a task description, respond with ONLY a
JSON object (optionally inside a fenced code block) with this shape:
{
  "taskType": "implementation|analysis|documentation|mixed",
  "agents": ["architect", "coder", "reviewer"],
  "reasoning": "one paragraph",
  "complexity": {"score": 1-10, "label": "simple|medium|complex"},
  "parallel": {
    "canParallelize": true|false,
    "parts": [{"description": "...", "assignedFiles": ["..."], "agentName": "coder", "dependencies": []}]
  }
}`
