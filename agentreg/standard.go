package agentreg

// Standard returns a Registry pre-populated with the seven standard agents
// named in spec.md §4.1: architect, coder, reviewer, security, documenter,
// tester, performance. Platform-specific agent sets (e.g. a ServiceNow
// flavor) are expected to call Register with additional capabilities after
// Standard returns, before the registry is shared across goroutines.
func Standard() (*Registry, error) {
	r := New()
	for _, cap := range standardCapabilities() {
		if err := r.Register(cap); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func standardCapabilities() []Capability {
	return []Capability{
		{
			Name:                 "architect",
			Description:          "Designs the implementation approach and breaks work into a plan before code is written.",
			Tags:                 []string{"planning", "design"},
			ToolScopes:           []string{"fs:read", "repo:search"},
			CostEstimate:         0.02,
			PreferredModelTier:   "high-reasoning",
			SystemPromptTemplate: architectPrompt,
		},
		{
			Name:                 "coder",
			Description:          "Implements the change described by the task and any prior agent turns.",
			Tags:                 []string{"implementation"},
			ToolScopes:           []string{"fs:read", "fs:write", "shell:exec", "repo:search"},
			CostEstimate:         0.05,
			PreferredModelTier:   "default",
			SystemPromptTemplate: coderPrompt,
		},
		{
			Name:                 "reviewer",
			Description:          "Reviews the working tree for correctness and completeness relative to the task.",
			Tags:                 []string{"review"},
			ToolScopes:           []string{"fs:read", "repo:search"},
			CostEstimate:         0.02,
			PreferredModelTier:   "default",
			SystemPromptTemplate: reviewerPrompt,
		},
		{
			Name:                 "security",
			Description:          "Audits the change for common vulnerability classes before merge.",
			Tags:                 []string{"review", "security"},
			ToolScopes:           []string{"fs:read", "repo:search"},
			CostEstimate:         0.03,
			PreferredModelTier:   "high-reasoning",
			SystemPromptTemplate: securityPrompt,
		},
		{
			Name:                 "documenter",
			Description:          "Writes or updates documentation to reflect the change.",
			Tags:                 []string{"documentation"},
			ToolScopes:           []string{"fs:read", "fs:write"},
			CostEstimate:         0.02,
			PreferredModelTier:   "default",
			SystemPromptTemplate: documenterPrompt,
		},
		{
			Name:                 "tester",
			Description:          "Writes or runs tests covering the change.",
			Tags:                 []string{"testing"},
			ToolScopes:           []string{"fs:read", "fs:write", "shell:exec"},
			CostEstimate:         0.04,
			PreferredModelTier:   "default",
			SystemPromptTemplate: testerPrompt,
		},
		{
			Name:                 "performance",
			Description:          "Evaluates and improves the performance characteristics of the change.",
			Tags:                 []string{"review", "performance"},
			ToolScopes:           []string{"fs:read", "shell:exec"},
			CostEstimate:         0.03,
			PreferredModelTier:   "default",
			SystemPromptTemplate: performancePrompt,
		},
	}
}

const (
	architectPrompt = `You are the architect agent. Study the task and the working tree,
then describe a concrete implementation plan. Do not write code yourself unless a small
spike is required to validate the approach.`

	coderPrompt = `You are the coder agent. Implement the requested change in the working
tree, following any plan left by a prior architect turn. Keep changes scoped to the task.`

	reviewerPrompt = `You are the reviewer agent. Inspect the working tree's diff against the
task description and flag correctness or completeness problems. Do not fix issues yourself;
hand off to coder if changes are needed.`

	securityPrompt = `You are the security agent. Audit the working tree's diff for common
vulnerability classes (injection, unsafe deserialization, secret leakage, auth bypass) relevant
to the change. Hand off to coder if fixes are required.`

	documenterPrompt = `You are the documenter agent. Update documentation (README, doc
comments, changelogs) to reflect the change made in this task.`

	testerPrompt = `You are the tester agent. Write or update tests covering the change and
run the project's test suite, reporting failures.`

	performancePrompt = `You are the performance agent. Evaluate the change for performance
regressions and propose or apply targeted optimizations where justified by the task.`
)
