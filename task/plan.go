package task

import "fmt"

type (
	// TaskType classifies the nature of the work requested.
	TaskType string

	// ComplexityLabel is the human-readable complexity bucket; Complexity
	// carries the numeric score backing it.
	ComplexityLabel string

	// Plan is the Planner's single structured output for a task, produced
	// once at the start of execution.
	Plan struct {
		TaskType        TaskType
		Complexity      ComplexityLabel
		ComplexityScore int
		Agents          []string
		Parallelizable  bool
		Parts           []Part
		Reasoning       string
	}

	// Part describes one independent subtask of a parallelizable plan.
	Part struct {
		Description   string
		AssignedFiles []string
		AgentName     string
		// Dependencies lists the 0-based indices of parts that must merge
		// before this part, per spec.md §9's acyclicity requirement.
		Dependencies []int
	}
)

const (
	TaskTypeImplementation TaskType = "implementation"
	TaskTypeAnalysis       TaskType = "analysis"
	TaskTypeDocumentation  TaskType = "documentation"
	TaskTypeMixed          TaskType = "mixed"

	ComplexitySimple  ComplexityLabel = "simple"
	ComplexityMedium  ComplexityLabel = "medium"
	ComplexityComplex ComplexityLabel = "complex"
)

// DefaultPlan is the fallback used whenever the Planner's agent output
// cannot be obtained, parsed or schema-validated (spec.md §4.5 step 2). A
// plan that fails the heuristic guard is kept, with parallelization turned
// off, rather than replaced by DefaultPlan.
func DefaultPlan() Plan {
	return Plan{
		TaskType:        TaskTypeImplementation,
		Complexity:      ComplexityMedium,
		ComplexityScore: 5,
		Agents:          []string{"architect", "coder", "reviewer"},
		Parallelizable:  false,
	}
}

// Validate checks the Plan invariant from spec.md §3: when parallelizable,
// 2 <= len(parts) <= 5, assigned files are pairwise disjoint across parts,
// and the dependency graph over parts is acyclic.
func (p *Plan) Validate() error {
	if !p.Parallelizable {
		return nil
	}
	if n := len(p.Parts); n < 2 || n > 5 {
		return fmt.Errorf("plan: parallel plan must have 2-5 parts, got %d", n)
	}
	seen := make(map[string]int, 16)
	for i, part := range p.Parts {
		for _, f := range part.AssignedFiles {
			if j, ok := seen[f]; ok {
				return fmt.Errorf("plan: file %q assigned to both part %d and part %d", f, j, i)
			}
			seen[f] = i
		}
	}
	if err := checkAcyclic(p.Parts); err != nil {
		return err
	}
	return nil
}

// checkAcyclic runs a straightforward DFS cycle check over the
// part-dependency graph.
func checkAcyclic(parts []Part) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(parts))
	var visit func(i int) error
	visit = func(i int) error {
		if i < 0 || i >= len(parts) {
			return fmt.Errorf("plan: dependency index %d out of range", i)
		}
		switch color[i] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("plan: dependency cycle detected at part %d", i)
		}
		color[i] = gray
		for _, dep := range parts[i].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[i] = black
		return nil
	}
	for i := range parts {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
