package pipeline

import (
	"context"
	"fmt"
)

// Stage names.
const (
	StageResearch = "research"
	StageWrite    = "write"
)

// TokenFunc receives generated fragments in arrival order. Returning false
// asks the stage to stop generating.
type TokenFunc func(fragment string) bool

// StageFunc is one unit of pipeline work. onToken is nil when the engine does
// not want fragments and the stage should generate in one call.
type StageFunc func(ctx context.Context, deps Deps, state State, onToken TokenFunc) (Update, error)

// StageDefinition describes a stage and the stages that must run before it.
type StageDefinition struct {
	Name         string
	Description  string
	Dependencies []string
	Run          StageFunc
}

// DefaultStages returns research followed by write.
func DefaultStages() []StageDefinition {
	return []StageDefinition{
		{
			Name:        StageResearch,
			Description: "search the web for the topic",
			Run: func(ctx context.Context, deps Deps, state State, _ TokenFunc) (Update, error) {
				return Research(ctx, deps, state)
			},
		},
		{
			Name:         StageWrite,
			Description:  "synthesize a markdown report from the search results",
			Dependencies: []string{StageResearch},
			Run:          Write,
		},
	}
}

// DependencyError reports a stage scheduled before the stages it needs.
type DependencyError struct {
	Stage               string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s: missing dependencies: %v", e.Stage, e.MissingDependencies)
}

// ValidateOrder checks that stages are uniquely named, runnable, and that
// every dependency appears earlier in the slice.
func ValidateOrder(stages []StageDefinition) error {
	if len(stages) == 0 {
		return fmt.Errorf("no stages defined")
	}

	seen := make(map[string]bool, len(stages))
	for _, def := range stages {
		if def.Name == "" {
			return fmt.Errorf("stage without a name")
		}
		if def.Run == nil {
			return fmt.Errorf("stage %s has no run function", def.Name)
		}
		if seen[def.Name] {
			return fmt.Errorf("duplicate stage: %s", def.Name)
		}

		var missing []string
		for _, dep := range def.Dependencies {
			if !seen[dep] {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return &DependencyError{Stage: def.Name, MissingDependencies: missing}
		}
		seen[def.Name] = true
	}
	return nil
}
