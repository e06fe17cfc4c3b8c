package pipeline

import (
	"fmt"
)

// InputDocument is the reserved input source meaning the raw document.
const InputDocument = "document"

// StageSpec describes one stage of a pipeline: which tool runs, what it
// consumes, and its tool-specific configuration. Input names either
// InputDocument or an earlier stage; empty means the previous stage's
// output (the raw document for the first stage).
type StageSpec struct {
	Name   string         `yaml:"name" json:"name"`
	Tool   string         `yaml:"tool" json:"tool"`
	Input  string         `yaml:"input,omitempty" json:"input,omitempty"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Definition is a named, ordered sequence of stage specs.
type Definition struct {
	Name   string      `yaml:"name" json:"name"`
	Stages []StageSpec `yaml:"stages" json:"stages"`
}

// Validate checks structural invariants: non-empty name and stages, unique
// stage names, no stage consuming a stage that has not yet executed.
// Tool identifiers are resolved later, against the registry in use.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline has no name")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", d.Name)
	}

	seen := make(map[string]bool, len(d.Stages))
	for i, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("pipeline %s: stage %d has no name", d.Name, i)
		}
		if s.Name == InputDocument {
			return fmt.Errorf("pipeline %s: stage name %q is reserved", d.Name, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("pipeline %s: duplicate stage name %q", d.Name, s.Name)
		}
		if s.Tool == "" {
			return fmt.Errorf("pipeline %s: stage %q has no tool", d.Name, s.Name)
		}
		if s.Input != "" && s.Input != InputDocument && !seen[s.Input] {
			return fmt.Errorf("pipeline %s: stage %q consumes %q which has not executed yet",
				d.Name, s.Name, s.Input)
		}
		seen[s.Name] = true
	}

	return nil
}

// InputFor resolves the effective input source of stage i: the declared
// source, or the previous stage's output when undeclared (the raw document
// for the first stage).
func (d *Definition) InputFor(i int) string {
	s := d.Stages[i]
	if s.Input != "" {
		return s.Input
	}
	if i == 0 {
		return InputDocument
	}
	return d.Stages[i-1].Name
}
