package pipeline

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a pipeline definition that cannot run. It is
// detected before any network call.
type ConfigurationError struct {
	Index  int
	Step   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Index < 0 {
		return "invalid pipeline: " + e.Reason
	}
	if e.Step == "" {
		return fmt.Sprintf("invalid pipeline: step %d: %s", e.Index+1, e.Reason)
	}
	return fmt.Sprintf("invalid pipeline: step %d (%s): %s", e.Index+1, e.Step, e.Reason)
}

// Validate checks that step names are present and unique and that every
// reference names a step appearing strictly earlier.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return &ConfigurationError{Index: -1, Reason: "no steps defined"}
	}

	position := make(map[string]int, len(steps))
	for i, step := range steps {
		name := strings.TrimSpace(step.Name)
		if name == "" {
			return &ConfigurationError{Index: i, Reason: "step name is empty"}
		}
		if name != step.Name {
			return &ConfigurationError{Index: i, Step: step.Name, Reason: "step name has surrounding whitespace"}
		}
		if prev, ok := position[name]; ok {
			return &ConfigurationError{
				Index:  i,
				Step:   name,
				Reason: fmt.Sprintf("duplicate step name, first defined at step %d", prev+1),
			}
		}

		for argIdx, arg := range step.Args {
			if arg.Kind != KindReference {
				continue
			}
			if arg.Ref == name {
				return &ConfigurationError{
					Index:  i,
					Step:   name,
					Reason: fmt.Sprintf("argument %d references itself", argIdx),
				}
			}
			if _, ok := position[arg.Ref]; !ok {
				return &ConfigurationError{
					Index:  i,
					Step:   name,
					Reason: fmt.Sprintf("argument %d references %q which is not deployed by an earlier step", argIdx, arg.Ref),
				}
			}
		}

		position[name] = i
	}
	return nil
}
