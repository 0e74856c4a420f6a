// Package filter narrows a pipeline to the steps selected on the command line.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bgricker/deploykit/internal/pipeline"
)

// Pattern matches step names by case-insensitive substring, or by regular
// expression when written as /expr/.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if len(raw) >= 2 && strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") {
			re, err := regexp.Compile(raw[1 : len(raw)-1])
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the pattern matches s.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Steps keeps the steps matching any only pattern (all steps when only is
// empty) and drops those matching any skip pattern. Order is preserved. A
// kept step whose dependency was dropped fails pipeline validation later.
func Steps(steps []pipeline.Step, only, skip []Pattern) []pipeline.Step {
	if len(steps) == 0 {
		return nil
	}
	result := make([]pipeline.Step, 0, len(steps))
	for _, step := range steps {
		if len(only) > 0 && !matchesStep(step, only) {
			continue
		}
		if len(skip) > 0 && matchesStep(step, skip) {
			continue
		}
		result = append(result, step)
	}
	return result
}

func matchesStep(step pipeline.Step, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(step.Name) || pattern.Match(step.Contract) {
			return true
		}
	}
	return false
}
