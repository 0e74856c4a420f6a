package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parser loads pipeline definitions from disk.
type Parser struct {
	Root string
}

// NewParser constructs a Parser that resolves relative paths against root.
func NewParser(root string) *Parser {
	return &Parser{Root: root}
}

// Parse reads the pipeline file at path.
func (p *Parser) Parse(path string) (Pipeline, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.Root, path)
	}
	f, err := os.Open(full)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open pipeline %q: %w", path, err)
	}
	defer f.Close()
	return Decode(f, path)
}

// Decode parses a pipeline document. displayPath is used in messages only.
func Decode(r io.Reader, displayPath string) (Pipeline, error) {
	var doc pipelineDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Pipeline{}, fmt.Errorf("parse pipeline %q: empty document", displayPath)
		}
		return Pipeline{}, fmt.Errorf("parse pipeline %q: %w", displayPath, err)
	}

	pl := Pipeline{Path: displayPath, Name: doc.Name}
	if pl.Name == "" {
		pl.Name = strings.TrimSuffix(filepath.Base(displayPath), filepath.Ext(displayPath))
	}

	pl.Steps = make([]Step, 0, len(doc.Steps))
	for idx, stepDoc := range doc.Steps {
		step := Step{
			Name:     stepDoc.Name,
			Contract: stepDoc.Contract,
		}
		if step.Name == "" {
			step.Name = stepDoc.Contract
		}
		if step.Contract == "" {
			step.Contract = step.Name
		}

		step.Args = make([]ArgSpec, 0, len(stepDoc.Args))
		for argIdx := range stepDoc.Args {
			arg, err := decodeArg(&stepDoc.Args[argIdx])
			if err != nil {
				return Pipeline{}, &ConfigurationError{
					Index:  idx,
					Step:   step.Name,
					Reason: fmt.Sprintf("argument %d (line %d): %v", argIdx, stepDoc.Args[argIdx].Line, err),
				}
			}
			step.Args = append(step.Args, arg)
		}
		pl.Steps = append(pl.Steps, step)
	}

	return pl, nil
}

type pipelineDocument struct {
	Name  string         `yaml:"name"`
	Steps []stepDocument `yaml:"steps"`
}

type stepDocument struct {
	Name     string      `yaml:"name"`
	Contract string      `yaml:"contract"`
	Args     []yaml.Node `yaml:"args"`
}

func decodeArg(node *yaml.Node) (ArgSpec, error) {
	if node.Kind != yaml.MappingNode {
		v, err := decodeLiteral(node)
		if err != nil {
			return ArgSpec{}, err
		}
		return Literal(v), nil
	}

	if len(node.Content) != 2 {
		return ArgSpec{}, fmt.Errorf("expected a single key (ref or value)")
	}
	key, value := node.Content[0], node.Content[1]
	switch key.Value {
	case "ref":
		if value.Kind != yaml.ScalarNode || strings.TrimSpace(value.Value) == "" {
			return ArgSpec{}, fmt.Errorf("ref must name a step")
		}
		return Reference(value.Value), nil
	case "value":
		v, err := decodeLiteral(value)
		if err != nil {
			return ArgSpec{}, err
		}
		return Literal(v), nil
	default:
		return ArgSpec{}, fmt.Errorf("unknown argument key %q", key.Value)
	}
}

// decodeLiteral keeps numeric scalars as their source text so large integers
// and hex values reach ABI coercion without losing precision.
func decodeLiteral(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, fmt.Errorf("null is not a valid constructor argument")
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		default:
			return node.Value, nil
		}
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := decodeLiteral(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.AliasNode:
		return decodeLiteral(node.Alias)
	default:
		return nil, fmt.Errorf("unsupported argument form")
	}
}
