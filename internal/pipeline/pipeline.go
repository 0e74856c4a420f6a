// Package pipeline describes an ordered set of contract deployments and the
// constructor arguments that wire them together.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pipeline is a parsed deployment definition.
type Pipeline struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step deploys one contract. Name is the logical identity other steps
// reference; Contract names the build artifact and defaults to Name.
type Step struct {
	Name     string    `json:"name"`
	Contract string    `json:"contract"`
	Args     []ArgSpec `json:"args,omitempty"`
}

// ArtifactName returns the artifact to deploy for the step.
func (s Step) ArtifactName() string {
	if s.Contract != "" {
		return s.Contract
	}
	return s.Name
}

// References returns the step names this step depends on, in argument order.
func (s Step) References() []string {
	var refs []string
	for _, arg := range s.Args {
		if arg.Kind == KindReference {
			refs = append(refs, arg.Ref)
		}
	}
	return refs
}

// ArgKind tags an ArgSpec.
type ArgKind int

const (
	// KindLiteral passes Value to the constructor verbatim.
	KindLiteral ArgKind = iota
	// KindReference substitutes the address deployed by the step named Ref.
	KindReference
)

func (k ArgKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// ArgSpec is a constructor argument template.
type ArgSpec struct {
	Kind  ArgKind
	Value any
	Ref   string
}

// Literal returns an argument passed through unchanged.
func Literal(v any) ArgSpec {
	return ArgSpec{Kind: KindLiteral, Value: v}
}

// Reference returns an argument resolved from the address of an earlier step.
func Reference(name string) ArgSpec {
	return ArgSpec{Kind: KindReference, Ref: name}
}

func (a ArgSpec) String() string {
	if a.Kind == KindReference {
		return "ref:" + a.Ref
	}
	return fmt.Sprint(a.Value)
}

// MarshalJSON renders references as {"ref": name} and literals as their value.
func (a ArgSpec) MarshalJSON() ([]byte, error) {
	if a.Kind == KindReference {
		return json.Marshal(map[string]string{"ref": a.Ref})
	}
	return json.Marshal(a.Value)
}

// AddressLookup resolves a deployed contract's address by logical name.
type AddressLookup interface {
	Resolve(name string) (common.Address, error)
}

// Resolve produces the concrete constructor value for the argument.
func (a ArgSpec) Resolve(lookup AddressLookup) (any, error) {
	switch a.Kind {
	case KindLiteral:
		return a.Value, nil
	case KindReference:
		addr, err := lookup.Resolve(a.Ref)
		if err != nil {
			return nil, err
		}
		return addr, nil
	default:
		return nil, fmt.Errorf("unknown argument kind %s", a.Kind)
	}
}

// ResolveArgs resolves every argument in order.
func ResolveArgs(args []ArgSpec, lookup AddressLookup) ([]any, error) {
	out := make([]any, 0, len(args))
	for i, arg := range args {
		v, err := arg.Resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, arg, err)
		}
		out = append(out, v)
	}
	return out, nil
}
