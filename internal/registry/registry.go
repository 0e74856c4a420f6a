// Package registry records the addresses of contracts deployed during a
// single pipeline run.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DuplicateRegistrationError is returned when a name is registered twice.
type DuplicateRegistrationError struct {
	Name     string
	Existing common.Address
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("contract %q already registered at %s", e.Name, e.Existing.Hex())
}

// UnresolvedReferenceError is returned when a lookup names a contract that
// has not been registered yet. It indicates a dependency-ordering bug in the
// pipeline definition.
type UnresolvedReferenceError struct {
	Name string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("contract %q has not been deployed in this run", e.Name)
}

// Entry is one registered contract.
type Entry struct {
	Name    string
	Address common.Address
}

// Registry maps logical contract names to deployed addresses. Entries are
// append-only and kept in insertion order. It is not safe for concurrent use;
// the runner only touches it from one goroutine.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register records addr under name.
func (r *Registry) Register(name string, addr common.Address) error {
	if i, ok := r.index[name]; ok {
		return &DuplicateRegistrationError{Name: name, Existing: r.entries[i].Address}
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Address: addr})
	return nil
}

// Resolve returns the address registered under name.
func (r *Registry) Resolve(name string) (common.Address, error) {
	i, ok := r.index[name]
	if !ok {
		return common.Address{}, &UnresolvedReferenceError{Name: name}
	}
	return r.entries[i].Address, nil
}

// Len reports the number of registered contracts.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the registered contracts in insertion order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}
