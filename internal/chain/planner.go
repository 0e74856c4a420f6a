package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bgricker/deploykit/internal/artifact"
)

// Planner stands in for both Submitter and Waiter during a dry run. Nothing
// is broadcast; each deployment is assigned the address a creation from the
// deployer at the next nonce would receive.
type Planner struct {
	from  common.Address
	nonce uint64
}

// NewPlanner starts predicting addresses for from at nonce.
func NewPlanner(from common.Address, nonce uint64) *Planner {
	return &Planner{from: from, nonce: nonce}
}

// Submit validates and encodes the constructor arguments and reserves the
// next nonce.
func (p *Planner) Submit(_ context.Context, art artifact.Artifact, args []any) (*Pending, error) {
	values, err := CoerceArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, &SubmissionError{Contract: art.Name, Err: err}
	}
	if _, err := art.ABI.Pack("", values...); err != nil {
		return nil, &SubmissionError{Contract: art.Name, Err: fmt.Errorf("encode constructor: %w", err)}
	}

	pending := &Pending{
		Contract: art.Name,
		Address:  crypto.CreateAddress(p.from, p.nonce),
		Nonce:    p.nonce,
	}
	p.nonce++
	return pending, nil
}

// AwaitConfirmation returns the predicted address immediately.
func (p *Planner) AwaitConfirmation(_ context.Context, pending *Pending) (Receipt, error) {
	return Receipt{Address: pending.Address}, nil
}
