// Package preflight checks the target network before any transaction is sent.
package preflight

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// Client is the subset of the RPC client preflight needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Options select which checks run.
type Options struct {
	// ExpectedChainID pins the network; zero accepts any chain.
	ExpectedChainID uint64
	// WarnUnpinned adds a warning when ExpectedChainID is zero.
	WarnUnpinned bool
}

// Info describes the deployer's view of the network.
type Info struct {
	ChainID uint64
	From    common.Address
	Balance *big.Int
	Nonce   uint64
}

// BalanceETH formats the balance in ether.
func (i Info) BalanceETH() string {
	if i.Balance == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(i.Balance), big.NewFloat(params.Ether))
	return f.Text('f', 6)
}

// Check verifies the chain ID and that the deployer can pay for gas. Hard
// failures are returned as errors; softer concerns come back as warnings.
func Check(ctx context.Context, client Client, from common.Address, opts Options) (Info, []string, error) {
	info := Info{From: from}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return info, nil, fmt.Errorf("get chain ID: %w", err)
	}
	info.ChainID = chainID.Uint64()

	var warnings []string
	if opts.ExpectedChainID != 0 {
		if info.ChainID != opts.ExpectedChainID {
			return info, nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", opts.ExpectedChainID, info.ChainID)
		}
	} else if opts.WarnUnpinned {
		warnings = append(warnings, fmt.Sprintf("chain_id is not pinned; deploying to chain %d", info.ChainID))
	}

	balance, err := client.BalanceAt(ctx, from, nil)
	if err != nil {
		return info, warnings, fmt.Errorf("get balance: %w", err)
	}
	info.Balance = balance
	if balance.Sign() == 0 {
		return info, warnings, fmt.Errorf("deployer %s has no balance on chain %d", from.Hex(), info.ChainID)
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return info, warnings, fmt.Errorf("get nonce: %w", err)
	}
	info.Nonce = nonce

	return info, warnings, nil
}
