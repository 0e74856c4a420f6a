package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bgricker/deploykit/internal/artifact"
)

// SubmitterOptions tune how deployment transactions are built.
type SubmitterOptions struct {
	// GasLimit fixes the gas limit; zero lets the node estimate it.
	GasLimit uint64
	Logger   *slog.Logger
}

// Submitter signs and broadcasts contract creation transactions.
type Submitter struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   *slog.Logger
}

// NewSubmitter binds a signing key to backend. The chain ID is read from the
// backend once so every transaction is replay-protected for that chain.
func NewSubmitter(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts SubmitterOptions) (*Submitter, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Submitter{
		backend:  backend,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: opts.GasLimit,
		logger:   logger,
	}, nil
}

// From returns the deployer address.
func (s *Submitter) From() common.Address {
	return s.from
}

// ChainID returns the chain the submitter signs for.
func (s *Submitter) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Submit encodes the constructor arguments, signs the creation transaction
// and broadcasts it. It does not wait for the transaction to be mined.
func (s *Submitter) Submit(ctx context.Context, art artifact.Artifact, args []any) (*Pending, error) {
	values, err := CoerceArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, &SubmissionError{Contract: art.Name, Err: err}
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, &SubmissionError{Contract: art.Name, Err: fmt.Errorf("create transactor: %w", err)}
	}
	opts.Context = ctx
	opts.GasLimit = s.gasLimit

	addr, tx, _, err := bind.DeployContract(opts, art.ABI, art.Bytecode, s.backend, values...)
	if err != nil {
		return nil, &SubmissionError{Contract: art.Name, Err: err}
	}

	s.logger.Info("deployment transaction submitted",
		slog.String("contract", art.Name),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
		slog.Uint64("gas_limit", tx.Gas()),
		slog.String("expected_address", addr.Hex()),
	)

	return &Pending{
		Contract: art.Name,
		TxHash:   tx.Hash(),
		Address:  addr,
		Nonce:    tx.Nonce(),
		Tx:       tx,
	}, nil
}
