package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Defaults applied by NewWaiter when options are zero.
const (
	DefaultConfirmations = 1
	DefaultTimeout       = 5 * time.Minute
	DefaultPollInterval  = 2 * time.Second
)

// WaiterOptions configure confirmation depth and bounds.
type WaiterOptions struct {
	// Confirmations is the number of blocks, including the inclusion block,
	// that must exist before a deployment is trusted.
	Confirmations uint64
	Timeout       time.Duration
	PollInterval  time.Duration
	Logger        *slog.Logger
}

// Waiter blocks until submitted deployments are confirmed.
type Waiter struct {
	backend Backend
	opts    WaiterOptions
}

// NewWaiter returns a Waiter polling backend.
func NewWaiter(backend Backend, opts WaiterOptions) *Waiter {
	if opts.Confirmations == 0 {
		opts.Confirmations = DefaultConfirmations
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Waiter{backend: backend, opts: opts}
}

// AwaitConfirmation waits for pending to be mined successfully and buried
// under the configured number of confirmations.
func (w *Waiter) AwaitConfirmation(ctx context.Context, pending *Pending) (Receipt, error) {
	if pending == nil || pending.Tx == nil {
		return Receipt{}, fmt.Errorf("no transaction to confirm")
	}
	fail := func(reason string, err error) (Receipt, error) {
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("timed out after %s", w.opts.Timeout)
		}
		return Receipt{}, &ConfirmationError{
			Contract: pending.Contract,
			TxHash:   pending.TxHash,
			Reason:   reason,
			Err:      err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, w.backend, pending.Tx)
	if err != nil {
		return fail("wait for receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fail(fmt.Sprintf("transaction reverted in block %d", receipt.BlockNumber.Uint64()), nil)
	}

	w.opts.Logger.Debug("deployment mined",
		slog.String("contract", pending.Contract),
		slog.String("tx_hash", pending.TxHash.Hex()),
		slog.Uint64("block_number", receipt.BlockNumber.Uint64()),
	)

	if w.opts.Confirmations > 1 {
		receipt, err = w.awaitDepth(ctx, pending, receipt)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return fail("transaction dropped by a reorg", err)
			}
			return fail("wait for confirmations", err)
		}
	}

	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		addr = pending.Address
	}
	code, err := w.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return fail("read deployed code", err)
	}
	if len(code) == 0 {
		return fail(fmt.Sprintf("no code at %s", addr.Hex()), nil)
	}

	return Receipt{
		Address:     addr,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// awaitDepth polls the head until the receipt's block has enough
// descendants, then re-reads the receipt in case the inclusion block changed.
func (w *Waiter) awaitDepth(ctx context.Context, pending *Pending, receipt *types.Receipt) (*types.Receipt, error) {
	target := receipt.BlockNumber.Uint64() + w.opts.Confirmations - 1
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		head, err := w.backend.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get block number: %w", err)
		}
		if head >= target {
			break
		}
		w.opts.Logger.Debug("waiting for confirmations",
			slog.String("contract", pending.Contract),
			slog.Uint64("head", head),
			slog.Uint64("target", target),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	latest, err := w.backend.TransactionReceipt(ctx, pending.TxHash)
	if err != nil {
		return nil, err
	}
	if latest.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction reverted after reorg")
	}
	if latest.BlockHash != receipt.BlockHash {
		return w.awaitDepth(ctx, pending, latest)
	}
	return latest, nil
}
