package runner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/deploykit/internal/artifact"
	"github.com/bgricker/deploykit/internal/chain"
	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/registry"
	"github.com/bgricker/deploykit/internal/report"
)

type fakeResolver struct {
	calls []string
}

func (f *fakeResolver) Artifact(name string) (artifact.Artifact, error) {
	f.calls = append(f.calls, name)
	if name == "Missing" {
		return artifact.Artifact{}, fmt.Errorf("artifact %q: %w", name, artifact.ErrNotFound)
	}
	return artifact.Artifact{Name: name, ABI: abi.ABI{}, Bytecode: []byte{0x60, 0x00}}, nil
}

// fakeChain hands out sequential addresses and records every call in order.
type fakeChain struct {
	events     []string
	args       map[string][]any
	next       int64
	submitErr  map[string]error
	confirmErr map[string]error
	addressFor map[string]common.Address
	onSubmit   func(contract string)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		args:       map[string][]any{},
		submitErr:  map[string]error{},
		confirmErr: map[string]error{},
		addressFor: map[string]common.Address{},
	}
}

func (f *fakeChain) Submit(_ context.Context, art artifact.Artifact, args []any) (*chain.Pending, error) {
	f.events = append(f.events, "submit "+art.Name)
	if f.onSubmit != nil {
		f.onSubmit(art.Name)
	}
	if err := f.submitErr[art.Name]; err != nil {
		return nil, &chain.SubmissionError{Contract: art.Name, Err: err}
	}
	f.args[art.Name] = args
	f.next++
	return &chain.Pending{
		Contract: art.Name,
		TxHash:   common.BigToHash(big.NewInt(f.next)),
		Address:  common.BigToAddress(big.NewInt(0x1000 + f.next)),
	}, nil
}

func (f *fakeChain) AwaitConfirmation(_ context.Context, pending *chain.Pending) (chain.Receipt, error) {
	f.events = append(f.events, "confirm "+pending.Contract)
	if err := f.confirmErr[pending.Contract]; err != nil {
		return chain.Receipt{}, &chain.ConfirmationError{Contract: pending.Contract, TxHash: pending.TxHash, Reason: "dropped", Err: err}
	}
	f.addressFor[pending.Contract] = pending.Address
	return chain.Receipt{Address: pending.Address, TxHash: pending.TxHash, BlockNumber: uint64(f.next)}, nil
}

func (f *fakeChain) submitted() []string {
	var out []string
	for _, ev := range f.events {
		if name, ok := strings.CutPrefix(ev, "submit "); ok {
			out = append(out, name)
		}
	}
	return out
}

type recordingObserver struct {
	started  []string
	deployed []string
}

func (o *recordingObserver) StepStarted(_ int, step pipeline.Step) {
	o.started = append(o.started, step.Name)
}

func (o *recordingObserver) StepDeployed(d report.Deployment) {
	o.deployed = append(o.deployed, fmt.Sprintf("%s deployed to: %s", d.Step, d.Address.Hex()))
}

func newRunner(resolver *fakeResolver, fc *fakeChain, observer StepObserver) *Runner {
	return New(Options{
		Resolver:  resolver,
		Submitter: fc,
		Waiter:    fc,
		Observer:  observer,
		RunID:     "test-run",
	})
}

func promerheusSteps() []pipeline.Step {
	return []pipeline.Step{
		{Name: "PromerheusToken"},
		{Name: "PromerheusNFT"},
		{Name: "MarketPlace", Args: []pipeline.ArgSpec{
			pipeline.Reference("PromerheusToken"),
			pipeline.Reference("PromerheusNFT"),
		}},
	}
}

func TestRunMarketplaceScenario(t *testing.T) {
	resolver := &fakeResolver{}
	fc := newFakeChain()
	observer := &recordingObserver{}

	result, err := newRunner(resolver, fc, observer).Run(context.Background(), promerheusSteps())
	require.NoError(t, err)

	require.Len(t, result.Contracts, 3)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "test-run", result.RunID)
	assert.Equal(t, 0, result.Summary.ExitCode)
	assert.Equal(t, 3, result.Summary.Deployed)
	assert.Equal(t, 0, result.Summary.Remaining)

	token := result.Contracts[0].Address
	nft := result.Contracts[1].Address
	assert.NotEqual(t, token, nft)
	assert.Equal(t, []any{token, nft}, fc.args["MarketPlace"])
	assert.Equal(t, []string{token.Hex(), nft.Hex()}, result.Contracts[2].Args)

	assert.Equal(t, []string{
		"PromerheusToken deployed to: " + token.Hex(),
		"PromerheusNFT deployed to: " + nft.Hex(),
		"MarketPlace deployed to: " + result.Contracts[2].Address.Hex(),
	}, observer.deployed)
}

func TestRunDependentSubmittedAfterConfirmation(t *testing.T) {
	fc := newFakeChain()
	steps := []pipeline.Step{
		{Name: "A"},
		{Name: "B", Args: []pipeline.ArgSpec{pipeline.Reference("A"), pipeline.Literal("42")}},
	}

	_, err := newRunner(&fakeResolver{}, fc, nil).Run(context.Background(), steps)
	require.NoError(t, err)

	assert.Equal(t, []string{"submit A", "confirm A", "submit B", "confirm B"}, fc.events)
	assert.Equal(t, []any{fc.addressFor["A"], "42"}, fc.args["B"])
}

func TestRunRejectsInvalidPipelineBeforeAnyCall(t *testing.T) {
	cases := map[string][]pipeline.Step{
		"forward reference": {
			{Name: "MarketPlace", Args: []pipeline.ArgSpec{pipeline.Reference("PromerheusToken")}},
			{Name: "PromerheusToken"},
		},
		"self reference": {
			{Name: "Staking", Args: []pipeline.ArgSpec{pipeline.Reference("Staking")}},
		},
		"unknown reference": {
			{Name: "Wager", Args: []pipeline.ArgSpec{pipeline.Reference("Leaderboard")}},
		},
		"duplicate name": {
			{Name: "Staking"},
			{Name: "Staking"},
		},
		"empty": {},
	}

	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			resolver := &fakeResolver{}
			fc := newFakeChain()

			result, err := newRunner(resolver, fc, nil).Run(context.Background(), steps)

			var cfgErr *pipeline.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Empty(t, resolver.calls)
			assert.Empty(t, fc.events)
			assert.Empty(t, result.Contracts)
			assert.Equal(t, 2, result.Summary.ExitCode)
			require.NotNil(t, result.Failure)
			assert.Equal(t, "validation", result.Failure.Phase)
		})
	}
}

func TestRunAbortsOnConfirmationFailure(t *testing.T) {
	fc := newFakeChain()
	fc.confirmErr["PromerheusNFT"] = errors.New("transaction not found")

	result, err := newRunner(&fakeResolver{}, fc, nil).Run(context.Background(), promerheusSteps())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "got %v", err)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "PromerheusNFT", stepErr.Step)
	assert.Equal(t, PhaseConfirm, stepErr.Phase)

	var confErr *chain.ConfirmationError
	assert.True(t, errors.As(err, &confErr))
	assert.Contains(t, err.Error(), "step 2 (PromerheusNFT) confirmation")

	assert.Equal(t, []string{"PromerheusToken", "PromerheusNFT"}, fc.submitted())
	require.Len(t, result.Contracts, 1)
	assert.Equal(t, "PromerheusToken", result.Contracts[0].Step)
	require.NotNil(t, result.Failure)
	assert.Equal(t, "PromerheusNFT", result.Failure.Step)
	assert.Equal(t, 1, result.Summary.ExitCode)
	assert.Equal(t, 2, result.Summary.Remaining)
}

func TestRunSubmissionFailure(t *testing.T) {
	fc := newFakeChain()
	fc.submitErr["Staking"] = errors.New("insufficient funds for gas * price + value")
	steps := []pipeline.Step{
		{Name: "PromerheusToken"},
		{Name: "Staking", Args: []pipeline.ArgSpec{pipeline.Reference("PromerheusToken")}},
		{Name: "Wager"},
	}

	result, err := newRunner(&fakeResolver{}, fc, nil).Run(context.Background(), steps)

	var subErr *chain.SubmissionError
	require.True(t, errors.As(err, &subErr), "got %v", err)
	assert.Equal(t, "Staking", subErr.Contract)
	assert.Contains(t, err.Error(), "insufficient funds")
	assert.NotContains(t, fc.submitted(), "Wager")
	assert.Len(t, result.Contracts, 1)
}

func TestRunArtifactFailure(t *testing.T) {
	fc := newFakeChain()
	steps := []pipeline.Step{
		{Name: "PromerheusToken"},
		{Name: "Leaderboard", Contract: "Missing"},
	}

	_, err := newRunner(&fakeResolver{}, fc, nil).Run(context.Background(), steps)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, PhaseArtifact, stepErr.Phase)
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
	assert.Equal(t, []string{"PromerheusToken"}, fc.submitted())
}

func TestRunUsesContractForArtifact(t *testing.T) {
	resolver := &fakeResolver{}
	fc := newFakeChain()
	steps := []pipeline.Step{
		{Name: "TokenA", Contract: "PromerheusToken"},
		{Name: "TokenB", Contract: "PromerheusToken"},
		{Name: "Vault", Contract: "Staking", Args: []pipeline.ArgSpec{pipeline.Reference("TokenB")}},
	}

	result, err := newRunner(resolver, fc, nil).Run(context.Background(), steps)
	require.NoError(t, err)

	assert.Equal(t, []string{"PromerheusToken", "PromerheusToken", "Staking"}, resolver.calls)
	assert.Equal(t, "TokenB", result.Contracts[1].Step)
	assert.Equal(t, "PromerheusToken", result.Contracts[1].Contract)
	assert.Equal(t, []any{result.Contracts[1].Address}, fc.args["Staking"])
}

func TestRunCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fc := newFakeChain()
	fc.onSubmit = func(contract string) {
		if contract == "PromerheusNFT" {
			cancel()
		}
	}

	result, err := newRunner(&fakeResolver{}, fc, nil).Run(ctx, promerheusSteps())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "got %v", err)
	assert.Equal(t, "MarketPlace", stepErr.Step)
	assert.Equal(t, PhaseStart, stepErr.Phase)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, result.Contracts, 2)
	assert.NotContains(t, fc.submitted(), "MarketPlace")
}

type failingLookup struct{}

func (failingLookup) Resolve(name string) (common.Address, error) {
	return common.Address{}, &registry.UnresolvedReferenceError{Name: name}
}

func TestStepErrorUnwrapsUnresolvedReference(t *testing.T) {
	_, cause := pipeline.ResolveArgs([]pipeline.ArgSpec{pipeline.Reference("PromerheusToken")}, failingLookup{})
	err := &StepError{Index: 2, Step: "MarketPlace", Phase: PhaseArgs, Err: cause}

	var unresolved *registry.UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "PromerheusToken", unresolved.Name)
	assert.True(t, strings.HasPrefix(err.Error(), "step 3 (MarketPlace) argument resolution: "))
}

func TestRunRecordsDurations(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := newFakeChain()
	r := New(Options{
		Resolver:  &fakeResolver{},
		Submitter: fc,
		Waiter:    fc,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})

	result, err := r.Run(context.Background(), []pipeline.Step{{Name: "Wager"}})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, r.RunID(), result.RunID)
	assert.Equal(t, time.Second, result.Contracts[0].Duration)
	assert.Equal(t, int64(1000), result.Contracts[0].DurationMS)
	assert.Equal(t, 3*time.Second, result.Summary.Duration)
}
