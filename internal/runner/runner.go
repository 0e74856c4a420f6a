package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bgricker/deploykit/internal/artifact"
	"github.com/bgricker/deploykit/internal/chain"
	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/registry"
	"github.com/bgricker/deploykit/internal/report"
)

// ArtifactResolver looks up build artifacts by contract name.
type ArtifactResolver interface {
	Artifact(name string) (artifact.Artifact, error)
}

// Submitter broadcasts contract creation transactions.
type Submitter interface {
	Submit(ctx context.Context, art artifact.Artifact, args []any) (*chain.Pending, error)
}

// Waiter blocks until a creation transaction is confirmed.
type Waiter interface {
	AwaitConfirmation(ctx context.Context, pending *chain.Pending) (chain.Receipt, error)
}

// StepObserver is notified as steps progress.
type StepObserver interface {
	StepStarted(index int, step pipeline.Step)
	StepDeployed(deployment report.Deployment)
}

// Phase names the part of a step that failed.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseArgs     Phase = "argument resolution"
	PhaseArtifact Phase = "artifact resolution"
	PhaseSubmit   Phase = "submission"
	PhaseConfirm  Phase = "confirmation"
	PhaseRegister Phase = "registration"
)

// StepError identifies the step that aborted a run and why.
type StepError struct {
	Index int
	Step  string
	Phase Phase
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) %s: %v", e.Index+1, e.Step, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Options configure a Runner.
type Options struct {
	Resolver  ArtifactResolver
	Submitter Submitter
	Waiter    Waiter
	Observer  StepObserver
	Logger    *slog.Logger
	Now       func() time.Time
	RunID     string
	DryRun    bool
}

// Runner deploys pipeline steps one at a time, feeding each confirmed address
// to the steps after it.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Runner{opts: opts}
}

// RunID identifies this runner's runs in logs and reports.
func (r *Runner) RunID() string {
	return r.opts.RunID
}

// Run validates steps and then deploys them in order. It stops at the first
// failure; contracts confirmed before it stay in the result. The returned
// error is a *pipeline.ConfigurationError when the steps are invalid and a
// *StepError otherwise.
func (r *Runner) Run(ctx context.Context, steps []pipeline.Step) (report.Result, error) {
	start := r.opts.Now()
	result := report.Result{
		RunID:     r.opts.RunID,
		Contracts: []report.Deployment{},
		Summary:   report.Summary{TotalSteps: len(steps)},
	}
	log := r.opts.Logger.With(slog.String("run_id", r.opts.RunID))

	err := r.run(ctx, log, steps, &result)

	result.Summary.Deployed = len(result.Contracts)
	result.Summary.Remaining = len(steps) - len(result.Contracts)
	result.Summary.Duration = r.opts.Now().Sub(start)
	result.Summary.DurationMS = result.Summary.Duration.Milliseconds()
	switch {
	case err == nil:
		log.Info("pipeline complete",
			slog.Int("deployed", result.Summary.Deployed),
			slog.Duration("duration", result.Summary.Duration),
		)
	case isConfigurationError(err):
		result.Summary.ExitCode = 2
	default:
		result.Summary.ExitCode = 1
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, steps []pipeline.Step, result *report.Result) error {
	if err := pipeline.Validate(steps); err != nil {
		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) {
			result.Failure = &report.Failure{Index: cfgErr.Index, Step: cfgErr.Step, Phase: "validation", Error: err.Error()}
		}
		log.Error("pipeline rejected", slog.Any("error", err))
		return err
	}

	reg := registry.New()
	for i, step := range steps {
		fail := func(phase Phase, err error) error {
			result.Failure = &report.Failure{Index: i, Step: step.Name, Phase: string(phase), Error: err.Error()}
			log.Error("deployment step failed",
				slog.Int("index", i),
				slog.String("step", step.Name),
				slog.String("phase", string(phase)),
				slog.Any("error", err),
			)
			return &StepError{Index: i, Step: step.Name, Phase: phase, Err: err}
		}

		if err := ctx.Err(); err != nil {
			return fail(PhaseStart, err)
		}
		r.opts.Observer.StepStarted(i, step)
		stepStart := r.opts.Now()
		log.Debug("deploying step",
			slog.Int("index", i),
			slog.String("step", step.Name),
			slog.String("contract", step.ArtifactName()),
		)

		args, err := pipeline.ResolveArgs(step.Args, reg)
		if err != nil {
			return fail(PhaseArgs, err)
		}

		art, err := r.opts.Resolver.Artifact(step.ArtifactName())
		if err != nil {
			return fail(PhaseArtifact, err)
		}

		pending, err := r.opts.Submitter.Submit(ctx, art, args)
		if err != nil {
			return fail(PhaseSubmit, err)
		}

		receipt, err := r.opts.Waiter.AwaitConfirmation(ctx, pending)
		if err != nil {
			return fail(PhaseConfirm, err)
		}

		if err := reg.Register(step.Name, receipt.Address); err != nil {
			return fail(PhaseRegister, err)
		}

		deployment := report.Deployment{
			Index:       i,
			Step:        step.Name,
			Contract:    step.ArtifactName(),
			Address:     receipt.Address,
			TxHash:      receipt.TxHash,
			BlockNumber: receipt.BlockNumber,
			GasUsed:     receipt.GasUsed,
			Args:        formatArgs(args),
			Duration:    r.opts.Now().Sub(stepStart),
			DryRun:      r.opts.DryRun,
		}
		deployment.DurationMS = deployment.Duration.Milliseconds()
		result.Contracts = append(result.Contracts, deployment)

		log.Info("contract deployed",
			slog.String("step", step.Name),
			slog.String("contract", deployment.Contract),
			slog.String("address", receipt.Address.Hex()),
			slog.String("tx_hash", receipt.TxHash.Hex()),
			slog.Uint64("block_number", receipt.BlockNumber),
			slog.Bool("dry_run", r.opts.DryRun),
		)
		r.opts.Observer.StepDeployed(deployment)
	}
	return nil
}

func isConfigurationError(err error) bool {
	var cfgErr *pipeline.ConfigurationError
	return errors.As(err, &cfgErr)
}

func formatArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case common.Address:
			out[i] = v.Hex()
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

type nopObserver struct{}

func (nopObserver) StepStarted(int, pipeline.Step) {}
func (nopObserver) StepDeployed(report.Deployment) {}
