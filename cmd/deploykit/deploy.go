package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bgricker/deploykit/internal/chain"
	"github.com/bgricker/deploykit/internal/config"
	"github.com/bgricker/deploykit/internal/output"
	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/preflight"
	"github.com/bgricker/deploykit/internal/runner"
)

// network is what a deployment needs from the RPC endpoint.
type network interface {
	chain.Backend
	preflight.Client
}

// dialNetwork connects to rpcURL. Tests replace it with an in-process chain.
var dialNetwork = func(ctx context.Context, rpcURL string) (network, func(), error) {
	client, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy every pipeline step in order, stopping at the first failure",
		RunE:  runDeploy,
	}
}

// deployment bundles the pieces a run is assembled from.
type deployment struct {
	submitter runner.Submitter
	waiter    runner.Waiter
	chainID   uint64
	deployer  common.Address
	warnings  []string
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	base := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	logger := base.With(slog.String("run_id", runID))

	pl, err := loadPipeline(root, cfg)
	if err != nil {
		return err
	}
	// Rejected before dialing so an invalid pipeline never reaches the network.
	if err := pipeline.Validate(pl.Steps); err != nil {
		return err
	}

	set, err := preloadArtifacts(root, cfg, pl.Steps)
	if err != nil {
		return err
	}
	warnings, err := compilerWarnings(root, cfg, set, pl.Steps)
	if err != nil {
		return err
	}

	var (
		d       deployment
		closeFn func()
	)
	if cfg.DryRun {
		d, closeFn, err = planDeployment(ctx, cfg)
	} else {
		d, closeFn, err = liveDeployment(ctx, cfg, logger)
	}
	if closeFn != nil {
		defer closeFn()
	}
	if err != nil {
		return err
	}
	warnings = append(warnings, d.warnings...)

	logger.Info("starting deployment",
		slog.String("pipeline", pl.Name),
		slog.Int("steps", len(pl.Steps)),
		slog.Uint64("chain_id", d.chainID),
		slog.String("deployer", d.deployer.Hex()),
		slog.Bool("dry_run", cfg.DryRun),
	)

	format := strings.ToLower(cfg.Format)
	if format == config.FormatPretty {
		printWarnings(cmd.ErrOrStderr(), warnings)
	}
	opts := runner.Options{
		Resolver:  set,
		Submitter: d.submitter,
		Waiter:    d.waiter,
		Logger:    base,
		RunID:     runID,
		DryRun:    cfg.DryRun,
	}
	var pretty *output.PrettyRenderer
	if format == config.FormatPretty {
		pretty = output.NewPretty(cmd.OutOrStdout())
		opts.Observer = pretty
	}

	result, runErr := runner.New(opts).Run(ctx, pl.Steps)

	switch format {
	case config.FormatPretty:
		if err := pretty.RenderSummary(result); err != nil {
			return err
		}
	case config.FormatJSON:
		rep := output.Report{
			Pipeline: pl.Name,
			Path:     pl.Path,
			ChainID:  d.chainID,
			Deployer: d.deployer.Hex(),
			DryRun:   cfg.DryRun,
			Result:   &result,
			Warnings: warnings,
		}
		if err := output.NewJSON(cmd.OutOrStdout()).Render(rep); err != nil {
			return err
		}
	}

	return runErr
}

// liveDeployment dials the network, runs preflight checks and builds a
// signing submitter and a confirmation waiter.
func liveDeployment(ctx context.Context, cfg config.Config, logger *slog.Logger) (deployment, func(), error) {
	if cfg.PrivateKey == "" {
		return deployment{}, nil, configErrorf("%s_PRIVATE_KEY is not set", config.EnvPrefix)
	}
	if cfg.RPCURL == "" {
		return deployment{}, nil, configErrorf("rpc_url is not set; use --rpc-url, %s_RPC_URL or %s", config.EnvPrefix, config.FileName)
	}
	key, err := chain.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return deployment{}, nil, &configError{err: err}
	}

	client, closeFn, err := dialNetwork(ctx, cfg.RPCURL)
	if err != nil {
		return deployment{}, nil, err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	info, warnings, err := preflight.Check(ctx, client, from, preflight.Options{
		ExpectedChainID: cfg.ChainID,
		WarnUnpinned:    cfg.Warn.UnpinnedChain,
	})
	if err != nil {
		return deployment{}, closeFn, fmt.Errorf("preflight: %w", err)
	}
	logger.Debug("preflight passed",
		slog.Uint64("chain_id", info.ChainID),
		slog.String("balance_eth", info.BalanceETH()),
		slog.Uint64("nonce", info.Nonce),
	)

	submitter, err := chain.NewSubmitter(ctx, client, key, chain.SubmitterOptions{
		GasLimit: cfg.GasLimit,
		Logger:   logger,
	})
	if err != nil {
		return deployment{}, closeFn, err
	}
	waiter := chain.NewWaiter(client, chain.WaiterOptions{
		Confirmations: cfg.Confirmations,
		Timeout:       cfg.Timeout,
		Logger:        logger,
	})

	return deployment{
		submitter: submitter,
		waiter:    waiter,
		chainID:   info.ChainID,
		deployer:  from,
		warnings:  warnings,
	}, closeFn, nil
}

// planDeployment predicts addresses without signing. The deployer comes from
// the private key when present, otherwise from --from; its nonce is read
// from the network when an RPC URL is configured and assumed zero otherwise.
func planDeployment(ctx context.Context, cfg config.Config) (deployment, func(), error) {
	from, err := dryRunDeployer(cfg)
	if err != nil {
		return deployment{}, nil, err
	}

	d := deployment{deployer: from}
	var nonce uint64
	var closeFn func()
	if cfg.RPCURL != "" {
		var client network
		client, closeFn, err = dialNetwork(ctx, cfg.RPCURL)
		if err != nil {
			return deployment{}, nil, err
		}
		info, warnings, err := preflight.Check(ctx, client, from, preflight.Options{
			ExpectedChainID: cfg.ChainID,
			WarnUnpinned:    cfg.Warn.UnpinnedChain,
		})
		if err != nil {
			return deployment{}, closeFn, fmt.Errorf("preflight: %w", err)
		}
		nonce = info.Nonce
		d.chainID = info.ChainID
		d.warnings = warnings
	} else {
		d.chainID = cfg.ChainID
	}

	planner := chain.NewPlanner(from, nonce)
	d.submitter = planner
	d.waiter = planner
	return d, closeFn, nil
}

func dryRunDeployer(cfg config.Config) (common.Address, error) {
	if cfg.PrivateKey != "" {
		key, err := chain.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return common.Address{}, &configError{err: err}
		}
		return crypto.PubkeyToAddress(key.PublicKey), nil
	}
	if cfg.From == "" {
		return common.Address{}, configErrorf("dry run needs %s_PRIVATE_KEY or --from to predict addresses", config.EnvPrefix)
	}
	if !common.IsHexAddress(cfg.From) {
		return common.Address{}, configErrorf("invalid --from address %q", cfg.From)
	}
	return common.HexToAddress(cfg.From), nil
}
