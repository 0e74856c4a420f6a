package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deploykit",
		Short:         "Deploykit deploys interdependent contracts in dependency order",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &configError{err: err}
	})

	persistent := cmd.PersistentFlags()
	persistent.StringP("pipeline", "f", "", "pipeline definition file (default deploy.yml)")
	persistent.String("artifacts", "", "compiled artifacts directory (default artifacts)")
	persistent.String("rpc-url", "", "JSON-RPC endpoint of the target network")
	persistent.Uint64("chain-id", 0, "expected chain ID; deployment aborts on mismatch")
	persistent.Uint64("confirmations", 0, "blocks a deployment must be buried under (default 1)")
	persistent.Duration("timeout", 0, "maximum wait for each confirmation (default 5m)")
	persistent.Uint64("gas-limit", 0, "fixed gas limit per deployment (default estimate)")
	persistent.String("from", "", "deployer address used to plan a dry run without a key")
	persistent.StringArray("only-step", nil, "include only matching steps")
	persistent.StringArray("skip-step", nil, "exclude matching steps")
	persistent.Bool("dry-run", false, "predict addresses without sending transactions")
	persistent.BoolP("verbose", "v", false, "enable debug logging")
	persistent.String("format", "pretty", "output format (pretty|json)")

	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newDeployCmd())

	return cmd
}
