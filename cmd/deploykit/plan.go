package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/deploykit/internal/config"
	"github.com/bgricker/deploykit/internal/output"
	"github.com/bgricker/deploykit/internal/pipeline"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Validate the pipeline and list its steps without touching the network",
		RunE:  runPlan,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pl, err := loadPipeline(root, cfg)
	if err != nil {
		return err
	}
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

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		if err := output.NewPretty(cmd.OutOrStdout()).RenderPlan(pl); err != nil {
			return err
		}
		printWarnings(cmd.ErrOrStderr(), warnings)
	case config.FormatJSON:
		rep := output.Report{
			Pipeline: pl.Name,
			Path:     pl.Path,
			Steps:    pl.Steps,
			Warnings: warnings,
		}
		if err := output.NewJSON(cmd.OutOrStdout()).Render(rep); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
	return nil
}
