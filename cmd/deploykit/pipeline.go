package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bgricker/deploykit/internal/artifact"
	"github.com/bgricker/deploykit/internal/config"
	"github.com/bgricker/deploykit/internal/discovery"
	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/pipeline/filter"
	"github.com/bgricker/deploykit/internal/version"
)

// configError marks failures caused by the invocation rather than the
// network; they exit with status 2.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func configErrorf(format string, args ...any) error {
	return &configError{err: fmt.Errorf(format, args...)}
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", &configError{err: err}
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", &configError{err: err}
	}
	config.ApplyFlags(&cfg, flags)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", &configError{err: err}
	}
	return cfg, root, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadPipeline locates, parses and filters the pipeline definition.
func loadPipeline(root string, cfg config.Config) (pipeline.Pipeline, error) {
	path, err := discovery.PipelineFile(root, cfg.Pipeline)
	if err != nil {
		if errors.Is(err, discovery.ErrNoPipeline) {
			return pipeline.Pipeline{}, configErrorf("no pipeline found; create deploy.yml or specify --pipeline")
		}
		return pipeline.Pipeline{}, &configError{err: err}
	}

	pl, err := pipeline.NewParser(root).Parse(path)
	if err != nil {
		return pipeline.Pipeline{}, &configError{err: err}
	}

	return applyFilters(pl, cfg)
}

func applyFilters(pl pipeline.Pipeline, cfg config.Config) (pipeline.Pipeline, error) {
	onlyPatterns, err := filter.Compile(cfg.OnlySteps)
	if err != nil {
		return pipeline.Pipeline{}, &configError{err: err}
	}
	skipPatterns, err := filter.Compile(cfg.SkipSteps)
	if err != nil {
		return pipeline.Pipeline{}, &configError{err: err}
	}

	pl.Steps = filter.Steps(pl.Steps, onlyPatterns, skipPatterns)
	return pl, nil
}

// artifactSet serves artifacts resolved before the first transaction, so a
// missing or undeployable contract is reported before anything is sent.
type artifactSet map[string]artifact.Artifact

func (s artifactSet) Artifact(name string) (artifact.Artifact, error) {
	art, ok := s[name]
	if !ok {
		return artifact.Artifact{}, fmt.Errorf("%w: %q", artifact.ErrNotFound, name)
	}
	return art, nil
}

func preloadArtifacts(root string, cfg config.Config, steps []pipeline.Step) (artifactSet, error) {
	resolver, err := artifact.NewResolver(discovery.ArtifactsDir(root, cfg.Artifacts))
	if err != nil {
		return nil, err
	}
	set := make(artifactSet, len(steps))
	for i, step := range steps {
		name := step.ArtifactName()
		if _, ok := set[name]; ok {
			continue
		}
		art, err := resolver.Artifact(name)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}
		set[name] = art
	}
	return set, nil
}

func compilerWarnings(root string, cfg config.Config, set artifactSet, steps []pipeline.Step) ([]string, error) {
	if !cfg.Warn.CompilerMismatch {
		return nil, nil
	}
	pin, err := version.Pinned(root)
	if err != nil || pin == "" {
		return nil, err
	}

	seen := make(map[string]struct{}, len(set))
	compilers := make([]version.Info, 0, len(set))
	for _, step := range steps {
		name := step.ArtifactName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		compilers = append(compilers, version.Info{Name: name, Version: set[name].Compiler})
	}
	return version.Mismatches(pin, compilers), nil
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
