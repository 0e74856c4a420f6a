package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/report"
)

// PrettyRenderer renders deployments in a human-friendly format. It also
// acts as the runner's step observer so each address is printed as soon as
// it is confirmed.
type PrettyRenderer struct {
	out io.Writer
	err error
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderPlan lists the steps of a pipeline in deployment order.
func (p *PrettyRenderer) RenderPlan(pl pipeline.Pipeline) error {
	if _, err := fmt.Fprintf(p.out, "Pipeline %s\n", decorateName(pl.Name, pl.Path)); err != nil {
		return err
	}
	for i, step := range pl.Steps {
		label := step.Name
		if step.Contract != "" && step.Contract != step.Name {
			label = fmt.Sprintf("%s [%s]", step.Name, step.Contract)
		}
		if _, err := fmt.Fprintf(p.out, "  %d. %s\n", i+1, label); err != nil {
			return err
		}
		for _, arg := range step.Args {
			if _, err := fmt.Fprintf(p.out, "      • %s\n", arg); err != nil {
				return err
			}
		}
	}
	return nil
}

// StepStarted is a no-op; only confirmed deployments are printed.
func (p *PrettyRenderer) StepStarted(int, pipeline.Step) {}

// StepDeployed prints the confirmed address of a step.
func (p *PrettyRenderer) StepDeployed(d report.Deployment) {
	if p.err != nil {
		return
	}
	suffix := ""
	if d.DryRun {
		suffix = " (dry run)"
	}
	_, p.err = fmt.Fprintf(p.out, "%s deployed to: %s%s\n", d.Step, d.Address.Hex(), suffix)
}

// RenderSummary shows the failing step, if any, and totals for the run.
func (p *PrettyRenderer) RenderSummary(result report.Result) error {
	if p.err != nil {
		return p.err
	}
	if f := result.Failure; f != nil {
		var err error
		if f.Index < 0 {
			_, err = fmt.Fprintf(p.out, "%s pipeline rejected\n", statusGlyph("failed"))
		} else {
			_, err = fmt.Fprintf(p.out, "%s step %d (%s) failed during %s\n", statusGlyph("failed"), f.Index+1, f.Step, f.Phase)
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(p.out, "      error: %s\n", indent(f.Error, "      ")); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(p.out, "SUMMARY: %d deployed, %d remaining (%s)\n",
		result.Summary.Deployed, result.Summary.Remaining, formatDuration(result.Summary.Duration))
	return err
}

func decorateName(name, path string) string {
	if path == "" || name == path {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func statusGlyph(status string) string {
	switch status {
	case "deployed":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "•"
	}
}

func indent(s, pad string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
