package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/deploykit/internal/pipeline"
	"github.com/bgricker/deploykit/internal/report"
)

// JSONRenderer emits structured deployment data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures JSON output schema. Plans carry Steps; deployments carry
// Result.
type Report struct {
	Pipeline string          `json:"pipeline"`
	Path     string          `json:"path"`
	ChainID  uint64          `json:"chain_id,omitempty"`
	Deployer string          `json:"deployer,omitempty"`
	DryRun   bool            `json:"dry_run"`
	Steps    []pipeline.Step `json:"steps,omitempty"`
	Result   *report.Result  `json:"result,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
