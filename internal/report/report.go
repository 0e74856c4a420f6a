package report

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Deployment records a contract confirmed by a step.
type Deployment struct {
	Index       int            `json:"index"`
	Step        string         `json:"step"`
	Contract    string         `json:"contract"`
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"tx_hash,omitempty"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	GasUsed     uint64         `json:"gas_used,omitempty"`
	Args        []string       `json:"args,omitempty"`
	Duration    time.Duration  `json:"-"`
	DurationMS  int64          `json:"duration_ms"`
	DryRun      bool           `json:"dry_run"`
}

// Failure describes the step that aborted a run.
type Failure struct {
	Index int    `json:"index"`
	Step  string `json:"step"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// Summary aggregates a run.
type Summary struct {
	TotalSteps int           `json:"total_steps"`
	Deployed   int           `json:"deployed"`
	Remaining  int           `json:"remaining"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	ExitCode   int           `json:"exit_code"`
}

// Result is the outcome of a pipeline run. Contracts is in deployment order
// and holds everything confirmed before a failure.
type Result struct {
	RunID     string       `json:"run_id"`
	Contracts []Deployment `json:"contracts"`
	Failure   *Failure     `json:"failure,omitempty"`
	Summary   Summary      `json:"summary"`
}

// Succeeded reports whether every step deployed.
func (r Result) Succeeded() bool {
	return r.Failure == nil
}
