package types

import (
	"time"
)

// RunStatus represents the lifecycle state of one model run
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusConverged RunStatus = "converged"
	StatusFailed    RunStatus = "failed"
	StatusSkipped   RunStatus = "skipped"
)

// Outcome is the physical result of a climate run. A run that completes without an
// error can still end in OutcomeConvergenceFailure.
type Outcome string

const (
	OutcomeConverged          Outcome = "converged"
	OutcomeConvergenceFailure Outcome = "convergence_failure"
)

// ReportMarker returns the literal written to the batch report for an outcome.
func (o Outcome) ReportMarker() string {
	if o == OutcomeConverged {
		return "converged"
	}
	return "FAILED"
}

// RunRecord is one row of the run catalog
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Directory  string    `json:"directory"`
	Grid       string    `json:"grid"`
	PlanetType string    `json:"planet_type"`
	Teq        float64   `json:"teq"`
	Phase      float64   `json:"phase"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
