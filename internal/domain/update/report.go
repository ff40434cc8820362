// Package update describes the outcome of a self-update run.
package update

import (
	"errors"
	"time"
)

// Step names, in execution order.
const (
	StepMaintenance = "maintenance"
	StepSnapshot    = "snapshot"
	StepPull        = "pull"
	StepInstall     = "install"
	StepMigrate     = "migrate"
	StepRebuild     = "rebuild"
	StepResume      = "resume"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepStatusDone        StepStatus = "done"
	StepStatusSkipped     StepStatus = "skipped"
	StepStatusFailed      StepStatus = "failed"
	StepStatusCompensated StepStatus = "compensated"
)

// MaxStepOutput bounds the command output kept per step.
const MaxStepOutput = 4 << 10

// StepResult records one executed step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// TruncateOutput keeps the tail of out, where command errors usually are.
func TruncateOutput(out string) string {
	if len(out) <= MaxStepOutput {
		return out
	}
	return "..." + out[len(out)-MaxStepOutput:]
}

// Report is the result of a self-update run.
type Report struct {
	Success        bool         `json:"success"`
	FromRevision   string       `json:"from_revision,omitempty"`
	ToRevision     string       `json:"to_revision,omitempty"`
	Steps          []StepResult `json:"steps"`
	Error          string       `json:"error,omitempty"`
	RolledBack     bool         `json:"rolled_back"`
	RollbackFailed bool         `json:"rollback_failed,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
}

// Step returns the last result recorded for name.
func (r *Report) Step(name string) (StepResult, bool) {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].Name == name {
			return r.Steps[i], true
		}
	}
	return StepResult{}, false
}

// Availability is the result of comparing the checkout with its upstream.
type Availability struct {
	Available       bool   `json:"available"`
	CurrentRevision string `json:"current_revision"`
	LatestRevision  string `json:"latest_revision"`
	CommitsBehind   int    `json:"commits_behind"`
	LatestMessage   string `json:"latest_message,omitempty"`
}

var (
	// ErrUpdateInProgress is returned when an update is already running.
	ErrUpdateInProgress = errors.New("update already in progress")

	// ErrUpdateFailed wraps the step error of a failed, rolled back update.
	ErrUpdateFailed = errors.New("update failed")
)
