// Package job implements the background job lifecycle: persisted job
// records, the one-live-job-per-kind exclusivity rule, cooperative
// cancellation, and the controller the HTTP surface drives.
package job

import (
	"time"
)

// Kind names a category of background work with independent exclusivity.
type Kind string

const (
	KindScan           Kind = "scan"
	KindInvestmentScan Kind = "investment-scan"
	KindEndoArbScan    Kind = "endo-arb-scan"
	KindWatchPoll      Kind = "watch-poll"
)

// Kinds returns the closed set of job kinds.
func Kinds() []Kind {
	return []Kind{KindScan, KindInvestmentScan, KindEndoArbScan, KindWatchPoll}
}

// Valid reports whether k is a known job kind.
func (k Kind) Valid() bool {
	switch k {
	case KindScan, KindInvestmentScan, KindEndoArbScan, KindWatchPoll:
		return true
	default:
		return false
	}
}

// SupportsPause reports whether this kind accepts pause/resume commands.
// The endo-arb scan and the watch poller run short iterations and are
// cancel-only; pausing them must be rejected, not silently ignored.
func (k Kind) SupportsPause() bool {
	switch k {
	case KindScan, KindInvestmentScan:
		return true
	default:
		return false
	}
}

// Status represents the current state of a job record.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Live reports whether the status counts toward the
// one-active-job-per-kind invariant.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusPaused
}

// Terminal reports whether the status is final. Terminal records are
// immutable.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsValidStatus returns true if the status string is a valid Status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusRunning, StatusPaused, StatusCancelled, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// TriggerSource records how a job was started. Informational only.
type TriggerSource string

const (
	SourceManual    TriggerSource = "manual"
	SourceScheduled TriggerSource = "scheduled"
	SourceStartup   TriggerSource = "startup"
)

// Record is the persisted representation of one job execution attempt.
type Record struct {
	ID            string        `json:"id"`
	Kind          Kind          `json:"kind"`
	Status        Status        `json:"status"`
	TriggerSource TriggerSource `json:"trigger_source"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	PausedAt      *time.Time    `json:"paused_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
