package engine

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Run statuses. idle -> running -> {success, failed}; terminal runs are
// retained until the next start overwrites them.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run kinds. Install and update share the pipeline machinery but are
// separate singletons.
const (
	KindInstall = "install"
	KindUpdate  = "update"
)

// Failure reasons, so the frontend can branch on remediation instead of
// pattern-matching error strings.
const (
	ReasonPortInUse    = "port_in_use"
	ReasonPrecondition = "precondition"
	ReasonStepFailed   = "step_failed"
	ReasonCancelled    = "cancelled"
)

// Run is the mutable record of one pipeline execution. Progress is
// monotonically non-decreasing while the run is active.
type Run struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step"`
	Reason      string     `json:"reason,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the run has finished, either way.
func (r *Run) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// LogLine is one persisted line of pipeline output.
type LogLine struct {
	ID        int       `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
