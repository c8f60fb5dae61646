package domain

import "time"

// StageStatus is the bounded state of one audit stage.
type StageStatus string

const (
	StagePending StageStatus = "PENDING"
	StageRunning StageStatus = "RUNNING"
	StageOK      StageStatus = "OK"
	StageFail    StageStatus = "FAIL"
)

// Done reports whether the stage has reached a terminal status for the
// current run. Terminal stages count toward audit progress.
func (s StageStatus) Done() bool {
	return s == StageOK || s == StageFail
}

// AuditStage is one named unit of an audit run. The stage set is fixed at
// session start; identity is the name.
type AuditStage struct {
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	Repairing bool        `json:"repairing,omitempty"`
}

// AuditRun is the persisted record of one finished audit session.
type AuditRun struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Success    bool         `json:"success"`
	Stages     []AuditStage `json:"stages"`
}
