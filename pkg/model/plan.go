package model

import "time"

// PlanStatus is the remediation plan state machine:
//
//	pending -> approved -> applying -> applied | failed
//	applied -> rolled_back | superseded
//
// A later successful apply in the same project supersedes every earlier
// applied plan, closing its rollback window.
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanApproved   PlanStatus = "approved"
	PlanApplying   PlanStatus = "applying"
	PlanApplied    PlanStatus = "applied"
	PlanRolledBack PlanStatus = "rolled_back"
	PlanSuperseded PlanStatus = "superseded"
	PlanFailed     PlanStatus = "failed"
)

// CanTransition reports whether the state machine permits moving from s
// to next.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	switch s {
	case PlanPending:
		return next == PlanApproved
	case PlanApproved:
		return next == PlanApplying
	case PlanApplying:
		return next == PlanApplied || next == PlanFailed
	case PlanApplied:
		return next == PlanRolledBack || next == PlanSuperseded
	}
	return false
}

// AcceptsApprovalToggle reports whether item-level approval may still change.
func (s PlanStatus) AcceptsApprovalToggle() bool {
	return s == PlanPending || s == PlanApproved
}

// RemediationItem is one CLI patch targeting a device, with the inverse
// CLI that restores the pre-push snapshot's relevant stanza.
type RemediationItem struct {
	DeviceID      string `json:"device_id"`
	Interface     string `json:"interface,omitempty"`
	SourceCheckID string `json:"source_check_id"`
	CLIPatch      string `json:"cli_patch"`
	RollbackCLI   string `json:"rollback_cli"`
	Approved      bool   `json:"approved"`
}

// RemediationPlan groups per-device patches awaiting approval and execution.
type RemediationPlan struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	Items     []RemediationItem `json:"items"`
	Status    PlanStatus        `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	AppliedAt *time.Time        `json:"applied_at,omitempty"`
}
