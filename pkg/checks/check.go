// Package checks implements the pluggable validation pipeline. Checks are
// a fixed registry of named variants with pure Run functions over an
// assembled topology graph; adding a check is additive to the registry
// and never changes the order of existing ones.
package checks

import (
	"github.com/netval-app/netval/pkg/topology"
)

// Severity classifies a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Check ids, stable across releases. Remediation templates key off these.
const (
	CheckVlanContinuity      = "VLAN_CONTINUITY"
	CheckVlanOrphanSVI       = "VLAN_ORPHAN_SVI"
	CheckWLCJoinChain        = "WLC_JOIN_CHAIN"
	CheckTrunkNativeMismatch = "TRUNK_NATIVE_MISMATCH"
	CheckMgmtSSHPath         = "MGMT_SSH_PATH"
	CheckRoutingBlackhole    = "ROUTING_BLACKHOLE"
	CheckDHCPReachability    = "DHCP_REACHABILITY"
	CheckDuplexMismatch      = "DUPLEX_MISMATCH"
)

// CheckResult is one structured finding.
type CheckResult struct {
	CheckID      string   `json:"check_id"`
	Severity     Severity `json:"severity"`
	Passed       bool     `json:"passed"`
	DeviceID     string   `json:"device_id,omitempty"`
	Hostname     string   `json:"hostname,omitempty"`
	Interface    string   `json:"interface,omitempty"`
	Detail       string   `json:"detail"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Check is one registered validation.
type Check interface {
	ID() string
	Name() string
	Severity() Severity
	Run(g *topology.Graph) []CheckResult
}

// Registry returns the fixed check list in execution order.
func Registry() []Check {
	return []Check{
		vlanContinuity{},
		vlanOrphanSVI{},
		wlcJoinChain{},
		trunkNativeMismatch{},
		mgmtSSHPath{},
		routingBlackhole{},
		dhcpReachability{},
		duplexMismatch{},
	}
}

// Summary aggregates finding counts.
type Summary struct {
	TotalChecks int `json:"total_checks"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
}

// AuditResult is the self-describing output of one validation run: it can
// be rendered without re-reading the topology, and two runs over unchanged
// inputs are byte-identical when marshaled.
type AuditResult struct {
	Findings     []CheckResult              `json:"findings"`
	Reachability map[string]map[string]bool `json:"reachability"`
	Devices      []string                   `json:"devices"`
	Summary      Summary                    `json:"summary"`
}
