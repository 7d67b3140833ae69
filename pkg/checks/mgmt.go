package checks

import (
	"fmt"
	"sort"

	"github.com/netval-app/netval/pkg/topology"
)

// mgmtSSHPath verifies that every device carrying a management IP is
// reachable from the designated management source. The source is the
// lexically-first hostname among devices with a management IP; when no
// device has one, the check has nothing to verify.
type mgmtSSHPath struct{}

func (mgmtSSHPath) ID() string         { return CheckMgmtSSHPath }
func (mgmtSSHPath) Name() string       { return "Management SSH path" }
func (mgmtSSHPath) Severity() Severity { return SeverityError }

func (c mgmtSSHPath) Run(g *topology.Graph) []CheckResult {
	var managed []*topology.Node
	for _, id := range g.SortedDeviceIDs() {
		if g.Nodes[id].ManagementIP != "" {
			managed = append(managed, g.Nodes[id])
		}
	}
	if len(managed) < 2 {
		return nil
	}
	sort.Slice(managed, func(i, j int) bool { return managed[i].Hostname < managed[j].Hostname })
	source := managed[0]

	var findings []CheckResult
	for _, node := range managed[1:] {
		if g.ShortestPath(source.DeviceID, node.DeviceID) != nil {
			continue
		}
		findings = append(findings, CheckResult{
			CheckID:  c.ID(),
			Severity: c.Severity(),
			Passed:   false,
			DeviceID: node.DeviceID,
			Hostname: node.Hostname,
			Detail: fmt.Sprintf("management IP %s on %s is unreachable from management source %s",
				node.ManagementIP, node.Hostname, source.Hostname),
		})
	}
	if len(findings) == 0 {
		return pass(c.ID(), fmt.Sprintf("all managed devices reachable from %s", source.Hostname))
	}
	return findings
}
