package checks

import (
	"fmt"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/topology"
)

// wlcJoinChain verifies that every access point can reach every wireless
// controller and that the AP's access VLAN is carried on every trunk hop
// along the way (the CAPWAP join path).
type wlcJoinChain struct{}

func (wlcJoinChain) ID() string         { return CheckWLCJoinChain }
func (wlcJoinChain) Name() string       { return "AP to WLC join chain" }
func (wlcJoinChain) Severity() Severity { return SeverityError }

func (c wlcJoinChain) Run(g *topology.Graph) []CheckResult {
	aps := g.NodesByRole(model.RoleAP)
	wlcs := g.NodesByRole(model.RoleWLC)
	if len(aps) == 0 || len(wlcs) == 0 {
		return nil
	}

	var findings []CheckResult
	for _, ap := range aps {
		apVlan, uplinkOK := c.apVlan(g, ap)
		if !uplinkOK {
			findings = append(findings, CheckResult{
				CheckID:  c.ID(),
				Severity: c.Severity(),
				Passed:   false,
				DeviceID: ap.DeviceID,
				Hostname: ap.Hostname,
				Detail:   "AP uplink has no access VLAN.",
			})
			continue
		}

		for _, wlc := range wlcs {
			path := g.ShortestPath(ap.DeviceID, wlc.DeviceID)
			if path == nil {
				findings = append(findings, CheckResult{
					CheckID:  c.ID(),
					Severity: c.Severity(),
					Passed:   false,
					DeviceID: ap.DeviceID,
					Hostname: ap.Hostname,
					Detail:   fmt.Sprintf("no path from AP %s to WLC %s", ap.Hostname, wlc.Hostname),
				})
				continue
			}

			blocked := false
			hop := 0
			cur := ap.DeviceID
			for _, e := range path {
				if len(e.AllowList) > 0 {
					hop++
					if !e.Allows(apVlan) {
						node := g.Nodes[cur]
						findings = append(findings, CheckResult{
							CheckID:   c.ID(),
							Severity:  c.Severity(),
							Passed:    false,
							DeviceID:  cur,
							Hostname:  node.Hostname,
							Interface: e.InterfaceOn(cur),
							Detail: fmt.Sprintf("AP VLAN %d missing from trunk at hop %d", apVlan, hop),
							SuggestedFix: fmt.Sprintf("switchport trunk allowed vlan add %d", apVlan),
						})
						blocked = true
						break
					}
				}
				cur = e.Peer(cur)
			}
			if !blocked {
				findings = append(findings, CheckResult{
					CheckID:  c.ID(),
					Severity: SeverityInfo,
					Passed:   true,
					DeviceID: ap.DeviceID,
					Hostname: ap.Hostname,
					Detail: fmt.Sprintf("AP %s can join WLC %s over VLAN %d (%d hops)",
						ap.Hostname, wlc.Hostname, apVlan, len(path)),
				})
			}
		}
	}
	return findings
}

// apVlan finds the AP's uplink access VLAN: the single access-mode port
// whose link peer is a switch. When the AP side carries no interface
// record, the switch side of the same edge is consulted, since the access
// port is usually configured there.
func (wlcJoinChain) apVlan(g *topology.Graph, ap *topology.Node) (int, bool) {
	for _, e := range g.Neighbors(ap.DeviceID) {
		peer := g.Nodes[e.Peer(ap.DeviceID)]
		if peer == nil || peer.Role != model.RoleSwitch {
			continue
		}
		if iface, ok := ap.Interfaces[e.InterfaceOn(ap.DeviceID)]; ok {
			if iface.Mode == model.ModeAccess && iface.VlanAccess > 0 {
				return iface.VlanAccess, true
			}
		}
		if iface, ok := peer.Interfaces[e.InterfaceOn(peer.DeviceID)]; ok {
			if iface.Mode == model.ModeAccess && iface.VlanAccess > 0 {
				return iface.VlanAccess, true
			}
		}
	}
	return 0, false
}
