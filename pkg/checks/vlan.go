package checks

import (
	"fmt"
	"sort"

	"github.com/netval-app/netval/pkg/topology"
)

// sortedEdges returns the graph's edges in deterministic order.
func sortedEdges(g *topology.Graph) []*topology.Edge {
	edges := append([]*topology.Edge{}, g.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].ADevice != edges[j].ADevice {
			return edges[i].ADevice < edges[j].ADevice
		}
		return edges[i].LinkID < edges[j].LinkID
	})
	return edges
}

// vlanFix is the remediation fragment declaring a missing VLAN.
func vlanFix(vlan int) string {
	return fmt.Sprintf("vlan %d\n name VLAN%d", vlan, vlan)
}

// vlanContinuity verifies that every VLAN allowed on a link is present in
// both endpoints' VLAN databases.
type vlanContinuity struct{}

func (vlanContinuity) ID() string         { return CheckVlanContinuity }
func (vlanContinuity) Name() string       { return "VLAN continuity across links" }
func (vlanContinuity) Severity() Severity { return SeverityError }

func (c vlanContinuity) Run(g *topology.Graph) []CheckResult {
	var findings []CheckResult
	for _, e := range sortedEdges(g) {
		allow := append([]int{}, e.AllowList...)
		sort.Ints(allow)
		for _, endpoint := range []string{e.ADevice, e.BDevice} {
			node, ok := g.Nodes[endpoint]
			if !ok {
				continue
			}
			for _, vlan := range allow {
				if node.Vlans[vlan] {
					continue
				}
				findings = append(findings, CheckResult{
					CheckID:   c.ID(),
					Severity:  c.Severity(),
					Passed:    false,
					DeviceID:  endpoint,
					Hostname:  node.Hostname,
					Interface: e.InterfaceOn(endpoint),
					Detail: fmt.Sprintf("VLAN %d allowed on link but missing from %s VLAN database",
						vlan, node.Hostname),
					SuggestedFix: vlanFix(vlan),
				})
			}
		}
	}
	if len(findings) == 0 {
		return pass(c.ID(), fmt.Sprintf("all trunk VLANs continuous across %d links", len(g.Edges)))
	}
	return findings
}

// vlanOrphanSVI verifies that every SVI's VLAN exists in the owning
// device's VLAN database.
type vlanOrphanSVI struct{}

func (vlanOrphanSVI) ID() string         { return CheckVlanOrphanSVI }
func (vlanOrphanSVI) Name() string       { return "SVIs anchored to existing VLANs" }
func (vlanOrphanSVI) Severity() Severity { return SeverityError }

func (c vlanOrphanSVI) Run(g *topology.Graph) []CheckResult {
	var findings []CheckResult
	for _, id := range g.SortedDeviceIDs() {
		node := g.Nodes[id]
		for _, name := range sortedInterfaceNames(node) {
			iface := node.Interfaces[name]
			vlan := iface.SVIVlan()
			if vlan == 0 || node.Vlans[vlan] {
				continue
			}
			findings = append(findings, CheckResult{
				CheckID:   c.ID(),
				Severity:  c.Severity(),
				Passed:    false,
				DeviceID:  id,
				Hostname:  node.Hostname,
				Interface: name,
				Detail: fmt.Sprintf("SVI %s has an IP but VLAN %d is not in %s VLAN database",
					name, vlan, node.Hostname),
				SuggestedFix: vlanFix(vlan),
			})
		}
	}
	if len(findings) == 0 {
		return pass(c.ID(), "every SVI is anchored to a present VLAN")
	}
	return findings
}

func sortedInterfaceNames(node *topology.Node) []string {
	names := make([]string, 0, len(node.Interfaces))
	for name := range node.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// trunkNativeMismatch verifies that explicit native VLANs agree on both
// ends of a link.
type trunkNativeMismatch struct{}

func (trunkNativeMismatch) ID() string         { return CheckTrunkNativeMismatch }
func (trunkNativeMismatch) Name() string       { return "Native VLAN agreement on trunks" }
func (trunkNativeMismatch) Severity() Severity { return SeverityWarning }

func (c trunkNativeMismatch) Run(g *topology.Graph) []CheckResult {
	var findings []CheckResult
	for _, e := range sortedEdges(g) {
		a, aok := g.Nodes[e.ADevice]
		b, bok := g.Nodes[e.BDevice]
		if !aok || !bok {
			continue
		}
		aIf, aHas := a.Interfaces[e.AInterface]
		bIf, bHas := b.Interfaces[e.BInterface]
		if !aHas || !bHas {
			continue
		}
		if aIf.NativeVlan == 0 || bIf.NativeVlan == 0 || aIf.NativeVlan == bIf.NativeVlan {
			continue
		}
		findings = append(findings, CheckResult{
			CheckID:   c.ID(),
			Severity:  c.Severity(),
			Passed:    false,
			DeviceID:  e.BDevice,
			Hostname:  b.Hostname,
			Interface: e.BInterface,
			Detail: fmt.Sprintf("native VLAN mismatch: %s %s uses %d, %s %s uses %d",
				a.Hostname, e.AInterface, aIf.NativeVlan, b.Hostname, e.BInterface, bIf.NativeVlan),
			SuggestedFix: fmt.Sprintf("switchport trunk native vlan %d", aIf.NativeVlan),
		})
	}
	if len(findings) == 0 {
		return pass(c.ID(), "native VLANs agree on all trunks")
	}
	return findings
}
