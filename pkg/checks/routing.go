package checks

import (
	"fmt"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/topology"
	"github.com/netval-app/netval/pkg/util"
)

// routingBlackhole verifies that every static route's next hop is
// resolvable on one of the device's routed or SVI interfaces. Devices
// without a parsed configuration snapshot contribute nothing.
type routingBlackhole struct{}

func (routingBlackhole) ID() string         { return CheckRoutingBlackhole }
func (routingBlackhole) Name() string       { return "Static route next-hop resolution" }
func (routingBlackhole) Severity() Severity { return SeverityError }

func (c routingBlackhole) Run(g *topology.Graph) []CheckResult {
	var findings []CheckResult
	routesSeen := 0
	for _, id := range g.SortedDeviceIDs() {
		node := g.Nodes[id]
		if node.Config == nil {
			continue
		}
		for _, route := range node.Config.StaticRoutes {
			routesSeen++
			if nextHopResolvable(node, route.NextHop) {
				continue
			}
			findings = append(findings, CheckResult{
				CheckID:  c.ID(),
				Severity: c.Severity(),
				Passed:   false,
				DeviceID: id,
				Hostname: node.Hostname,
				Detail: fmt.Sprintf("static route %s %s via %s has no resolvable next hop on %s",
					route.Prefix, route.Mask, route.NextHop, node.Hostname),
				SuggestedFix: fmt.Sprintf("no ip route %s %s %s", route.Prefix, route.Mask, route.NextHop),
			})
		}
	}
	if len(findings) == 0 && routesSeen > 0 {
		return pass(c.ID(), fmt.Sprintf("all %d static routes resolve", routesSeen))
	}
	return findings
}

// nextHopResolvable reports whether nextHop falls inside a connected
// subnet of any routed interface or SVI on the device. Store rows are
// consulted first, then the parsed config as a fallback.
func nextHopResolvable(node *topology.Node, nextHop string) bool {
	for _, name := range sortedInterfaceNames(node) {
		iface := node.Interfaces[name]
		if iface.IPAddress == "" || iface.IPMask == "" {
			continue
		}
		if iface.Mode != model.ModeRouted && iface.SVIVlan() == 0 {
			continue
		}
		if util.SameSubnet(iface.IPAddress, iface.IPMask, nextHop) {
			return true
		}
	}
	if node.Config != nil {
		for i := range node.Config.Interfaces {
			ci := &node.Config.Interfaces[i]
			if ci.IPAddress == "" || ci.IPMask == "" {
				continue
			}
			if ci.Mode != model.ModeRouted && !ci.IsSVI() {
				continue
			}
			if util.SameSubnet(ci.IPAddress, ci.IPMask, nextHop) {
				return true
			}
		}
	}
	return false
}

// dhcpReachability warns when an access-VLAN SVI has neither a DHCP
// helper address nor any reachable device declaring a DHCP pool.
type dhcpReachability struct{}

func (dhcpReachability) ID() string         { return CheckDHCPReachability }
func (dhcpReachability) Name() string       { return "DHCP server reachability for SVIs" }
func (dhcpReachability) Severity() Severity { return SeverityWarning }

func (c dhcpReachability) Run(g *topology.Graph) []CheckResult {
	reach := g.Reachability()

	poolHosts := make(map[string]bool)
	for _, id := range g.SortedDeviceIDs() {
		node := g.Nodes[id]
		if node.Config != nil && len(node.Config.DHCPPools) > 0 {
			poolHosts[node.Hostname] = true
		}
	}

	var findings []CheckResult
	svisSeen := 0
	for _, id := range g.SortedDeviceIDs() {
		node := g.Nodes[id]
		for _, name := range sortedInterfaceNames(node) {
			iface := node.Interfaces[name]
			if iface.SVIVlan() == 0 {
				continue
			}
			svisSeen++
			if sviHasHelper(node, name) {
				continue
			}
			served := false
			for host := range poolHosts {
				if reach[node.Hostname][host] {
					served = true
					break
				}
			}
			if served {
				continue
			}
			findings = append(findings, CheckResult{
				CheckID:   c.ID(),
				Severity:  c.Severity(),
				Passed:    false,
				DeviceID:  id,
				Hostname:  node.Hostname,
				Interface: name,
				Detail: fmt.Sprintf("SVI %s on %s has no DHCP helper address and no reachable DHCP pool",
					name, node.Hostname),
			})
		}
	}
	if len(findings) == 0 && svisSeen > 0 {
		return pass(c.ID(), fmt.Sprintf("all %d SVIs have a DHCP path", svisSeen))
	}
	return findings
}

func sviHasHelper(node *topology.Node, name string) bool {
	if node.Config == nil {
		return false
	}
	ci := node.Config.Interface(name)
	return ci != nil && len(ci.HelperAddrs) > 0
}
