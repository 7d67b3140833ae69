package checks

import (
	"fmt"

	"github.com/netval-app/netval/pkg/topology"
)

// duplexMismatch warns when both endpoints of a link configure an explicit
// duplex setting and the settings disagree. "auto" and unset are never a
// mismatch.
type duplexMismatch struct{}

func (duplexMismatch) ID() string         { return CheckDuplexMismatch }
func (duplexMismatch) Name() string       { return "Duplex agreement on links" }
func (duplexMismatch) Severity() Severity { return SeverityWarning }

func (c duplexMismatch) Run(g *topology.Graph) []CheckResult {
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
		if !explicitDuplex(aIf.Duplex) || !explicitDuplex(bIf.Duplex) || aIf.Duplex == bIf.Duplex {
			continue
		}
		findings = append(findings, CheckResult{
			CheckID:   c.ID(),
			Severity:  c.Severity(),
			Passed:    false,
			DeviceID:  e.BDevice,
			Hostname:  b.Hostname,
			Interface: e.BInterface,
			Detail: fmt.Sprintf("duplex mismatch: %s %s is %s, %s %s is %s",
				a.Hostname, e.AInterface, aIf.Duplex, b.Hostname, e.BInterface, bIf.Duplex),
			SuggestedFix: fmt.Sprintf("duplex %s", aIf.Duplex),
		})
	}
	if len(findings) == 0 {
		return pass(c.ID(), "duplex settings agree on all links")
	}
	return findings
}

func explicitDuplex(d string) bool {
	return d == "full" || d == "half"
}
