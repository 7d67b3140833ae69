// Package confparse converts raw IOS-family running configurations into
// the canonical device sub-model. Parsing never fails: unrecognized syntax
// is retained verbatim and reported as per-stanza warnings. Identical
// input bytes always yield an identical sub-model.
package confparse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// Parse normalizes line endings and walks the configuration stanza by
// stanza.
func Parse(raw string) *model.DeviceConfig {
	dc := &model.DeviceConfig{
		Interfaces: []model.ConfigInterface{},
		Vlans:      []model.VlanRecord{},
	}

	lines := strings.Split(util.NormalizeLineEndings(raw), "\n")
	vlanNames := make(map[int]string)
	vlanOrder := []int{}

	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)
		lineNo := i + 1

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "!"):
			i++

		case strings.HasPrefix(trimmed, "hostname "):
			dc.Hostname = strings.TrimSpace(strings.TrimPrefix(trimmed, "hostname "))
			i++

		case strings.HasPrefix(trimmed, "vlan "):
			spec := strings.TrimSpace(strings.TrimPrefix(trimmed, "vlan "))
			ids, warns := util.ExpandVLANRange(spec)
			for _, w := range warns {
				dc.Warnings = append(dc.Warnings, model.ParseWarning{Line: lineNo, Stanza: trimmed, Message: w})
			}
			body, next := collectStanza(lines, i+1)
			name := ""
			for _, b := range body {
				bt := strings.TrimSpace(b)
				if strings.HasPrefix(bt, "name ") {
					name = strings.TrimSpace(strings.TrimPrefix(bt, "name "))
				}
			}
			for _, id := range ids {
				if _, seen := vlanNames[id]; !seen {
					vlanOrder = append(vlanOrder, id)
				}
				if name != "" || vlanNames[id] == "" {
					vlanNames[id] = name
				}
			}
			i = next

		case strings.HasPrefix(trimmed, "interface "):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "interface "))
			body, next := collectStanza(lines, i+1)
			iface := parseInterface(name, body, lineNo, dc)
			dc.Interfaces = append(dc.Interfaces, iface)
			i = next

		case strings.HasPrefix(trimmed, "ip route "):
			parseStaticRoute(trimmed, lineNo, dc)
			i++

		case strings.HasPrefix(trimmed, "router "):
			fields := strings.Fields(trimmed)
			proc := model.RoutingProcess{Protocol: fields[1]}
			if len(fields) > 2 {
				proc.ProcessID = fields[2]
			}
			dc.Routing = append(dc.Routing, proc)
			_, next := collectStanza(lines, i+1)
			i = next

		case strings.HasPrefix(trimmed, "ip dhcp pool "):
			pool := model.DHCPPool{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, "ip dhcp pool "))}
			body, next := collectStanza(lines, i+1)
			for _, b := range body {
				fields := strings.Fields(strings.TrimSpace(b))
				if len(fields) >= 2 && fields[0] == "network" {
					pool.Network = fields[1]
					if len(fields) >= 3 {
						pool.Mask = fields[2]
					}
				}
			}
			dc.DHCPPools = append(dc.DHCPPools, pool)
			i = next

		case strings.HasPrefix(trimmed, "access-list "):
			fields := strings.Fields(trimmed)
			appendACLLine(dc, fields[1], trimmed)
			i++

		case strings.HasPrefix(trimmed, "ip access-list "):
			fields := strings.Fields(trimmed)
			name := fields[len(fields)-1]
			body, next := collectStanza(lines, i+1)
			aclLines := make([]string, 0, len(body))
			for _, b := range body {
				aclLines = append(aclLines, strings.TrimSpace(b))
			}
			dc.ACLs = append(dc.ACLs, model.ACL{Name: name, Lines: aclLines})
			i = next

		case trimmed == "end":
			i++

		default:
			// Unknown top-level stanza: keep it verbatim, warn once.
			body, next := collectStanza(lines, i+1)
			retained := append([]string{line}, body...)
			dc.Unrecognized = append(dc.Unrecognized, strings.Join(retained, "\n"))
			dc.Warnings = append(dc.Warnings, model.ParseWarning{
				Line:    lineNo,
				Stanza:  trimmed,
				Message: "unrecognized stanza retained verbatim",
			})
			i = next
		}
	}

	for _, id := range vlanOrder {
		dc.Vlans = append(dc.Vlans, model.VlanRecord{ID: id, Name: vlanNames[id]})
	}
	sort.Slice(dc.Vlans, func(a, b int) bool { return dc.Vlans[a].ID < dc.Vlans[b].ID })

	return dc
}

// collectStanza gathers the indented body lines following a stanza header,
// returning the body and the index of the next top-level line.
func collectStanza(lines []string, start int) ([]string, int) {
	var body []string
	i := start
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "!" {
			i++
			break
		}
		if trimmed != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			break
		}
		if trimmed != "" {
			body = append(body, line)
		}
		i++
	}
	return body, i
}

func parseInterface(name string, body []string, lineNo int, dc *model.DeviceConfig) model.ConfigInterface {
	iface := model.ConfigInterface{
		Name:  name,
		Mode:  model.ModeUnknown,
		State: model.StateUp,
	}
	switchport := false

	for off, raw := range body {
		line := strings.TrimSpace(raw)
		fields := strings.Fields(line)
		warnLine := lineNo + off + 1

		switch {
		case strings.HasPrefix(line, "description "):
			iface.Description = strings.TrimPrefix(line, "description ")

		case line == "switchport mode access":
			switchport = true
			iface.Mode = model.ModeAccess

		case line == "switchport mode trunk":
			switchport = true
			iface.Mode = model.ModeTrunk

		case strings.HasPrefix(line, "switchport access vlan "):
			switchport = true
			id, err := strconv.Atoi(strings.TrimPrefix(line, "switchport access vlan "))
			if err != nil || !util.ValidVLANID(id) {
				dc.Warnings = append(dc.Warnings, model.ParseWarning{
					Line: warnLine, Stanza: "interface " + name,
					Message: fmt.Sprintf("invalid access vlan in '%s'", line),
				})
				break
			}
			iface.VlanAccess = id
			if iface.Mode == model.ModeUnknown {
				iface.Mode = model.ModeAccess
			}

		case strings.HasPrefix(line, "switchport trunk allowed vlan"):
			switchport = true
			spec := strings.TrimSpace(strings.TrimPrefix(line, "switchport trunk allowed vlan"))
			iface.TrunkAllowed = applyTrunkSpec(iface.TrunkAllowed, spec, warnLine, name, dc)
			if iface.Mode == model.ModeUnknown {
				iface.Mode = model.ModeTrunk
			}

		case strings.HasPrefix(line, "switchport trunk native vlan "):
			switchport = true
			if id, err := strconv.Atoi(strings.TrimPrefix(line, "switchport trunk native vlan ")); err == nil && util.ValidVLANID(id) {
				iface.NativeVlan = id
			} else {
				dc.Warnings = append(dc.Warnings, model.ParseWarning{
					Line: warnLine, Stanza: "interface " + name,
					Message: fmt.Sprintf("invalid native vlan in '%s'", line),
				})
			}

		case line == "switchport":
			switchport = true

		case strings.HasPrefix(line, "duplex "):
			iface.Duplex = strings.TrimPrefix(line, "duplex ")

		case strings.HasPrefix(line, "ip address ") && len(fields) >= 4:
			iface.IPAddress = fields[2]
			iface.IPMask = fields[3]

		case line == "no ip address":
			iface.IPAddress = ""
			iface.IPMask = ""

		case strings.HasPrefix(line, "ip helper-address "):
			iface.HelperAddrs = append(iface.HelperAddrs, strings.TrimPrefix(line, "ip helper-address "))

		case line == "shutdown":
			iface.State = model.StateDown

		case line == "no shutdown":
			iface.State = model.StateUp

		default:
			iface.Unrecognized = append(iface.Unrecognized, line)
		}
	}

	// An interface with an address that is not switching is routed; SVIs
	// are routed by construction.
	if iface.IPAddress != "" && !switchport {
		iface.Mode = model.ModeRouted
	}
	return iface
}

// applyTrunkSpec folds one "switchport trunk allowed vlan ..." line into
// the current allow-list. Keywords add/remove/none/all are recognized;
// none and all both yield the empty set (all trunks carry everything, so
// nothing needs to be listed).
func applyTrunkSpec(current []int, spec string, line int, ifName string, dc *model.DeviceConfig) []int {
	warn := func(msg string) {
		dc.Warnings = append(dc.Warnings, model.ParseWarning{
			Line: line, Stanza: "interface " + ifName, Message: msg,
		})
	}

	fields := strings.Fields(spec)
	if len(fields) == 0 {
		warn("empty trunk allowed vlan spec")
		return current
	}

	expand := func(s string) []int {
		ids, warns := util.ExpandVLANRange(s)
		for _, w := range warns {
			warn(w)
		}
		return ids
	}

	switch fields[0] {
	case "none", "all":
		return nil
	case "add":
		if len(fields) < 2 {
			warn("trunk allowed vlan add without a list")
			return current
		}
		merged := append(append([]int{}, current...), expand(fields[1])...)
		sort.Ints(merged)
		return dedup(merged)
	case "remove":
		if len(fields) < 2 {
			warn("trunk allowed vlan remove without a list")
			return current
		}
		drop := make(map[int]bool)
		for _, id := range expand(fields[1]) {
			drop[id] = true
		}
		var kept []int
		for _, id := range current {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		return kept
	default:
		return expand(fields[0])
	}
}

func dedup(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func parseStaticRoute(line string, lineNo int, dc *model.DeviceConfig) {
	fields := strings.Fields(line)
	// ip route <prefix> <mask> <next-hop>
	if len(fields) < 5 || !util.ValidIPv4(fields[2]) {
		dc.Warnings = append(dc.Warnings, model.ParseWarning{
			Line: lineNo, Stanza: line, Message: "unparseable static route",
		})
		return
	}
	dc.StaticRoutes = append(dc.StaticRoutes, model.StaticRoute{
		Prefix:  fields[2],
		Mask:    fields[3],
		NextHop: fields[4],
	})
}

func appendACLLine(dc *model.DeviceConfig, name, line string) {
	for i := range dc.ACLs {
		if dc.ACLs[i].Name == name {
			dc.ACLs[i].Lines = append(dc.ACLs[i].Lines, line)
			return
		}
	}
	dc.ACLs = append(dc.ACLs, model.ACL{Name: name, Lines: []string{line}})
}
