// Package render emits deterministic IOS-style CLI from the device
// sub-model. Rendering is pure: equal input produces byte-identical
// output, with VLANs sorted by id, interfaces by kind and numeric path,
// and trunk allow-lists compacted numerically.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// Device renders a full CLI block for one parsed device sub-model.
func Device(dc *model.DeviceConfig) string {
	var b strings.Builder

	if dc.Hostname != "" {
		fmt.Fprintf(&b, "hostname %s\n!\n", dc.Hostname)
	}

	vlans := append([]model.VlanRecord{}, dc.Vlans...)
	sort.Slice(vlans, func(i, j int) bool { return vlans[i].ID < vlans[j].ID })
	for _, v := range vlans {
		fmt.Fprintf(&b, "vlan %d\n", v.ID)
		if v.Name != "" {
			fmt.Fprintf(&b, " name %s\n", v.Name)
		}
		b.WriteString("!\n")
	}

	ifaces := append([]model.ConfigInterface{}, dc.Interfaces...)
	sort.Slice(ifaces, func(i, j int) bool {
		return model.LessInterfaceName(ifaces[i].Name, ifaces[j].Name)
	})
	for i := range ifaces {
		b.WriteString(Interface(&ifaces[i]))
		b.WriteString("!\n")
	}

	routes := append([]model.StaticRoute{}, dc.StaticRoutes...)
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Prefix != routes[j].Prefix {
			return routes[i].Prefix < routes[j].Prefix
		}
		return routes[i].NextHop < routes[j].NextHop
	})
	for _, r := range routes {
		fmt.Fprintf(&b, "ip route %s %s %s\n", r.Prefix, r.Mask, r.NextHop)
	}
	if len(routes) > 0 {
		b.WriteString("!\n")
	}

	b.WriteString("end\n")
	return b.String()
}

// Interface renders one interface stanza.
func Interface(ci *model.ConfigInterface) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface %s\n", ci.Name)
	if ci.Description != "" {
		fmt.Fprintf(&b, " description %s\n", ci.Description)
	}

	switch ci.Mode {
	case model.ModeAccess:
		b.WriteString(" switchport mode access\n")
		if ci.VlanAccess > 0 {
			fmt.Fprintf(&b, " switchport access vlan %d\n", ci.VlanAccess)
		}
	case model.ModeTrunk:
		b.WriteString(" switchport mode trunk\n")
		if len(ci.TrunkAllowed) > 0 {
			fmt.Fprintf(&b, " switchport trunk allowed vlan %s\n", util.CompactRange(ci.TrunkAllowed))
		}
		if ci.NativeVlan > 0 {
			fmt.Fprintf(&b, " switchport trunk native vlan %d\n", ci.NativeVlan)
		}
	}

	if ci.IPAddress != "" && ci.IPMask != "" {
		fmt.Fprintf(&b, " ip address %s %s\n", ci.IPAddress, ci.IPMask)
	}
	helpers := append([]string{}, ci.HelperAddrs...)
	sort.Strings(helpers)
	for _, h := range helpers {
		fmt.Fprintf(&b, " ip helper-address %s\n", h)
	}
	if ci.Duplex != "" {
		fmt.Fprintf(&b, " duplex %s\n", ci.Duplex)
	}
	if ci.State == model.StateDown {
		b.WriteString(" shutdown\n")
	} else {
		b.WriteString(" no shutdown\n")
	}
	return b.String()
}

// ProjectCLI renders CLI blocks for every device in a project, keyed by
// hostname, from their store-materialized interfaces and VLAN databases.
func ProjectCLI(devices []model.Device) map[string]string {
	out := make(map[string]string, len(devices))
	for i := range devices {
		out[devices[i].Hostname] = DeviceFromStore(&devices[i])
	}
	return out
}

// DeviceFromStore builds a sub-model from store rows and renders it.
func DeviceFromStore(d *model.Device) string {
	dc := &model.DeviceConfig{Hostname: d.Hostname}
	for _, v := range d.Vlans {
		dc.Vlans = append(dc.Vlans, model.VlanRecord{ID: v.VlanID, Name: v.Name})
	}
	for _, i := range d.Interfaces {
		dc.Interfaces = append(dc.Interfaces, model.ConfigInterface{
			Name:         i.Name,
			Description:  i.Description,
			Mode:         i.Mode,
			VlanAccess:   i.VlanAccess,
			TrunkAllowed: i.VlanTrunkAllowed,
			NativeVlan:   i.NativeVlan,
			Duplex:       i.Duplex,
			IPAddress:    i.IPAddress,
			IPMask:       i.IPMask,
			State:        i.State,
		})
	}
	return Device(dc)
}
