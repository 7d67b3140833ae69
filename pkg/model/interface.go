package model

import (
	"regexp"
	"strconv"
	"strings"
)

// InterfaceMode is the L2/L3 mode of a port
type InterfaceMode string

const (
	ModeAccess  InterfaceMode = "access"
	ModeTrunk   InterfaceMode = "trunk"
	ModeRouted  InterfaceMode = "routed"
	ModeUnknown InterfaceMode = "unknown"
)

// InterfaceState is the administrative state of a port
type InterfaceState string

const (
	StateUp      InterfaceState = "up"
	StateDown    InterfaceState = "down"
	StateUnknown InterfaceState = "unknown"
)

// Interface is one port of a device. VlanTrunkAllowed is the expanded
// allow-list for trunk ports; VlanAccess is the access VLAN (0 = unset).
type Interface struct {
	ID               string         `json:"id"`
	DeviceID         string         `json:"device_id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Mode             InterfaceMode  `json:"mode"`
	VlanAccess       int            `json:"vlan_access,omitempty"`
	VlanTrunkAllowed []int          `json:"vlan_trunk_allowed,omitempty"`
	NativeVlan       int            `json:"native_vlan,omitempty"`
	Duplex           string         `json:"duplex,omitempty"`
	IPAddress        string         `json:"ip_address,omitempty"`
	IPMask           string         `json:"ip_mask,omitempty"`
	State            InterfaceState `json:"state"`
}

var sviNameRE = regexp.MustCompile(`^Vlan(\d+)$`)

// SVIVlan returns the VLAN id N for an interface named "Vlan<N>" that
// carries an IP address, or 0 if the interface is not an SVI.
func (i *Interface) SVIVlan() int {
	if i.IPAddress == "" {
		return 0
	}
	m := sviNameRE.FindStringSubmatch(i.Name)
	if m == nil {
		return 0
	}
	id, _ := strconv.Atoi(m[1])
	return id
}

// interfaceKindOrder fixes the sort order of interface kinds in rendered
// CLI: physical ports first, then port-channels, then SVIs, then loopbacks.
var interfaceKindOrder = []string{
	"FastEthernet", "GigabitEthernet", "TwoGigabitEthernet",
	"FiveGigabitEthernet", "TenGigabitEthernet", "TwentyFiveGigE",
	"FortyGigabitEthernet", "HundredGigE", "Ethernet",
	"Port-channel", "Vlan", "Loopback", "Tunnel",
}

// InterfaceSortKey produces a key ordering interfaces by kind then by
// numeric path ("GigabitEthernet1/0/10" after "GigabitEthernet1/0/2").
func InterfaceSortKey(name string) (int, []int) {
	kind := len(interfaceKindOrder)
	rest := name
	for idx, prefix := range interfaceKindOrder {
		if strings.HasPrefix(name, prefix) {
			kind = idx
			rest = name[len(prefix):]
			break
		}
	}
	var path []int
	for _, part := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == '/' || r == '.' || r == ':'
	}) {
		if n, err := strconv.Atoi(part); err == nil {
			path = append(path, n)
		}
	}
	return kind, path
}

// LessInterfaceName orders interface names by (kind, numeric path).
func LessInterfaceName(a, b string) bool {
	ka, pa := InterfaceSortKey(a)
	kb, pb := InterfaceSortKey(b)
	if ka != kb {
		return ka < kb
	}
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	if len(pa) != len(pb) {
		return len(pa) < len(pb)
	}
	return a < b
}
