package model

// ParseWarning is a non-fatal note attached to a parsed configuration.
type ParseWarning struct {
	Line    int    `json:"line,omitempty"`
	Stanza  string `json:"stanza,omitempty"`
	Message string `json:"message"`
}

// ConfigInterface is one interface stanza of a parsed running-config.
type ConfigInterface struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Mode         InterfaceMode  `json:"mode"`
	VlanAccess   int            `json:"vlan_access,omitempty"`
	TrunkAllowed []int          `json:"trunk_allowed,omitempty"`
	NativeVlan   int            `json:"native_vlan,omitempty"`
	Duplex       string         `json:"duplex,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	IPMask       string         `json:"ip_mask,omitempty"`
	HelperAddrs  []string       `json:"helper_addrs,omitempty"`
	State        InterfaceState `json:"state"`
	// Lines the parser did not recognize, retained verbatim for display.
	Unrecognized []string `json:"unrecognized,omitempty"`
}

// IsSVI reports whether the interface is a switch virtual interface
// (named "Vlan<N>") carrying an IP address.
func (ci *ConfigInterface) IsSVI() bool {
	i := Interface{Name: ci.Name, IPAddress: ci.IPAddress}
	return i.SVIVlan() > 0
}

// VlanRecord is one entry of a device VLAN database.
type VlanRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// RoutingProcess summarizes a routing protocol stanza ("router ospf 1").
type RoutingProcess struct {
	Protocol  string `json:"protocol"`
	ProcessID string `json:"process_id,omitempty"`
}

// StaticRoute is one "ip route" stanza.
type StaticRoute struct {
	Prefix  string `json:"prefix"`
	Mask    string `json:"mask"`
	NextHop string `json:"next_hop"`
}

// ACL is a numbered or named access list with its raw rule lines.
type ACL struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// DHCPPool is an "ip dhcp pool" stanza; Network/Mask come from the pool's
// network statement when present.
type DHCPPool struct {
	Name    string `json:"name"`
	Network string `json:"network,omitempty"`
	Mask    string `json:"mask,omitempty"`
}

// DeviceConfig is the canonical sub-model produced by parsing a raw
// IOS-family running configuration. Parsing identical input bytes yields
// an identical sub-model.
type DeviceConfig struct {
	Hostname     string            `json:"hostname"`
	Interfaces   []ConfigInterface `json:"interfaces"`
	Vlans        []VlanRecord      `json:"vlans"`
	Routing      []RoutingProcess  `json:"routing,omitempty"`
	StaticRoutes []StaticRoute     `json:"static_routes,omitempty"`
	ACLs         []ACL             `json:"acls,omitempty"`
	DHCPPools    []DHCPPool        `json:"dhcp_pools,omitempty"`
	Warnings     []ParseWarning    `json:"warnings,omitempty"`
	// Top-level stanzas the parser did not normalize, retained verbatim.
	Unrecognized []string `json:"unrecognized,omitempty"`
}

// Interface returns the named interface stanza, or nil.
func (dc *DeviceConfig) Interface(name string) *ConfigInterface {
	for i := range dc.Interfaces {
		if dc.Interfaces[i].Name == name {
			return &dc.Interfaces[i]
		}
	}
	return nil
}

// VlanSet returns the VLAN database as a presence set.
func (dc *DeviceConfig) VlanSet() map[int]bool {
	set := make(map[int]bool, len(dc.Vlans))
	for _, v := range dc.Vlans {
		set[v.ID] = true
	}
	return set
}
