package model

import "time"

// DeviceRole categorizes a device on the canvas
type DeviceRole string

const (
	RoleSwitch   DeviceRole = "switch"
	RoleRouter   DeviceRole = "router"
	RoleWLC      DeviceRole = "wlc"
	RoleAP       DeviceRole = "ap"
	RoleFirewall DeviceRole = "firewall"
	RoleEndpoint DeviceRole = "endpoint"
)

// ValidRole reports whether r is a recognized device role.
func ValidRole(r DeviceRole) bool {
	switch r {
	case RoleSwitch, RoleRouter, RoleWLC, RoleAP, RoleFirewall, RoleEndpoint:
		return true
	}
	return false
}

// Device is a node on the project canvas. CredentialRef is an opaque key
// into the vault; credential material itself is never stored.
type Device struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	Hostname      string     `json:"hostname"`
	Role          DeviceRole `json:"role"`
	Vendor        string     `json:"vendor"`
	Platform      string     `json:"platform"`
	ManagementIP  string     `json:"management_ip,omitempty"`
	CanvasX       float64    `json:"canvas_x"`
	CanvasY       float64    `json:"canvas_y"`
	CredentialRef string     `json:"credential_ref,omitempty"`
	ConfigHash    string     `json:"config_hash,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Eager-loaded children, populated on list/detail reads.
	Interfaces []Interface  `json:"interfaces,omitempty"`
	Vlans      []DeviceVlan `json:"vlans,omitempty"`
}

// DeviceVlan marks the presence of a VLAN in a device's VLAN database.
// Composite key (device_id, vlan_id).
type DeviceVlan struct {
	DeviceID string `json:"device_id"`
	VlanID   int    `json:"vlan_id"`
	Name     string `json:"name,omitempty"`
}
