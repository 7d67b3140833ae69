package model

// LinkMedium is the physical medium of a link
type LinkMedium string

const (
	MediumEthernet LinkMedium = "ethernet"
	MediumFiber    LinkMedium = "fiber"
)

// LinkState tracks link configuration status on the canvas
type LinkState string

const (
	LinkPending       LinkState = "pending"
	LinkConnected     LinkState = "connected"
	LinkMisconfigured LinkState = "misconfigured"
)

// Link connects two device interfaces. Endpoints are ordered for storage
// but the link is undirected in semantics.
type Link struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	SourceDeviceID  string     `json:"source_device_id"`
	SourceInterface string     `json:"source_interface"`
	TargetDeviceID  string     `json:"target_device_id"`
	TargetInterface string     `json:"target_interface"`
	Medium          LinkMedium `json:"medium"`
	VlanAllowList   []int      `json:"vlan_allow_list"`
	State           LinkState  `json:"state"`
}
