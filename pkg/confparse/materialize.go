package confparse

import "github.com/netval-app/netval/pkg/model"

// Materialize converts a parsed sub-model into store-shaped interface and
// VLAN rows for a device, as happens after an upload or SSH ingest.
func Materialize(deviceID string, dc *model.DeviceConfig) ([]model.Interface, []model.VlanRecord) {
	ifaces := make([]model.Interface, 0, len(dc.Interfaces))
	for _, ci := range dc.Interfaces {
		ifaces = append(ifaces, model.Interface{
			DeviceID:         deviceID,
			Name:             ci.Name,
			Description:      ci.Description,
			Mode:             ci.Mode,
			VlanAccess:       ci.VlanAccess,
			VlanTrunkAllowed: ci.TrunkAllowed,
			NativeVlan:       ci.NativeVlan,
			Duplex:           ci.Duplex,
			IPAddress:        ci.IPAddress,
			IPMask:           ci.IPMask,
			State:            ci.State,
		})
	}

	vlans := make([]model.VlanRecord, 0, len(dc.Vlans))
	vlans = append(vlans, dc.Vlans...)
	return ifaces, vlans
}
