package testutil

import (
	"testing"

	"github.com/netval-app/netval/pkg/confparse"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
)

// CoreConfig is a small IOS running config for a core switch. Its static
// route resolves against the Vlan10 SVI.
const CoreConfig = `hostname core1
!
vlan 10
 name USERS
!
vlan 20
 name VOICE
!
interface Vlan10
 ip address 10.0.10.1 255.255.255.0
!
interface GigabitEthernet1/0/1
 description uplink to access1
 switchport mode trunk
 switchport trunk allowed vlan 10,20
 switchport trunk native vlan 1
!
interface GigabitEthernet1/0/3
 switchport mode trunk
 switchport trunk allowed vlan 10,20,40
!
ip route 0.0.0.0 0.0.0.0 10.0.10.254
!
end
`

// AccessConfig is an access switch config whose VLAN database is missing
// VLAN 20 even though the uplink trunk carries it.
const AccessConfig = `hostname access1
!
vlan 10
 name USERS
!
interface GigabitEthernet1/0/1
 switchport mode trunk
 switchport trunk allowed vlan 10,20
!
interface GigabitEthernet1/0/10
 switchport mode access
 switchport access vlan 40
 duplex full
!
end
`

// Campus is the seeded fixture topology: core and access switches, a
// WLC behind the core, and an AP behind the access switch.
type Campus struct {
	ProjectID string
	Core      *model.Device
	Access    *model.Device
	WLC       *model.Device
	AP        *model.Device

	CoreAccess *model.Link
	AccessAP   *model.Link
	CoreWLC    *model.Link
}

// SeedCampus populates the store with the fixture topology. Devices get
// management IPs but no configs; use UploadConfig to attach them.
func SeedCampus(t *testing.T, st *store.Store) *Campus {
	t.Helper()
	ctx := Context(t)

	p, err := st.CreateProject(ctx, "Campus HQ", "fixture project")
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}

	mk := func(hostname string, role model.DeviceRole, mgmt string) *model.Device {
		d, err := st.CreateDevice(ctx, p.ID, store.DeviceCreate{
			Hostname:     hostname,
			Role:         role,
			ManagementIP: mgmt,
		})
		if err != nil {
			t.Fatalf("creating device %s: %v", hostname, err)
		}
		return d
	}
	c := &Campus{
		ProjectID: p.ID,
		Core:      mk("core1", model.RoleSwitch, "10.0.0.1"),
		Access:    mk("access1", model.RoleSwitch, "10.0.0.2"),
		WLC:       mk("wlc1", model.RoleWLC, "10.0.0.3"),
		AP:        mk("ap1", model.RoleAP, ""),
	}

	link := func(a *model.Device, aIf string, b *model.Device, bIf string, allow []int) *model.Link {
		l, err := st.CreateLink(ctx, p.ID, store.LinkCreate{
			SourceDeviceID:  a.ID,
			SourceInterface: aIf,
			TargetDeviceID:  b.ID,
			TargetInterface: bIf,
			Medium:          model.MediumEthernet,
			VlanAllowList:   allow,
		})
		if err != nil {
			t.Fatalf("creating link %s-%s: %v", a.Hostname, b.Hostname, err)
		}
		return l
	}
	c.CoreAccess = link(c.Core, "GigabitEthernet1/0/1", c.Access, "GigabitEthernet1/0/1", []int{10, 20})
	c.AccessAP = link(c.Access, "GigabitEthernet1/0/10", c.AP, "GigabitEthernet0", nil)
	c.CoreWLC = link(c.Core, "GigabitEthernet1/0/3", c.WLC, "GigabitEthernet0/0/1", []int{10, 20, 40})
	return c
}

// UploadConfig snapshots raw config for a device and materializes the
// parsed interfaces and VLANs, mirroring the upload-config route.
func UploadConfig(t *testing.T, st *store.Store, deviceID, raw string) {
	t.Helper()
	ctx := Context(t)
	if _, err := st.AddSnapshot(ctx, deviceID, raw, model.SourceUpload); err != nil {
		t.Fatalf("adding snapshot: %v", err)
	}
	dc := confparse.Parse(raw)
	ifaces, vlans := confparse.Materialize(deviceID, dc)
	if err := st.ReplaceDeviceInterfaces(ctx, deviceID, ifaces); err != nil {
		t.Fatalf("replacing interfaces: %v", err)
	}
	if err := st.ReplaceDeviceVlans(ctx, deviceID, vlans); err != nil {
		t.Fatalf("replacing vlans: %v", err)
	}
}
