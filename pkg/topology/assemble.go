package topology

import (
	"context"
	"errors"

	"github.com/netval-app/netval/pkg/confparse"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
)

// Assemble reads a project's topology from the store exactly once and
// builds the validation graph. Each device's latest non-pre_push snapshot
// is parsed into the node so checks that need routing or DHCP context can
// consult it. Concurrent edits after assembly do not affect the result.
func Assemble(ctx context.Context, st *store.Store, projectID string) (*Graph, error) {
	devices, err := st.ListDevices(ctx, projectID)
	if err != nil {
		return nil, err
	}
	links, err := st.ListLinks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		n := &Node{
			DeviceID:     d.ID,
			Hostname:     d.Hostname,
			Role:         d.Role,
			ManagementIP: d.ManagementIP,
			Vlans:        make(map[int]bool, len(d.Vlans)),
			Interfaces:   make(map[string]model.Interface, len(d.Interfaces)),
		}
		for _, v := range d.Vlans {
			n.Vlans[v.VlanID] = true
		}
		for _, iface := range d.Interfaces {
			n.Interfaces[iface.Name] = iface
		}

		snap, err := st.LatestSnapshot(ctx, d.ID, false)
		switch {
		case err == nil:
			n.Config = confparse.Parse(snap.RawConfig)
		case errors.Is(err, util.ErrNotFound):
			// No snapshot yet; checks degrade gracefully.
		default:
			return nil, err
		}
		nodes = append(nodes, n)
	}

	edges := make([]*Edge, 0, len(links))
	for _, l := range links {
		edges = append(edges, &Edge{
			LinkID:     l.ID,
			ADevice:    l.SourceDeviceID,
			AInterface: l.SourceInterface,
			BDevice:    l.TargetDeviceID,
			BInterface: l.TargetInterface,
			Medium:     l.Medium,
			AllowList:  l.VlanAllowList,
		})
	}

	return NewGraph(nodes, edges), nil
}
