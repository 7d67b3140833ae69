// Package topology assembles a project's devices and links into an
// in-memory undirected graph for the validation engine. The graph is
// immutable for the duration of one check pass.
package topology

import (
	"sort"

	"github.com/netval-app/netval/pkg/model"
)

// Node is one device with its VLAN database, interface map, and the
// parsed sub-model of its latest config snapshot (nil when no snapshot
// exists).
type Node struct {
	DeviceID     string
	Hostname     string
	Role         model.DeviceRole
	ManagementIP string
	Vlans        map[int]bool
	Interfaces   map[string]model.Interface
	Config       *model.DeviceConfig
}

// Edge is one link. Endpoints are ordered only for attribute lookup; the
// edge itself is traversed in both directions.
type Edge struct {
	LinkID     string
	ADevice    string
	AInterface string
	BDevice    string
	BInterface string
	Medium     model.LinkMedium
	AllowList  []int
}

// Peer returns the device id on the far side of the edge from deviceID.
func (e *Edge) Peer(deviceID string) string {
	if e.ADevice == deviceID {
		return e.BDevice
	}
	return e.ADevice
}

// InterfaceOn returns the interface name of the edge on deviceID's side.
func (e *Edge) InterfaceOn(deviceID string) string {
	if e.ADevice == deviceID {
		return e.AInterface
	}
	return e.BInterface
}

// Allows reports whether the edge's allow-list admits the VLAN. An empty
// allow-list admits everything.
func (e *Edge) Allows(vlan int) bool {
	if len(e.AllowList) == 0 {
		return true
	}
	for _, v := range e.AllowList {
		if v == vlan {
			return true
		}
	}
	return false
}

// Graph is the assembled topology. Adjacency lists are sorted by peer
// device id so traversal order is deterministic.
type Graph struct {
	Nodes map[string]*Node
	Edges []*Edge
	adj   map[string][]*Edge
}

// NewGraph builds a graph from nodes and edges, indexing adjacency.
func NewGraph(nodes []*Node, edges []*Edge) *Graph {
	g := &Graph{
		Nodes: make(map[string]*Node, len(nodes)),
		Edges: edges,
		adj:   make(map[string][]*Edge),
	}
	for _, n := range nodes {
		g.Nodes[n.DeviceID] = n
	}
	for _, e := range edges {
		g.adj[e.ADevice] = append(g.adj[e.ADevice], e)
		g.adj[e.BDevice] = append(g.adj[e.BDevice], e)
	}
	for id := range g.adj {
		id := id
		sort.Slice(g.adj[id], func(a, b int) bool {
			pa, pb := g.adj[id][a].Peer(id), g.adj[id][b].Peer(id)
			if pa != pb {
				return pa < pb
			}
			return g.adj[id][a].LinkID < g.adj[id][b].LinkID
		})
	}
	return g
}

// Neighbors returns the edges incident to a device, in deterministic order.
func (g *Graph) Neighbors(deviceID string) []*Edge {
	return g.adj[deviceID]
}

// SortedDeviceIDs returns all device ids in lexical order.
func (g *Graph) SortedDeviceIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodesByRole returns the devices of a role, sorted by device id.
func (g *Graph) NodesByRole(role model.DeviceRole) []*Node {
	var out []*Node
	for _, id := range g.SortedDeviceIDs() {
		if g.Nodes[id].Role == role {
			out = append(out, g.Nodes[id])
		}
	}
	return out
}

// ShortestPath computes a BFS shortest path between two devices. Ties are
// broken by visiting neighbors in device-id lexical order, so the result
// is stable across runs. Returns the edges along the path, or nil if no
// path exists. A src == dst query yields an empty, non-nil path.
func (g *Graph) ShortestPath(src, dst string) []*Edge {
	if src == dst {
		return []*Edge{}
	}
	if _, ok := g.Nodes[src]; !ok {
		return nil
	}

	prev := make(map[string]*Edge)
	visited := map[string]bool{src: true}
	queue := []string{src}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.adj[cur] {
			peer := e.Peer(cur)
			if visited[peer] {
				continue
			}
			visited[peer] = true
			prev[peer] = e
			if peer == dst {
				return g.tracePath(src, dst, prev)
			}
			queue = append(queue, peer)
		}
	}
	return nil
}

func (g *Graph) tracePath(src, dst string, prev map[string]*Edge) []*Edge {
	var path []*Edge
	cur := dst
	for cur != src {
		e := prev[cur]
		path = append(path, e)
		cur = e.Peer(cur)
	}
	// reverse into src->dst order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Reachability computes the dense path-existence matrix keyed by hostname
// for all ordered device pairs.
func (g *Graph) Reachability() map[string]map[string]bool {
	ids := g.SortedDeviceIDs()
	matrix := make(map[string]map[string]bool, len(ids))
	for _, src := range ids {
		row := make(map[string]bool, len(ids))
		reachable := map[string]bool{src: true}
		queue := []string{src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, e := range g.adj[cur] {
				peer := e.Peer(cur)
				if !reachable[peer] {
					reachable[peer] = true
					queue = append(queue, peer)
				}
			}
		}
		for _, dst := range ids {
			row[g.Nodes[dst].Hostname] = reachable[dst]
		}
		matrix[g.Nodes[src].Hostname] = row
	}
	return matrix
}
