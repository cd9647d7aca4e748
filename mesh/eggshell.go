package mesh

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Boundary markers placed on the edges of an egg-shell mesh.
const (
	// EggShellInnerMarker marks edges between two ring elements.
	EggShellInnerMarker = "Eggshell-inner"
	// EggShell1Marker marks edges between the marked region and the first ring.
	EggShell1Marker = "Eggshell-1"
	// EggShell0Marker marks the outer artificial boundary.
	EggShell0Marker = "Eggshell-0"
)

// EggShellOptions tunes EggShell.
type EggShellOptions struct {
	// ExcludeCore drops the marked region itself, leaving a hollow shell
	// whose inner boundary carries EggShell1Marker.
	ExcludeCore bool
}

type shellRole uint8

const (
	outside shellRole = iota
	core
	ring
)

// EggShell returns a new mesh made of the active elements carrying one of
// markers plus levels-1 rings of their neighbors. The source is unchanged.
func (m *Mesh) EggShell(markers []string, levels int, opts EggShellOptions) (*Mesh, error) {
	if levels < 2 {
		return nil, &RangeError{Name: "levels", Value: levels, Min: 2}
	}
	selected := make(map[int]bool, len(markers))
	for _, name := range markers {
		v, ok := m.ElementMarkers.Internal(name)
		if !ok {
			return nil, usageErrorf("element marker %q not found", name)
		}
		selected[v] = true
	}

	c := m.Copy()
	role := make(map[int]shellRole)
	var seeds []int
	for e := range c.ActiveElements() {
		if selected[e.Marker] {
			role[e.ID] = core
			seeds = append(seeds, e.ID)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: no active element carries markers %v", ErrNoMatch, markers)
	}
	for id, depth := range c.rings(seeds, levels-1) {
		if depth > 0 {
			role[id] = ring
		}
	}
	c.fixShellHanging(role)

	inner := c.BoundaryMarkers.Insert(EggShellInnerMarker)
	one := c.BoundaryMarkers.Insert(EggShell1Marker)
	zero := c.BoundaryMarkers.Insert(EggShell0Marker)
	kept := func(id int) bool {
		r := role[id]
		return r == ring || (r == core && !opts.ExcludeCore)
	}

	for e := range c.ActiveElements() {
		if !kept(e.ID) {
			continue
		}
		for i := 0; i < e.NVert; i++ {
			en := c.nodes.nodes[e.En[i]]
			if en.Bnd {
				continue
			}
			nbs := c.neighbors(e, i)
			marker, bnd := zero, true
		scan:
			for _, nb := range nbs {
				switch r := role[nb.Element]; {
				case r == outside:
					continue
				case role[e.ID] != r:
					marker, bnd = one, opts.ExcludeCore
				case r == ring:
					marker, bnd = inner, false
				default:
					marker, bnd = en.Marker, false
				}
				break scan
			}
			en.Marker, en.Bnd = marker, bnd
			if bnd {
				c.nodes.nodes[e.Vn[i]].Bnd = true
				c.nodes.nodes[e.Vn[e.Next(i)]].Bnd = true
			}
		}
	}

	for _, id := range c.activeIDs() {
		if kept(id) {
			continue
		}
		e := c.elems[id]
		c.disconnect(e)
		e.Used = false
		c.nactive--
	}
	c.markUsedAncestors()
	c.bumpSeq()
	c.logger.Debug("egg-shell built",
		zap.Int("levels", levels),
		zap.Int("core", len(seeds)),
		zap.Int("active", c.nactive))
	return c, nil
}

// rings returns the graph distance from the nearest seed for every active
// element at most maxDepth steps away. Boundary edges are never crossed.
func (m *Mesh) rings(seeds []int, maxDepth int) map[int]int {
	g := m.DualGraph()
	// a virtual source joined to every seed turns the multi-source search
	// into a single breadth-first walk
	src := simple.Node(m.MaxElementID())
	for _, s := range seeds {
		g.SetEdge(simple.Edge{F: src, T: simple.Node(s)})
	}
	depth := make(map[int]int)
	var bfs traverse.BreadthFirst
	bfs.Walk(g, src, func(n graph.Node, d int) bool {
		if d > maxDepth+1 {
			return true
		}
		if n.ID() != src.ID() {
			depth[int(n.ID())] = d - 1
		}
		return false
	})
	return depth
}

// fixShellHanging keeps complete sibling subtrees: an element next to a
// bigger one keeps every leaf below its ancestor on the big edge, and a
// pruned smaller neighbor brings back its ancestor's leaves
func (m *Mesh) fixShellHanging(role map[int]shellRole) {
	queue := make([]int, 0, len(role))
	for id := range role {
		queue = append(queue, id)
	}
	keep := func(anc *Element) {
		for _, leaf := range m.activeLeaves(anc) {
			if role[leaf] == outside {
				role[leaf] = ring
				queue = append(queue, leaf)
			}
		}
	}
	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		e := m.elems[id]
		for i := 0; i < e.NVert; i++ {
			a, b := e.Vn[i], e.Vn[e.Next(i)]
			for _, nb := range m.neighbors(e, i) {
				switch {
				case nb.Relation == Bigger:
					ne := m.elems[nb.Element]
					p, q := ne.Vn[nb.Edge], ne.Vn[ne.Next(nb.Edge)]
					if anc := m.ancestorWithEdge(e, p, q); anc != nil {
						keep(anc)
					}
				case nb.Relation == Smaller && role[nb.Element] == outside:
					if anc := m.ancestorWithEdge(m.elems[nb.Element], a, b); anc != nil {
						keep(anc)
					}
				}
			}
		}
	}
}

// ancestorWithEdge climbs from e to the first ancestor having (p, q) as an edge
func (m *Mesh) ancestorWithEdge(e *Element, p, q int) *Element {
	want := pairKey(p, q)
	for e != nil {
		for i := 0; i < e.NVert; i++ {
			if pairKey(e.Vn[i], e.Vn[e.Next(i)]) == want {
				return e
			}
		}
		if e.Parent == noID {
			return nil
		}
		e = m.elems[e.Parent]
	}
	return nil
}

// activeLeaves returns the active elements of the subtree rooted at e
func (m *Mesh) activeLeaves(e *Element) []int {
	if e.Active {
		return []int{e.ID}
	}
	var out []int
	for _, s := range e.SonIDs() {
		out = append(out, m.activeLeaves(m.elems[s])...)
	}
	return out
}

// markUsedAncestors sets Used on inactive elements exactly when some
// descendant leaf is used
func (m *Mesh) markUsedAncestors() {
	needed := make(map[int]bool)
	for e := range m.ActiveElements() {
		for p := e.Parent; p != noID && !needed[p]; p = m.elems[p].Parent {
			needed[p] = true
		}
	}
	for _, e := range m.elems {
		if e != nil && !e.Active {
			e.Used = needed[e.ID]
		}
	}
}
