package mesh

import (
	"gonum.org/v1/gonum/graph/simple"
)

// Relation describes the size of a neighbor relative to the element whose
// edge is searched.
type Relation uint8

const (
	SameSize Relation = iota
	// Bigger neighbors cover the searched edge with one of their own longer edges.
	Bigger
	// Smaller neighbors share a piece of the searched edge.
	Smaller
)

func (r Relation) String() string {
	switch r {
	case SameSize:
		return "same-size"
	case Bigger:
		return "bigger"
	}
	return "smaller"
}

// Neighbor is an active element across an edge and its local edge index.
type Neighbor struct {
	Element  int
	Edge     int
	Relation Relation
}

// maxWalk bounds the climb through midpoint vertices
const maxWalk = 64

// Neighbors lists the active elements adjacent to edge of the active element
// id. Boundary edges have no neighbors.
func (m *Mesh) Neighbors(id, edge int) ([]Neighbor, error) {
	e, err := m.Element(id)
	if err != nil {
		return nil, err
	}
	if !e.Active || !e.Used {
		return nil, usageErrorf("element #%d is not active", id)
	}
	if edge < 0 || edge >= e.NVert {
		return nil, usageErrorf("element #%d has no edge %d", id, edge)
	}
	return m.neighbors(e, edge), nil
}

func (m *Mesh) neighbors(e *Element, edge int) []Neighbor {
	en := m.nodes.nodes[e.En[edge]]
	if en.Bnd {
		return nil
	}
	if o := en.Other(e.ID); o != noID {
		oe := m.elems[o]
		return []Neighbor{{Element: o, Edge: oe.EdgeIndex(en.ID), Relation: SameSize}}
	}
	a, b := e.Vn[edge], e.Vn[e.Next(edge)]
	if m.nodes.peekVertex(a, b) != nil {
		var out []Neighbor
		m.smaller(a, b, e.ID, &out, 0)
		return out
	}
	if n, ok := m.bigger(a, b); ok {
		return []Neighbor{n}
	}
	return nil
}

// smaller collects the elements owning the pieces of (a, b), a first. A
// split edge is descended without looking at its own edge node, which the
// coarse element self still holds.
func (m *Mesh) smaller(a, b, self int, out *[]Neighbor, depth int) {
	if depth > maxWalk {
		return
	}
	if mid := m.nodes.peekVertex(a, b); mid != nil {
		m.smaller(a, mid.ID, self, out, depth+1)
		m.smaller(mid.ID, b, self, out, depth+1)
		return
	}
	if en := m.nodes.peekEdge(a, b); en != nil {
		for _, id := range en.Elem {
			if id != noID && id != self {
				oe := m.elems[id]
				*out = append(*out, Neighbor{Element: id, Edge: oe.EdgeIndex(en.ID), Relation: Smaller})
			}
		}
	}
}

// bigger climbs from (a, b) through the edges it was split from
func (m *Mesh) bigger(a, b int) (Neighbor, bool) {
	p, q := a, b
	for range maxWalk {
		up, ok := m.parentPair(p, q)
		if !ok {
			return Neighbor{}, false
		}
		if en := m.nodes.peekEdge(up[0], up[1]); en != nil {
			for _, id := range en.Elem {
				if id != noID {
					return Neighbor{Element: id, Edge: m.elems[id].EdgeIndex(en.ID), Relation: Bigger}, true
				}
			}
		}
		p, q = up[0], up[1]
	}
	return Neighbor{}, false
}

// parentPair returns the edge whose midpoint is one endpoint of (p, q) and
// which has the other endpoint as one of its own
func (m *Mesh) parentPair(p, q int) ([2]int, bool) {
	for _, pair := range [2][2]int{{p, q}, {q, p}} {
		v, o := m.nodes.at(pair[0]), pair[1]
		if v == nil || v.Type != VertexNode || v.P1 == noID {
			continue
		}
		if v.P1 == o || v.P2 == o {
			return [2]int{v.P1, v.P2}, true
		}
	}
	return [2]int{}, false
}

// DualGraph returns the graph whose nodes are the active element ids and
// whose edges join elements sharing a piece of an edge
func (m *Mesh) DualGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for e := range m.ActiveElements() {
		if g.Node(int64(e.ID)) == nil {
			g.AddNode(simple.Node(e.ID))
		}
		for i := 0; i < e.NVert; i++ {
			for _, nb := range m.neighbors(e, i) {
				g.SetEdge(simple.Edge{F: simple.Node(e.ID), T: simple.Node(nb.Element)})
			}
		}
	}
	return g
}
