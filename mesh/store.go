package mesh

import (
	"github.com/notargets/hpmesh/element"
	"gonum.org/v1/gonum/spatial/r2"
)

// nextElementID returns the id the next allocated element will receive
func (m *Mesh) nextElementID() int {
	if k := len(m.freeElems); k > 0 {
		return m.freeElems[k-1]
	}
	return len(m.elems)
}

// allocElement places a new element at id, or at the next free slot when id
// is negative.
func (m *Mesh) allocElement(id int) (*Element, error) {
	if id < 0 {
		id = m.nextElementID()
	}
	switch {
	case id < len(m.elems):
		if m.elems[id] != nil {
			return nil, usageErrorf("element id %d is in use", id)
		}
		for i, f := range m.freeElems {
			if f == id {
				m.freeElems = append(m.freeElems[:i], m.freeElems[i+1:]...)
				break
			}
		}
	default:
		for len(m.elems) < id {
			m.freeElems = append(m.freeElems, len(m.elems))
			m.elems = append(m.elems, nil)
		}
		m.elems = append(m.elems, nil)
	}
	e := newElement(id)
	m.elems[id] = e
	return e, nil
}

func (m *Mesh) freeElement(e *Element) {
	m.elems[e.ID] = nil
	m.freeElems = append(m.freeElems, e.ID)
}

// CreateTriangle builds an active triangle on three existing vertices. A
// negative id takes the next free slot. The vertex order is used as given.
func (m *Mesh) CreateTriangle(marker int, v0, v1, v2 *Node, cm *CurvMap, id int) (*Element, error) {
	return m.createElement(marker, []*Node{v0, v1, v2}, cm, id)
}

// CreateQuad builds an active quad on four existing vertices
func (m *Mesh) CreateQuad(marker int, v0, v1, v2, v3 *Node, cm *CurvMap, id int) (*Element, error) {
	return m.createElement(marker, []*Node{v0, v1, v2, v3}, cm, id)
}

func (m *Mesh) createElement(marker int, vs []*Node, cm *CurvMap, id int) (*Element, error) {
	eid := id
	if eid < 0 {
		eid = m.nextElementID()
	}
	if err := m.checkCreate(eid, vs); err != nil {
		return nil, err
	}
	e, err := m.allocElement(id)
	if err != nil {
		return nil, err
	}
	e.NVert = len(vs)
	e.Marker = marker
	e.CM = cm
	for i, v := range vs {
		e.Vn[i] = v.ID
	}
	if err = m.connect(e); err != nil {
		m.freeElement(e)
		return nil, err
	}
	return e, nil
}

// connect looks up the element's edges and takes one reference on each of
// its vertices and edges, registering e on the edges.
func (m *Mesh) connect(e *Element) error {
	var edges [4]*Node
	for i := 0; i < e.NVert; i++ {
		a, b := e.Vn[i], e.Vn[e.Next(i)]
		en := m.nodes.peekEdge(a, b)
		if en != nil && en.Elem[0] != noID && en.Elem[1] != noID {
			return &LoadError{
				ElementID: e.ID,
				Coords:    m.vertexPositions(e),
				Reason:    "edge shared by more than two elements",
			}
		}
		edges[i] = en
	}
	for i := 0; i < e.NVert; i++ {
		if edges[i] == nil {
			en, err := m.nodes.getEdge(e.Vn[i], e.Vn[e.Next(i)])
			if err != nil {
				return err
			}
			edges[i] = en
		}
	}
	for i := 0; i < e.NVert; i++ {
		m.nodes.nodes[e.Vn[i]].Ref++
		edges[i].Ref++
		edges[i].attach(e.ID)
		e.En[i] = edges[i].ID
	}
	return nil
}

// detachEdges removes e from its edges' element slots without touching counts
func (m *Mesh) detachEdges(e *Element) {
	for i := 0; i < e.NVert; i++ {
		if en := m.nodes.at(e.En[i]); en != nil {
			en.detach(e.ID)
		}
	}
}

// dropRefs releases the references e holds; nodes left unreferenced are freed
// except top-level vertices. Edges must already be detached.
func (m *Mesh) dropRefs(e *Element) {
	for i := 0; i < e.NVert; i++ {
		if en := m.nodes.at(e.En[i]); en != nil {
			en.Ref--
			if en.Ref <= 0 {
				m.nodes.release(en)
			}
		}
		e.En[i] = noID
	}
	for i := 0; i < e.NVert; i++ {
		m.nodes.releaseIfOrphan(decRef(m.nodes.at(e.Vn[i])))
	}
}

func decRef(n *Node) *Node {
	if n != nil {
		n.Ref--
	}
	return n
}

// disconnect is detachEdges followed by dropRefs
func (m *Mesh) disconnect(e *Element) {
	m.detachEdges(e)
	m.dropRefs(e)
}

// midpoint returns the vertex halfway along (a, b). On a curved edge of e the
// vertex is placed on the curve.
func (m *Mesh) midpoint(e *Element, edge int) (*Node, error) {
	a, b := e.Vn[edge], e.Vn[e.Next(edge)]
	existing := m.nodes.peekVertex(a, b)
	v, err := m.nodes.getVertex(a, b)
	if err != nil || existing != nil {
		return v, err
	}
	if e.CM != nil {
		p := e.CM.Eval(edgeMidRef(e, edge))
		v.X, v.Y = p.X, p.Y
	}
	return v, nil
}

func edgeMidRef(e *Element, edge int) r2.Vec {
	refs := refVerts(e)
	return r2.Scale(0.5, r2.Add(refs[edge], refs[e.Next(edge)]))
}

func refVerts(e *Element) []r2.Vec {
	return element.ReferenceVertices(e.Geometry())
}
