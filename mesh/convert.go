package mesh

import (
	"slices"

	"go.uber.org/zap"
)

// flatElement is an element of a mesh being rebuilt as a base mesh; vertex
// ids refer to the source mesh.
type flatElement struct {
	verts      []int
	marker     int
	cm         *CurvMap
	iro        int
	edgeMarker []int
	edgeBnd    []bool
}

// ConvertQuadsToTriangles splits every active quad in two and rebuilds the
// mesh as a base mesh
func (m *Mesh) ConvertQuadsToTriangles() error {
	for _, id := range m.activeIDs() {
		if m.elems[id].IsQuad() {
			if err := m.RefineToTriangles(id); err != nil {
				return err
			}
		}
	}
	return m.rebuildFromActive()
}

// ConvertTrianglesToQuads splits every active element into quads and rebuilds
// the mesh as a base mesh
func (m *Mesh) ConvertTrianglesToQuads() error {
	for _, id := range m.activeIDs() {
		if err := m.RefineToQuads(id); err != nil {
			return err
		}
	}
	return m.rebuildFromActive()
}

// ConvertToBase turns the active elements into a base mesh whose curved
// elements carry top-level arcs
func (m *Mesh) ConvertToBase() error {
	for _, id := range m.activeIDs() {
		if err := m.ConvertElementToBase(id); err != nil {
			return err
		}
	}
	return m.rebuildFromActive()
}

// rebuildFromActive replaces the mesh by a base mesh of its active elements
func (m *Mesh) rebuildFromActive() error {
	var elems []flatElement
	used := make(map[int]bool)
	for e := range m.ActiveElements() {
		fe := flatElement{
			verts:      append([]int(nil), e.Vn[:e.NVert]...),
			marker:     e.Marker,
			iro:        e.IROCache,
			edgeMarker: make([]int, e.NVert),
			edgeBnd:    make([]bool, e.NVert),
		}
		if e.CM != nil {
			if e.CM.TopLevel {
				fe.cm = e.CM.clone()
			} else {
				all := make([]bool, e.NVert)
				for i := range all {
					all[i] = true
				}
				fe.cm = materialize(e.CM, refVerts(e), all)
			}
		}
		for i := 0; i < e.NVert; i++ {
			en := m.nodes.nodes[e.En[i]]
			fe.edgeMarker[i], fe.edgeBnd[i] = en.Marker, en.Bnd
			used[e.Vn[i]] = true
		}
		elems = append(elems, fe)
	}
	verts := make([]int, 0, len(used))
	for id := range used {
		verts = append(verts, id)
	}
	slices.Sort(verts)
	if err := m.loadFlat(m, verts, elems); err != nil {
		return err
	}
	m.logger.Debug("mesh rebuilt as base", zap.Int("elements", m.nbase))
	return nil
}

// CopyBase returns a mesh made of the top-level vertices and base elements.
// Edge markers are taken from the edges now covering each base edge.
func (m *Mesh) CopyBase() (*Mesh, error) {
	var verts []int
	for v := range m.VertexNodes() {
		if v.TopLevel {
			verts = append(verts, v.ID)
		}
	}
	var elems []flatElement
	for id := 0; id < m.nbase && id < len(m.elems); id++ {
		e := m.elems[id]
		if e == nil || !e.Used {
			continue
		}
		fe := flatElement{
			verts:      append([]int(nil), e.Vn[:e.NVert]...),
			marker:     e.Marker,
			cm:         e.CM.clone(),
			iro:        e.IROCache,
			edgeMarker: make([]int, e.NVert),
			edgeBnd:    make([]bool, e.NVert),
		}
		for i := 0; i < e.NVert; i++ {
			if en := m.baseEdgeNode(e, i); en != nil {
				fe.edgeMarker[i], fe.edgeBnd[i] = en.Marker, en.Bnd
			}
		}
		elems = append(elems, fe)
	}
	c := New(WithLogger(m.logger), WithTolerance(m.tol))
	if err := c.loadFlat(m, verts, elems); err != nil {
		return nil, err
	}
	return c, nil
}

// loadFlat resets m to a base mesh. src may be m itself.
func (m *Mesh) loadFlat(src *Mesh, verts []int, elems []flatElement) error {
	type vertex struct {
		x, y float64
		bnd  bool
	}
	pos := make([]vertex, len(verts))
	newID := make(map[int]int, len(verts))
	for i, id := range verts {
		v := src.nodes.nodes[id]
		pos[i] = vertex{v.X, v.Y, v.Bnd}
		newID[id] = i
	}
	em, bm := src.ElementMarkers.clone(), src.BoundaryMarkers.clone()

	m.reset()
	m.ElementMarkers, m.BoundaryMarkers = em, bm
	for _, p := range pos {
		n := m.nodes.addTopVertex(p.x, p.y)
		n.Bnd = p.bnd
	}
	m.ntopvert = len(pos)
	for _, fe := range elems {
		vs := make([]*Node, len(fe.verts))
		for i, id := range fe.verts {
			vs[i] = m.nodes.nodes[newID[id]]
		}
		e, err := m.createElement(fe.marker, vs, fe.cm, noID)
		if err != nil {
			m.reset()
			return err
		}
		e.IROCache = fe.iro
		for i := 0; i < e.NVert; i++ {
			en := m.nodes.nodes[e.En[i]]
			if fe.edgeBnd[i] || en.Marker == 0 {
				en.Marker = fe.edgeMarker[i]
			}
			en.Bnd = en.Bnd || fe.edgeBnd[i]
		}
	}
	m.nbase = len(m.elems)
	m.nactive = m.nbase
	m.ninitial = m.nbase
	m.bumpSeq()
	return nil
}

// ReferenceMeshCreator derives the reference mesh of hp-adaptivity: a copy of
// the coarse mesh with every element refined once.
type ReferenceMeshCreator struct {
	Coarse     *Mesh
	Refinement RefinementKind
}

func (r ReferenceMeshCreator) Create() (*Mesh, error) {
	if r.Coarse == nil {
		return nil, usageErrorf("reference mesh needs a coarse mesh")
	}
	ref := r.Coarse.Copy()
	if err := ref.RefineAllElements(r.Refinement, false); err != nil {
		return nil, err
	}
	return ref, nil
}
