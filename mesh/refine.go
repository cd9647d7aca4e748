package mesh

import (
	"fmt"

	"github.com/notargets/hpmesh/element"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"
)

// RefinementKind selects how an element is split.
type RefinementKind int

const (
	// Unrefine appears only in the refinement log.
	Unrefine     RefinementKind = -2
	NoRefinement RefinementKind = -1
	// Isotropic splits a triangle into 4 triangles and a quad into 4 quads.
	Isotropic RefinementKind = 0
	// Horizontal splits a quad through the midpoints of edges 1 and 3.
	Horizontal RefinementKind = 1
	// Vertical splits a quad through the midpoints of edges 0 and 2.
	Vertical RefinementKind = 2
	// ToQuads splits a triangle into 3 quads around its centroid.
	ToQuads RefinementKind = 3
	// ToTriangles splits a quad along its shorter diagonal.
	ToTriangles RefinementKind = 4
	// ToBase replaces an element by one son with top-level arcs.
	ToBase RefinementKind = 5
)

func (k RefinementKind) String() string {
	switch k {
	case Unrefine:
		return "unrefine"
	case NoRefinement:
		return "none"
	case Isotropic:
		return "isotropic"
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case ToQuads:
		return "to-quads"
	case ToTriangles:
		return "to-triangles"
	case ToBase:
		return "to-base"
	case fan:
		return "fan"
	}
	return fmt.Sprintf("RefinementKind(%d)", int(k))
}

// ParseRefinementKind returns the refinement kind with the given name
func ParseRefinementKind(name string) (RefinementKind, error) {
	for k := Isotropic; k <= ToBase; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return NoRefinement, usageErrorf("unknown refinement kind %q", name)
}

// Refinement is one entry of the refinement log.
type Refinement struct {
	ElementID int
	Kind      RefinementKind
}

// sonSpec describes one son of a split: its vertices, the reference
// coordinates of its corners inside the parent, the sub-element map used for
// curved parents (-1 to fit top-level arcs instead) and, per son edge, the
// parent edge it lies on or -1.
type sonSpec struct {
	slot     int
	verts    []*Node
	refs     []r2.Vec
	part     int
	onParent []int
}

// RefineElementID splits the active element id. NoRefinement is a no-op.
func (m *Mesh) RefineElementID(id int, kind RefinementKind) error {
	e, err := m.Element(id)
	if err != nil {
		return err
	}
	return m.RefineElement(e, kind)
}

// RefineElement splits e by kind. Triangles treat the anisotropic kinds as
// isotropic; quads treat ToQuads as isotropic.
func (m *Mesh) RefineElement(e *Element, kind RefinementKind) error {
	if kind == NoRefinement {
		return nil
	}
	if err := m.checkRefinable(e); err != nil {
		return err
	}
	switch {
	case kind < Isotropic || kind > ToQuads:
		return usageErrorf("invalid refinement kind %d", kind)
	case e.IsTriangle() && kind == ToQuads:
		return m.refineTriangleToQuads(e)
	case e.IsTriangle():
		return m.refineTriangle(e)
	}
	return m.refineQuad(e, kind)
}

func (m *Mesh) checkRefinable(e *Element) error {
	if e == nil || !e.Used || m.elems[e.ID] != e {
		return usageErrorf("element is not part of the mesh")
	}
	if !e.Active {
		return usageErrorf("element #%d is already refined", e.ID)
	}
	return nil
}

// RefineAllElements refines every active element once. With markAsInitial the
// result counts as the initial mesh for UnrefineAllElements.
func (m *Mesh) RefineAllElements(kind RefinementKind, markAsInitial bool) error {
	for _, id := range m.activeIDs() {
		if err := m.RefineElementID(id, kind); err != nil {
			return err
		}
	}
	if markAsInitial {
		m.ninitial = m.MaxElementID()
	}
	return nil
}

// RefineToQuads turns a triangle into 3 quads and a quad into 4 quads.
// Curved sons get top-level arcs.
func (m *Mesh) RefineToQuads(id int) error {
	e, err := m.Element(id)
	if err != nil {
		return err
	}
	if err = m.checkRefinable(e); err != nil {
		return err
	}
	if e.IsTriangle() {
		return m.refineTriangleToQuads(e)
	}
	return m.refineQuad(e, ToQuads)
}

// RefineToTriangles splits a quad into 2 triangles along its shorter diagonal
func (m *Mesh) RefineToTriangles(id int) error {
	e, err := m.Element(id)
	if err != nil {
		return err
	}
	if err = m.checkRefinable(e); err != nil {
		return err
	}
	if e.IsTriangle() {
		return usageErrorf("element #%d is already a triangle", id)
	}
	return m.refineQuadToTriangles(e)
}

// ConvertElementToBase replaces the element by a single son on the same
// vertices whose curved edges are top-level arcs
func (m *Mesh) ConvertElementToBase(id int) error {
	e, err := m.Element(id)
	if err != nil {
		return err
	}
	if err = m.checkRefinable(e); err != nil {
		return err
	}
	all := make([]int, e.NVert)
	for i := range all {
		all[i] = i
	}
	return m.split(e, ToBase, []sonSpec{
		{slot: 0, verts: m.elementVertices(e), refs: refVerts(e), part: -1, onParent: all},
	})
}

// midpoints returns the midpoint vertices of the listed edges of e
func (m *Mesh) midpoints(e *Element, edges ...int) ([4]*Node, error) {
	var x [4]*Node
	for _, i := range edges {
		v, err := m.midpoint(e, i)
		if err != nil {
			return x, err
		}
		x[i] = v
	}
	return x, nil
}

func (m *Mesh) refineTriangle(e *Element) error {
	x, err := m.midpoints(e, 0, 1, 2)
	if err != nil {
		return err
	}
	v := m.elementVertices(e)
	r := refVerts(e)
	mid := func(i int) r2.Vec { return edgeMidRef(e, i) }
	specs := []sonSpec{
		{0, []*Node{v[0], x[0], x[2]}, []r2.Vec{r[0], mid(0), mid(2)}, 0, []int{0, -1, 2}},
		{1, []*Node{x[0], v[1], x[1]}, []r2.Vec{mid(0), r[1], mid(1)}, 1, []int{0, 1, -1}},
		{2, []*Node{x[2], x[1], v[2]}, []r2.Vec{mid(2), mid(1), r[2]}, 2, []int{-1, 1, 2}},
		{3, []*Node{x[1], x[2], x[0]}, []r2.Vec{mid(1), mid(2), mid(0)}, 3, []int{-1, -1, -1}},
	}
	return m.split(e, Isotropic, specs)
}

// refineQuad splits a quad by kind. ToQuads is the isotropic split with sons
// carrying top-level arcs.
func (m *Mesh) refineQuad(e *Element, kind RefinementKind) error {
	v := m.elementVertices(e)
	r := refVerts(e)
	mid := func(i int) r2.Vec { return edgeMidRef(e, i) }
	part := func(p int) int {
		if kind == ToQuads {
			return -1
		}
		return p
	}
	var specs []sonSpec
	switch kind {
	case Isotropic, ToQuads:
		x, err := m.midpoints(e, 0, 1, 2, 3)
		if err != nil {
			return err
		}
		c, err := m.center(e, x[0], x[2], r2.Vec{})
		if err != nil {
			return err
		}
		o := r2.Vec{}
		specs = []sonSpec{
			{0, []*Node{v[0], x[0], c, x[3]}, []r2.Vec{r[0], mid(0), o, mid(3)}, part(0), []int{0, -1, -1, 3}},
			{1, []*Node{x[0], v[1], x[1], c}, []r2.Vec{mid(0), r[1], mid(1), o}, part(1), []int{0, 1, -1, -1}},
			{2, []*Node{c, x[1], v[2], x[2]}, []r2.Vec{o, mid(1), r[2], mid(2)}, part(2), []int{-1, 1, 2, -1}},
			{3, []*Node{x[3], c, x[2], v[3]}, []r2.Vec{mid(3), o, mid(2), r[3]}, part(3), []int{-1, -1, 2, 3}},
		}
	case Horizontal:
		x, err := m.midpoints(e, 1, 3)
		if err != nil {
			return err
		}
		specs = []sonSpec{
			{0, []*Node{v[0], v[1], x[1], x[3]}, []r2.Vec{r[0], r[1], mid(1), mid(3)}, part(4), []int{0, 1, -1, 3}},
			{1, []*Node{x[3], x[1], v[2], v[3]}, []r2.Vec{mid(3), mid(1), r[2], r[3]}, part(5), []int{-1, 1, 2, 3}},
		}
	case Vertical:
		x, err := m.midpoints(e, 0, 2)
		if err != nil {
			return err
		}
		specs = []sonSpec{
			{2, []*Node{v[0], x[0], x[2], v[3]}, []r2.Vec{r[0], mid(0), mid(2), r[3]}, part(6), []int{0, -1, 2, 3}},
			{3, []*Node{x[0], v[1], v[2], x[2]}, []r2.Vec{mid(0), r[1], r[2], mid(2)}, part(7), []int{0, 1, 2, -1}},
		}
	default:
		return usageErrorf("invalid quad refinement kind %d", kind)
	}
	return m.split(e, kind, specs)
}

func (m *Mesh) refineTriangleToQuads(e *Element) error {
	x, err := m.midpoints(e, 0, 1, 2)
	if err != nil {
		return err
	}
	centroid := r2.Vec{X: -1.0 / 3, Y: -1.0 / 3}
	c, err := m.center(e, x[0], x[1], centroid)
	if err != nil {
		return err
	}
	v := m.elementVertices(e)
	r := refVerts(e)
	mid := func(i int) r2.Vec { return edgeMidRef(e, i) }
	specs := []sonSpec{
		{0, []*Node{v[0], x[0], c, x[2]}, []r2.Vec{r[0], mid(0), centroid, mid(2)}, -1, []int{0, -1, -1, 2}},
		{1, []*Node{x[0], v[1], x[1], c}, []r2.Vec{mid(0), r[1], mid(1), centroid}, -1, []int{0, 1, -1, -1}},
		{2, []*Node{c, x[1], v[2], x[2]}, []r2.Vec{centroid, mid(1), r[2], mid(2)}, -1, []int{-1, 1, 2, -1}},
	}
	return m.split(e, ToQuads, specs)
}

func (m *Mesh) refineQuadToTriangles(e *Element) error {
	v := m.elementVertices(e)
	r := refVerts(e)
	p := m.vertexPositions(e)
	var specs []sonSpec
	if r2.Norm(r2.Sub(p[2], p[0])) <= r2.Norm(r2.Sub(p[3], p[1])) {
		specs = []sonSpec{
			{0, []*Node{v[0], v[1], v[2]}, []r2.Vec{r[0], r[1], r[2]}, -1, []int{0, 1, -1}},
			{1, []*Node{v[0], v[2], v[3]}, []r2.Vec{r[0], r[2], r[3]}, -1, []int{-1, 2, 3}},
		}
	} else {
		specs = []sonSpec{
			{0, []*Node{v[0], v[1], v[3]}, []r2.Vec{r[0], r[1], r[3]}, -1, []int{0, -1, 3}},
			{1, []*Node{v[1], v[2], v[3]}, []r2.Vec{r[1], r[2], r[3]}, -1, []int{1, 2, -1}},
		}
	}
	return m.split(e, ToTriangles, specs)
}

func (m *Mesh) elementVertices(e *Element) []*Node {
	out := make([]*Node, e.NVert)
	for i := range out {
		out[i] = m.nodes.nodes[e.Vn[i]]
	}
	return out
}

// center returns the interior vertex keyed by (a, b), placed at the image of
// the reference point ref. For straight quads with ref at the origin this is
// the midpoint of a and b.
func (m *Mesh) center(e *Element, a, b *Node, ref r2.Vec) (*Node, error) {
	existing := m.nodes.peekVertex(a.ID, b.ID)
	c, err := m.nodes.getVertex(a.ID, b.ID)
	if err != nil || existing != nil {
		return c, err
	}
	var p r2.Vec
	switch {
	case e.CM != nil:
		p = e.CM.Eval(ref)
	case e.IsTriangle():
		p = element.StraightMap(m.vertexPositions(e), ref)
	default:
		return c, nil
	}
	c.X, c.Y = p.X, p.Y
	return c, nil
}

// split replaces e by the sons described in specs. Sons already created are
// removed again if a later one fails validation.
func (m *Mesh) split(e *Element, kind RefinementKind, specs []sonSpec) (err error) {
	parentEdges := make([]*Node, e.NVert)
	for i := range parentEdges {
		parentEdges[i] = m.nodes.nodes[e.En[i]]
	}
	m.detachEdges(e)

	var sons []*Element
	defer func() {
		if err == nil {
			return
		}
		for _, s := range sons {
			m.disconnect(s)
			m.freeElement(s)
		}
		for _, en := range parentEdges {
			en.attach(e.ID)
		}
		for _, sp := range specs {
			for _, v := range sp.verts {
				m.nodes.releaseIfOrphan(v)
			}
		}
		e.Sons = [4]int{noID, noID, noID, noID}
	}()

	for _, sp := range specs {
		var cm *CurvMap
		if e.CM != nil {
			if sp.part >= 0 {
				if cm, err = e.CM.Son(sp.part); err != nil {
					return err
				}
			} else {
				onCurve := make([]bool, len(sp.onParent))
				for k, pe := range sp.onParent {
					onCurve[k] = pe >= 0
				}
				cm = materialize(e.CM, sp.refs, onCurve)
			}
		}
		var son *Element
		if son, err = m.createElement(e.Marker, sp.verts, cm, noID); err != nil {
			return err
		}
		sons = append(sons, son)
		son.Parent = e.ID
		son.IROCache = e.IROCache
		e.Sons[sp.slot] = son.ID
		for k, pe := range sp.onParent {
			if pe < 0 {
				continue
			}
			src := parentEdges[pe]
			en := m.nodes.nodes[son.En[k]]
			if en != src {
				en.Marker = src.Marker
				en.Bnd = src.Bnd
			}
			if src.Bnd {
				m.nodes.nodes[son.Vn[k]].Bnd = true
				m.nodes.nodes[son.Vn[son.Next(k)]].Bnd = true
			}
		}
	}

	m.dropRefs(e)
	e.Active = false
	m.nactive += len(sons) - 1
	m.refinements = append(m.refinements, Refinement{ElementID: e.ID, Kind: kind})
	m.bumpSeq()
	m.logger.Debug("element refined",
		zap.Int("element", e.ID),
		zap.Stringer("kind", kind),
		zap.Int("sons", len(sons)))
	return nil
}

// UnrefineElementID merges the subtree below id back into the element. An
// active element is left alone.
func (m *Mesh) UnrefineElementID(id int) error {
	e, err := m.Element(id)
	if err != nil {
		return err
	}
	if !e.Used {
		return usageErrorf("element #%d is not used", id)
	}
	return m.unrefineRecursive(e)
}

func (m *Mesh) unrefineRecursive(e *Element) error {
	if e.Active {
		return nil
	}
	for _, s := range e.SonIDs() {
		if err := m.unrefineRecursive(m.elems[s]); err != nil {
			return err
		}
	}
	if err := m.unrefineInternal(e); err != nil {
		return err
	}
	m.refinements = append(m.refinements, Refinement{ElementID: e.ID, Kind: Unrefine})
	return nil
}

// unrefineInternal removes the leaf sons of e and reactivates it with fresh
// edges carrying the markers found on the sons' outer edges.
func (m *Mesh) unrefineInternal(e *Element) error {
	sons := e.SonIDs()
	if e.Active || len(sons) == 0 {
		return usageErrorf("element #%d has no sons", e.ID)
	}
	for _, s := range sons {
		if se := m.elems[s]; se == nil || !se.Active || !se.Used {
			return usageErrorf("element #%d: son #%d is not an active leaf", e.ID, s)
		}
	}

	type edgeData struct {
		marker int
		bnd    bool
	}
	saved := make([]edgeData, e.NVert)
	for i := 0; i < e.NVert; i++ {
		if son, k := m.edgeSon(e, i); son != nil {
			en := m.nodes.nodes[son.En[k]]
			saved[i] = edgeData{en.Marker, en.Bnd}
		}
	}

	for i := 0; i < e.NVert; i++ {
		m.nodes.nodes[e.Vn[i]].Ref++
	}
	for _, s := range sons {
		se := m.elems[s]
		m.disconnect(se)
		m.freeElement(se)
	}
	if err := m.connect(e); err != nil {
		return internalErrorf("element #%d: %v", e.ID, err)
	}
	for i := 0; i < e.NVert; i++ {
		m.nodes.nodes[e.Vn[i]].Ref--
		en := m.nodes.nodes[e.En[i]]
		en.Marker = saved[i].marker
		en.Bnd = saved[i].bnd
	}
	e.Active = true
	e.Sons = [4]int{noID, noID, noID, noID}
	m.nactive -= len(sons) - 1
	m.bumpSeq()
	m.logger.Debug("element unrefined", zap.Int("element", e.ID), zap.Int("sons", len(sons)))
	return nil
}

// UnrefineAllElements merges every element whose sons are all leaves. With
// keepInitial, sons below NumInitialElements are kept.
func (m *Mesh) UnrefineAllElements(keepInitial bool) error {
	var list []int
	for e := range m.UsedElements() {
		if e.Active {
			continue
		}
		found := true
		for _, s := range e.SonIDs() {
			if !m.elems[s].Active || (keepInitial && s < m.ninitial) {
				found = false
				break
			}
		}
		if found {
			list = append(list, e.ID)
		}
	}
	for _, id := range list {
		if err := m.UnrefineElementID(id); err != nil {
			return err
		}
	}
	return nil
}

// ReplayRefinements applies a refinement log in order
func (m *Mesh) ReplayRefinements(log []Refinement) error {
	for i, r := range log {
		var err error
		switch r.Kind {
		case Unrefine:
			err = m.UnrefineElementID(r.ElementID)
		case ToTriangles:
			err = m.RefineToTriangles(r.ElementID)
		case ToBase:
			err = m.ConvertElementToBase(r.ElementID)
		default:
			err = m.RefineElementID(r.ElementID, r.Kind)
		}
		if err != nil {
			return fmt.Errorf("replay entry %d (element %d, %s): %w", i, r.ElementID, r.Kind, err)
		}
	}
	return nil
}

// edgeSon returns the son of e owning the part of parent edge i that starts
// at the parent's vertex i, and that son's local edge index
func (m *Mesh) edgeSon(e *Element, i int) (*Element, int) {
	a, b := e.Vn[i], e.Vn[e.Next(i)]
	mid := noID
	if v := m.nodes.peekVertex(a, b); v != nil {
		mid = v.ID
	}
	for _, s := range e.SonIDs() {
		se := m.elems[s]
		for k := 0; k < se.NVert; k++ {
			next := se.Vn[se.Next(k)]
			if se.Vn[k] == a && (next == b || next == mid) {
				return se, k
			}
		}
	}
	return nil, noID
}

// baseEdgeNode returns an existing edge node lying on edge i of e, descending
// the refinement tree when the edge itself has been split
func (m *Mesh) baseEdgeNode(e *Element, i int) *Node {
	for {
		if e.Active {
			return m.nodes.at(e.En[i])
		}
		if en := m.nodes.peekEdge(e.Vn[i], e.Vn[e.Next(i)]); en != nil {
			return en
		}
		son, k := m.edgeSon(e, i)
		if son == nil {
			return nil
		}
		e, i = son, k
	}
}
