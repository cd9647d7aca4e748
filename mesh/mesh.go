package mesh

import (
	"fmt"
	"iter"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"
)

// sequence numbers are shared by all meshes so that a cache keyed by
// (mesh, seq) can never confuse two meshes' states.
var globalSeq atomic.Uint64

func nextSeq() uint64 { return globalSeq.Add(1) }

const defaultTolerance = 1.4901161193847656e-08 // sqrt(machine epsilon)

// Option configures a Mesh.
type Option func(*Mesh)

// WithLogger sets the structured logger used for refinement tracing
func WithLogger(l *zap.Logger) Option {
	return func(m *Mesh) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTolerance sets the minimum edge and diagonal length accepted by the
// element validators
func WithTolerance(tol float64) Option {
	return func(m *Mesh) {
		if tol > 0 {
			m.tol = tol
		}
	}
}

// Mesh is a hierarchical 2D mesh of triangles and quads. Elements and nodes
// live in id-indexed arenas; every cross reference is an id.
type Mesh struct {
	nodes nodeStore
	elems []*Element
	// freed element slots hold nil and are listed here
	freeElems []int

	ElementMarkers  *Markers
	BoundaryMarkers *Markers

	seq      uint64
	nbase    int
	nactive  int
	ntopvert int
	ninitial int

	refinements []Refinement

	tol    float64
	logger *zap.Logger

	grid  *hashGrid
	areas map[int]markerArea
}

// New returns an empty mesh
func New(opts ...Option) *Mesh {
	m := &Mesh{
		tol:    defaultTolerance,
		logger: zap.NewNop(),
	}
	m.reset()
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mesh) reset() {
	m.nodes = newNodeStore()
	m.elems = nil
	m.freeElems = nil
	m.ElementMarkers = NewMarkers(ElementMarkers)
	m.BoundaryMarkers = NewMarkers(BoundaryMarkers)
	m.nbase, m.nactive, m.ntopvert, m.ninitial = 0, 0, 0, 0
	m.refinements = nil
	m.grid = nil
	m.areas = nil
	m.seq = nextSeq()
}

func (m *Mesh) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	m.logger = l
}

func (m *Mesh) Logger() *zap.Logger { return m.logger }

// Seq identifies the current topology; it changes whenever nodes or elements change
func (m *Mesh) Seq() uint64 { return m.seq }

func (m *Mesh) bumpSeq() { m.seq = nextSeq() }

// Refinements returns the log of applied refinements and unrefinements
func (m *Mesh) Refinements() []Refinement {
	return append([]Refinement(nil), m.refinements...)
}

// CurvedEdge bends the edge joining two base vertices into a circular arc of
// Angle degrees, positive to the right of travel from V1 to V2.
type CurvedEdge struct {
	V1, V2 int
	Angle  float64
}

// BaseMesh is the flat description a mesh is created from.
type BaseMesh struct {
	Vertices        []r2.Vec
	Triangles       [][3]int
	TriangleMarkers []string
	Quads           [][4]int
	QuadMarkers     []string
	BoundaryEdges   [][2]int
	BoundaryMarkers []string
	Curves          []CurvedEdge
}

// Create replaces the mesh contents with a base mesh. Triangles given in
// clockwise order are reordered; any other invalid element aborts the call
// and leaves the mesh empty.
func (m *Mesh) Create(b BaseMesh) (err error) {
	m.reset()
	defer func() {
		if err != nil {
			m.reset()
		}
	}()
	if len(b.TriangleMarkers) != len(b.Triangles) || len(b.QuadMarkers) != len(b.Quads) ||
		len(b.BoundaryMarkers) != len(b.BoundaryEdges) {
		return usageErrorf("marker count does not match element or edge count")
	}

	for _, v := range b.Vertices {
		m.nodes.addTopVertex(v.X, v.Y)
	}
	m.ntopvert = len(b.Vertices)
	vertex := func(elem, id int) (*Node, error) {
		if id < 0 || id >= m.ntopvert {
			return nil, &LoadError{ElementID: elem, Reason: fmt.Sprintf("vertex %d does not exist", id)}
		}
		return m.nodes.nodes[id], nil
	}

	for i, t := range b.Triangles {
		vs := make([]*Node, 3)
		for j, id := range t {
			if vs[j], err = vertex(m.nextElementID(), id); err != nil {
				return err
			}
		}
		if err = m.CheckTriangle(m.nextElementID(), vs); err != nil {
			return err
		}
		marker := m.ElementMarkers.Insert(b.TriangleMarkers[i])
		if _, err = m.CreateTriangle(marker, vs[0], vs[1], vs[2], nil, noID); err != nil {
			return err
		}
	}
	for i, q := range b.Quads {
		vs := make([]*Node, 4)
		for j, id := range q {
			if vs[j], err = vertex(m.nextElementID(), id); err != nil {
				return err
			}
		}
		if err = m.CheckQuad(m.nextElementID(), vs); err != nil {
			return err
		}
		marker := m.ElementMarkers.Insert(b.QuadMarkers[i])
		if _, err = m.CreateQuad(marker, vs[0], vs[1], vs[2], vs[3], nil, noID); err != nil {
			return err
		}
	}

	for i, be := range b.BoundaryEdges {
		en := m.nodes.peekEdge(be[0], be[1])
		if en == nil {
			return fmt.Errorf("%w: boundary data error (edge %d-%d does not exist)", ErrMeshLoad, be[0], be[1])
		}
		en.Marker = m.BoundaryMarkers.Insert(b.BoundaryMarkers[i])
		en.Bnd = true
		m.nodes.nodes[be[0]].Bnd = true
		m.nodes.nodes[be[1]].Bnd = true
	}
	// interior edges carry marker 0 and may not be curved unless both sides agree
	for _, c := range b.Curves {
		if err = m.curveEdge(c); err != nil {
			return err
		}
	}

	m.nbase = len(m.elems)
	m.nactive = m.nbase
	m.ninitial = m.nbase
	m.bumpSeq()
	m.logger.Debug("mesh created",
		zap.Int("vertices", m.ntopvert),
		zap.Int("triangles", len(b.Triangles)),
		zap.Int("quads", len(b.Quads)),
		zap.Int("boundary_edges", len(b.BoundaryEdges)))
	return nil
}

func (m *Mesh) curveEdge(c CurvedEdge) error {
	en := m.nodes.peekEdge(c.V1, c.V2)
	if en == nil {
		return fmt.Errorf("%w: curved edge %d-%d does not exist", ErrMeshLoad, c.V1, c.V2)
	}
	for _, id := range en.Elem {
		if id == noID {
			continue
		}
		e := m.elems[id]
		i := e.EdgeIndex(en.ID)
		a, b := m.nodes.nodes[e.Vn[i]], m.nodes.nodes[e.Vn[e.Next(i)]]
		angle := c.Angle
		if a.ID != c.V1 {
			angle = -angle
		}
		arc, err := NewArc(a.Pos(), b.Pos(), angle)
		if err != nil {
			return fmt.Errorf("%w: curved edge %d-%d: %v", ErrMeshLoad, c.V1, c.V2, err)
		}
		if e.CM == nil {
			e.CM = NewCurvMap(m.vertexPositions(e), [4]*Arc{})
		}
		e.CM.Curves[i] = arc
	}
	return nil
}

func (m *Mesh) vertexPositions(e *Element) []r2.Vec {
	out := make([]r2.Vec, e.NVert)
	for i := 0; i < e.NVert; i++ {
		out[i] = m.nodes.nodes[e.Vn[i]].Pos()
	}
	return out
}

// VertexPositions returns the coordinates of an element's vertices
func (m *Mesh) VertexPositions(e *Element) []r2.Vec { return m.vertexPositions(e) }

// Element returns the element with the given id
func (m *Mesh) Element(id int) (*Element, error) {
	if id < 0 || id >= len(m.elems) || m.elems[id] == nil {
		return nil, usageErrorf("invalid element id %d", id)
	}
	return m.elems[id], nil
}

// Node returns the node with the given id
func (m *Mesh) Node(id int) (*Node, error) {
	n := m.nodes.at(id)
	if n == nil {
		return nil, internalErrorf("invalid node id %d", id)
	}
	return n, nil
}

// PeekVertexNode returns the midpoint vertex of (id1, id2) or nil when it
// does not exist. Ids that do not name two vertices are an ErrInternal.
func (m *Mesh) PeekVertexNode(id1, id2 int) (*Node, error) {
	if err := m.nodes.validPair(id1, id2); err != nil {
		return nil, err
	}
	return m.nodes.peekVertex(id1, id2), nil
}

// GetVertexNode returns the midpoint vertex of (id1, id2), creating it if needed
func (m *Mesh) GetVertexNode(id1, id2 int) (*Node, error) { return m.nodes.getVertex(id1, id2) }

// PeekEdgeNode returns the edge joining id1 and id2 or nil when it does not
// exist. Ids that do not name two vertices are an ErrInternal.
func (m *Mesh) PeekEdgeNode(id1, id2 int) (*Node, error) {
	if err := m.nodes.validPair(id1, id2); err != nil {
		return nil, err
	}
	return m.nodes.peekEdge(id1, id2), nil
}

// GetEdgeNode returns the edge joining id1 and id2, creating it if needed
func (m *Mesh) GetEdgeNode(id1, id2 int) (*Node, error) { return m.nodes.getEdge(id1, id2) }

func (m *Mesh) NumElements() int {
	n := 0
	for _, e := range m.elems {
		if e != nil && e.Used {
			n++
		}
	}
	return n
}

func (m *Mesh) NumBaseElements() int { return m.nbase }

func (m *Mesh) NumUsedBaseElements() int {
	n := 0
	for id := 0; id < m.nbase && id < len(m.elems); id++ {
		if e := m.elems[id]; e != nil && e.Used {
			n++
		}
	}
	return n
}

func (m *Mesh) NumActiveElements() int { return m.nactive }

// MaxElementID returns one past the largest element id ever allocated
func (m *Mesh) MaxElementID() int { return len(m.elems) }

// MaxNodeID returns one past the largest node id ever allocated
func (m *Mesh) MaxNodeID() int { return len(m.nodes.nodes) }

func (m *Mesh) NumTopVertices() int { return m.ntopvert }

// NumInitialElements is the id below which elements count as initial
func (m *Mesh) NumInitialElements() int { return m.ninitial }

func (m *Mesh) NumVertexNodes() int {
	n := 0
	for range m.VertexNodes() {
		n++
	}
	return n
}

func (m *Mesh) NumEdgeNodes() int {
	n := 0
	for range m.EdgeNodes() {
		n++
	}
	return n
}

// ActiveElements iterates the used leaf elements in id order
func (m *Mesh) ActiveElements() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, e := range m.elems {
			if e != nil && e.Used && e.Active && !yield(e) {
				return
			}
		}
	}
}

// UsedElements iterates all used elements, active or not
func (m *Mesh) UsedElements() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, e := range m.elems {
			if e != nil && e.Used && !yield(e) {
				return
			}
		}
	}
}

func (m *Mesh) VertexNodes() iter.Seq[*Node] { return m.nodesOfType(VertexNode) }

func (m *Mesh) EdgeNodes() iter.Seq[*Node] { return m.nodesOfType(EdgeNode) }

func (m *Mesh) nodesOfType(t NodeType) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range m.nodes.nodes {
			if n != nil && n.Type == t && !yield(n) {
				return
			}
		}
	}
}

// activeIDs snapshots the active element ids so callers may refine while walking
func (m *Mesh) activeIDs() []int {
	ids := make([]int, 0, m.nactive)
	for e := range m.ActiveElements() {
		ids = append(ids, e.ID)
	}
	return ids
}

// BoundingBox returns the box spanned by all vertex nodes
func (m *Mesh) BoundingBox() r2.Box {
	box := r2.Box{
		Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
		Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for n := range m.VertexNodes() {
		box.Min.X = math.Min(box.Min.X, n.X)
		box.Min.Y = math.Min(box.Min.Y, n.Y)
		box.Max.X = math.Max(box.Max.X, n.X)
		box.Max.Y = math.Max(box.Max.Y, n.Y)
	}
	return box
}

// Copy returns a deep structural copy with identical ids and the same seq
func (m *Mesh) Copy() *Mesh {
	c := &Mesh{
		nodes:           m.nodes.clone(),
		elems:           make([]*Element, len(m.elems)),
		freeElems:       append([]int(nil), m.freeElems...),
		ElementMarkers:  m.ElementMarkers.clone(),
		BoundaryMarkers: m.BoundaryMarkers.clone(),
		seq:             m.seq,
		nbase:           m.nbase,
		nactive:         m.nactive,
		ntopvert:        m.ntopvert,
		ninitial:        m.ninitial,
		refinements:     append([]Refinement(nil), m.refinements...),
		tol:             m.tol,
		logger:          m.logger,
	}
	for i, e := range m.elems {
		if e != nil {
			c.elems[i] = e.clone()
		}
	}
	return c
}

// Rescale divides all coordinates by (xRef, yRef). Curved meshes are refused.
func (m *Mesh) Rescale(xRef, yRef float64) error {
	if xRef == 0 || yRef == 0 {
		return usageErrorf("rescale by zero")
	}
	for e := range m.UsedElements() {
		if e.IsCurved() {
			return &CurvedError{ElementID: e.ID, Op: "rescale"}
		}
	}
	for n := range m.VertexNodes() {
		n.X /= xRef
		n.Y /= yRef
	}
	m.bumpSeq()
	return nil
}
