package mesh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// gridBase describes an nx by ny grid of unit quads with one boundary
// marker per side. Element (i, j) has id j*nx+i.
func gridBase(nx, ny int, marker func(i, j int) string) BaseMesh {
	var b BaseMesh
	vid := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			b.Vertices = append(b.Vertices, r2.Vec{X: float64(i), Y: float64(j)})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			b.Quads = append(b.Quads, [4]int{vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)})
			b.QuadMarkers = append(b.QuadMarkers, marker(i, j))
		}
	}
	edge := func(a, c int, name string) {
		b.BoundaryEdges = append(b.BoundaryEdges, [2]int{a, c})
		b.BoundaryMarkers = append(b.BoundaryMarkers, name)
	}
	for i := 0; i < nx; i++ {
		edge(vid(i, 0), vid(i+1, 0), "bottom")
		edge(vid(i+1, ny), vid(i, ny), "top")
	}
	for j := 0; j < ny; j++ {
		edge(vid(nx, j), vid(nx, j+1), "right")
		edge(vid(0, j+1), vid(0, j), "left")
	}
	return b
}

func domain(int, int) string { return "domain" }

func newGrid(t *testing.T, nx, ny int) *Mesh {
	t.Helper()
	m := New()
	require.NoError(t, m.Create(gridBase(nx, ny, domain)))
	return m
}

func unitSquare(t *testing.T) *Mesh { return newGrid(t, 1, 1) }

// strip is two unit quads side by side; quad 1's edge 3 is the shared edge
func strip(t *testing.T) *Mesh { return newGrid(t, 2, 1) }

func vertexNode(t *testing.T, m *Mesh, a, b int) *Node {
	t.Helper()
	n, err := m.PeekVertexNode(a, b)
	require.NoError(t, err)
	return n
}

func edgeNode(t *testing.T, m *Mesh, a, b int) *Node {
	t.Helper()
	n, err := m.PeekEdgeNode(a, b)
	require.NoError(t, err)
	return n
}

// requireConsistent checks reference counts and edge back-references
// against the active elements
func requireConsistent(t *testing.T, m *Mesh) {
	t.Helper()
	count := make(map[int]int)
	cites := make(map[int][]int)
	nactive := 0
	for e := range m.ActiveElements() {
		nactive++
		for i := 0; i < e.NVert; i++ {
			count[e.Vn[i]]++
			count[e.En[i]]++
			cites[e.En[i]] = append(cites[e.En[i]], e.ID)
		}
	}
	require.Equal(t, nactive, m.NumActiveElements(), "active count")
	for _, n := range m.nodes.nodes {
		if n == nil {
			continue
		}
		require.Equal(t, count[n.ID], n.Ref, "references of %s node %d", n.Type, n.ID)
		if n.Ref == 0 {
			require.True(t, n.Type == VertexNode && n.TopLevel, "unreferenced %s node %d survives", n.Type, n.ID)
		}
		if n.Type == EdgeNode {
			require.Equal(t, len(cites[n.ID]), n.NumElements(), "elements on edge %d", n.ID)
			for _, id := range cites[n.ID] {
				require.Contains(t, n.Elem[:], id)
			}
			require.Same(t, n, edgeNode(t, m, n.P1, n.P2))
		}
	}
}

// requireConforming checks that every edge is a boundary edge or shared by
// exactly two active elements
func requireConforming(t *testing.T, m *Mesh) {
	t.Helper()
	for en := range m.EdgeNodes() {
		if en.Bnd {
			require.Equal(t, 1, en.NumElements(), "boundary edge %d", en.ID)
			continue
		}
		require.Equal(t, 2, en.NumElements(), "inner edge %d-%d", en.P1, en.P2)
	}
}

type elemSnap struct {
	NVert       int
	Marker      int
	Verts       []r2.Vec
	EdgeMarkers []int
	EdgeBnd     []bool
}

type meshSnap struct {
	Active     map[int]elemSnap
	NActive    int
	NVertNodes int
	NEdgeNodes int
}

func snapshot(m *Mesh) meshSnap {
	s := meshSnap{
		Active:     make(map[int]elemSnap),
		NActive:    m.NumActiveElements(),
		NVertNodes: m.NumVertexNodes(),
		NEdgeNodes: m.NumEdgeNodes(),
	}
	for e := range m.ActiveElements() {
		es := elemSnap{NVert: e.NVert, Marker: e.Marker, Verts: m.VertexPositions(e)}
		for i := 0; i < e.NVert; i++ {
			en := m.nodes.nodes[e.En[i]]
			es.EdgeMarkers = append(es.EdgeMarkers, en.Marker)
			es.EdgeBnd = append(es.EdgeBnd, en.Bnd)
		}
		s.Active[e.ID] = es
	}
	return s
}

func boundaryName(t *testing.T, m *Mesh, en *Node) string {
	t.Helper()
	name, ok := m.BoundaryMarkers.User(en.Marker)
	require.True(t, ok, fmt.Sprintf("edge %d marker %d", en.ID, en.Marker))
	return name
}

func edgeOf(m *Mesh, e *Element, i int) *Node { return m.nodes.nodes[e.En[i]] }
