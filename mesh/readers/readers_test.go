package readers

import (
	"path/filepath"
	"testing"

	gmesh "github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/utils"
	"github.com/notargets/hpmesh/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// squareMesh is a unit square quad stored clockwise, with a named fluid
// group, a wall line group and a named inlet set
func squareMesh(t *testing.T) *gmesh.Mesh {
	t.Helper()
	g := gmesh.NewMesh()
	g.ElementGroups[1] = &gmesh.ElementGroup{Dimension: 2, Tag: 1, Name: "fluid"}
	g.ElementGroups[2] = &gmesh.ElementGroup{Dimension: 1, Tag: 2, Name: "wall"}
	for i, c := range [][]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {5, 5, 5}} {
		g.AddNode(i+1, c)
	}
	require.NoError(t, g.AddElement(1, utils.Quad, []int{1, 1}, []int{1, 4, 3, 2}))
	require.NoError(t, g.AddElement(2, utils.Line, []int{2, 2}, []int{1, 2}))
	require.NoError(t, g.AddElement(3, utils.Line, []int{2, 2}, []int{3, 4}))
	require.NoError(t, g.AddElement(4, utils.Line, []int{7, 7}, []int{2, 3}))
	g.AddBoundaryElement("inlet", gmesh.BoundaryElement{ElementType: utils.Line, Nodes: []int{3, 0}, ParentElement: -1, ParentFace: -1})
	// already covered by a wall line
	g.AddBoundaryElement("inlet", gmesh.BoundaryElement{ElementType: utils.Line, Nodes: []int{1, 0}, ParentElement: -1, ParentFace: -1})
	return g
}

func TestFromGocfd(t *testing.T) {
	b, err := FromGocfd(squareMesh(t))
	require.NoError(t, err)

	require.Len(t, b.Vertices, 4, "the unused node is dropped")
	require.Len(t, b.Quads, 1)
	assert.Equal(t, []string{"fluid"}, b.QuadMarkers)
	q := b.Quads[0]
	p := []r2.Vec{b.Vertices[q[0]], b.Vertices[q[1]], b.Vertices[q[2]], b.Vertices[q[3]]}
	assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}, p)

	assert.Len(t, b.BoundaryEdges, 4)
	assert.ElementsMatch(t, []string{"wall", "wall", "7", "inlet"}, b.BoundaryMarkers)

	m := mesh.New()
	require.NoError(t, m.Create(b))
	assert.Equal(t, 1, m.NumActiveElements())
	require.NoError(t, m.InitialCheck())
	area, err := m.MarkerArea("fluid")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, area, 1e-12)
}

func TestFromGocfdTriangles(t *testing.T) {
	g := gmesh.NewMesh()
	for i, c := range [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		g.AddNode(i+1, c)
	}
	require.NoError(t, g.AddElement(1, utils.Triangle, []int{3}, []int{1, 2, 3}))
	require.NoError(t, g.AddElement(2, utils.Triangle6, nil, []int{2, 4, 3, 1, 1, 1}))
	require.NoError(t, g.AddElement(3, utils.Tet, nil, []int{1, 2, 3, 4}))

	b, err := FromGocfd(g)
	require.NoError(t, err)
	assert.Len(t, b.Triangles, 2)
	assert.Equal(t, []string{"3", DefaultMarker}, b.TriangleMarkers)
	assert.Empty(t, b.BoundaryEdges)

	m := mesh.New()
	require.NoError(t, m.Create(b))
	assert.Equal(t, 2, m.NumActiveElements())
}

func TestFromGocfdErrors(t *testing.T) {
	_, err := FromGocfd(nil)
	assert.ErrorIs(t, err, mesh.ErrMeshLoad)

	_, err = FromGocfd(gmesh.NewMesh())
	assert.ErrorIs(t, err, mesh.ErrMeshLoad)

	g := gmesh.NewMesh()
	g.AddNode(1, []float64{0, 0})
	g.AddNode(2, []float64{1, 0})
	require.NoError(t, g.AddElement(1, utils.Line, nil, []int{1, 2}))
	_, err = FromGocfd(g)
	assert.ErrorIs(t, err, mesh.ErrMeshLoad, "lines only")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.msh"))
	assert.ErrorIs(t, err, mesh.ErrMeshLoad)
}
