package mesh

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundaryEdgeNames(t *testing.T, m *Mesh) map[string]int {
	t.Helper()
	out := make(map[string]int)
	for en := range m.EdgeNodes() {
		if en.Bnd {
			out[boundaryName(t, m, en)]++
		}
	}
	return out
}

func TestConvertQuadsToTriangles(t *testing.T) {
	m := newGrid(t, 2, 2)
	require.NoError(t, m.ConvertQuadsToTriangles())
	requireConsistent(t, m)
	requireConforming(t, m)

	assert.Equal(t, 8, m.NumBaseElements())
	assert.Equal(t, 8, m.NumActiveElements())
	assert.Equal(t, 9, m.NumTopVertices())
	for e := range m.ActiveElements() {
		assert.True(t, e.IsTriangle())
	}
	assert.Equal(t, map[string]int{"bottom": 2, "top": 2, "left": 2, "right": 2}, boundaryEdgeNames(t, m))
	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, area, 1e-12)
	require.NoError(t, m.InitialCheck())
}

func TestConvertTrianglesToQuads(t *testing.T) {
	m := New()
	require.NoError(t, m.Create(triangleBase([3]int{0, 1, 2})))
	require.NoError(t, m.ConvertTrianglesToQuads())
	requireConsistent(t, m)
	requireConforming(t, m)

	assert.Equal(t, 3, m.NumBaseElements())
	assert.Equal(t, 7, m.NumTopVertices())
	for e := range m.ActiveElements() {
		assert.True(t, e.IsQuad())
	}
	assert.Equal(t, map[string]int{"bottom": 2, "diagonal": 2, "left": 2}, boundaryEdgeNames(t, m))
	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, area, 1e-12)

	// quads are split isotropically
	sq := unitSquare(t)
	require.NoError(t, sq.ConvertTrianglesToQuads())
	assert.Equal(t, 4, sq.NumBaseElements())
}

func TestCopyBase(t *testing.T) {
	m := newGrid(t, 2, 2)
	want := snapshot(newGrid(t, 2, 2))
	require.NoError(t, m.RefineElementID(0, Isotropic))
	require.NoError(t, m.RefineElementID(3, Vertical))

	base, err := m.CopyBase()
	require.NoError(t, err)
	requireConsistent(t, base)
	if diff := cmp.Diff(want, snapshot(base)); diff != "" {
		t.Errorf("base copy differs (-want +got):\n%s", diff)
	}
	assert.Empty(t, base.Refinements())
	assert.Equal(t, 8, m.NumActiveElements(), "the source keeps its refinements")
}
