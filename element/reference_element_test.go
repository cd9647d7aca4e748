package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestSonMapsCoverParent(t *testing.T) {
	for _, g := range []ElementGeometry{Tri, Rectangle} {
		props := Properties(g)
		parentArea := PolygonArea(ReferenceVertices(g))
		// isotropic sons tile the parent
		var total float64
		for part := 0; part < 4; part++ {
			sm, err := SonMap(g, part)
			require.NoError(t, err)
			total += sm.Scale() * parentArea
		}
		assert.InDelta(t, parentArea, total, 1e-14, props.ShortName)
	}
}

func TestTriangleSonMapVertices(t *testing.T) {
	ref := ReferenceVertices(Tri)
	mid := func(i int) r2.Vec { return EdgeMidpoint(Tri, i) }
	// sons (v0,x0,x2) (x0,v1,x1) (x2,x1,v2) (x1,x2,x0)
	expect := [][]r2.Vec{
		{ref[0], mid(0), mid(2)},
		{mid(0), ref[1], mid(1)},
		{mid(2), mid(1), ref[2]},
		{mid(1), mid(2), mid(0)},
	}
	for part, want := range expect {
		sm, err := SonMap(Tri, part)
		require.NoError(t, err)
		for i, v := range ref {
			got := sm.Apply(v)
			assert.InDelta(t, want[i].X, got.X, 1e-15)
			assert.InDelta(t, want[i].Y, got.Y, 1e-15)
		}
	}
}

func TestQuadAnisotropicSonMaps(t *testing.T) {
	sm, err := SonMap(Rectangle, 4)
	require.NoError(t, err)
	assert.Equal(t, r2.Vec{X: 1, Y: 0}, sm.Apply(r2.Vec{X: 1, Y: 1}))
	sm, err = SonMap(Rectangle, 7)
	require.NoError(t, err)
	assert.Equal(t, r2.Vec{X: 0, Y: -1}, sm.Apply(r2.Vec{X: -1, Y: -1}))
	_, err = SonMap(Rectangle, 8)
	assert.Error(t, err)
	_, err = SonMap(Line, 0)
	assert.Error(t, err)
}

func TestStraightJacobian(t *testing.T) {
	verts := []r2.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 0, Y: 1}}
	J, err := StraightJacobian(verts, r2.Vec{X: 0.3, Y: -0.2})
	require.NoError(t, err)
	// area 2 over reference area 4
	assert.InDelta(t, 0.5, mat.Det(J), 1e-14)

	tri := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	J, err = StraightJacobian(tri, r2.Vec{})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, mat.Det(J), 1e-14)
	assert.Equal(t, r2.Vec{X: 0.5, Y: 0}, StraightMap(tri, EdgeMidpoint(Tri, 0)))

	_, err = StraightJacobian(verts[:2], r2.Vec{})
	assert.Error(t, err)
}

func TestGeometryFor(t *testing.T) {
	g, err := GeometryFor(4)
	require.NoError(t, err)
	assert.Equal(t, Rectangle, g)
	assert.Equal(t, 4, g.NumVertices())
	_, err = GeometryFor(5)
	assert.Error(t, err)
	assert.InDelta(t, -1./3., Centroid(Tri).X, 1e-15)
}
