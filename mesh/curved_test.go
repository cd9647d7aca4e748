package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// curvedSquare is the unit square whose top edge bulges into a 90 degree arc
// centred at (0.5, 0.5)
func curvedSquare(t *testing.T) *Mesh {
	t.Helper()
	b := gridBase(1, 1, domain)
	b.Curves = []CurvedEdge{{V1: 3, V2: 2, Angle: 90}}
	m := New()
	require.NoError(t, m.Create(b))
	return m
}

// area of the unit square plus the circular segment on its top edge
var curvedSquareArea = 1 + 0.25*(math.Pi/2-1)

func TestArc(t *testing.T) {
	arc, err := NewArc(r2.Vec{}, r2.Vec{X: 1}, 90)
	require.NoError(t, err)
	p := arc.Eval(0)
	assert.InDelta(t, 0, r2.Norm(p), 1e-15)
	p = arc.Eval(1)
	assert.InDelta(t, 0, r2.Norm(r2.Sub(p, r2.Vec{X: 1})), 1e-15)

	// positive angles bulge to the right of travel
	mid := arc.Eval(0.5)
	assert.InDelta(t, 0.5, mid.X, 1e-12)
	assert.InDelta(t, -(math.Sqrt2-1)/2, mid.Y, 1e-12)
	center := r2.Vec{X: 0.5, Y: 0.5}
	for _, s := range []float64{0.1, 0.3, 0.7, 0.9} {
		assert.InDelta(t, math.Sqrt2/2, r2.Norm(r2.Sub(arc.Eval(s), center)), 1e-12, "t=%g", s)
	}
	assert.InDelta(t, 90, arcAngleThrough(r2.Vec{}, mid, r2.Vec{X: 1}), 1e-9)

	rev := arc.Reversed()
	assert.Equal(t, -90.0, rev.Angle)
	for _, s := range []float64{0, 0.25, 0.5, 1} {
		assert.InDelta(t, 0, r2.Norm(r2.Sub(rev.Eval(s), arc.Eval(1-s))), 1e-12)
	}

	_, err = NewArc(r2.Vec{}, r2.Vec{X: 1}, 180)
	assert.ErrorIs(t, err, ErrUsage)
	_, err = NewArc(r2.Vec{X: 1}, r2.Vec{X: 1}, 30)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestCurvedEdgeRefinement(t *testing.T) {
	m := curvedSquare(t)
	e, _ := m.Element(0)
	require.True(t, e.IsCurved())
	require.NotNil(t, e.CM.Curves[2])
	require.NoError(t, m.InitialCheck())

	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, curvedSquareArea, area, 1e-6)

	require.NoError(t, m.RefineElementID(0, Isotropic))
	requireConsistent(t, m)
	top := vertexNode(t, m, 3, 2)
	require.NotNil(t, top)
	assert.InDelta(t, 0.5, top.X, 1e-12)
	assert.InDelta(t, 1+(math.Sqrt2-1)/2, top.Y, 1e-12)
	bottom := vertexNode(t, m, 0, 1)
	require.NotNil(t, bottom)
	assert.Equal(t, r2.Vec{X: 0.5, Y: 0}, bottom.Pos())

	refined, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, curvedSquareArea, refined, 1e-6)
	require.NoError(t, m.InitialCheck())

	// a second level keeps new vertices on the circle
	e, _ = m.Element(0)
	upper, _ := m.Element(e.Sons[2])
	require.True(t, upper.IsCurved())
	assert.False(t, upper.CM.TopLevel)
	require.NoError(t, m.RefineElementID(upper.ID, Isotropic))
	v := vertexNode(t, m, upper.Vn[2], upper.Vn[3])
	require.NotNil(t, v)
	assert.InDelta(t, math.Sqrt2/2, r2.Norm(r2.Sub(v.Pos(), r2.Vec{X: 0.5, Y: 0.5})), 1e-9)
}

func TestCurvedTriangleArea(t *testing.T) {
	b := triangleBase([3]int{0, 1, 2})
	b.Curves = []CurvedEdge{{V1: 1, V2: 2, Angle: 90}}
	m := New()
	require.NoError(t, m.Create(b))
	require.NoError(t, m.InitialCheck())

	// the arc is the unit circle, so the element is a quarter disc
	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, area, 1e-3)

	require.NoError(t, m.RefineElementID(0, Isotropic))
	mid := vertexNode(t, m, 1, 2)
	require.NotNil(t, mid)
	assert.InDelta(t, 1, r2.Norm(mid.Pos()), 1e-9)
}

func TestCurvedEdgeReversedDirection(t *testing.T) {
	b := gridBase(1, 1, domain)
	b.Curves = []CurvedEdge{{V1: 2, V2: 3, Angle: -90}}
	m := New()
	require.NoError(t, m.Create(b))
	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, curvedSquareArea, area, 1e-6)
}

func TestCurvedMeshPolicies(t *testing.T) {
	m := curvedSquare(t)
	err := m.Rescale(2, 2)
	var ce *CurvedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.ElementID)
	assert.ErrorIs(t, err, ErrPolicy)

	b := gridBase(1, 1, domain)
	b.Curves = []CurvedEdge{{V1: 0, V2: 3, Angle: 30}}
	assert.ErrorIs(t, New().Create(b), ErrMeshLoad, "curving a missing edge")
}

func TestConvertToBaseFitsArcs(t *testing.T) {
	m := curvedSquare(t)
	require.NoError(t, m.RefineElementID(0, Isotropic))
	require.NoError(t, m.ConvertToBase())
	requireConsistent(t, m)
	requireConforming(t, m)

	assert.Equal(t, 4, m.NumBaseElements())
	assert.Equal(t, 4, m.MaxElementID())
	assert.Empty(t, m.Refinements())
	for e := range m.ActiveElements() {
		assert.Equal(t, -1, e.Parent)
		if e.CM != nil {
			assert.True(t, e.CM.TopLevel)
		}
	}
	for _, id := range []int{2, 3} {
		e, _ := m.Element(id)
		require.NotNil(t, e.CM, "element %d", id)
		require.NotNil(t, e.CM.Curves[2], "element %d", id)
		assert.InDelta(t, 45, e.CM.Curves[2].Angle, 1e-6)
		assert.Equal(t, "top", boundaryName(t, m, edgeOf(m, e, 2)))
	}
	first, _ := m.Element(0)
	if first.CM != nil {
		assert.Nil(t, first.CM.Curves[0], "the bottom edge stays straight")
	}

	area, err := m.MarkerArea("domain")
	require.NoError(t, err)
	assert.InDelta(t, curvedSquareArea, area, 1e-6)
	require.NoError(t, m.InitialCheck())
}

func TestQuarterAnnulus(t *testing.T) {
	m := New()
	require.NoError(t, m.Create(BaseMesh{
		Vertices:        []r2.Vec{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}, {X: 0, Y: 1}},
		Quads:           [][4]int{{0, 1, 2, 3}},
		QuadMarkers:     []string{"ring"},
		BoundaryEdges:   [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		BoundaryMarkers: []string{"axis", "outer", "axis", "inner"},
		Curves:          []CurvedEdge{{V1: 1, V2: 2, Angle: 90}, {V1: 0, V2: 3, Angle: 90}},
	}))
	require.NoError(t, m.InitialCheck())
	want := 3 * math.Pi / 4
	area, err := m.MarkerArea("ring")
	require.NoError(t, err)
	assert.InDelta(t, want, area, 1e-6)

	require.NoError(t, m.RefineAllElements(Isotropic, false))
	require.NoError(t, m.RefineAllElements(Isotropic, false))
	requireConsistent(t, m)
	require.NoError(t, m.InitialCheck())
	area, err = m.MarkerArea("ring")
	require.NoError(t, err)
	assert.InDelta(t, want, area, 1e-6)

	outer := vertexNode(t, m, 1, 2)
	require.NotNil(t, outer)
	assert.InDelta(t, 2, r2.Norm(outer.Pos()), 1e-9)
	inner := vertexNode(t, m, 3, 0)
	require.NotNil(t, inner)
	assert.InDelta(t, 1, r2.Norm(inner.Pos()), 1e-9)
	for v := range m.VertexNodes() {
		if !v.Bnd {
			continue
		}
		r := r2.Norm(v.Pos())
		onAxis := math.Abs(v.X) < 1e-12 || math.Abs(v.Y) < 1e-12
		onArc := math.Abs(r-1) < 1e-9 || math.Abs(r-2) < 1e-9
		assert.True(t, onAxis || onArc, "boundary vertex %v", v.Pos())
	}
}
