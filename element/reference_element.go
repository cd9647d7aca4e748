package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// ElementProperties contains metadata describing a reference element
type ElementProperties struct {
	Name       string          // Full descriptive name
	ShortName  string          // Abbreviated name
	Type       ElementGeometry // Element shape
	NVp        int             // Number of vertices
	NEdges     int             // Number of edges
	NSubMaps   int             // Number of sub-element maps used by refinement
	Dimensions Dimensionality
}

// Properties returns the reference metadata of a 2D shape
func Properties(g ElementGeometry) ElementProperties {
	switch g {
	case Tri:
		return ElementProperties{Name: "Reference Triangle", ShortName: "Tri",
			Type: Tri, NVp: 3, NEdges: 3, NSubMaps: len(triSubMaps), Dimensions: D2}
	case Rectangle:
		return ElementProperties{Name: "Reference Quadrilateral", ShortName: "Quad",
			Type: Rectangle, NVp: 4, NEdges: 4, NSubMaps: len(quadSubMaps), Dimensions: D2}
	}
	return ElementProperties{Name: "Reference Line", ShortName: "Line", Type: Line,
		NVp: 2, NEdges: 1, Dimensions: D1}
}

// Reference vertices in [-1,1]^2, counter-clockwise. Edge i joins vertex i to vertex i+1.
var (
	triVertices  = []r2.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}}
	quadVertices = []r2.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
)

// ReferenceVertices returns a copy of the reference corner coordinates
func ReferenceVertices(g ElementGeometry) []r2.Vec {
	var src []r2.Vec
	switch g {
	case Tri:
		src = triVertices
	case Rectangle:
		src = quadVertices
	default:
		return nil
	}
	out := make([]r2.Vec, len(src))
	copy(out, src)
	return out
}

// EdgePoint returns the reference point at parameter t in [0,1] along edge
func EdgePoint(g ElementGeometry, edge int, t float64) r2.Vec {
	v := ReferenceVertices(g)
	a, b := v[edge%len(v)], v[(edge+1)%len(v)]
	return r2.Add(r2.Scale(1-t, a), r2.Scale(t, b))
}

// EdgeMidpoint returns the reference midpoint of an edge
func EdgeMidpoint(g ElementGeometry, edge int) r2.Vec {
	return EdgePoint(g, edge, 0.5)
}

// Centroid returns the reference centroid
func Centroid(g ElementGeometry) r2.Vec {
	if g == Tri {
		return r2.Vec{X: -1. / 3., Y: -1. / 3.}
	}
	return r2.Vec{}
}

// SubMap is the affine map from a son's reference domain into its parent's
// reference domain: p -> A*p + B.
type SubMap struct {
	A *mat.Dense
	B r2.Vec
}

// Apply maps a son reference point into the parent reference domain
func (s SubMap) Apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: s.A.At(0, 0)*p.X + s.A.At(0, 1)*p.Y + s.B.X,
		Y: s.A.At(1, 0)*p.X + s.A.At(1, 1)*p.Y + s.B.Y,
	}
}

// Scale returns |det A|, the area ratio of son to parent
func (s SubMap) Scale() float64 {
	d := mat.Det(s.A)
	if d < 0 {
		return -d
	}
	return d
}

// {a11, a22, b1, b2}; every refinement sub-map is diagonal.
var (
	// 0-3 isotropic quarters, 4-5 lower/upper halves, 6-7 left/right halves
	quadSubMaps = [][4]float64{
		{0.5, 0.5, -0.5, -0.5},
		{0.5, 0.5, 0.5, -0.5},
		{0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, -0.5, 0.5},
		{1, 0.5, 0, -0.5},
		{1, 0.5, 0, 0.5},
		{0.5, 1, -0.5, 0},
		{0.5, 1, 0.5, 0},
	}
	// 0-2 corner triangles, 3 the inverted center triangle
	triSubMaps = [][4]float64{
		{0.5, 0.5, -0.5, -0.5},
		{0.5, 0.5, 0.5, -0.5},
		{0.5, 0.5, -0.5, 0.5},
		{-0.5, -0.5, -0.5, -0.5},
	}
)

// SonMap returns the sub-element map used for son part index part
func SonMap(g ElementGeometry, part int) (SubMap, error) {
	var table [][4]float64
	switch g {
	case Tri:
		table = triSubMaps
	case Rectangle:
		table = quadSubMaps
	default:
		return SubMap{}, fmt.Errorf("no sub-element maps for %s", g)
	}
	if part < 0 || part >= len(table) {
		return SubMap{}, fmt.Errorf("sub-element map %d out of range for %s", part, g)
	}
	c := table[part]
	return SubMap{
		A: mat.NewDense(2, 2, []float64{c[0], 0, 0, c[1]}),
		B: r2.Vec{X: c[2], Y: c[3]},
	}, nil
}
