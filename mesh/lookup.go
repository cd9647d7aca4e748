package mesh

import (
	"math"

	"github.com/notargets/hpmesh/element"
	"github.com/notargets/hpmesh/element/quadrature"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// samples per curved edge when approximating an element outline
const outlineSamples = 16

// hashGrid buckets active elements by bounding box for point location.
type hashGrid struct {
	seq      uint64
	box      r2.Box
	nx, ny   int
	dx, dy   float64
	buckets  map[[2]int][]int
	outlines map[int][]r2.Vec
}

type markerArea struct {
	seq  uint64
	area float64
}

// outline returns the element boundary as a polygon, sampling curved edges
func (m *Mesh) outline(e *Element) []r2.Vec {
	if e.CM == nil {
		return m.vertexPositions(e)
	}
	g := e.Geometry()
	out := make([]r2.Vec, 0, e.NVert*outlineSamples)
	for i := 0; i < e.NVert; i++ {
		for k := 0; k < outlineSamples; k++ {
			out = append(out, e.CM.Eval(element.EdgePoint(g, i, float64(k)/outlineSamples)))
		}
	}
	return out
}

func boundsOf(pts []r2.Vec) r2.Box {
	b := r2.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X, b.Min.Y = math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y)
		b.Max.X, b.Max.Y = math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y)
	}
	return b
}

func (m *Mesh) buildGrid() *hashGrid {
	g := &hashGrid{
		seq:      m.seq,
		buckets:  make(map[[2]int][]int),
		outlines: make(map[int][]r2.Vec, m.nactive),
	}
	first := true
	boxes := make(map[int]r2.Box, m.nactive)
	for e := range m.ActiveElements() {
		o := m.outline(e)
		b := boundsOf(o)
		g.outlines[e.ID], boxes[e.ID] = o, b
		if first {
			g.box, first = b, false
			continue
		}
		g.box.Min.X, g.box.Min.Y = math.Min(g.box.Min.X, b.Min.X), math.Min(g.box.Min.Y, b.Min.Y)
		g.box.Max.X, g.box.Max.Y = math.Max(g.box.Max.X, b.Max.X), math.Max(g.box.Max.Y, b.Max.Y)
	}
	side := max(1, int(math.Ceil(math.Sqrt(float64(m.nactive)))))
	g.nx, g.ny = side, side
	g.dx = math.Max((g.box.Max.X-g.box.Min.X)/float64(g.nx), math.SmallestNonzeroFloat64)
	g.dy = math.Max((g.box.Max.Y-g.box.Min.Y)/float64(g.ny), math.SmallestNonzeroFloat64)
	for id, b := range boxes {
		i0, j0 := g.cell(b.Min)
		i1, j1 := g.cell(b.Max)
		for i := i0; i <= i1; i++ {
			for j := j0; j <= j1; j++ {
				g.buckets[[2]int{i, j}] = append(g.buckets[[2]int{i, j}], id)
			}
		}
	}
	return g
}

func (g *hashGrid) cell(p r2.Vec) (int, int) {
	clamp := func(v, n int) int { return min(max(v, 0), n-1) }
	return clamp(int((p.X-g.box.Min.X)/g.dx), g.nx), clamp(int((p.Y-g.box.Min.Y)/g.dy), g.ny)
}

// ElementAt returns the active element containing (x, y). The lookup grid is
// rebuilt when the mesh has changed since it was built.
func (m *Mesh) ElementAt(x, y float64) (*Element, bool) {
	if m.nactive == 0 {
		return nil, false
	}
	if m.grid == nil || m.grid.seq != m.seq {
		m.grid = m.buildGrid()
	}
	p := r2.Vec{X: x, Y: y}
	i, j := m.grid.cell(p)
	for _, id := range m.grid.buckets[[2]int{i, j}] {
		if contains(m.grid.outlines[id], p) {
			return m.elems[id], true
		}
	}
	return nil, false
}

// contains reports whether p lies inside or on the polygon
func contains(poly []r2.Vec, p r2.Vec) bool {
	const eps = 1e-12
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		d := r2.Sub(b, a)
		if math.Abs(r2.Cross(d, r2.Sub(p, a))) <= eps*(1+r2.Norm(d)) &&
			r2.Dot(r2.Sub(p, a), r2.Sub(p, b)) <= eps {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// MarkerArea returns the total area of active elements with the element
// marker name, cached until the mesh changes
func (m *Mesh) MarkerArea(name string) (float64, error) {
	marker, ok := m.ElementMarkers.Internal(name)
	if !ok {
		return 0, usageErrorf("element marker %q not found", name)
	}
	if c, ok := m.areas[marker]; ok && c.seq == m.seq {
		return c.area, nil
	}
	var parts []float64
	for e := range m.ActiveElements() {
		if e.Marker != marker {
			continue
		}
		a, err := m.ElementArea(e)
		if err != nil {
			return 0, err
		}
		parts = append(parts, a)
	}
	area := floats.Sum(parts)
	if m.areas == nil {
		m.areas = make(map[int]markerArea)
	}
	m.areas[marker] = markerArea{seq: m.seq, area: area}
	return area, nil
}

// areaOrder is the quadrature order used for curved element areas
const areaOrder = 8

// ElementArea returns the area of e: exact for straight edges, by quadrature
// of the Jacobian otherwise
func (m *Mesh) ElementArea(e *Element) (float64, error) {
	if e.CM == nil {
		return math.Abs(element.PolygonArea(m.vertexPositions(e))), nil
	}
	rule, err := quadrature.ForGeometry(e.Geometry(), areaOrder)
	if err != nil {
		return 0, err
	}
	return math.Abs(rule.Integrate(e.CM.JacobianDet)), nil
}
