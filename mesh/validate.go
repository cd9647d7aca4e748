package mesh

import (
	"math"

	"github.com/notargets/hpmesh/element"
	"github.com/notargets/hpmesh/element/quadrature"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

func positions(vs []*Node) []r2.Vec {
	out := make([]r2.Vec, len(vs))
	for i, v := range vs {
		out[i] = v.Pos()
	}
	return out
}

func (m *Mesh) loadError(id int, vs []*Node, reason string) error {
	return &LoadError{ElementID: id, Coords: positions(vs), Reason: reason}
}

// checkCreate rejects repeated vertices and elements whose corners line up on
// a coordinate axis
func (m *Mesh) checkCreate(id int, vs []*Node) error {
	for _, v := range vs {
		if v == nil || v.Type != VertexNode || m.nodes.at(v.ID) != v {
			return internalErrorf("element #%d: vertex is not part of the mesh", id)
		}
	}
	n := len(vs)
	for i := 0; i < n; i++ {
		if vs[i].ID == vs[(i+1)%n].ID {
			return m.loadError(id, vs, "identical vertices")
		}
	}
	if n == 4 && (vs[0].ID == vs[2].ID || vs[1].ID == vs[3].ID) {
		return m.loadError(id, vs, "identical vertices")
	}
	for _, t := range cornerTriples(n) {
		a, b, c := vs[t[0]], vs[t[1]], vs[t[2]]
		if (a.X == b.X && b.X == c.X) || (a.Y == b.Y && b.Y == c.Y) {
			return m.loadError(id, vs, "vertices lie on one line")
		}
	}
	return nil
}

func cornerTriples(n int) [][3]int {
	if n == 3 {
		return [][3]int{{0, 1, 2}}
	}
	return [][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
}

func (m *Mesh) sameLine(p, q, r r2.Vec) bool {
	a, b := r2.Sub(q, p), r2.Sub(r, p)
	s := r2.Cross(a, b) / (r2.Norm(a) * r2.Norm(b))
	return math.Abs(s) < m.tol
}

func (m *Mesh) checkLengths(id int, vs []*Node) error {
	n := len(vs)
	for i := 0; i < n; i++ {
		if r2.Norm(r2.Sub(vs[(i+1)%n].Pos(), vs[i].Pos())) < m.tol {
			return m.loadError(id, vs, "edge is too short")
		}
	}
	return nil
}

// CheckTriangle validates a triangle before creation and swaps vs[1] and
// vs[2] when the vertices are given clockwise
func (m *Mesh) CheckTriangle(id int, vs []*Node) error {
	if len(vs) != 3 {
		return usageErrorf("triangle needs 3 vertices, got %d", len(vs))
	}
	if err := m.checkLengths(id, vs); err != nil {
		return err
	}
	p := positions(vs)
	if m.sameLine(p[0], p[1], p[2]) {
		return m.loadError(id, vs, "vertices lie on one line")
	}
	if element.PolygonArea(p) < 0 {
		vs[1], vs[2] = vs[2], vs[1]
	}
	return nil
}

// CheckQuad validates a quad before creation. Quads must be strictly convex
// and given counter-clockwise.
func (m *Mesh) CheckQuad(id int, vs []*Node) error {
	if len(vs) != 4 {
		return usageErrorf("quad needs 4 vertices, got %d", len(vs))
	}
	if err := m.checkLengths(id, vs); err != nil {
		return err
	}
	p := positions(vs)
	if r2.Norm(r2.Sub(p[2], p[0])) < m.tol || r2.Norm(r2.Sub(p[3], p[1])) < m.tol {
		return m.loadError(id, vs, "diagonal is too short")
	}
	for _, t := range cornerTriples(4) {
		if m.sameLine(p[t[0]], p[t[1]], p[t[2]]) {
			return m.loadError(id, vs, "three vertices lie on one line")
		}
	}
	convex := func(a, b r2.Vec) bool { return r2.Cross(a, b) > 0 }
	if !convex(r2.Sub(p[1], p[0]), r2.Sub(p[2], p[0])) ||
		!convex(r2.Sub(p[2], p[0]), r2.Sub(p[3], p[0])) ||
		!convex(r2.Sub(p[2], p[1]), r2.Sub(p[3], p[1])) ||
		!convex(r2.Sub(p[3], p[1]), r2.Sub(p[0], p[1])) {
		return m.loadError(id, vs, "quad is not convex or not counter-clockwise")
	}
	return nil
}

// InitialCheck verifies that every active element has a positive Jacobian:
// once for affine maps, at the Gauss-Lobatto nodes of bilinear quads and at
// quadrature points for curved maps
func (m *Mesh) InitialCheck() error {
	for e := range m.ActiveElements() {
		if err := m.checkJacobian(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mesh) checkJacobian(e *Element) error {
	verts := m.vertexPositions(e)
	bad := func() error {
		return &LoadError{ElementID: e.ID, Coords: verts, Reason: "element is concave or badly oriented"}
	}
	if e.CM == nil && (e.IsTriangle() || isParallelogram(verts)) {
		k := e.NVert - 1
		if r2.Cross(r2.Sub(verts[1], verts[0]), r2.Sub(verts[k], verts[0])) <= 0 {
			return bad()
		}
		return nil
	}
	if e.CM == nil {
		// a bilinear Jacobian is affine in each direction, so its minimum
		// is reached at a corner
		pts, err := quadrature.LobattoGrid(jacobianCheckOrder)
		if err != nil {
			return err
		}
		for _, p := range pts {
			j, err := element.StraightJacobian(verts, p)
			if err != nil {
				return err
			}
			if mat.Det(j) <= 0 {
				return bad()
			}
		}
		return nil
	}
	rule, err := quadrature.ForGeometry(e.Geometry(), jacobianCheckOrder)
	if err != nil {
		return err
	}
	for _, p := range rule.Points {
		if e.CM.JacobianDet(p) <= 0 {
			return bad()
		}
	}
	return nil
}

const jacobianCheckOrder = 4

func isParallelogram(v []r2.Vec) bool {
	if len(v) != 4 {
		return false
	}
	d := r2.Sub(r2.Add(v[0], v[2]), r2.Add(v[1], v[3]))
	return r2.Norm(d) < 1e-12*(1+r2.Norm(v[0]))
}
