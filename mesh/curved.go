package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/hpmesh/element"
	"gonum.org/v1/gonum/spatial/r2"
)

// ControlPoint is a weighted NURBS control point.
type ControlPoint struct {
	X, Y, W float64
}

// Arc is a circular arc on one element edge, stored as a quadratic rational
// Bezier curve. Angle is in degrees; a positive angle bulges to the right of
// the direction of travel, which is outwards for a counter-clockwise element.
type Arc struct {
	Angle float64
	P     [3]ControlPoint
}

// NewArc builds the arc from p0 to p2 subtending angle degrees
func NewArc(p0, p2 r2.Vec, angle float64) (*Arc, error) {
	if math.Abs(angle) >= 180 || math.IsNaN(angle) {
		return nil, fmt.Errorf("%w: arc angle %g must lie in (-180, 180)", ErrUsage, angle)
	}
	d := r2.Sub(p2, p0)
	if r2.Norm(d) == 0 {
		return nil, fmt.Errorf("%w: arc endpoints coincide", ErrUsage)
	}
	// control point where the end tangents meet
	a := (180 - angle) / 180 * math.Pi
	x := 1 / math.Tan(a/2)
	mid := r2.Scale(0.5, r2.Add(p0, p2))
	p1 := r2.Add(mid, r2.Scale(0.5*x, r2.Vec{X: d.Y, Y: -d.X}))
	return &Arc{
		Angle: angle,
		P: [3]ControlPoint{
			{X: p0.X, Y: p0.Y, W: 1},
			{X: p1.X, Y: p1.Y, W: math.Cos(angle / 360 * math.Pi)},
			{X: p2.X, Y: p2.Y, W: 1},
		},
	}, nil
}

// Eval returns the point at parameter t in [0,1]
func (a *Arc) Eval(t float64) r2.Vec {
	b := [3]float64{(1 - t) * (1 - t), 2 * t * (1 - t), t * t}
	var num r2.Vec
	var den float64
	for i, p := range a.P {
		w := p.W * b[i]
		num = r2.Add(num, r2.Scale(w, r2.Vec{X: p.X, Y: p.Y}))
		den += w
	}
	return r2.Scale(1/den, num)
}

// Reversed returns the same arc traversed from its end to its start
func (a *Arc) Reversed() *Arc {
	return &Arc{Angle: -a.Angle, P: [3]ControlPoint{a.P[2], a.P[1], a.P[0]}}
}

func (a *Arc) clone() *Arc {
	c := *a
	return &c
}

// arcAngleThrough returns the signed angle in degrees of the circular arc
// from a to b passing through p, using the inscribed angle at p.
func arcAngleThrough(a, p, b r2.Vec) float64 {
	u, v := r2.Sub(a, p), r2.Sub(b, p)
	inscribed := math.Atan2(math.Abs(r2.Cross(u, v)), r2.Dot(u, v))
	angle := 2 * (math.Pi - inscribed) * 180 / math.Pi
	if r2.Cross(r2.Sub(b, a), r2.Sub(p, a)) > 0 {
		angle = -angle
	}
	return angle
}

// CurvMap describes the curved geometry of an element. A top-level map holds
// the element corners and one optional arc per edge; the element map is the
// transfinite blend of its edge curves. A son map refers to a private copy of
// its top-level ancestor's map and the chain of sub-element maps leading from
// the ancestor's reference domain down to the son.
type CurvMap struct {
	TopLevel bool
	NVert    int
	Verts    [4]r2.Vec
	Curves   [4]*Arc

	Root *CurvMap
	Path []int
	subs []element.SubMap
}

// NewCurvMap creates a top-level map; curves[i] is nil for a straight edge i
func NewCurvMap(verts []r2.Vec, curves [4]*Arc) *CurvMap {
	cm := &CurvMap{TopLevel: true, NVert: len(verts), Curves: curves}
	copy(cm.Verts[:], verts)
	return cm
}

func (c *CurvMap) geometry() element.ElementGeometry {
	root := c
	if !c.TopLevel {
		root = c.Root
	}
	if root.NVert == 3 {
		return element.Tri
	}
	return element.Rectangle
}

// Son derives the map of the son occupying sub-element part
func (c *CurvMap) Son(part int) (*CurvMap, error) {
	sm, err := element.SonMap(c.geometry(), part)
	if err != nil {
		return nil, err
	}
	son := &CurvMap{}
	if c.TopLevel {
		son.Root = c.clone()
	} else {
		son.Root = c.Root.clone()
		son.Path = append(son.Path, c.Path...)
		son.subs = append(son.subs, c.subs...)
	}
	son.Path = append(son.Path, part)
	son.subs = append(son.subs, sm)
	return son, nil
}

// Eval maps a reference point of the element to physical coordinates
func (c *CurvMap) Eval(p r2.Vec) r2.Vec {
	if c.TopLevel {
		return c.evalTop(p)
	}
	for i := len(c.subs) - 1; i >= 0; i-- {
		p = c.subs[i].Apply(p)
	}
	return c.Root.evalTop(p)
}

// JacobianDet returns det d(x,y)/d(xi,eta) at p by central differences
func (c *CurvMap) JacobianDet(p r2.Vec) float64 {
	const h = 1e-6
	dxi := r2.Scale(1/(2*h), r2.Sub(c.Eval(r2.Vec{X: p.X + h, Y: p.Y}), c.Eval(r2.Vec{X: p.X - h, Y: p.Y})))
	deta := r2.Scale(1/(2*h), r2.Sub(c.Eval(r2.Vec{X: p.X, Y: p.Y + h}), c.Eval(r2.Vec{X: p.X, Y: p.Y - h})))
	return element.JacobianDet(dxi, deta)
}

func (c *CurvMap) edgeCurve(i int, t float64) r2.Vec {
	if arc := c.Curves[i]; arc != nil {
		return arc.Eval(t)
	}
	a, b := c.Verts[i], c.Verts[(i+1)%c.NVert]
	return r2.Add(r2.Scale(1-t, a), r2.Scale(t, b))
}

func (c *CurvMap) evalTop(p r2.Vec) r2.Vec {
	verts := c.Verts[:c.NVert]
	if c.NVert == 3 {
		x := element.StraightMap(verts, p)
		lambda := [3]float64{-(p.X + p.Y) / 2, (p.X + 1) / 2, (p.Y + 1) / 2}
		for i := 0; i < 3; i++ {
			if c.Curves[i] == nil {
				continue
			}
			j := (i + 1) % 3
			s := lambda[i] + lambda[j]
			if s < 1e-14 {
				continue
			}
			t := lambda[j] / s
			lin := r2.Add(r2.Scale(1-t, verts[i]), r2.Scale(t, verts[j]))
			x = r2.Add(x, r2.Scale(s, r2.Sub(c.edgeCurve(i, t), lin)))
		}
		return x
	}
	// Gordon-Hall blending of the four edge curves
	xi, eta := p.X, p.Y
	e0 := c.edgeCurve(0, (xi+1)/2)
	e1 := c.edgeCurve(1, (eta+1)/2)
	e2 := c.edgeCurve(2, (1-xi)/2)
	e3 := c.edgeCurve(3, (1-eta)/2)
	x := r2.Scale((1-eta)/2, e0)
	x = r2.Add(x, r2.Scale((1+eta)/2, e2))
	x = r2.Add(x, r2.Scale((1-xi)/2, e3))
	x = r2.Add(x, r2.Scale((1+xi)/2, e1))
	return r2.Sub(x, element.StraightMap(verts, p))
}

func (c *CurvMap) clone() *CurvMap {
	if c == nil {
		return nil
	}
	out := &CurvMap{TopLevel: c.TopLevel, NVert: c.NVert, Verts: c.Verts}
	for i, a := range c.Curves {
		if a != nil {
			out.Curves[i] = a.clone()
		}
	}
	if c.Root != nil {
		out.Root = c.Root.clone()
	}
	out.Path = append([]int(nil), c.Path...)
	out.subs = append([]element.SubMap(nil), c.subs...)
	return out
}

// materialize builds a top-level map for an element whose corners are the
// images of refs under src. Edge j is curved when onCurve[j] is set, with the
// arc fitted through the image of the edge's reference midpoint.
func materialize(src *CurvMap, refs []r2.Vec, onCurve []bool) *CurvMap {
	n := len(refs)
	verts := make([]r2.Vec, n)
	for i, r := range refs {
		verts[i] = src.Eval(r)
	}
	var curves [4]*Arc
	curved := false
	for j := 0; j < n; j++ {
		if !onCurve[j] {
			continue
		}
		a, b := verts[j], verts[(j+1)%n]
		p := src.Eval(r2.Scale(0.5, r2.Add(refs[j], refs[(j+1)%n])))
		angle := arcAngleThrough(a, p, b)
		if math.Abs(angle) < 1e-9 {
			continue
		}
		arc, err := NewArc(a, b, angle)
		if err != nil {
			continue
		}
		curves[j] = arc
		curved = true
	}
	if !curved {
		return nil
	}
	return NewCurvMap(verts, curves)
}
