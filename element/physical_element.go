package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// StraightMap evaluates the affine (triangle) or bilinear (quad) map of an
// element with straight edges at reference point p
func StraightMap(verts []r2.Vec, p r2.Vec) r2.Vec {
	if len(verts) == 3 {
		l0, l1, l2 := -(p.X+p.Y)/2, (p.X+1)/2, (p.Y+1)/2
		return r2.Add(r2.Add(r2.Scale(l0, verts[0]), r2.Scale(l1, verts[1])), r2.Scale(l2, verts[2]))
	}
	var out r2.Vec
	for i, w := range bilinearWeights(p) {
		out = r2.Add(out, r2.Scale(w, verts[i]))
	}
	return out
}

func bilinearWeights(p r2.Vec) [4]float64 {
	return [4]float64{
		(1 - p.X) * (1 - p.Y) / 4,
		(1 + p.X) * (1 - p.Y) / 4,
		(1 + p.X) * (1 + p.Y) / 4,
		(1 - p.X) * (1 + p.Y) / 4,
	}
}

// StraightJacobian returns the 2x2 matrix d(x,y)/d(xi,eta) of StraightMap at p
//
//	J = | dx/dxi  dx/deta |
//	    | dy/dxi  dy/deta |
func StraightJacobian(verts []r2.Vec, p r2.Vec) (*mat.Dense, error) {
	var dxi, deta r2.Vec
	switch len(verts) {
	case 3:
		dxi = r2.Scale(0.5, r2.Sub(verts[1], verts[0]))
		deta = r2.Scale(0.5, r2.Sub(verts[2], verts[0]))
	case 4:
		dWdXi := [4]float64{-(1 - p.Y) / 4, (1 - p.Y) / 4, (1 + p.Y) / 4, -(1 + p.Y) / 4}
		dWdEta := [4]float64{-(1 - p.X) / 4, -(1 + p.X) / 4, (1 + p.X) / 4, (1 - p.X) / 4}
		for i := range verts {
			dxi = r2.Add(dxi, r2.Scale(dWdXi[i], verts[i]))
			deta = r2.Add(deta, r2.Scale(dWdEta[i], verts[i]))
		}
	default:
		return nil, fmt.Errorf("unsupported vertex count %d", len(verts))
	}
	return mat.NewDense(2, 2, []float64{dxi.X, deta.X, dxi.Y, deta.Y}), nil
}

// JacobianDet returns det(J) from columns d/dxi and d/deta
func JacobianDet(dxi, deta r2.Vec) float64 {
	return mat.Det(mat.NewDense(2, 2, []float64{dxi.X, deta.X, dxi.Y, deta.Y}))
}

// PolygonArea returns the signed shoelace area, positive for counter-clockwise order
func PolygonArea(verts []r2.Vec) float64 {
	var a float64
	for i := range verts {
		a += r2.Cross(verts[i], verts[(i+1)%len(verts)])
	}
	return a / 2
}
