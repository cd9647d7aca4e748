package quadrature

import (
	"fmt"
	"sync"

	"github.com/notargets/hpmesh/element"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// Rule is a set of reference points and weights on a 2D reference element
type Rule struct {
	Geometry element.ElementGeometry
	Points   []r2.Vec
	Weights  []float64
}

// Integrate applies the rule to f
func (r Rule) Integrate(f func(p r2.Vec) float64) float64 {
	vals := make([]float64, len(r.Points))
	for i, p := range r.Points {
		vals[i] = r.Weights[i] * f(p)
	}
	return floats.Sum(vals)
}

type ruleKey struct {
	g element.ElementGeometry
	n int
}

var (
	rulesMu sync.Mutex
	rules   = map[ruleKey]Rule{}
)

// ForGeometry returns an (n+1)x(n+1) point rule, exact for polynomials of
// degree 2n+1 in each reference direction. Rules are cached.
func ForGeometry(g element.ElementGeometry, n int) (Rule, error) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	key := ruleKey{g, n}
	if r, ok := rules[key]; ok {
		return r, nil
	}
	var (
		r   Rule
		err error
	)
	switch g {
	case element.Rectangle:
		r, err = quadRule(n)
	case element.Tri:
		r, err = triRule(n)
	default:
		err = fmt.Errorf("no quadrature rule for %s", g)
	}
	if err != nil {
		return Rule{}, err
	}
	rules[key] = r
	return r, nil
}

// LobattoGrid returns the (n+1)x(n+1) tensor grid of Legendre-Gauss-Lobatto
// nodes on the reference quad, corners included
func LobattoGrid(n int) ([]r2.Vec, error) {
	if n < 1 {
		return nil, fmt.Errorf("lobatto grid order %d must be at least 1", n)
	}
	x, err := JacobiGL(0, 0, n)
	if err != nil {
		return nil, err
	}
	pts := make([]r2.Vec, 0, len(x)*len(x))
	for j := range x {
		for i := range x {
			pts = append(pts, r2.Vec{X: x[i], Y: x[j]})
		}
	}
	return pts, nil
}

// tensor product of Gauss-Legendre rules
func quadRule(n int) (Rule, error) {
	x, w, err := JacobiGQ(0, 0, n)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{Geometry: element.Rectangle}
	for j := range x {
		for i := range x {
			r.Points = append(r.Points, r2.Vec{X: x[i], Y: x[j]})
			r.Weights = append(r.Weights, w[i]*w[j])
		}
	}
	return r, nil
}

// collapsed-coordinate rule: Gauss-Legendre in a, Gauss-Jacobi(1,0) in b,
// r = (1+a)(1-b)/2 - 1, s = b
func triRule(n int) (Rule, error) {
	a, wa, err := JacobiGQ(0, 0, n)
	if err != nil {
		return Rule{}, err
	}
	b, wb, err := JacobiGQ(1, 0, n)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{Geometry: element.Tri}
	for j := range b {
		for i := range a {
			r.Points = append(r.Points, r2.Vec{X: (1+a[i])*(1-b[j])/2 - 1, Y: b[j]})
			r.Weights = append(r.Weights, wa[i]*wb[j]/2)
		}
	}
	return r, nil
}
