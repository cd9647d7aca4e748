package element

import (
	"fmt"
)

type Dimensionality uint8

const (
	D0 Dimensionality = iota // points
	D1                       // lines, edges
	D2                       // triangles, quadrilaterals
)

type ElementGeometry uint8

const (
	Tri ElementGeometry = iota
	Rectangle
	Line
)

func (g ElementGeometry) String() string {
	switch g {
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	case Line:
		return "Line"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// NumVertices returns the number of corner vertices of the shape
func (g ElementGeometry) NumVertices() int {
	switch g {
	case Tri:
		return 3
	case Rectangle:
		return 4
	case Line:
		return 2
	}
	return 0
}

// Dimensions returns the topological dimension of the shape
func (g ElementGeometry) Dimensions() Dimensionality {
	if g == Line {
		return D1
	}
	return D2
}

// GeometryFor maps a 2D vertex count onto its reference shape
func GeometryFor(nvert int) (ElementGeometry, error) {
	switch nvert {
	case 3:
		return Tri, nil
	case 4:
		return Rectangle, nil
	}
	return 0, fmt.Errorf("no 2D element with %d vertices", nvert)
}
