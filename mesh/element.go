package mesh

import (
	"github.com/notargets/hpmesh/element"
)

// Element is a triangle or a quad of the refinement tree. Vn[i] and Vn[i+1]
// are joined by edge En[i]. Inactive elements keep their vertex ids but hold
// no references to nodes.
type Element struct {
	ID     int
	NVert  int
	Marker int
	Active bool
	Used   bool
	Vn     [4]int
	En     [4]int
	// Sons is indexed by sub-element slot; unused slots hold -1. Horizontal
	// splits fill slots 0-1 and vertical splits slots 2-3.
	Sons     [4]int
	Parent   int
	CM       *CurvMap
	IROCache int
}

func (e *Element) IsTriangle() bool { return e.NVert == 3 }
func (e *Element) IsQuad() bool     { return e.NVert == 4 }
func (e *Element) IsCurved() bool   { return e.CM != nil }

// Geometry returns the reference shape
func (e *Element) Geometry() element.ElementGeometry {
	if e.NVert == 3 {
		return element.Tri
	}
	return element.Rectangle
}

func (e *Element) Next(i int) int { return (i + 1) % e.NVert }
func (e *Element) Prev(i int) int { return (i + e.NVert - 1) % e.NVert }

// NumSons returns the number of occupied son slots
func (e *Element) NumSons() int {
	n := 0
	for _, s := range e.Sons {
		if s != noID {
			n++
		}
	}
	return n
}

// SonIDs returns the occupied son slots in slot order
func (e *Element) SonIDs() []int {
	out := make([]int, 0, 4)
	for _, s := range e.Sons {
		if s != noID {
			out = append(out, s)
		}
	}
	return out
}

// EdgeIndex returns the local index of edge node id, or -1
func (e *Element) EdgeIndex(edgeNode int) int {
	for i := 0; i < e.NVert; i++ {
		if e.En[i] == edgeNode {
			return i
		}
	}
	return noID
}

// VertexIndex returns the local index of vertex node id, or -1
func (e *Element) VertexIndex(vertex int) int {
	for i := 0; i < e.NVert; i++ {
		if e.Vn[i] == vertex {
			return i
		}
	}
	return noID
}

func (e *Element) clone() *Element {
	c := *e
	c.CM = e.CM.clone()
	return &c
}

func newElement(id int) *Element {
	return &Element{
		ID:     id,
		Used:   true,
		Active: true,
		Vn:     [4]int{noID, noID, noID, noID},
		En:     [4]int{noID, noID, noID, noID},
		Sons:   [4]int{noID, noID, noID, noID},
		Parent: noID,
	}
}
