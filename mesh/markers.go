package mesh

import (
	"maps"
	"slices"
	"strconv"
)

const (
	// AnyMarker matches every marker in area and boundary refinement.
	AnyMarker = "-1234"
	// DGInnerEdge is the reserved boundary marker of inner edges in DG assembly.
	DGInnerEdge = "-54125631"
	// DGInnerEdgeInt is the internal value of DGInnerEdge.
	DGInnerEdgeInt = -54125631

	invalidMarker = -999
)

// MarkerKind tells element markers from boundary markers.
type MarkerKind uint8

const (
	ElementMarkers MarkerKind = iota
	BoundaryMarkers
)

// Markers converts user-facing string markers to internal integers and back.
// Internal values start at 1 and are never reused.
type Markers struct {
	Kind    MarkerKind
	toUser  map[int]string
	toInner map[string]int
	next    int
}

func NewMarkers(kind MarkerKind) *Markers {
	return &Markers{
		Kind:    kind,
		toUser:  make(map[int]string),
		toInner: make(map[string]int),
		next:    1,
	}
}

// Insert registers name if needed and returns its internal value
func (m *Markers) Insert(name string) int {
	if v, ok := m.toInner[name]; ok {
		return v
	}
	v := m.next
	m.next++
	m.toUser[v] = name
	m.toInner[name] = v
	return v
}

// Internal returns the internal value for name
func (m *Markers) Internal(name string) (int, bool) {
	if name == DGInnerEdge {
		return DGInnerEdgeInt, true
	}
	if v, ok := m.toInner[name]; ok {
		return v, true
	}
	return invalidMarker, false
}

// User returns the user-facing name for an internal value
func (m *Markers) User(v int) (string, bool) {
	if v == DGInnerEdgeInt {
		return DGInnerEdge, true
	}
	if s, ok := m.toUser[v]; ok {
		return s, true
	}
	return strconv.Itoa(invalidMarker), false
}

func (m *Markers) Size() int { return len(m.toUser) }

// Names returns the registered names ordered by internal value
func (m *Markers) Names() []string {
	keys := slices.Sorted(maps.Keys(m.toUser))
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = m.toUser[k]
	}
	return out
}

func (m *Markers) clone() *Markers {
	return &Markers{
		Kind:    m.Kind,
		toUser:  maps.Clone(m.toUser),
		toInner: maps.Clone(m.toInner),
		next:    m.next,
	}
}
