package mesh

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Criterion classifies an active element for one refinement sweep.
type Criterion func(e *Element) RefinementKind

// RefineByCriterion runs depth sweeps. Each sweep classifies all active
// elements first and then refines the matched ones. ErrNoMatch is returned
// when no sweep matched anything.
func (m *Mesh) RefineByCriterion(criterion Criterion, depth int) error {
	if depth < 1 {
		return usageErrorf("refinement depth %d must be at least 1", depth)
	}
	matched := 0
	for sweep := 0; sweep < depth; sweep++ {
		ids := m.activeIDs()
		kinds := make([]RefinementKind, len(ids))
		for i, id := range ids {
			kinds[i] = criterion(m.elems[id])
		}
		n := 0
		for i, id := range ids {
			if kinds[i] == NoRefinement {
				continue
			}
			if err := m.RefineElementID(id, kinds[i]); err != nil {
				return err
			}
			n++
		}
		matched += n
		m.logger.Debug("refinement sweep", zap.Int("sweep", sweep), zap.Int("refined", n))
	}
	if matched == 0 {
		return fmt.Errorf("%w: refinement criterion selected no element", ErrNoMatch)
	}
	return nil
}

func (m *Mesh) markInitial(markAsInitial bool) {
	if markAsInitial {
		m.ninitial = m.MaxElementID()
	}
}

// RefineTowardsVertex refines isotropically every element touching vertex,
// depth times
func (m *Mesh) RefineTowardsVertex(vertex, depth int, markAsInitial bool) error {
	if n := m.nodes.at(vertex); n == nil || n.Type != VertexNode {
		return usageErrorf("vertex %d does not exist", vertex)
	}
	err := m.RefineByCriterion(func(e *Element) RefinementKind {
		if e.VertexIndex(vertex) >= 0 {
			return Isotropic
		}
		return NoRefinement
	}, depth)
	if err != nil {
		return err
	}
	m.markInitial(markAsInitial)
	return nil
}

// RefineTowardsBoundary refines elements touching the boundary marked marker,
// depth times. With aniso, quads touching the boundary along one pair of
// opposite edges are split parallel to it. AnyMarker selects every boundary.
func (m *Mesh) RefineTowardsBoundary(marker string, depth int, aniso, markAsInitial bool) error {
	if marker == AnyMarker {
		names := m.BoundaryMarkers.Names()
		if len(names) == 0 {
			return fmt.Errorf("%w: the mesh has no boundary markers", ErrNoMatch)
		}
		for _, name := range names {
			if err := m.RefineTowardsBoundary(name, depth, aniso, markAsInitial); err != nil {
				return err
			}
		}
		return nil
	}
	bm, ok := m.BoundaryMarkers.Internal(marker)
	if !ok {
		return usageErrorf("boundary marker %q not found", marker)
	}
	if depth < 1 {
		return usageErrorf("refinement depth %d must be at least 1", depth)
	}
	for i := 0; i < depth; i++ {
		touching := make(map[int]bool)
		for en := range m.EdgeNodes() {
			if en.Bnd && en.Marker == bm {
				touching[en.P1] = true
				touching[en.P2] = true
			}
		}
		criterion := func(e *Element) RefinementKind {
			return m.towardsBoundary(e, bm, touching, aniso)
		}
		if err := m.RefineByCriterion(criterion, 1); err != nil {
			return err
		}
	}
	m.markInitial(markAsInitial)
	return nil
}

func (m *Mesh) towardsBoundary(e *Element, marker int, touching map[int]bool, aniso bool) RefinementKind {
	on := func(i int) bool {
		en := m.nodes.nodes[e.En[i]]
		return en.Bnd && en.Marker == marker
	}
	hit := false
	for i := 0; i < e.NVert; i++ {
		if on(i) || touching[e.Vn[i]] {
			hit = true
			break
		}
	}
	if !hit {
		return NoRefinement
	}
	if e.IsTriangle() || !aniso {
		return Isotropic
	}
	t := func(i int) bool { return touching[e.Vn[i]] }
	if (on(0) && !t(2) && !t(3)) || (on(2) && !t(0) && !t(1)) ||
		(on(0) && on(2) && !on(1) && !on(3)) {
		return Horizontal
	}
	if (on(1) && !t(3) && !t(0)) || (on(3) && !t(1) && !t(2)) ||
		(on(1) && on(3) && !on(0) && !on(2)) {
		return Vertical
	}
	return Isotropic
}

// RefineInAreas refines isotropically the elements carrying any of the
// element markers, depth times. AnyMarker selects every element.
func (m *Mesh) RefineInAreas(markers []string, depth int, markAsInitial bool) error {
	selected := make(map[int]bool)
	all := false
	for _, name := range markers {
		if name == AnyMarker {
			all = true
			continue
		}
		if v, ok := m.ElementMarkers.Internal(name); ok {
			selected[v] = true
		}
	}
	if !all && len(selected) == 0 {
		return usageErrorf("none of the markers [%s] found", strings.Join(markers, ", "))
	}
	err := m.RefineByCriterion(func(e *Element) RefinementKind {
		if all || selected[e.Marker] {
			return Isotropic
		}
		return NoRefinement
	}, depth)
	if err != nil {
		return err
	}
	m.markInitial(markAsInitial)
	return nil
}

// RefineInArea is RefineInAreas for a single marker
func (m *Mesh) RefineInArea(marker string, depth int, markAsInitial bool) error {
	return m.RefineInAreas([]string{marker}, depth, markAsInitial)
}
