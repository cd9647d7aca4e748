package mesh

import (
	"go.uber.org/zap"
)

// fan is logged for the triangle fans that absorb hanging nodes.
const fan RefinementKind = 6

// EdgeDegree returns how many times the segment (a, b) has been bisected by
// refinement on either side: 0 without a midpoint, else one more than the
// larger degree of its halves
func (m *Mesh) EdgeDegree(a, b int) int {
	return m.edgeDegree(a, b, 0)
}

func (m *Mesh) edgeDegree(a, b, depth int) int {
	mid := m.nodes.peekVertex(a, b)
	if mid == nil || depth > maxWalk {
		return 0
	}
	return 1 + max(m.edgeDegree(a, mid.ID, depth+1), m.edgeDegree(mid.ID, b, depth+1))
}

func (m *Mesh) degrees(e *Element) [4]int {
	var d [4]int
	for i := 0; i < e.NVert; i++ {
		d[i] = m.EdgeDegree(e.Vn[i], e.Vn[e.Next(i)])
	}
	return d
}

// Regularize refines until no edge of an active element has degree above n.
// With n < 1 the limit is 1 and every remaining hanging node is then
// absorbed by splitting its coarse element into triangles, after which the
// mesh is flattened to a base mesh of its active elements. The result maps
// each active element id to the id of the element it descends from among
// the elements active on entry; other entries are -1.
func (m *Mesh) Regularize(n int) ([]int, error) {
	reg := false
	if n < 1 {
		n, reg = 1, true
		for e := range m.ActiveElements() {
			if e.IsCurved() {
				return nil, &CurvedError{ElementID: e.ID, Op: "regularize"}
			}
		}
	}

	parents := make(map[int]int, m.nactive)
	for e := range m.ActiveElements() {
		parents[e.ID] = e.ID
	}
	inherit := func(e *Element) {
		for _, s := range e.SonIDs() {
			parents[s] = parents[e.ID]
		}
	}

	for pass := 0; ; pass++ {
		ok := true
		for _, id := range m.activeIDs() {
			e := m.elems[id]
			if !e.Active {
				continue
			}
			kind := m.regularizingKind(e, n)
			if kind == NoRefinement {
				continue
			}
			ok = false
			if err := m.RefineElement(e, kind); err != nil {
				return nil, err
			}
			inherit(e)
		}
		m.logger.Debug("regularize pass", zap.Int("pass", pass), zap.Int("active", m.nactive))
		if ok {
			break
		}
	}

	if reg {
		for _, id := range m.activeIDs() {
			e := m.elems[id]
			var err error
			if e.IsTriangle() {
				err = m.regularizeTriangle(e, inherit)
			} else {
				err = m.regularizeQuad(e, inherit)
			}
			if err != nil {
				return nil, err
			}
		}
		remap := m.flatten()
		flat := make(map[int]int, len(remap))
		for old, id := range remap {
			flat[id] = parents[old]
		}
		parents = flat
	}

	out := make([]int, m.MaxElementID())
	for i := range out {
		out[i] = noID
	}
	for e := range m.ActiveElements() {
		out[e.ID] = parents[e.ID]
	}
	return out, nil
}

func (m *Mesh) regularizingKind(e *Element, n int) RefinementKind {
	d := m.degrees(e)
	if e.IsQuad() {
		switch {
		case (d[0] > n || d[2] > n) && d[1] <= n && d[3] <= n:
			return Vertical
		case d[0] <= n && d[2] <= n && (d[1] > n || d[3] > n):
			return Horizontal
		}
	}
	for i := 0; i < e.NVert; i++ {
		if d[i] > n {
			return Isotropic
		}
	}
	return NoRefinement
}

func (m *Mesh) regularizeTriangle(e *Element, inherit func(*Element)) error {
	d := m.degrees(e)
	sum := d[0] + d[1] + d[2]
	if sum == 0 {
		return nil
	}
	if sum == 3 {
		if err := m.RefineElement(e, Isotropic); err != nil {
			return err
		}
		inherit(e)
		return nil
	}
	v := m.elementVertices(e)
	var specs []sonSpec
	if sum == 1 {
		k := indexOf(d[:3], 1)
		k1, k2 := e.Next(k), e.Next(e.Next(k))
		v4 := m.nodes.peekVertex(v[k].ID, v[k1].ID)
		specs = []sonSpec{
			{slot: 0, verts: []*Node{v[k], v4, v[k2]}, part: -1, onParent: []int{k, -1, k2}},
			{slot: 1, verts: []*Node{v4, v[k1], v[k2]}, part: -1, onParent: []int{k, k1, -1}},
		}
	} else {
		k := indexOf(d[:3], 0)
		k1, k2 := e.Next(k), e.Next(e.Next(k))
		v4 := m.nodes.peekVertex(v[k1].ID, v[k2].ID)
		v5 := m.nodes.peekVertex(v[k2].ID, v[k].ID)
		specs = []sonSpec{
			{slot: 0, verts: []*Node{v[k], v[k1], v4}, part: -1, onParent: []int{k, k1, -1}},
			{slot: 1, verts: []*Node{v4, v5, v[k]}, part: -1, onParent: []int{-1, k2, -1}},
			{slot: 2, verts: []*Node{v4, v[k2], v5}, part: -1, onParent: []int{k1, k2, -1}},
		}
	}
	if err := m.split(e, fan, specs); err != nil {
		return err
	}
	inherit(e)
	return nil
}

func (m *Mesh) regularizeQuad(e *Element, inherit func(*Element)) error {
	d := m.degrees(e)
	sum := d[0] + d[1] + d[2] + d[3]
	refine := func(kind RefinementKind, again ...int) error {
		if err := m.RefineElement(e, kind); err != nil {
			return err
		}
		inherit(e)
		for _, slot := range again {
			if err := m.regularizeQuad(m.elems[e.Sons[slot]], inherit); err != nil {
				return err
			}
		}
		return nil
	}
	v := m.elementVertices(e)
	switch sum {
	case 0:
		return nil
	case 4:
		return refine(Isotropic)
	case 3:
		if d[0] == 1 && d[2] == 1 {
			return refine(Vertical, 2, 3)
		}
		return refine(Horizontal, 0, 1)
	case 2:
		if d[0] == 1 && d[2] == 1 {
			return refine(Vertical)
		}
		if d[1] == 1 && d[3] == 1 {
			return refine(Horizontal)
		}
		k := 0
		for i := 0; i < 4; i++ {
			if d[i] == 1 && d[e.Next(i)] == 1 {
				k = i
			}
		}
		k1, k2, k3 := e.Next(k), e.Next(e.Next(k)), e.Prev(k)
		v4 := m.nodes.peekVertex(v[k].ID, v[k1].ID)
		v5 := m.nodes.peekVertex(v[k1].ID, v[k2].ID)
		specs := []sonSpec{
			{slot: 0, verts: []*Node{v[k1], v5, v4}, part: -1, onParent: []int{k1, -1, k}},
			{slot: 1, verts: []*Node{v5, v[k2], v[k3]}, part: -1, onParent: []int{k1, k2, -1}},
			{slot: 2, verts: []*Node{v4, v5, v[k3]}, part: -1, onParent: []int{-1, -1, -1}},
			{slot: 3, verts: []*Node{v4, v[k3], v[k]}, part: -1, onParent: []int{-1, k3, k}},
		}
		if err := m.split(e, fan, specs); err != nil {
			return err
		}
	case 1:
		k := indexOf(d[:], 1)
		k1, k2, k3 := e.Next(k), e.Next(e.Next(k)), e.Prev(k)
		v4 := m.nodes.peekVertex(v[k].ID, v[k1].ID)
		specs := []sonSpec{
			{slot: 0, verts: []*Node{v[k], v4, v[k3]}, part: -1, onParent: []int{k, -1, k3}},
			{slot: 1, verts: []*Node{v4, v[k1], v[k2]}, part: -1, onParent: []int{k, k1, -1}},
			{slot: 2, verts: []*Node{v4, v[k2], v[k3]}, part: -1, onParent: []int{-1, k2, -1}},
		}
		if err := m.split(e, fan, specs); err != nil {
			return err
		}
	default:
		return internalErrorf("element #%d: edge degree sum %d after regularization", e.ID, sum)
	}
	inherit(e)
	return nil
}

func indexOf(d []int, want int) int {
	for i, v := range d {
		if v == want {
			return i
		}
	}
	return noID
}

// flatten turns the active elements into a contiguous base mesh and returns
// the map from old to new element ids. All vertices become top-level.
func (m *Mesh) flatten() map[int]int {
	remap := make(map[int]int, m.nactive)
	elems := make([]*Element, 0, m.nactive)
	for e := range m.ActiveElements() {
		ne := e.clone()
		ne.ID = len(elems)
		ne.Parent = noID
		ne.Sons = [4]int{noID, noID, noID, noID}
		remap[e.ID] = ne.ID
		elems = append(elems, ne)
	}
	for en := range m.EdgeNodes() {
		for i, id := range en.Elem {
			if id != noID {
				en.Elem[i] = remap[id]
			}
		}
	}
	ntop := 0
	for v := range m.VertexNodes() {
		v.TopLevel = true
		ntop++
	}
	m.elems = elems
	m.freeElems = nil
	m.nbase, m.nactive, m.ninitial = len(elems), len(elems), len(elems)
	m.ntopvert = ntop
	m.refinements = nil
	m.bumpSeq()
	return remap
}
