package mesh

import (
	"gonum.org/v1/gonum/spatial/r2"
)

type NodeType uint8

const (
	VertexNode NodeType = iota
	EdgeNode
)

func (t NodeType) String() string {
	if t == VertexNode {
		return "vertex"
	}
	return "edge"
}

// noID marks an absent node, element or son reference.
const noID = -1

// Node is a vertex or an edge of the mesh. Vertices created by refinement and
// all edges are addressed by the unordered pair of vertex ids (P1, P2): the
// endpoints of the split edge for a vertex, the edge endpoints for an edge.
type Node struct {
	ID   int
	Type NodeType
	// Ref counts the active elements citing this node.
	Ref int
	Bnd bool
	// TopLevel vertices come from the base mesh and are never freed.
	TopLevel bool
	P1, P2   int

	// vertex data
	X, Y float64

	// edge data
	Marker int
	Elem   [2]int
}

// Pos returns the vertex coordinates
func (n *Node) Pos() r2.Vec { return r2.Vec{X: n.X, Y: n.Y} }

// NumElements returns how many elements reference an edge node
func (n *Node) NumElements() int {
	c := 0
	for _, e := range n.Elem {
		if e != noID {
			c++
		}
	}
	return c
}

// Other returns the element on the other side of an edge, or -1
func (n *Node) Other(id int) int {
	switch id {
	case n.Elem[0]:
		return n.Elem[1]
	case n.Elem[1]:
		return n.Elem[0]
	}
	return noID
}

func (n *Node) attach(elem int) bool {
	for i, e := range n.Elem {
		if e == noID {
			n.Elem[i] = elem
			return true
		}
	}
	return false
}

func (n *Node) detach(elem int) {
	for i, e := range n.Elem {
		if e == elem {
			n.Elem[i] = noID
		}
	}
}

func (n *Node) clone() *Node {
	c := *n
	return &c
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// nodeStore is the hash-addressed arena of vertex and edge nodes. Freed ids
// are recycled; a freed slot holds nil.
type nodeStore struct {
	nodes    []*Node
	free     []int
	vertices map[[2]int]int
	edges    map[[2]int]int
}

func newNodeStore() nodeStore {
	return nodeStore{
		vertices: make(map[[2]int]int),
		edges:    make(map[[2]int]int),
	}
}

func (s *nodeStore) alloc(t NodeType) *Node {
	n := &Node{Type: t, P1: noID, P2: noID, Elem: [2]int{noID, noID}}
	if k := len(s.free); k > 0 {
		n.ID = s.free[k-1]
		s.free = s.free[:k-1]
		s.nodes[n.ID] = n
		return n
	}
	n.ID = len(s.nodes)
	s.nodes = append(s.nodes, n)
	return n
}

func (s *nodeStore) at(id int) *Node {
	if id < 0 || id >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

func (s *nodeStore) addTopVertex(x, y float64) *Node {
	n := s.alloc(VertexNode)
	n.X, n.Y = x, y
	n.TopLevel = true
	return n
}

func (s *nodeStore) validPair(p1, p2 int) error {
	a, b := s.at(p1), s.at(p2)
	if a == nil || b == nil || a.Type != VertexNode || b.Type != VertexNode {
		return internalErrorf("node pair (%d, %d) does not name two vertices", p1, p2)
	}
	return nil
}

func (s *nodeStore) peekVertex(p1, p2 int) *Node {
	if id, ok := s.vertices[pairKey(p1, p2)]; ok {
		return s.nodes[id]
	}
	return nil
}

// getVertex returns the midpoint vertex of (p1, p2), creating it if absent.
func (s *nodeStore) getVertex(p1, p2 int) (*Node, error) {
	if n := s.peekVertex(p1, p2); n != nil {
		return n, nil
	}
	if err := s.validPair(p1, p2); err != nil {
		return nil, err
	}
	a, b := s.nodes[p1], s.nodes[p2]
	n := s.alloc(VertexNode)
	n.P1, n.P2 = p1, p2
	n.X, n.Y = (a.X+b.X)/2, (a.Y+b.Y)/2
	s.vertices[pairKey(p1, p2)] = n.ID
	return n, nil
}

func (s *nodeStore) peekEdge(p1, p2 int) *Node {
	if id, ok := s.edges[pairKey(p1, p2)]; ok {
		return s.nodes[id]
	}
	return nil
}

// getEdge returns the edge node joining p1 and p2, creating it if absent.
func (s *nodeStore) getEdge(p1, p2 int) (*Node, error) {
	if n := s.peekEdge(p1, p2); n != nil {
		return n, nil
	}
	if err := s.validPair(p1, p2); err != nil {
		return nil, err
	}
	n := s.alloc(EdgeNode)
	k := pairKey(p1, p2)
	n.P1, n.P2 = k[0], k[1]
	s.edges[k] = n.ID
	return n, nil
}

func (s *nodeStore) release(n *Node) {
	if n.Type == EdgeNode {
		delete(s.edges, pairKey(n.P1, n.P2))
	} else if n.P1 != noID {
		delete(s.vertices, pairKey(n.P1, n.P2))
	}
	s.nodes[n.ID] = nil
	s.free = append(s.free, n.ID)
}

// releaseIfOrphan frees a refinement vertex nobody references.
func (s *nodeStore) releaseIfOrphan(n *Node) {
	if n != nil && s.at(n.ID) == n && n.Ref <= 0 && !n.TopLevel {
		s.release(n)
	}
}

func (s *nodeStore) clone() nodeStore {
	c := nodeStore{
		nodes:    make([]*Node, len(s.nodes)),
		free:     append([]int(nil), s.free...),
		vertices: make(map[[2]int]int, len(s.vertices)),
		edges:    make(map[[2]int]int, len(s.edges)),
	}
	for i, n := range s.nodes {
		if n != nil {
			c.nodes[i] = n.clone()
		}
	}
	for k, v := range s.vertices {
		c.vertices[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	return c
}
