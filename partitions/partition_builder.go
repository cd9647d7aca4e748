package partitions

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/notargets/hpmesh/mesh"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/spatial/r2"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	Mesh *MeshConnectivity

	// Desired elements per partition; ignored when NumPartitions is positive
	TargetPartitionSize int
	NumPartitions       int
	Strategy            PartitionStrategy
}

// Face is one piece of an element edge shared with an active neighbor.
// Edges with hanging nodes carry one Face per smaller neighbor.
type Face struct {
	Edge         int
	Neighbor     int // local index of the neighbor
	NeighborEdge int
	Relation     mesh.Relation
}

// MeshConnectivity is the topology of the active elements needed for
// partitioning. Elements are numbered locally 0..NumElements-1 in mesh id
// order.
type MeshConnectivity struct {
	NumElements  int
	ElementIDs   []int // local index -> mesh element id
	ElementTypes []GeometryType
	Centroids    []r2.Vec
	Areas        []float64

	// EToE[k][i] is the first neighbor across edge i, k itself on the
	// boundary. EToF holds the matching neighbor edge.
	EToE [][]int
	EToF [][]int
	// Faces[k] lists every neighbor piece of element k
	Faces [][]Face

	dual  *simple.UndirectedGraph
	local map[int64]int
}

// FromMesh collects the connectivity of the active elements of m
func FromMesh(m *mesh.Mesh) (*MeshConnectivity, error) {
	conn := &MeshConnectivity{local: make(map[int64]int, m.NumActiveElements())}
	for e := range m.ActiveElements() {
		conn.local[int64(e.ID)] = len(conn.ElementIDs)
		conn.ElementIDs = append(conn.ElementIDs, e.ID)
	}
	K := len(conn.ElementIDs)
	if K == 0 {
		return nil, fmt.Errorf("mesh has no active elements")
	}
	conn.NumElements = K
	conn.ElementTypes = make([]GeometryType, K)
	conn.Centroids = make([]r2.Vec, K)
	conn.Areas = make([]float64, K)
	conn.EToE = make([][]int, K)
	conn.EToF = make([][]int, K)
	conn.Faces = make([][]Face, K)

	for k, id := range conn.ElementIDs {
		e, err := m.Element(id)
		if err != nil {
			return nil, err
		}
		conn.ElementTypes[k] = geometryOf(e.NVert)

		pts := m.VertexPositions(e)
		var c r2.Vec
		for _, p := range pts {
			c = r2.Add(c, p)
		}
		conn.Centroids[k] = r2.Scale(1/float64(len(pts)), c)
		if conn.Areas[k], err = m.ElementArea(e); err != nil {
			return nil, fmt.Errorf("element %d: %w", id, err)
		}

		conn.EToE[k] = make([]int, e.NVert)
		conn.EToF[k] = make([]int, e.NVert)
		for i := 0; i < e.NVert; i++ {
			conn.EToE[k][i], conn.EToF[k][i] = k, i
			nbs, err := m.Neighbors(id, i)
			if err != nil {
				return nil, err
			}
			first := true
			for _, nb := range nbs {
				n, ok := conn.local[int64(nb.Element)]
				if !ok {
					return nil, fmt.Errorf("element %d: neighbor %d is not active", id, nb.Element)
				}
				if n == k {
					continue
				}
				if first {
					conn.EToE[k][i], conn.EToF[k][i] = n, nb.Edge
					first = false
				}
				conn.Faces[k] = append(conn.Faces[k], Face{
					Edge: i, Neighbor: n, NeighborEdge: nb.Edge, Relation: nb.Relation,
				})
			}
		}
	}
	conn.dual = m.DualGraph()
	return conn, nil
}

// elementID returns the graph node id of local element k
func (c *MeshConnectivity) elementID(k int) int64 {
	if c.ElementIDs == nil {
		return int64(k)
	}
	return int64(c.ElementIDs[k])
}

// localOf maps a graph node id back to its local index
func (c *MeshConnectivity) localOf(id int64) int {
	if c.local == nil {
		c.local = make(map[int64]int, c.NumElements)
		for k := 0; k < c.NumElements; k++ {
			c.local[c.elementID(k)] = k
		}
	}
	return c.local[id]
}

// dualGraph returns the element adjacency graph, building it from Faces
// when the connectivity was not read from a mesh
func (c *MeshConnectivity) dualGraph() *simple.UndirectedGraph {
	if c.dual != nil {
		return c.dual
	}
	g := simple.NewUndirectedGraph()
	for k := 0; k < c.NumElements; k++ {
		if g.Node(c.elementID(k)) == nil {
			g.AddNode(simple.Node(c.elementID(k)))
		}
	}
	for k, faces := range c.Faces {
		for _, f := range faces {
			if f.Neighbor == k {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(c.elementID(k)), T: simple.Node(c.elementID(f.Neighbor))})
		}
	}
	c.dual = g
	return g
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition    PartitionStrategy = iota // Consecutive elements
	RoundRobin                                 // Distribute cyclically
	GraphPartition                             // Breadth-first growth over the dual graph
	SpaceFillingCurve                          // Morton ordering of centroids
)

var strategyNames = map[PartitionStrategy]string{
	BlockPartition:    "block",
	RoundRobin:        "round-robin",
	GraphPartition:    "graph",
	SpaceFillingCurve: "morton",
}

func (s PartitionStrategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy returns the strategy with the given name
func ParseStrategy(name string) (PartitionStrategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Mesh == nil || pb.Mesh.NumElements == 0 {
		return nil, fmt.Errorf("no elements to partition")
	}
	numPartitions, err := pb.calculateNumPartitions()
	if err != nil {
		return nil, err
	}

	eToP, err := pb.partitionElements(numPartitions)
	if err != nil {
		return nil, err
	}

	partitions := pb.createPartitions(eToP, numPartitions)
	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.Mesh.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count, never more than
// the number of elements
func (pb *PartitionBuilder) calculateNumPartitions() (int, error) {
	numPartitions := pb.NumPartitions
	if numPartitions <= 0 {
		if pb.TargetPartitionSize <= 0 {
			return 0, fmt.Errorf("either NumPartitions or TargetPartitionSize must be positive")
		}
		numPartitions = int(math.Ceil(float64(pb.Mesh.NumElements) / float64(pb.TargetPartitionSize)))
	}
	return max(1, min(numPartitions, pb.Mesh.NumElements)), nil
}

// blockOf spreads K elements over P partitions with sizes differing by at
// most one
func blockOf(i, K, P int) int { return i * P / K }

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) ([]int, error) {
	K := pb.Mesh.NumElements
	eToP := make([]int, K)

	switch pb.Strategy {
	case BlockPartition:
		for i := 0; i < K; i++ {
			eToP[i] = blockOf(i, K, numPartitions)
		}

	case RoundRobin:
		for i := 0; i < K; i++ {
			eToP[i] = i % numPartitions
		}

	case GraphPartition:
		return pb.growPartitions(numPartitions), nil

	case SpaceFillingCurve:
		if len(pb.Mesh.Centroids) != K {
			return nil, fmt.Errorf("space filling curve needs %d centroids, have %d",
				K, len(pb.Mesh.Centroids))
		}
		for i, k := range mortonOrder(pb.Mesh.Centroids) {
			eToP[k] = blockOf(i, K, numPartitions)
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// growPartitions grows each partition breadth first from its lowest
// unassigned element until it reaches its block size. Exhausted components
// are continued from a new seed.
func (pb *PartitionBuilder) growPartitions(numPartitions int) []int {
	conn := pb.Mesh
	K := conn.NumElements
	g := conn.dualGraph()

	sizes := make([]int, numPartitions)
	for i := 0; i < K; i++ {
		sizes[blockOf(i, K, numPartitions)]++
	}

	eToP := make([]int, K)
	for i := range eToP {
		eToP[i] = -1
	}
	free := func(n graph.Node) bool { return eToP[conn.localOf(n.ID())] < 0 }

	next := 0
	for p := 0; p < numPartitions; p++ {
		count := 0
		for count < sizes[p] {
			for eToP[next] >= 0 {
				next++
			}
			bf := traverse.BreadthFirst{
				Traverse: func(e graph.Edge) bool { return free(e.From()) || free(e.To()) },
			}
			bf.Walk(g, simple.Node(conn.elementID(next)), func(n graph.Node, _ int) bool {
				if count == sizes[p] {
					return true
				}
				eToP[conn.localOf(n.ID())] = p
				count++
				return false
			})
		}
	}
	return eToP
}

// mortonOrder sorts the points along a Z-order curve over their bounding box
func mortonOrder(pts []r2.Vec) []int {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range pts {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	quantize := func(v, lo, hi float64) uint64 {
		w := hi - lo
		if w <= 0 {
			return 0
		}
		return uint64((v - lo) / w * math.MaxUint16)
	}

	codes := make([]uint64, len(pts))
	order := make([]int, len(pts))
	for i, p := range pts {
		order[i] = i
		codes[i] = spread(quantize(p.X, lo.X, hi.X)) | spread(quantize(p.Y, lo.Y, hi.Y))<<1
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(codes[a], codes[b]) })
	return order
}

// spread interleaves the low 16 bits of v with zeros
func spread(v uint64) uint64 {
	v &= 0xffff
	v = (v | v<<8) & 0x00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i}
	}

	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		if pb.Mesh.ElementTypes != nil {
			partitions[part].ElementTypes = append(partitions[part].ElementTypes,
				pb.Mesh.ElementTypes[elem])
		}
		partitions[part].NumElements++
	}

	for i := range partitions {
		partitions[i].TypeGroups = pb.createElementGroups(&partitions[i])
	}

	return partitions
}

// createElementGroups organizes elements by type within a partition
func (pb *PartitionBuilder) createElementGroups(p *Partition) []ElementGroup {
	if len(p.ElementTypes) == 0 {
		return nil
	}

	byType := make(map[GeometryType][]int)
	for i, t := range p.ElementTypes {
		byType[t] = append(byType[t], i)
	}

	var groups []ElementGroup
	for _, t := range []GeometryType{Tri, Rectangle} {
		ids, ok := byType[t]
		if !ok {
			continue
		}
		groups = append(groups, ElementGroup{
			ElementType: t,
			Count:       len(ids),
			NVert:       t.NVert(),
			LocalIDs:    ids,
		})
	}
	return groups
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}
	return kpartMax
}
