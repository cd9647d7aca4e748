package partitions

import (
	"fmt"
)

// MaxEdges is the per-element stride of a partition's edge buffer
const MaxEdges = 4

// EdgeConnector manages pick and place indices for the interface edges of a
// partitioned mesh. A partition's edge buffer holds MaxEdges slots per local
// element; a hanging edge places each of its pieces at the same slot.
type EdgeConnector struct {
	NumPartitions int
	K             int // Total elements

	EToP []int
	Mesh *MeshConnectivity

	ElemsPerPartition []int
	GlobalToLocalElem []map[int]int // [partition][globalElem] → localElem
	LocalToGlobalElem [][]int       // [partition][localElem] → globalElem

	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
}

// PickBuffer contains edge slots gathered for sending
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer contains edge slots that received values scatter to
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewEdgeConnector creates an edge connector for a partition assignment
func NewEdgeConnector(conn *MeshConnectivity, eToP []int) (*EdgeConnector, error) {
	if conn == nil || conn.NumElements <= 0 {
		return nil, fmt.Errorf("no elements to connect")
	}
	if len(eToP) != conn.NumElements {
		return nil, fmt.Errorf("EToP length %d does not match K=%d", len(eToP), conn.NumElements)
	}
	if len(conn.Faces) != conn.NumElements {
		return nil, fmt.Errorf("connectivity lists faces for %d of %d elements",
			len(conn.Faces), conn.NumElements)
	}

	numPartitions := 0
	for k, p := range eToP {
		if p < 0 {
			return nil, fmt.Errorf("element %d is not assigned to a partition", k)
		}
		numPartitions = max(numPartitions, p+1)
	}

	ec := &EdgeConnector{
		NumPartitions: numPartitions,
		K:             conn.NumElements,
		EToP:          eToP,
		Mesh:          conn,
	}

	ec.buildPartitionMappings()
	ec.initializeBuffers()
	if err := ec.BuildIndices(); err != nil {
		return nil, err
	}

	return ec, nil
}

// buildPartitionMappings numbers the elements of each partition
func (ec *EdgeConnector) buildPartitionMappings() {
	ec.ElemsPerPartition = make([]int, ec.NumPartitions)
	for _, p := range ec.EToP {
		ec.ElemsPerPartition[p]++
	}

	ec.GlobalToLocalElem = make([]map[int]int, ec.NumPartitions)
	ec.LocalToGlobalElem = make([][]int, ec.NumPartitions)
	for p := 0; p < ec.NumPartitions; p++ {
		ec.GlobalToLocalElem[p] = make(map[int]int)
		ec.LocalToGlobalElem[p] = make([]int, 0, ec.ElemsPerPartition[p])
	}

	for globalElem := 0; globalElem < ec.K; globalElem++ {
		partition := ec.EToP[globalElem]
		ec.GlobalToLocalElem[partition][globalElem] = len(ec.LocalToGlobalElem[partition])
		ec.LocalToGlobalElem[partition] = append(ec.LocalToGlobalElem[partition], globalElem)
	}
}

func (ec *EdgeConnector) initializeBuffers() {
	ec.PickIndices = make([][]PickBuffer, ec.NumPartitions)
	ec.PlaceIndices = make([][]PlaceBuffer, ec.NumPartitions)

	for p := 0; p < ec.NumPartitions; p++ {
		ec.PickIndices[p] = make([]PickBuffer, ec.NumPartitions)
		ec.PlaceIndices[p] = make([]PlaceBuffer, ec.NumPartitions)
		for q := 0; q < ec.NumPartitions; q++ {
			ec.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			ec.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// BuildIndices constructs pick and place indices for every edge piece whose
// neighbor lives in another partition
func (ec *EdgeConnector) BuildIndices() error {
	for p := 0; p < ec.NumPartitions; p++ {
		for localElem, globalElem := range ec.LocalToGlobalElem[p] {
			for _, f := range ec.Mesh.Faces[globalElem] {
				if f.Neighbor < 0 || f.Neighbor >= ec.K {
					return fmt.Errorf("element %d edge %d: neighbor %d out of range",
						globalElem, f.Edge, f.Neighbor)
				}
				source := ec.EToP[f.Neighbor]
				if source == p {
					continue
				}
				localSource := ec.GlobalToLocalElem[source][f.Neighbor]

				ec.PickIndices[source][p].Indices = append(ec.PickIndices[source][p].Indices,
					localSource*MaxEdges+f.NeighborEdge)
				ec.PlaceIndices[p][source].Indices = append(ec.PlaceIndices[p][source].Indices,
					localElem*MaxEdges+f.Edge)
			}
		}
	}
	return nil
}

// GetPickIndices returns pick indices for sending from source to target partition
func (ec *EdgeConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= ec.NumPartitions ||
		targetPartition < 0 || targetPartition >= ec.NumPartitions {
		return nil
	}
	return ec.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (ec *EdgeConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= ec.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= ec.NumPartitions {
		return nil
	}
	return ec.PlaceIndices[targetPartition][sourcePartition].Indices
}

// InterfaceCount returns the number of edge pieces partition p receives
func (ec *EdgeConnector) InterfaceCount(p int) int {
	n := 0
	for q := 0; q < ec.NumPartitions; q++ {
		n += len(ec.GetPlaceIndices(p, q))
	}
	return n
}

// Verify checks index validity, pick/place correspondence and the symmetry
// of every partition pair
func (ec *EdgeConnector) Verify() error {
	for p := 0; p < ec.NumPartitions; p++ {
		maxSlot := ec.ElemsPerPartition[p] * MaxEdges
		for q := 0; q < ec.NumPartitions; q++ {
			for _, idx := range ec.PickIndices[p][q].Indices {
				if idx < 0 || idx >= maxSlot {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, maxSlot-1)
				}
			}
			for _, idx := range ec.PlaceIndices[p][q].Indices {
				if idx < 0 || idx >= maxSlot {
					return fmt.Errorf("invalid place index %d for partition %d (max %d)",
						idx, p, maxSlot-1)
				}
			}
		}
	}

	for p := 0; p < ec.NumPartitions; p++ {
		for q := 0; q < ec.NumPartitions; q++ {
			pickLen := len(ec.PickIndices[p][q].Indices)
			placeLen := len(ec.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
			if back := len(ec.PickIndices[q][p].Indices); pickLen != back {
				return fmt.Errorf("asymmetric interface: %d sends %d to %d, receives %d",
					p, pickLen, q, back)
			}
		}
	}

	totalPicks, cut := 0, 0
	for p := 0; p < ec.NumPartitions; p++ {
		for q := 0; q < ec.NumPartitions; q++ {
			totalPicks += len(ec.PickIndices[p][q].Indices)
		}
	}
	for k, faces := range ec.Mesh.Faces {
		for _, f := range faces {
			if ec.EToP[f.Neighbor] != ec.EToP[k] {
				cut++
			}
		}
	}
	if totalPicks != cut {
		return fmt.Errorf("conservation error: total picks %d != interface pieces %d",
			totalPicks, cut)
	}

	return nil
}
