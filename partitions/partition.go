package partitions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	Tri       GeometryType = iota // Triangle
	Rectangle                     // Quadrilateral
)

func (g GeometryType) String() string {
	if g == Tri {
		return "triangle"
	}
	return "quad"
}

// NVert returns the vertex count of the shape
func (g GeometryType) NVert() int {
	if g == Tri {
		return 3
	}
	return 4
}

// geometryOf maps a vertex count to its shape
func geometryOf(nvert int) GeometryType {
	if nvert == 3 {
		return Tri
	}
	return Rectangle
}

// Partition is a group of active elements handed to one worker
type Partition struct {
	ID int

	// Element membership, as local connectivity indices
	Elements    []int
	NumElements int
	MaxElements int // max(NumElements) across the layout

	ElementTypes []GeometryType
	TypeGroups   []ElementGroup
}

// ElementGroup lists the elements of one shape within a partition
type ElementGroup struct {
	ElementType GeometryType
	Count       int
	NVert       int   // Vertices per element of this type
	LocalIDs    []int // Indices within the partition
}

// PartitionLayout is the complete decomposition of the active elements
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int
	TotalElements int
	NumPartitions int

	// EToP[k] is the partition of local element k
	EToP []int
}

// GetPartition returns the partition containing local element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions stored, %d declared",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP length %d != TotalElements %d",
			len(pl.EToP), pl.TotalElements)
	}

	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d listed",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for _, k := range p.Elements {
			if pl.GetPartition(k) != p.ID {
				return fmt.Errorf("element %d listed in partition %d but mapped to %d",
					k, p.ID, pl.GetPartition(k))
			}
		}
		actualMax = max(actualMax, p.NumElements)
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, expected %d",
			total, pl.TotalElements)
	}
	return nil
}

// PartitionStats summarizes the load balance of a layout
type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements

	// Areas[p] is the summed area of partition p
	Areas     []float64
	TotalArea float64
	// CutEdges counts element pairs split across partitions
	CutEdges int
}

// PartitionStatistics computes load balance metrics. The connectivity
// supplies areas and adjacency; it may be nil.
func (pl *PartitionLayout) PartitionStatistics(conn *MeshConnectivity) PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements

	if conn == nil {
		return stats
	}
	stats.Areas = make([]float64, pl.NumPartitions)
	for _, p := range pl.Partitions {
		a := make([]float64, 0, p.NumElements)
		for _, k := range p.Elements {
			a = append(a, conn.Areas[k])
		}
		stats.Areas[p.ID] = floats.Sum(a)
	}
	stats.TotalArea = floats.Sum(stats.Areas)

	for k, faces := range conn.Faces {
		for _, f := range faces {
			if f.Neighbor > k && pl.EToP[f.Neighbor] != pl.EToP[k] {
				stats.CutEdges++
			}
		}
	}
	return stats
}
