package partitions

import (
	"testing"

	"github.com/notargets/hpmesh/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeConnectorHangingInterface(t *testing.T) {
	conn := connectivity(t, refinedStrip(t))
	// quad 1 alone in partition 1, the four sons in partition 0
	eToP := []int{1, 0, 0, 0, 0}

	ec, err := NewEdgeConnector(conn, eToP)
	require.NoError(t, err)
	require.NoError(t, ec.Verify())

	assert.Equal(t, 2, ec.NumPartitions)
	assert.Equal(t, []int{4, 1}, ec.ElemsPerPartition)
	assert.Equal(t, []int{1, 2, 3, 4}, ec.LocalToGlobalElem[0])

	// sons 4 and 3 send their right edges to quad 1's left edge slot
	assert.Equal(t, []int{2*MaxEdges + 1, 1*MaxEdges + 1}, ec.GetPickIndices(0, 1))
	assert.Equal(t, []int{3, 3}, ec.GetPlaceIndices(1, 0))

	// quad 1 sends its left edge once per son
	assert.Equal(t, []int{3, 3}, ec.GetPickIndices(1, 0))
	assert.Equal(t, []int{1*MaxEdges + 1, 2*MaxEdges + 1}, ec.GetPlaceIndices(0, 1))

	assert.Empty(t, ec.GetPickIndices(0, 0))
	assert.Nil(t, ec.GetPickIndices(2, 0))
	assert.Nil(t, ec.GetPlaceIndices(0, -1))
	assert.Equal(t, 2, ec.InterfaceCount(0))
	assert.Equal(t, 2, ec.InterfaceCount(1))
}

func TestEdgeConnectorFromLayout(t *testing.T) {
	m := grid(t, 4, 4)
	require.NoError(t, m.RefineElementID(5, mesh.Isotropic))
	require.NoError(t, m.RefineElementID(10, mesh.Horizontal))
	conn := connectivity(t, m)

	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin, GraphPartition, SpaceFillingCurve} {
		t.Run(s.String(), func(t *testing.T) {
			layout, err := (&PartitionBuilder{Mesh: conn, NumPartitions: 3, Strategy: s}).BuildPartitions()
			require.NoError(t, err)

			ec, err := NewEdgeConnector(conn, layout.EToP)
			require.NoError(t, err)
			require.NoError(t, ec.Verify())

			total := 0
			for p := 0; p < ec.NumPartitions; p++ {
				total += ec.InterfaceCount(p)
			}
			assert.Equal(t, 2*layout.PartitionStatistics(conn).CutEdges, total)
		})
	}
}

func TestEdgeConnectorSinglePartition(t *testing.T) {
	conn := connectivity(t, grid(t, 2, 2))
	ec, err := NewEdgeConnector(conn, []int{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, ec.Verify())
	assert.Equal(t, 0, ec.InterfaceCount(0))
}

func TestEdgeConnectorErrors(t *testing.T) {
	conn := connectivity(t, grid(t, 2, 1))

	_, err := NewEdgeConnector(nil, nil)
	assert.Error(t, err)
	_, err = NewEdgeConnector(conn, []int{0})
	assert.Error(t, err)
	_, err = NewEdgeConnector(conn, []int{0, -1})
	assert.Error(t, err)
	_, err = NewEdgeConnector(&MeshConnectivity{NumElements: 2}, []int{0, 1})
	assert.Error(t, err)
}

func TestEdgeConnectorVerifyDetectsCorruption(t *testing.T) {
	conn := connectivity(t, grid(t, 2, 1))
	ec, err := NewEdgeConnector(conn, []int{0, 1})
	require.NoError(t, err)
	require.NoError(t, ec.Verify())

	ec.PickIndices[0][1].Indices = append(ec.PickIndices[0][1].Indices, 0)
	assert.Error(t, ec.Verify())

	ec, err = NewEdgeConnector(conn, []int{0, 1})
	require.NoError(t, err)
	ec.PlaceIndices[1][0].Indices[0] = MaxEdges
	assert.Error(t, ec.Verify())
}
