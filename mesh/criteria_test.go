package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestRefineTowardsVertex(t *testing.T) {
	m := unitSquare(t)
	require.NoError(t, m.RefineTowardsVertex(0, 2, false))
	requireConsistent(t, m)
	assert.Equal(t, 7, m.NumActiveElements())
	assert.Equal(t, 1, m.NumInitialElements())

	e, ok := m.ElementAt(0.1, 0.1)
	require.True(t, ok)
	assert.Equal(t, r2.Vec{X: 0.25, Y: 0.25}, m.VertexPositions(e)[2])

	assert.ErrorIs(t, m.RefineTowardsVertex(99, 1, false), ErrUsage)
}

func TestRefineTowardsBoundary(t *testing.T) {
	t.Run("anisotropic", func(t *testing.T) {
		m := unitSquare(t)
		require.NoError(t, m.RefineTowardsBoundary("bottom", 1, true, false))
		e, _ := m.Element(0)
		assert.Equal(t, [4]int{1, 2, -1, -1}, e.Sons)
		assert.Equal(t, 2, m.NumActiveElements())
	})
	t.Run("isotropic", func(t *testing.T) {
		m := unitSquare(t)
		require.NoError(t, m.RefineTowardsBoundary("bottom", 1, false, false))
		assert.Equal(t, 4, m.NumActiveElements())
	})
	t.Run("layers", func(t *testing.T) {
		m := newGrid(t, 3, 1)
		require.NoError(t, m.RefineTowardsBoundary("bottom", 2, true, true))
		requireConsistent(t, m)
		// each sweep halves the elements along the bottom
		assert.Equal(t, 9, m.NumActiveElements())
		assert.Equal(t, m.MaxElementID(), m.NumInitialElements())
		for e := range m.ActiveElements() {
			assert.True(t, e.IsQuad())
		}
	})
	t.Run("any marker", func(t *testing.T) {
		m := unitSquare(t)
		require.NoError(t, m.RefineTowardsBoundary(AnyMarker, 1, false, false))
		requireConsistent(t, m)
		assert.Greater(t, m.NumActiveElements(), 4)
	})
	t.Run("errors", func(t *testing.T) {
		m := unitSquare(t)
		assert.ErrorIs(t, m.RefineTowardsBoundary("inlet", 1, false, false), ErrUsage)
		assert.ErrorIs(t, m.RefineTowardsBoundary("bottom", 0, false, false), ErrUsage)
		assert.Equal(t, 1, m.NumActiveElements())
	})
}

func TestRefineInAreas(t *testing.T) {
	m := centreGrid(t)
	require.NoError(t, m.RefineInAreas([]string{"region", "missing"}, 2, true))
	requireConsistent(t, m)
	assert.Equal(t, 24, m.NumActiveElements())
	assert.Equal(t, 29, m.NumInitialElements())

	assert.ErrorIs(t, m.RefineInArea("missing", 1, false), ErrUsage)

	m = centreGrid(t)
	require.NoError(t, m.RefineInArea(AnyMarker, 1, false))
	assert.Equal(t, 36, m.NumActiveElements())
}

func TestRefineByCriterion(t *testing.T) {
	m := newGrid(t, 2, 2)
	err := m.RefineByCriterion(func(*Element) RefinementKind { return NoRefinement }, 3)
	assert.ErrorIs(t, err, ErrNoMatch)

	assert.ErrorIs(t, m.RefineByCriterion(func(*Element) RefinementKind { return Isotropic }, 0), ErrUsage)

	// only elements existing at the start of a sweep are classified
	calls := 0
	require.NoError(t, m.RefineByCriterion(func(e *Element) RefinementKind {
		calls++
		if e.ID == 0 {
			return Vertical
		}
		return NoRefinement
	}, 2))
	assert.Equal(t, 4+5, calls)
	assert.Equal(t, 5, m.NumActiveElements())
}
