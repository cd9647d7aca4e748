package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementAt(t *testing.T) {
	m := newGrid(t, 2, 2)
	tests := []struct {
		x, y float64
		id   int
		ok   bool
	}{
		{0.5, 0.5, 0, true},
		{1.5, 0.5, 1, true},
		{0.5, 1.5, 2, true},
		{1.7, 1.2, 3, true},
		{5, 5, 0, false},
		{-0.1, 0.5, 0, false},
	}
	for _, tt := range tests {
		e, ok := m.ElementAt(tt.x, tt.y)
		require.Equal(t, tt.ok, ok, "(%g, %g)", tt.x, tt.y)
		if ok {
			assert.Equal(t, tt.id, e.ID, "(%g, %g)", tt.x, tt.y)
		}
	}

	require.NoError(t, m.RefineElementID(0, Isotropic))
	e, ok := m.ElementAt(0.25, 0.25)
	require.True(t, ok)
	parent, _ := m.Element(0)
	assert.Equal(t, parent.Sons[0], e.ID)
}

func TestElementAtCurved(t *testing.T) {
	m := curvedSquare(t)
	e, ok := m.ElementAt(0.5, 1.15)
	require.True(t, ok, "inside the bulge")
	assert.Equal(t, 0, e.ID)
	_, ok = m.ElementAt(0.5, 1.25)
	assert.False(t, ok)
	_, ok = m.ElementAt(0.02, 1.1)
	assert.False(t, ok, "outside the arc near its end")
}

func TestMarkerAreaCache(t *testing.T) {
	m := centreGrid(t)
	area, err := m.MarkerArea("region")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, area, 1e-12)
	marker, _ := m.ElementMarkers.Internal("region")
	assert.Equal(t, m.Seq(), m.areas[marker].seq)

	rest, err := m.MarkerArea("rest")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, rest, 1e-12)

	require.NoError(t, m.RefineElementID(4, Isotropic))
	assert.NotEqual(t, m.Seq(), m.areas[marker].seq)
	area, err = m.MarkerArea("region")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, area, 1e-12)
	assert.Equal(t, m.Seq(), m.areas[marker].seq)

	_, err = m.MarkerArea("nowhere")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestSeqIsUnique(t *testing.T) {
	a, b := unitSquare(t), unitSquare(t)
	assert.NotEqual(t, a.Seq(), b.Seq())
}
