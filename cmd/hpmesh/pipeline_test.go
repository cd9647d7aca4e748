package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/hpmesh/mesh"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func run(t *testing.T, doc string) (*Pipeline, *Summary) {
	t.Helper()
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)
	p := NewPipeline(cfg, zap.NewNop())
	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	return p, sum
}

func TestPipelineRefineAll(t *testing.T) {
	_, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2, width: 2, height: 2}
steps:
  - op: refine_all
`)
	assert.Equal(t, 16, sum.Active)
	assert.Equal(t, 20, sum.Elements)
	assert.Equal(t, 4, sum.Base)
	assert.Equal(t, 25, sum.Vertices)
	assert.Equal(t, 4, sum.Refinements)
	assert.InDelta(t, 4, sum.Area, 1e-12)
	assert.Equal(t, []string{"domain"}, sum.ElementMarkers)
	assert.ElementsMatch(t, []string{"bottom", "top", "right", "left"}, sum.BoundaryMarkers)
	assert.Nil(t, sum.Partitions)
}

func TestPipelineRefineAllDepth(t *testing.T) {
	_, sum := run(t, `
mesh:
  grid: {}
steps:
  - op: refine_all
    kind: horizontal
    depth: 2
`)
	assert.Equal(t, 4, sum.Active)
	assert.InDelta(t, 1, sum.Area, 1e-12)
}

func TestPipelineRefineAndUnrefine(t *testing.T) {
	_, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2}
steps:
  - op: refine_element
    element: 3
  - op: refine_towards_vertex
    vertex: 0
    depth: 2
  - op: unrefine_all
  - op: unrefine_all
`)
	assert.Equal(t, 4, sum.Active)
	assert.InDelta(t, 1, sum.Area, 1e-12)
}

func TestPipelineRegularize(t *testing.T) {
	p, _ := run(t, `
mesh:
  grid: {nx: 2, ny: 1}
steps:
  - op: refine_towards_vertex
    vertex: 1
    depth: 2
  - op: regularize
    degree: 1
`)
	m := p.Mesh
	for e := range m.ActiveElements() {
		for i := 0; i < e.NVert; i++ {
			assert.LessOrEqual(t, m.EdgeDegree(e.Vn[i], e.Vn[e.Next(i)]), 1, "element %d edge %d", e.ID, i)
		}
	}
}

func TestPipelineConvert(t *testing.T) {
	_, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2, width: 2, height: 2}
steps:
  - op: convert
    to: triangles
`)
	assert.Equal(t, 8, sum.Active)
	assert.Equal(t, 8, sum.Base)
	assert.InDelta(t, 4, sum.Area, 1e-12)
}

func TestPipelineEggShell(t *testing.T) {
	p, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2}
steps:
  - op: egg_shell
    markers: [domain]
`)
	assert.Equal(t, 4, sum.Active)
	assert.InDelta(t, 1, sum.Area, 1e-12)
	assert.Same(t, p.Logger, p.Mesh.Logger())
}

func TestPipelinePartition(t *testing.T) {
	p, sum := run(t, `
mesh:
  grid: {nx: 4, ny: 4, width: 4, height: 4}
steps:
  - op: partition
    strategy: graph
    partitions: 4
`)
	require.NotNil(t, sum.Partitions)
	assert.Equal(t, 4, sum.Partitions.NumPartitions)
	assert.Equal(t, 4, sum.Partitions.MinElements)
	assert.Equal(t, 4, sum.Partitions.MaxElements)
	assert.InDelta(t, 16, sum.Partitions.TotalArea, 1e-12)
	require.NotNil(t, p.Connector)
	assert.NoError(t, p.Connector.Verify())
}

func TestPipelinePartitionRefinedMesh(t *testing.T) {
	for _, strategy := range []string{"block", "round-robin", "graph", "morton"} {
		t.Run(strategy, func(t *testing.T) {
			p, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2}
steps:
  - op: refine_element
    element: 0
  - op: partition
    strategy: `+strategy+`
    partitions: 2
`)
			require.NotNil(t, sum.Partitions)
			assert.Equal(t, 7, sum.Active)
			assert.Equal(t, 2, sum.Partitions.NumPartitions)
			assert.Equal(t, 7, sum.Partitions.MinElements+sum.Partitions.MaxElements)
			require.NotNil(t, p.Connector)
			assert.NoError(t, p.Connector.Verify())
			assert.Equal(t, p.Connector.InterfaceCount(0), p.Connector.InterfaceCount(1))
		})
	}
}

func TestPipelineStalePartition(t *testing.T) {
	p, sum := run(t, `
mesh:
  grid: {nx: 2, ny: 2}
steps:
  - op: partition
    target_size: 2
  - op: refine_element
    element: 0
`)
	require.NotNil(t, p.Layout)
	assert.Equal(t, 2, p.Layout.NumPartitions)
	assert.Nil(t, sum.Partitions)
}

func TestPipelineErrors(t *testing.T) {
	cfg, err := ParseConfig([]byte("mesh:\n  grid: {}\nsteps:\n  - op: refine_element\n    element: 9\n"))
	require.NoError(t, err)
	_, err = NewPipeline(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mesh.ErrUsage)
	assert.Contains(t, err.Error(), "step 1 (refine_element)")

	cfg, err = ParseConfig([]byte("mesh:\n  file: " + filepath.Join(t.TempDir(), "none.msh") + "\n"))
	require.NoError(t, err)
	_, err = NewPipeline(cfg, nil).Run(context.Background())
	assert.ErrorIs(t, err, mesh.ErrMeshLoad)

	cfg, err = ParseConfig([]byte("mesh:\n  grid: {}\nsteps:\n  - op: refine_all\n"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPipeline(cfg, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPipelineCommand(t *testing.T) {
	logger = zap.NewNop()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mesh:
  grid: {nx: 2, ny: 2, width: 2, height: 2}
steps:
  - op: refine_all
  - op: partition
    partitions: 2
`), 0644))
	configPath = path
	defer func() { configPath = "pipeline.yaml" }()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runPipeline(cmd, nil))

	assert.Contains(t, out.String(), "elements:          20 (16 active, 4 base)")
	assert.Contains(t, out.String(), "area:              4\n")
	assert.Contains(t, out.String(), "partitions:        2 (8..8 elements")
}

func TestRunInfoMissingFile(t *testing.T) {
	logger = zap.NewNop()
	meshPath = filepath.Join(t.TempDir(), "none.msh")
	defer func() { meshPath = "" }()

	err := runInfo(&cobra.Command{}, nil)
	assert.ErrorIs(t, err, mesh.ErrMeshLoad)
}
