package main

import (
	"context"
	"fmt"

	"github.com/notargets/hpmesh/mesh"
	"github.com/notargets/hpmesh/mesh/readers"
	"github.com/notargets/hpmesh/partitions"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// Pipeline applies the steps of a Config to its input mesh
type Pipeline struct {
	Config *Config
	Logger *zap.Logger

	Mesh      *mesh.Mesh
	Conn      *partitions.MeshConnectivity
	Layout    *partitions.PartitionLayout
	Connector *partitions.EdgeConnector
	// seq of the mesh the layout was computed on
	partSeq uint64
}

// Summary describes the mesh left by a pipeline run
type Summary struct {
	Elements        int
	Active          int
	Base            int
	Vertices        int
	EdgeNodes       int
	Refinements     int
	Area            float64
	ElementMarkers  []string
	BoundaryMarkers []string
	Partitions      *partitions.PartitionStats
}

func NewPipeline(cfg *Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{Config: cfg, Logger: logger}
}

// Run loads the input mesh and executes every step in order
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	m, err := p.load()
	if err != nil {
		return nil, err
	}
	p.Mesh = m
	p.Logger.Info("mesh loaded",
		zap.Int("elements", m.NumBaseElements()),
		zap.Int("vertices", m.NumTopVertices()))

	for i, s := range p.Config.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.apply(s); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
		p.Logger.Info("step done",
			zap.Int("step", i+1),
			zap.String("op", s.Op),
			zap.Int("active", p.Mesh.NumActiveElements()))
	}
	return p.summarize()
}

func (p *Pipeline) load() (*mesh.Mesh, error) {
	opts := []mesh.Option{mesh.WithLogger(p.Logger)}
	if tol := p.Config.Mesh.Tolerance; tol > 0 {
		opts = append(opts, mesh.WithTolerance(tol))
	}
	if p.Config.Mesh.Grid == nil {
		return readers.Load(p.Config.Mesh.File, opts...)
	}
	m := mesh.New(opts...)
	if err := m.Create(gridMesh(p.Config.Mesh.Grid)); err != nil {
		return nil, err
	}
	return m, nil
}

// gridMesh lays out the grid vertices row by row; element (i, j) becomes
// quad j*NX+i
func gridMesh(g *GridConfig) mesh.BaseMesh {
	var b mesh.BaseMesh
	vid := func(i, j int) int { return j*(g.NX+1) + i }
	for j := 0; j <= g.NY; j++ {
		for i := 0; i <= g.NX; i++ {
			b.Vertices = append(b.Vertices, r2.Vec{
				X: g.Width * float64(i) / float64(g.NX),
				Y: g.Height * float64(j) / float64(g.NY),
			})
		}
	}
	for j := 0; j < g.NY; j++ {
		for i := 0; i < g.NX; i++ {
			b.Quads = append(b.Quads, [4]int{vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)})
			b.QuadMarkers = append(b.QuadMarkers, g.Marker)
		}
	}
	edge := func(a, c int, name string) {
		b.BoundaryEdges = append(b.BoundaryEdges, [2]int{a, c})
		b.BoundaryMarkers = append(b.BoundaryMarkers, name)
	}
	for i := 0; i < g.NX; i++ {
		edge(vid(i, 0), vid(i+1, 0), "bottom")
		edge(vid(i+1, g.NY), vid(i, g.NY), "top")
	}
	for j := 0; j < g.NY; j++ {
		edge(vid(g.NX, j), vid(g.NX, j+1), "right")
		edge(vid(0, j+1), vid(0, j), "left")
	}
	return b
}

func (p *Pipeline) apply(s Step) error {
	m := p.Mesh
	switch s.Op {
	case OpRefineAll:
		kind, err := mesh.ParseRefinementKind(s.Kind)
		if err != nil {
			return err
		}
		for range s.Depth {
			if err := m.RefineAllElements(kind, s.MarkInitial); err != nil {
				return err
			}
		}
	case OpRefineElement:
		kind, err := mesh.ParseRefinementKind(s.Kind)
		if err != nil {
			return err
		}
		return m.RefineElementID(s.Element, kind)
	case OpRefineTowardsVertex:
		return m.RefineTowardsVertex(s.Vertex, s.Depth, s.MarkInitial)
	case OpRefineTowardsBoundary:
		return m.RefineTowardsBoundary(s.Marker, s.Depth, s.Anisotropic, s.MarkInitial)
	case OpRefineInAreas:
		return m.RefineInAreas(s.Markers, s.Depth, s.MarkInitial)
	case OpRegularize:
		parents, err := m.Regularize(s.Degree)
		if err != nil {
			return err
		}
		p.Logger.Debug("regularized", zap.Int("degree", s.Degree), zap.Int("ids", len(parents)))
	case OpUnrefineAll:
		return m.UnrefineAllElements(s.KeepInitial)
	case OpConvert:
		switch s.To {
		case ConvertTriangles:
			return m.ConvertQuadsToTriangles()
		case ConvertQuads:
			return m.ConvertTrianglesToQuads()
		default:
			return m.ConvertToBase()
		}
	case OpEggShell:
		shell, err := m.EggShell(s.Markers, s.Levels, mesh.EggShellOptions{ExcludeCore: s.ExcludeCore})
		if err != nil {
			return err
		}
		shell.SetLogger(p.Logger)
		p.Mesh = shell
	case OpPartition:
		return p.partition(s)
	default:
		return fmt.Errorf("unknown operation %q", s.Op)
	}
	return nil
}

func (p *Pipeline) partition(s Step) error {
	strategy, err := partitions.ParseStrategy(s.Strategy)
	if err != nil {
		return err
	}
	conn, err := partitions.FromMesh(p.Mesh)
	if err != nil {
		return err
	}
	pb := &partitions.PartitionBuilder{
		Mesh:                conn,
		TargetPartitionSize: s.TargetSize,
		NumPartitions:       s.Partitions,
		Strategy:            strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return err
	}
	ec, err := partitions.NewEdgeConnector(conn, layout.EToP)
	if err != nil {
		return err
	}
	if err := ec.Verify(); err != nil {
		return err
	}
	p.Conn, p.Layout, p.Connector = conn, layout, ec
	p.partSeq = p.Mesh.Seq()
	stats := layout.PartitionStatistics(conn)
	p.Logger.Debug("partitioned",
		zap.Stringer("strategy", strategy),
		zap.Int("partitions", layout.NumPartitions),
		zap.Float64("imbalance", stats.Imbalance),
		zap.Int("cut_edges", stats.CutEdges))
	return nil
}

func (p *Pipeline) summarize() (*Summary, error) {
	m := p.Mesh
	sum := &Summary{
		Elements:        m.NumElements(),
		Active:          m.NumActiveElements(),
		Base:            m.NumBaseElements(),
		Vertices:        m.NumVertexNodes(),
		EdgeNodes:       m.NumEdgeNodes(),
		Refinements:     len(m.Refinements()),
		ElementMarkers:  m.ElementMarkers.Names(),
		BoundaryMarkers: m.BoundaryMarkers.Names(),
	}
	areas := make([]float64, 0, len(sum.ElementMarkers))
	for _, name := range sum.ElementMarkers {
		a, err := m.MarkerArea(name)
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	sum.Area = floats.Sum(areas)

	// a layout computed before later steps describes a stale mesh
	if p.Layout != nil && p.partSeq == m.Seq() {
		stats := p.Layout.PartitionStatistics(p.Conn)
		sum.Partitions = &stats
	}
	return sum, nil
}
