package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/hpmesh/mesh"
	"github.com/notargets/hpmesh/partitions"
	"gopkg.in/yaml.v3"
)

// Step operations understood by the pipeline
const (
	OpRefineAll             = "refine_all"
	OpRefineElement         = "refine_element"
	OpRefineTowardsVertex   = "refine_towards_vertex"
	OpRefineTowardsBoundary = "refine_towards_boundary"
	OpRefineInAreas         = "refine_in_areas"
	OpRegularize            = "regularize"
	OpUnrefineAll           = "unrefine_all"
	OpConvert               = "convert"
	OpEggShell              = "egg_shell"
	OpPartition             = "partition"
)

// Conversion targets of the convert step
const (
	ConvertTriangles = "triangles"
	ConvertQuads     = "quads"
	ConvertBase      = "base"
)

// Config is a refinement pipeline: an input mesh and the steps applied to it
type Config struct {
	Mesh  MeshConfig `yaml:"mesh"`
	Steps []Step     `yaml:"steps"`
}

// MeshConfig selects the input mesh: a file read through the gocfd readers
// or a generated rectangular grid of quads
type MeshConfig struct {
	File      string      `yaml:"file,omitempty"`
	Grid      *GridConfig `yaml:"grid,omitempty"`
	Tolerance float64     `yaml:"tolerance,omitempty"`
}

// GridConfig describes an NX by NY grid over [0,Width]x[0,Height]. Boundary
// markers are bottom, right, top and left.
type GridConfig struct {
	NX     int     `yaml:"nx"`
	NY     int     `yaml:"ny"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Marker string  `yaml:"marker"`
}

// Step is one pipeline operation. Only the fields of its Op are read.
type Step struct {
	Op string `yaml:"op"`

	Kind        string   `yaml:"kind,omitempty"`
	Element     int      `yaml:"element,omitempty"`
	Vertex      int      `yaml:"vertex,omitempty"`
	Marker      string   `yaml:"marker,omitempty"`
	Markers     []string `yaml:"markers,omitempty"`
	Depth       int      `yaml:"depth,omitempty"`
	Anisotropic bool     `yaml:"anisotropic,omitempty"`
	MarkInitial bool     `yaml:"mark_initial,omitempty"`
	KeepInitial bool     `yaml:"keep_initial,omitempty"`
	Degree      int      `yaml:"degree,omitempty"`
	To          string   `yaml:"to,omitempty"`
	Levels      int      `yaml:"levels,omitempty"`
	ExcludeCore bool     `yaml:"exclude_core,omitempty"`
	Strategy    string   `yaml:"strategy,omitempty"`
	Partitions  int      `yaml:"partitions,omitempty"`
	TargetSize  int      `yaml:"target_size,omitempty"`
}

// DefaultGrid is the unit square in one element
func DefaultGrid() *GridConfig {
	return &GridConfig{NX: 1, NY: 1, Width: 1, Height: 1, Marker: "domain"}
}

// LoadConfig reads and validates a pipeline file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a pipeline, fills defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if g := c.Mesh.Grid; g != nil {
		d := DefaultGrid()
		if g.NX == 0 {
			g.NX = d.NX
		}
		if g.NY == 0 {
			g.NY = d.NY
		}
		if g.Width == 0 {
			g.Width = d.Width
		}
		if g.Height == 0 {
			g.Height = d.Height
		}
		if g.Marker == "" {
			g.Marker = d.Marker
		}
	}
	for i := range c.Steps {
		s := &c.Steps[i]
		if s.Depth == 0 {
			s.Depth = 1
		}
		if s.Kind == "" {
			s.Kind = mesh.Isotropic.String()
		}
		if s.Levels == 0 {
			s.Levels = 2
		}
		if s.Strategy == "" {
			s.Strategy = partitions.BlockPartition.String()
		}
		if s.Partitions == 0 && s.TargetSize == 0 {
			s.Partitions = 1
		}
	}
}

// Validate checks the input selection and every step's parameters
func (c *Config) Validate() error {
	switch {
	case c.Mesh.File == "" && c.Mesh.Grid == nil:
		return fmt.Errorf("mesh: either file or grid is required")
	case c.Mesh.File != "" && c.Mesh.Grid != nil:
		return fmt.Errorf("mesh: file and grid are exclusive")
	}
	if g := c.Mesh.Grid; g != nil && (g.NX < 1 || g.NY < 1 || g.Width <= 0 || g.Height <= 0) {
		return fmt.Errorf("mesh.grid: invalid dimensions %dx%d over %gx%g", g.NX, g.NY, g.Width, g.Height)
	}
	if c.Mesh.Tolerance < 0 {
		return fmt.Errorf("mesh.tolerance must not be negative")
	}
	for i, s := range c.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	if s.Depth < 1 {
		return fmt.Errorf("depth %d must be at least 1", s.Depth)
	}
	switch s.Op {
	case OpRefineAll, OpRefineElement:
		if _, err := mesh.ParseRefinementKind(s.Kind); err != nil {
			return err
		}
		if s.Element < 0 {
			return fmt.Errorf("element %d must not be negative", s.Element)
		}
	case OpRefineTowardsVertex:
		if s.Vertex < 0 {
			return fmt.Errorf("vertex %d must not be negative", s.Vertex)
		}
	case OpRefineTowardsBoundary:
		if s.Marker == "" {
			return fmt.Errorf("marker is required")
		}
	case OpRefineInAreas:
		if len(s.Markers) == 0 {
			return fmt.Errorf("markers are required")
		}
	case OpRegularize:
		if s.Degree < 0 {
			return fmt.Errorf("degree %d must not be negative", s.Degree)
		}
	case OpUnrefineAll:
	case OpConvert:
		switch s.To {
		case ConvertTriangles, ConvertQuads, ConvertBase:
		default:
			return fmt.Errorf("unknown conversion target %q", s.To)
		}
	case OpEggShell:
		if len(s.Markers) == 0 {
			return fmt.Errorf("markers are required")
		}
		if s.Levels < 2 {
			return &mesh.RangeError{Name: "levels", Value: s.Levels, Min: 2}
		}
	case OpPartition:
		if _, err := partitions.ParseStrategy(s.Strategy); err != nil {
			return err
		}
		if s.Partitions < 0 || s.TargetSize < 0 {
			return fmt.Errorf("partition counts must not be negative")
		}
	default:
		return fmt.Errorf("unknown operation %q", s.Op)
	}
	return nil
}
