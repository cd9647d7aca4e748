package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool

	configPath string
	meshPath   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hpmesh",
	Short: "hp-FEM mesh refinement, regularization and egg-shell tool",
	Long: `hpmesh loads a 2D triangle/quad mesh and drives the refinement engine:
anisotropic and isotropic refinement, hanging-node regularization, element
conversion, egg-shell extraction and partitioning of the active elements.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a refinement pipeline",
	Long: `Reads a YAML pipeline: the input mesh (a gocfd-readable file or a
generated grid) followed by steps, for example

  mesh:
    grid: {nx: 4, ny: 4}
  steps:
    - op: refine_towards_vertex
      vertex: 0
      depth: 3
    - op: regularize
      degree: 1
    - op: partition
      strategy: graph
      partitions: 4`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print counts and markers of a mesh file",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "Pipeline file")
	infoCmd.Flags().StringVarP(&meshPath, "mesh", "m", "", "Mesh file (Gmsh, Gambit neutral or SU2)")
	_ = infoCmd.MarkFlagRequired("mesh")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runPipeline loads the pipeline file and executes it
func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("pipeline loaded", zap.String("config", configPath), zap.Int("steps", len(cfg.Steps)))

	sum, err := NewPipeline(cfg, logger).Run(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sum)
	return nil
}

// runInfo prints a summary of a mesh file without modifying it
func runInfo(cmd *cobra.Command, args []string) error {
	cfg := &Config{Mesh: MeshConfig{File: meshPath}}
	sum, err := NewPipeline(cfg, logger).Run(context.Background())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sum)
	return nil
}

func printSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "elements:          %d (%d active, %d base)\n", s.Elements, s.Active, s.Base)
	fmt.Fprintf(w, "vertex nodes:      %d\n", s.Vertices)
	fmt.Fprintf(w, "edge nodes:        %d\n", s.EdgeNodes)
	fmt.Fprintf(w, "refinements:       %d\n", s.Refinements)
	fmt.Fprintf(w, "area:              %.6g\n", s.Area)
	fmt.Fprintf(w, "element markers:   %s\n", strings.Join(s.ElementMarkers, ", "))
	fmt.Fprintf(w, "boundary markers:  %s\n", strings.Join(s.BoundaryMarkers, ", "))
	if p := s.Partitions; p != nil {
		fmt.Fprintf(w, "partitions:        %d (%d..%d elements, imbalance %.3f, %d cut edges)\n",
			p.NumPartitions, p.MinElements, p.MaxElements, p.Imbalance, p.CutEdges)
	}
}
