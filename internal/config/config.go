// Package config handles facet configuration loading and management.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/chazu/facet/internal/logger"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/normals"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// Config holds all facet settings.
type Config struct {
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Kernel    KernelConfig    `yaml:"kernel"`
	Script    ScriptConfig    `yaml:"script"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SmoothingConfig holds normal recalculation settings.
type SmoothingConfig struct {
	Angle            float64    `yaml:"angle"` // degrees, [0, 180]
	Scale            float64    `yaml:"scale"` // position quantization factor
	DegenerateNormal [3]float64 `yaml:"degenerate_normal,flow"`
	Workers          int        `yaml:"workers"`
	LargeClusterWarn int        `yaml:"large_cluster_warn"`
}

// KernelConfig holds tessellation settings.
type KernelConfig struct {
	MeshCells int `yaml:"mesh_cells"`
}

// ScriptConfig holds Lisp evaluation settings.
type ScriptConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig holds export settings.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the default values.
func Default() *Config {
	return &Config{
		Smoothing: SmoothingConfig{
			Angle:            normals.DefaultAngle,
			Scale:            normals.DefaultScale,
			LargeClusterWarn: normals.DefaultLargeClusterWarn,
		},
		Kernel: KernelConfig{
			MeshCells: sdfx.DefaultMeshCells,
		},
		Script: ScriptConfig{
			Timeout: 5 * time.Second,
		},
		Output: OutputConfig{
			Path: "out.glb",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	s := c.Smoothing
	if _, err := normals.CosThreshold(s.Angle); err != nil {
		return fmt.Errorf("config: smoothing.angle: %w", err)
	}
	if !(s.Scale > 0) || math.IsInf(s.Scale, 0) {
		return fmt.Errorf("config: smoothing.scale %v must be positive", s.Scale)
	}
	for _, x := range s.DegenerateNormal {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("config: smoothing.degenerate_normal %v is not finite", s.DegenerateNormal)
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("config: smoothing.workers %d must not be negative", s.Workers)
	}
	if s.LargeClusterWarn < 0 {
		return fmt.Errorf("config: smoothing.large_cluster_warn %d must not be negative", s.LargeClusterWarn)
	}
	if c.Kernel.MeshCells < 1 {
		return fmt.Errorf("config: kernel.mesh_cells %d must be at least 1", c.Kernel.MeshCells)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("config: output.path must not be empty")
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("config: script.timeout %s must not be negative", c.Script.Timeout)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	return nil
}

// SolverOptions converts the smoothing section to normals.Options.
func (c *Config) SolverOptions(log *zap.Logger) normals.Options {
	opts := normals.DefaultOptions()
	opts.Scale = c.Smoothing.Scale
	opts.Workers = c.Smoothing.Workers
	opts.LargeClusterWarn = c.Smoothing.LargeClusterWarn
	d := c.Smoothing.DegenerateNormal
	opts.DegenerateNormal = v3.Vec{X: d[0], Y: d[1], Z: d[2]}
	opts.Logger = log
	return opts
}
