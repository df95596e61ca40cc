package config

import "flag"

// Flags holds command-line overrides. Only flags given on the command line
// override the file or default value; their values are applied as given and
// left to Validate.
type Flags struct {
	ConfigPath string
	Debug      bool
	Angle      float64
	MeshCells  int
	Workers    int
	Output     string

	fs *flag.FlagSet
}

// RegisterFlags defines facet's flags on fs. Call fs.Parse before Load.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Float64Var(&f.Angle, "angle", 0, "Smoothing angle in degrees (0-180)")
	fs.IntVar(&f.MeshCells, "cells", 0, "Marching cubes cells along the longest axis")
	fs.IntVar(&f.Workers, "workers", 0, "Goroutines for normal blending (0 or 1 = serial)")
	fs.StringVar(&f.Output, "o", "", "Output .glb path")
	return f
}

// set returns the names of the flags given on the command line.
func (f *Flags) set() map[string]bool {
	seen := make(map[string]bool)
	if f.fs != nil {
		f.fs.Visit(func(fl *flag.Flag) { seen[fl.Name] = true })
	}
	return seen
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	set := f.set()
	if set["debug"] && f.Debug {
		cfg.Logging.Level = "debug"
	}
	if set["angle"] {
		cfg.Smoothing.Angle = f.Angle
	}
	if set["cells"] {
		cfg.Kernel.MeshCells = f.MeshCells
	}
	if set["workers"] {
		cfg.Smoothing.Workers = f.Workers
	}
	if set["o"] {
		cfg.Output.Path = f.Output
	}
}
