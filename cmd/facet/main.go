// Command facet evaluates a Lisp or YAML scene, recalculates normals with
// angle-threshold smoothing and writes the result as a binary glTF file.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/chazu/facet/internal/app"
	"github.com/chazu/facet/internal/config"
	"github.com/chazu/facet/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("facet", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: facet [flags] <file.lisp|file.yaml>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	input := fs.Arg(0)

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger.Log)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return 1
	}

	res, err := a.EvaluateFile(input)
	if err != nil {
		logger.Error("cannot read scene", zap.String("input", input), zap.Error(err))
		return 1
	}
	for _, w := range res.Warnings {
		logger.Warn(w.String())
	}
	if !res.OK() {
		for _, e := range res.Errors {
			logger.Error(e.String())
		}
		return 1
	}

	for _, m := range res.Meshes {
		logger.Info("part",
			zap.String("name", m.PartName),
			zap.Int("vertices", m.VertexCount()),
			zap.Int("triangles", m.TriangleCount()),
			zap.Int("sub_meshes", len(m.SubMeshes)))
	}

	if err := a.Export(cfg.Output.Path); err != nil {
		logger.Error("export failed", zap.String("path", cfg.Output.Path), zap.Error(err))
		return 1
	}
	return 0
}
