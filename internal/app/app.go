// Package app wires the script engine, scene validation, tessellation and
// glTF export into one evaluate-then-export pipeline.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chazu/facet/internal/config"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/export"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/normals"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
	"go.uber.org/zap"
)

// ErrNothingToExport is returned by Export before any successful evaluation.
var ErrNothingToExport = errors.New("app: no evaluated meshes to export")

// App holds the pipeline state between evaluations.
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	solver *normals.Solver
	log    *zap.Logger

	mu   sync.Mutex
	last []*kernel.Mesh
}

// Message is a script error, validation error or warning.
type Message struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Name    string `json:"name,omitempty"` // part or assembly, when known
	Message string `json:"message"`
}

func (m Message) String() string {
	var b strings.Builder
	if m.Line > 0 {
		fmt.Fprintf(&b, "line %d:%d: ", m.Line, m.Col)
	}
	if m.Name != "" {
		fmt.Fprintf(&b, "%s: ", m.Name)
	}
	b.WriteString(m.Message)
	return b.String()
}

// Result is the outcome of one evaluation. Meshes is empty whenever Errors
// is not.
type Result struct {
	Meshes   []*kernel.Mesh `json:"meshes"`
	Errors   []Message      `json:"errors"`
	Warnings []Message      `json:"warnings"`
}

// OK reports whether the evaluation produced no errors.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// New creates an App with the sdfx kernel. A nil cfg uses config.Default()
// and a nil log discards output.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	solver, err := normals.NewSolver(cfg.SolverOptions(log.Named("normals")))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	eng := engine.NewEngineWithLogger(log.Named("engine"))
	eng.Timeout = cfg.Script.Timeout
	return &App{
		cfg:    cfg,
		engine: eng,
		kernel: sdfx.NewWithCells(cfg.Kernel.MeshCells),
		solver: solver,
		log:    log,
	}, nil
}

// Evaluate takes Lisp source and returns meshes plus errors.
func (a *App) Evaluate(source string) Result {
	sc, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, superseded).
		a.log.Warn("evaluation failed", zap.Error(err))
		return Result{Errors: []Message{{Message: err.Error()}}}
	}
	if len(evalErrs) > 0 {
		res := Result{}
		for _, e := range evalErrs {
			res.Errors = append(res.Errors, Message{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return res
	}
	return a.EvaluateScene(sc)
}

// EvaluateScene validates and tessellates an already built scene.
func (a *App) EvaluateScene(sc *scene.Scene) Result {
	res := Result{}
	if sc == nil {
		return res
	}

	vr := sc.Validate()
	for _, w := range vr.Warnings {
		res.Warnings = append(res.Warnings, Message{Name: w.Name, Message: w.Message})
	}
	if !vr.OK() {
		for _, e := range vr.Errors {
			res.Errors = append(res.Errors, Message{Name: e.Name, Message: e.Message})
		}
		return res
	}

	meshes, err := tessellate.Tessellate(sc, a.kernel, tessellate.Options{
		DefaultAngle: a.cfg.Smoothing.Angle,
		Solver:       a.solver,
		Logger:       a.log.Named("tessellate"),
	})
	if err != nil {
		a.log.Warn("tessellation failed", zap.Error(err))
		res.Errors = append(res.Errors, Message{Message: "tessellation failed: " + err.Error()})
		return res
	}
	res.Meshes = meshes

	a.mu.Lock()
	a.last = meshes
	a.mu.Unlock()
	return res
}

// EvaluateFile reads a scene from path: YAML for .yaml and .yml, Lisp
// otherwise. Only I/O and YAML decode failures are returned as errors.
func (a *App) EvaluateFile(path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sc, err := scene.Load(path)
		if err != nil {
			return Result{}, err
		}
		return a.EvaluateScene(sc), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		return a.Evaluate(string(data)), nil
	}
}

// Export writes the meshes of the last successful evaluation as GLB.
func (a *App) Export(path string) error {
	a.mu.Lock()
	meshes := a.last
	a.mu.Unlock()
	if len(meshes) == 0 {
		return ErrNothingToExport
	}
	if err := export.WriteGLB(path, meshes); err != nil {
		return err
	}
	a.log.Info("exported scene", zap.String("path", path), zap.Int("parts", len(meshes)))
	return nil
}
