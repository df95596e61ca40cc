// Package engine evaluates facet Lisp scripts. It wraps zygomys in a
// sandboxed environment and produces a scene.Scene from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/facet/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandbox, and only the most recent
// call's result is delivered.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	log *zap.Logger
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{log: zap.NewNop()}
}

// NewEngineWithLogger creates an Engine that logs evaluation summaries.
func NewEngineWithLogger(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Evaluate takes Lisp source code and produces a new Scene.
//
// Return semantics:
//   - On success: returns scene + nil errors + nil error
//   - On parse/eval failure: returns nil scene + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*scene.Scene, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		sc, evalErrs, err := e.evaluate(source)
		ch <- evalResult{scene: sc, errors: evalErrs, err: err}
	}()

	start := time.Now()
	sc, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
	if e.log != nil {
		fields := []zap.Field{
			zap.Uint64("generation", gen),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("eval_errors", len(evalErrs)),
		}
		if sc != nil {
			fields = append(fields, zap.Int("parts", len(sc.Parts)), zap.Int("assemblies", len(sc.Assemblies)))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		e.log.Debug("evaluated script", fields...)
	}
	return sc, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*scene.Scene, []EvalError, error) {
	sc := scene.New()

	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return sc, nil, nil
	}

	// The sandbox keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, sc)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return sc, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
