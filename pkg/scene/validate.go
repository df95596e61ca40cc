package scene

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownReference is returned when a name does not resolve to a part or
// assembly.
var ErrUnknownReference = errors.New("unknown reference")

// ErrInvalidScene is returned when validation finds blocking errors.
var ErrInvalidScene = errors.New("invalid scene")

// ValidationSeverity indicates whether a finding blocks tessellation or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks tessellation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Name     string // part or assembly with the problem, empty if scene-level
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Name, e.Message)
}

// ValidationResult bundles blocking errors and advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err returns nil when OK, otherwise an error wrapping ErrInvalidScene that
// lists every blocking finding.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", ErrInvalidScene, strings.Join(msgs, "; "))
}

// collector accumulates findings for one Validate call.
type collector struct {
	res ValidationResult
}

func (c *collector) errorf(name, format string, args ...interface{}) {
	c.res.Errors = append(c.res.Errors, ValidationError{
		Name: name, Message: fmt.Sprintf(format, args...), Severity: SeverityError,
	})
}

func (c *collector) warnf(name, format string, args ...interface{}) {
	c.res.Warnings = append(c.res.Warnings, ValidationError{
		Name: name, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning,
	})
}

// Validate checks names, shapes, smoothing angles, merge targets and the
// assembly hierarchy. It never mutates the scene.
func (sc *Scene) Validate() ValidationResult {
	c := &collector{}
	validateNames(sc, c)
	for _, p := range sc.Parts {
		validatePart(sc, p, c)
	}
	for _, a := range sc.Assemblies {
		validateAssembly(sc, a, c)
	}
	validateCycles(sc, c)
	return c.res
}

func validateNames(sc *Scene, c *collector) {
	seen := make(map[string]string)
	for _, p := range sc.Parts {
		if p.Name == "" {
			c.errorf("", "part with empty name")
			continue
		}
		if _, dup := seen[p.Name]; dup {
			c.errorf(p.Name, "duplicate part name")
			continue
		}
		seen[p.Name] = "part"
	}
	for _, a := range sc.Assemblies {
		if a.Name == "" {
			c.errorf("", "assembly with empty name")
			continue
		}
		if kind, dup := seen[a.Name]; dup {
			c.errorf(a.Name, "assembly name already used by a %s", kind)
			continue
		}
		seen[a.Name] = "assembly"
	}
}

func validatePart(sc *Scene, p *Part, c *collector) {
	if p.Shape == nil {
		c.errorf(p.Name, "part has no shape")
	} else {
		validateShape(p.Name, "shape", p.Shape, c)
	}

	if p.Smooth != nil {
		if a := *p.Smooth; math.IsNaN(a) || a < 0 || a > 180 {
			c.errorf(p.Name, "smoothing angle %v outside [0, 180] degrees", a)
		}
	}

	if p.SubMesh < -1 {
		c.errorf(p.Name, "sub-mesh index %d must be -1 or greater", p.SubMesh)
	}
	if p.MergeInto == "" {
		return
	}
	if p.MergeInto == p.Name {
		c.errorf(p.Name, "part cannot merge into itself")
		return
	}
	target := sc.Part(p.MergeInto)
	if target == nil {
		c.errorf(p.Name, "merge target %q is not a part", p.MergeInto)
		return
	}
	if target.MergeInto != "" {
		c.warnf(p.Name, "merge target %q itself merges into %q", target.Name, target.MergeInto)
	}
	if p.Smooth != nil {
		c.warnf(p.Name, "smoothing angle ignored: merged parts use the angle of %q", p.MergeInto)
	}
	mergeCycle(sc, p, c)
}

// mergeCycle reports a merge chain that returns to p.
func mergeCycle(sc *Scene, p *Part, c *collector) {
	seen := map[string]bool{p.Name: true}
	for q := sc.Part(p.MergeInto); q != nil && q.MergeInto != ""; q = sc.Part(q.MergeInto) {
		if seen[q.MergeInto] {
			if q.MergeInto == p.Name {
				c.errorf(p.Name, "merge chain cycles back to %q", p.Name)
			}
			return
		}
		seen[q.Name] = true
	}
}

func validateShape(owner, path string, s *Shape, c *collector) {
	for _, v := range []*Vec3{s.Translate, s.Rotate} {
		if v != nil && !finite(*v) {
			c.errorf(owner, "%s: transform %v is not finite", path, *v)
		}
	}

	switch s.Op {
	case OpBox:
		if s.Size == nil {
			c.errorf(owner, "%s: box needs a size", path)
		} else if !(s.Size.X > 0 && s.Size.Y > 0 && s.Size.Z > 0) || !finite(*s.Size) {
			c.errorf(owner, "%s: box size %v must be positive", path, *s.Size)
		}
	case OpCylinder:
		if !positive(s.Height) || !positive(s.Radius) {
			c.errorf(owner, "%s: cylinder height %v and radius %v must be positive", path, s.Height, s.Radius)
		}
		if s.Segments != 0 && s.Segments < 3 {
			c.warnf(owner, "%s: cylinder segments %d below 3", path, s.Segments)
		}
	case OpSphere:
		if !positive(s.Radius) {
			c.errorf(owner, "%s: sphere radius %v must be positive", path, s.Radius)
		}
	case OpUnion, OpDifference, OpIntersection:
		need := 2
		if s.Op == OpUnion {
			need = 1
		}
		if len(s.Children) < need {
			c.errorf(owner, "%s: %s needs at least %d children, got %d", path, s.Op, need, len(s.Children))
		}
		for i, ch := range s.Children {
			if ch == nil {
				c.errorf(owner, "%s.children[%d]: missing shape", path, i)
				continue
			}
			validateShape(owner, fmt.Sprintf("%s.children[%d]", path, i), ch, c)
		}
	default:
		c.errorf(owner, "%s: unknown op %q", path, s.Op)
	}
}

func validateAssembly(sc *Scene, a *Assembly, c *collector) {
	for _, v := range []*Vec3{a.Translate, a.Rotate} {
		if v != nil && !finite(*v) {
			c.errorf(a.Name, "transform %v is not finite", *v)
		}
	}
	if len(a.Children) == 0 {
		c.warnf(a.Name, "assembly has no children")
	}
	for _, ch := range a.Children {
		if _, _, err := sc.Lookup(ch); err != nil {
			c.errorf(a.Name, "child %q: %v", ch, ErrUnknownReference)
		}
	}
}

// validateCycles checks the assembly hierarchy using DFS with 3-color
// marking. White = unvisited, gray = on the current path, black = done.
func validateCycles(sc *Scene, c *collector) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)

	var visit func(a *Assembly)
	visit = func(a *Assembly) {
		color[a.Name] = gray
		for _, ch := range a.Children {
			next := sc.Assembly(ch)
			if next == nil {
				continue
			}
			switch color[next.Name] {
			case gray:
				c.errorf(a.Name, "cycle detected: %q contains %q", a.Name, next.Name)
			case white:
				visit(next)
			}
		}
		color[a.Name] = black
	}
	for _, a := range sc.Assemblies {
		if color[a.Name] == white {
			visit(a)
		}
	}
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

func finite(v Vec3) bool {
	for _, x := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
