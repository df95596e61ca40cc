package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/facet/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a scene.Vec3.
type sexpVec3 struct {
	vec scene.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps a shape tree built by the primitive and boolean builtins.
type sexpShape struct {
	shape *scene.Shape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s ...)", s.shape.Op)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpRef names a part or assembly already added to the scene.
type sexpRef struct {
	name     string
	assembly bool
}

func (r *sexpRef) SexpString(ps *zygo.PrintState) string {
	if r.assembly {
		return fmt.Sprintf("(assembly %q)", r.name)
	}
	return fmt.Sprintf("(part %q)", r.name)
}
func (r *sexpRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string and returns the
// keyword name without its prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			res.positional = append(res.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			res.kw[name] = args[i+1]
			i++
		} else {
			res.kw[name] = zygo.SexpNull
		}
	}
	return res
}

// only rejects keywords outside allowed.
func (a kwArgs) only(fn string, allowed ...string) error {
	for k := range a.kw {
		found := false
		for _, name := range allowed {
			if k == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown keyword :%s", fn, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt or an integral SexpFloat.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %g", f)
	}
	return int(f), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toName accepts a string or a part/assembly reference.
func toName(s zygo.Sexp) (string, error) {
	if r, ok := s.(*sexpRef); ok {
		return r.name, nil
	}
	return toString(s)
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (scene.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return scene.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toShape extracts a shape from a sexpShape.
func toShape(s zygo.Sexp) (*scene.Shape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.shape, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flatten expands list and array arguments one level, so (assembly "a"
// (list p q)) and (assembly "a" p q) mean the same.
func flatten(args []zygo.Sexp) ([]zygo.Sexp, error) {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// numbers reads n numeric positional arguments.
func numbers(fn string, args []zygo.Sexp, names ...string) ([]float64, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("%s requires %d numeric arguments (%s), got %d",
			fn, len(names), strings.Join(names, ", "), len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn, names[i], err)
		}
		out[i] = f
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtinFunc is the zygomys user function signature.
type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the facet DSL into a zygomys environment. The
// builtins populate sc during evaluation.
//
// Source code must be preprocessed with preprocessSource() first so that
// :keyword tokens arrive as recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, sc *scene.Scene) {
	env.AddFunction("vec3", builtinVec3)
	env.AddFunction("box", builtinBox)
	env.AddFunction("cylinder", builtinCylinder)
	env.AddFunction("sphere", builtinSphere)
	env.AddFunction("union", builtinBoolean(scene.OpUnion))
	env.AddFunction("difference", builtinBoolean(scene.OpDifference))
	env.AddFunction("intersection", builtinBoolean(scene.OpIntersection))
	env.AddFunction("translate", builtinTransform("translate", (*scene.Shape).Translated))
	env.AddFunction("rotate", builtinTransform("rotate", (*scene.Shape).Rotated))
	env.AddFunction("defpart", builtinDefpart(sc))
	env.AddFunction("part", builtinPart(sc))
	env.AddFunction("assembly", builtinAssembly(sc))
}

// (vec3 1 2 3)
func builtinVec3(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	xs, err := numbers("vec3", args, "x", "y", "z")
	if err != nil {
		return zygo.SexpNull, err
	}
	return &sexpVec3{vec: scene.Vec3{X: xs[0], Y: xs[1], Z: xs[2]}}, nil
}

// (box 10 20 30), (box (vec3 10 20 30)) or (box :size (vec3 10 20 30))
func builtinBox(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if err := pa.only("box", "size"); err != nil {
		return zygo.SexpNull, err
	}

	var size scene.Vec3
	switch {
	case pa.kw["size"] != nil:
		v, err := toVec3(pa.kw["size"])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		size = v
	case len(pa.positional) == 1:
		v, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		size = v
	default:
		xs, err := numbers("box", pa.positional, "x", "y", "z")
		if err != nil {
			return zygo.SexpNull, err
		}
		size = scene.Vec3{X: xs[0], Y: xs[1], Z: xs[2]}
	}
	return &sexpShape{shape: scene.Box(size.X, size.Y, size.Z)}, nil
}

// (cylinder 50 10) or (cylinder :height 50 :radius 10 :segments 16)
func builtinCylinder(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if err := pa.only("cylinder", "height", "radius", "segments"); err != nil {
		return zygo.SexpNull, err
	}

	var height, radius float64
	var segments int
	if len(pa.positional) > 0 {
		if len(pa.positional) < 2 || len(pa.positional) > 3 {
			return zygo.SexpNull, fmt.Errorf("cylinder takes height, radius and optional segments, got %d arguments",
				len(pa.positional))
		}
		xs, err := numbers("cylinder", pa.positional[:2], "height", "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		height, radius = xs[0], xs[1]
		if len(pa.positional) == 3 {
			if segments, err = toInt(pa.positional[2]); err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
			}
		}
	}
	if v, ok := pa.kw["height"]; ok {
		f, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		height = f
	}
	if v, ok := pa.kw["radius"]; ok {
		f, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		radius = f
	}
	if v, ok := pa.kw["segments"]; ok {
		n, err := toInt(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
		}
		segments = n
	}
	return &sexpShape{shape: scene.Cylinder(height, radius, segments)}, nil
}

// (sphere 5) or (sphere :radius 5)
func builtinSphere(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if err := pa.only("sphere", "radius"); err != nil {
		return zygo.SexpNull, err
	}

	var radius float64
	switch {
	case pa.kw["radius"] != nil:
		f, err := toFloat64(pa.kw["radius"])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		radius = f
	default:
		xs, err := numbers("sphere", pa.positional, "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		radius = xs[0]
	}
	return &sexpShape{shape: scene.Sphere(radius)}, nil
}

// (union a b ...), (difference a b ...), (intersection a b ...)
func builtinBoolean(op scene.Op) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items, err := flatten(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
		}
		children := make([]*scene.Shape, len(items))
		for i, a := range items {
			if children[i], err = toShape(a); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: argument %d: %w", op, i+1, err)
			}
		}
		return &sexpShape{shape: scene.Combine(op, children...)}, nil
	}
}

// (translate shape (vec3 1 2 3)), (rotate shape (vec3 0 0 90))
func builtinTransform(fn string, apply func(*scene.Shape, scene.Vec3) *scene.Shape) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("%s requires a shape and a vec3, got %d arguments", fn, len(args))
		}
		s, err := toShape(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		return &sexpShape{shape: apply(s, v)}, nil
	}
}

// (defpart "name" shape :smooth 60 :merge-into "body" :submesh 1)
func builtinDefpart(sc *scene.Scene) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("defpart", "smooth", "merge-into", "submesh"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a shape expression")
		}

		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		shape, err := toShape(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart %q: %w", partName, err)
		}
		p := &scene.Part{Name: partName, Shape: shape}

		if v, ok := pa.kw["smooth"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defpart %q: smooth: %w", partName, err)
			}
			p.Smooth = &f
		}
		if v, ok := pa.kw["merge-into"]; ok {
			target, err := toName(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defpart %q: merge-into: %w", partName, err)
			}
			p.MergeInto = target
		}
		if v, ok := pa.kw["submesh"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("defpart %q: submesh: %w", partName, err)
			}
			p.SubMesh = n
		}

		sc.AddPart(p)
		return &sexpRef{name: partName}, nil
	}
}

// (part "name")
func builtinPart(sc *scene.Scene) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		if sc.Part(partName) == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		return &sexpRef{name: partName}, nil
	}
}

// (assembly "name" child ... :at (vec3 0 0 19) :rotate (vec3 0 0 90))
func builtinAssembly(sc *scene.Scene) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("assembly", "at", "rotate"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}

		asmName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}
		if sc.Assembly(asmName) != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: %q already defined", asmName)
		}
		a := &scene.Assembly{Name: asmName, Children: []string{}}

		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("assembly %q: at: %w", asmName, err)
			}
			a.Translate = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("assembly %q: rotate: %w", asmName, err)
			}
			a.Rotate = &vec
		}

		children, err := flatten(pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly %q: %w", asmName, err)
		}
		for i, c := range children {
			ref, ok := c.(*sexpRef)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("assembly %q: child %d: expected part or assembly, got %T (%s)",
					asmName, i+1, c, c.SexpString(nil))
			}
			a.Children = append(a.Children, ref.name)
		}

		sc.AddAssembly(a)
		return &sexpRef{name: asmName, assembly: true}, nil
	}
}
