package engine

import (
	"strings"
	"testing"

	"github.com/chazu/facet/pkg/scene"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(sphere :radius 5)`,
			expect: `(sphere "__kw_radius" 5)`,
		},
		{
			name:   "multiple keywords",
			input:  `(cylinder :height 50 :radius 10)`,
			expect: `(cylinder "__kw_height" 50 "__kw_radius" 10)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"say \":hi\"" :x`,
			expect: `"say \":hi\"" "__kw_x"`,
		},
		{
			name:   "backtick string preserved",
			input:  "`raw :kw a-b`",
			expect: "`raw :kw a-b`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(defpart "fuse" s :merge-into body-part)`,
			expect: `(defpart "fuse" s "__kw_merge-into" body_part)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative number preserved",
			input:  `(vec3 -1 x-1 2)`,
			expect: `(vec3 -1 x-1 2)`,
		},
		{
			name:   "comment converted to // style",
			input:  ";; comment with :keyword\n(box 1 1 1)",
			expect: "// comment with :keyword\n(box 1 1 1)",
		},
		{
			name:   "single semicolon comment at end",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "unterminated string",
			input:  `"open :kw`,
			expect: `"open :kw`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Builtin tests
// ---------------------------------------------------------------------------

func mustEvaluate(t *testing.T, source string) *scene.Scene {
	t.Helper()
	sc, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if sc == nil {
		t.Fatal("expected non-nil scene")
	}
	return sc
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, s *scene.Shape)
	}{
		{
			name:   "box positional",
			source: `(defpart "p" (box 10 20 30))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpBox || *s.Size != (scene.Vec3{X: 10, Y: 20, Z: 30}) {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "box from vec3",
			source: `(defpart "p" (box (vec3 1 2 3)))`,
			check: func(t *testing.T, s *scene.Shape) {
				if *s.Size != (scene.Vec3{X: 1, Y: 2, Z: 3}) {
					t.Errorf("size = %v", *s.Size)
				}
			},
		},
		{
			name:   "box size keyword",
			source: `(defpart "p" (box :size (vec3 4 5 6)))`,
			check: func(t *testing.T, s *scene.Shape) {
				if *s.Size != (scene.Vec3{X: 4, Y: 5, Z: 6}) {
					t.Errorf("size = %v", *s.Size)
				}
			},
		},
		{
			name:   "cylinder positional",
			source: `(defpart "p" (cylinder 50 10 16))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpCylinder || s.Height != 50 || s.Radius != 10 || s.Segments != 16 {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "cylinder keywords",
			source: `(defpart "p" (cylinder :height 5.5 :radius 1))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Height != 5.5 || s.Radius != 1 || s.Segments != 0 {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "sphere",
			source: `(defpart "p" (sphere :radius 2.5))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpSphere || s.Radius != 2.5 {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "boolean tree",
			source: `(defpart "p" (difference (box 2 2 2) (sphere 1) (cylinder 3 0.5)))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpDifference || len(s.Children) != 3 || s.Children[2].Op != scene.OpCylinder {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "boolean from list",
			source: `(defpart "p" (union (list (box 1 1 1) (sphere 1))))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpUnion || len(s.Children) != 2 {
					t.Errorf("shape = %+v", s)
				}
			},
		},
		{
			name:   "translate then rotate",
			source: `(defpart "p" (rotate (translate (sphere 1) (vec3 0 0 1)) (vec3 90 0 0)))`,
			check: func(t *testing.T, s *scene.Shape) {
				if s.Op != scene.OpUnion || *s.Rotate != (scene.Vec3{X: 90}) {
					t.Fatalf("shape = %+v", s)
				}
				inner := s.Children[0]
				if inner.Op != scene.OpSphere || *inner.Translate != (scene.Vec3{Z: 1}) {
					t.Errorf("inner = %+v", inner)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := mustEvaluate(t, tt.source)
			p := sc.Part("p")
			if p == nil {
				t.Fatal("part p not defined")
			}
			tt.check(t, p.Shape)
		})
	}
}

func TestDefpartOptions(t *testing.T) {
	sc := mustEvaluate(t, `
(defpart "body" (sphere 1) :smooth 60)
(defpart "fuse" (cylinder 0.5 0.1) :merge-into "body" :submesh 1)
(defpart "spark" (sphere 0.05) :merge-into (part "fuse") :submesh -1)
`)
	body := sc.Part("body")
	if body.Smooth == nil || *body.Smooth != 60 {
		t.Errorf("body smooth = %v, want 60", body.Smooth)
	}
	fuse := sc.Part("fuse")
	if fuse.MergeInto != "body" || fuse.SubMesh != 1 {
		t.Errorf("fuse = %+v", fuse)
	}
	spark := sc.Part("spark")
	if spark.MergeInto != "fuse" || spark.SubMesh != -1 {
		t.Errorf("spark = %+v", spark)
	}
	if res := sc.Validate(); !res.OK() {
		t.Errorf("Validate() = %v", res.Errors)
	}
}

func TestVariableReference(t *testing.T) {
	sc := mustEvaluate(t, `
(def leg (box 2 2 30))
(defpart "leg-a" leg)
(defpart "leg-b" leg :smooth 10)
`)
	// Kebab-case inside string literals is left alone.
	if sc.Part("leg-a") == nil || sc.Part("leg-b") == nil {
		t.Fatalf("parts = %+v", sc.Parts)
	}
	if sc.Part("leg-a").Shape != sc.Part("leg-b").Shape {
		t.Error("both parts should share the bound shape")
	}
}

func TestAssemblyWithPlacement(t *testing.T) {
	sc := mustEvaluate(t, `
(defpart "top" (box 100 50 2))
(defpart "leg" (box 2 2 30))
(assembly "legs"
  (part "leg")
  :at (vec3 0 0 -30))
(assembly "table"
  (part "top")
  (assembly "frame" (part "leg") :rotate (vec3 0 0 90))
  :at (vec3 10 0 0))
`)
	legs := sc.Assembly("legs")
	if legs == nil || *legs.Translate != (scene.Vec3{Z: -30}) || legs.Rotate != nil {
		t.Fatalf("legs = %+v", legs)
	}
	table := sc.Assembly("table")
	if strings.Join(table.Children, ",") != "top,frame" {
		t.Errorf("table children = %v", table.Children)
	}
	frame := sc.Assembly("frame")
	if frame == nil || *frame.Rotate != (scene.Vec3{Z: 90}) {
		t.Errorf("frame = %+v", frame)
	}

	roots := sc.Roots()
	if strings.Join(roots, ",") != "legs,table" {
		t.Errorf("Roots() = %v, want [legs table]", roots)
	}
}

func TestUnplacedPartsAreRoots(t *testing.T) {
	sc := mustEvaluate(t, `
(defpart "a" (sphere 1))
(defpart "b" (sphere 1))
(assembly "g" (part "a"))
`)
	if got := strings.Join(sc.Roots(), ","); got != "g,b" {
		t.Errorf("Roots() = %s, want g,b", got)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unknown part", `(part "ghost")`, "no part named"},
		{"vec3 arity", `(vec3 1 2)`, "vec3 requires 3"},
		{"vec3 type", `(vec3 1 "a" 3)`, "expected number"},
		{"box arity", `(box 1 2)`, "box requires 3"},
		{"unknown keyword", `(sphere :diameter 2)`, "unknown keyword :diameter"},
		{"defpart needs shape", `(defpart "p" 5)`, "expected shape"},
		{"defpart missing body", `(defpart "p")`, "requires a name and a shape"},
		{"translate needs vec3", `(translate (sphere 1) 5)`, "expected vec3"},
		{"boolean of numbers", `(union 1 2)`, "expected shape"},
		{"fractional submesh", `(defpart "p" (sphere 1) :submesh 1.5)`, "expected integer"},
		{"assembly child type", `(assembly "g" (sphere 1))`, "expected part or assembly"},
		{"duplicate assembly", `(assembly "g") (assembly "g")`, "already defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if sc != nil {
				t.Error("expected nil scene on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected eval errors")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	sc := mustEvaluate(t, `
(def w (* 2 10))
(defpart "p" (box w (+ w 1) 3))
`)
	if got := *sc.Part("p").Shape.Size; got != (scene.Vec3{X: 20, Y: 21, Z: 3}) {
		t.Errorf("size = %v, want (20,21,3)", got)
	}
}
