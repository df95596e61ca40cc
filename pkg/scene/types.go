package scene

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Vectors
// ---------------------------------------------------------------------------

// Vec3 is a 3D vector. In YAML it is a flow sequence [x, y, z].
type Vec3 struct {
	X, Y, Z float64
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Add returns the component-wise sum of v and o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// UnmarshalYAML decodes a three-element sequence.
func (v *Vec3) UnmarshalYAML(n *yaml.Node) error {
	var xs []float64
	if err := n.Decode(&xs); err != nil {
		return fmt.Errorf("line %d: vec3: %w", n.Line, err)
	}
	if len(xs) != 3 {
		return fmt.Errorf("line %d: vec3 needs 3 components, got %d", n.Line, len(xs))
	}
	v.X, v.Y, v.Z = xs[0], xs[1], xs[2]
	return nil
}

// MarshalYAML encodes v as a flow sequence.
func (v Vec3) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, c := range []float64{v.X, v.Y, v.Z} {
		var e yaml.Node
		if err := e.Encode(c); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &e)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// Op names a shape operation.
type Op string

const (
	OpBox          Op = "box"
	OpCylinder     Op = "cylinder"
	OpSphere       Op = "sphere"
	OpUnion        Op = "union"
	OpDifference   Op = "difference"
	OpIntersection Op = "intersection"
)

// IsBoolean reports whether op combines child shapes.
func (op Op) IsBoolean() bool {
	return op == OpUnion || op == OpDifference || op == OpIntersection
}

// Shape is a node of a part's solid tree. Primitives read their
// dimensions; booleans combine Children left to right. Rotate (Euler
// degrees) is applied before Translate.
type Shape struct {
	Op        Op       `yaml:"op"`
	Size      *Vec3    `yaml:"size,omitempty"`     // box
	Radius    float64  `yaml:"radius,omitempty"`   // cylinder, sphere
	Height    float64  `yaml:"height,omitempty"`   // cylinder
	Segments  int      `yaml:"segments,omitempty"` // cylinder
	Translate *Vec3    `yaml:"translate,omitempty"`
	Rotate    *Vec3    `yaml:"rotate,omitempty"`
	Children  []*Shape `yaml:"children,omitempty"`
}

// Box returns a box shape with its minimum corner at the origin.
func Box(x, y, z float64) *Shape {
	return &Shape{Op: OpBox, Size: &Vec3{X: x, Y: y, Z: z}}
}

// Cylinder returns a Z-aligned cylinder centered on the origin.
func Cylinder(height, radius float64, segments int) *Shape {
	return &Shape{Op: OpCylinder, Height: height, Radius: radius, Segments: segments}
}

// Sphere returns a sphere centered on the origin.
func Sphere(radius float64) *Shape {
	return &Shape{Op: OpSphere, Radius: radius}
}

// Combine returns a boolean shape over children.
func Combine(op Op, children ...*Shape) *Shape {
	return &Shape{Op: op, Children: children}
}

// Translated returns a copy of s moved by v, on top of any existing offset.
func (s *Shape) Translated(v Vec3) *Shape {
	c := *s
	if c.Translate != nil {
		v = c.Translate.Add(v)
	}
	c.Translate = &v
	return &c
}

// Rotated returns a copy of s rotated by Euler angles v. A shape already
// rotated is wrapped in a single-child union so the rotations compose in
// order.
func (s *Shape) Rotated(v Vec3) *Shape {
	if s.Rotate != nil || s.Translate != nil {
		return &Shape{Op: OpUnion, Children: []*Shape{s}, Rotate: &v}
	}
	c := *s
	c.Rotate = &v
	return &c
}

// ---------------------------------------------------------------------------
// Parts and assemblies
// ---------------------------------------------------------------------------

// Part is a named solid that becomes one output mesh, or one sub-mesh of
// another part's mesh when MergeInto is set.
type Part struct {
	Name  string `yaml:"name"`
	Shape *Shape `yaml:"shape"`

	// Smooth overrides the default smoothing angle in degrees.
	Smooth *float64 `yaml:"smooth,omitempty"`

	// MergeInto names the part whose mesh receives this part's triangles.
	// SubMesh selects the target sub-mesh; -1 appends a new one.
	MergeInto string `yaml:"merge_into,omitempty"`
	SubMesh   int    `yaml:"submesh,omitempty"`
}

// Assembly places parts and other assemblies. Rotate is applied before
// Translate, outside any transform of the children.
type Assembly struct {
	Name      string   `yaml:"name"`
	Translate *Vec3    `yaml:"translate,omitempty"`
	Rotate    *Vec3    `yaml:"rotate,omitempty"`
	Children  []string `yaml:"children"`
}

// Scene is a complete scene description.
type Scene struct {
	Parts      []*Part     `yaml:"parts"`
	Assemblies []*Assembly `yaml:"assemblies,omitempty"`
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{}
}

// AddPart appends p, replacing any earlier part of the same name.
func (sc *Scene) AddPart(p *Part) {
	for i, q := range sc.Parts {
		if q.Name == p.Name {
			sc.Parts[i] = p
			return
		}
	}
	sc.Parts = append(sc.Parts, p)
}

// AddAssembly appends a.
func (sc *Scene) AddAssembly(a *Assembly) {
	sc.Assemblies = append(sc.Assemblies, a)
}

// Part returns the part named name, or nil.
func (sc *Scene) Part(name string) *Part {
	for _, p := range sc.Parts {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Assembly returns the assembly named name, or nil.
func (sc *Scene) Assembly(name string) *Assembly {
	for _, a := range sc.Assemblies {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Lookup resolves a child reference. Assemblies shadow parts of the same
// name; Validate reports such clashes.
func (sc *Scene) Lookup(name string) (*Part, *Assembly, error) {
	if a := sc.Assembly(name); a != nil {
		return nil, a, nil
	}
	if p := sc.Part(name); p != nil {
		return p, nil, nil
	}
	return nil, nil, fmt.Errorf("scene: %q: %w", name, ErrUnknownReference)
}

// Roots returns the names of top-level entries in declaration order:
// assemblies no other assembly references, then parts no assembly places.
func (sc *Scene) Roots() []string {
	referenced := make(map[string]bool)
	for _, a := range sc.Assemblies {
		for _, c := range a.Children {
			referenced[c] = true
		}
	}
	var roots []string
	for _, a := range sc.Assemblies {
		if !referenced[a.Name] {
			roots = append(roots, a.Name)
		}
	}
	for _, p := range sc.Parts {
		if !referenced[p.Name] {
			roots = append(roots, p.Name)
		}
	}
	return roots
}
