// Package tessellate walks a scene and produces triangle meshes using a
// geometry kernel. One mesh is produced per placed part; parts that merge
// into another part become sub-meshes of its mesh. Every mesh leaves with
// angle-threshold smoothed normals.
package tessellate

import (
	"fmt"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/normals"
	"github.com/chazu/facet/pkg/scene"
	"go.uber.org/zap"
)

// DefaultSegments is the cylinder resolution when a shape gives none.
const DefaultSegments = 32

// Options configures tessellation.
type Options struct {
	// DefaultAngle is the smoothing angle for parts without their own.
	DefaultAngle float64

	// Solver recalculates normals. Nil uses normals.DefaultOptions.
	Solver *normals.Solver

	Logger *zap.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{DefaultAngle: normals.DefaultAngle}
}

// frame is one level of placement.
type frame struct {
	translation scene.Vec3
	rotation    scene.Vec3
}

// transformStack accumulates assembly transforms during traversal.
type transformStack struct {
	frames []frame
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(translation, rotation *scene.Vec3) {
	var f frame
	if translation != nil {
		f.translation = *translation
	}
	if rotation != nil {
		f.rotation = *rotation
	}
	ts.frames = append(ts.frames, f)
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

// apply places s in world space: the innermost frame first, each frame
// rotating then translating.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.frames) - 1; i >= 0; i-- {
		s = placeSolid(k, s, &ts.frames[i].translation, &ts.frames[i].rotation)
	}
	return s
}

// placeSolid rotates then translates s, skipping identity steps.
func placeSolid(k kernel.Kernel, s kernel.Solid, translation, rotation *scene.Vec3) kernel.Solid {
	if rotation != nil && !rotation.IsZero() {
		s = k.Rotate(s, rotation.X, rotation.Y, rotation.Z)
	}
	if translation != nil && !translation.IsZero() {
		s = k.Translate(s, translation.X, translation.Y, translation.Z)
	}
	return s
}

// instance is one placed part and its mesh.
type instance struct {
	part *scene.Part
	mesh *kernel.Mesh
}

// Tessellate validates the scene, meshes every placed part, merges parts
// into their targets and recalculates normals. The scene is never mutated.
func Tessellate(sc *scene.Scene, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if sc == nil {
		return nil, nil
	}
	if err := sc.Validate().Err(); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	solver := opts.Solver
	if solver == nil {
		var err error
		if solver, err = normals.NewSolver(normals.DefaultOptions()); err != nil {
			return nil, fmt.Errorf("tessellate: %w", err)
		}
	}

	var instances []instance
	ts := newTransformStack()
	for _, root := range sc.Roots() {
		collected, err := walk(sc, k, root, ts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %q: %w", root, err)
		}
		instances = append(instances, collected...)
	}

	out := merge(sc, instances)

	for _, inst := range out {
		angle := opts.DefaultAngle
		if inst.part.Smooth != nil {
			angle = *inst.part.Smooth
		}
		st, err := inst.mesh.RecalculateNormals(solver, angle)
		if err != nil {
			return nil, fmt.Errorf("tessellate: normals for part %q: %w", inst.part.Name, err)
		}
		log.Debug("tessellated part",
			zap.String("part", inst.part.Name),
			zap.Float64("angle", angle),
			zap.Int("sub_meshes", len(inst.mesh.SubMeshes)),
			zap.Int("triangles", inst.mesh.TriangleCount()),
			zap.Int("clusters", st.Clusters),
			zap.Int("degenerate", st.DegenerateTriangles))
	}

	meshes := make([]*kernel.Mesh, len(out))
	for i, inst := range out {
		meshes[i] = inst.mesh
	}
	return meshes, nil
}

// walk resolves name and collects the meshes below it.
func walk(sc *scene.Scene, k kernel.Kernel, name string, ts *transformStack) ([]instance, error) {
	p, a, err := sc.Lookup(name)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return handlePart(k, p, ts)
	}
	return handleAssembly(sc, k, a, ts)
}

// handlePart creates geometry for a part at the current placement.
func handlePart(k kernel.Kernel, p *scene.Part, ts *transformStack) ([]instance, error) {
	solid, err := buildShape(k, p.Shape)
	if err != nil {
		return nil, fmt.Errorf("part %q: %w", p.Name, err)
	}
	solid = ts.apply(k, solid)

	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for part %q: %w", p.Name, err)
	}
	mesh.PartName = p.Name
	for i := range mesh.SubMeshes {
		if mesh.SubMeshes[i].Name == "" {
			mesh.SubMeshes[i].Name = p.Name
		}
	}
	return []instance{{part: p, mesh: mesh}}, nil
}

// handleAssembly pushes the assembly's transform, recurses into children,
// then pops.
func handleAssembly(sc *scene.Scene, k kernel.Kernel, a *scene.Assembly, ts *transformStack) ([]instance, error) {
	ts.push(a.Translate, a.Rotate)
	defer ts.pop()

	var out []instance
	for _, child := range a.Children {
		collected, err := walk(sc, k, child, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, collected...)
	}
	return out, nil
}

// buildShape converts a shape tree to a solid.
func buildShape(k kernel.Kernel, s *scene.Shape) (kernel.Solid, error) {
	var solid kernel.Solid
	switch s.Op {
	case scene.OpBox:
		solid = k.Box(s.Size.X, s.Size.Y, s.Size.Z)
	case scene.OpCylinder:
		segments := s.Segments
		if segments == 0 {
			segments = DefaultSegments
		}
		solid = k.Cylinder(s.Height, s.Radius, segments)
	case scene.OpSphere:
		solid = k.Sphere(s.Radius)
	case scene.OpUnion, scene.OpDifference, scene.OpIntersection:
		for i, ch := range s.Children {
			cs, err := buildShape(k, ch)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				solid = cs
				continue
			}
			switch s.Op {
			case scene.OpUnion:
				solid = k.Union(solid, cs)
			case scene.OpDifference:
				solid = k.Difference(solid, cs)
			default:
				solid = k.Intersection(solid, cs)
			}
		}
		if solid == nil {
			return nil, fmt.Errorf("%s has no children", s.Op)
		}
	default:
		return nil, fmt.Errorf("unsupported shape op %q", s.Op)
	}
	return placeSolid(k, solid, s.Translate, s.Rotate), nil
}

// merge folds instances of merging parts into the first instance of their
// final target, in scene order. Targets keep their position in the output.
func merge(sc *scene.Scene, instances []instance) []instance {
	first := make(map[string]*kernel.Mesh)
	for _, inst := range instances {
		if inst.part.MergeInto == "" {
			if _, ok := first[inst.part.Name]; !ok {
				first[inst.part.Name] = inst.mesh
			}
		}
	}

	var out []instance
	for _, inst := range instances {
		if inst.part.MergeInto == "" {
			out = append(out, inst)
			continue
		}
		target := finalTarget(sc, inst.part)
		if dst, ok := first[target]; ok {
			dst.AddMesh(inst.mesh, inst.part.SubMesh)
		}
	}
	return out
}

// finalTarget follows a merge chain to the part that keeps its own mesh.
func finalTarget(sc *scene.Scene, p *scene.Part) string {
	name := p.MergeInto
	for q := sc.Part(name); q != nil && q.MergeInto != ""; q = sc.Part(name) {
		name = q.MergeInto
	}
	return name
}
