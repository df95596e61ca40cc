package tessellate_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.NewWithCells(30)
}

func floatPtr(f float64) *float64 { return &f }

// recSolid records the operations that produced it.
type recSolid struct {
	desc string
}

func (s *recSolid) BoundingBox() (min, max [3]float64) { return }

// recKernel builds descriptive solids and meshes every solid as the same
// two-triangle soup folded 90 degrees along the X axis.
type recKernel struct {
	meshed []string
}

func (k *recKernel) Box(x, y, z float64) kernel.Solid {
	return &recSolid{fmt.Sprintf("box(%g,%g,%g)", x, y, z)}
}

func (k *recKernel) Cylinder(h, r float64, seg int) kernel.Solid {
	return &recSolid{fmt.Sprintf("cyl(%g,%g,%d)", h, r, seg)}
}

func (k *recKernel) Sphere(r float64) kernel.Solid {
	return &recSolid{fmt.Sprintf("sphere(%g)", r)}
}

func (k *recKernel) Union(a, b kernel.Solid) kernel.Solid {
	return &recSolid{fmt.Sprintf("U(%s,%s)", a.(*recSolid).desc, b.(*recSolid).desc)}
}

func (k *recKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return &recSolid{fmt.Sprintf("D(%s,%s)", a.(*recSolid).desc, b.(*recSolid).desc)}
}

func (k *recKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return &recSolid{fmt.Sprintf("I(%s,%s)", a.(*recSolid).desc, b.(*recSolid).desc)}
}

func (k *recKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return &recSolid{fmt.Sprintf("T(%g,%g,%g)[%s]", x, y, z, s.(*recSolid).desc)}
}

func (k *recKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return &recSolid{fmt.Sprintf("R(%g,%g,%g)[%s]", x, y, z, s.(*recSolid).desc)}
}

func (k *recKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	k.meshed = append(k.meshed, s.(*recSolid).desc)
	return &kernel.Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			0, 0, 0, 0, 0, 1, 1, 0, 0,
		},
		Normals:   make([]float32, 18),
		SubMeshes: []kernel.SubMesh{{Indices: []uint32{0, 1, 2, 3, 4, 5}}},
	}, nil
}

func TestNilScene(t *testing.T) {
	meshes, err := tessellate.Tessellate(nil, newKernel(), tessellate.DefaultOptions())
	if err != nil || meshes != nil {
		t.Errorf("Tessellate(nil) = %v, %v, want nil, nil", meshes, err)
	}
}

func TestSingleBox(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "slab", Shape: scene.Box(10, 5, 2)})

	meshes, err := tessellate.Tessellate(sc, newKernel(), tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("got %d meshes, want 1", len(meshes))
	}
	m := meshes[0]
	if m.PartName != "slab" || m.SubMeshes[0].Name != "slab" {
		t.Errorf("names = %q/%q, want slab/slab", m.PartName, m.SubMeshes[0].Name)
	}
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	for v := 0; v < m.VertexCount(); v++ {
		nx, ny, nz := float64(m.Normals[3*v]), float64(m.Normals[3*v+1]), float64(m.Normals[3*v+2])
		l := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if math.IsNaN(l) || (l != 0 && math.Abs(l-1) > 1e-5) {
			t.Fatalf("vertex %d normal length %f, want unit or zero", v, l)
		}
	}
}

func TestAssemblyTranslation(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "cube", Shape: scene.Box(1, 1, 1)})
	sc.AddAssembly(&scene.Assembly{
		Name:      "shelf",
		Translate: &scene.Vec3{X: 5},
		Children:  []string{"cube"},
	})

	meshes, err := tessellate.Tessellate(sc, newKernel(), tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("got %d meshes, want 1", len(meshes))
	}
	minX := math.Inf(1)
	for v := 0; v < meshes[0].VertexCount(); v++ {
		minX = math.Min(minX, float64(meshes[0].Vertices[3*v]))
	}
	if math.Abs(minX-5) > 0.1 {
		t.Errorf("min x = %f, want ~5", minX)
	}
}

func TestTransformOrder(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{
		Name:  "peg",
		Shape: scene.Box(1, 1, 1).Translated(scene.Vec3{X: 1}),
	})
	sc.AddAssembly(&scene.Assembly{Name: "inner", Translate: &scene.Vec3{X: 10}, Children: []string{"peg"}})
	sc.AddAssembly(&scene.Assembly{Name: "outer", Rotate: &scene.Vec3{Z: 90}, Children: []string{"inner"}})

	k := &recKernel{}
	if _, err := tessellate.Tessellate(sc, k, tessellate.DefaultOptions()); err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	want := "R(0,0,90)[T(10,0,0)[T(1,0,0)[box(1,1,1)]]]"
	if len(k.meshed) != 1 || k.meshed[0] != want {
		t.Errorf("meshed %v, want [%s]", k.meshed, want)
	}
}

func TestShapeTree(t *testing.T) {
	shape := scene.Combine(scene.OpDifference,
		scene.Box(2, 2, 2),
		scene.Cylinder(3, 0.5, 0).Rotated(scene.Vec3{X: 90}),
		scene.Sphere(1),
	)
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "block", Shape: shape})

	k := &recKernel{}
	if _, err := tessellate.Tessellate(sc, k, tessellate.DefaultOptions()); err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	want := "D(D(box(2,2,2),R(90,0,0)[cyl(3,0.5,32)]),sphere(1))"
	if len(k.meshed) != 1 || k.meshed[0] != want {
		t.Errorf("meshed %v, want [%s]", k.meshed, want)
	}
}

func TestInstancing(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "leg", Shape: scene.Box(1, 1, 1)})
	sc.AddAssembly(&scene.Assembly{Name: "left", Children: []string{"leg"}})
	sc.AddAssembly(&scene.Assembly{Name: "right", Translate: &scene.Vec3{X: 3}, Children: []string{"leg"}})

	k := &recKernel{}
	meshes, err := tessellate.Tessellate(sc, k, tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	if len(meshes) != 2 {
		t.Fatalf("got %d meshes, want one per placement", len(meshes))
	}
	if k.meshed[1] != "T(3,0,0)[box(1,1,1)]" {
		t.Errorf("second placement = %s", k.meshed[1])
	}
}

func TestMergeIntoSubMesh(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "body", Shape: scene.Sphere(1)})
	sc.AddPart(&scene.Part{Name: "fuse", Shape: scene.Cylinder(1, 0.2, 8), MergeInto: "body", SubMesh: 1})
	sc.AddPart(&scene.Part{Name: "spark", Shape: scene.Sphere(0.1), MergeInto: "fuse", SubMesh: -1})

	k := &recKernel{}
	meshes, err := tessellate.Tessellate(sc, k, tessellate.DefaultOptions())
	if err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("got %d meshes, want merged parts folded into one", len(meshes))
	}
	m := meshes[0]
	if m.PartName != "body" {
		t.Errorf("PartName = %q, want body", m.PartName)
	}
	var names []string
	for _, s := range m.SubMeshes {
		names = append(names, s.Name)
	}
	if fmt.Sprint(names) != "[body fuse spark]" {
		t.Errorf("sub-meshes = %v, want [body fuse spark]", names)
	}
	if m.VertexCount() != 18 || m.TriangleCount() != 6 {
		t.Errorf("got %d vertices, %d triangles, want 18, 6", m.VertexCount(), m.TriangleCount())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPartSmoothingAngle(t *testing.T) {
	tests := []struct {
		name   string
		smooth *float64
		want   [3]float32 // normal of vertex 0, shared by both faces
	}{
		{"default keeps hard edge", nil, [3]float32{0, 0, 1}},
		{"wide angle smooths edge", floatPtr(120), [3]float32{0, float32(math.Sqrt2 / 2), float32(math.Sqrt2 / 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := scene.New()
			sc.AddPart(&scene.Part{Name: "fold", Shape: scene.Box(1, 1, 1), Smooth: tt.smooth})

			meshes, err := tessellate.Tessellate(sc, &recKernel{}, tessellate.DefaultOptions())
			if err != nil {
				t.Fatalf("Tessellate() error = %v", err)
			}
			n := meshes[0].Normals[0:3]
			for i := range tt.want {
				if math.Abs(float64(n[i]-tt.want[i])) > 1e-6 {
					t.Fatalf("normal = %v, want %v", n, tt.want)
				}
			}
		})
	}
}

func TestDefaultAngleOption(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "fold", Shape: scene.Box(1, 1, 1)})

	opts := tessellate.DefaultOptions()
	opts.DefaultAngle = 180
	meshes, err := tessellate.Tessellate(sc, &recKernel{}, opts)
	if err != nil {
		t.Fatalf("Tessellate() error = %v", err)
	}
	if n := meshes[0].Normals[0:3]; n[1] < 0.7 || n[2] < 0.7 {
		t.Errorf("normal = %v, want blended across the fold", n)
	}
}

func TestInvalidScene(t *testing.T) {
	sc := scene.New()
	sc.AddPart(&scene.Part{Name: "bad", Shape: scene.Sphere(-1)})

	_, err := tessellate.Tessellate(sc, &recKernel{}, tessellate.DefaultOptions())
	if !errors.Is(err, scene.ErrInvalidScene) {
		t.Fatalf("error = %v, want ErrInvalidScene", err)
	}
}
