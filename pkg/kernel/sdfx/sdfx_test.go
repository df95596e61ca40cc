package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/facet/pkg/normals"
)

// testCells keeps marching cubes fast in tests.
const testCells = 40

func TestBox(t *testing.T) {
	k := NewWithCells(testCells)
	box := k.Box(100, 50, 25)
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.SubMeshes) != 1 {
		t.Fatalf("sub-mesh count = %d, want 1", len(mesh.SubMeshes))
	}
	if len(mesh.SubMeshes[0].Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.SubMeshes[0].Indices), triCount*3)
	}
	// Soup: one vertex per corner.
	if mesh.VertexCount() != triCount*3 {
		t.Errorf("VertexCount() = %d, want %d", mesh.VertexCount(), triCount*3)
	}
	if err := mesh.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCylinder(t *testing.T) {
	k := NewWithCells(testCells)
	cyl := k.Cylinder(50, 10, 32)
	mesh, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	t.Logf("cylinder triangle count: %d", mesh.TriangleCount())
}

func TestSphereBoundingBox(t *testing.T) {
	k := New()
	min, max := k.Sphere(5).BoundingBox()
	const tol = 0.01
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]+5) > tol || math.Abs(max[i]-5) > tol {
			t.Errorf("axis %d bounds = [%f, %f], want [-5, 5]", i, min[i], max[i])
		}
	}
}

func TestDifference(t *testing.T) {
	k := NewWithCells(testCells)

	box := k.Box(100, 100, 100)
	boxMesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}

	cyl := k.Translate(k.Cylinder(120, 20, 32), 50, 50, 50)
	diff := k.Difference(box, cyl)
	diffMesh, err := k.ToMesh(diff)
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	if diffMesh.IsEmpty() {
		t.Fatal("difference mesh is empty")
	}
	// A box with a hole should have more triangles than a plain box.
	if diffMesh.TriangleCount() <= boxMesh.TriangleCount() {
		t.Fatalf("difference (%d triangles) should have more triangles than box (%d triangles)",
			diffMesh.TriangleCount(), boxMesh.TriangleCount())
	}
}

func TestUnion(t *testing.T) {
	k := NewWithCells(testCells)
	box1 := k.Box(50, 50, 50)
	box2 := k.Translate(k.Box(50, 50, 50), 30, 0, 0)
	mesh, err := k.ToMesh(k.Union(box1, box2))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}

func TestIntersection(t *testing.T) {
	k := NewWithCells(testCells)
	box1 := k.Box(100, 100, 100)
	box2 := k.Translate(k.Box(100, 100, 100), 50, 0, 0)
	mesh, err := k.ToMesh(k.Intersection(box1, box2))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("intersection mesh is empty")
	}
}

func TestBoundingBoxMinCorner(t *testing.T) {
	k := New()
	min, max := k.Box(100, 50, 25).BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{0, 0, 0}
	expectMax := [3]float64{100, 50, 25}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	k := New()
	translated := k.Translate(k.Box(10, 10, 10), 100, 200, 300)
	min, max := translated.BoundingBox()

	const tol = 0.5
	expectMin := [3]float64{100, 200, 300}
	expectMax := [3]float64{110, 210, 310}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

func TestRotate(t *testing.T) {
	k := New()
	box := k.Box(100, 10, 10)

	// A long box along X rotated 90 degrees around Z extends along Y instead.
	min, max := k.Rotate(box, 0, 0, 90).BoundingBox()
	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}

func TestMeshCellsResolution(t *testing.T) {
	coarse, err := NewWithCells(10).ToMesh(New().Sphere(10))
	if err != nil {
		t.Fatalf("coarse ToMesh failed: %v", err)
	}
	fine, err := NewWithCells(testCells).ToMesh(New().Sphere(10))
	if err != nil {
		t.Fatalf("fine ToMesh failed: %v", err)
	}
	if coarse.TriangleCount() >= fine.TriangleCount() {
		t.Errorf("coarse %d triangles, fine %d: expected fewer at lower resolution",
			coarse.TriangleCount(), fine.TriangleCount())
	}
	if NewWithCells(0).MeshCells != DefaultMeshCells {
		t.Error("NewWithCells(0) should select the default resolution")
	}
}

func TestSphereSmoothNormalsAreRadial(t *testing.T) {
	k := NewWithCells(testCells)
	mesh, err := k.ToMesh(k.Sphere(10))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	s, err := normals.NewSolver(normals.DefaultOptions())
	if err != nil {
		t.Fatalf("NewSolver() error = %v", err)
	}
	st, err := mesh.RecalculateNormals(s, 180)
	if err != nil {
		t.Fatalf("RecalculateNormals() error = %v", err)
	}
	// Soup corners at one position collapse into a shared cluster.
	if st.Clusters >= st.Corners {
		t.Errorf("clusters = %d, corners = %d: expected coincident corners to merge", st.Clusters, st.Corners)
	}

	for v := 0; v < mesh.VertexCount(); v++ {
		px, py, pz := float64(mesh.Vertices[3*v]), float64(mesh.Vertices[3*v+1]), float64(mesh.Vertices[3*v+2])
		nx, ny, nz := float64(mesh.Normals[3*v]), float64(mesh.Normals[3*v+1]), float64(mesh.Normals[3*v+2])
		if math.IsNaN(nx) || math.IsNaN(ny) || math.IsNaN(nz) {
			t.Fatalf("vertex %d normal is NaN", v)
		}
		r := math.Sqrt(px*px + py*py + pz*pz)
		if dot := (px*nx + py*ny + pz*nz) / r; dot < 0.9 {
			t.Fatalf("vertex %d normal (%f,%f,%f) not radial at (%f,%f,%f): dot %f",
				v, nx, ny, nz, px, py, pz, dot)
		}
	}
}
