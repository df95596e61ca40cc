//go:build manifold

// Package manifold binds the Manifold boolean mesh library
// (https://github.com/elalish/manifold) through its C API. Unlike the sdfx
// kernel it returns welded, indexed meshes, so normal recalculation sees
// shared vertex indices.
//
// Requires libmanifoldc. Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/normals"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// sphereSegments is the circular resolution of spheres.
const sphereSegments = 48

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct {
	solver *normals.Solver
}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	s, err := normals.NewSolver(normals.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return &ManifoldKernel{solver: s}, nil
}

// Box creates an axis-aligned box with its minimum corner at the origin,
// matching the sdfx kernel.
func (k *ManifoldKernel) Box(x, y, z float64) kernel.Solid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cube(alloc,
		C.double(x), C.double(y), C.double(z),
		C.int(0), // center=false
	)
	return newSolid(ptr)
}

// Cylinder creates a cylinder along the Z axis with the given height,
// radius, and number of circular segments. The cylinder is centered
// at the origin.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cylinder(alloc,
		C.double(height),
		C.double(radius), // radius_low
		C.double(radius), // radius_high (same = not tapered)
		C.int(segments),
		C.int(1), // center=true
	)
	return newSolid(ptr)
}

// Sphere creates a sphere centered at the origin.
func (k *ManifoldKernel) Sphere(radius float64) kernel.Solid {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_sphere(alloc, C.double(radius), C.int(sphereSegments))
	return newSolid(ptr)
}

// Union returns the boolean union of two solids.
func (k *ManifoldKernel) Union(a, b kernel.Solid) kernel.Solid {
	sa := a.(*manifoldSolid)
	sb := b.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_union(alloc, sa.ptr, sb.ptr)
	return newSolid(ptr)
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b kernel.Solid) kernel.Solid {
	sa := a.(*manifoldSolid)
	sb := b.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_difference(alloc, sa.ptr, sb.ptr)
	return newSolid(ptr)
}

// Intersection returns the boolean intersection of two solids.
func (k *ManifoldKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	sa := a.(*manifoldSolid)
	sb := b.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_intersection(alloc, sa.ptr, sb.ptr)
	return newSolid(ptr)
}

// Translate moves the solid by (x, y, z).
func (k *ManifoldKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ms := s.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_translate(alloc, ms.ptr,
		C.double(x), C.double(y), C.double(z),
	)
	return newSolid(ptr)
}

// Rotate rotates the solid by Euler angles (in degrees) around the X, Y, Z axes.
func (k *ManifoldKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ms := s.(*manifoldSolid)
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_rotate(alloc, ms.ptr,
		C.double(x), C.double(y), C.double(z),
	)
	return newSolid(ptr)
}

// ToMesh extracts the welded triangle mesh from the solid's MeshGL. Vertex
// properties are interleaved there; positions come first, followed by
// normals when the solid carries them. Without normals the mesh is smoothed
// across all shared vertices.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	ms := s.(*manifoldSolid)

	meshAlloc := C.manifold_alloc_meshgl()
	meshGL := C.manifold_get_meshgl(meshAlloc, ms.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}, nil
	}

	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d vertex properties, need at least 3", numProp)
	}
	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties(
		(*C.float)(unsafe.Pointer(&propData[0])),
		meshGL,
	)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts(
		(*C.uint32_t)(unsafe.Pointer(&indices[0])),
		meshGL,
	)

	hasNormals := numProp >= 6
	mesh := &kernel.Mesh{
		Vertices:  make([]float32, numVert*3),
		Normals:   make([]float32, numVert*3),
		SubMeshes: []kernel.SubMesh{{Indices: indices}},
	}
	for i := 0; i < numVert; i++ {
		base := i * numProp
		copy(mesh.Vertices[i*3:i*3+3], propData[base:base+3])
		if hasNormals {
			copy(mesh.Normals[i*3:i*3+3], propData[base+3:base+6])
		}
	}

	if !hasNormals {
		if _, err := mesh.RecalculateNormals(k.solver, 180); err != nil {
			return nil, fmt.Errorf("manifold: fallback normals: %w", err)
		}
	}
	return mesh, nil
}
