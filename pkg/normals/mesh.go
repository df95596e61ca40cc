package normals

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidTopology is returned when a mesh's corner layout cannot be
// interpreted as triangles.
var ErrInvalidTopology = errors.New("invalid mesh topology")

// ErrInvalidArgument is returned for an out-of-range angle or bad options.
var ErrInvalidArgument = errors.New("invalid argument")

// SubMesh is a flat corner sequence. Corners 3k, 3k+1 and 3k+2 form
// triangle k.
type SubMesh struct {
	Positions []v3.Vec
	Normals   []v3.Vec // written by Recalculate

	// VertexIndices holds each corner's originating vertex index. Corners
	// at one position that share an index always blend. When nil, every
	// corner uses its ordinal across the whole mesh, so no two corners
	// share an index.
	VertexIndices []int
}

// CornerCount returns the number of corners.
func (s *SubMesh) CornerCount() int {
	return len(s.Positions)
}

// TriangleCount returns the number of triangles.
func (s *SubMesh) TriangleCount() int {
	return len(s.Positions) / 3
}

// Mesh is an ordered collection of sub-meshes.
type Mesh struct {
	SubMeshes []SubMesh
}

// CornerCount returns the number of corners across all sub-meshes.
func (m *Mesh) CornerCount() int {
	n := 0
	for i := range m.SubMeshes {
		n += m.SubMeshes[i].CornerCount()
	}
	return n
}

// TriangleCount returns the number of triangles across all sub-meshes.
func (m *Mesh) TriangleCount() int {
	n := 0
	for i := range m.SubMeshes {
		n += m.SubMeshes[i].TriangleCount()
	}
	return n
}

// NewSoup builds a single sub-mesh mesh from corner positions, allocating
// the normal storage.
func NewSoup(positions []v3.Vec) *Mesh {
	return &Mesh{SubMeshes: []SubMesh{{
		Positions: positions,
		Normals:   make([]v3.Vec, len(positions)),
	}}}
}

// Validate checks the layout invariants without touching any data.
func (m *Mesh) Validate() error {
	for si := range m.SubMeshes {
		s := &m.SubMeshes[si]
		n := len(s.Positions)
		if n%3 != 0 {
			return fmt.Errorf("normals: sub-mesh %d has %d corners, not a multiple of 3: %w",
				si, n, ErrInvalidTopology)
		}
		if len(s.Normals) != n {
			return fmt.Errorf("normals: sub-mesh %d has %d normals for %d corners: %w",
				si, len(s.Normals), n, ErrInvalidTopology)
		}
		if s.VertexIndices != nil && len(s.VertexIndices) != n {
			return fmt.Errorf("normals: sub-mesh %d has %d vertex indices for %d corners: %w",
				si, len(s.VertexIndices), n, ErrInvalidTopology)
		}
		for ci, p := range s.Positions {
			if !finite(p) {
				return fmt.Errorf("normals: sub-mesh %d corner %d position %v is not finite: %w",
					si, ci, p, ErrInvalidTopology)
			}
		}
	}
	return nil
}

// vertexIndex returns the originating vertex index of corner ci in
// sub-mesh si. base is the global ordinal of the sub-mesh's first corner.
func (s *SubMesh) vertexIndex(ci, base int) int {
	if s.VertexIndices == nil {
		return base + ci
	}
	return s.VertexIndices[ci]
}

func finite(v v3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
