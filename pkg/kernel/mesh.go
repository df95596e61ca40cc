package kernel

import (
	"fmt"

	"github.com/chazu/facet/pkg/normals"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a triangle mesh suitable for rendering.
// Vertices and Normals are flat: 3 floats per vertex (x,y,z).
// Each sub-mesh holds its own index buffer, 3 uint32s per triangle,
// into the shared vertex arrays.
type Mesh struct {
	Vertices  []float32 `json:"vertices"`  // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float32 `json:"normals"`   // [nx0,ny0,nz0, ...]
	SubMeshes []SubMesh `json:"subMeshes"` // index buffers
	PartName  string    `json:"partName"`  // which scene part this came from
}

// SubMesh is one index buffer of a Mesh.
type SubMesh struct {
	Name    string   `json:"name,omitempty"`
	Indices []uint32 `json:"indices"` // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles across all sub-meshes.
func (m *Mesh) TriangleCount() int {
	n := 0
	for _, s := range m.SubMeshes {
		n += len(s.Indices) / 3
	}
	return n
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Validate checks array lengths and index bounds.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("kernel: vertex array length %d is not a multiple of 3: %w",
			len(m.Vertices), normals.ErrInvalidTopology)
	}
	if len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("kernel: normals length %d, vertices length %d: %w",
			len(m.Normals), len(m.Vertices), normals.ErrInvalidTopology)
	}
	vc := uint32(m.VertexCount())
	for si, s := range m.SubMeshes {
		if len(s.Indices)%3 != 0 {
			return fmt.Errorf("kernel: sub-mesh %d has %d indices, not a multiple of 3: %w",
				si, len(s.Indices), normals.ErrInvalidTopology)
		}
		for i, idx := range s.Indices {
			if idx >= vc {
				return fmt.Errorf("kernel: sub-mesh %d index %d = %d out of range (%d vertices): %w",
					si, i, idx, vc, normals.ErrInvalidTopology)
			}
		}
	}
	return nil
}

// AddMesh appends other's vertices to m and places its triangles into
// sub-mesh subMesh, creating empty sub-meshes up to that position.
// Sub-meshes of other are flattened into the one target.
func (m *Mesh) AddMesh(other *Mesh, subMesh int) {
	if subMesh < 0 {
		subMesh = len(m.SubMeshes)
	}
	for len(m.SubMeshes) <= subMesh {
		m.SubMeshes = append(m.SubMeshes, SubMesh{})
	}
	if m.SubMeshes[subMesh].Name == "" {
		m.SubMeshes[subMesh].Name = other.PartName
	}

	offset := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, other.Vertices...)
	m.Normals = append(m.Normals, other.Normals...)

	target := &m.SubMeshes[subMesh]
	for _, s := range other.SubMeshes {
		for _, idx := range s.Indices {
			target.Indices = append(target.Indices, idx+offset)
		}
	}
}

func (m *Mesh) vertex(i uint32) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Corners expands every sub-mesh's index buffer into a corner soup whose
// originating vertex index is the index value.
func (m *Mesh) Corners() (*normals.Mesh, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := &normals.Mesh{SubMeshes: make([]normals.SubMesh, len(m.SubMeshes))}
	for si, s := range m.SubMeshes {
		pos := make([]v3.Vec, len(s.Indices))
		ids := make([]int, len(s.Indices))
		for i, idx := range s.Indices {
			pos[i] = m.vertex(idx)
			ids[i] = int(idx)
		}
		out.SubMeshes[si] = normals.SubMesh{
			Positions:     pos,
			Normals:       make([]v3.Vec, len(pos)),
			VertexIndices: ids,
		}
	}
	return out, nil
}

// RecalculateNormals replaces m.Normals with angle-threshold smoothed
// normals. Corners sharing one vertex index write the same slot; the last
// corner in sub-mesh, index order wins. Vertices no triangle references
// keep their previous normal.
func (m *Mesh) RecalculateNormals(s *normals.Solver, angleDegrees float64) (normals.Stats, error) {
	corners, err := m.Corners()
	if err != nil {
		return normals.Stats{}, err
	}
	st, err := s.Recalculate(corners, angleDegrees)
	if err != nil {
		return st, err
	}
	for si, sm := range m.SubMeshes {
		res := corners.SubMeshes[si].Normals
		for i, idx := range sm.Indices {
			n := res[i]
			m.Normals[3*idx] = float32(n.X)
			m.Normals[3*idx+1] = float32(n.Y)
			m.Normals[3*idx+2] = float32(n.Z)
		}
	}
	return st, nil
}
