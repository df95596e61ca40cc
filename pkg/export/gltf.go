// Package export writes tessellated meshes as glTF 2.0 binaries.
//
// glTF requires unit-length normals. Zero normals, which the normals engine
// produces for degenerate triangles under the default fallback and for faces
// that cancel out, are written as +Z.
package export

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrNoGeometry is returned when there is nothing to export.
var ErrNoGeometry = errors.New("export: no geometry")

// Document builds a glTF document with one mesh and one node per non-empty
// input mesh. Each non-empty sub-mesh becomes a primitive sharing the
// mesh's position and normal accessors.
func Document(meshes []*kernel.Mesh) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	doc.Materials = []*gltf.Material{{
		Name: "default",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{0.8, 0.8, 0.8, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}}

	for i, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("export: mesh %d (%s): %w", i, m.PartName, err)
		}

		n := m.VertexCount()
		positions := make([][3]float32, n)
		normals := make([][3]float32, n)
		for v := 0; v < n; v++ {
			copy(positions[v][:], m.Vertices[3*v:3*v+3])
			normals[v] = unitNormal(m.Normals[3*v], m.Normals[3*v+1], m.Normals[3*v+2])
		}
		pos := modeler.WritePosition(doc, positions)
		nrm := modeler.WriteNormal(doc, normals)

		gm := &gltf.Mesh{Name: m.PartName}
		for _, sm := range m.SubMeshes {
			if len(sm.Indices) == 0 {
				continue
			}
			idx := modeler.WriteIndices(doc, sm.Indices)
			gm.Primitives = append(gm.Primitives, &gltf.Primitive{
				Attributes: map[string]uint32{
					gltf.POSITION: uint32(pos),
					gltf.NORMAL:   uint32(nrm),
				},
				Indices:  gltf.Index(uint32(idx)),
				Material: gltf.Index(0),
				Mode:     gltf.PrimitiveTriangles,
			})
		}
		if len(gm.Primitives) == 0 {
			continue
		}

		doc.Meshes = append(doc.Meshes, gm)
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: m.PartName,
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	if len(doc.Meshes) == 0 {
		return nil, ErrNoGeometry
	}
	return doc, nil
}

// zeroNormalLimit is the squared length below which a normal has no usable
// direction.
const zeroNormalLimit = 1e-12

// unitNormal returns n scaled to unit length, or +Z when n is zero.
func unitNormal(x, y, z float32) [3]float32 {
	l2 := float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z)
	if l2 < zeroNormalLimit || math.IsNaN(l2) || math.IsInf(l2, 0) {
		return [3]float32{0, 0, 1}
	}
	l := math.Sqrt(l2)
	return [3]float32{float32(float64(x) / l), float32(float64(y) / l), float32(float64(z) / l)}
}

// WriteGLB writes meshes to path as a binary glTF file.
func WriteGLB(path string, meshes []*kernel.Mesh) error {
	doc, err := Document(meshes)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
