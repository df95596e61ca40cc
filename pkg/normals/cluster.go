package normals

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultScale quantizes positions into 1e-5 buckets.
const DefaultScale = 100000

// SpatialKey is a position rounded onto the quantization grid. Two positions
// share a key iff every scaled component rounds to the same integer.
type SpatialKey struct {
	X, Y, Z int64
}

// Quantizer maps positions to spatial keys. Keys are int64, so only
// coordinates with |c*Scale| < 2^62 are representable; at DefaultScale that
// is about 4.6e13 units.
type Quantizer struct {
	Scale float64
}

// Key returns the bucket of p. Positions closer than 1/Scale are not
// guaranteed to collide; they must round identically.
func (q Quantizer) Key(p v3.Vec) SpatialKey {
	return SpatialKey{
		X: int64(math.Round(p.X * q.Scale)),
		Y: int64(math.Round(p.Y * q.Scale)),
		Z: int64(math.Round(p.Z * q.Scale)),
	}
}

// fits reports whether every scaled component of p is representable as an
// int64 after rounding.
func (q Quantizer) fits(p v3.Vec) bool {
	const limit = 1 << 62
	return math.Abs(p.X*q.Scale) < limit &&
		math.Abs(p.Y*q.Scale) < limit &&
		math.Abs(p.Z*q.Scale) < limit
}

// CornerRef identifies one corner of one triangle of one sub-mesh.
type CornerRef struct {
	SubMesh  int
	Triangle int
	Corner   int // 0, 1 or 2 within the triangle
}

// Index returns the corner's position in its sub-mesh's flat arrays.
func (c CornerRef) Index() int {
	return 3*c.Triangle + c.Corner
}

// Cluster is every corner that produced one key, in scan order.
type Cluster struct {
	Key     SpatialKey
	Corners []CornerRef
}

// BuildClusters groups all corners of m by spatial key. Clusters appear in
// the order their key was first seen; corners within a cluster appear in
// sub-mesh, triangle, corner order.
func BuildClusters(m *Mesh, q Quantizer) []Cluster {
	index := make(map[SpatialKey]int, m.CornerCount())
	var clusters []Cluster

	for si := range m.SubMeshes {
		for ci, p := range m.SubMeshes[si].Positions {
			k := q.Key(p)
			ref := CornerRef{SubMesh: si, Triangle: ci / 3, Corner: ci % 3}
			i, ok := index[k]
			if !ok {
				i = len(clusters)
				index[k] = i
				clusters = append(clusters, Cluster{Key: k, Corners: make([]CornerRef, 0, 4)})
			}
			clusters[i].Corners = append(clusters[i].Corners, ref)
		}
	}
	return clusters
}
