package normals

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultDegenerateEpsilon is the cross-product length at or below which a
// triangle has no usable face normal.
const DefaultDegenerateEpsilon = 1e-12

// FaceNormal returns the unit normal of triangle p1 p2 p3 in winding order.
// A degenerate triangle yields fallback and false.
func FaceNormal(p1, p2, p3, fallback v3.Vec, epsilon float64) (v3.Vec, bool) {
	n := p2.Sub(p1).Cross(p3.Sub(p1))
	return normalizeOr(n, fallback, epsilon)
}

// normalizeOr scales v to unit length, or returns fallback when v is too
// short to have a direction.
func normalizeOr(v, fallback v3.Vec, epsilon float64) (v3.Vec, bool) {
	l := v.Length()
	if !(l > epsilon) {
		return fallback, false
	}
	return v.MulScalar(1 / l), true
}

// faceNormals computes one normal per triangle, indexed [subMesh][triangle].
func faceNormals(m *Mesh, fallback v3.Vec, epsilon float64) ([][]v3.Vec, int) {
	degenerate := 0
	out := make([][]v3.Vec, len(m.SubMeshes))
	for si := range m.SubMeshes {
		pos := m.SubMeshes[si].Positions
		tris := make([]v3.Vec, len(pos)/3)
		for t := range tris {
			n, ok := FaceNormal(pos[3*t], pos[3*t+1], pos[3*t+2], fallback, epsilon)
			if !ok {
				degenerate++
			}
			tris[t] = n
		}
		out[si] = tris
	}
	return out, degenerate
}
