// Package normals recalculates per-corner normals of a triangle soup.
//
// Corners that quantize to the same SpatialKey form a cluster. Within a
// cluster each corner accumulates the face normal of every member that
// shares its originating vertex index, plus every member whose face normal
// lies within the smoothing angle of its own. The normalized sum replaces
// the corner's normal.
//
// Blending is quadratic in cluster size. Clusters are bounded by local mesh
// density, but a mesh where most corners coincide degrades to O(n²).
package normals
