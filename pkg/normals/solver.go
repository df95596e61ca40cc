package normals

import (
	"fmt"
	"math"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// DefaultAngle is the smoothing angle in degrees used when none is given.
const DefaultAngle = 25.0

// DefaultLargeClusterWarn is the cluster size above which a pass logs a
// warning about quadratic blending cost.
const DefaultLargeClusterWarn = 64

// Options configures a Solver.
type Options struct {
	// Scale is the quantization factor for spatial keys.
	Scale float64

	// DegenerateNormal is used as the face normal of zero-area triangles
	// and as the result of a zero accumulator. It is normalized unless zero.
	DegenerateNormal v3.Vec

	// DegenerateEpsilon is the cross-product length at or below which a
	// triangle counts as degenerate.
	DegenerateEpsilon float64

	// Workers > 1 blends clusters on that many goroutines. Results are
	// identical to the serial pass.
	Workers int

	// LargeClusterWarn logs a warning when a cluster exceeds this many
	// corners. Zero disables the warning.
	LargeClusterWarn int

	Logger *zap.Logger
}

// DefaultOptions returns the settings used by RecalculateNormals.
func DefaultOptions() Options {
	return Options{
		Scale:             DefaultScale,
		DegenerateEpsilon: DefaultDegenerateEpsilon,
		LargeClusterWarn:  DefaultLargeClusterWarn,
	}
}

// Stats describes one recalculation pass.
type Stats struct {
	SubMeshes           int
	Corners             int
	Triangles           int
	Clusters            int
	MaxClusterSize      int
	DegenerateTriangles int
}

// Solver recalculates normals with a fixed set of options. A Solver holds
// no per-mesh state and is safe for concurrent use.
type Solver struct {
	opts Options
	q    Quantizer
	log  *zap.Logger
}

// NewSolver validates opts and returns a Solver.
func NewSolver(opts Options) (*Solver, error) {
	if !(opts.Scale > 0) || math.IsInf(opts.Scale, 0) {
		return nil, fmt.Errorf("normals: scale %v must be positive and finite: %w", opts.Scale, ErrInvalidArgument)
	}
	if !(opts.DegenerateEpsilon >= 0) || math.IsInf(opts.DegenerateEpsilon, 0) {
		return nil, fmt.Errorf("normals: degenerate epsilon %v must be non-negative and finite: %w",
			opts.DegenerateEpsilon, ErrInvalidArgument)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("normals: workers %d must not be negative: %w", opts.Workers, ErrInvalidArgument)
	}
	if opts.LargeClusterWarn < 0 {
		return nil, fmt.Errorf("normals: large cluster warning %d must not be negative: %w",
			opts.LargeClusterWarn, ErrInvalidArgument)
	}
	if !finite(opts.DegenerateNormal) {
		return nil, fmt.Errorf("normals: degenerate normal %v is not finite: %w", opts.DegenerateNormal, ErrInvalidArgument)
	}
	if opts.DegenerateNormal != (v3.Vec{}) {
		n, ok := normalizeOr(opts.DegenerateNormal, v3.Vec{}, 0)
		if !ok {
			return nil, fmt.Errorf("normals: degenerate normal %v has no direction: %w", opts.DegenerateNormal, ErrInvalidArgument)
		}
		opts.DegenerateNormal = n
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{opts: opts, q: Quantizer{Scale: opts.Scale}, log: log}, nil
}

// RecalculateNormals overwrites every corner normal of m using the default
// options. angleDegrees must lie in [0, 180].
func RecalculateNormals(m *Mesh, angleDegrees float64) error {
	s, err := NewSolver(DefaultOptions())
	if err != nil {
		return err
	}
	_, err = s.Recalculate(m, angleDegrees)
	return err
}

// CosThreshold converts a smoothing angle in degrees to the minimum dot
// product two face normals need to blend.
func CosThreshold(angleDegrees float64) (float64, error) {
	if math.IsNaN(angleDegrees) || angleDegrees < 0 || angleDegrees > 180 {
		return 0, fmt.Errorf("normals: angle %v outside [0, 180] degrees: %w", angleDegrees, ErrInvalidArgument)
	}
	switch angleDegrees {
	case 0:
		return 1, nil
	case 180:
		return -1, nil
	}
	return math.Cos(angleDegrees * math.Pi / 180), nil
}

// Recalculate overwrites every corner normal of m. Nothing is written
// unless the mesh and angle are valid. A finite position whose scaled
// coordinates fall outside the int64 key range (|c*Scale| >= 2^62) returns
// ErrInvalidArgument: the mesh is well formed but the scale is too fine for it.
func (s *Solver) Recalculate(m *Mesh, angleDegrees float64) (Stats, error) {
	cosThreshold, err := CosThreshold(angleDegrees)
	if err != nil {
		return Stats{}, err
	}
	if err := m.Validate(); err != nil {
		return Stats{}, err
	}
	for si := range m.SubMeshes {
		for ci, p := range m.SubMeshes[si].Positions {
			if !s.q.fits(p) {
				return Stats{}, fmt.Errorf("normals: sub-mesh %d corner %d position %v overflows the quantization grid at scale %v: %w",
					si, ci, p, s.q.Scale, ErrInvalidArgument)
			}
		}
	}

	faces, degenerate := faceNormals(m, s.opts.DegenerateNormal, s.opts.DegenerateEpsilon)
	clusters := BuildClusters(m, s.q)

	// Global ordinal of each sub-mesh's first corner, for implicit vertex
	// indices.
	bases := make([]int, len(m.SubMeshes))
	total := 0
	for si := range m.SubMeshes {
		bases[si] = total
		total += m.SubMeshes[si].CornerCount()
	}

	b := blender{
		mesh:         m,
		faces:        faces,
		bases:        bases,
		cosThreshold: cosThreshold,
		fallback:     s.opts.DegenerateNormal,
		epsilon:      s.opts.DegenerateEpsilon,
	}
	if s.opts.Workers > 1 && len(clusters) > 1 {
		b.blendParallel(clusters, s.opts.Workers)
	} else {
		for i := range clusters {
			b.blend(&clusters[i])
		}
	}

	st := Stats{
		SubMeshes:           len(m.SubMeshes),
		Corners:             total,
		Triangles:           total / 3,
		Clusters:            len(clusters),
		DegenerateTriangles: degenerate,
	}
	for i := range clusters {
		n := len(clusters[i].Corners)
		if n > st.MaxClusterSize {
			st.MaxClusterSize = n
		}
		if s.opts.LargeClusterWarn > 0 && n > s.opts.LargeClusterWarn {
			k := clusters[i].Key
			s.log.Warn("large coincident-corner cluster, blending is quadratic in its size",
				zap.Int("corners", n),
				zap.Float64("x", float64(k.X)/s.q.Scale),
				zap.Float64("y", float64(k.Y)/s.q.Scale),
				zap.Float64("z", float64(k.Z)/s.q.Scale))
		}
	}

	s.log.Debug("recalculated normals",
		zap.Float64("angle", angleDegrees),
		zap.Int("corners", st.Corners),
		zap.Int("clusters", st.Clusters),
		zap.Int("max_cluster", st.MaxClusterSize),
		zap.Int("degenerate", st.DegenerateTriangles))
	return st, nil
}

// blender holds the read-only inputs of the blending pass.
type blender struct {
	mesh         *Mesh
	faces        [][]v3.Vec
	bases        []int
	cosThreshold float64
	fallback     v3.Vec
	epsilon      float64
}

func (b *blender) face(c CornerRef) v3.Vec {
	return b.faces[c.SubMesh][c.Triangle]
}

func (b *blender) vertexIndex(c CornerRef) int {
	return b.mesh.SubMeshes[c.SubMesh].vertexIndex(c.Index(), b.bases[c.SubMesh])
}

// blend writes the smoothed normal of every corner in cl.
func (b *blender) blend(cl *Cluster) {
	for _, c := range cl.Corners {
		fc := b.face(c)
		vc := b.vertexIndex(c)

		var sum v3.Vec
		for _, d := range cl.Corners {
			fd := b.face(d)
			if b.vertexIndex(d) == vc {
				// Same logical vertex: always smooth, no angle test.
				sum = sum.Add(fd)
				continue
			}
			// At 180 degrees everything blends, even when rounding pushes the
			// dot of opposite faces just below -1.
			if b.cosThreshold <= -1 || fc.Dot(fd) >= b.cosThreshold {
				sum = sum.Add(fd)
			}
		}

		n, _ := normalizeOr(sum, b.fallback, b.epsilon)
		b.mesh.SubMeshes[c.SubMesh].Normals[c.Index()] = n
	}
}

// blendParallel splits clusters into contiguous ranges, one goroutine each.
// Every corner belongs to exactly one cluster, so writes never overlap.
func (b *blender) blendParallel(clusters []Cluster, workers int) {
	if workers > len(clusters) {
		workers = len(clusters)
	}
	chunk := (len(clusters) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(clusters); start += chunk {
		end := min(start+chunk, len(clusters))
		wg.Add(1)
		go func(part []Cluster) {
			defer wg.Done()
			for i := range part {
				b.blend(&part[i])
			}
		}(clusters[start:end])
	}
	wg.Wait()
}
