package scene

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Topology selects how Geometry indices are interpreted.
type Topology uint8

const (
	// Triangles draws index triples.
	Triangles Topology = iota

	// Lines draws index pairs.
	Lines

	// Points draws every vertex.
	Points
)

// Geometry is a vertex buffer with optional indices.
//
// Geometry buffers are immutable once built, except when Live is set: live
// attributes are recomputed in place every frame.
type Geometry struct {
	Positions []float32
	Indices   []uint32
	Topology  Topology
	Live      bool

	disposed bool
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Vertex returns vertex i.
func (g *Geometry) Vertex(i int) mgl32.Vec3 {
	return mgl32.Vec3{g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]}
}

// TriangleCount returns the number of triangles for triangle topology.
func (g *Geometry) TriangleCount() int {
	if g.Topology != Triangles {
		return 0
	}
	if len(g.Indices) > 0 {
		return len(g.Indices) / 3
	}
	return g.VertexCount() / 3
}

// Bounds returns the axis-aligned bounding box in local space.
func (g *Geometry) Bounds() (lo, hi mgl32.Vec3) {
	if g.VertexCount() == 0 {
		return lo, hi
	}
	inf := float32(math.Inf(1))
	lo = mgl32.Vec3{inf, inf, inf}
	hi = mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < g.VertexCount(); i++ {
		v := g.Vertex(i)
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v[k])
			hi[k] = max(hi[k], v[k])
		}
	}
	return lo, hi
}

// Dispose releases the buffers. It is idempotent.
func (g *Geometry) Dispose() {
	if g == nil || g.disposed {
		return
	}
	g.disposed = true
	g.Positions = nil
	g.Indices = nil
}

// Disposed reports whether Dispose has been called.
func (g *Geometry) Disposed() bool {
	return g.disposed
}

// Material describes surface appearance.
type Material struct {
	Name      string
	Color     color.RGBA
	Opacity   float32
	Wireframe bool
	Emissive  bool

	disposed bool
}

// Dispose releases the material. It is idempotent.
func (m *Material) Dispose() {
	if m == nil {
		return
	}
	m.disposed = true
}

// Disposed reports whether Dispose has been called.
func (m *Material) Disposed() bool {
	return m.disposed
}

// Mesh binds a geometry to a material.
type Mesh struct {
	Geometry *Geometry
	Material *Material
}

// DisposeStats reports what DisposeTree released.
type DisposeStats struct {
	Geometries int
	Materials  int
}

// DisposeTree walks the subtree depth-first and disposes every geometry and
// material. Shared or already disposed resources are counted once; calling
// it twice is a no-op.
func DisposeTree(root *Node) DisposeStats {
	var s DisposeStats
	disposeNode(root, &s)
	return s
}

func disposeNode(n *Node, s *DisposeStats) {
	if n == nil {
		return
	}
	for _, c := range n.children {
		disposeNode(c, s)
	}
	if n.Mesh == nil {
		return
	}
	if g := n.Mesh.Geometry; g != nil && !g.disposed {
		g.Dispose()
		s.Geometries++
	}
	if m := n.Mesh.Material; m != nil && !m.disposed {
		m.Dispose()
		s.Materials++
	}
}
