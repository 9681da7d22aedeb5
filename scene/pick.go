package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Pick casts a ray through the normalized device coordinates (x, y) and
// returns the nearest visible mesh node it hits.
func Pick(root *Node, cam *Camera, x, y float32) (*Node, bool) {
	origin, dir := cam.Ray(x, y)
	var (
		best     *Node
		bestDist = math.Inf(1)
	)
	root.Walk(func(n *Node) bool {
		if !n.Visible {
			return false
		}
		if n.Mesh == nil || n.Mesh.Geometry == nil || n.Mesh.Geometry.VertexCount() == 0 {
			return true
		}
		lo, hi := worldBounds(n)
		if d, ok := intersectAABB(origin, dir, lo, hi); ok && d < bestDist {
			best, bestDist = n, d
		}
		return true
	})
	return best, best != nil
}

// ComponentOf returns the Component of n or of its nearest ancestor that has one.
func ComponentOf(n *Node) string {
	for ; n != nil; n = n.parent {
		if n.Component != "" {
			return n.Component
		}
	}
	return ""
}

// worldBounds transforms the corners of the local bounds and re-boxes them.
func worldBounds(n *Node) (lo, hi mgl32.Vec3) {
	llo, lhi := n.Mesh.Geometry.Bounds()
	m := n.WorldMatrix()
	inf := float32(math.Inf(1))
	lo = mgl32.Vec3{inf, inf, inf}
	hi = mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{llo[0], llo[1], llo[2]}
		if i&1 != 0 {
			c[0] = lhi[0]
		}
		if i&2 != 0 {
			c[1] = lhi[1]
		}
		if i&4 != 0 {
			c[2] = lhi[2]
		}
		w := m.Mul4x1(c.Vec4(1)).Vec3()
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], w[k])
			hi[k] = max(hi[k], w[k])
		}
	}
	return lo, hi
}

// intersectAABB is the slab test. It returns the entry distance along dir.
func intersectAABB(origin, dir, lo, hi mgl32.Vec3) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for k := 0; k < 3; k++ {
		o, d := float64(origin[k]), float64(dir[k])
		if math.Abs(d) < 1e-9 {
			if o < float64(lo[k]) || o > float64(hi[k]) {
				return 0, false
			}
			continue
		}
		t1 := (float64(lo[k]) - o) / d
		t2 := (float64(hi[k]) - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	return math.Max(tmin, 0), true
}
