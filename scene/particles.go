package scene

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Particles is a point cloud whose positions rise through a box and wrap
// back to the bottom. Its geometry is live: positions are rewritten in place
// every frame instead of rebuilding the buffer.
type Particles struct {
	Geometry *Geometry

	lo, hi mgl32.Vec3
	speeds []float32
}

// NewParticles seeds count particles inside the box [lo, hi]. The same seed
// always produces the same initial state.
func NewParticles(count int, lo, hi mgl32.Vec3, seed uint64) *Particles {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pos := make([]float32, 3*count)
	speeds := make([]float32, count)
	for i := 0; i < count; i++ {
		for k := 0; k < 3; k++ {
			pos[3*i+k] = lo[k] + r.Float32()*(hi[k]-lo[k])
		}
		speeds[i] = 0.2 + 0.6*r.Float32()
	}
	return &Particles{
		Geometry: &Geometry{Positions: pos, Topology: Points, Live: true},
		lo:       lo,
		hi:       hi,
		speeds:   speeds,
	}
}

// Step moves every particle up by its speed times dt, wrapping at the top.
func (p *Particles) Step(dt float64) {
	g := p.Geometry
	if g == nil || g.Disposed() {
		return
	}
	height := p.hi[1] - p.lo[1]
	if height <= 0 {
		return
	}
	for i, s := range p.speeds {
		y := g.Positions[3*i+1] + s*float32(dt)
		for y > p.hi[1] {
			y -= height
		}
		g.Positions[3*i+1] = y
	}
}
