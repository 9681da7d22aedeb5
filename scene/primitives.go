package scene

import (
	"math"
)

// NewBox builds an axis-aligned box centred at the origin.
func NewBox(w, h, d float32) *Geometry {
	x, y, z := w/2, h/2, d/2
	pos := []float32{
		-x, -y, -z, x, -y, -z, x, y, -z, -x, y, -z,
		-x, -y, z, x, -y, z, x, y, z, -x, y, z,
	}
	idx := []uint32{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 1, 5, 0, 5, 4, // bottom
		3, 6, 2, 3, 7, 6, // top
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
	}
	return &Geometry{Positions: pos, Indices: idx, Topology: Triangles}
}

// NewWireBox builds the twelve edges of a box as line segments.
func NewWireBox(w, h, d float32) *Geometry {
	g := NewBox(w, h, d)
	g.Indices = []uint32{
		0, 1, 1, 2, 2, 3, 3, 0,
		4, 5, 5, 6, 6, 7, 7, 4,
		0, 4, 1, 5, 2, 6, 3, 7,
	}
	g.Topology = Lines
	return g
}

// NewCylinder builds a capped cylinder along Y centred at the origin.
func NewCylinder(radius, height float32, segments int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	half := height / 2
	pos := make([]float32, 0, (2*segments+2)*3)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		cx := radius * float32(math.Cos(a))
		cz := radius * float32(math.Sin(a))
		pos = append(pos, cx, -half, cz, cx, half, cz)
	}
	bottom := uint32(len(pos) / 3)
	pos = append(pos, 0, -half, 0, 0, half, 0)
	top := bottom + 1

	idx := make([]uint32, 0, segments*12)
	n := uint32(segments)
	for i := uint32(0); i < n; i++ {
		j := (i + 1) % n
		b0, t0 := 2*i, 2*i+1
		b1, t1 := 2*j, 2*j+1
		idx = append(idx,
			b0, t0, b1, b1, t0, t1, // side
			bottom, b0, b1, // bottom cap
			top, t1, t0, // top cap
		)
	}
	return &Geometry{Positions: pos, Indices: idx, Topology: Triangles}
}

// NewPlane builds a w by d quad in the XZ plane.
func NewPlane(w, d float32) *Geometry {
	x, z := w/2, d/2
	return &Geometry{
		Positions: []float32{-x, 0, -z, x, 0, -z, x, 0, z, -x, 0, z},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
		Topology:  Triangles,
	}
}

// NewGrid builds a size by size grid in the XZ plane with the given number of
// cells per side, drawn as lines.
func NewGrid(size float32, divisions int) *Geometry {
	if divisions < 1 {
		divisions = 1
	}
	half := size / 2
	step := size / float32(divisions)
	var pos []float32
	var idx []uint32
	line := func(x0, z0, x1, z1 float32) {
		base := uint32(len(pos) / 3)
		pos = append(pos, x0, 0, z0, x1, 0, z1)
		idx = append(idx, base, base+1)
	}
	for i := 0; i <= divisions; i++ {
		v := -half + float32(i)*step
		line(v, -half, v, half)
		line(-half, v, half, v)
	}
	return &Geometry{Positions: pos, Indices: idx, Topology: Lines}
}
