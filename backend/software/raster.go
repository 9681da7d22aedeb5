// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// raster is a color buffer with a depth buffer. The color buffer may be nil
// for depth-only passes.
type raster struct {
	img    *image.RGBA
	depth  []float32
	width  int
	height int
}

func newRaster(img *image.RGBA, depth []float32, width, height int) *raster {
	return &raster{img: img, depth: depth, width: width, height: height}
}

func (r *raster) clear(c color.RGBA) {
	if r.img != nil {
		pix := r.img.Pix
		for i := 0; i < len(pix); i += 4 {
			pix[i] = c.R
			pix[i+1] = c.G
			pix[i+2] = c.B
			pix[i+3] = c.A
		}
	}
	inf := float32(math.Inf(1))
	for i := range r.depth {
		r.depth[i] = inf
	}
}

// blend writes c with coverage alpha a at (x, y). Bounds are checked by
// the caller.
func (r *raster) blend(x, y int, c color.RGBA, a float32) {
	if r.img == nil {
		return
	}
	i := r.img.PixOffset(x, y)
	pix := r.img.Pix[i : i+4 : i+4]
	if a >= 1 {
		pix[0], pix[1], pix[2], pix[3] = c.R, c.G, c.B, 255
		return
	}
	inv := 1 - a
	pix[0] = uint8(float32(c.R)*a + float32(pix[0])*inv)
	pix[1] = uint8(float32(c.G)*a + float32(pix[1])*inv)
	pix[2] = uint8(float32(c.B)*a + float32(pix[2])*inv)
	pix[3] = uint8(255*a + float32(pix[3])*inv)
}

// project maps a clip-space position to screen space. ok is false for
// vertices behind the eye.
func (r *raster) project(clip mgl32.Vec4) (p mgl32.Vec3, ok bool) {
	w := clip.W()
	if w <= 1e-6 {
		return mgl32.Vec3{}, false
	}
	ndc := clip.Vec3().Mul(1 / w)
	return mgl32.Vec3{
		(ndc[0] + 1) * 0.5 * float32(r.width),
		(1 - ndc[1]) * 0.5 * float32(r.height),
		ndc[2],
	}, true
}

// triangle fills p0 p1 p2 with depth testing. Both windings are drawn.
func (r *raster) triangle(p0, p1, p2 mgl32.Vec3, c color.RGBA, a float32) {
	area := edge(p0, p1, p2)
	if area == 0 {
		return
	}

	minX := max(int(math.Floor(float64(min(p0[0], p1[0], p2[0])))), 0)
	maxX := min(int(math.Ceil(float64(max(p0[0], p1[0], p2[0])))), r.width-1)
	minY := max(int(math.Floor(float64(min(p0[1], p1[1], p2[1])))), 0)
	maxY := min(int(math.Ceil(float64(max(p0[1], p1[1], p2[1])))), r.height-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, 0}
			w0 := edge(p1, p2, p) / area
			w1 := edge(p2, p0, p) / area
			w2 := edge(p0, p1, p) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*p0[2] + w1*p1[2] + w2*p2[2]
			i := y*r.width + x
			if z >= r.depth[i] {
				continue
			}
			if a >= 1 {
				r.depth[i] = z
			}
			r.blend(x, y, c, a)
		}
	}
}

func edge(a, b, p mgl32.Vec3) float32 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// line draws a one pixel Bresenham line without depth testing.
func (r *raster) line(p0, p1 mgl32.Vec3, c color.RGBA, a float32) {
	x0, y0 := int(p0[0]), int(p0[1])
	x1, y1 := int(p1[0]), int(p1[1])

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	// Bound the walk so a vertex projected far off screen cannot stall
	// the frame.
	for steps := 0; steps <= 4*(r.width+r.height)+dx-dy; steps++ {
		r.point(x0, y0, c, a)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (r *raster) point(x, y int, c color.RGBA, a float32) {
	if x < 0 || y < 0 || x >= r.width || y >= r.height {
		return
	}
	r.blend(x, y, c, a)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// shade scales c by ambient plus the mean of the first n light terms.
func shade(c color.RGBA, normal mgl32.Vec3, lights []mgl32.Vec3) color.RGBA {
	const ambient = 0.3
	var diffuse float32
	if len(lights) > 0 {
		for _, l := range lights {
			diffuse += float32(math.Abs(float64(normal.Dot(l))))
		}
		diffuse /= float32(len(lights))
	}
	k := ambient + (1-ambient)*diffuse
	return color.RGBA{
		R: uint8(float32(c.R) * k),
		G: uint8(float32(c.G) * k),
		B: uint8(float32(c.B) * k),
		A: c.A,
	}
}
