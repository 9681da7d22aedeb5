// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/scene"
)

// Context is a software drawing context.
//
// Rendering happens into an internal buffer sized by the drawing buffer,
// the resolution scale and a 2x supersampling factor when antialiasing was
// requested at creation. The internal buffer is resampled into the frame
// returned by Image.
type Context struct {
	b       *Backend
	surface backend.Surface
	opts    backend.Options
	caps    capability.Capabilities

	width  int
	height int

	scale     float64
	maxLights int

	internal *image.RGBA
	depth    []float32
	frame    *image.RGBA

	shadowRes   int
	shadowDepth []float32

	post *image.RGBA

	// Background is the clear colour. Transparent when Alpha was requested.
	Background color.RGBA

	destroyed bool
}

func newContext(b *Backend, s backend.Surface, opts backend.Options, caps capability.Capabilities) *Context {
	w, h := s.Size()
	bg := color.RGBA{R: 18, G: 20, B: 28, A: 255}
	if opts.Alpha {
		bg = color.RGBA{}
	}
	return &Context{
		b:          b,
		surface:    s,
		opts:       opts,
		caps:       caps,
		width:      w,
		height:     h,
		scale:      1,
		maxLights:  len(scene.Lights),
		Background: bg,
	}
}

// Backend implements backend.Context.
func (c *Context) Backend() string { return backend.NameSoftware }

// Surface implements backend.Context.
func (c *Context) Surface() backend.Surface { return c.surface }

// Options implements backend.Context.
func (c *Context) Options() backend.Options { return c.opts }

// Capabilities implements backend.Context.
func (c *Context) Capabilities() capability.Capabilities { return c.caps }

// Resize implements backend.Context. Buffers are reallocated on the next Draw.
func (c *Context) Resize(width, height int) {
	if c.destroyed || width <= 0 || height <= 0 {
		return
	}
	c.width, c.height = width, height
}

// SetResolutionScale implements backend.Context.
func (c *Context) SetResolutionScale(scale float64) {
	if c.destroyed || scale <= 0 {
		return
	}
	c.scale = min(scale, 1)
}

// ResolutionScale returns the current resolution scale.
func (c *Context) ResolutionScale() float64 { return c.scale }

// SetMaxLights implements backend.Context.
func (c *Context) SetMaxLights(n int) {
	if c.destroyed {
		return
	}
	c.maxLights = max(0, min(n, len(scene.Lights)))
}

// MaxLights returns the number of lights evaluated per triangle.
func (c *Context) MaxLights() int { return c.maxLights }

// RebuildShadows implements backend.Context.
func (c *Context) RebuildShadows(enabled bool, resolution int) error {
	if c.destroyed {
		return backend.ErrContextDestroyed
	}
	c.shadowDepth = nil
	c.shadowRes = 0
	if !enabled || resolution <= 0 {
		return nil
	}
	resolution = min(resolution, MaxTextureSize)
	c.shadowDepth = make([]float32, resolution*resolution)
	c.shadowRes = resolution
	return nil
}

// ShadowResolution returns the side of the shadow map, or 0 when shadows
// are disabled.
func (c *Context) ShadowResolution() int { return c.shadowRes }

// SetPostProcessing implements backend.Context.
func (c *Context) SetPostProcessing(enabled bool) error {
	if c.destroyed {
		return backend.ErrContextDestroyed
	}
	if !enabled {
		c.post = nil
		return nil
	}
	if c.post == nil {
		// Sized lazily in Draw.
		c.post = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return nil
}

// PostProcessing reports whether the post-processing target exists.
func (c *Context) PostProcessing() bool { return c.post != nil }

// InternalSize returns the size of the buffer frames are rasterized into.
func (c *Context) InternalSize() (width, height int) {
	w, h := c.bufferSize(c.scale)
	if c.opts.Antialias {
		w, h = min(2*w, MaxTextureSize), min(2*h, MaxTextureSize)
	}
	return w, h
}

func (c *Context) bufferSize(scale float64) (width, height int) {
	w, h := backend.ScaledSize(c.width, c.height, c.opts.PixelRatio, scale)
	return min(w, MaxTextureSize), min(h, MaxTextureSize)
}

// ensureBuffers reallocates buffers whose size no longer matches.
func (c *Context) ensureBuffers() {
	fw, fh := c.bufferSize(1)
	if c.frame == nil || c.frame.Bounds().Dx() != fw || c.frame.Bounds().Dy() != fh {
		c.frame = image.NewRGBA(image.Rect(0, 0, fw, fh))
	}
	iw, ih := c.InternalSize()
	if c.internal == nil || c.internal.Bounds().Dx() != iw || c.internal.Bounds().Dy() != ih {
		c.internal = image.NewRGBA(image.Rect(0, 0, iw, ih))
		c.depth = make([]float32, iw*ih)
	}
	if c.post != nil && c.post.Bounds() != c.frame.Bounds() {
		c.post = image.NewRGBA(c.frame.Bounds())
	}
}

// Textures returns the number of pixel buffers the context holds.
func (c *Context) Textures() int {
	n := 0
	if c.frame != nil {
		n++
	}
	if c.internal != nil {
		n++
	}
	if c.shadowDepth != nil {
		n++
	}
	if c.post != nil {
		n++
	}
	return n
}

// Draw implements backend.Context.
func (c *Context) Draw(root *scene.Node, cam *scene.Camera) (backend.FrameStats, error) {
	if c.destroyed {
		return backend.FrameStats{}, backend.ErrContextDestroyed
	}
	c.ensureBuffers()

	var stats backend.FrameStats
	if root != nil && cam != nil {
		if c.shadowDepth != nil {
			c.shadowPass(root)
		}
		stats = c.colorPass(root, cam)
	} else {
		newRaster(c.internal, c.depth, c.internal.Bounds().Dx(), c.internal.Bounds().Dy()).clear(c.Background)
	}

	c.resolve()
	if c.post != nil {
		vignette(c.post, c.frame)
	}
	stats.Textures = c.Textures()
	return stats, nil
}

func (c *Context) colorPass(root *scene.Node, cam *scene.Camera) backend.FrameStats {
	iw, ih := c.internal.Bounds().Dx(), c.internal.Bounds().Dy()
	r := newRaster(c.internal, c.depth, iw, ih)
	r.clear(c.Background)

	lights := scene.Lights[:c.maxLights]
	vp := cam.ViewProjection()

	var stats backend.FrameStats
	root.Walk(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Mesh == nil || n.Mesh.Geometry == nil || n.Mesh.Geometry.Disposed() {
			return true
		}
		stats.DrawCalls++
		stats.Triangles += drawMesh(r, n.Mesh, n.WorldMatrix(), vp, lights)
		return true
	})
	return stats
}

// shadowPass rasterizes depth from the key light with an orthographic
// projection covering the scene bounds.
func (c *Context) shadowPass(root *scene.Node) {
	r := newRaster(nil, c.shadowDepth, c.shadowRes, c.shadowRes)
	r.clear(color.RGBA{})

	vp := scene.KeyLightViewProjection()

	root.Walk(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Mesh == nil || n.Mesh.Geometry == nil || n.Mesh.Geometry.Disposed() {
			return true
		}
		if n.Mesh.Geometry.Topology == scene.Triangles {
			drawMesh(r, &scene.Mesh{Geometry: n.Mesh.Geometry}, n.WorldMatrix(), vp, nil)
		}
		return true
	})
}

// ShadowDepth returns the shadow map depth at texel (x, y).
func (c *Context) ShadowDepth(x, y int) float32 {
	return c.shadowDepth[y*c.shadowRes+x]
}

// drawMesh rasterizes one mesh and returns the number of triangles drawn.
func drawMesh(r *raster, m *scene.Mesh, world, vp mgl32.Mat4, lights []mgl32.Vec3) int {
	g := m.Geometry
	mvp := vp.Mul4(world)

	base := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	alpha := float32(1)
	wire := false
	if m.Material != nil {
		base = m.Material.Color
		if m.Material.Opacity > 0 && m.Material.Opacity < 1 {
			alpha = m.Material.Opacity
		}
		wire = m.Material.Wireframe
	}

	n := g.VertexCount()
	screen := make([]mgl32.Vec3, n)
	visible := make([]bool, n)
	for i := range n {
		screen[i], visible[i] = r.project(mvp.Mul4x1(g.Vertex(i).Vec4(1)))
	}
	index := func(i int) int {
		if len(g.Indices) > 0 {
			return int(g.Indices[i])
		}
		return i
	}
	count := len(g.Indices)
	if count == 0 {
		count = n
	}

	triangles := 0
	switch g.Topology {
	case scene.Triangles:
		for i := 0; i+2 < count; i += 3 {
			a, b, cc := index(i), index(i+1), index(i+2)
			if !visible[a] || !visible[b] || !visible[cc] {
				continue
			}
			triangles++
			if wire {
				r.line(screen[a], screen[b], base, alpha)
				r.line(screen[b], screen[cc], base, alpha)
				r.line(screen[cc], screen[a], base, alpha)
				continue
			}
			wa := world.Mul4x1(g.Vertex(a).Vec4(1)).Vec3()
			wb := world.Mul4x1(g.Vertex(b).Vec4(1)).Vec3()
			wc := world.Mul4x1(g.Vertex(cc).Vec4(1)).Vec3()
			normal := wb.Sub(wa).Cross(wc.Sub(wa))
			if normal.Len() > 0 {
				normal = normal.Normalize()
			}
			r.triangle(screen[a], screen[b], screen[cc], shade(base, normal, lights), alpha)
		}
	case scene.Lines:
		for i := 0; i+1 < count; i += 2 {
			a, b := index(i), index(i+1)
			if visible[a] && visible[b] {
				r.line(screen[a], screen[b], base, alpha)
			}
		}
	case scene.Points:
		for i := range count {
			if v := index(i); visible[v] {
				r.point(int(screen[v][0]), int(screen[v][1]), base, alpha)
			}
		}
	}
	return triangles
}

// resolve resamples the internal buffer into the frame.
func (c *Context) resolve() {
	if c.internal.Bounds() == c.frame.Bounds() {
		draw.Draw(c.frame, c.frame.Bounds(), c.internal, image.Point{}, draw.Src)
		return
	}
	if c.opts.Antialias {
		xdraw.BiLinear.Scale(c.frame, c.frame.Bounds(), c.internal, c.internal.Bounds(), xdraw.Src, nil)
		return
	}
	xdraw.ApproxBiLinear.Scale(c.frame, c.frame.Bounds(), c.internal, c.internal.Bounds(), xdraw.Src, nil)
}

// vignette darkens src toward the corners into dst.
func vignette(dst, src *image.RGBA) {
	b := src.Bounds()
	cx, cy := float32(b.Dx())/2, float32(b.Dy())/2
	maxD := cx*cx + cy*cy
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float32(x)-cx, float32(y)-cy
			k := 1 - 0.35*(dx*dx+dy*dy)/maxD
			i := src.PixOffset(x, y)
			dst.Pix[i] = uint8(float32(src.Pix[i]) * k)
			dst.Pix[i+1] = uint8(float32(src.Pix[i+1]) * k)
			dst.Pix[i+2] = uint8(float32(src.Pix[i+2]) * k)
			dst.Pix[i+3] = src.Pix[i+3]
		}
	}
}

// Image returns the last drawn frame, or nil before the first Draw.
func (c *Context) Image() *image.RGBA {
	if c.post != nil && c.frame != nil && c.post.Bounds() == c.frame.Bounds() {
		return c.post
	}
	return c.frame
}

// ReadPixels implements backend.PixelReader.
func (c *Context) ReadPixels() (*image.RGBA, error) {
	if c.destroyed {
		return nil, backend.ErrContextDestroyed
	}
	src := c.Image()
	if src == nil {
		return nil, backend.ErrNoFrame
	}
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst, nil
}

// Destroy implements backend.Context.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.internal, c.depth, c.frame, c.post, c.shadowDepth = nil, nil, nil, nil, nil
	c.shadowRes = 0
	c.b.contextDestroyed()
	xlog.L().Debug("software: context destroyed", "surface", c.surface.ID())
}

// Destroyed implements backend.Context.
func (c *Context) Destroyed() bool { return c.destroyed }

var (
	_ backend.Context     = (*Context)(nil)
	_ backend.PixelReader = (*Context)(nil)
)
