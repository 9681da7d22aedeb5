package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/scene"
)

// ErrNoFrame is returned by ReadPixels before the first Draw.
var ErrNoFrame = backend.ErrNoFrame

type contextConfig struct {
	backend  *Backend
	device   hal.Device
	queue    hal.Queue
	owns     bool
	surface  backend.Surface
	opts     backend.Options
	caps     capability.Capabilities
	format   gputypes.TextureFormat
	shaders  *shaderSet
	maxLimit int
}

// meshBuffer is the vertex buffer uploaded for one geometry.
type meshBuffer struct {
	buf      hal.Buffer
	size     uint64
	vertices uint32
}

// Context is a GPU drawing context. It owns its device unless the backend
// was configured with a host device.
type Context struct {
	b       *Backend
	device  hal.Device
	queue   hal.Queue
	owns    bool
	surface backend.Surface
	opts    backend.Options
	caps    capability.Capabilities
	format  gputypes.TextureFormat
	shaders *shaderSet
	limit   int

	// samples is fixed at creation: 4 with antialiasing, 1 without.
	samples uint32

	width     int
	height    int
	scale     float64
	maxLights int

	targets colorTargets
	shadow  shadowMap
	post    bool
	pipes   pipelines
	meshes  map[*scene.Geometry]*meshBuffer

	frames    uint64
	destroyed bool
}

func newContext(cfg contextConfig) (*Context, error) {
	w, h := cfg.surface.Size()
	c := &Context{
		b:         cfg.backend,
		device:    cfg.device,
		queue:     cfg.queue,
		owns:      cfg.owns,
		surface:   cfg.surface,
		opts:      cfg.opts,
		caps:      cfg.caps,
		format:    cfg.format,
		shaders:   cfg.shaders,
		limit:     cfg.maxLimit,
		samples:   1,
		width:     w,
		height:    h,
		scale:     1,
		maxLights: maxLights,
		meshes:    make(map[*scene.Geometry]*meshBuffer),
	}
	if cfg.opts.Antialias {
		c.samples = msaaSamples
	}
	if err := c.pipes.createMesh(c.device, c.shaders, c.format, c.samples); err != nil {
		c.pipes.destroy(c.device)
		return nil, err
	}
	return c, nil
}

// Backend implements backend.Context.
func (c *Context) Backend() string { return backend.NameWGPU }

// Surface implements backend.Context.
func (c *Context) Surface() backend.Surface { return c.surface }

// Options implements backend.Context.
func (c *Context) Options() backend.Options { return c.opts }

// Capabilities implements backend.Context.
func (c *Context) Capabilities() capability.Capabilities { return c.caps }

// Samples returns the MSAA sample count chosen at creation.
func (c *Context) Samples() uint32 { return c.samples }

// Resize implements backend.Context. Targets are recreated on the next Draw.
func (c *Context) Resize(width, height int) {
	if c.destroyed || width <= 0 || height <= 0 {
		return
	}
	c.width, c.height = width, height
}

// SetResolutionScale implements backend.Context. The color target is
// recreated lazily on the next Draw.
func (c *Context) SetResolutionScale(scale float64) {
	if c.destroyed || scale <= 0 {
		return
	}
	c.scale = min(scale, 1)
}

// SetMaxLights implements backend.Context.
func (c *Context) SetMaxLights(n int) {
	if c.destroyed {
		return
	}
	c.maxLights = max(0, min(n, maxLights, len(scene.Lights)))
}

// RebuildShadows implements backend.Context. Only the shadow map and the
// shadow pipeline are touched.
func (c *Context) RebuildShadows(enabled bool, resolution int) error {
	if c.destroyed {
		return backend.ErrContextDestroyed
	}
	if !enabled || resolution <= 0 {
		c.shadow.destroy(c.device)
		c.pipes.destroyShadow(c.device)
		return nil
	}
	size := uint32(min(resolution, c.limit))
	if c.shadow.size != size {
		if err := c.shadow.create(c.device, size); err != nil {
			return err
		}
	}
	if err := c.pipes.createShadow(c.device, c.shaders); err != nil {
		c.shadow.destroy(c.device)
		return err
	}
	return nil
}

// ShadowResolution returns the side of the shadow map, or 0.
func (c *Context) ShadowResolution() int { return int(c.shadow.size) }

// SetPostProcessing implements backend.Context.
func (c *Context) SetPostProcessing(enabled bool) error {
	if c.destroyed {
		return backend.ErrContextDestroyed
	}
	if !enabled {
		c.pipes.destroyVignette(c.device)
		c.post = false
		return nil
	}
	if err := c.pipes.createVignette(c.device, c.shaders, c.format, c.samples); err != nil {
		return err
	}
	c.post = true
	return nil
}

// TargetSize returns the size of the color target for the current
// resolution scale.
func (c *Context) TargetSize() (width, height int) {
	w, h := backend.ScaledSize(c.width, c.height, c.opts.PixelRatio, c.scale)
	return min(w, c.limit), min(h, c.limit)
}

// Textures returns the number of GPU textures the context holds.
func (c *Context) Textures() int {
	n := c.targets.count()
	if c.shadow.tex != nil {
		n++
	}
	return n
}

// Buffers returns the number of cached geometry vertex buffers.
func (c *Context) Buffers() int { return len(c.meshes) }

// drawItem is one mesh prepared for the current frame.
type drawItem struct {
	vb        *meshBuffer
	topology  scene.Topology
	triangles int

	uniform       hal.Buffer
	bindGroup     hal.BindGroup
	shadowUniform hal.Buffer
	shadowGroup   hal.BindGroup
}

func (it *drawItem) release(device hal.Device) {
	if it.bindGroup != nil {
		device.DestroyBindGroup(it.bindGroup)
	}
	if it.uniform != nil {
		device.DestroyBuffer(it.uniform)
	}
	if it.shadowGroup != nil {
		device.DestroyBindGroup(it.shadowGroup)
	}
	if it.shadowUniform != nil {
		device.DestroyBuffer(it.shadowUniform)
	}
}

// Draw implements backend.Context. It records an optional shadow pass and
// the color pass into one command buffer, submits it and waits.
func (c *Context) Draw(root *scene.Node, cam *scene.Camera) (backend.FrameStats, error) {
	if c.destroyed {
		return backend.FrameStats{}, backend.ErrContextDestroyed
	}

	w, h := c.TargetSize()
	if err := c.targets.ensure(c.device, uint32(w), uint32(h), c.samples, c.format); err != nil {
		return backend.FrameStats{}, err
	}
	c.purgeDisposed()

	var items []*drawItem
	defer func() {
		for _, it := range items {
			it.release(c.device)
		}
	}()

	var stats backend.FrameStats
	if root != nil && cam != nil {
		vp := cam.ViewProjection()
		lightVP := scene.KeyLightViewProjection()
		var buildErr error
		root.Walk(func(n *scene.Node) bool {
			if buildErr != nil || !n.Visible {
				return false
			}
			if n.Mesh == nil || n.Mesh.Geometry == nil || n.Mesh.Geometry.Disposed() {
				return true
			}
			it, err := c.prepare(n.Mesh, n.WorldMatrix(), vp, lightVP)
			if err != nil {
				buildErr = err
				return false
			}
			if it != nil {
				items = append(items, it)
				stats.DrawCalls++
				stats.Triangles += it.triangles
			}
			return true
		})
		if buildErr != nil {
			return backend.FrameStats{}, buildErr
		}
	}

	if err := c.submit(items); err != nil {
		return backend.FrameStats{}, err
	}
	c.frames++
	stats.Textures = c.Textures()
	return stats, nil
}

// prepare uploads geometry if needed and creates the per-frame uniforms.
// It returns nil for empty geometry.
func (c *Context) prepare(m *scene.Mesh, world, vp, lightVP mgl32.Mat4) (*drawItem, error) {
	vb, err := c.upload(m.Geometry)
	if err != nil {
		return nil, err
	}
	if vb == nil {
		return nil, nil
	}

	it := &drawItem{vb: vb, topology: m.Geometry.Topology, triangles: m.Geometry.TriangleCount()}

	data := c.meshUniforms(m, vp.Mul4(world), world)
	it.uniform, it.bindGroup, err = c.uniformGroup("vizctx_mesh_uniforms", data)
	if err != nil {
		return nil, err
	}

	if c.shadow.view != nil && it.topology == scene.Triangles {
		mvp := lightVP.Mul4(world)
		shadowData := make([]byte, shadowUniformSize)
		putFloats(shadowData, mvp[:]...)
		it.shadowUniform, it.shadowGroup, err = c.uniformGroup("vizctx_shadow_uniforms", shadowData)
		if err != nil {
			it.release(c.device)
			return nil, err
		}
	}
	return it, nil
}

func (c *Context) meshUniforms(m *scene.Mesh, mvp, world mgl32.Mat4) []byte {
	color := [4]float32{0.8, 0.8, 0.8, 1}
	unlit := float32(0)
	if mat := m.Material; mat != nil {
		a := float32(1)
		if mat.Opacity > 0 && mat.Opacity < 1 {
			a = mat.Opacity
		}
		color = [4]float32{
			float32(mat.Color.R) / 255,
			float32(mat.Color.G) / 255,
			float32(mat.Color.B) / 255,
			a,
		}
		if mat.Emissive || mat.Wireframe {
			unlit = 1
		}
	}
	if m.Geometry.Topology != scene.Triangles {
		unlit = 1
	}

	data := make([]byte, meshUniformSize)
	off := putFloats(data, mvp[:]...)
	off += putFloats(data[off:], world[:]...)
	off += putFloats(data[off:], color[:]...)
	off += putFloats(data[off:], float32(c.maxLights), unlit, 0, 0)
	for i := 0; i < maxLights && i < len(scene.Lights); i++ {
		l := scene.Lights[i]
		off += putFloats(data[off:], l[0], l[1], l[2], 0)
	}
	return data
}

// uniformGroup creates a uniform buffer holding data and a bind group for
// it.
func (c *Context) uniformGroup(label string, data []byte) (hal.Buffer, hal.BindGroup, error) {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
		c.device.DestroyBuffer(buf)
		return nil, nil, fmt.Errorf("write %s: %w", label, err)
	}

	group, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label + "_bind",
		Layout: c.pipes.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(), Offset: 0, Size: uint64(len(data)),
			}},
		},
	})
	if err != nil {
		c.device.DestroyBuffer(buf)
		return nil, nil, fmt.Errorf("create %s bind group: %w", label, err)
	}
	return buf, group, nil
}

// upload returns the vertex buffer for g, creating it on first use.
// Live geometries are rewritten every frame; all others are uploaded once.
func (c *Context) upload(g *scene.Geometry) (*meshBuffer, error) {
	mb, ok := c.meshes[g]
	if ok && !g.Live {
		return mb, nil
	}

	data, vertices := interleave(g)
	if vertices == 0 {
		return nil, nil
	}
	size := uint64(len(data))

	if ok && mb.size == size {
		if err := c.queue.WriteBuffer(mb.buf, 0, data); err != nil {
			return nil, fmt.Errorf("write vertex buffer: %w", err)
		}
		return mb, nil
	}
	if ok {
		c.device.DestroyBuffer(mb.buf)
		delete(c.meshes, g)
	}

	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vizctx_vertices",
		Size:  size,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
		c.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write vertex buffer: %w", err)
	}

	mb = &meshBuffer{buf: buf, size: size, vertices: vertices}
	c.meshes[g] = mb
	return mb, nil
}

// purgeDisposed releases vertex buffers of disposed geometries.
func (c *Context) purgeDisposed() {
	for g, mb := range c.meshes {
		if g.Disposed() {
			c.device.DestroyBuffer(mb.buf)
			delete(c.meshes, g)
		}
	}
}

// interleave expands indexed geometry into position+normal vertices.
// Triangles get flat face normals; lines and points get zero normals.
func interleave(g *scene.Geometry) ([]byte, uint32) {
	count := len(g.Indices)
	if count == 0 {
		count = g.VertexCount()
	}
	index := func(i int) int {
		if len(g.Indices) > 0 {
			return int(g.Indices[i])
		}
		return i
	}
	if g.Topology == scene.Triangles {
		count -= count % 3
	}
	if g.Topology == scene.Lines {
		count -= count % 2
	}

	data := make([]byte, count*vertexStride)
	off := 0
	for i := 0; i < count; i++ {
		v := g.Vertex(index(i))
		var n mgl32.Vec3
		if g.Topology == scene.Triangles {
			t := i - i%3
			a, b, cc := g.Vertex(index(t)), g.Vertex(index(t+1)), g.Vertex(index(t+2))
			n = b.Sub(a).Cross(cc.Sub(a))
			if n.Len() > 0 {
				n = n.Normalize()
			}
		}
		off += putFloats(data[off:], v[0], v[1], v[2], n[0], n[1], n[2])
	}
	return data, uint32(count)
}

// putFloats writes little-endian float32 values and returns the bytes
// written.
func putFloats(dst []byte, vals ...float32) int {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return len(vals) * 4
}

func (c *Context) clearColor() gputypes.Color {
	if c.opts.Alpha {
		return gputypes.Color{R: 0, G: 0, B: 0, A: 0}
	}
	return gputypes.Color{R: 0.07, G: 0.08, B: 0.11, A: 1}
}

// submit encodes the shadow and color passes, submits and waits.
func (c *Context) submit(items []*drawItem) error {
	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "vizctx_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("vizctx_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	if c.shadow.view != nil && c.pipes.shadowPipeline != nil {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "vizctx_shadow_pass",
			DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
				View:              c.shadow.view,
				DepthLoadOp:       gputypes.LoadOpClear,
				DepthStoreOp:      gputypes.StoreOpStore,
				DepthClearValue:   1.0,
				StencilLoadOp:     gputypes.LoadOpClear,
				StencilStoreOp:    gputypes.StoreOpDiscard,
				StencilClearValue: 0,
			},
		})
		rp.SetPipeline(c.pipes.shadowPipeline)
		for _, it := range items {
			if it.shadowGroup == nil {
				continue
			}
			rp.SetBindGroup(0, it.shadowGroup, nil)
			rp.SetVertexBuffer(0, it.vb.buf, 0)
			rp.Draw(it.vb.vertices, 1, 0, 0)
		}
		rp.End()
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "vizctx_color_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:          c.targets.colorView,
			ResolveTarget: c.targets.resolveView,
			LoadOp:        gputypes.LoadOpClear,
			StoreOp:       gputypes.StoreOpStore,
			ClearValue:    c.clearColor(),
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              c.targets.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	for _, it := range items {
		switch it.topology {
		case scene.Triangles:
			rp.SetPipeline(c.pipes.triangles)
		case scene.Lines:
			rp.SetPipeline(c.pipes.lines)
		case scene.Points:
			rp.SetPipeline(c.pipes.points)
		}
		rp.SetBindGroup(0, it.bindGroup, nil)
		rp.SetVertexBuffer(0, it.vb.buf, 0)
		rp.Draw(it.vb.vertices, 1, 0, 0)
	}
	if c.post && c.pipes.vignettePipeline != nil {
		rp.SetPipeline(c.pipes.vignettePipeline)
		rp.Draw(3, 1, 0, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	return c.submitAndWait(cmdBuf)
}

func (c *Context) submitAndWait(cmdBuf hal.CommandBuffer) error {
	index, err := c.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if c.queue.PollCompleted() >= index {
		return nil
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for submission %d: %w", index, err)
	}
	return nil
}

// ReadPixels copies the last drawn frame back to the CPU.
func (c *Context) ReadPixels() (*image.RGBA, error) {
	if c.destroyed {
		return nil, backend.ErrContextDestroyed
	}
	src := c.targets.output()
	if src == nil {
		return nil, ErrNoFrame
	}
	w, h := c.targets.width, c.targets.height

	// WebGPU requires BytesPerRow aligned to 256 bytes.
	bytesPerRow := w * 4
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vizctx_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "vizctx_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("vizctx_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	// Vulkan keeps the target in COLOR_ATTACHMENT_OPTIMAL after the pass.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: src,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(src, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: src, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: src,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}

	m, err := c.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	defer c.device.UnmapBuffer(staging)
	readback := unsafe.Slice((*byte)(m.Ptr), stagingSize)

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	bgra := c.format == gputypes.TextureFormatBGRA8Unorm
	for row := 0; row < int(h); row++ {
		line := readback[row*int(alignedBytesPerRow) : row*int(alignedBytesPerRow)+int(bytesPerRow)]
		dst := img.Pix[row*img.Stride : row*img.Stride+int(bytesPerRow)]
		copy(dst, line)
		if bgra {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}
	return img, nil
}

// Destroy implements backend.Context. It releases every GPU object and,
// when the context owns it, the device.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true

	for g, mb := range c.meshes {
		c.device.DestroyBuffer(mb.buf)
		delete(c.meshes, g)
	}
	c.shadow.destroy(c.device)
	c.targets.destroy(c.device)
	c.pipes.destroy(c.device)
	if c.owns {
		c.device.Destroy()
	}
	c.b.contextDestroyed()
	xlog.L().Debug("wgpu: context destroyed", "surface", c.surface.ID(), "frames", c.frames)
}

// Destroyed implements backend.Context.
func (c *Context) Destroyed() bool { return c.destroyed }

var (
	_ backend.Context     = (*Context)(nil)
	_ backend.PixelReader = (*Context)(nil)
)
