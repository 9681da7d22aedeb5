//go:build !nogpu

package wgpu

import (
	"errors"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/scene"
)

func newNoopBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(WithInstanceCreator(&noop.API{}))
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func newNoopContext(t *testing.T, opts backend.Options) (*Backend, *Context) {
	t.Helper()
	b := newNoopBackend(t)
	ctx, err := b.NewContext(backend.NewMemorySurface(64, 48), opts)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	c := ctx.(*Context)
	t.Cleanup(c.Destroy)
	return b, c
}

func boxScene() (*scene.Node, *scene.Camera) {
	root := scene.NewNode("root")
	root.AddChild(scene.NewMeshNode("box", &scene.Mesh{
		Geometry: scene.NewBox(1, 1, 1),
		Material: &scene.Material{Color: color.RGBA{G: 200, A: 255}, Opacity: 1},
	}))
	return root, scene.NewCamera(mgl32.Vec3{0, 0, 5}, 64.0/48.0)
}

func TestInitAndProbe(t *testing.T) {
	b := New(WithInstanceCreator(&noop.API{}))
	if _, err := b.Probe(); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Probe() before Init error = %v, want ErrNotInitialized", err)
	}
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	caps, err := b.Probe()
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !caps.Supported || caps.Version != 2 {
		t.Errorf("Probe() = %+v, want supported v2", caps)
	}
	if caps.MaxTextureSize <= 0 || caps.RendererName == "" {
		t.Errorf("Probe() = %+v, want limits and a renderer name", caps)
	}
}

func TestNewContextErrors(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		_, err := New().NewContext(backend.NewMemorySurface(10, 10), backend.DefaultOptions())
		if !errors.Is(err, backend.ErrNotInitialized) {
			t.Errorf("NewContext() error = %v, want ErrNotInitialized", err)
		}
	})

	t.Run("detached", func(t *testing.T) {
		b := newNoopBackend(t)
		s := backend.NewMemorySurface(10, 10)
		s.Detach()
		if _, err := b.NewContext(s, backend.DefaultOptions()); !errors.Is(err, backend.ErrSurfaceDetached) {
			t.Errorf("NewContext() error = %v, want ErrSurfaceDetached", err)
		}
	})

	t.Run("zero size", func(t *testing.T) {
		b := newNoopBackend(t)
		if _, err := b.NewContext(backend.NewMemorySurface(10, 0), backend.DefaultOptions()); !errors.Is(err, backend.ErrInvalidSize) {
			t.Errorf("NewContext() error = %v, want ErrInvalidSize", err)
		}
	})
}

func TestDrawBox(t *testing.T) {
	b, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	if b.Contexts() != 1 {
		t.Errorf("Contexts() = %d, want 1", b.Contexts())
	}
	root, cam := boxScene()

	stats, err := c.Draw(root, cam)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if stats.DrawCalls != 1 || stats.Triangles != 12 {
		t.Errorf("Draw() stats = %+v, want 1 draw call with 12 triangles", stats)
	}
	if stats.Textures != 2 {
		t.Errorf("Textures = %d, want color and depth", stats.Textures)
	}
	if c.Buffers() != 1 {
		t.Errorf("Buffers() = %d, want 1", c.Buffers())
	}

	img, err := c.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	if got := img.Bounds().Size(); got.X != 64 || got.Y != 48 {
		t.Errorf("ReadPixels() size = %v, want 64x48", got)
	}
	// One submission for the frame and one for the copy.
	if got := c.queue.PollCompleted(); got != 2 {
		t.Errorf("PollCompleted() = %d, want 2", got)
	}
	for i, v := range img.Pix {
		if v != 0 {
			t.Fatalf("Pix[%d] = %d, want the zeroed staging buffer", i, v)
		}
	}
}

func TestReadPixelsBeforeDraw(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	if _, err := c.ReadPixels(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("ReadPixels() error = %v, want ErrNoFrame", err)
	}
}

func TestAntialiasUsesResolveTarget(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{Antialias: true, PixelRatio: 1})
	if c.Samples() != msaaSamples {
		t.Fatalf("Samples() = %d, want %d", c.Samples(), msaaSamples)
	}
	root, cam := boxScene()
	stats, err := c.Draw(root, cam)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if stats.Textures != 3 {
		t.Errorf("Textures = %d, want color, depth and resolve", stats.Textures)
	}
	if c.targets.output() != c.targets.resolveTex {
		t.Error("output() is not the resolve texture")
	}
}

func TestDisposedGeometryReleased(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	root, cam := boxScene()
	if _, err := c.Draw(root, cam); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	scene.DisposeTree(root)
	stats, err := c.Draw(root, cam)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if stats.DrawCalls != 0 || c.Buffers() != 0 {
		t.Errorf("after dispose: DrawCalls = %d, Buffers = %d, want 0 and 0", stats.DrawCalls, c.Buffers())
	}
}

func TestStructuralSubResources(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	root, cam := boxScene()

	if err := c.RebuildShadows(true, 512); err != nil {
		t.Fatalf("RebuildShadows() error = %v", err)
	}
	if err := c.SetPostProcessing(true); err != nil {
		t.Fatalf("SetPostProcessing() error = %v", err)
	}
	if c.pipes.shadowPipeline == nil || c.pipes.vignettePipeline == nil {
		t.Fatal("structural pipelines not created")
	}
	stats, err := c.Draw(root, cam)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if stats.Textures != 3 {
		t.Errorf("Textures = %d, want targets plus shadow map", stats.Textures)
	}
	if c.ShadowResolution() != 512 {
		t.Errorf("ShadowResolution() = %d, want 512", c.ShadowResolution())
	}

	mesh := c.pipes.triangles
	if err := c.RebuildShadows(false, 0); err != nil {
		t.Fatalf("RebuildShadows(false) error = %v", err)
	}
	if err := c.SetPostProcessing(false); err != nil {
		t.Fatalf("SetPostProcessing(false) error = %v", err)
	}
	if c.pipes.shadowPipeline != nil || c.pipes.vignettePipeline != nil || c.ShadowResolution() != 0 {
		t.Error("structural resources not released")
	}
	if c.pipes.triangles != mesh {
		t.Error("mesh pipeline was rebuilt by a structural change")
	}
}

func TestResolutionScaleRecreatesTargets(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{PixelRatio: 2})
	root, cam := boxScene()

	tests := []struct {
		scale        float64
		wantW, wantH uint32
	}{
		{1, 128, 96},
		{0.5, 64, 48},
		{0, 64, 48}, // ignored
		{4, 128, 96},
	}
	for _, tt := range tests {
		c.SetResolutionScale(tt.scale)
		if _, err := c.Draw(root, cam); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		if c.targets.width != tt.wantW || c.targets.height != tt.wantH {
			t.Errorf("scale %v: targets %dx%d, want %dx%d",
				tt.scale, c.targets.width, c.targets.height, tt.wantW, tt.wantH)
		}
	}

	c.Resize(20, 10)
	c.SetResolutionScale(1)
	if _, err := c.Draw(root, cam); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if c.targets.width != 40 || c.targets.height != 20 {
		t.Errorf("after Resize: targets %dx%d, want 40x20", c.targets.width, c.targets.height)
	}
}

func TestSetMaxLights(t *testing.T) {
	_, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	c.SetMaxLights(3)
	if c.maxLights != 3 {
		t.Errorf("maxLights = %d, want 3", c.maxLights)
	}
	c.SetMaxLights(-1)
	if c.maxLights != 0 {
		t.Errorf("maxLights = %d, want 0", c.maxLights)
	}
	c.SetMaxLights(99)
	if c.maxLights != maxLights {
		t.Errorf("maxLights = %d, want %d", c.maxLights, maxLights)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	b, c := newNoopContext(t, backend.Options{PixelRatio: 1})
	root, cam := boxScene()
	_ = c.RebuildShadows(true, 128)
	if _, err := c.Draw(root, cam); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	c.Destroy()
	c.Destroy()

	if !c.Destroyed() {
		t.Error("Destroyed() = false")
	}
	if b.Contexts() != 0 {
		t.Errorf("Contexts() = %d, want 0", b.Contexts())
	}
	if c.Textures() != 0 || c.Buffers() != 0 {
		t.Errorf("after Destroy: Textures = %d, Buffers = %d", c.Textures(), c.Buffers())
	}
	if _, err := c.Draw(root, cam); !errors.Is(err, backend.ErrContextDestroyed) {
		t.Errorf("Draw() error = %v, want ErrContextDestroyed", err)
	}
	if err := c.SetPostProcessing(true); !errors.Is(err, backend.ErrContextDestroyed) {
		t.Errorf("SetPostProcessing() error = %v, want ErrContextDestroyed", err)
	}
}

func TestNullDeviceHandle(t *testing.T) {
	if info := (NullDeviceHandle{}).AdapterInfo(); info.Type != gpucontext.AdapterTypeUnknown || info.Name != "" {
		t.Errorf("AdapterInfo() = %+v, want unknown adapter", info)
	}
	b := New(WithDeviceProvider(NullDeviceHandle{}))
	if err := b.Init(); !errors.Is(err, ErrNoHALDevice) {
		t.Errorf("Init() error = %v, want ErrNoHALDevice", err)
	}
}

func TestPickAdapter(t *testing.T) {
	adapter := func(name string, kind gputypes.DeviceType) hal.ExposedAdapter {
		var a hal.ExposedAdapter
		a.Info.Name = name
		a.Info.DeviceType = kind
		return a
	}
	var unknown gputypes.DeviceType
	adapters := []hal.ExposedAdapter{
		adapter("other", unknown),
		adapter("igpu", gputypes.DeviceTypeIntegratedGPU),
		adapter("dgpu", gputypes.DeviceTypeDiscreteGPU),
	}
	tests := []struct {
		name     string
		adapters []hal.ExposedAdapter
		lowPower bool
		want     string
	}{
		{"high performance", adapters, false, "dgpu"},
		{"low power", adapters, true, "igpu"},
		{"fallback", adapters[:1], false, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := pickAdapter(tt.adapters, tt.lowPower)
			if a == nil || a.Info.Name != tt.want {
				t.Errorf("pickAdapter() = %v, want %s", a, tt.want)
			}
		})
	}
	if pickAdapter(nil, false) != nil {
		t.Error("pickAdapter(nil) != nil")
	}
}

func TestInterleave(t *testing.T) {
	g := &scene.Geometry{
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:   []uint32{0, 1, 2},
	}
	data, n := interleave(g)
	if n != 3 || len(data) != 3*vertexStride {
		t.Fatalf("interleave() = %d bytes, %d vertices", len(data), n)
	}

	lines := &scene.Geometry{Positions: []float32{0, 0, 0, 1, 1, 1, 2, 2, 2}, Topology: scene.Lines}
	if _, n := interleave(lines); n != 2 {
		t.Errorf("lines vertices = %d, want 2", n)
	}
}

func TestRegister(t *testing.T) {
	r := backend.NewRegistry()
	Register(r, WithInstanceCreator(&noop.API{}))
	b, err := r.Select("")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	defer b.Close()
	if b.Name() != backend.NameWGPU {
		t.Errorf("Name() = %q, want %q", b.Name(), backend.NameWGPU)
	}
}
