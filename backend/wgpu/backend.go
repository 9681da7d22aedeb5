// Package wgpu is the GPU backend: one HAL device per drawing context,
// opened from an adapter selected at startup.
//
// By default the Vulkan HAL is used. Tests pass the noop HAL through
// WithInstanceCreator; applications that already own a device pass it
// through WithDeviceProvider, in which case every context shares it.
package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
)

// InstanceCreator creates HAL instances. hal backends and noop.API
// implement it.
type InstanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Option configures a Backend.
type Option func(*Backend)

// WithInstanceCreator overrides the HAL used to create the instance.
func WithInstanceCreator(c InstanceCreator) Option {
	return func(b *Backend) {
		b.creator = c
	}
}

// WithDeviceProvider makes every context share the host's device.
func WithDeviceProvider(p DeviceHandle) Option {
	return func(b *Backend) {
		b.provider = p
	}
}

// Register adds the GPU backend to r.
func Register(r *backend.Registry, opts ...Option) {
	r.Register(backend.NameWGPU, backend.PriorityGPU, func() backend.GraphicsBackend {
		return New(opts...)
	}, nil)
}

// Backend is the GPU GraphicsBackend.
type Backend struct {
	mu sync.Mutex

	creator  InstanceCreator
	provider DeviceHandle

	instance hal.Instance
	adapters []hal.ExposedAdapter

	hostDevice hal.Device
	hostQueue  hal.Queue

	shaders  *shaderSet
	format   gputypes.TextureFormat
	inited   bool
	contexts int
}

// New creates an uninitialized GPU backend.
func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements backend.GraphicsBackend.
func (b *Backend) Name() string {
	return backend.NameWGPU
}

// Init implements backend.GraphicsBackend. It compiles the shaders and
// either adopts the host device or creates an instance and enumerates
// adapters.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inited {
		return nil
	}

	shaders, err := compileShaders()
	if err != nil {
		return fmt.Errorf("wgpu: %w", err)
	}
	b.shaders = shaders
	b.format = surfaceFormat(b.provider)

	if b.provider != nil {
		device, queue, err := hostDevice(b.provider)
		if err != nil {
			return err
		}
		b.hostDevice, b.hostQueue = device, queue
		b.inited = true
		xlog.L().Info("wgpu: using host device")
		return nil
	}

	creator := b.creator
	if creator == nil {
		vk, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return ErrVulkanUnavailable
		}
		creator = vk
	}

	instance, err := creator.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoAdapter
	}

	b.instance = instance
	b.adapters = adapters
	b.inited = true
	xlog.L().Info("wgpu: initialized", "adapters", len(adapters), "adapter", adapters[0].Info.Name)
	return nil
}

// Probe implements backend.GraphicsBackend.
func (b *Backend) Probe() (capability.Capabilities, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inited {
		return capability.Capabilities{}, backend.ErrNotInitialized
	}

	limit := int(gputypes.DefaultLimits().MaxTextureDimension2D)
	caps := capability.Capabilities{
		Supported:           true,
		Version:             2,
		MaxTextureSize:      limit,
		MaxRenderbufferSize: limit,
		RendererName:        "host device",
	}
	if a := pickAdapter(b.adapters, false); a != nil {
		caps.RendererName = a.Info.Name
	} else if b.provider != nil {
		if name := b.provider.AdapterInfo().Name; name != "" {
			caps.RendererName = name
		}
	}
	return caps, nil
}

// NewContext implements backend.GraphicsBackend.
func (b *Backend) NewContext(s backend.Surface, opts backend.Options) (backend.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.inited {
		return nil, backend.ErrNotInitialized
	}
	if d, ok := s.(interface{ Detached() bool }); ok && d.Detached() {
		return nil, backend.ErrSurfaceDetached
	}
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", backend.ErrInvalidSize, w, h)
	}

	device, queue := b.hostDevice, b.hostQueue
	owns := false
	renderer := "host device"
	if device == nil {
		a := pickAdapter(b.adapters, opts.PowerPreference == backend.PowerLow)
		openDev, err := a.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
		if err != nil {
			return nil, fmt.Errorf("wgpu: open device: %w", err)
		}
		device, queue = openDev.Device, openDev.Queue
		owns = true
		renderer = a.Info.Name
	}

	limit := int(gputypes.DefaultLimits().MaxTextureDimension2D)
	caps := capability.Capabilities{
		Supported:           true,
		Version:             2,
		MaxTextureSize:      limit,
		MaxRenderbufferSize: limit,
		RendererName:        renderer,
	}
	caps.Tier = capability.Classify(caps)

	c, err := newContext(contextConfig{
		backend:  b,
		device:   device,
		queue:    queue,
		owns:     owns,
		surface:  s,
		opts:     opts,
		caps:     caps,
		format:   b.format,
		shaders:  b.shaders,
		maxLimit: limit,
	})
	if err != nil {
		if owns {
			device.Destroy()
		}
		return nil, err
	}
	b.contexts++

	xlog.L().Debug("wgpu: context created", "surface", s.ID(), "adapter", renderer,
		"width", w, "height", h, "samples", c.samples)
	return c, nil
}

// Contexts returns the number of live contexts.
func (b *Backend) Contexts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contexts
}

func (b *Backend) contextDestroyed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.contexts > 0 {
		b.contexts--
	}
}

// Close implements backend.GraphicsBackend. The host device, if any, is
// left untouched.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.adapters = nil
	b.hostDevice, b.hostQueue = nil, nil
	b.inited = false
}

var _ backend.GraphicsBackend = (*Backend)(nil)
