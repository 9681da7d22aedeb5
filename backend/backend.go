// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"image"

	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/scene"
)

// Standard backend names.
const (
	// NameSoftware is the bundled CPU rasterizer.
	NameSoftware = "software"

	// NameWGPU is the HAL device backend.
	NameWGPU = "wgpu"
)

// Common errors.
var (
	// ErrNotInitialized is returned when a backend is used before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrContextDestroyed is returned by operations on a destroyed context.
	ErrContextDestroyed = errors.New("backend: context destroyed")

	// ErrSurfaceDetached is returned when creating a context on a detached
	// surface.
	ErrSurfaceDetached = errors.New("backend: surface detached")

	// ErrInvalidSize is returned for a zero or negative surface size.
	ErrInvalidSize = errors.New("backend: invalid surface size")

	// ErrNoFrame is returned by ReadPixels before the first Draw.
	ErrNoFrame = errors.New("backend: no frame drawn")
)

// PowerPreference hints which adapter a backend should favour.
type PowerPreference string

const (
	// PowerLow prefers integrated or software adapters.
	PowerLow PowerPreference = "low-power"

	// PowerHigh prefers discrete adapters.
	PowerHigh PowerPreference = "high-performance"
)

// Options is the creation-time options bag for a context.
type Options struct {
	Antialias       bool
	Alpha           bool
	PowerPreference PowerPreference

	// PixelRatio is the device pixel ratio. Values below 1 are treated as 1.
	PixelRatio float64
}

// DefaultOptions returns the options requested when the caller has no
// preference. The pool tunes them against probed capabilities.
func DefaultOptions() Options {
	return Options{
		Antialias:       true,
		Alpha:           true,
		PowerPreference: PowerHigh,
		PixelRatio:      1,
	}
}

// FrameStats are counters for one drawn frame.
type FrameStats struct {
	DrawCalls int
	Triangles int

	// Textures is the number of GPU textures the context currently holds.
	Textures int
}

// Context is a live drawing context bound to one Surface.
//
// A Context is owned by exactly one pool entry. Destroy is idempotent; every
// other method except Destroyed returns ErrContextDestroyed (or does nothing)
// after Destroy.
type Context interface {
	// Backend returns the name of the backend that created the context.
	Backend() string

	Surface() Surface
	Options() Options
	Capabilities() capability.Capabilities

	// Resize changes the drawing buffer size in surface pixels.
	Resize(width, height int)

	// SetResolutionScale scales the internal render resolution.
	// Live: takes effect on the next Draw.
	SetResolutionScale(scale float64)

	// SetMaxLights bounds the number of lights evaluated per fragment.
	SetMaxLights(n int)

	// RebuildShadows recreates the shadow-map sub-resources only.
	RebuildShadows(enabled bool, resolution int) error

	// SetPostProcessing creates or releases the post-processing target.
	SetPostProcessing(enabled bool) error

	// Draw renders the visible part of root as seen by cam.
	Draw(root *scene.Node, cam *scene.Camera) (FrameStats, error)

	Destroy()
	Destroyed() bool
}

// PixelReader is implemented by contexts whose last frame can be read back.
type PixelReader interface {
	// ReadPixels returns a copy of the last drawn frame at drawing buffer
	// size.
	ReadPixels() (*image.RGBA, error)
}

// GraphicsBackend creates drawing contexts for one graphics runtime.
type GraphicsBackend interface {
	Name() string

	// Init loads the runtime. It is called once, before the first frame.
	Init() error

	// Probe reports what the runtime supports. Backends may be probed
	// before NewContext and are usually wrapped in a capability.Prober.
	Probe() (capability.Capabilities, error)

	NewContext(s Surface, opts Options) (Context, error)

	// Close releases runtime resources. Contexts must be destroyed first.
	Close()
}

// Factory creates a context with already tuned options.
type Factory func(opts Options) (Context, error)

// FactoryFor binds a backend to a surface.
func FactoryFor(b GraphicsBackend, s Surface) Factory {
	return func(opts Options) (Context, error) {
		return b.NewContext(s, opts)
	}
}

// ProbeFunc adapts b to a capability probe.
func ProbeFunc(b GraphicsBackend) capability.ProbeFunc {
	return b.Probe
}
