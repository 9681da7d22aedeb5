// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software is the bundled CPU rasterizer backend.
//
// It is always available and is selected when no GPU backend can be
// initialized. Frames are rasterized into an image.RGBA at the current
// resolution scale and resampled to the drawing buffer size with
// golang.org/x/image/draw.
package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
)

// RendererName is reported by Probe. It classifies as capability.TierLow.
const RendererName = "vizctx software rasterizer"

// MaxTextureSize bounds every buffer the rasterizer allocates.
const MaxTextureSize = 4096

// Register adds the software backend to r.
func Register(r *backend.Registry) {
	r.Register(backend.NameSoftware, backend.PrioritySoftware, func() backend.GraphicsBackend {
		return New()
	}, nil)
}

// Backend is the software GraphicsBackend.
type Backend struct {
	mu       sync.Mutex
	inited   bool
	contexts int
}

// New creates an uninitialized software backend.
func New() *Backend {
	return &Backend{}
}

// Name implements backend.GraphicsBackend.
func (b *Backend) Name() string {
	return backend.NameSoftware
}

// Init implements backend.GraphicsBackend. It never fails.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inited = true
	return nil
}

// Probe implements backend.GraphicsBackend.
func (b *Backend) Probe() (capability.Capabilities, error) {
	return capability.Capabilities{
		Supported:           true,
		Version:             2,
		MaxTextureSize:      MaxTextureSize,
		MaxRenderbufferSize: MaxTextureSize,
		RendererName:        RendererName,
	}, nil
}

// NewContext implements backend.GraphicsBackend.
func (b *Backend) NewContext(s backend.Surface, opts backend.Options) (backend.Context, error) {
	b.mu.Lock()
	inited := b.inited
	b.mu.Unlock()
	if !inited {
		return nil, backend.ErrNotInitialized
	}
	if d, ok := s.(interface{ Detached() bool }); ok && d.Detached() {
		return nil, backend.ErrSurfaceDetached
	}
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", backend.ErrInvalidSize, w, h)
	}

	caps, _ := b.Probe()
	caps.Tier = capability.Classify(caps)

	c := newContext(b, s, opts, caps)

	b.mu.Lock()
	b.contexts++
	b.mu.Unlock()

	xlog.L().Debug("software: context created", "surface", s.ID(), "width", w, "height", h,
		"antialias", opts.Antialias, "pixelRatio", opts.PixelRatio)
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

// Close implements backend.GraphicsBackend.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inited = false
}

var _ backend.GraphicsBackend = (*Backend)(nil)
