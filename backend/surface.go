// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"sync"

	"github.com/google/uuid"
)

// Surface is the mount point a context draws into.
type Surface interface {
	// ID uniquely identifies the mount point. Pools key entries by it.
	ID() string

	// Size returns the surface size in CSS-equivalent pixels.
	Size() (width, height int)

	// OnResize registers fn to be called after every size change and
	// returns a function that unregisters it.
	OnResize(fn func(width, height int)) (remove func())

	// Detach unbinds the surface from any drawing buffer. Idempotent.
	Detach()
}

// MemorySurface is a headless Surface. It is used by the CLI and tests and
// as the mount point of offscreen viewers.
//
// MemorySurface is safe for concurrent use.
type MemorySurface struct {
	id string

	mu        sync.Mutex
	width     int
	height    int
	detached  bool
	nextID    int
	listeners map[int]func(width, height int)
}

// NewMemorySurface creates a surface with a random id.
func NewMemorySurface(width, height int) *MemorySurface {
	return NewMemorySurfaceWithID(uuid.NewString(), width, height)
}

// NewMemorySurfaceWithID creates a surface with a caller-chosen id.
func NewMemorySurfaceWithID(id string, width, height int) *MemorySurface {
	return &MemorySurface{
		id:        id,
		width:     width,
		height:    height,
		listeners: make(map[int]func(width, height int)),
	}
}

// ID implements Surface.
func (s *MemorySurface) ID() string { return s.id }

// Size implements Surface.
func (s *MemorySurface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// OnResize implements Surface.
func (s *MemorySurface) OnResize(fn func(width, height int)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Resize changes the size and notifies listeners in registration order.
func (s *MemorySurface) Resize(width, height int) {
	s.mu.Lock()
	if s.width == width && s.height == height {
		s.mu.Unlock()
		return
	}
	s.width, s.height = width, height
	fns := make([]func(int, int), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(width, height)
	}
}

// Listeners returns the number of registered resize listeners.
func (s *MemorySurface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Detach implements Surface.
func (s *MemorySurface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

// Detached reports whether Detach was called.
func (s *MemorySurface) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// DrawingBufferSize returns the surface size in device pixels for the given
// pixel ratio and resolution scale. Each dimension is at least 1.
func DrawingBufferSize(s Surface, pixelRatio, scale float64) (width, height int) {
	w, h := s.Size()
	return ScaledSize(w, h, pixelRatio, scale)
}

// ScaledSize is DrawingBufferSize for an explicit surface size.
func ScaledSize(w, h int, pixelRatio, scale float64) (width, height int) {
	if pixelRatio < 1 {
		pixelRatio = 1
	}
	if scale <= 0 {
		scale = 1
	}
	width = int(float64(w)*pixelRatio*scale + 0.5)
	height = int(float64(h)*pixelRatio*scale + 0.5)
	return max(width, 1), max(height, 1)
}
