// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/vizctx/internal/xlog"
)

// Standard priorities.
const (
	// PriorityGPU is used by hardware backends.
	PriorityGPU = 100

	// PrioritySoftware is used by the bundled CPU rasterizer.
	PrioritySoftware = 10
)

// BackendFactory creates an uninitialized backend.
type BackendFactory func() GraphicsBackend

// RegistryEntry represents a registered backend.
type RegistryEntry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	Priority int

	// Factory creates backend instances.
	Factory BackendFactory

	// Available reports if the backend can run on this system.
	Available func() bool
}

// Registry holds the backends an application may select from.
//
// Registries are explicitly constructed; there is no process-wide default.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a backend. If available is nil, the backend is assumed
// always available. Registering a name that already exists replaces the
// previous entry.
func (r *Registry) Register(name string, priority int, factory BackendFactory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*RegistryEntry)
	}
	if available == nil {
		available = func() bool { return true }
	}

	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// List returns all registered backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns names of all available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// Get returns a copy of a registered entry.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	entryCopy := *entry
	return &entryCopy, true
}

// Select creates and initializes a backend.
//
// With a non-empty name only that backend is tried. Otherwise available
// backends are tried in priority order and the first one whose Init
// succeeds is returned.
func (r *Registry) Select(name string) (GraphicsBackend, error) {
	if name != "" {
		return r.open(name)
	}

	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, ErrNoBackendAvailable
	}

	var errs []error
	for _, n := range available {
		b, err := r.open(n)
		if err == nil {
			return b, nil
		}
		xlog.L().Warn("backend: init failed, trying next", "backend", n, "err", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackendAvailable, errors.Join(errs...))
}

func (r *Registry) open(name string) (GraphicsBackend, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}

	b := entry.Factory()
	if b == nil {
		return nil, &BackendUnavailableError{Name: name}
	}
	if err := b.Init(); err != nil {
		b.Close()
		return nil, &InitError{Name: name, Err: err}
	}
	xlog.L().Info("backend: selected", "backend", name)
	return b, nil
}

// sortedNames returns backend names sorted by priority (highest first),
// ties by name. Must be called with lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	type entry struct {
		name     string
		priority int
	}

	entries := make([]entry, 0, len(r.entries))
	for name, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, entry{name: name, priority: e.Priority})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].name < entries[j].name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// ErrNoBackendAvailable is returned when no backend is registered or none
// could be initialized.
var ErrNoBackendAvailable = errors.New("backend: no backend available")

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "backend: not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but is not available.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "backend: unavailable: " + e.Name
}

// InitError wraps a failed Init.
type InitError struct {
	Name string
	Err  error
}

func (e *InitError) Error() string {
	return "backend: init " + e.Name + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
