// Package catalog maps cell designs to scene builders.
//
// Builders are compiled in; only descriptor metadata (display name,
// housing material, initial transform, animation) can be overridden from a
// YAML file. A build that fails for any reason, including a panic in the
// builder, returns a *BuildError and the caller draws Fallback instead.
package catalog

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/scene"
)

// Catalog errors.
var (
	// ErrModelBuild is wrapped by every BuildError.
	ErrModelBuild = errors.New("catalog: model build failed")

	// ErrUnknownDesign is returned for design ids that are not registered.
	ErrUnknownDesign = errors.New("catalog: unknown design")
)

// BuildError reports a failed build of one design.
type BuildError struct {
	Design string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("catalog: build %q: %v", e.Design, e.Err)
}

// Unwrap returns both ErrModelBuild and the cause.
func (e *BuildError) Unwrap() []error { return []error{ErrModelBuild, e.Err} }

// DefaultVolumeML is the chamber volume used when Params.VolumeML is unset.
const DefaultVolumeML = 125.0

// Params are the structural inputs of a build. Changing them requires a
// Rebuild.
type Params struct {
	// VolumeML is the working volume of one chamber in millilitres.
	VolumeML float64
}

// ChamberSize returns the side of a cubic chamber of the given volume in
// scene units: 125 mL maps to 2 units.
func (p Params) ChamberSize() float32 {
	v := p.VolumeML
	if !(v > 0) {
		v = DefaultVolumeML
	}
	return float32(0.4 * math.Cbrt(v))
}

// Detail is the tessellation budget for a build.
type Detail struct {
	Segments  int
	Particles int
}

// DetailFor picks the tessellation budget for the hardware tier.
func DetailFor(caps capability.Capabilities) Detail {
	switch {
	case caps.Constrained():
		return Detail{Segments: 12, Particles: 40}
	case caps.Tier == capability.TierMedium:
		return Detail{Segments: 24, Particles: 120}
	default:
		return Detail{Segments: 48, Particles: 300}
	}
}

// Builder constructs the content of a design under a fresh root node.
type Builder func(root *scene.Node, p Params, d Detail) error

// MaterialConfig describes the housing material of a design.
type MaterialConfig struct {
	Color     color.RGBA
	Opacity   float32
	Wireframe bool
}

// Descriptor describes one design.
type Descriptor struct {
	ID               Design
	DisplayName      string
	Build            Builder
	Material         MaterialConfig
	InitialTransform scene.Transform

	// Animation, if set, is applied to the design root.
	Animation scene.Animation
}

// Registry maps designs to descriptors.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[Design]Descriptor
}

// NewRegistry returns a registry holding the built-in designs.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[Design]Descriptor)}
	for _, d := range builtins() {
		r.descriptors[d.ID] = d
	}
	return r
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.ID] = d
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id Design) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// Designs returns the registered designs in declaration order.
func (r *Registry) Designs() []Design {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Design
	for _, d := range Designs() {
		if _, ok := r.descriptors[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// BuildNamed parses name and builds it. A name that does not parse fails
// like an unregistered design.
func (r *Registry) BuildNamed(name string, ctx backend.Context, p Params) (*scene.Node, error) {
	id, err := ParseDesign(name)
	if err != nil {
		return nil, &BuildError{Design: name, Err: err}
	}
	return r.Build(id, ctx, p)
}

// Build constructs the scene for id. The tessellation detail follows the
// capabilities of ctx; a nil ctx builds at full detail.
func (r *Registry) Build(id Design, ctx backend.Context, p Params) (root *scene.Node, err error) {
	desc, ok := r.Lookup(id)
	if !ok || desc.Build == nil {
		return nil, &BuildError{Design: id.String(), Err: ErrUnknownDesign}
	}

	detail := DetailFor(capability.Capabilities{Supported: true, Tier: capability.TierHigh})
	if ctx != nil {
		detail = DetailFor(ctx.Capabilities())
	}

	root = scene.NewNode(id.String())
	root.Component = id.String()
	root.SetTransform(desc.InitialTransform)
	root.Animation = desc.Animation

	defer func() {
		if rec := recover(); rec != nil {
			scene.DisposeTree(root)
			root = nil
			err = &BuildError{Design: id.String(), Err: fmt.Errorf("builder panicked: %v", rec)}
		}
	}()
	if berr := desc.Build(root, p, detail); berr != nil {
		scene.DisposeTree(root)
		return nil, &BuildError{Design: id.String(), Err: berr}
	}
	applyHousing(root, desc.Material)

	xlog.L().Debug("catalog: built", "design", id.String(), "volume_ml", p.VolumeML,
		"segments", detail.Segments, "particles", detail.Particles)
	return root, nil
}

// Rebuild replaces old, a child of parent, with a fresh build. The old
// subtree is disposed first. On failure the fallback takes its place and
// the error is returned.
func (r *Registry) Rebuild(parent, old *scene.Node, id Design, ctx backend.Context, p Params) (*scene.Node, error) {
	if old != nil {
		scene.DisposeTree(old)
	}
	fresh, err := r.Build(id, ctx, p)
	if err != nil {
		fresh = Fallback()
	}
	switch {
	case old != nil && parent != nil && parent.ReplaceChild(old, fresh):
	case parent != nil:
		parent.AddChild(fresh)
	}
	return fresh, err
}

// RebuildNamed is Rebuild for a design name that may not parse.
func (r *Registry) RebuildNamed(parent, old *scene.Node, name string, ctx backend.Context, p Params) (*scene.Node, error) {
	id, err := ParseDesign(name)
	if err == nil {
		return r.Rebuild(parent, old, id, ctx, p)
	}
	if old != nil {
		scene.DisposeTree(old)
	}
	fresh := Fallback()
	switch {
	case old != nil && parent != nil && parent.ReplaceChild(old, fresh):
	case parent != nil:
		parent.AddChild(fresh)
	}
	return fresh, &BuildError{Design: name, Err: err}
}

// FallbackName is the name and component of the fallback node.
const FallbackName = "fallback"

// Fallback returns a wireframe unit box shown in place of a failed build.
func Fallback() *scene.Node {
	n := scene.NewMeshNode(FallbackName, &scene.Mesh{
		Geometry: scene.NewWireBox(1, 1, 1),
		Material: &scene.Material{
			Name:      FallbackName,
			Color:     color.RGBA{R: 255, G: 96, B: 64, A: 255},
			Opacity:   1,
			Wireframe: true,
		},
	})
	n.Component = FallbackName
	return n
}

// applyHousing sets the descriptor material on every node named
// housingName.
func applyHousing(root *scene.Node, m MaterialConfig) {
	root.Walk(func(n *scene.Node) bool {
		if n.Name == housingName && n.Mesh != nil && n.Mesh.Material != nil {
			n.Mesh.Material.Color = m.Color
			n.Mesh.Material.Opacity = m.Opacity
			n.Mesh.Material.Wireframe = m.Wireframe
		}
		return true
	})
}
