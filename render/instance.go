// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/scene"
)

// Releaser takes back a context reference. *pool.Pool implements it.
type Releaser interface {
	Release(key string)
}

// Instance is one mounted scene: it owns its scene graph and camera and
// references its drawing context through the pool key.
type Instance struct {
	Key      string
	Context  backend.Context
	Root     *scene.Node
	Camera   *scene.Camera
	Controls *scene.OrbitControls

	releaser     Releaser
	loop         *Loop
	removeResize func()
	disposed     bool
}

// NewInstance binds root and cam to ctx. The context's surface resize
// events resize the context and update the camera aspect; hosts must
// resize the surface on the frame thread.
func NewInstance(key string, ctx backend.Context, root *scene.Node, cam *scene.Camera, releaser Releaser) *Instance {
	inst := &Instance{
		Key:      key,
		Context:  ctx,
		Root:     root,
		Camera:   cam,
		releaser: releaser,
	}
	if s := ctx.Surface(); s != nil {
		w, h := s.Size()
		if cam != nil {
			cam.SetAspect(w, h)
		}
		inst.removeResize = s.OnResize(inst.resize)
	}
	return inst
}

func (inst *Instance) resize(w, h int) {
	if inst.disposed {
		return
	}
	inst.Context.Resize(w, h)
	if inst.Camera != nil {
		inst.Camera.SetAspect(w, h)
	}
}

// Loop returns the loop driving the instance, or nil.
func (inst *Instance) Loop() *Loop {
	return inst.loop
}

// Disposed reports whether Dispose has run.
func (inst *Instance) Disposed() bool {
	return inst.disposed
}

// Dispose stops the loop, disposes every geometry and material of the
// scene, detaches the resize listener and releases the context reference,
// in that order. It is idempotent and must run on the frame thread.
func (inst *Instance) Dispose() {
	if inst.disposed {
		return
	}
	inst.disposed = true

	if inst.loop != nil {
		inst.loop.Stop()
	}
	stats := scene.DisposeTree(inst.Root)
	if inst.removeResize != nil {
		inst.removeResize()
		inst.removeResize = nil
	}
	if inst.releaser != nil {
		inst.releaser.Release(inst.Key)
	}
	xlog.L().Debug("render: instance disposed", "key", inst.Key,
		"geometries", stats.Geometries, "materials", stats.Materials)
}
