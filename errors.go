package vizctx

import (
	"errors"

	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/catalog"
	"github.com/gogpu/vizctx/pool"
	"github.com/gogpu/vizctx/render"
)

// Errors reported through Callbacks.OnError. Match them with errors.Is.
var (
	// ErrUnsupportedPlatform means no drawing context can be created at all.
	// The viewer fails permanently.
	ErrUnsupportedPlatform = capability.ErrUnsupportedPlatform

	// ErrContextCreation means the backend refused to create a context.
	// The viewer fails permanently.
	ErrContextCreation = pool.ErrContextCreation

	// ErrResourceExhausted means every pooled context is in use. The viewer
	// fails permanently; mount it again once other viewers are disposed.
	ErrResourceExhausted = pool.ErrResourceExhausted

	// ErrModelBuild means the design could not be built. The viewer keeps
	// running and shows a fallback primitive.
	ErrModelBuild = catalog.ErrModelBuild

	// ErrContextLost means the viewer's context was destroyed while it was
	// running, e.g. by Pool.Dispose. The viewer fails permanently.
	ErrContextLost = render.ErrContextLost
)

// ErrSurfaceInUse is reported when a surface is mounted while another
// running viewer still holds its context. The second viewer fails; dispose
// the first before remounting.
var ErrSurfaceInUse = errors.New("vizctx: surface already mounted")

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("vizctx: app closed")

// ErrNotRunnable is returned by Run when the scheduler has no Run method.
var ErrNotRunnable = errors.New("vizctx: scheduler is driven by the host")

// ErrNoReadback is returned by Viewer.Snapshot when the context cannot read
// pixels back.
var ErrNoReadback = errors.New("vizctx: context cannot read pixels")
