package vizctx

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/catalog"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/perf"
	"github.com/gogpu/vizctx/quality"
	"github.com/gogpu/vizctx/render"
	"github.com/gogpu/vizctx/scene"
)

// cameraPosition frames a model of about two units at the origin.
var cameraPosition = mgl32.Vec3{0, 2, 6}

const (
	gridSize      = 10
	gridDivisions = 20
)

var gridColor = color.RGBA{R: 90, G: 90, B: 96, A: 255}

// State is the lifecycle state of a Viewer.
type State int32

const (
	// StateMounting means setup is queued on the scheduler thread.
	StateMounting State = iota

	// StateRunning means the frame loop is scheduled.
	StateRunning

	// StateFailed is terminal: the viewer has no context and never retries.
	StateFailed

	// StateDisposed is terminal.
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateMounting:
		return "mounting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Props are the inputs of a Viewer.
type Props struct {
	// Design is a catalog design id such as "single-chamber".
	Design string

	// Interactive enables orbit input and click picking.
	Interactive bool

	ShowGrid   bool
	AutoRotate bool

	// RotationSpeed is the auto-rotation rate in radians per second.
	// Zero keeps the default.
	RotationSpeed float64

	// PerformanceMode pins the quality tier to Low.
	PerformanceMode bool

	// Params are the structural model parameters. Changing them rebuilds
	// the model.
	Params catalog.Params

	// PixelRatio is the device pixel ratio of the surface. Zero means 1.
	PixelRatio float64
}

// Callbacks receive viewer events on the scheduler thread. Nil callbacks
// are skipped.
type Callbacks struct {
	// OnLoad is called after each successful model build.
	OnLoad func()

	// OnError is called once per failure. Match the error with errors.Is
	// against the package errors.
	OnError func(error)

	// OnClick reports the component under a click on an interactive viewer.
	OnClick func(component string)
}

// Viewer is one mounted 3D view. Its methods are safe to call from any
// goroutine; they queue work for the scheduler thread.
type Viewer struct {
	id      string
	app     *App
	surface backend.Surface
	cb      Callbacks

	state atomic.Int32
	fps   atomic.Int32
	tier  atomic.Int32

	// Scheduler thread only.
	props    Props
	inst     *render.Instance
	loop     *render.Loop
	model    *scene.Node
	grid     *scene.Node
	frameErr bool
}

// Mount queues a viewer for surface. Setup, the first build and every
// callback run on the scheduler thread.
//
// The pool key is the surface ID, so remounting the same surface reuses its
// context while it is still pooled. A surface whose context was evicted is
// detached; mount a fresh surface instead. Mounting a surface that a running
// viewer still holds fails with ErrSurfaceInUse.
func (a *App) Mount(s backend.Surface, props Props, cb Callbacks) *Viewer {
	v := &Viewer{
		id:      uuid.NewString(),
		app:     a,
		surface: s,
		cb:      cb,
		props:   props,
	}
	v.tier.Store(int32(quality.Low))
	if !a.register(v) {
		v.state.Store(int32(StateFailed))
		v.emitError(ErrClosed)
		return v
	}
	a.sched.Post(v.mount)
	return v
}

// ID returns the viewer's unique id.
func (v *Viewer) ID() string { return v.id }

// State returns the lifecycle state.
func (v *Viewer) State() State { return State(v.state.Load()) }

// FPS returns the frame rate measured by the viewer's loop.
func (v *Viewer) FPS() int { return int(v.fps.Load()) }

// Tier returns the quality tier of the last frame.
func (v *Viewer) Tier() quality.Tier { return quality.Tier(v.tier.Load()) }

// SetProps queues new props. A changed Design or Params rebuilds the model
// from the frame loop's task queue.
func (v *Viewer) SetProps(p Props) {
	v.app.sched.Post(func() { v.setProps(p) })
}

// Click queues a pick at surface pixel (x, y). On a hit OnClick receives
// the component name.
func (v *Viewer) Click(x, y float64) {
	v.app.sched.Post(func() { v.click(x, y) })
}

// Dispose queues teardown: the frame loop is cancelled, the scene is
// released and the context reference is returned to the pool. It is
// idempotent.
func (v *Viewer) Dispose() {
	v.app.sched.Post(v.dispose)
}

// LastFrame returns the last frame's info and memory counters. It must run
// on the scheduler thread.
func (v *Viewer) LastFrame() (render.FrameInfo, perf.MemoryCounters) {
	if v.loop == nil {
		return render.FrameInfo{}, perf.MemoryCounters{}
	}
	return v.loop.LastFrame(), v.loop.Monitor().Memory()
}

// Snapshot reads back the last drawn frame. It must run on the scheduler
// thread.
func (v *Viewer) Snapshot() (*image.RGBA, error) {
	if v.inst == nil || v.State() != StateRunning {
		return nil, backend.ErrNoFrame
	}
	r, ok := v.inst.Context.(backend.PixelReader)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReadback, v.inst.Context.Backend())
	}
	return r.ReadPixels()
}

func (v *Viewer) mount() {
	if v.State() != StateMounting {
		return
	}
	a := v.app

	caps := a.prober.Probe()
	if !caps.Supported {
		v.fail(ErrUnsupportedPlatform)
		return
	}

	key := v.surface.ID()
	if key == "" {
		key = v.id
	}
	if e, ok := a.pool.Entry(key); ok && e.UseCount > 0 {
		v.fail(fmt.Errorf("%w: %s", ErrSurfaceInUse, key))
		return
	}
	opts := backend.DefaultOptions()
	if v.props.PixelRatio > 0 {
		opts.PixelRatio = v.props.PixelRatio
	}
	acq, err := a.pool.Acquire(key, backend.FactoryFor(a.backend, v.surface), opts)
	if err != nil {
		v.fail(err)
		return
	}

	root := scene.NewNode("viewer")
	v.grid = scene.NewMeshNode("grid", &scene.Mesh{
		Geometry: scene.NewGrid(gridSize, gridDivisions),
		Material: &scene.Material{Name: "grid", Color: gridColor, Opacity: 1, Wireframe: true},
	})
	v.grid.Visible = v.props.ShowGrid
	root.AddChild(v.grid)

	v.inst = render.NewInstance(key, acq.Context, root, scene.NewCamera(cameraPosition, 1), a.pool)
	v.loop = render.NewLoop(v.inst, a.sched, a.loopOptions(v)...)
	v.applyControls()
	v.applyPerformanceMode()
	v.tier.Store(int32(v.loop.Controller().Tier()))
	v.state.Store(int32(StateRunning))

	xlog.L().Info("vizctx: viewer mounted", "viewer", v.id, "key", key,
		"design", v.props.Design, "new_context", acq.IsNew)

	v.rebuild()
	v.loop.Start()
}

// rebuild replaces the model subtree, falling back on failure.
func (v *Viewer) rebuild() {
	if v.State() != StateRunning {
		return
	}
	fresh, err := v.app.catalog.RebuildNamed(v.inst.Root, v.model, v.props.Design, v.inst.Context, v.props.Params)
	v.model = fresh
	if err != nil {
		xlog.L().Warn("vizctx: showing fallback model", "viewer", v.id,
			"design", v.props.Design, "err", err)
		v.emitError(err)
		return
	}
	if v.cb.OnLoad != nil {
		v.cb.OnLoad()
	}
}

func (v *Viewer) setProps(p Props) {
	if v.State() != StateRunning {
		v.props = p
		return
	}
	old := v.props
	v.props = p

	if p.Design != old.Design || p.Params != old.Params {
		v.loop.Tasks().Push(v.rebuild)
	}
	v.grid.Visible = p.ShowGrid
	v.applyControls()
	if p.PerformanceMode != old.PerformanceMode {
		v.applyPerformanceMode()
	}
}

func (v *Viewer) applyControls() {
	p := v.props
	c := v.inst.Controls
	if c == nil {
		if !p.Interactive && !p.AutoRotate {
			return
		}
		c = scene.NewOrbitControls(v.inst.Camera)
		v.inst.Controls = c
	}
	c.Enabled = p.Interactive
	c.AutoRotate = p.AutoRotate
	if p.RotationSpeed > 0 {
		c.RotationSpeed = p.RotationSpeed
	}
}

func (v *Viewer) applyPerformanceMode() {
	c := v.loop.Controller()
	if v.props.PerformanceMode {
		c.SetAutoAdjust(false)
		c.SetTier(quality.Low)
		return
	}
	c.SetAutoAdjust(v.app.cfg.Quality.AutoAdjust)
}

func (v *Viewer) click(x, y float64) {
	if v.State() != StateRunning || !v.props.Interactive || v.cb.OnClick == nil {
		return
	}
	w, h := v.surface.Size()
	if w <= 0 || h <= 0 {
		return
	}
	nx := float32(2*x/float64(w) - 1)
	ny := float32(1 - 2*y/float64(h))
	n, ok := scene.Pick(v.inst.Root, v.inst.Camera, nx, ny)
	if !ok {
		return
	}
	if c := scene.ComponentOf(n); c != "" {
		v.cb.OnClick(c)
	}
}

func (v *Viewer) dispose() {
	if v.State() == StateDisposed {
		return
	}
	v.state.Store(int32(StateDisposed))
	if v.inst != nil {
		v.inst.Dispose()
	}
	v.app.forget(v)
	xlog.L().Debug("vizctx: viewer disposed", "viewer", v.id)
}

func (v *Viewer) fail(err error) {
	v.state.Store(int32(StateFailed))
	xlog.L().Warn("vizctx: viewer failed", "viewer", v.id, "err", err)
	v.emitError(err)
}

func (v *Viewer) frame(fi render.FrameInfo) {
	v.fps.Store(int32(fi.FPS))
	v.tier.Store(int32(fi.Tier))
	if fi.Err == nil {
		v.frameErr = false
	}
}

// frameError reports the first error of a run of failing frames.
func (v *Viewer) frameError(err error) {
	if errors.Is(err, render.ErrContextLost) {
		v.fail(err)
		return
	}
	if v.frameErr {
		return
	}
	v.frameErr = true
	v.emitError(err)
}

func (v *Viewer) emitError(err error) {
	if v.cb.OnError != nil {
		v.cb.OnError(err)
	}
}
