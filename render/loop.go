// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"time"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/perf"
	"github.com/gogpu/vizctx/quality"
	"github.com/gogpu/vizctx/scene"
)

// maxFrameDelta caps the step fed to live attributes and controls after a
// stall.
const maxFrameDelta = 100 * time.Millisecond

// ErrContextLost is reported once when the context of a running loop was
// destroyed underneath it, e.g. by Pool.Dispose. The loop stops without
// drawing.
var ErrContextLost = errors.New("render: context destroyed while in use")

// FrameInfo describes one completed frame.
type FrameInfo struct {
	Frame       uint64
	Now         time.Time
	FPS         int
	FrameTime   time.Duration
	Tier        quality.Tier
	TierChanged bool
	Change      quality.Change
	Tasks       int
	Stats       backend.FrameStats
	Err         error
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxTasks sets how many queued tasks run per frame.
func WithMaxTasks(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxTasks = n
		}
	}
}

// WithMonitor replaces the loop's performance monitor.
func WithMonitor(m *perf.Monitor) Option {
	return func(l *Loop) {
		if m != nil {
			l.monitor = m
		}
	}
}

// WithController replaces the loop's quality controller. The controller
// should read its frame rate from the loop's monitor.
func WithController(c *quality.Controller) Option {
	return func(l *Loop) {
		if c != nil {
			l.quality = c
		}
	}
}

// WithQualityOptions configures the default quality controller.
func WithQualityOptions(opts ...quality.Option) Option {
	return func(l *Loop) {
		l.qualityOpts = append(l.qualityOpts, opts...)
	}
}

// WithInitialTier sets the starting tier of the default controller.
func WithInitialTier(t quality.Tier) Option {
	return func(l *Loop) {
		l.initialTier = &t
	}
}

// WithFrameHook calls fn after every frame.
func WithFrameHook(fn func(FrameInfo)) Option {
	return func(l *Loop) {
		l.onFrame = fn
	}
}

// WithErrorHandler calls fn for draw and settings errors. The loop keeps
// running.
func WithErrorHandler(fn func(error)) Option {
	return func(l *Loop) {
		l.onError = fn
	}
}

// Loop is the self-rescheduling frame callback of one Instance.
// It is not safe for concurrent use; it lives on the frame thread.
type Loop struct {
	inst  *Instance
	sched Scheduler

	monitor     *perf.Monitor
	quality     *quality.Controller
	qualityOpts []quality.Option
	initialTier *quality.Tier
	tasks       TaskQueue
	maxTasks    int

	applied    quality.Settings
	hasApplied bool

	// Structural groups whose last apply failed; retried every frame.
	retryShadows bool
	retryPost    bool

	start, last time.Time
	frames      uint64
	handle      Handle
	running     bool
	lastInfo    FrameInfo

	onFrame func(FrameInfo)
	onError func(error)
}

// InitialTier maps hardware capabilities to a starting quality tier.
func InitialTier(caps capability.Capabilities) quality.Tier {
	switch {
	case caps.Constrained():
		return quality.Low
	case caps.Tier == capability.TierMedium:
		return quality.Medium
	default:
		return quality.High
	}
}

// NewLoop creates a stopped loop for inst.
func NewLoop(inst *Instance, sched Scheduler, opts ...Option) *Loop {
	l := &Loop{
		inst:     inst,
		sched:    sched,
		monitor:  perf.NewMonitor(),
		maxTasks: DefaultMaxTasksPerFrame,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.quality == nil {
		tier := InitialTier(inst.Context.Capabilities())
		if l.initialTier != nil {
			tier = *l.initialTier
		}
		l.quality = quality.NewController(l.monitor, tier, l.qualityOpts...)
	}
	inst.loop = l
	return l
}

// Start requests the first frame. Starting a running loop or a loop whose
// instance is disposed does nothing.
func (l *Loop) Start() {
	if l.running || l.inst.disposed {
		return
	}
	l.running = true
	l.handle = l.sched.RequestFrame(l.frame)
}

// Stop cancels the pending frame. No frame of this loop runs after Stop
// returns on the frame thread.
func (l *Loop) Stop() {
	if !l.running {
		return
	}
	l.running = false
	if l.handle != 0 {
		l.sched.CancelFrame(l.handle)
		l.handle = 0
	}
}

// Running reports whether the loop is scheduled.
func (l *Loop) Running() bool { return l.running }

// Monitor returns the performance monitor.
func (l *Loop) Monitor() *perf.Monitor { return l.monitor }

// Controller returns the quality controller.
func (l *Loop) Controller() *quality.Controller { return l.quality }

// Tasks returns the per-frame task queue.
func (l *Loop) Tasks() *TaskQueue { return &l.tasks }

// Applied returns the settings last applied to the context. A structural
// group whose apply failed is retried on the next frame.
func (l *Loop) Applied() (quality.Settings, bool) { return l.applied, l.hasApplied }

// LastFrame returns the info of the last completed frame.
func (l *Loop) LastFrame() FrameInfo { return l.lastInfo }

func (l *Loop) frame(now time.Time) {
	l.handle = 0
	if !l.running {
		return
	}
	inst := l.inst
	if inst.Context.Destroyed() {
		l.Stop()
		l.fail(ErrContextLost)
		return
	}
	info := FrameInfo{Now: now}

	l.monitor.Sample(now)
	info.Tier, info.TierChanged = l.quality.Update()
	if info.TierChanged {
		xlog.L().Debug("render: quality tier changed", "key", inst.Key,
			"tier", info.Tier.String(), "fps", l.monitor.FPS())
	}

	var err error
	info.Change, err = l.apply(l.quality.Settings())
	if err != nil {
		l.fail(err)
		info.Err = err
	}

	var dt time.Duration
	if !l.last.IsZero() {
		dt = min(now.Sub(l.last), maxFrameDelta)
	}
	if l.start.IsZero() {
		l.start = now
	}
	l.last = now
	scene.Animate(inst.Root, now.Sub(l.start).Seconds())
	scene.StepLive(inst.Root, dt.Seconds())
	info.Tasks = l.tasks.Run(l.maxTasks)
	if !l.running {
		// A task disposed the instance.
		return
	}

	if inst.Controls != nil {
		inst.Controls.Update(dt.Seconds())
	}

	stats, err := inst.Context.Draw(inst.Root, inst.Camera)
	if err != nil {
		l.fail(err)
		info.Err = err
	}
	info.Stats = stats
	l.monitor.UpdateMemory(perf.MemoryCounters{
		Geometries: scene.Count(inst.Root).Geometries,
		Textures:   stats.Textures,
		DrawCalls:  stats.DrawCalls,
		Triangles:  stats.Triangles,
	})

	l.frames++
	info.Frame = l.frames
	info.FPS = l.monitor.FPS()
	info.FrameTime = l.monitor.AverageFrameTime()
	l.lastInfo = info
	if l.onFrame != nil {
		l.onFrame(info)
	}

	if l.running {
		l.handle = l.sched.RequestFrame(l.frame)
	}
}

// apply pushes the settings groups that differ from the last applied
// record to the context. The first call applies everything.
func (l *Loop) apply(s quality.Settings) (quality.Change, error) {
	change := quality.Change{Live: true, Shadows: true, PostProcess: true}
	if l.hasApplied {
		change = s.Diff(l.applied)
	}
	change.Shadows = change.Shadows || l.retryShadows
	change.PostProcess = change.PostProcess || l.retryPost
	if change.None() {
		return change, nil
	}

	ctx := l.inst.Context
	if change.Live {
		ctx.SetResolutionScale(s.ResolutionScale)
		ctx.SetMaxLights(s.MaxLights)
	}
	var firstErr error
	if change.Shadows {
		err := ctx.RebuildShadows(s.Shadows, s.ShadowResolution)
		l.retryShadows = err != nil
		if err != nil {
			firstErr = err
		}
	}
	if change.PostProcess {
		err := ctx.SetPostProcessing(s.PostProcessing)
		l.retryPost = err != nil
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if change.CreationOnly {
		xlog.L().Debug("render: antialias change deferred to next context", "key", l.inst.Key,
			"antialias", s.Antialias)
	}
	l.applied = s
	l.hasApplied = true

	xlog.L().Debug("render: settings applied", "key", l.inst.Key,
		"live", change.Live, "shadows", change.Shadows, "post", change.PostProcess,
		"scale", s.ResolutionScale)
	return change, firstErr
}

func (l *Loop) fail(err error) {
	xlog.L().Warn("render: frame error", "key", l.inst.Key, "err", err)
	if l.onError != nil {
		l.onError(err)
	}
}
