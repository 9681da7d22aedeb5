// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/quality"
	"github.com/gogpu/vizctx/scene"
)

type shadowCall struct {
	Enabled    bool
	Resolution int
}

// recordingContext is a backend.Context that records the calls made by the
// loop.
type recordingContext struct {
	surface *backend.MemorySurface
	caps    capability.Capabilities

	scales    []float64
	lights    []int
	shadows   []shadowCall
	post      []bool
	resizes   [][2]int
	draws     int
	drawErr   error
	destroyed bool

	// shadowFailures makes the next n RebuildShadows calls fail.
	shadowFailures int
}

func newRecordingContext(tier capability.Tier) *recordingContext {
	return &recordingContext{
		surface: backend.NewMemorySurface(64, 32),
		caps:    capability.Capabilities{Supported: true, Version: 2, Tier: tier},
	}
}

func (c *recordingContext) Backend() string                       { return "recording" }
func (c *recordingContext) Surface() backend.Surface              { return c.surface }
func (c *recordingContext) Options() backend.Options              { return backend.DefaultOptions() }
func (c *recordingContext) Capabilities() capability.Capabilities { return c.caps }
func (c *recordingContext) Resize(w, h int)                       { c.resizes = append(c.resizes, [2]int{w, h}) }
func (c *recordingContext) SetResolutionScale(s float64)          { c.scales = append(c.scales, s) }
func (c *recordingContext) SetMaxLights(n int)                    { c.lights = append(c.lights, n) }
func (c *recordingContext) Destroy()                              { c.destroyed = true }
func (c *recordingContext) Destroyed() bool                       { return c.destroyed }

func (c *recordingContext) RebuildShadows(enabled bool, resolution int) error {
	c.shadows = append(c.shadows, shadowCall{enabled, resolution})
	if c.shadowFailures > 0 {
		c.shadowFailures--
		return errShadowAlloc
	}
	return nil
}

func (c *recordingContext) SetPostProcessing(enabled bool) error {
	c.post = append(c.post, enabled)
	return nil
}

func (c *recordingContext) Draw(root *scene.Node, _ *scene.Camera) (backend.FrameStats, error) {
	c.draws++
	if c.drawErr != nil {
		return backend.FrameStats{}, c.drawErr
	}
	s := scene.Count(root)
	return backend.FrameStats{DrawCalls: s.DrawCalls, Triangles: s.Triangles}, nil
}

var errShadowAlloc = errors.New("shadow map allocation failed")

type countingReleaser struct {
	keys []string
}

func (r *countingReleaser) Release(key string) { r.keys = append(r.keys, key) }

func newTestInstance(t *testing.T, tier capability.Tier) (*Instance, *recordingContext, *countingReleaser) {
	t.Helper()
	ctx := newRecordingContext(tier)
	root := scene.NewNode("root")
	root.AddChild(scene.NewMeshNode("box", &scene.Mesh{
		Geometry: scene.NewBox(1, 1, 1),
		Material: &scene.Material{Opacity: 1},
	}))
	rel := &countingReleaser{}
	cam := scene.NewCamera(mgl32.Vec3{0, 2, 6}, 1)
	return NewInstance("k1", ctx, root, cam, rel), ctx, rel
}

func stepN(s *ManualScheduler, start time.Time, from, n int, interval time.Duration) time.Time {
	var now time.Time
	for i := from; i < from+n; i++ {
		now = start.Add(time.Duration(i) * interval)
		s.Step(now)
	}
	return now
}

func TestLoopFirstFrameAppliesAllSettings(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	l := NewLoop(inst, sched)
	l.Start()

	sched.Step(time.Unix(100, 0))

	want := quality.SettingsFor(quality.High)
	if diff := cmp.Diff([]float64{want.ResolutionScale}, ctx.scales); diff != "" {
		t.Errorf("scales (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{want.MaxLights}, ctx.lights); diff != "" {
		t.Errorf("lights (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]shadowCall{{true, want.ShadowResolution}}, ctx.shadows); diff != "" {
		t.Errorf("shadows (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true}, ctx.post); diff != "" {
		t.Errorf("post (-want +got):\n%s", diff)
	}
	if ctx.draws != 1 {
		t.Errorf("draws = %d, want 1", ctx.draws)
	}
	if got, ok := l.Applied(); !ok || got != want {
		t.Errorf("Applied() = %+v, %v", got, ok)
	}
	info := l.LastFrame()
	if info.Frame != 1 || info.Stats.DrawCalls != 1 || info.Stats.Triangles != 12 {
		t.Errorf("LastFrame() = %+v", info)
	}
	if !l.Running() || sched.Pending() != 1 {
		t.Errorf("loop did not reschedule: running=%v pending=%d", l.Running(), sched.Pending())
	}

	// Unchanged settings are not reapplied.
	sched.Step(time.Unix(100, int64(16*time.Millisecond)))
	if len(ctx.scales) != 1 || len(ctx.shadows) != 1 || len(ctx.post) != 1 {
		t.Errorf("settings reapplied without change: %d %d %d", len(ctx.scales), len(ctx.shadows), len(ctx.post))
	}
	if ctx.draws != 2 {
		t.Errorf("draws = %d, want 2", ctx.draws)
	}
	l.Stop()
}

func TestLoopDowngradesOneTierPerCooldown(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	var changes []quality.Tier
	l := NewLoop(inst, sched,
		WithQualityOptions(quality.WithCooldown(5)),
		WithFrameHook(func(fi FrameInfo) {
			if fi.TierChanged {
				changes = append(changes, fi.Tier)
			}
		}))
	l.Start()

	// 20 FPS: every frame takes 50ms.
	stepN(sched, time.Unix(0, 0), 0, 60, 50*time.Millisecond)
	l.Stop()

	if diff := cmp.Diff([]quality.Tier{quality.Medium, quality.Low}, changes); diff != "" {
		t.Errorf("tier changes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 0.75, 0.5}, ctx.scales); diff != "" {
		t.Errorf("scales (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{8, 4, 2}, ctx.lights); diff != "" {
		t.Errorf("lights (-want +got):\n%s", diff)
	}
	wantShadows := []shadowCall{{true, 2048}, {true, 1024}, {false, 512}}
	if diff := cmp.Diff(wantShadows, ctx.shadows); diff != "" {
		t.Errorf("shadows (-want +got):\n%s", diff)
	}
	// Medium and Low both disable post-processing, so Low does not touch it.
	if diff := cmp.Diff([]bool{true, false}, ctx.post); diff != "" {
		t.Errorf("post (-want +got):\n%s", diff)
	}
	if ctx.draws != 60 {
		t.Errorf("draws = %d, want 60", ctx.draws)
	}
}

func TestLoopInitialTier(t *testing.T) {
	tests := []struct {
		name string
		caps capability.Capabilities
		want quality.Tier
	}{
		{"unsupported", capability.Capabilities{}, quality.Low},
		{"low", capability.Capabilities{Supported: true, Tier: capability.TierLow}, quality.Low},
		{"medium", capability.Capabilities{Supported: true, Tier: capability.TierMedium}, quality.Medium},
		{"high", capability.Capabilities{Supported: true, Tier: capability.TierHigh}, quality.High},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialTier(tt.caps); got != tt.want {
				t.Errorf("InitialTier() = %v, want %v", got, tt.want)
			}
		})
	}

	inst, _, _ := newTestInstance(t, capability.TierMedium)
	if got := NewLoop(inst, NewManualScheduler()).Controller().Tier(); got != quality.Medium {
		t.Errorf("default controller tier = %v, want medium", got)
	}
	inst, _, _ = newTestInstance(t, capability.TierMedium)
	if got := NewLoop(inst, NewManualScheduler(), WithInitialTier(quality.Low)).Controller().Tier(); got != quality.Low {
		t.Errorf("WithInitialTier controller tier = %v, want low", got)
	}
}

func TestLoopStopIsSynchronous(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	l := NewLoop(inst, sched)
	l.Start()
	l.Start()
	if sched.Pending() != 1 {
		t.Fatalf("double Start scheduled %d frames", sched.Pending())
	}

	sched.Step(time.Unix(0, 0))
	l.Stop()
	if sched.Pending() != 0 {
		t.Errorf("Pending() after Stop = %d", sched.Pending())
	}
	sched.Step(time.Unix(1, 0))
	if ctx.draws != 1 {
		t.Errorf("frame ran after Stop: draws = %d", ctx.draws)
	}

	l.Start()
	sched.Step(time.Unix(2, 0))
	if ctx.draws != 2 {
		t.Errorf("restart draws = %d, want 2", ctx.draws)
	}
	l.Stop()
}

func TestLoopStopFromFrameHook(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	var l *Loop
	l = NewLoop(inst, sched, WithFrameHook(func(FrameInfo) { l.Stop() }))
	l.Start()

	sched.Step(time.Unix(0, 0))
	sched.Step(time.Unix(1, 0))
	if ctx.draws != 1 || sched.Pending() != 0 {
		t.Errorf("draws = %d, pending = %d", ctx.draws, sched.Pending())
	}
}

func TestLoopTasksBoundedPerFrame(t *testing.T) {
	inst, _, _ := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	l := NewLoop(inst, sched, WithMaxTasks(3))
	ran := 0
	for i := 0; i < 7; i++ {
		l.Tasks().Push(func() { ran++ })
	}
	l.Start()

	var perFrame []int
	for i := 0; i < 4; i++ {
		sched.Step(time.Unix(int64(i), 0))
		perFrame = append(perFrame, l.LastFrame().Tasks)
	}
	l.Stop()

	if diff := cmp.Diff([]int{3, 3, 1, 0}, perFrame); diff != "" {
		t.Errorf("tasks per frame (-want +got):\n%s", diff)
	}
	if ran != 7 {
		t.Errorf("ran = %d, want 7", ran)
	}
}

func TestLoopTaskDisposingInstanceSkipsDraw(t *testing.T) {
	inst, ctx, rel := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	l := NewLoop(inst, sched)
	l.Tasks().Push(inst.Dispose)
	l.Start()

	sched.Step(time.Unix(0, 0))
	if ctx.draws != 0 {
		t.Errorf("draws = %d after dispose, want 0", ctx.draws)
	}
	if sched.Pending() != 0 || l.Running() {
		t.Errorf("loop still scheduled after dispose")
	}
	if len(rel.keys) != 1 {
		t.Errorf("Release called %d times", len(rel.keys))
	}
}

func TestLoopAdvancesAnimations(t *testing.T) {
	inst, _, _ := newTestInstance(t, capability.TierHigh)
	spinner := inst.Root.Find("box")
	spinner.Animation = scene.Rotate{Speed: 1}
	sched := NewManualScheduler()
	l := NewLoop(inst, sched)
	l.Start()

	start := time.Unix(10, 0)
	sched.Step(start)
	if got := spinner.Transform.Rotation[1]; got != 0 {
		t.Errorf("rotation at start = %v, want 0", got)
	}
	sched.Step(start.Add(500 * time.Millisecond))
	if got := spinner.Transform.Rotation[1]; got != 0.5 {
		t.Errorf("rotation after 0.5s = %v, want 0.5", got)
	}
	l.Stop()
}

func TestLoopDrawErrorReported(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	ctx.drawErr = errors.New("device lost")
	sched := NewManualScheduler()
	var errs []error
	l := NewLoop(inst, sched, WithErrorHandler(func(err error) { errs = append(errs, err) }))
	l.Start()

	sched.Step(time.Unix(0, 0))
	sched.Step(time.Unix(1, 0))
	l.Stop()

	if len(errs) != 2 {
		t.Fatalf("onError called %d times, want 2", len(errs))
	}
	if !errors.Is(errs[0], ctx.drawErr) {
		t.Errorf("err = %v", errs[0])
	}
	if !errors.Is(l.LastFrame().Err, ctx.drawErr) {
		t.Errorf("LastFrame().Err = %v", l.LastFrame().Err)
	}
}

func TestLoopRetriesFailedShadowRebuild(t *testing.T) {
	inst, ctx, _ := newTestInstance(t, capability.TierHigh)
	ctx.shadowFailures = 1
	sched := NewManualScheduler()
	var errs []error
	l := NewLoop(inst, sched, WithErrorHandler(func(err error) { errs = append(errs, err) }))
	l.Start()

	stepN(sched, time.Unix(0, 0), 0, 10, 16*time.Millisecond)
	l.Stop()

	if len(errs) != 1 || !errors.Is(errs[0], errShadowAlloc) {
		t.Errorf("errors = %v, want one shadow failure", errs)
	}
	want := []shadowCall{{true, 2048}, {true, 2048}}
	if diff := cmp.Diff(want, ctx.shadows); diff != "" {
		t.Errorf("shadow rebuilds (-want +got):\n%s", diff)
	}
	// Live and post-processing settings succeeded and are not reapplied.
	if len(ctx.scales) != 1 || len(ctx.post) != 1 {
		t.Errorf("scales = %v, post = %v, want one call each", ctx.scales, ctx.post)
	}
	if ctx.draws != 10 {
		t.Errorf("draws = %d, want 10", ctx.draws)
	}
}

func TestLoopStopsOnDestroyedContext(t *testing.T) {
	inst, ctx, rel := newTestInstance(t, capability.TierHigh)
	sched := NewManualScheduler()
	var errs []error
	l := NewLoop(inst, sched, WithErrorHandler(func(err error) { errs = append(errs, err) }))
	l.Start()

	sched.Step(time.Unix(0, 0))
	ctx.Destroy()
	sched.Step(time.Unix(1, 0))
	sched.Step(time.Unix(2, 0))

	if ctx.draws != 1 {
		t.Errorf("draws = %d, want 1", ctx.draws)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrContextLost) {
		t.Errorf("errors = %v, want one ErrContextLost", errs)
	}
	if l.Running() || sched.Pending() != 0 {
		t.Errorf("loop still scheduled: running=%v pending=%d", l.Running(), sched.Pending())
	}

	inst.Dispose()
	if len(rel.keys) != 1 {
		t.Errorf("Release called %d times, want 1", len(rel.keys))
	}
}

func TestInstanceResizeAndDispose(t *testing.T) {
	inst, ctx, rel := newTestInstance(t, capability.TierHigh)
	if got := inst.Camera.Aspect; got != 2 {
		t.Errorf("initial aspect = %v, want 2", got)
	}
	if ctx.surface.Listeners() != 1 {
		t.Fatalf("Listeners() = %d, want 1", ctx.surface.Listeners())
	}

	ctx.surface.Resize(30, 60)
	if diff := cmp.Diff([][2]int{{30, 60}}, ctx.resizes); diff != "" {
		t.Errorf("resizes (-want +got):\n%s", diff)
	}
	if got := inst.Camera.Aspect; got != 0.5 {
		t.Errorf("aspect after resize = %v, want 0.5", got)
	}

	sched := NewManualScheduler()
	l := NewLoop(inst, sched)
	l.Start()
	geom := inst.Root.Find("box").Mesh.Geometry

	inst.Dispose()
	inst.Dispose()

	if !inst.Disposed() || l.Running() || sched.Pending() != 0 {
		t.Errorf("disposed=%v running=%v pending=%d", inst.Disposed(), l.Running(), sched.Pending())
	}
	if !geom.Disposed() {
		t.Error("geometry not disposed")
	}
	if ctx.surface.Listeners() != 0 {
		t.Errorf("Listeners() after Dispose = %d", ctx.surface.Listeners())
	}
	if diff := cmp.Diff([]string{"k1"}, rel.keys); diff != "" {
		t.Errorf("released keys (-want +got):\n%s", diff)
	}
	if ctx.destroyed {
		t.Error("Dispose destroyed the shared context")
	}

	// Late resize events are ignored.
	ctx.surface.Resize(10, 10)
	if len(ctx.resizes) != 1 {
		t.Errorf("resize after dispose reached context")
	}
	l.Start()
	if sched.Pending() != 0 {
		t.Error("Start scheduled a frame for a disposed instance")
	}
}
