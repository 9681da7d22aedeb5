// Package perf samples frame timing for the adaptive quality controller.
package perf

import (
	"math"
	"time"
)

const (
	// RingSize is the number of frame durations kept for averaging.
	RingSize = 60

	// DefaultLowThreshold is the FPS below which IsLow reports true.
	DefaultLowThreshold = 30

	// TargetFPS is the reported rate before the first full second is measured.
	TargetFPS = 60

	fpsInterval = time.Second
)

// MemoryCounters are coarse diagnostic counts reported by the renderer.
// They are informational only and never feed the control loop.
type MemoryCounters struct {
	Geometries int
	Textures   int
	DrawCalls  int
	Triangles  int
}

// Monitor tracks frames per second and a rolling average frame time.
//
// Sample must be called exactly once per rendered frame. Monitor is not
// safe for concurrent use; it lives on the frame thread.
type Monitor struct {
	fps        int
	frames     int
	lastFPSAt  time.Time
	lastFrame  time.Time
	started    bool
	ring       [RingSize]time.Duration
	ringLen    int
	ringNext   int
	ringSum    time.Duration
	memory     MemoryCounters
	frameTotal uint64
}

// NewMonitor creates a monitor that reports TargetFPS until measured.
func NewMonitor() *Monitor {
	return &Monitor{fps: TargetFPS}
}

// Sample records a frame rendered at now.
func (m *Monitor) Sample(now time.Time) {
	m.frameTotal++
	// The first sample starts the FPS clock and the delta chain. The rate
	// window counts the frames completed after it, so N frames over one
	// second report N, not N+1.
	if !m.started {
		m.started = true
		m.lastFPSAt = now
		m.lastFrame = now
		return
	}

	m.frames++
	if elapsed := now.Sub(m.lastFPSAt); elapsed >= fpsInterval {
		ms := float64(elapsed) / float64(time.Millisecond)
		m.fps = int(math.Round(float64(m.frames) * 1000 / ms))
		m.frames = 0
		m.lastFPSAt = now
	}

	delta := now.Sub(m.lastFrame)
	m.lastFrame = now
	if delta < 0 {
		delta = 0
	}
	m.push(delta)
}

// push appends d to the ring, evicting the oldest entry when full.
func (m *Monitor) push(d time.Duration) {
	if m.ringLen == RingSize {
		m.ringSum -= m.ring[m.ringNext]
	} else {
		m.ringLen++
	}
	m.ring[m.ringNext] = d
	m.ringSum += d
	m.ringNext = (m.ringNext + 1) % RingSize
}

// FPS returns the frames per second measured over the last full second.
func (m *Monitor) FPS() int {
	return m.fps
}

// AverageFrameTime returns the arithmetic mean of the buffered frame durations.
func (m *Monitor) AverageFrameTime() time.Duration {
	if m.ringLen == 0 {
		return 0
	}
	return m.ringSum / time.Duration(m.ringLen)
}

// IsLow reports whether FPS is below threshold. A threshold <= 0 uses
// DefaultLowThreshold.
func (m *Monitor) IsLow(threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultLowThreshold
	}
	return m.fps < threshold
}

// Frames returns the total number of sampled frames.
func (m *Monitor) Frames() uint64 {
	return m.frameTotal
}

// UpdateMemory stores diagnostic counters.
func (m *Monitor) UpdateMemory(c MemoryCounters) {
	m.memory = c
}

// Memory returns the last counters passed to UpdateMemory.
func (m *Monitor) Memory() MemoryCounters {
	return m.memory
}
