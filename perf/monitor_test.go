package perf

import (
	"testing"
	"time"
)

// run samples n frames spaced by step starting at start and returns the
// time of the last frame.
func run(m *Monitor, start time.Time, n int, step time.Duration) time.Time {
	now := start
	for i := 0; i < n; i++ {
		m.Sample(now)
		now = now.Add(step)
	}
	return now.Add(-step)
}

func TestMonitorInitialFPS(t *testing.T) {
	m := NewMonitor()
	if m.FPS() != TargetFPS {
		t.Errorf("FPS() = %d, want %d", m.FPS(), TargetFPS)
	}
	if m.AverageFrameTime() != 0 {
		t.Errorf("AverageFrameTime() = %v, want 0", m.AverageFrameTime())
	}
}

func TestMonitorFPS(t *testing.T) {
	tests := []struct {
		name string
		step time.Duration
		want int
	}{
		{"60 fps", 16666667 * time.Nanosecond, 60},
		{"20 fps", 50 * time.Millisecond, 20},
		{"10 fps", 100 * time.Millisecond, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			start := time.Unix(1000, 0)
			frames := int((time.Second+tt.step-1)/tt.step) + 1
			run(m, start, frames, tt.step)
			if got := m.FPS(); got != tt.want {
				t.Errorf("FPS() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonitorFirstSampleStartsClock(t *testing.T) {
	m := NewMonitor()
	m.Sample(time.Unix(5, 0))
	if m.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", m.Frames())
	}
	if m.AverageFrameTime() != 0 || m.FPS() != TargetFPS {
		t.Errorf("after first sample: avg = %v, fps = %d", m.AverageFrameTime(), m.FPS())
	}

	// Twenty more frames at 50ms close the first second at exactly 20 fps.
	now := time.Unix(5, 0)
	for range 20 {
		now = now.Add(50 * time.Millisecond)
		m.Sample(now)
	}
	if m.FPS() != 20 || m.Frames() != 21 {
		t.Errorf("FPS() = %d, Frames() = %d; want 20, 21", m.FPS(), m.Frames())
	}
}

func TestMonitorFPSNotUpdatedBeforeOneSecond(t *testing.T) {
	m := NewMonitor()
	run(m, time.Unix(0, 0), 10, 50*time.Millisecond)
	if m.FPS() != TargetFPS {
		t.Errorf("FPS() = %d, want %d before a full second", m.FPS(), TargetFPS)
	}
}

func TestMonitorRingEvictsOldest(t *testing.T) {
	m := NewMonitor()
	start := time.Unix(0, 0)
	// 61 samples at 100ms give 60 deltas of 100ms.
	last := run(m, start, RingSize+1, 100*time.Millisecond)
	if got := m.AverageFrameTime(); got != 100*time.Millisecond {
		t.Fatalf("AverageFrameTime() = %v, want 100ms", got)
	}
	// 60 more deltas of 10ms fully replace the buffer.
	now := last
	for i := 0; i < RingSize; i++ {
		now = now.Add(10 * time.Millisecond)
		m.Sample(now)
	}
	if got := m.AverageFrameTime(); got != 10*time.Millisecond {
		t.Errorf("AverageFrameTime() = %v, want 10ms", got)
	}
	if m.Frames() != uint64(2*RingSize+1) {
		t.Errorf("Frames() = %d, want %d", m.Frames(), 2*RingSize+1)
	}
}

func TestMonitorIsLow(t *testing.T) {
	m := NewMonitor()
	run(m, time.Unix(0, 0), 21, 50*time.Millisecond) // 20 fps
	if !m.IsLow(0) {
		t.Error("IsLow(default) = false at 20 fps")
	}
	if m.IsLow(15) {
		t.Error("IsLow(15) = true at 20 fps")
	}
}

func TestMonitorMemory(t *testing.T) {
	m := NewMonitor()
	c := MemoryCounters{Geometries: 3, Textures: 1, DrawCalls: 4, Triangles: 120}
	m.UpdateMemory(c)
	if m.Memory() != c {
		t.Errorf("Memory() = %+v, want %+v", m.Memory(), c)
	}
	if m.FPS() != TargetFPS {
		t.Error("memory counters must not affect FPS")
	}
}
