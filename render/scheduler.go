// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"sync"
	"time"
)

// FrameFunc is a scheduled frame callback.
type FrameFunc func(now time.Time)

// Handle identifies a requested frame. The zero Handle is never issued.
type Handle uint64

// Scheduler runs frame callbacks and posted tasks on a single execution
// thread.
type Scheduler interface {
	// RequestFrame schedules fn for the next frame.
	RequestFrame(fn FrameFunc) Handle

	// CancelFrame removes a pending frame. Cancelling a handle that already
	// ran or was never issued is a no-op.
	CancelFrame(h Handle)

	// Post queues fn to run on the frame thread before the next frame.
	Post(fn func())
}

type pendingFrame struct {
	handle Handle
	fn     FrameFunc
}

// queue is the state shared by both schedulers.
type queue struct {
	mu     sync.Mutex
	next   Handle
	frames []pendingFrame
	posted []func()
}

func (q *queue) RequestFrame(fn FrameFunc) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.frames = append(q.frames, pendingFrame{handle: q.next, fn: fn})
	return q.next
}

func (q *queue) CancelFrame(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, f := range q.frames {
		if f.handle == h {
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			return
		}
	}
}

func (q *queue) Post(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.posted = append(q.posted, fn)
}

// runOnce runs posted tasks, then every frame that was pending when the
// tick started. A frame cancelled by an earlier callback in the same tick
// does not run. It returns the number of frames run.
func (q *queue) runOnce(now time.Time) int {
	q.mu.Lock()
	posted := q.posted
	q.posted = nil
	q.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	q.mu.Lock()
	batch := make([]Handle, len(q.frames))
	for i, f := range q.frames {
		batch[i] = f.handle
	}
	q.mu.Unlock()

	ran := 0
	for _, h := range batch {
		fn := q.take(h)
		if fn == nil {
			continue
		}
		fn(now)
		ran++
	}
	return ran
}

// take removes and returns the frame h, or nil if it was cancelled.
func (q *queue) take(h Handle) FrameFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, f := range q.frames {
		if f.handle == h {
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			return f.fn
		}
	}
	return nil
}

func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// ManualScheduler runs frames only when Step is called. It is used by
// tests and the headless bench.
type ManualScheduler struct {
	queue
}

// NewManualScheduler creates an idle manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Step runs one tick at now and returns the number of frames run.
func (s *ManualScheduler) Step(now time.Time) int {
	return s.runOnce(now)
}

// Pending returns the number of requested frames.
func (s *ManualScheduler) Pending() int {
	return s.pending()
}

// TickerScheduler runs ticks from a time.Ticker on the goroutine that
// calls Run.
type TickerScheduler struct {
	queue
	interval time.Duration
	now      func() time.Time
}

// NewTickerScheduler creates a scheduler ticking every interval. A
// non-positive interval selects 60 ticks per second.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerScheduler{interval: interval, now: time.Now}
}

// Interval returns the tick interval.
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks until ctx is done. All frame callbacks and posted tasks run on
// the calling goroutine. Tasks posted after cancellation are not run.
func (s *TickerScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(s.now())
		}
	}
}

var (
	_ Scheduler = (*ManualScheduler)(nil)
	_ Scheduler = (*TickerScheduler)(nil)
)
