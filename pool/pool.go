// Package pool bounds the number of live drawing contexts.
//
// Contexts are keyed, reference counted and evicted least-recently-used
// first. A released context is kept alive until the pool needs its slot, so
// a quick remount of the same key reuses it. An entry that is still in use
// is never evicted: when the pool is full and every entry is in use,
// Acquire fails with ErrResourceExhausted.
package pool

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/internal/xlog"
)

var errNoContext = errors.New("factory returned no context")

// MaxContexts is the default pool capacity.
const MaxContexts = 8

// Acquired is the result of Acquire.
type Acquired struct {
	Context backend.Context
	Surface backend.Surface

	// IsNew reports whether the context was created by this call.
	IsNew bool
}

// EntryInfo is a snapshot of one pool entry.
type EntryInfo struct {
	Key        string
	UseCount   int
	LastUsedAt time.Time
}

// Stats contains pool counters.
type Stats struct {
	Size       int
	Capacity   int
	InUse      int
	Hits       uint64
	Misses     uint64
	Creations  uint64
	Evictions  uint64
	Rejections uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Pool[%d/%d, %d in use, %d hits, %d misses, %d evictions, %d rejections]",
		s.Size, s.Capacity, s.InUse, s.Hits, s.Misses, s.Evictions, s.Rejections)
}

// entry tracks one context. useCount is never negative; an entry with
// useCount == 0 is eviction-eligible but still alive.
type entry struct {
	key        string
	ctx        backend.Context
	surface    backend.Surface
	useCount   int
	lastUsedAt time.Time
	element    *list.Element // position in insertion order
}

// Option configures a Pool.
type Option func(*Pool)

// WithCapacity sets the maximum number of live contexts. Values below 1
// are ignored.
func WithCapacity(n int) Option {
	return func(p *Pool) {
		if n >= 1 {
			p.capacity = n
		}
	}
}

// WithMaxPixelRatio sets the pixel ratio cap applied by Tune.
func WithMaxPixelRatio(r float64) Option {
	return func(p *Pool) {
		if r >= 1 {
			p.maxPixelRatio = r
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool manages keyed drawing contexts.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	prober        *capability.Prober
	capacity      int
	maxPixelRatio float64
	now           func() time.Time

	entries map[string]*entry
	order   *list.List // insertion order, oldest at front

	hits, misses, creations, evictions, rejections uint64
}

// New creates an empty pool. prober decides whether contexts can be
// created at all and how their options are tuned.
func New(prober *capability.Prober, opts ...Option) *Pool {
	p := &Pool{
		prober:        prober,
		capacity:      MaxContexts,
		maxPixelRatio: DefaultMaxPixelRatio,
		now:           time.Now,
		entries:       make(map[string]*entry),
		order:         list.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns the context for key, creating it through factory on a
// miss. A hit increments the use count. A miss on a full pool evicts the
// idle entry with the oldest last use once the new context exists; if every
// entry is in use the call fails with *ExhaustedError. A failed creation
// leaves the pool unchanged.
func (p *Pool) Acquire(key string, factory backend.Factory, opts backend.Options) (Acquired, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		e.useCount++
		e.lastUsedAt = p.now()
		p.hits++
		return Acquired{Context: e.ctx, Surface: e.surface}, nil
	}
	p.misses++

	caps := p.prober.Probe()
	if !caps.Supported {
		return Acquired{}, capability.ErrUnsupportedPlatform
	}

	var victim *entry
	if len(p.entries) >= p.capacity {
		victim = p.victimLocked()
		if victim == nil {
			p.rejections++
			err := &ExhaustedError{Key: key, Capacity: p.capacity, InUse: p.inUseLocked()}
			xlog.L().Warn("pool: exhausted", "key", key, "capacity", p.capacity)
			return Acquired{}, err
		}
	}

	// The victim survives a failed creation.
	tuned := Tune(caps, opts, p.maxPixelRatio)
	ctx, err := factory(tuned)
	if err != nil {
		return Acquired{}, &CreationError{Key: key, Err: err}
	}
	if ctx == nil {
		return Acquired{}, &CreationError{Key: key, Err: errNoContext}
	}
	if victim != nil {
		p.evictLocked(victim)
	}

	e := &entry{
		key:        key,
		ctx:        ctx,
		surface:    ctx.Surface(),
		useCount:   1,
		lastUsedAt: p.now(),
	}
	e.element = p.order.PushBack(e)
	p.entries[key] = e
	p.creations++

	xlog.L().Info("pool: context created", "key", key, "backend", ctx.Backend(),
		"size", len(p.entries), "capacity", p.capacity,
		"antialias", tuned.Antialias, "pixel_ratio", tuned.PixelRatio)
	return Acquired{Context: ctx, Surface: e.surface, IsNew: true}, nil
}

// Release decrements the use count of key. The context stays alive until
// it is evicted or disposed. Releasing an unknown key is a no-op.
func (p *Pool) Release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		xlog.L().Warn("pool: release of unknown key", "key", key)
		return
	}
	if e.useCount > 0 {
		e.useCount--
	}
	e.lastUsedAt = p.now()
}

// Dispose destroys the context for key regardless of its use count and
// detaches its surface. A render loop still holding the context stops on
// its next frame with render.ErrContextLost instead of drawing. Disposing
// an absent key is a no-op.
func (p *Pool) Dispose(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		p.removeLocked(e)
	}
}

// DisposeAll destroys every context.
func (p *Pool) DisposeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for elem := p.order.Front(); elem != nil; {
		next := elem.Next()
		if e, ok := elem.Value.(*entry); ok {
			p.removeLocked(e)
		}
		elem = next
	}
}

// Len returns the number of live contexts.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return p.capacity
}

// Entry returns a snapshot of the entry for key.
func (p *Pool) Entry(key string) (EntryInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{Key: e.key, UseCount: e.useCount, LastUsedAt: e.lastUsedAt}, true
}

// Entries returns snapshots of all entries in insertion order.
func (p *Pool) Entries() []EntryInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]EntryInfo, 0, len(p.entries))
	for elem := p.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		result = append(result, EntryInfo{Key: e.key, UseCount: e.useCount, LastUsedAt: e.lastUsedAt})
	}
	return result
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:       len(p.entries),
		Capacity:   p.capacity,
		InUse:      p.inUseLocked(),
		Hits:       p.hits,
		Misses:     p.misses,
		Creations:  p.creations,
		Evictions:  p.evictions,
		Rejections: p.rejections,
	}
}

// victimLocked returns the idle entry with the oldest lastUsedAt, ties
// broken by insertion order, or nil. Caller must hold mu.
func (p *Pool) victimLocked() *entry {
	var victim *entry
	for elem := p.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if e.useCount != 0 {
			continue
		}
		if victim == nil || e.lastUsedAt.Before(victim.lastUsedAt) {
			victim = e
		}
	}
	return victim
}

// evictLocked destroys an idle entry to free its slot. Caller must hold mu.
func (p *Pool) evictLocked(e *entry) {
	p.removeLocked(e)
	p.evictions++
	xlog.L().Info("pool: context evicted", "key", e.key, "idle_since", e.lastUsedAt)
}

// removeLocked destroys the context and forgets the entry. Caller must
// hold mu.
func (p *Pool) removeLocked(e *entry) {
	if e.element != nil {
		p.order.Remove(e.element)
		e.element = nil
	}
	delete(p.entries, e.key)

	e.ctx.Destroy()
	if e.surface != nil {
		e.surface.Detach()
	}
}

func (p *Pool) inUseLocked() int {
	n := 0
	for _, e := range p.entries {
		if e.useCount > 0 {
			n++
		}
	}
	return n
}
