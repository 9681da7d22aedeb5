package vizctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/backend/software"
	"github.com/gogpu/vizctx/backend/wgpu"
	"github.com/gogpu/vizctx/capability"
	"github.com/gogpu/vizctx/catalog"
	"github.com/gogpu/vizctx/config"
	"github.com/gogpu/vizctx/internal/xlog"
	"github.com/gogpu/vizctx/pool"
	"github.com/gogpu/vizctx/render"
)

// Option configures an App.
type Option func(*App)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.cfg = cfg
	}
}

// WithRegistry selects the backend from r instead of DefaultRegistry.
func WithRegistry(r *backend.Registry) Option {
	return func(a *App) {
		a.registry = r
	}
}

// WithBackend uses b directly. NewApp initializes it.
func WithBackend(b backend.GraphicsBackend) Option {
	return func(a *App) {
		a.backend = b
	}
}

// WithScheduler replaces the default ticker scheduler. Hosts that drive
// frames themselves pass a render.ManualScheduler.
func WithScheduler(s render.Scheduler) Option {
	return func(a *App) {
		a.sched = s
	}
}

// WithCatalog replaces the built-in design registry. Catalog overrides from
// the configuration are not applied to it.
func WithCatalog(r *catalog.Registry) Option {
	return func(a *App) {
		a.catalog = r
	}
}

// WithLoopOptions adds options to every viewer's frame loop. They are
// applied after the options derived from the configuration.
func WithLoopOptions(opts ...render.Option) Option {
	return func(a *App) {
		a.loopOpts = append(a.loopOpts, opts...)
	}
}

// DefaultRegistry returns a registry holding the wgpu and software backends.
func DefaultRegistry() *backend.Registry {
	r := backend.NewRegistry()
	wgpu.Register(r)
	software.Register(r)
	return r
}

// App owns the graphics backend, the context pool, the design catalog and
// the scheduler shared by every mounted Viewer.
type App struct {
	cfg      *config.Config
	registry *backend.Registry
	backend  backend.GraphicsBackend
	prober   *capability.Prober
	pool     *pool.Pool
	catalog  *catalog.Registry
	sched    render.Scheduler
	loopOpts []render.Option

	mu      sync.Mutex
	viewers map[string]*Viewer
	closed  bool
}

// NewApp selects and initializes a backend and builds the shared pool.
func NewApp(opts ...Option) (*App, error) {
	a := &App{viewers: make(map[string]*Viewer)}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg == nil {
		a.cfg = config.Default()
	} else if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	if a.backend == nil {
		reg := a.registry
		if reg == nil {
			reg = DefaultRegistry()
		}
		b, err := reg.Select(a.cfg.Backend.Name)
		if err != nil {
			return nil, fmt.Errorf("vizctx: select backend: %w", err)
		}
		a.backend = b
	} else if err := a.backend.Init(); err != nil {
		return nil, fmt.Errorf("vizctx: init %s: %w", a.backend.Name(), err)
	}

	if a.catalog == nil {
		a.catalog = catalog.NewRegistry()
		if path := a.cfg.Catalog.Overrides; path != "" {
			ov, err := catalog.LoadOverrides(path)
			if err == nil {
				err = a.catalog.Apply(ov)
			}
			if err != nil {
				a.backend.Close()
				return nil, fmt.Errorf("vizctx: catalog overrides: %w", err)
			}
		}
	}

	a.prober = capability.NewProber(backend.ProbeFunc(a.backend))
	a.pool = pool.New(a.prober, a.cfg.PoolOptions()...)
	if a.sched == nil {
		a.sched = render.NewTickerScheduler(a.cfg.FrameInterval())
	}

	xlog.L().Info("vizctx: app ready", "backend", a.backend.Name(),
		"max_contexts", a.pool.Cap())
	return a, nil
}

// Config returns the configuration in use.
func (a *App) Config() *config.Config { return a.cfg }

// Backend returns the selected backend.
func (a *App) Backend() backend.GraphicsBackend { return a.backend }

// Pool returns the shared context pool.
func (a *App) Pool() *pool.Pool { return a.pool }

// Catalog returns the design registry.
func (a *App) Catalog() *catalog.Registry { return a.catalog }

// Scheduler returns the frame scheduler.
func (a *App) Scheduler() render.Scheduler { return a.sched }

// Capabilities probes the backend once and returns the cached result.
func (a *App) Capabilities() capability.Capabilities { return a.prober.Probe() }

// Viewers returns the number of viewers not yet disposed.
func (a *App) Viewers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.viewers)
}

// Run drives the scheduler until ctx is done. It returns ErrNotRunnable
// when the scheduler is driven by the host.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	r, ok := a.sched.(interface{ Run(context.Context) error })
	if !ok {
		return ErrNotRunnable
	}
	return r.Run(ctx)
}

// Close disposes every viewer, destroys every pooled context and closes
// the backend. Call it once Run has returned, or from the scheduler thread.
// Close is idempotent.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	viewers := make([]*Viewer, 0, len(a.viewers))
	for _, v := range a.viewers {
		viewers = append(viewers, v)
	}
	a.mu.Unlock()

	for _, v := range viewers {
		v.dispose()
	}
	a.pool.DisposeAll()
	a.backend.Close()
	xlog.L().Info("vizctx: app closed", "viewers", len(viewers))
}

func (a *App) register(v *Viewer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.viewers[v.id] = v
	return true
}

func (a *App) forget(v *Viewer) {
	a.mu.Lock()
	delete(a.viewers, v.id)
	a.mu.Unlock()
}

func (a *App) loopOptions(v *Viewer) []render.Option {
	opts := a.cfg.LoopOptions()
	opts = append(opts, a.loopOpts...)
	return append(opts,
		render.WithFrameHook(v.frame),
		render.WithErrorHandler(v.frameError),
	)
}
