// Package vizctx manages GPU drawing contexts for embedded 3D cell viewers.
//
// # Overview
//
// A host renders many small 3D viewers, each bound to its own mount surface,
// while the graphics platform only tolerates a handful of live contexts.
// vizctx keeps those contexts in a bounded pool, reuses a context when a
// surface is remounted, evicts the least recently used idle context when the
// pool is full, and tunes rendering fidelity per viewer against the measured
// frame rate.
//
// # Quick Start
//
//	app, err := vizctx.NewApp(vizctx.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	v := app.Mount(surface, vizctx.Props{Design: "dual-chamber", Interactive: true},
//	    vizctx.Callbacks{
//	        OnLoad:  func() { fmt.Println("ready") },
//	        OnClick: func(c string) { fmt.Println("clicked", c) },
//	    })
//	go app.Run(ctx)
//
// # Architecture
//
// The library is organized into:
//   - capability: one-time hardware probe
//   - pool: bounded LRU pool of drawing contexts
//   - perf, quality: frame-rate monitor and hysteretic tier controller
//   - catalog, scene: design registry and scene graph
//   - render: per-viewer frame loop on a single scheduler thread
//   - backend: software rasterizer and wgpu HAL implementations
//
// # Threading
//
// Frames, Mount setup, prop changes, clicks and disposal all run on the
// scheduler thread. The Viewer methods hand their work to that thread and
// return immediately; callbacks are invoked on it.
package vizctx

// Version is the library version.
const Version = "0.1.0"
