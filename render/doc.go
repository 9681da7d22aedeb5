// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render drives the per-frame loop of one scene instance.
//
// Each frame the Loop:
//
//  1. samples frame timing into a perf.Monitor
//  2. updates the quality.Controller
//  3. applies changed quality settings to the drawing context: live
//     settings directly, shadow and post-processing settings by rebuilding
//     only those sub-resources
//  4. advances node animations and live attributes, then runs a bounded
//     number of queued tasks
//  5. updates orbit controls
//  6. draws the scene
//  7. requests the next frame
//
// # Threading
//
// Frames, posted tasks and Instance.Dispose all run on the scheduler's
// single execution thread. Other goroutines hand work to that thread with
// Scheduler.Post:
//
//	sched := render.NewTickerScheduler(time.Second / 60)
//	go sched.Run(ctx)
//
//	sched.Post(func() {
//	    inst := render.NewInstance(key, acquired.Context, root, cam, pool)
//	    render.NewLoop(inst, sched).Start()
//	})
//
// Stop cancels the pending frame synchronously, so once Stop returns on the
// frame thread no further frame of that loop runs.
package render
