// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the GraphicsBackend abstraction that the context
// pool creates drawing contexts through.
//
// Two implementations ship with vizctx:
//
//   - backend/software: a bundled CPU rasterizer, always available.
//   - backend/wgpu: a HAL device opened once at startup (Vulkan, or a
//     device provided by the host application).
//
// A backend is selected once at startup through a Registry:
//
//	r := backend.NewRegistry()
//	software.Register(r)
//	wgpu.Register(r)
//
//	b, err := r.Select("") // best available by priority
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
// Nothing outside a backend package branches on which runtime is in use.
package backend
