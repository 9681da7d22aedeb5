package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// colorTargets holds the color, depth and resolve textures the mesh pass
// renders into.
//
//   - color: samples x, surface format, RenderAttachment (| CopySrc when
//     single-sampled, since it is then also the readback source)
//   - depth: samples x, Depth24PlusStencil8, RenderAttachment
//   - resolve: 1x, surface format, RenderAttachment | CopySrc; only when
//     multisampled
type colorTargets struct {
	colorTex    hal.Texture
	colorView   hal.TextureView
	depthTex    hal.Texture
	depthView   hal.TextureView
	resolveTex  hal.Texture
	resolveView hal.TextureView
	width       uint32
	height      uint32
}

// ensure creates or recreates the textures if the requested dimensions
// differ from the current size. If dimensions match and textures exist,
// this is a no-op.
func (ts *colorTargets) ensure(device hal.Device, w, h, samples uint32, format gputypes.TextureFormat) error {
	if ts.width == w && ts.height == h && ts.colorTex != nil {
		return nil
	}
	ts.destroy(device)

	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	colorUsage := gputypes.TextureUsageRenderAttachment
	if samples == 1 {
		colorUsage |= gputypes.TextureUsageCopySrc
	}
	colorTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "vizctx_color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         colorUsage,
	})
	if err != nil {
		return fmt.Errorf("create color texture: %w", err)
	}
	ts.colorTex = colorTex

	colorView, err := device.CreateTextureView(colorTex, &hal.TextureViewDescriptor{
		Label: "vizctx_color_view",
	})
	if err != nil {
		ts.destroy(device)
		return fmt.Errorf("create color view: %w", err)
	}
	ts.colorView = colorView

	depthTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "vizctx_depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth24PlusStencil8,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		ts.destroy(device)
		return fmt.Errorf("create depth texture: %w", err)
	}
	ts.depthTex = depthTex

	depthView, err := device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: "vizctx_depth_view",
	})
	if err != nil {
		ts.destroy(device)
		return fmt.Errorf("create depth view: %w", err)
	}
	ts.depthView = depthView

	if samples > 1 {
		resolveTex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         "vizctx_resolve",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			ts.destroy(device)
			return fmt.Errorf("create resolve texture: %w", err)
		}
		ts.resolveTex = resolveTex

		resolveView, err := device.CreateTextureView(resolveTex, &hal.TextureViewDescriptor{
			Label: "vizctx_resolve_view",
		})
		if err != nil {
			ts.destroy(device)
			return fmt.Errorf("create resolve view: %w", err)
		}
		ts.resolveView = resolveView
	}

	ts.width = w
	ts.height = h
	return nil
}

// output returns the single-sampled texture holding the finished frame.
func (ts *colorTargets) output() hal.Texture {
	if ts.resolveTex != nil {
		return ts.resolveTex
	}
	return ts.colorTex
}

// count returns the number of live textures.
func (ts *colorTargets) count() int {
	n := 0
	for _, t := range []hal.Texture{ts.colorTex, ts.depthTex, ts.resolveTex} {
		if t != nil {
			n++
		}
	}
	return n
}

// destroy releases all texture resources and resets dimensions.
func (ts *colorTargets) destroy(device hal.Device) {
	if ts.resolveView != nil {
		device.DestroyTextureView(ts.resolveView)
		ts.resolveView = nil
	}
	if ts.resolveTex != nil {
		device.DestroyTexture(ts.resolveTex)
		ts.resolveTex = nil
	}
	if ts.depthView != nil {
		device.DestroyTextureView(ts.depthView)
		ts.depthView = nil
	}
	if ts.depthTex != nil {
		device.DestroyTexture(ts.depthTex)
		ts.depthTex = nil
	}
	if ts.colorView != nil {
		device.DestroyTextureView(ts.colorView)
		ts.colorView = nil
	}
	if ts.colorTex != nil {
		device.DestroyTexture(ts.colorTex)
		ts.colorTex = nil
	}
	ts.width = 0
	ts.height = 0
}

// shadowMap is the depth texture the shadow pass renders into.
type shadowMap struct {
	tex  hal.Texture
	view hal.TextureView
	size uint32
}

func (sm *shadowMap) create(device hal.Device, size uint32) error {
	sm.destroy(device)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "vizctx_shadow_map",
		Size:          hal.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth24PlusStencil8,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("create shadow map: %w", err)
	}
	sm.tex = tex

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "vizctx_shadow_map_view",
	})
	if err != nil {
		sm.destroy(device)
		return fmt.Errorf("create shadow map view: %w", err)
	}
	sm.view = view
	sm.size = size
	return nil
}

func (sm *shadowMap) destroy(device hal.Device) {
	if sm.view != nil {
		device.DestroyTextureView(sm.view)
		sm.view = nil
	}
	if sm.tex != nil {
		device.DestroyTexture(sm.tex)
		sm.tex = nil
	}
	sm.size = 0
}
