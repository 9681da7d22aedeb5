package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// msaaSamples is the sample count of antialiased contexts.
	msaaSamples = 4

	// vertexStride is position (3 floats) + normal (3 floats).
	vertexStride = 24

	// meshUniformSize is mvp, model, color, params and 8 light directions.
	meshUniformSize = 64 + 64 + 16 + 16 + maxLights*16

	// shadowUniformSize is the light mvp.
	shadowUniformSize = 64

	maxLights = 8
)

// pipelines holds every GPU object that depends only on the device, the
// color format and the sample count. Shadow and vignette pipelines are
// structural sub-resources created and destroyed on demand.
type pipelines struct {
	meshShader    hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	triangles     hal.RenderPipeline
	lines         hal.RenderPipeline
	points        hal.RenderPipeline

	shadowShader   hal.ShaderModule
	shadowPipeline hal.RenderPipeline

	vignetteShader   hal.ShaderModule
	vignetteLayout   hal.PipelineLayout
	vignettePipeline hal.RenderPipeline
}

func meshVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // normal
			},
		},
	}
}

func depthState(write bool, compare gputypes.CompareFunction) *hal.DepthStencilState {
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            gputypes.TextureFormatDepth24PlusStencil8,
		DepthWriteEnabled: write,
		DepthCompare:      compare,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0x00,
		StencilWriteMask:  0x00,
	}
}

// createMesh creates the mesh shader, layouts and one pipeline per
// topology.
func (p *pipelines) createMesh(device hal.Device, shaders *shaderSet, format gputypes.TextureFormat, samples uint32) error {
	shader, err := createShaderModule(device, "vizctx_mesh_shader", shaders.mesh)
	if err != nil {
		return fmt.Errorf("create mesh shader: %w", err)
	}
	p.meshShader = shader

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "vizctx_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "vizctx_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	topologies := []struct {
		label    string
		topology gputypes.PrimitiveTopology
		dst      *hal.RenderPipeline
	}{
		{"vizctx_mesh_triangles", gputypes.PrimitiveTopologyTriangleList, &p.triangles},
		{"vizctx_mesh_lines", gputypes.PrimitiveTopologyLineList, &p.lines},
		{"vizctx_mesh_points", gputypes.PrimitiveTopologyPointList, &p.points},
	}
	premulBlend := gputypes.BlendStatePremultiplied()
	for _, t := range topologies {
		pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  t.label,
			Layout: p.pipeLayout,
			Vertex: hal.VertexState{
				Module:     p.meshShader,
				EntryPoint: "vs_main",
				Buffers:    meshVertexLayout(),
			},
			Fragment: &hal.FragmentState{
				Module:     p.meshShader,
				EntryPoint: "fs_main",
				Targets: []gputypes.ColorTargetState{
					{
						Format:    format,
						Blend:     &premulBlend,
						WriteMask: gputypes.ColorWriteMaskAll,
					},
				},
			},
			DepthStencil: depthState(true, gputypes.CompareFunctionLess),
			Primitive: gputypes.PrimitiveState{
				Topology: t.topology,
				CullMode: gputypes.CullModeNone,
			},
			Multisample: gputypes.MultisampleState{
				Count: samples,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", t.label, err)
		}
		*t.dst = pipeline
	}
	return nil
}

// createShadow creates the depth-only shadow pipeline.
func (p *pipelines) createShadow(device hal.Device, shaders *shaderSet) error {
	if p.shadowPipeline != nil {
		return nil
	}
	shader, err := createShaderModule(device, "vizctx_shadow_shader", shaders.shadow)
	if err != nil {
		return fmt.Errorf("create shadow shader: %w", err)
	}
	p.shadowShader = shader

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "vizctx_shadow",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shadowShader,
			EntryPoint: "vs_main",
			Buffers:    meshVertexLayout(),
		},
		DepthStencil: depthState(true, gputypes.CompareFunctionLess),
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroyShadow(device)
		return fmt.Errorf("create shadow pipeline: %w", err)
	}
	p.shadowPipeline = pipeline
	return nil
}

// createVignette creates the post-processing pipeline. It draws a
// full-screen triangle without vertex buffers or bind groups.
func (p *pipelines) createVignette(device hal.Device, shaders *shaderSet, format gputypes.TextureFormat, samples uint32) error {
	if p.vignettePipeline != nil {
		return nil
	}
	shader, err := createShaderModule(device, "vizctx_vignette_shader", shaders.vignette)
	if err != nil {
		return fmt.Errorf("create vignette shader: %w", err)
	}
	p.vignetteShader = shader

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "vizctx_vignette_layout",
	})
	if err != nil {
		p.destroyVignette(device)
		return fmt.Errorf("create vignette layout: %w", err)
	}
	p.vignetteLayout = layout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "vizctx_vignette",
		Layout: p.vignetteLayout,
		Vertex: hal.VertexState{
			Module:     p.vignetteShader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.vignetteShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: depthState(false, gputypes.CompareFunctionAlways),
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroyVignette(device)
		return fmt.Errorf("create vignette pipeline: %w", err)
	}
	p.vignettePipeline = pipeline
	return nil
}

func (p *pipelines) destroyShadow(device hal.Device) {
	if p.shadowPipeline != nil {
		device.DestroyRenderPipeline(p.shadowPipeline)
		p.shadowPipeline = nil
	}
	if p.shadowShader != nil {
		device.DestroyShaderModule(p.shadowShader)
		p.shadowShader = nil
	}
}

func (p *pipelines) destroyVignette(device hal.Device) {
	if p.vignettePipeline != nil {
		device.DestroyRenderPipeline(p.vignettePipeline)
		p.vignettePipeline = nil
	}
	if p.vignetteLayout != nil {
		device.DestroyPipelineLayout(p.vignetteLayout)
		p.vignetteLayout = nil
	}
	if p.vignetteShader != nil {
		device.DestroyShaderModule(p.vignetteShader)
		p.vignetteShader = nil
	}
}

// destroy releases all pipeline resources in reverse creation order.
func (p *pipelines) destroy(device hal.Device) {
	p.destroyVignette(device)
	p.destroyShadow(device)
	for _, rp := range []*hal.RenderPipeline{&p.points, &p.lines, &p.triangles} {
		if *rp != nil {
			device.DestroyRenderPipeline(*rp)
			*rp = nil
		}
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.uniformLayout != nil {
		device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.meshShader != nil {
		device.DestroyShaderModule(p.meshShader)
		p.meshShader = nil
	}
}
