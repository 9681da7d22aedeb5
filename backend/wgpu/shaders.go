package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/mesh.wgsl
var meshShaderSource string

//go:embed shaders/shadow.wgsl
var shadowShaderSource string

//go:embed shaders/vignette.wgsl
var vignetteShaderSource string

// shaderSet is the SPIR-V for every pipeline a context creates. It is
// compiled once per backend and shared by all contexts.
type shaderSet struct {
	mesh     []uint32
	shadow   []uint32
	vignette []uint32
}

func compileShaders() (*shaderSet, error) {
	mesh, err := compileSPIRV(meshShaderSource)
	if err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}
	shadow, err := compileSPIRV(shadowShaderSource)
	if err != nil {
		return nil, fmt.Errorf("shadow shader: %w", err)
	}
	vignette, err := compileSPIRV(vignetteShaderSource)
	if err != nil {
		return nil, fmt.Errorf("vignette shader: %w", err)
	}
	return &shaderSet{mesh: mesh, shadow: shadow, vignette: vignette}, nil
}

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

func createShaderModule(device hal.Device, label string, code []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: code,
		},
	})
}
