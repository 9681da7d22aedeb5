package wgpu

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle is a GPU device owned by the host application.
//
// To share it with vizctx the provider must also implement
//
//	HalDevice() any // returns hal.Device
//	HalQueue() any  // returns hal.Queue
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle that provides nothing. Passing it to
// WithDeviceProvider makes Init fail with ErrNoHALDevice.
type NullDeviceHandle struct{}

// Device returns nil.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns TextureFormatUndefined.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports an unknown adapter.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}

var _ DeviceHandle = NullDeviceHandle{}

// Errors.
var (
	// ErrNoHALDevice is returned when a provider does not expose HAL types.
	ErrNoHALDevice = errors.New("wgpu: provider does not expose a HAL device")

	// ErrNoAdapter is returned when the instance enumerates no adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrVulkanUnavailable is returned when the Vulkan HAL is not compiled in.
	ErrVulkanUnavailable = errors.New("wgpu: vulkan backend not available")
)

// hostDevice extracts the HAL device and queue from a host provider.
func hostDevice(p DeviceHandle) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, ErrNoHALDevice
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, ErrNoHALDevice
	}
	return device, queue, nil
}

// surfaceFormat returns the provider's surface format, or BGRA8Unorm.
func surfaceFormat(p DeviceHandle) gputypes.TextureFormat {
	if p != nil {
		if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			return f
		}
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// pickAdapter returns the adapter that best matches the power preference.
// High performance prefers discrete GPUs, low power prefers integrated
// ones; otherwise the first adapter is used.
func pickAdapter(adapters []hal.ExposedAdapter, lowPower bool) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	first, second := gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU
	if lowPower {
		first, second = second, first
	}
	for _, want := range []gputypes.DeviceType{first, second} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}
