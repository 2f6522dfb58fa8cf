package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Fence struct {
	gpu    *GPU
	handle vk.Fence
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// A signaled fence lets the first wait on it return at once.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	f := &Fence{gpu: g}
	if err := resultError("vkCreateFence", vk.CreateFence(g.device.LogicalDevice, &fenceCreateInfo, g.allocator, &f.handle)); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	res := vk.WaitForFences(f.gpu.device.LogicalDevice, 1, []vk.Fence{f.handle}, vk.True, uint64(timeout.Nanoseconds()))
	if res == vk.Timeout {
		f.gpu.logger.Warn("fence wait timed out", "timeout", timeout)
	}
	return resultError("vkWaitForFences", res)
}

func (f *Fence) Reset() error {
	return resultError("vkResetFences", vk.ResetFences(f.gpu.device.LogicalDevice, 1, []vk.Fence{f.handle}))
}

func (f *Fence) Signaled() bool {
	return vk.GetFenceStatus(f.gpu.device.LogicalDevice, f.handle) == vk.Success
}

func (f *Fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.gpu.device.LogicalDevice, f.handle, f.gpu.allocator)
		f.handle = vk.NullFence
	}
}

type Semaphore struct {
	gpu    *GPU
	handle vk.Semaphore
}

func (g *GPU) NewSemaphore() (driver.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	s := &Semaphore{gpu: g}
	if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(g.device.LogicalDevice, &semaphoreCreateInfo, g.allocator, &s.handle)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Semaphore) Destroy() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.gpu.device.LogicalDevice, s.handle, s.gpu.allocator)
		s.handle = vk.NullSemaphore
	}
}
