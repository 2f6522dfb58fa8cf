package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Buffer lives in host visible, coherent memory that stays mapped until
// Destroy, so writes to Bytes reach the GPU without a flush.
type Buffer struct {
	gpu    *GPU
	handle vk.Buffer
	memory vk.DeviceMemory
	size   int64
	mapped []byte
}

func bufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&driver.UsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.UsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&driver.UsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.UsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

func (g *GPU) NewBuffer(size int64, usage driver.BufferUsage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("vulkan: buffer size %d is not positive", size)
	}
	b := &Buffer{gpu: g, size: size}
	dev := g.device.LogicalDevice

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if err := resultError("vkCreateBuffer", vk.CreateBuffer(dev, &createInfo, g.allocator, &b.handle)); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, b.handle, &reqs)
	mem, err := g.allocate(reqs, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.memory = mem
	if err := resultError("vkBindBufferMemory", vk.BindBufferMemory(dev, b.handle, b.memory, 0)); err != nil {
		b.Destroy()
		return nil, err
	}

	var ptr unsafe.Pointer
	if err := resultError("vkMapMemory", vk.MapMemory(dev, b.memory, 0, vk.DeviceSize(size), 0, &ptr)); err != nil {
		b.Destroy()
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(ptr), size)
	return b, nil
}

func (b *Buffer) Size() int64 { return b.size }

func (b *Buffer) Bytes() []byte { return b.mapped }

func (b *Buffer) Destroy() {
	dev := b.gpu.device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(dev, b.memory)
		b.mapped = nil
	}
	if b.handle != nil {
		vk.DestroyBuffer(dev, b.handle, b.gpu.allocator)
		b.handle = nil
	}
	if b.memory != nil {
		vk.FreeMemory(dev, b.memory, b.gpu.allocator)
		b.memory = nil
	}
}
