package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every flag in properties.
func (g *GPU) findMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	mem := g.device.Memory
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		memType := mem.MemoryTypes[i]
		memType.Deref()
		if typeFilter&(1<<i) != 0 && vk.MemoryPropertyFlagBits(memType.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no memory type for filter %#x with properties %#x", driver.ErrNoDeviceMemory, typeFilter, uint32(properties))
}

// allocate backs reqs with memory that has properties.
func (g *GPU) allocate(reqs vk.MemoryRequirements, properties vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	reqs.Deref()
	index, err := g.findMemoryIndex(reqs.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}
	var mem vk.DeviceMemory
	res := vk.AllocateMemory(g.device.LogicalDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, g.allocator, &mem)
	if err := resultError("vkAllocateMemory", res); err != nil {
		return nil, err
	}
	return mem, nil
}

func vkFormat(f driver.PixelFmt) vk.Format {
	switch f {
	case driver.FmtRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case driver.FmtRGBA8SRGB:
		return vk.FormatR8g8b8a8Srgb
	case driver.FmtBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case driver.FmtBGRA8SRGB:
		return vk.FormatB8g8r8a8Srgb
	case driver.FmtD32F:
		return vk.FormatD32Sfloat
	default:
		return vk.FormatUndefined
	}
}

func pixelFmt(f vk.Format) driver.PixelFmt {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return driver.FmtRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return driver.FmtRGBA8SRGB
	case vk.FormatB8g8r8a8Unorm:
		return driver.FmtBGRA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return driver.FmtBGRA8SRGB
	case vk.FormatD32Sfloat:
		return driver.FmtD32F
	default:
		return driver.FmtUndefined
	}
}

func vkPresentMode(m driver.PresentMode) vk.PresentMode {
	switch m {
	case driver.PresentImmediate:
		return vk.PresentModeImmediate
	case driver.PresentMailbox:
		return vk.PresentModeMailbox
	case driver.PresentFIFORelaxed:
		return vk.PresentModeFifoRelaxed
	default:
		return vk.PresentModeFifo
	}
}

func presentMode(m vk.PresentMode) (driver.PresentMode, bool) {
	switch m {
	case vk.PresentModeImmediate:
		return driver.PresentImmediate, true
	case vk.PresentModeMailbox:
		return driver.PresentMailbox, true
	case vk.PresentModeFifo:
		return driver.PresentFIFO, true
	case vk.PresentModeFifoRelaxed:
		return driver.PresentFIFORelaxed, true
	default:
		return 0, false
	}
}

func colorSpace(c vk.ColorSpace) driver.ColorSpace {
	if c == vk.ColorSpaceSrgbNonlinear {
		return driver.ColorSpaceSRGBNonlinear
	}
	return driver.ColorSpaceOther
}

func deviceType(t vk.PhysicalDeviceType) driver.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return driver.DeviceIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return driver.DeviceDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return driver.DeviceVirtual
	case vk.PhysicalDeviceTypeCpu:
		return driver.DeviceCPU
	default:
		return driver.DeviceOther
	}
}

func shaderStages(s metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func descriptorType(k metadata.DescriptorKind) vk.DescriptorType {
	if k == metadata.DescriptorCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func vertexFormat(e metadata.ElementType) vk.Format {
	switch e {
	case metadata.ElementFloat:
		return vk.FormatR32Sfloat
	case metadata.ElementFloat2:
		return vk.FormatR32g32Sfloat
	case metadata.ElementFloat3:
		return vk.FormatR32g32b32Sfloat
	case metadata.ElementFloat4:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.ElementInt:
		return vk.FormatR32Sint
	case metadata.ElementInt2:
		return vk.FormatR32g32Sint
	case metadata.ElementInt3:
		return vk.FormatR32g32b32Sint
	case metadata.ElementInt4:
		return vk.FormatR32g32b32a32Sint
	default:
		return vk.FormatUndefined
	}
}
