package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

/**
 * @brief Represents a single shader stage.
 */
type shaderStage struct {
	/** @brief The internal shader module handle. */
	module vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	createInfo vk.PipelineShaderStageCreateInfo
}

// newShaderStage builds a module from SPIR-V words. The code length must be
// a multiple of four.
func (g *GPU) newShaderStage(code []byte, stage vk.ShaderStageFlagBits) (*shaderStage, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: shader code of %d bytes is not SPIR-V", driver.ErrFatal, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	s := &shaderStage{}
	if err := resultError("vkCreateShaderModule", vk.CreateShaderModule(g.device.LogicalDevice, &createInfo, g.allocator, &s.module)); err != nil {
		return nil, err
	}
	s.createInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.module,
		PName:  "main\x00",
	}
	return s, nil
}

func (g *GPU) destroyShaderStage(s *shaderStage) {
	if s != nil && s.module != vk.NullShaderModule {
		vk.DestroyShaderModule(g.device.LogicalDevice, s.module, g.allocator)
		s.module = vk.NullShaderModule
	}
}
