package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// maxPushConstantRanges follows from the 128 byte minimum guaranteed by
// the API at 4 byte alignment.
const maxPushConstantRanges = 32

/**
 * @brief Holds a Vulkan pipeline, its layout and its descriptor sets.
 */
type Pipeline struct {
	gpu *GPU
	/** @brief The internal pipeline handle. */
	handle vk.Pipeline
	/** @brief The pipeline layout. */
	layout      vk.PipelineLayout
	descriptors *descriptorSets
	sets        []vk.DescriptorSet
}

func (g *GPU) NewPipeline(desc *driver.PipelineDesc) (driver.Pipeline, error) {
	if len(desc.PushConstants) > maxPushConstantRanges {
		return nil, fmt.Errorf("cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(desc.PushConstants))
	}

	vert, err := g.newShaderStage(desc.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	defer g.destroyShaderStage(vert)
	frag, err := g.newShaderStage(desc.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	defer g.destroyShaderStage(frag)

	p := &Pipeline{gpu: g}
	if p.descriptors, err = g.newDescriptorSets(desc.Bindings, desc.Sets); err != nil {
		return nil, err
	}
	p.sets = p.descriptors.sets

	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	switch desc.CullMode {
	case metadata.FaceCullModeNone:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	// Depth testing writes depth as well; there is no read-only mode.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	offsets := desc.Layout.Offsets()
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Layout))
	for i, e := range desc.Layout {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Format:   vertexFormat(e),
			Offset:   offsets[i],
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	if len(attributes) > 0 {
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.Layout.Size(),
			InputRate: vk.VertexInputRateVertex,
		}}
	}

	// Input assembly
	topology := vk.PrimitiveTopologyTriangleList
	if desc.Topology == metadata.TopologyLines {
		topology = vk.PrimitiveTopologyLineList
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	if p.descriptors.layout != vk.NullDescriptorSetLayout {
		pipelineLayoutCreateInfo.SetLayoutCount = 1
		pipelineLayoutCreateInfo.PSetLayouts = []vk.DescriptorSetLayout{p.descriptors.layout}
	}
	if len(desc.PushConstants) > 0 {
		pushOffsets, _ := metadata.PushConstantOffsets(desc.PushConstants)
		ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
		for i, r := range desc.PushConstants {
			ranges[i] = vk.PushConstantRange{
				StageFlags: shaderStages(r.Stages),
				Offset:     pushOffsets[i],
				Size:       r.Size,
			}
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = uint32(len(ranges))
		pipelineLayoutCreateInfo.PPushConstantRanges = ranges
	}

	if err := g.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(g.device.LogicalDevice, &pipelineLayoutCreateInfo, g.allocator, &p.layout))
	}); err != nil {
		p.Destroy()
		return nil, err
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vert.createInfo, frag.createInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              p.layout,
		RenderPass:          desc.Pass.(*RenderPass).handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := g.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(g.device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, g.allocator, pipelines))
	}); err != nil {
		p.Destroy()
		return nil, err
	}
	p.handle = pipelines[0]

	g.logger.Debug("graphics pipeline created", "topology", desc.Topology, "sets", desc.Sets, "bindings", len(desc.Bindings))
	return p, nil
}

func (p *Pipeline) SetBuffer(set int, binding uint32, buf driver.Buffer) {
	p.descriptors.writeBuffer(set, binding, buf)
}

func (p *Pipeline) SetTexture(set int, binding uint32, index int, view driver.ImageView, sampler driver.Sampler) {
	p.descriptors.writeImage(set, binding, index, view, sampler)
}

func (p *Pipeline) Destroy() {
	_ = p.gpu.locks.SafeCall(PipelineManagement, func() error {
		if p.handle != vk.NullPipeline {
			vk.DestroyPipeline(p.gpu.device.LogicalDevice, p.handle, p.gpu.allocator)
			p.handle = vk.NullPipeline
		}
		if p.layout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(p.gpu.device.LogicalDevice, p.layout, p.gpu.allocator)
			p.layout = vk.NullPipelineLayout
		}
		return nil
	})
	if p.descriptors != nil {
		p.descriptors.destroy()
		p.descriptors = nil
	}
	p.sets = nil
}
