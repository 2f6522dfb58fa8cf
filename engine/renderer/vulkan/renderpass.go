package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// RenderPass has a single subpass writing one color attachment and, when
// asked for, a depth attachment.
type RenderPass struct {
	gpu      *GPU
	handle   vk.RenderPass
	hasDepth bool
}

func (g *GPU) NewRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	// Swapchain passes end ready to present, texture passes ready to sample.
	finalLayout := vk.ImageLayoutShaderReadOnlyOptimal
	if desc.Present {
		finalLayout = vk.ImageLayoutPresentSrc
	}
	attachments := []vk.AttachmentDescription{{
		Format:         vkFormat(desc.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    finalLayout,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	hasDepth := desc.DepthFormat != driver.FmtUndefined
	if hasDepth {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(desc.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		dependency.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	rp := &RenderPass{gpu: g, hasDepth: hasDepth}
	if err := resultError("vkCreateRenderPass", vk.CreateRenderPass(g.device.LogicalDevice, &createInfo, g.allocator, &rp.handle)); err != nil {
		return nil, err
	}
	return rp, nil
}

func (rp *RenderPass) Destroy() {
	if rp.handle != nil {
		vk.DestroyRenderPass(rp.gpu.device.LogicalDevice, rp.handle, rp.gpu.allocator)
		rp.handle = nil
	}
}
