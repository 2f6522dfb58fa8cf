package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Framebuf struct {
	gpu    *GPU
	handle vk.Framebuffer
	size   driver.Dim
}

func (g *GPU) NewFramebuf(pass driver.RenderPass, views []driver.ImageView, size driver.Dim) (driver.Framebuf, error) {
	attachments := make([]vk.ImageView, len(views))
	for i, v := range views {
		attachments[i] = v.(*ImageView).handle
	}
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.(*RenderPass).handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           uint32(size.Width),
		Height:          uint32(size.Height),
		Layers:          1,
	}
	fb := &Framebuf{gpu: g, size: size}
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(g.device.LogicalDevice, &createInfo, g.allocator, &fb.handle)); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *Framebuf) Size() driver.Dim { return fb.size }

func (fb *Framebuf) Destroy() {
	if fb.handle != nil {
		vk.DestroyFramebuffer(fb.gpu.device.LogicalDevice, fb.handle, fb.gpu.allocator)
		fb.handle = nil
	}
}
