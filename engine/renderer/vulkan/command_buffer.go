package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// CmdBuffer is a primary command buffer from the graphics pool. Commands
// issued while it is not recording are dropped.
type CmdBuffer struct {
	gpu       *GPU
	handle    vk.CommandBuffer
	recording bool
}

func (g *GPU) allocateCommandBuffer() (vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := g.locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(g.device.LogicalDevice, &allocateInfo, handles))
	})
	if err != nil {
		return nil, err
	}
	return handles[0], nil
}

func (g *GPU) freeCommandBuffer(handle vk.CommandBuffer) {
	_ = g.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(g.device.LogicalDevice, g.device.GraphicsCommandPool, 1, []vk.CommandBuffer{handle})
		return nil
	})
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	handle, err := g.allocateCommandBuffer()
	if err != nil {
		return nil, err
	}
	return &CmdBuffer{gpu: g, handle: handle}, nil
}

func (c *CmdBuffer) Destroy() {
	if c.handle != nil {
		c.gpu.freeCommandBuffer(c.handle)
		c.handle = nil
	}
}

func (c *CmdBuffer) Reset() error {
	c.recording = false
	return resultError("vkResetCommandBuffer", vk.ResetCommandBuffer(c.handle, 0))
}

func (c *CmdBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if err := resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(c.handle, &beginInfo)); err != nil {
		return err
	}
	c.recording = true
	return nil
}

func (c *CmdBuffer) End() error {
	if !c.recording {
		return nil
	}
	c.recording = false
	return resultError("vkEndCommandBuffer", vk.EndCommandBuffer(c.handle))
}

func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	if !c.recording {
		return
	}
	rp := pass.(*RenderPass)
	f := fb.(*Framebuf)
	clearValues := make([]vk.ClearValue, len(clear))
	for i, v := range clear {
		if rp.hasDepth && i == len(clear)-1 {
			clearValues[i].SetDepthStencil(v.Depth, 0)
		} else {
			clearValues[i].SetColor(v.Color[:])
		}
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.handle,
		Framebuffer: f.handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{
				Width:  uint32(f.size.Width),
				Height: uint32(f.size.Height),
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &beginInfo, vk.SubpassContentsInline)
}

func (c *CmdBuffer) EndPass() {
	if !c.recording {
		return
	}
	vk.CmdEndRenderPass(c.handle)
}

func (c *CmdBuffer) SetPipeline(p driver.Pipeline, set int) {
	if !c.recording {
		return
	}
	pl := p.(*Pipeline)
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, pl.handle)
	if set >= 0 && set < len(pl.sets) {
		vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, pl.layout, 0, 1, []vk.DescriptorSet{pl.sets[set]}, 0, nil)
	}
}

func (c *CmdBuffer) SetViewport(vp driver.Viewport) {
	if !c.recording {
		return
	}
	viewport := vk.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.Znear,
		MaxDepth: vp.Zfar,
	}
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{viewport})
}

func (c *CmdBuffer) SetScissor(r driver.Rect) {
	if !c.recording {
		return
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: int32(r.X), Y: int32(r.Y)},
		Extent: vk.Extent2D{Width: uint32(r.Width), Height: uint32(r.Height)},
	}
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{scissor})
}

func (c *CmdBuffer) SetVertexBuf(buf driver.Buffer, off int64) {
	if !c.recording {
		return
	}
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{buf.(*Buffer).handle}, []vk.DeviceSize{vk.DeviceSize(off)})
}

func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	if !c.recording {
		return
	}
	indexType := vk.IndexTypeUint16
	if format == driver.Index32 {
		indexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(c.handle, buf.(*Buffer).handle, vk.DeviceSize(off), indexType)
}

func (c *CmdBuffer) PushConstants(p driver.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	if !c.recording || len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, p.(*Pipeline).layout, shaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	if !c.recording {
		return
	}
	vk.CmdDraw(c.handle, uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	if !c.recording {
		return
	}
	vk.CmdDrawIndexed(c.handle, uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// allocateAndBeginSingleUse allocates a command buffer and begins recording
// it for a single submission.
func (g *GPU) allocateAndBeginSingleUse() (*CmdBuffer, error) {
	handle, err := g.allocateCommandBuffer()
	if err != nil {
		return nil, err
	}
	cb := &CmdBuffer{gpu: g, handle: handle}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(handle, &beginInfo)); err != nil {
		cb.Destroy()
		return nil, err
	}
	cb.recording = true
	return cb, nil
}

// endSingleUse ends recording, submits, waits for the graphics queue to
// drain and frees the command buffer.
func (g *GPU) endSingleUse(cb *CmdBuffer) error {
	defer cb.Destroy()
	if err := cb.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	return g.locks.SafeQueueCall(uint32(g.device.GraphicsQueueIndex), func() error {
		if err := resultError("vkQueueSubmit", vk.QueueSubmit(g.device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(g.device.GraphicsQueue))
	})
}
