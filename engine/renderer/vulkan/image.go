package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Image struct {
	gpu    *GPU
	handle vk.Image
	memory vk.DeviceMemory
	format driver.PixelFmt
	size   driver.Dim
	// owned is false for swapchain images, which the swapchain destroys.
	owned bool
}

func imageUsage(u driver.ImageUsage, format driver.PixelFmt) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&driver.UsageSampled != 0 {
		// Sampled images are filled through a staging copy.
		flags |= vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
	}
	if u&driver.UsageRenderTarget != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&driver.UsageDepthStencil != 0 || format.IsDepth() {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&driver.UsageCopyDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}

func aspectMask(format driver.PixelFmt) vk.ImageAspectFlags {
	if format.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func (g *GPU) NewImage(format driver.PixelFmt, size driver.Dim, usage driver.ImageUsage) (driver.Image, error) {
	if size.Empty() {
		return nil, fmt.Errorf("vulkan: image size %s is empty", size)
	}
	img := &Image{gpu: g, format: format, size: size, owned: true}
	dev := g.device.LogicalDevice

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat(format),
		Extent: vk.Extent3D{
			Width:  uint32(size.Width),
			Height: uint32(size.Height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(usage, format),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := resultError("vkCreateImage", vk.CreateImage(dev, &createInfo, g.allocator, &img.handle)); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, img.handle, &reqs)
	mem, err := g.allocate(reqs, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.memory = mem
	if err := resultError("vkBindImageMemory", vk.BindImageMemory(dev, img.handle, img.memory, 0)); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (i *Image) Size() driver.Dim { return i.size }

func (i *Image) Format() driver.PixelFmt { return i.format }

func (i *Image) NewView() (driver.ImageView, error) {
	view := &ImageView{gpu: i.gpu, image: i}
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.handle,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat(i.format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectMask(i.format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	if err := resultError("vkCreateImageView", vk.CreateImageView(i.gpu.device.LogicalDevice, &viewInfo, i.gpu.allocator, &view.handle)); err != nil {
		return nil, err
	}
	return view, nil
}

func (i *Image) Destroy() {
	if !i.owned {
		return
	}
	dev := i.gpu.device.LogicalDevice
	if i.handle != nil {
		vk.DestroyImage(dev, i.handle, i.gpu.allocator)
		i.handle = nil
	}
	if i.memory != nil {
		vk.FreeMemory(dev, i.memory, i.gpu.allocator)
		i.memory = nil
	}
}

type ImageView struct {
	gpu    *GPU
	handle vk.ImageView
	image  *Image
}

func (v *ImageView) Image() driver.Image { return v.image }

func (v *ImageView) Destroy() {
	if v.handle != nil {
		vk.DestroyImageView(v.gpu.device.LogicalDevice, v.handle, v.gpu.allocator)
		v.handle = nil
	}
}

// WriteImage uploads pixels through a staging buffer and leaves img in the
// shader read layout.
func (g *GPU) WriteImage(img driver.Image, pixels []byte) error {
	dst := img.(*Image)
	want := dst.size.Width * dst.size.Height * dst.format.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("vulkan: %d bytes of pixels for a %s image, want %d", len(pixels), dst.size, want)
	}

	staging, err := g.NewBuffer(int64(len(pixels)), driver.UsageTransferSrc)
	if err != nil {
		return err
	}
	defer staging.Destroy()
	copy(staging.Bytes(), pixels)

	cb, err := g.allocateAndBeginSingleUse()
	if err != nil {
		return err
	}
	transitionLayout(cb.handle, dst.handle, aspectMask(dst.format), vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: aspectMask(dst.format),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  uint32(dst.size.Width),
			Height: uint32(dst.size.Height),
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cb.handle, staging.(*Buffer).handle, dst.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	transitionLayout(cb.handle, dst.handle, aspectMask(dst.format), vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	return g.endSingleUse(cb)
}

func transitionLayout(cmd vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var srcStage, dstStage vk.PipelineStageFlagBits
	if from == vk.ImageLayoutUndefined {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageTransferBit
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

type Sampler struct {
	gpu    *GPU
	handle vk.Sampler
}

// NewSampler creates a linear, repeating sampler.
func (g *GPU) NewSampler() (driver.Sampler, error) {
	s := &Sampler{gpu: g}
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if err := resultError("vkCreateSampler", vk.CreateSampler(g.device.LogicalDevice, &samplerInfo, g.allocator, &s.handle)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sampler) Destroy() {
	if s.handle != nil {
		vk.DestroySampler(s.gpu.device.LogicalDevice, s.handle, s.gpu.allocator)
		s.handle = nil
	}
}
