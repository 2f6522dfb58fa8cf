package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Swapchain struct {
	gpu    *GPU
	handle vk.Swapchain
	desc   driver.SwapchainDesc
	images []*Image
	views  []driver.ImageView
}

func (g *GPU) NewSwapchain(desc driver.SwapchainDesc, old driver.Swapchain) (driver.Swapchain, error) {
	if desc.Extent.Empty() {
		return nil, fmt.Errorf("vulkan: swapchain extent %s is empty", desc.Extent)
	}
	support, err := querySurfaceSupport(g.device.PhysicalDevice, g.surface)
	if err != nil {
		return nil, err
	}
	// Use the exact format and color space pair the surface reported.
	var format vk.SurfaceFormat
	found := false
	for _, f := range support.formats {
		if pixelFmt(f.Format) == desc.Format.Format && colorSpace(f.ColorSpace) == desc.Format.ColorSpace {
			format, found = f, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: surface does not offer %s", driver.ErrNoDevice, desc.Format.Format)
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         g.surface,
		MinImageCount:   uint32(desc.ImageCount),
		ImageFormat:     format.Format,
		ImageColorSpace: format.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  uint32(desc.Extent.Width),
			Height: uint32(desc.Extent.Height),
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
	}
	if g.device.GraphicsQueueIndex != g.device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(g.device.GraphicsQueueIndex),
			uint32(g.device.PresentQueueIndex),
		}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	if old != nil {
		createInfo.OldSwapchain = old.(*Swapchain).handle
	}

	sc := &Swapchain{gpu: g, desc: desc}
	if err := resultError("vkCreateSwapchain", vk.CreateSwapchain(g.device.LogicalDevice, &createInfo, g.allocator, &sc.handle)); err != nil {
		return nil, err
	}

	var count uint32
	if err := resultError("vkGetSwapchainImages", vk.GetSwapchainImages(g.device.LogicalDevice, sc.handle, &count, nil)); err != nil {
		sc.Destroy()
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := resultError("vkGetSwapchainImages", vk.GetSwapchainImages(g.device.LogicalDevice, sc.handle, &count, handles)); err != nil {
		sc.Destroy()
		return nil, err
	}
	// The driver may hand out more images than asked for.
	sc.desc.ImageCount = int(count)
	for _, h := range handles {
		img := &Image{gpu: g, handle: h, format: desc.Format.Format, size: desc.Extent}
		view, err := img.NewView()
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.images = append(sc.images, img)
		sc.views = append(sc.views, view)
	}
	g.logger.Info("swapchain created", "extent", desc.Extent, "images", count, "present_mode", desc.PresentMode)
	return sc, nil
}

func (s *Swapchain) Views() []driver.ImageView { return s.views }

func (s *Swapchain) Format() driver.SurfaceFormat { return s.desc.Format }

func (s *Swapchain) PresentMode() driver.PresentMode { return s.desc.PresentMode }

func (s *Swapchain) Extent() driver.Dim { return s.desc.Extent }

func (s *Swapchain) Next(signal driver.Semaphore, timeout time.Duration) (int, error) {
	sem := vk.NullSemaphore
	if signal != nil {
		sem = signal.(*Semaphore).handle
	}
	var index uint32
	res := vk.AcquireNextImage(s.gpu.device.LogicalDevice, s.handle, uint64(timeout.Nanoseconds()), sem, vk.NullFence, &index)
	// Suboptimal still hands out a usable image.
	return int(index), resultError("vkAcquireNextImage", res)
}

// Destroy releases the views. The images belong to the swapchain and go
// with it.
func (s *Swapchain) Destroy() {
	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil
	s.images = nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.gpu.device.LogicalDevice, s.handle, s.gpu.allocator)
		s.handle = vk.NullSwapchain
	}
}
