package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

// candidate is one physical device together with what selection knows
// about it.
type candidate struct {
	handle        vk.PhysicalDevice
	info          driver.DeviceInfo
	properties    vk.PhysicalDeviceProperties
	memory        vk.PhysicalDeviceMemoryProperties
	graphicsIndex int32
	presentIndex  int32
	portability   bool
}

// enumerateDevices describes every physical device against surface.
func enumerateDevices(instance vk.Instance, surface vk.Surface) ([]candidate, error) {
	var count uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no devices which support Vulkan were found", driver.ErrNoDevice)
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, handles)); err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, count)
	for _, pd := range handles {
		c, err := describeDevice(pd, surface)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func describeDevice(pd vk.PhysicalDevice, surface vk.Surface) (candidate, error) {
	c := candidate{handle: pd, graphicsIndex: -1, presentIndex: -1}

	vk.GetPhysicalDeviceProperties(pd, &c.properties)
	c.properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(pd, &c.memory)
	c.memory.Deref()

	c.info.Name = cString(c.properties.DeviceName[:])
	c.info.Type = deviceType(c.properties.DeviceType)

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 && c.graphicsIndex < 0 {
			c.graphicsIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if err := resultError("vkGetPhysicalDeviceSurfaceSupport", vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supportsPresent)); err != nil {
			return c, err
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (c.presentIndex < 0 || int32(i) == c.graphicsIndex) {
			c.presentIndex = int32(i)
		}
	}
	c.info.GraphicsQueue = c.graphicsIndex >= 0
	c.info.PresentQueue = c.presentIndex >= 0

	extensions, err := deviceExtensions(pd)
	if err != nil {
		return c, err
	}
	c.info.SwapchainExtension = extensions[vk.KhrSwapchainExtensionName]
	c.portability = extensions[portabilitySubsetExtension]

	support, err := querySurfaceSupport(pd, surface)
	if err != nil {
		return c, err
	}
	c.info.SurfaceFormats = len(support.formats)
	c.info.PresentModes = len(support.modes)

	for i := uint32(0); i < c.memory.MemoryHeapCount; i++ {
		heap := c.memory.MemoryHeaps[i]
		heap.Deref()
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit == 0 {
			continue
		}
		if mib := uint64(heap.Size) / (1024 * 1024); mib > c.info.DeviceLocalMiB {
			c.info.DeviceLocalMiB = mib
		}
	}
	return c, nil
}

func deviceExtensions(pd vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &count, props)); err != nil {
			return nil, err
		}
	}
	names := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		names[cString(props[i].ExtensionName[:])] = true
	}
	return names, nil
}

// surfaceSupport is the raw form of driver.SurfaceSupport. The raw formats
// are kept so a swapchain can be created with the exact pair reported.
type surfaceSupport struct {
	caps    vk.SurfaceCapabilities
	formats []vk.SurfaceFormat
	modes   []vk.PresentMode
}

func querySurfaceSupport(pd vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	var s surfaceSupport
	if err := resultError("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &s.caps)); err != nil {
		return s, err
	}
	s.caps.Deref()
	s.caps.CurrentExtent.Deref()
	s.caps.MinImageExtent.Deref()
	s.caps.MaxImageExtent.Deref()

	var formatCount uint32
	if err := resultError("vkGetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)); err != nil {
		return s, err
	}
	if formatCount > 0 {
		s.formats = make([]vk.SurfaceFormat, formatCount)
		if err := resultError("vkGetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, s.formats)); err != nil {
			return s, err
		}
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := resultError("vkGetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)); err != nil {
		return s, err
	}
	if modeCount > 0 {
		s.modes = make([]vk.PresentMode, modeCount)
		if err := resultError("vkGetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, s.modes)); err != nil {
			return s, err
		}
	}
	return s, nil
}

// convert maps the raw support to the driver's terms. Formats and modes the
// driver has no name for are left out.
func (s surfaceSupport) convert() driver.SurfaceSupport {
	var out driver.SurfaceSupport
	for _, f := range s.formats {
		if pf := pixelFmt(f.Format); pf != driver.FmtUndefined {
			out.Formats = append(out.Formats, driver.SurfaceFormat{Format: pf, ColorSpace: colorSpace(f.ColorSpace)})
		}
	}
	for _, m := range s.modes {
		if pm, ok := presentMode(m); ok {
			out.PresentModes = append(out.PresentModes, pm)
		}
	}
	out.Caps = driver.SurfaceCaps{
		MinImages: int(s.caps.MinImageCount),
		MaxImages: int(s.caps.MaxImageCount),
		// A current width of 0xFFFFFFFF means the swapchain picks the extent.
		CurrentDefined: s.caps.CurrentExtent.Width != math.MaxUint32,
		Current:        driver.Dim{Width: int(s.caps.CurrentExtent.Width), Height: int(s.caps.CurrentExtent.Height)},
		MinExtent:      driver.Dim{Width: int(s.caps.MinImageExtent.Width), Height: int(s.caps.MinImageExtent.Height)},
		MaxExtent:      driver.Dim{Width: int(s.caps.MaxImageExtent.Width), Height: int(s.caps.MaxImageExtent.Height)},
	}
	return out
}

// createDevice creates the logical device, its queues and the graphics
// command pool on the selected candidate.
func (g *GPU) createDevice(c candidate) error {
	d := &VulkanDevice{
		PhysicalDevice:     c.handle,
		GraphicsQueueIndex: c.graphicsIndex,
		PresentQueueIndex:  c.presentIndex,
		Properties:         c.properties,
		Memory:             c.memory,
	}
	g.logger.Info("creating logical device", "device", c.info.Name, "graphics_family", c.graphicsIndex, "present_family", c.presentIndex)

	// Do not create additional queues for shared indices.
	indices := []uint32{uint32(d.GraphicsQueueIndex)}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, uint32(d.PresentQueueIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if c.portability {
		g.logger.Info("adding required extension", "name", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}
	if err := resultError("vkCreateDevice", vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, g.allocator, &d.LogicalDevice)); err != nil {
		return err
	}

	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.GraphicsQueueIndex), 0, &d.GraphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(d.PresentQueueIndex), 0, &d.PresentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := resultError("vkCreateCommandPool", vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, g.allocator, &d.GraphicsCommandPool)); err != nil {
		vk.DestroyDevice(d.LogicalDevice, g.allocator)
		return err
	}
	g.device = d
	g.logger.Debug("logical device created")
	return nil
}

func (g *GPU) destroyDevice() {
	d := g.device
	if d == nil {
		return
	}
	g.logger.Debug("destroying command pool and logical device")
	vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, g.allocator)
	vk.DestroyDevice(d.LogicalDevice, g.allocator)
	g.device = nil
}
