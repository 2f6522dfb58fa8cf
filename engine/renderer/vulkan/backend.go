// Package vulkan is the driver backed by the Vulkan API, loaded through GLFW.
// It presents to a GLFW window and runs on the thread that owns it.
package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Name is the name the driver registers under.
const Name = "vulkan"

const validationLayer = "VK_LAYER_KHRONOS_validation"

func init() {
	driver.Register(&Driver{})
}

// Window is a surface backed by a native window. *glfw.Window provides both
// Vulkan methods.
type Window interface {
	driver.Surface
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// Driver opens the Vulkan GPU. The loader is initialized once per process.
type Driver struct {
	mu      sync.Mutex
	gpu     *GPU
	loaded  bool
	loadErr error
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Open(opts driver.Options) (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		return d.gpu, nil
	}
	win, ok := opts.Surface.(Window)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan presents to a window, got %T", driver.ErrFatal, opts.Surface)
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	gpu, err := newGPU(d, win, opts)
	if err != nil {
		return nil, err
	}
	d.gpu = gpu
	return gpu, nil
}

func (d *Driver) load() error {
	if d.loaded {
		return d.loadErr
	}
	d.loaded = true
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		d.loadErr = fmt.Errorf("%w: GetInstanceProcAddress is nil", driver.ErrNotInstalled)
		return d.loadErr
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		d.loadErr = fmt.Errorf("%w: %s", driver.ErrNotInstalled, err)
	}
	return d.loadErr
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		d.gpu.destroy()
		d.gpu = nil
	}
}

// GPU is an opened Vulkan device presenting to one window surface.
type GPU struct {
	drv       *Driver
	logger    *log.Logger
	window    Window
	allocator *vk.AllocationCallbacks

	instance      vk.Instance
	surface       vk.Surface
	debugCallback vk.DebugReportCallback
	validation    bool

	device *VulkanDevice
	info   driver.DeviceInfo
	locks  *VulkanLockPool
}

func newGPU(drv *Driver, win Window, opts driver.Options) (*GPU, error) {
	g := &GPU{
		drv:        drv,
		logger:     core.OrDiscard(opts.Logger).WithPrefix("vulkan"),
		window:     win,
		validation: opts.Validation,
		locks:      NewVulkanLockPool(),
	}
	if err := g.initialize(opts.AppName); err != nil {
		g.destroy()
		return nil, err
	}
	return g, nil
}

func (g *GPU) initialize(appName string) error {
	if err := g.createInstance(appName); err != nil {
		return err
	}
	if g.validation {
		if err := g.createDebugCallback(); err != nil {
			return err
		}
	}

	g.logger.Debug("creating Vulkan surface")
	surface, err := g.window.CreateWindowSurface(g.instance, nil)
	if err != nil {
		return fmt.Errorf("%w: creating window surface: %s", driver.ErrFatal, err)
	}
	g.surface = vk.SurfaceFromPointer(surface)

	candidates, err := enumerateDevices(g.instance, g.surface)
	if err != nil {
		return err
	}
	infos := make([]driver.DeviceInfo, len(candidates))
	for i, c := range candidates {
		infos[i] = c.info
		g.logger.Debug("physical device", "name", c.info.Name, "type", c.info.Type, "score", driver.ScoreDevice(c.info))
	}
	best, err := driver.PickDevice(infos)
	if err != nil {
		return err
	}
	chosen := candidates[best]
	g.info = chosen.info
	g.logger.Info("selected device",
		"name", chosen.info.Name,
		"api", fmt.Sprintf("%d.%d.%d",
			vk.Version(chosen.properties.ApiVersion).Major(),
			vk.Version(chosen.properties.ApiVersion).Minor(),
			vk.Version(chosen.properties.ApiVersion).Patch()),
		"local_mib", chosen.info.DeviceLocalMiB)
	return g.createDevice(chosen)
}

func (g *GPU) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Prism"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := g.window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if g.validation {
		ok, err := hasInstanceLayer(validationLayer)
		if err != nil {
			return err
		}
		if ok {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			g.logger.Warn("validation requested but layer is missing", "layer", validationLayer)
			g.validation = false
		}
	}
	g.logger.Debug("instance configuration", "extensions", extensions, "layers", layers)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, g.allocator, &g.instance)); err != nil {
		return err
	}
	if err := vk.InitInstance(g.instance); err != nil {
		return fmt.Errorf("%w: %s", driver.ErrFatal, err)
	}
	g.logger.Info("Vulkan instance created")
	return nil
}

func hasInstanceLayer(name string) (bool, error) {
	var count uint32
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return false, err
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func (g *GPU) createDebugCallback() error {
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: g.debugReport,
	}
	var dbg vk.DebugReportCallback
	if err := resultError("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(g.instance, &debugCreateInfo, g.allocator, &dbg)); err != nil {
		return err
	}
	g.debugCallback = dbg
	return nil
}

func (g *GPU) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		g.logger.Error(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		g.logger.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		g.logger.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode, "performance", true)
	default:
		g.logger.Debug(pMessage, "layer", pLayerPrefix, "code", messageCode)
	}
	return vk.Bool32(vk.False)
}

// destroy releases everything in the opposite order of creation. Resources
// created from the GPU must already be destroyed.
func (g *GPU) destroy() {
	if g.device != nil {
		vk.DeviceWaitIdle(g.device.LogicalDevice)
		g.destroyDevice()
	}
	if g.surface != vk.NullSurface {
		g.logger.Debug("destroying Vulkan surface")
		vk.DestroySurface(g.instance, g.surface, g.allocator)
		g.surface = vk.NullSurface
	}
	if g.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(g.instance, g.debugCallback, g.allocator)
		g.debugCallback = vk.NullDebugReportCallback
	}
	if g.instance != nil {
		g.logger.Debug("destroying Vulkan instance")
		vk.DestroyInstance(g.instance, g.allocator)
		g.instance = nil
	}
}

func (g *GPU) Driver() driver.Driver { return g.drv }

func (g *GPU) Info() driver.DeviceInfo { return g.info }

func (g *GPU) SurfaceSupport() (driver.SurfaceSupport, error) {
	raw, err := querySurfaceSupport(g.device.PhysicalDevice, g.surface)
	if err != nil {
		return driver.SurfaceSupport{}, err
	}
	return raw.convert(), nil
}

func (g *GPU) Submit(sub *driver.Submission) error {
	cb := sub.Cmd.(*CmdBuffer)
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	// The wait holds back color writes until the swapchain image is free.
	if sub.Wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{sub.Wait.(*Semaphore).handle}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if sub.Signal != nil {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{sub.Signal.(*Semaphore).handle}
	}
	fence := vk.NullFence
	if sub.Fence != nil {
		fence = sub.Fence.(*Fence).handle
	}
	return g.locks.SafeQueueCall(uint32(g.device.GraphicsQueueIndex), func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(g.device.GraphicsQueue, 1, []vk.SubmitInfo{info}, fence))
	})
}

func (g *GPU) Present(sc driver.Swapchain, index int, wait driver.Semaphore) error {
	s := sc.(*Swapchain)
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.handle},
		PImageIndices:  []uint32{uint32(index)},
	}
	if wait != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait.(*Semaphore).handle}
	}
	return g.locks.SafeQueueCall(uint32(g.device.PresentQueueIndex), func() error {
		return resultError("vkQueuePresent", vk.QueuePresent(g.device.PresentQueue, &presentInfo))
	})
}

func (g *GPU) WaitIdle() error {
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(g.device.LogicalDevice))
}
