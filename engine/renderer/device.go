package renderer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Viewport is the window (or embedded view) the swapchain is sized to.
type Viewport interface {
	Width() int
	Height() int
}

// DeviceConfig configures a GraphicsDevice.
type DeviceConfig struct {
	// FramesInFlight is how many frames the CPU may record ahead of the GPU.
	FramesInFlight int
	// VSync forces FIFO presentation.
	VSync bool
}

// swapchainDependent is anything sized to the swapchain that must be rebuilt
// after the swapchain is.
type swapchainDependent interface {
	recreateForSwapchain() error
}

// GraphicsDevice owns the opened GPU, the swapchain and the frame-in-flight index.
type GraphicsDevice struct {
	logger   *log.Logger
	gpu      driver.GPU
	viewport Viewport
	cfg      DeviceConfig

	swapchain   driver.Swapchain
	format      driver.SurfaceFormat
	presentMode driver.PresentMode
	extent      driver.Dim

	currentFrame int
	imageIndex   int

	// set by the FrameScheduler so resizes can be deferred while a frame
	// is in flight.
	scheduler  *FrameScheduler
	dependents []swapchainDependent
}

// NewGraphicsDevice wraps an opened GPU and creates the swapchain for viewport.
func NewGraphicsDevice(logger *log.Logger, gpu driver.GPU, viewport Viewport, cfg DeviceConfig) (*GraphicsDevice, error) {
	logger = core.OrDiscard(logger)
	if cfg.FramesInFlight < 2 {
		err := fmt.Errorf("%w: frames in flight must be at least 2, got %d", core.ErrInvalidConfig, cfg.FramesInFlight)
		logger.Error(err.Error())
		return nil, err
	}
	d := &GraphicsDevice{
		logger:   logger,
		gpu:      gpu,
		viewport: viewport,
		cfg:      cfg,
	}
	if err := d.CreateSwapChain(); err != nil {
		return nil, err
	}
	info := gpu.Info()
	logger.Info("graphics device ready", "device", info.Name, "frames", cfg.FramesInFlight, "extent", d.extent, "format", d.format.Format, "present", d.presentMode)
	return d, nil
}

// CreateSwapChain (re)creates the presentable image chain at the viewport's
// current size.
func (d *GraphicsDevice) CreateSwapChain() error {
	support, err := d.gpu.SurfaceSupport()
	if err != nil {
		err = fmt.Errorf("querying surface support: %w", err)
		d.logger.Error(err.Error())
		return err
	}
	format, err := driver.ChooseSurfaceFormat(support.Formats)
	if err != nil {
		d.logger.Error(err.Error())
		return err
	}
	mode, err := driver.ChoosePresentMode(support.PresentModes, d.cfg.VSync)
	if err != nil {
		d.logger.Error(err.Error())
		return err
	}
	extent := driver.ChooseExtent(support.Caps, d.viewport.Width(), d.viewport.Height())
	desc := driver.SwapchainDesc{
		Format:      format,
		PresentMode: mode,
		Extent:      extent,
		ImageCount:  driver.ChooseImageCount(support.Caps),
	}

	old := d.swapchain
	sc, err := d.gpu.NewSwapchain(desc, old)
	if err != nil {
		err = fmt.Errorf("creating swapchain %s: %w", extent, err)
		d.logger.Error(err.Error())
		return err
	}
	if old != nil {
		old.Destroy()
	}
	d.swapchain = sc
	d.format = format
	d.presentMode = mode
	d.extent = sc.Extent()
	d.imageIndex = 0
	d.logger.Debug("swapchain created", "extent", d.extent, "images", len(sc.Views()))
	return nil
}

// OnResize recreates the swapchain and everything sized to it. While a frame
// is recording or in flight the work is queued and runs once the frame finishes.
func (d *GraphicsDevice) OnResize(width, height int) error {
	if d.scheduler != nil && d.scheduler.Busy() {
		d.logger.Debug("device resize deferred until frame end", "width", width, "height", height)
		d.scheduler.Defer(d, func() error { return d.OnResize(width, height) })
		return nil
	}
	if width <= 0 || height <= 0 {
		// Minimized: keep the old swapchain until there is something to draw.
		return nil
	}
	return d.recreate()
}

// recreate rebuilds the swapchain and its dependents without checking
// for an in-flight frame. The scheduler calls it between frames.
func (d *GraphicsDevice) recreate() error {
	if err := d.gpu.WaitIdle(); err != nil {
		return err
	}
	if err := d.CreateSwapChain(); err != nil {
		return err
	}
	for _, dep := range d.dependents {
		if err := dep.recreateForSwapchain(); err != nil {
			return err
		}
	}
	return nil
}

func (d *GraphicsDevice) addDependent(dep swapchainDependent) {
	d.dependents = append(d.dependents, dep)
}

func (d *GraphicsDevice) removeDependent(dep swapchainDependent) {
	for i, other := range d.dependents {
		if other == dep {
			d.dependents = append(d.dependents[:i], d.dependents[i+1:]...)
			return
		}
	}
}

// CurrentFrame is the frame-in-flight index in [0, FramesInFlight).
func (d *GraphicsDevice) CurrentFrame() int {
	return d.currentFrame
}

// SetCurrentFrame sets the frame-in-flight index, wrapping modulo FramesInFlight.
func (d *GraphicsDevice) SetCurrentFrame(frame int) {
	n := d.cfg.FramesInFlight
	d.currentFrame = ((frame % n) + n) % n
}

func (d *GraphicsDevice) FramesInFlight() int {
	return d.cfg.FramesInFlight
}

// ImageIndex is the swapchain image acquired for the current frame.
func (d *GraphicsDevice) ImageIndex() int {
	return d.imageIndex
}

func (d *GraphicsDevice) Extent() driver.Dim {
	return d.extent
}

func (d *GraphicsDevice) SurfaceFormat() driver.SurfaceFormat {
	return d.format
}

func (d *GraphicsDevice) PresentMode() driver.PresentMode {
	return d.presentMode
}

func (d *GraphicsDevice) ImageCount() int {
	return len(d.swapchain.Views())
}

func (d *GraphicsDevice) Swapchain() driver.Swapchain {
	return d.swapchain
}

func (d *GraphicsDevice) GPU() driver.GPU {
	return d.gpu
}

func (d *GraphicsDevice) Logger() *log.Logger {
	return d.logger
}

func (d *GraphicsDevice) WaitIdle() error {
	return d.gpu.WaitIdle()
}

// Destroy waits for the device to go idle and releases the swapchain.
// Resources created against the device must be destroyed first.
func (d *GraphicsDevice) Destroy() {
	if d.swapchain == nil {
		return
	}
	if err := d.gpu.WaitIdle(); err != nil {
		d.logger.Warn("wait idle before destroy", "err", err)
	}
	d.swapchain.Destroy()
	d.swapchain = nil
}
