// Package headless is a software driver. It creates no GPU work: handles are
// plain Go values, fences signal at submission and command buffers keep the
// commands they record. Every create and destroy is counted so callers can
// check resource lifetimes.
package headless

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Name is the name the driver registers under.
const Name = "headless"

func init() {
	driver.Register(&Driver{})
}

// Config shapes the simulated device and surface.
type Config struct {
	// Devices are the candidates device selection chooses from. Empty
	// means one suitable discrete device.
	Devices []driver.DeviceInfo
	Formats []driver.SurfaceFormat
	Modes   []driver.PresentMode
	// MinImages and MaxImages bound the swapchain image count.
	MinImages int
	MaxImages int
	// FreeExtent makes the surface leave the extent to the swapchain
	// instead of reporting the surface size as current.
	FreeExtent bool
}

func DefaultConfig() Config {
	return Config{
		Devices: []driver.DeviceInfo{{
			Name:               "headless",
			Type:               driver.DeviceDiscrete,
			GraphicsQueue:      true,
			PresentQueue:       true,
			SwapchainExtension: true,
			SurfaceFormats:     2,
			PresentModes:       2,
			DeviceLocalMiB:     1024,
		}},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FmtBGRA8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			{Format: driver.FmtBGRA8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear},
		},
		Modes:     []driver.PresentMode{driver.PresentFIFO, driver.PresentMailbox},
		MinImages: 2,
		MaxImages: 3,
	}
}

// Driver opens headless GPUs.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

func (d *Driver) Name() string { return Name }

// Open returns the driver's GPU, creating it with DefaultConfig on first use.
func (d *Driver) Open(opts driver.Options) (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		return d.gpu, nil
	}
	gpu, err := New(DefaultConfig(), opts)
	if err != nil {
		return nil, err
	}
	gpu.drv = d
	d.gpu = gpu
	return gpu, nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
}

// Kind names a type of handle for lifetime accounting.
type Kind string

const (
	KindBuffer     Kind = "buffer"
	KindImage      Kind = "image"
	KindView       Kind = "view"
	KindSampler    Kind = "sampler"
	KindRenderPass Kind = "renderpass"
	KindFramebuf   Kind = "framebuffer"
	KindPipeline   Kind = "pipeline"
	KindCmdBuffer  Kind = "cmdbuffer"
	KindFence      Kind = "fence"
	KindSemaphore  Kind = "semaphore"
	KindSwapchain  Kind = "swapchain"
)

type counter struct {
	created   int
	destroyed int
}

// Stats are counters of queue activity.
type Stats struct {
	Submissions  int
	Presents     int
	Acquires     int
	FenceWaits   int
	BlockedWaits int
	IdleWaits    int
}

// GPU is a simulated device. It is not safe for concurrent use, the same as
// the frame loop that drives it.
type GPU struct {
	drv     driver.Driver
	cfg     Config
	info    driver.DeviceInfo
	surface driver.Surface
	logger  *log.Logger

	counts map[Kind]*counter
	stats  Stats

	failAcquire []error
	failPresent []error
	failBegin   []error
	hangSubmits int
}

// New creates a GPU without going through the registry.
func New(cfg Config, opts driver.Options) (*GPU, error) {
	devices := cfg.Devices
	if len(devices) == 0 {
		devices = DefaultConfig().Devices
	}
	idx, err := driver.PickDevice(devices)
	if err != nil {
		return nil, err
	}
	g := &GPU{
		cfg:     cfg,
		info:    devices[idx],
		surface: opts.Surface,
		logger:  core.OrDiscard(opts.Logger),
		counts:  make(map[Kind]*counter),
	}
	g.logger.Debug("headless device selected", "name", g.info.Name)
	return g, nil
}

func (g *GPU) Driver() driver.Driver {
	if g.drv == nil {
		return &Driver{gpu: g}
	}
	return g.drv
}

func (g *GPU) Info() driver.DeviceInfo { return g.info }

func (g *GPU) SurfaceSupport() (driver.SurfaceSupport, error) {
	size := driver.Dim{Width: 800, Height: 600}
	if g.surface != nil {
		size.Width, size.Height = g.surface.FramebufferSize()
	}
	return driver.SurfaceSupport{
		Formats:      append([]driver.SurfaceFormat(nil), g.cfg.Formats...),
		PresentModes: append([]driver.PresentMode(nil), g.cfg.Modes...),
		Caps: driver.SurfaceCaps{
			MinImages:      g.cfg.MinImages,
			MaxImages:      g.cfg.MaxImages,
			CurrentDefined: !g.cfg.FreeExtent,
			Current:        size,
			MinExtent:      driver.Dim{Width: 1, Height: 1},
			MaxExtent:      driver.Dim{Width: 16384, Height: 16384},
		},
	}, nil
}

// FailNextAcquire makes the following swapchain acquisitions fail with errs,
// one per call, in order.
func (g *GPU) FailNextAcquire(errs ...error) {
	g.failAcquire = append(g.failAcquire, errs...)
}

// FailNextPresent makes the following presents return errs, in order.
func (g *GPU) FailNextPresent(errs ...error) {
	g.failPresent = append(g.failPresent, errs...)
}

// FailNextBegin makes the following command buffer Begins fail with errs,
// in order.
func (g *GPU) FailNextBegin(errs ...error) {
	g.failBegin = append(g.failBegin, errs...)
}

// HangNextSubmits leaves the fences of the next n submissions unsignaled.
func (g *GPU) HangNextSubmits(n int) {
	g.hangSubmits += n
}

// Created is how many handles of kind were ever created.
func (g *GPU) Created(kind Kind) int { return g.count(kind).created }

// Destroyed is how many handles of kind were destroyed.
func (g *GPU) Destroyed(kind Kind) int { return g.count(kind).destroyed }

// Live is how many handles of kind exist right now.
func (g *GPU) Live(kind Kind) int {
	c := g.count(kind)
	return c.created - c.destroyed
}

func (g *GPU) Stats() Stats { return g.stats }

func (g *GPU) count(kind Kind) *counter {
	c, ok := g.counts[kind]
	if !ok {
		c = &counter{}
		g.counts[kind] = c
	}
	return c
}

// handle is embedded by every resource for accounting.
type handle struct {
	gpu       *GPU
	kind      Kind
	destroyed bool
}

func (g *GPU) newHandle(kind Kind) handle {
	g.count(kind).created++
	return handle{gpu: g, kind: kind}
}

func (h *handle) Destroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.gpu.count(h.kind).destroyed++
}

// IsDestroyed reports whether Destroy was called.
func (h *handle) IsDestroyed() bool { return h.destroyed }

func (h *handle) use(what string) {
	if h.destroyed {
		panic(fmt.Sprintf("headless: use of destroyed %s in %s", h.kind, what))
	}
}
