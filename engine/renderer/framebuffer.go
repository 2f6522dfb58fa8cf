package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type RenderPassTarget int

const (
	// TargetSwapchain renders into the presentable images.
	TargetSwapchain RenderPassTarget = iota
	// TargetTexture renders into an application owned texture.
	TargetTexture
)

func (t RenderPassTarget) String() string {
	if t == TargetTexture {
		return "texture"
	}
	return "swapchain"
}

type RenderPassConfig struct {
	Target     RenderPassTarget
	ClearColor [4]float32
	// Depth adds a D32 depth attachment.
	Depth bool
}

// RenderPass describes the attachments of a target. It is created once and
// reused for every frame.
type RenderPass struct {
	id     core.ID
	cfg    RenderPassConfig
	color  driver.PixelFmt
	depth  driver.PixelFmt
	handle driver.RenderPass
}

func NewRenderPass(dev *GraphicsDevice, cfg RenderPassConfig) (*RenderPass, error) {
	rp := &RenderPass{id: core.NewID(), cfg: cfg, color: driver.FmtRGBA8Unorm, depth: driver.FmtUndefined}
	if cfg.Target == TargetSwapchain {
		rp.color = dev.SurfaceFormat().Format
	}
	if cfg.Depth {
		rp.depth = driver.FmtD32F
	}
	handle, err := dev.gpu.NewRenderPass(driver.RenderPassDesc{
		ColorFormat: rp.color,
		DepthFormat: rp.depth,
		Present:     cfg.Target == TargetSwapchain,
	})
	if err != nil {
		err = fmt.Errorf("creating %s render pass: %w", cfg.Target, err)
		dev.logger.Error(err.Error())
		return nil, err
	}
	rp.handle = handle
	dev.logger.Debug("render pass created", "id", core.ShortID(rp.id), "target", cfg.Target, "color", rp.color, "depth", cfg.Depth)
	return rp, nil
}

func (rp *RenderPass) ID() core.ID { return rp.id }
func (rp *RenderPass) Target() RenderPassTarget { return rp.cfg.Target }
func (rp *RenderPass) ColorFormat() driver.PixelFmt { return rp.color }
func (rp *RenderPass) HasDepth() bool { return rp.cfg.Depth }
func (rp *RenderPass) Handle() driver.RenderPass { return rp.handle }

// ClearValues are the color and, with depth, a depth of 1.
func (rp *RenderPass) ClearValues() []driver.ClearValue {
	values := []driver.ClearValue{{Color: rp.cfg.ClearColor}}
	if rp.cfg.Depth {
		values = append(values, driver.ClearValue{Depth: 1})
	}
	return values
}

func (rp *RenderPass) Destroy() {
	if rp.handle != nil {
		rp.handle.Destroy()
		rp.handle = nil
	}
}

// Framebuffer binds a render pass to concrete images. A swapchain
// framebuffer holds one handle per swapchain image sharing one depth
// attachment. An offscreen framebuffer holds one handle over its texture.
type Framebuffer struct {
	id      core.ID
	dev     *GraphicsDevice
	pass    *RenderPass
	texture *Texture

	depthImage driver.Image
	depthView  driver.ImageView
	handles    []driver.Framebuf
	size       driver.Dim
}

// NewFramebuffer creates a framebuffer for pass. A nil texture targets the
// swapchain, and the framebuffer then follows every swapchain recreation.
func NewFramebuffer(dev *GraphicsDevice, pass *RenderPass, texture *Texture) (*Framebuffer, error) {
	if (texture == nil) != (pass.Target() == TargetSwapchain) {
		return nil, fmt.Errorf("framebuffer target does not match %s render pass", pass.Target())
	}
	fb := &Framebuffer{id: core.NewID(), dev: dev, pass: pass, texture: texture}
	if err := fb.create(); err != nil {
		return nil, err
	}
	if texture == nil {
		dev.addDependent(fb)
	}
	dev.logger.Debug("framebuffer created", "id", core.ShortID(fb.id), "target", pass.Target(), "extent", fb.size, "handles", len(fb.handles))
	return fb, nil
}

func (fb *Framebuffer) create() error {
	gpu := fb.dev.gpu
	size := fb.Extent()

	var color []driver.ImageView
	if fb.texture != nil {
		color = []driver.ImageView{fb.texture.View()}
	} else {
		color = fb.dev.Swapchain().Views()
	}

	if fb.pass.HasDepth() {
		img, err := gpu.NewImage(driver.FmtD32F, size, driver.UsageDepthStencil)
		if err != nil {
			err = fmt.Errorf("creating %s depth attachment: %w", size, err)
			fb.dev.logger.Error(err.Error())
			return err
		}
		view, err := img.NewView()
		if err != nil {
			img.Destroy()
			return fmt.Errorf("creating depth view: %w", err)
		}
		fb.depthImage = img
		fb.depthView = view
	}

	for _, c := range color {
		views := []driver.ImageView{c}
		if fb.depthView != nil {
			views = append(views, fb.depthView)
		}
		h, err := gpu.NewFramebuf(fb.pass.Handle(), views, size)
		if err != nil {
			fb.release()
			err = fmt.Errorf("creating %s framebuffer: %w", size, err)
			fb.dev.logger.Error(err.Error())
			return err
		}
		fb.handles = append(fb.handles, h)
	}
	fb.size = size
	return nil
}

func (fb *Framebuffer) release() {
	for _, h := range fb.handles {
		h.Destroy()
	}
	fb.handles = fb.handles[:0]
	if fb.depthView != nil {
		fb.depthView.Destroy()
		fb.depthView = nil
	}
	if fb.depthImage != nil {
		fb.depthImage.Destroy()
		fb.depthImage = nil
	}
}

// OnResize reallocates the depth attachment and every handle. An offscreen
// framebuffer resizes its texture to width x height first; a swapchain
// framebuffer follows the device extent. Requests made while a frame is in
// flight run when it finishes, and only the last of them runs.
func (fb *Framebuffer) OnResize(width, height int) error {
	if s := fb.dev.scheduler; s != nil && s.Busy() {
		fb.dev.logger.Debug("framebuffer resize deferred until frame end", "id", core.ShortID(fb.id), "width", width, "height", height)
		s.Defer(fb, func() error { return fb.OnResize(width, height) })
		return nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := fb.dev.gpu.WaitIdle(); err != nil {
		return err
	}
	if fb.texture != nil {
		if err := fb.texture.Resize(width, height); err != nil {
			return err
		}
	}
	fb.release()
	return fb.create()
}

func (fb *Framebuffer) recreateForSwapchain() error {
	fb.release()
	return fb.create()
}

// Extent is the texture size when offscreen, else the swapchain extent.
func (fb *Framebuffer) Extent() driver.Dim {
	if fb.texture != nil {
		return fb.texture.Size()
	}
	return fb.dev.Extent()
}

func (fb *Framebuffer) IsOffscreen() bool { return fb.texture != nil }

// Handle returns the framebuffer for a swapchain image. Offscreen
// framebuffers have one handle and ignore imageIndex.
func (fb *Framebuffer) Handle(imageIndex int) driver.Framebuf {
	if fb.texture != nil {
		return fb.handles[0]
	}
	return fb.handles[imageIndex]
}

func (fb *Framebuffer) HandleCount() int { return len(fb.handles) }
func (fb *Framebuffer) ID() core.ID { return fb.id }
func (fb *Framebuffer) Pass() *RenderPass { return fb.pass }
func (fb *Framebuffer) Texture() *Texture { return fb.texture }
func (fb *Framebuffer) DepthView() driver.ImageView { return fb.depthView }

func (fb *Framebuffer) Destroy() {
	fb.release()
	if fb.texture == nil {
		fb.dev.removeDependent(fb)
	}
}
