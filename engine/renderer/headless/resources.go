package headless

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Buffer struct {
	handle
	data  []byte
	usage driver.BufferUsage
}

func (g *GPU) NewBuffer(size int64, usage driver.BufferUsage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("headless: buffer size %d: %w", size, driver.ErrNoDeviceMemory)
	}
	return &Buffer{handle: g.newHandle(KindBuffer), data: make([]byte, size), usage: usage}, nil
}

func (b *Buffer) Size() int64 { return int64(len(b.data)) }
func (b *Buffer) Bytes() []byte { return b.data }

type Image struct {
	handle
	format driver.PixelFmt
	size   driver.Dim
	usage  driver.ImageUsage
	pixels []byte
}

func (g *GPU) NewImage(format driver.PixelFmt, size driver.Dim, usage driver.ImageUsage) (driver.Image, error) {
	if size.Empty() {
		return nil, fmt.Errorf("headless: image size %s is empty", size)
	}
	return &Image{handle: g.newHandle(KindImage), format: format, size: size, usage: usage}, nil
}

func (i *Image) Size() driver.Dim { return i.size }
func (i *Image) Format() driver.PixelFmt { return i.format }
func (i *Image) Usage() driver.ImageUsage { return i.usage }

// Pixels returns the last data written with WriteImage.
func (i *Image) Pixels() []byte { return i.pixels }

func (i *Image) NewView() (driver.ImageView, error) {
	i.use("NewView")
	return &ImageView{handle: i.gpu.newHandle(KindView), image: i}, nil
}

func (g *GPU) WriteImage(img driver.Image, pixels []byte) error {
	i := img.(*Image)
	i.use("WriteImage")
	want := i.size.Width * i.size.Height * i.format.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("headless: image write of %d bytes, want %d", len(pixels), want)
	}
	i.pixels = append(i.pixels[:0], pixels...)
	return nil
}

type ImageView struct {
	handle
	image *Image
}

func (v *ImageView) Image() driver.Image { return v.image }

type Sampler struct {
	handle
}

func (g *GPU) NewSampler() (driver.Sampler, error) {
	return &Sampler{handle: g.newHandle(KindSampler)}, nil
}

type RenderPass struct {
	handle
	Desc driver.RenderPassDesc
}

func (g *GPU) NewRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	if desc.ColorFormat == driver.FmtUndefined {
		return nil, fmt.Errorf("headless: render pass without color format")
	}
	return &RenderPass{handle: g.newHandle(KindRenderPass), Desc: desc}, nil
}

type Framebuf struct {
	handle
	Pass  *RenderPass
	Views []driver.ImageView
	size  driver.Dim
}

func (g *GPU) NewFramebuf(pass driver.RenderPass, views []driver.ImageView, size driver.Dim) (driver.Framebuf, error) {
	rp := pass.(*RenderPass)
	rp.use("NewFramebuf")
	want := 1
	if rp.Desc.DepthFormat != driver.FmtUndefined {
		want = 2
	}
	if len(views) != want {
		return nil, fmt.Errorf("headless: framebuffer has %d views, pass needs %d", len(views), want)
	}
	for _, v := range views {
		view := v.(*ImageView)
		view.use("NewFramebuf")
		if view.image.size != size {
			return nil, fmt.Errorf("headless: view of %s bound to framebuffer of %s", view.image.size, size)
		}
	}
	return &Framebuf{handle: g.newHandle(KindFramebuf), Pass: rp, Views: views, size: size}, nil
}

func (f *Framebuf) Size() driver.Dim { return f.size }

type Fence struct {
	handle
	signaled bool
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	return &Fence{handle: g.newHandle(KindFence), signaled: signaled}, nil
}

// Wait never sleeps: an unsignaled fence here can never signal, so it
// reports the timeout straight away.
func (f *Fence) Wait(timeout time.Duration) error {
	f.use("Wait")
	f.gpu.stats.FenceWaits++
	if f.signaled {
		return nil
	}
	f.gpu.stats.BlockedWaits++
	return driver.ErrTimeout
}

func (f *Fence) Reset() error {
	f.signaled = false
	return nil
}

func (f *Fence) Signaled() bool { return f.signaled }

type Semaphore struct {
	handle
	// Pending is true between the signaling submission and the consuming wait.
	Pending bool
}

func (g *GPU) NewSemaphore() (driver.Semaphore, error) {
	return &Semaphore{handle: g.newHandle(KindSemaphore)}, nil
}

func (g *GPU) Submit(sub *driver.Submission) error {
	cb := sub.Cmd.(*CmdBuffer)
	cb.use("Submit")
	if cb.state != cmdEnded {
		return fmt.Errorf("headless: submit of a command buffer that was not ended")
	}
	if sub.Wait != nil {
		sem := sub.Wait.(*Semaphore)
		if !sem.Pending {
			return fmt.Errorf("headless: submission waits on a semaphore nothing signaled")
		}
		sem.Pending = false
	}
	if sub.Signal != nil {
		sub.Signal.(*Semaphore).Pending = true
	}
	cb.state = cmdSubmitted
	g.stats.Submissions++
	if sub.Fence != nil {
		if g.hangSubmits > 0 {
			g.hangSubmits--
		} else {
			sub.Fence.(*Fence).signaled = true
		}
	}
	return nil
}

func (g *GPU) Present(sc driver.Swapchain, index int, wait driver.Semaphore) error {
	s := sc.(*Swapchain)
	s.use("Present")
	if index < 0 || index >= len(s.views) {
		return fmt.Errorf("headless: present of image %d out of %d", index, len(s.views))
	}
	if wait != nil {
		sem := wait.(*Semaphore)
		if !sem.Pending {
			return fmt.Errorf("headless: present waits on a semaphore nothing signaled")
		}
		sem.Pending = false
	}
	g.stats.Presents++
	if len(g.failPresent) > 0 {
		err := g.failPresent[0]
		g.failPresent = g.failPresent[1:]
		return err
	}
	return nil
}

func (g *GPU) WaitIdle() error {
	g.stats.IdleWaits++
	return nil
}

type Swapchain struct {
	handle
	desc   driver.SwapchainDesc
	images []*Image
	views  []driver.ImageView
	next   int
}

func (g *GPU) NewSwapchain(desc driver.SwapchainDesc, old driver.Swapchain) (driver.Swapchain, error) {
	if desc.Extent.Empty() {
		return nil, fmt.Errorf("headless: swapchain extent %s is empty", desc.Extent)
	}
	if desc.ImageCount < 1 {
		return nil, fmt.Errorf("headless: swapchain needs at least one image")
	}
	sc := &Swapchain{handle: g.newHandle(KindSwapchain), desc: desc}
	for i := 0; i < desc.ImageCount; i++ {
		// Swapchain images belong to the swapchain and are not counted.
		img := &Image{handle: handle{gpu: g, kind: "swapchain-image"}, format: desc.Format.Format, size: desc.Extent, usage: driver.UsageRenderTarget}
		sc.images = append(sc.images, img)
		view, err := img.NewView()
		if err != nil {
			return nil, err
		}
		sc.views = append(sc.views, view)
	}
	return sc, nil
}

func (s *Swapchain) Views() []driver.ImageView { return s.views }
func (s *Swapchain) Format() driver.SurfaceFormat { return s.desc.Format }
func (s *Swapchain) PresentMode() driver.PresentMode { return s.desc.PresentMode }
func (s *Swapchain) Extent() driver.Dim { return s.desc.Extent }
func (s *Swapchain) Desc() driver.SwapchainDesc { return s.desc }

// Destroy releases the swapchain together with the views of its images.
func (s *Swapchain) Destroy() {
	if s.destroyed {
		return
	}
	for _, v := range s.views {
		v.Destroy()
	}
	s.handle.Destroy()
}

func (s *Swapchain) Next(signal driver.Semaphore, timeout time.Duration) (int, error) {
	s.use("Next")
	s.gpu.stats.Acquires++
	if len(s.gpu.failAcquire) > 0 {
		err := s.gpu.failAcquire[0]
		s.gpu.failAcquire = s.gpu.failAcquire[1:]
		if err != driver.ErrSuboptimal {
			return -1, err
		}
		idx := s.advance(signal)
		return idx, err
	}
	return s.advance(signal), nil
}

func (s *Swapchain) advance(signal driver.Semaphore) int {
	idx := s.next
	s.next = (s.next + 1) % len(s.views)
	if signal != nil {
		signal.(*Semaphore).Pending = true
	}
	return idx
}
