package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Buffer is a host-visible GPU buffer that stays mapped.
type Buffer struct {
	handle driver.Buffer
}

func NewBuffer(dev *GraphicsDevice, size int64, usage driver.BufferUsage) (*Buffer, error) {
	buf, err := dev.gpu.NewBuffer(size, usage)
	if err != nil {
		err = fmt.Errorf("creating %d byte buffer: %w", size, err)
		dev.logger.Error(err.Error())
		return nil, err
	}
	return &Buffer{handle: buf}, nil
}

// Write copies data at offset. It never writes partially.
func (b *Buffer) Write(offset int64, data []byte) error {
	if b.handle == nil {
		return ErrDestroyed
	}
	if offset < 0 || offset+int64(len(data)) > b.handle.Size() {
		return fmt.Errorf("%w: %d bytes at %d into %d", ErrBufferOverflow, len(data), offset, b.handle.Size())
	}
	copy(b.handle.Bytes()[offset:], data)
	return nil
}

// Bytes is the mapped memory of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.handle.Bytes()
}

func (b *Buffer) Size() int64 {
	return b.handle.Size()
}

func (b *Buffer) Handle() driver.Buffer {
	return b.handle
}

func (b *Buffer) Destroy() {
	if b.handle != nil {
		b.handle.Destroy()
		b.handle = nil
	}
}

// VertexBuffer holds immutable interleaved vertices.
type VertexBuffer struct {
	buf    *Buffer
	layout metadata.VertexLayout
	count  int
}

func NewVertexBuffer(dev *GraphicsDevice, layout metadata.VertexLayout, data []byte) (*VertexBuffer, error) {
	stride := int(layout.Size())
	if stride == 0 || len(data) == 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("vertex data of %d bytes is not a whole number of %d byte vertices", len(data), stride)
	}
	buf, err := NewBuffer(dev, int64(len(data)), driver.UsageVertex)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, err
	}
	return &VertexBuffer{buf: buf, layout: layout, count: len(data) / stride}, nil
}

func (v *VertexBuffer) Count() int { return v.count }
func (v *VertexBuffer) Layout() metadata.VertexLayout { return v.layout }
func (v *VertexBuffer) Destroy() { v.buf.Destroy() }

// DynamicVertexBuffer is rewritten every frame. It keeps one replica per
// frame in flight so a frame never overwrites vertices an earlier frame is
// still reading. A replica grows to the peak vertex count and never shrinks.
type DynamicVertexBuffer struct {
	dev      *GraphicsDevice
	layout   metadata.VertexLayout
	replicas []*Buffer
	capacity []int
	counts   []int
}

func NewDynamicVertexBuffer(dev *GraphicsDevice, layout metadata.VertexLayout, capacity int) (*DynamicVertexBuffer, error) {
	if capacity < 1 {
		capacity = 1
	}
	n := dev.FramesInFlight()
	d := &DynamicVertexBuffer{
		dev:      dev,
		layout:   layout,
		replicas: make([]*Buffer, n),
		capacity: make([]int, n),
		counts:   make([]int, n),
	}
	for i := range d.replicas {
		buf, err := NewBuffer(dev, int64(capacity)*int64(layout.Size()), driver.UsageVertex)
		if err != nil {
			d.Destroy()
			return nil, err
		}
		d.replicas[i] = buf
		d.capacity[i] = capacity
	}
	return d, nil
}

// Upload replaces the current frame's vertices.
func (d *DynamicVertexBuffer) Upload(data []byte) error {
	stride := int(d.layout.Size())
	if len(data)%stride != 0 {
		return fmt.Errorf("vertex data of %d bytes is not a whole number of %d byte vertices", len(data), stride)
	}
	frame := d.dev.CurrentFrame()
	count := len(data) / stride
	if count > d.capacity[frame] {
		buf, err := NewBuffer(d.dev, int64(len(data)), driver.UsageVertex)
		if err != nil {
			return err
		}
		d.replicas[frame].Destroy()
		d.replicas[frame] = buf
		d.capacity[frame] = count
	}
	if err := d.replicas[frame].Write(0, data); err != nil {
		return err
	}
	d.counts[frame] = count
	return nil
}

// Count is the number of vertices uploaded for the current frame.
func (d *DynamicVertexBuffer) Count() int {
	return d.counts[d.dev.CurrentFrame()]
}

// Capacity is the vertex capacity of the current frame's replica.
func (d *DynamicVertexBuffer) Capacity() int {
	return d.capacity[d.dev.CurrentFrame()]
}

func (d *DynamicVertexBuffer) current() *Buffer {
	return d.replicas[d.dev.CurrentFrame()]
}

func (d *DynamicVertexBuffer) Destroy() {
	for _, r := range d.replicas {
		if r != nil {
			r.Destroy()
		}
	}
}

// IndexBuffer holds 16-bit indices.
type IndexBuffer struct {
	buf   *Buffer
	count int
}

func NewIndexBuffer(dev *GraphicsDevice, indices []uint16) (*IndexBuffer, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("index buffer without indices")
	}
	data := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		data = binary.LittleEndian.AppendUint16(data, i)
	}
	buf, err := NewBuffer(dev, int64(len(data)), driver.UsageIndex)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, err
	}
	return &IndexBuffer{buf: buf, count: len(indices)}, nil
}

func (i *IndexBuffer) Count() int { return i.count }
func (i *IndexBuffer) Destroy() { i.buf.Destroy() }

// Mesh pairs the vertex and index buffers of one drawable shape.
type Mesh struct {
	Vertices *VertexBuffer
	Indices  *IndexBuffer
}

func NewMesh(dev *GraphicsDevice, layout metadata.VertexLayout, vertices []byte, indices []uint16) (*Mesh, error) {
	vb, err := NewVertexBuffer(dev, layout, vertices)
	if err != nil {
		return nil, err
	}
	ib, err := NewIndexBuffer(dev, indices)
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	return &Mesh{Vertices: vb, Indices: ib}, nil
}

func (m *Mesh) Destroy() {
	m.Vertices.Destroy()
	m.Indices.Destroy()
}

// Texture is an RGBA8 image with its view and sampler. It is either sampled
// from uploaded pixels or rendered into as an offscreen target.
type Texture struct {
	id     core.ID
	dev    *GraphicsDevice
	format driver.PixelFmt
	usage  driver.ImageUsage

	image   driver.Image
	view    driver.ImageView
	sampler driver.Sampler
}

// NewTexture creates a width x height texture. pixels are tightly packed
// RGBA8; nil creates a render target instead.
func NewTexture(dev *GraphicsDevice, width, height int, pixels []byte) (*Texture, error) {
	t := &Texture{id: core.NewID(), dev: dev, format: driver.FmtRGBA8Unorm}
	if pixels == nil {
		t.usage = driver.UsageRenderTarget | driver.UsageSampled
	} else {
		t.usage = driver.UsageSampled | driver.UsageCopyDst
		if len(pixels) != width*height*4 {
			return nil, fmt.Errorf("texture %dx%d needs %d bytes of pixels, got %d", width, height, width*height*4, len(pixels))
		}
	}
	sampler, err := dev.gpu.NewSampler()
	if err != nil {
		return nil, fmt.Errorf("creating sampler: %w", err)
	}
	t.sampler = sampler
	if err := t.allocate(width, height); err != nil {
		sampler.Destroy()
		return nil, err
	}
	if pixels != nil {
		if err := dev.gpu.WriteImage(t.image, pixels); err != nil {
			t.Destroy()
			return nil, fmt.Errorf("uploading texture pixels: %w", err)
		}
	}
	dev.logger.Debug("texture created", "id", core.ShortID(t.id), "width", width, "height", height)
	return t, nil
}

// NewSolidTexture creates a 1x1 texture of rgba, packed as 0xRRGGBBAA.
func NewSolidTexture(dev *GraphicsDevice, rgba uint32) (*Texture, error) {
	px := []byte{byte(rgba >> 24), byte(rgba >> 16), byte(rgba >> 8), byte(rgba)}
	return NewTexture(dev, 1, 1, px)
}

func (t *Texture) allocate(width, height int) error {
	img, err := t.dev.gpu.NewImage(t.format, driver.Dim{Width: width, Height: height}, t.usage)
	if err != nil {
		err = fmt.Errorf("creating %dx%d texture image: %w", width, height, err)
		t.dev.logger.Error(err.Error())
		return err
	}
	view, err := img.NewView()
	if err != nil {
		img.Destroy()
		return fmt.Errorf("creating texture view: %w", err)
	}
	t.image = img
	t.view = view
	return nil
}

func (t *Texture) release() {
	if t.view != nil {
		t.view.Destroy()
		t.view = nil
	}
	if t.image != nil {
		t.image.Destroy()
		t.image = nil
	}
}

// Resize destroys the image and view and recreates them at the new size.
// Pixel contents are not preserved. Called mid-frame, it runs once the frame
// finishes.
func (t *Texture) Resize(width, height int) error {
	if s := t.dev.scheduler; s != nil && s.Busy() {
		s.Defer(t, func() error { return t.Resize(width, height) })
		return nil
	}
	if t.image != nil && t.image.Size() == (driver.Dim{Width: width, Height: height}) {
		return nil
	}
	if err := t.dev.gpu.WaitIdle(); err != nil {
		return err
	}
	t.release()
	return t.allocate(width, height)
}

func (t *Texture) ID() core.ID { return t.id }
func (t *Texture) Width() int { return t.image.Size().Width }
func (t *Texture) Height() int { return t.image.Size().Height }
func (t *Texture) Size() driver.Dim { return t.image.Size() }
func (t *Texture) Format() driver.PixelFmt { return t.format }
func (t *Texture) View() driver.ImageView { return t.view }
func (t *Texture) Sampler() driver.Sampler { return t.sampler }
func (t *Texture) Image() driver.Image { return t.image }

func (t *Texture) Destroy() {
	t.release()
	if t.sampler != nil {
		t.sampler.Destroy()
		t.sampler = nil
	}
}
