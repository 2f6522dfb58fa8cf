package driver

import (
	"time"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Destroyer is the interface that wraps the Destroy method.
// Destroying a resource twice has no effect.
type Destroyer interface {
	Destroy()
}

// GPU is an opened device. All of its methods must be called from the
// thread that owns the frame loop.
type GPU interface {
	// Driver returns the driver that opened the GPU.
	Driver() Driver

	// Info describes the physical device that was selected.
	Info() DeviceInfo

	// SurfaceSupport queries what the device can present to the surface
	// right now. Capabilities change with the window size.
	SurfaceSupport() (SurfaceSupport, error)

	// NewSwapchain creates a swapchain. old, when not nil, is handed to the
	// backend for resource reuse; the caller still destroys it afterwards.
	NewSwapchain(desc SwapchainDesc, old Swapchain) (Swapchain, error)

	// NewBuffer creates a host-visible buffer that stays mapped for its
	// whole lifetime.
	NewBuffer(size int64, usage BufferUsage) (Buffer, error)

	NewImage(format PixelFmt, size Dim, usage ImageUsage) (Image, error)

	// WriteImage copies tightly packed pixels into img and leaves it ready
	// for sampling.
	WriteImage(img Image, pixels []byte) error

	NewSampler() (Sampler, error)

	NewRenderPass(desc RenderPassDesc) (RenderPass, error)

	// NewFramebuf binds views, in attachment order, to pass.
	NewFramebuf(pass RenderPass, views []ImageView, size Dim) (Framebuf, error)

	NewPipeline(desc *PipelineDesc) (Pipeline, error)

	NewCmdBuffer() (CmdBuffer, error)

	NewFence(signaled bool) (Fence, error)

	NewSemaphore() (Semaphore, error)

	// Submit queues recorded work. Fence is signaled once the work retires.
	Submit(sub *Submission) error

	// Present queues image index of sc for display after wait signals.
	// It returns ErrOutOfDate or ErrSuboptimal when the swapchain should
	// be recreated.
	Present(sc Swapchain, index int, wait Semaphore) error

	// WaitIdle blocks until all submitted work has retired.
	WaitIdle() error
}

// Submission is one queue submission.
type Submission struct {
	Cmd CmdBuffer
	// Wait and Signal may be nil, as for offscreen passes.
	Wait   Semaphore
	Signal Semaphore
	Fence  Fence
}

// Buffer is a persistently mapped GPU buffer.
type Buffer interface {
	Destroyer
	Size() int64
	// Bytes is the mapped memory. Writes are visible to the GPU without
	// an explicit flush.
	Bytes() []byte
}

type Image interface {
	Destroyer
	Size() Dim
	Format() PixelFmt
	// NewView creates a view covering the whole image.
	NewView() (ImageView, error)
}

type ImageView interface {
	Destroyer
	Image() Image
}

type Sampler interface {
	Destroyer
}

// RenderPassDesc describes a color attachment and an optional depth one.
type RenderPassDesc struct {
	ColorFormat PixelFmt
	// DepthFormat is FmtUndefined for passes without depth.
	DepthFormat PixelFmt
	// Present selects the final layout of the color attachment: ready for
	// presentation, or ready to be sampled by a later pass.
	Present bool
}

type RenderPass interface {
	Destroyer
}

type Framebuf interface {
	Destroyer
	Size() Dim
}

// PipelineDesc is the full, immutable state of a graphics pipeline.
type PipelineDesc struct {
	Pass           RenderPass
	VertexShader   []byte
	FragmentShader []byte
	Layout         metadata.VertexLayout
	Bindings       []metadata.DescriptorBinding
	PushConstants  []metadata.PushConstantRange
	Topology       metadata.Topology
	CullMode       metadata.FaceCullMode
	DepthTest      bool
	// Sets is the number of descriptor sets to allocate, one per frame in
	// flight.
	Sets int
}

// Pipeline is a graphics pipeline together with its descriptor pool and sets.
type Pipeline interface {
	Destroyer
	// SetBuffer points a uniform buffer binding of descriptor set set at buf.
	SetBuffer(set int, binding uint32, buf Buffer)
	// SetTexture writes element index of a sampler array binding of set.
	SetTexture(set int, binding uint32, index int, view ImageView, sampler Sampler)
}

// CmdBuffer records commands. Commands recorded outside Begin/End are
// ignored by every backend.
type CmdBuffer interface {
	Destroyer
	Reset() error
	Begin() error
	End() error
	BeginPass(pass RenderPass, fb Framebuf, clear []ClearValue)
	EndPass()
	// SetPipeline binds p and its descriptor set set.
	SetPipeline(p Pipeline, set int)
	SetViewport(vp Viewport)
	SetScissor(r Rect)
	SetVertexBuf(buf Buffer, off int64)
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)
	PushConstants(p Pipeline, stages metadata.ShaderStage, offset uint32, data []byte)
	Draw(vertCount, instCount, baseVert, baseInst int)
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)
}

// Fence is a GPU to CPU signal.
type Fence interface {
	Destroyer
	// Wait blocks until the fence signals. It returns ErrTimeout when
	// timeout expires first and ErrDeviceLost when the device is gone.
	Wait(timeout time.Duration) error
	// Reset unsignals the fence. Resetting an unsignaled fence has no effect.
	Reset() error
	Signaled() bool
}

// Semaphore is a GPU to GPU signal.
type Semaphore interface {
	Destroyer
}

// Swapchain is a presentable image rotation.
type Swapchain interface {
	Destroyer
	Views() []ImageView
	Format() SurfaceFormat
	PresentMode() PresentMode
	Extent() Dim
	// Next acquires the next image and returns its index. signal is
	// signaled when the image is ready to be rendered to.
	Next(signal Semaphore, timeout time.Duration) (int, error)
}
