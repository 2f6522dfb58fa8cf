package driver

import "fmt"

// Dim is a two-dimensional size in pixels.
type Dim struct {
	Width  int
	Height int
}

func (d Dim) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Empty reports whether either side is zero, as for a minimized window.
func (d Dim) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

// PixelFmt is the format of an image.
type PixelFmt int

const (
	FmtUndefined PixelFmt = iota
	FmtRGBA8Unorm
	FmtRGBA8SRGB
	FmtBGRA8Unorm
	FmtBGRA8SRGB
	FmtD32F
)

func (f PixelFmt) IsSRGB() bool {
	return f == FmtRGBA8SRGB || f == FmtBGRA8SRGB
}

func (f PixelFmt) IsDepth() bool {
	return f == FmtD32F
}

// BytesPerPixel is 4 for every supported format.
func (f PixelFmt) BytesPerPixel() int {
	if f == FmtUndefined {
		return 0
	}
	return 4
}

func (f PixelFmt) String() string {
	switch f {
	case FmtRGBA8Unorm:
		return "RGBA8_UNORM"
	case FmtRGBA8SRGB:
		return "RGBA8_SRGB"
	case FmtBGRA8Unorm:
		return "BGRA8_UNORM"
	case FmtBGRA8SRGB:
		return "BGRA8_SRGB"
	case FmtD32F:
		return "D32_SFLOAT"
	default:
		return "UNDEFINED"
	}
}

// ColorSpace is the color space a surface format presents in.
type ColorSpace int

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceOther
)

// SurfaceFormat pairs a presentable pixel format with its color space.
type SurfaceFormat struct {
	Format     PixelFmt
	ColorSpace ColorSpace
}

// PresentMode is how presented images are queued for display.
type PresentMode int

const (
	PresentImmediate PresentMode = iota
	PresentMailbox
	PresentFIFO
	PresentFIFORelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentImmediate:
		return "immediate"
	case PresentMailbox:
		return "mailbox"
	case PresentFIFO:
		return "fifo"
	case PresentFIFORelaxed:
		return "fifo-relaxed"
	default:
		return "unknown"
	}
}

// SurfaceCaps are the swapchain limits of a surface.
type SurfaceCaps struct {
	MinImages int
	// MaxImages is 0 when there is no upper limit.
	MaxImages int
	// CurrentDefined is false when the surface lets the swapchain pick its
	// own extent.
	CurrentDefined bool
	Current        Dim
	MinExtent      Dim
	MaxExtent      Dim
}

// SurfaceSupport is what a device can present to a surface.
type SurfaceSupport struct {
	Formats      []SurfaceFormat
	PresentModes []PresentMode
	Caps         SurfaceCaps
}

// SwapchainDesc fully describes a swapchain to create.
type SwapchainDesc struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Dim
	ImageCount  int
}

// DeviceType classifies a physical device.
type DeviceType int

const (
	DeviceOther DeviceType = iota
	DeviceIntegrated
	DeviceDiscrete
	DeviceVirtual
	DeviceCPU
)

// DeviceInfo is what device selection knows about one physical device.
type DeviceInfo struct {
	Name string
	Type DeviceType
	// Queue families able to run graphics work and to present to the surface.
	GraphicsQueue bool
	PresentQueue  bool
	// SwapchainExtension reports support for presenting at all.
	SwapchainExtension bool
	SurfaceFormats     int
	PresentModes       int
	// DeviceLocalMiB is the largest device-local heap.
	DeviceLocalMiB uint64
}

// BufferUsage is a bit mask of the ways a buffer is bound.
type BufferUsage int

const (
	UsageVertex BufferUsage = 1 << iota
	UsageIndex
	UsageUniform
	UsageTransferSrc
)

// ImageUsage is a bit mask of the ways an image is used.
type ImageUsage int

const (
	UsageSampled ImageUsage = 1 << iota
	UsageRenderTarget
	UsageDepthStencil
	UsageCopyDst
)

// IndexFmt is the integer width of indices.
type IndexFmt int

const (
	Index16 IndexFmt = iota
	Index32
)

// Viewport is the region of the framebuffer rendered to.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	Znear, Zfar   float32
}

// Rect is a scissor rectangle.
type Rect struct {
	X, Y          int
	Width, Height int
}

// ClearValue is the clear color of a color attachment or the clear depth of
// a depth attachment, by position.
type ClearValue struct {
	Color [4]float32
	Depth float32
}
