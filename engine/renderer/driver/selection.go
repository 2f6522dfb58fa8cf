package driver

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/math"
)

const (
	discreteScore   = 10_000_000
	integratedScore = 1_000
	// Heap size only breaks ties; it never outranks the device type.
	maxHeapScore = integratedScore - 1
)

// ChooseSurfaceFormat prefers BGRA8 sRGB with a nonlinear sRGB color space,
// then any sRGB format in that color space, then the first format reported.
func ChooseSurfaceFormat(formats []SurfaceFormat) (SurfaceFormat, error) {
	if len(formats) == 0 {
		return SurfaceFormat{}, fmt.Errorf("%w: surface reports no formats", ErrNoDevice)
	}
	for _, f := range formats {
		if f.Format == FmtBGRA8SRGB && f.ColorSpace == ColorSpaceSRGBNonlinear {
			return f, nil
		}
	}
	for _, f := range formats {
		if f.Format.IsSRGB() && f.ColorSpace == ColorSpaceSRGBNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// surface supports. vsync forces FIFO.
func ChoosePresentMode(modes []PresentMode, vsync bool) (PresentMode, error) {
	if len(modes) == 0 {
		return PresentFIFO, fmt.Errorf("%w: surface reports no present modes", ErrNoDevice)
	}
	if vsync {
		return PresentFIFO, nil
	}
	for _, m := range modes {
		if m == PresentMailbox {
			return m, nil
		}
	}
	return PresentFIFO, nil
}

// ChooseExtent uses the surface's current extent when it defines one and
// otherwise clamps the requested size into the supported range.
func ChooseExtent(caps SurfaceCaps, width, height int) Dim {
	if caps.CurrentDefined {
		return caps.Current
	}
	return Dim{
		Width:  math.Clamp(width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: math.Clamp(height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, within the maximum.
func ChooseImageCount(caps SurfaceCaps) int {
	count := caps.MinImages + 1
	if caps.MaxImages > 0 && count > caps.MaxImages {
		count = caps.MaxImages
	}
	return count
}

// ScoreDevice rates a physical device. Zero means unusable: no graphics or
// present queue, no swapchain support, or nothing to present with. Any
// discrete device outranks any integrated one; heap size breaks ties.
func ScoreDevice(info DeviceInfo) uint64 {
	if !info.GraphicsQueue || !info.PresentQueue || !info.SwapchainExtension {
		return 0
	}
	if info.SurfaceFormats == 0 || info.PresentModes == 0 {
		return 0
	}
	score := uint64(1)
	switch info.Type {
	case DeviceDiscrete:
		score += discreteScore
	case DeviceIntegrated:
		score += integratedScore
	}
	score += min(info.DeviceLocalMiB, maxHeapScore)
	return score
}

// PickDevice returns the index of the best scoring device. The first of
// equally scored devices wins.
func PickDevice(infos []DeviceInfo) (int, error) {
	best, bestScore := -1, uint64(0)
	for i, info := range infos {
		if s := ScoreDevice(info); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return -1, fmt.Errorf("%w: %d candidate(s) rejected", ErrNoDevice, len(infos))
	}
	return best, nil
}
