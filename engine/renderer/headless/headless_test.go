package headless

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type fixedSurface struct{ w, h int }

func (s fixedSurface) FramebufferSize() (int, int) { return s.w, s.h }

func newGPU(t *testing.T) *GPU {
	t.Helper()
	gpu, err := New(DefaultConfig(), driver.Options{Surface: fixedSurface{640, 480}})
	require.NoError(t, err)
	return gpu
}

func TestRegisteredUnderName(t *testing.T) {
	assert.Contains(t, driver.Drivers(), Name)
	gpu, err := driver.Open(Name, driver.Options{})
	require.NoError(t, err)
	again, err := driver.Open(Name, driver.Options{})
	require.NoError(t, err)
	assert.Same(t, gpu, again)
}

func TestNewRejectsUnsuitableDevices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices[0].PresentQueue = false
	_, err := New(cfg, driver.Options{})
	require.ErrorIs(t, err, driver.ErrNoDevice)
}

func TestHandleAccounting(t *testing.T) {
	gpu := newGPU(t)
	img, err := gpu.NewImage(driver.FmtRGBA8Unorm, driver.Dim{Width: 4, Height: 4}, driver.UsageSampled)
	require.NoError(t, err)
	view, err := img.NewView()
	require.NoError(t, err)

	assert.Equal(t, 1, gpu.Live(KindImage))
	assert.Equal(t, 1, gpu.Live(KindView))

	view.Destroy()
	view.Destroy()
	img.Destroy()
	assert.Equal(t, 1, gpu.Destroyed(KindView), "double destroy counts once")
	assert.Zero(t, gpu.Live(KindImage))
}

func TestSubmitSignalsFence(t *testing.T) {
	gpu := newGPU(t)
	fence, err := gpu.NewFence(false)
	require.NoError(t, err)
	cb, err := gpu.NewCmdBuffer()
	require.NoError(t, err)

	require.ErrorIs(t, fence.Wait(time.Second), driver.ErrTimeout)

	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	require.NoError(t, gpu.Submit(&driver.Submission{Cmd: cb, Fence: fence}))
	require.NoError(t, fence.Wait(time.Second))

	require.NoError(t, fence.Reset())
	require.NoError(t, cb.Reset())
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	gpu.HangNextSubmits(1)
	require.NoError(t, gpu.Submit(&driver.Submission{Cmd: cb, Fence: fence}))
	require.ErrorIs(t, fence.Wait(time.Second), driver.ErrTimeout)
	assert.Equal(t, 2, gpu.Stats().BlockedWaits)
}

func TestSwapchainRotatesAndFails(t *testing.T) {
	gpu := newGPU(t)
	sc, err := gpu.NewSwapchain(driver.SwapchainDesc{
		Format:     driver.SurfaceFormat{Format: driver.FmtBGRA8SRGB},
		Extent:     driver.Dim{Width: 640, Height: 480},
		ImageCount: 3,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, sc.Views(), 3)
	assert.Equal(t, 3, gpu.Live(KindView))

	sem, _ := gpu.NewSemaphore()
	for want := 0; want < 4; want++ {
		idx, err := sc.Next(sem, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want%3, idx)
	}

	gpu.FailNextAcquire(driver.ErrOutOfDate)
	_, err = sc.Next(sem, time.Second)
	require.ErrorIs(t, err, driver.ErrOutOfDate)

	sc.Destroy()
	assert.Zero(t, gpu.Live(KindView))
	assert.Zero(t, gpu.Live(KindSwapchain))
}

func TestCommandsOutsideRecordingAreDropped(t *testing.T) {
	gpu := newGPU(t)
	cb, _ := gpu.NewCmdBuffer()
	hcb := cb.(*CmdBuffer)

	cb.Draw(3, 1, 0, 0)
	assert.Empty(t, hcb.Commands())

	require.NoError(t, cb.Begin())
	cb.Draw(3, 1, 0, 0)
	cb.DrawIndexed(6, 1, 0, 0, 0)
	require.NoError(t, cb.End())
	assert.Equal(t, []Op{OpDraw, OpDrawIndexed}, hcb.Ops())
}
