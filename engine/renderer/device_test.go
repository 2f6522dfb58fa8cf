package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
)

func TestNewGraphicsDeviceRejectsSingleFrame(t *testing.T) {
	vp := &testViewport{w: 800, h: 600}
	gpu, err := headless.New(headless.DefaultConfig(), driver.Options{Surface: vp})
	require.NoError(t, err)
	_, err = NewGraphicsDevice(nil, gpu, vp, DeviceConfig{FramesInFlight: 1})
	require.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestCreateSwapChainSelection(t *testing.T) {
	e := newTestEnv(t, 2)
	assert.Equal(t, driver.FmtBGRA8SRGB, e.dev.SurfaceFormat().Format)
	assert.Equal(t, driver.PresentMailbox, e.dev.PresentMode())
	assert.Equal(t, driver.Dim{Width: 800, Height: 600}, e.dev.Extent())
	assert.Equal(t, 3, e.dev.ImageCount())
	assert.Equal(t, 3, e.gpu.Live(headless.KindView))
}

func TestCreateSwapChainVSyncForcesFIFO(t *testing.T) {
	e := newTestEnvWith(t, headless.DefaultConfig(), DeviceConfig{FramesInFlight: 2, VSync: true})
	assert.Equal(t, driver.PresentFIFO, e.dev.PresentMode())
}

func TestCreateSwapChainFailsWithoutFormats(t *testing.T) {
	cfg := headless.DefaultConfig()
	cfg.Formats = nil
	vp := &testViewport{w: 800, h: 600}
	gpu, err := headless.New(cfg, driver.Options{Surface: vp})
	require.NoError(t, err)
	_, err = NewGraphicsDevice(nil, gpu, vp, DeviceConfig{FramesInFlight: 2})
	require.ErrorIs(t, err, driver.ErrNoDevice)
}

func TestCreateSwapChainClampsFreeExtent(t *testing.T) {
	cfg := headless.DefaultConfig()
	cfg.FreeExtent = true
	e := newTestEnvWith(t, cfg, DeviceConfig{FramesInFlight: 2})
	e.vp.w, e.vp.h = 100000, 0
	require.NoError(t, e.dev.CreateSwapChain())
	assert.Equal(t, driver.Dim{Width: 16384, Height: 1}, e.dev.Extent())
}

func TestSetCurrentFrameWraps(t *testing.T) {
	e := newTestEnv(t, 3)
	e.dev.SetCurrentFrame(4)
	assert.Equal(t, 1, e.dev.CurrentFrame())
	e.dev.SetCurrentFrame(-1)
	assert.Equal(t, 2, e.dev.CurrentFrame())
}

func TestOnResizeRecreatesSwapchainAndDependents(t *testing.T) {
	e := newTestEnv(t, 2)
	_, fb := e.swapchainTarget(t)
	old := fb.Handle(0).(*headless.Framebuf)

	e.vp.w, e.vp.h = 1024, 768
	require.NoError(t, e.dev.OnResize(1024, 768))

	assert.Equal(t, driver.Dim{Width: 1024, Height: 768}, e.dev.Extent())
	assert.Equal(t, 2, e.gpu.Created(headless.KindSwapchain))
	assert.Equal(t, 1, e.gpu.Live(headless.KindSwapchain))
	assert.True(t, old.IsDestroyed())
	assert.Equal(t, driver.Dim{Width: 1024, Height: 768}, fb.Extent())
	assert.Equal(t, e.dev.ImageCount(), fb.HandleCount())
	assert.Equal(t, 3, e.gpu.Live(headless.KindFramebuf))
}

func TestOnResizeIgnoresEmptySize(t *testing.T) {
	e := newTestEnv(t, 2)
	require.NoError(t, e.dev.OnResize(0, 600))
	assert.Equal(t, 1, e.gpu.Created(headless.KindSwapchain))
}

func TestDestroyReleasesSwapchain(t *testing.T) {
	e := newTestEnv(t, 2)
	e.dev.Destroy()
	e.dev.Destroy()
	assert.Empty(t, liveHandles(e.gpu))
}
