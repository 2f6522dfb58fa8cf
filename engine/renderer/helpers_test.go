package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

var testShader = []byte{0x03, 0x02, 0x23, 0x07}

type testViewport struct{ w, h int }

func (v *testViewport) Width() int { return v.w }
func (v *testViewport) Height() int { return v.h }
func (v *testViewport) FramebufferSize() (int, int) { return v.w, v.h }

type fixedCamera struct{ view, proj math.Mat4 }

func (c fixedCamera) ViewMatrix() math.Mat4 { return c.view }
func (c fixedCamera) ProjectionMatrix() math.Mat4 { return c.proj }

func newTestCamera() fixedCamera {
	return fixedCamera{
		view: math.NewMat4Translation(math.NewVec3(0, 0, -5)),
		proj: math.NewMat4Perspective(math.DegToRad(60), 800.0/600.0, 0.1, 100),
	}
}

type testEnv struct {
	gpu *headless.GPU
	vp  *testViewport
	dev *GraphicsDevice
}

func newTestEnvWith(t *testing.T, cfg headless.Config, dc DeviceConfig) *testEnv {
	t.Helper()
	vp := &testViewport{w: 800, h: 600}
	gpu, err := headless.New(cfg, driver.Options{Surface: vp, Logger: core.DiscardLogger()})
	require.NoError(t, err)
	dev, err := NewGraphicsDevice(core.DiscardLogger(), gpu, vp, dc)
	require.NoError(t, err)
	return &testEnv{gpu: gpu, vp: vp, dev: dev}
}

func newTestEnv(t *testing.T, frames int) *testEnv {
	t.Helper()
	return newTestEnvWith(t, headless.DefaultConfig(), DeviceConfig{FramesInFlight: frames})
}

func (e *testEnv) renderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(core.DiscardLogger(), e.dev, RendererConfig{})
	require.NoError(t, err)
	return r
}

func (e *testEnv) swapchainTarget(t *testing.T) (*RenderPass, *Framebuffer) {
	t.Helper()
	pass, err := NewRenderPass(e.dev, RenderPassConfig{Target: TargetSwapchain, Depth: true})
	require.NoError(t, err)
	fb, err := NewFramebuffer(e.dev, pass, nil)
	require.NoError(t, err)
	return pass, fb
}

func (e *testEnv) offscreenTarget(t *testing.T, w, h int) (*RenderPass, *Framebuffer, *Texture) {
	t.Helper()
	tex, err := NewTexture(e.dev, w, h, nil)
	require.NoError(t, err)
	pass, err := NewRenderPass(e.dev, RenderPassConfig{Target: TargetTexture, Depth: true})
	require.NoError(t, err)
	fb, err := NewFramebuffer(e.dev, pass, tex)
	require.NoError(t, err)
	return pass, fb, tex
}

func (e *testEnv) mesh(t *testing.T) *Mesh {
	t.Helper()
	vb, err := NewVertexBuffer(e.dev, MeshLayout, make([]byte, 3*MeshLayout.Size()))
	require.NoError(t, err)
	ib, err := NewIndexBuffer(e.dev, []uint16{0, 1, 2})
	require.NoError(t, err)
	return &Mesh{Vertices: vb, Indices: ib}
}

func (e *testEnv) texture(t *testing.T, rgba uint32) *Texture {
	t.Helper()
	tex, err := NewSolidTexture(e.dev, rgba)
	require.NoError(t, err)
	return tex
}

func uniformPipeline(t *testing.T, dev *GraphicsDevice, pass *RenderPass, size uint32) *Pipeline {
	t.Helper()
	p, err := NewPipeline(dev, PipelineConfig{
		Name:           "uniform",
		Pass:           pass,
		VertexShader:   testShader,
		FragmentShader: testShader,
		Layout:         MeshLayout,
		Bindings: []metadata.DescriptorBinding{
			{Binding: 0, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageVertex, Size: size},
		},
	})
	require.NoError(t, err)
	return p
}

func cmdBuffer(cq *CommandQueue, frame int) *headless.CmdBuffer {
	return cq.buffers[frame].(*headless.CmdBuffer)
}

// liveHandles sums the live handles of every kind.
func liveHandles(gpu *headless.GPU) map[headless.Kind]int {
	live := map[headless.Kind]int{}
	for _, k := range []headless.Kind{
		headless.KindBuffer, headless.KindImage, headless.KindView, headless.KindSampler,
		headless.KindRenderPass, headless.KindFramebuf, headless.KindPipeline,
		headless.KindCmdBuffer, headless.KindFence, headless.KindSemaphore, headless.KindSwapchain,
	} {
		if n := gpu.Live(k); n != 0 {
			live[k] = n
		}
	}
	return live
}
