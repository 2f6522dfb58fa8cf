package systems

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/scene"
)

var testShader = []byte{0x03, 0x02, 0x23, 0x07}

type testEnv struct {
	gpu  *headless.GPU
	dev  *renderer.GraphicsDevice
	r    *renderer.Renderer
	pass *renderer.RenderPass
	fb   *renderer.Framebuffer
	p    *renderer.Pipeline
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	vp := platform.NewHeadlessViewport(800, 600)
	gpu, err := headless.New(headless.DefaultConfig(), driver.Options{Surface: vp, Logger: core.DiscardLogger()})
	require.NoError(t, err)
	dev, err := renderer.NewGraphicsDevice(core.DiscardLogger(), gpu, vp, renderer.DeviceConfig{FramesInFlight: 2})
	require.NoError(t, err)
	r, err := renderer.NewRenderer(core.DiscardLogger(), dev, renderer.RendererConfig{})
	require.NoError(t, err)
	pass, err := renderer.NewRenderPass(dev, renderer.RenderPassConfig{Target: renderer.TargetSwapchain, Depth: true})
	require.NoError(t, err)
	fb, err := renderer.NewFramebuffer(dev, pass, nil)
	require.NoError(t, err)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	return &testEnv{gpu: gpu, dev: dev, r: r, pass: pass, fb: fb, p: p}
}

func (e *testEnv) cube(t *testing.T) *renderer.Mesh {
	t.Helper()
	data := assets.Cube()
	m, err := renderer.NewMesh(e.dev, data.Layout(), data.VertexBytes(), data.Indices)
	require.NoError(t, err)
	return m
}

// drain runs job callbacks until cond holds or a second passes.
func drain(t *testing.T, js *JobSystem, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for jobs")
		}
		js.Update()
		time.Sleep(time.Millisecond)
	}
}

func TestJobSystemConfig(t *testing.T) {
	_, err := NewJobSystem(nil, 0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(nil, 1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(core.DiscardLogger(), 2, 4)
	require.NoError(t, err)

	var ran atomic.Int32
	var results []int
	var failures []error
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, js.Submit(Job{
			Run: func() (any, error) {
				ran.Add(1)
				return i, nil
			},
			OnComplete: func(result any) { results = append(results, result.(int)) },
		}))
	}
	require.NoError(t, js.Submit(Job{
		Run:       func() (any, error) { return nil, boom },
		OnFailure: func(err error) { failures = append(failures, err) },
	}))

	drain(t, js, func() bool { return len(results)+len(failures) == 4 })
	assert.EqualValues(t, 3, ran.Load())
	assert.ElementsMatch(t, []int{0, 1, 2}, results)
	assert.Equal(t, []error{boom}, failures)
	assert.Equal(t, 0, js.Update())

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(Job{Run: func() (any, error) { return nil, nil }}), ErrJobSystemStopped)
}

func TestJobSystemShutdownFlushesQueue(t *testing.T) {
	js, err := NewJobSystem(nil, 1, 8)
	require.NoError(t, err)
	done := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, js.Submit(Job{
			Run:        func() (any, error) { return nil, nil },
			OnComplete: func(any) { done++ },
		}))
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, 5, done)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestTextureSystemLoadsAndCaches(t *testing.T) {
	e := newTestEnv(t)
	js, err := NewJobSystem(nil, 1, 4)
	require.NoError(t, err)
	ts := NewTextureSystem(core.DiscardLogger(), e.dev, js)

	path := filepath.Join(t.TempDir(), "crate.png")
	writePNG(t, path, 4, 2)

	var got []*renderer.Texture
	cb := func(tex *renderer.Texture, err error) {
		require.NoError(t, err)
		got = append(got, tex)
	}
	ts.Load(path, cb)
	ts.Load(path, cb)
	_, ok := ts.Get(path)
	assert.False(t, ok, "not ready before the job completes")

	drain(t, js, func() bool { return len(got) == 2 })
	assert.Same(t, got[0], got[1], "one decode for concurrent loads")
	assert.Equal(t, 4, got[0].Width())
	assert.Equal(t, 2, got[0].Height())

	ts.Load(path, cb)
	require.Len(t, got, 3, "cached texture returns at once")
	assert.Same(t, got[0], got[2])

	images := e.gpu.Live(headless.KindImage)
	var reloaded *renderer.Texture
	ts.Reload(path, func(tex *renderer.Texture, err error) {
		require.NoError(t, err)
		reloaded = tex
	})
	drain(t, js, func() bool { return reloaded != nil })
	assert.NotSame(t, got[0], reloaded)
	cached, ok := ts.Get(path)
	require.True(t, ok)
	assert.Same(t, reloaded, cached)
	assert.Equal(t, images, e.gpu.Live(headless.KindImage), "old texture destroyed on reload")

	require.NoError(t, js.Shutdown())
	require.NoError(t, ts.Shutdown())
	assert.Equal(t, images-1, e.gpu.Live(headless.KindImage))
}

func TestTextureSystemReportsDecodeFailure(t *testing.T) {
	e := newTestEnv(t)
	js, err := NewJobSystem(nil, 1, 1)
	require.NoError(t, err)
	ts := NewTextureSystem(nil, e.dev, js)

	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	var loadErr error
	called := false
	ts.Load(path, func(tex *renderer.Texture, err error) {
		called = true
		loadErr = err
		assert.Nil(t, tex)
	})
	drain(t, js, func() bool { return called })
	assert.ErrorIs(t, loadErr, assets.ErrUnsupportedImage)
	_, ok := ts.Get(path)
	assert.False(t, ok)
	require.NoError(t, js.Shutdown())
}

func TestTextureSystemReloadKeepsOldOnFailure(t *testing.T) {
	e := newTestEnv(t)
	js, err := NewJobSystem(nil, 1, 1)
	require.NoError(t, err)
	ts := NewTextureSystem(nil, e.dev, js)

	path := filepath.Join(t.TempDir(), "wall.png")
	writePNG(t, path, 2, 2)
	var first *renderer.Texture
	ts.Load(path, func(tex *renderer.Texture, err error) { first = tex })
	drain(t, js, func() bool { return first != nil })

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	var reloadErr error
	var kept *renderer.Texture
	ts.Reload(path, func(tex *renderer.Texture, err error) {
		kept, reloadErr = tex, err
	})
	drain(t, js, func() bool { return reloadErr != nil })
	assert.Same(t, first, kept)
	cached, ok := ts.Get(path)
	require.True(t, ok)
	assert.Same(t, first, cached)
	require.NoError(t, js.Shutdown())
}

func TestCameraSystemResolve(t *testing.T) {
	reg := scene.NewRegistry()
	cs := NewCameraSystem(nil, 800, 600)
	free := components.NewFreeFlyCamera(math.NewVec3(0, 0, 5))

	assert.Same(t, free, cs.Resolve(reg, free))

	idle := reg.NewEntity()
	scene.Add(reg, idle, *components.NewCameraComponent())
	assert.Same(t, free, cs.Resolve(reg, free), "inactive cameras are skipped")

	e := reg.NewEntity()
	cam := scene.Add(reg, e, *components.NewCameraComponent())
	cam.Active = true
	assert.Same(t, cam, cs.Resolve(reg, free))

	reg.Destroy(e)
	assert.Same(t, free, cs.Resolve(reg, free))
}

func TestCameraSystemResizesCameras(t *testing.T) {
	reg := scene.NewRegistry()
	cs := NewCameraSystem(nil, 800, 600)
	free := components.NewFreeFlyCamera(math.NewVec3Zero())

	cam := scene.Add(reg, reg.NewEntity(), *components.NewCameraComponent())
	cs.Update(reg, free)
	assert.InDelta(t, 800.0/600.0, cam.Aspect(), 1e-6)

	cs.OnResize(1920, 1080)
	cs.OnResize(0, 0)
	cs.Update(reg, free)
	assert.InDelta(t, 1920.0/1080.0, cam.Aspect(), 1e-6)

	late := scene.Add(reg, reg.NewEntity(), *components.NewCameraComponent())
	cs.Update(reg, free)
	assert.InDelta(t, 1920.0/1080.0, late.Aspect(), 1e-6, "cameras added later are sized too")
}

func TestRenderSystemDrawsEachMeshEntity(t *testing.T) {
	e := newTestEnv(t)
	reg := scene.NewRegistry()
	rs := NewRenderSystem(core.DiscardLogger(), e.r, e.p)
	mesh := e.cube(t)

	a := reg.NewEntity()
	ta := scene.Add(reg, a, components.NewTransformComponent())
	ta.Position = math.NewVec3(1, 2, 3)
	scene.Add(reg, a, components.MeshRendererComponent{Mesh: mesh})

	b := reg.NewEntity()
	scene.Add(reg, b, components.NewTransformComponent())
	scene.Add(reg, b, components.MeshRendererComponent{Mesh: mesh, Pipeline: e.p})

	// A transform alone is not drawn.
	scene.Add(reg, reg.NewEntity(), components.NewTransformComponent())

	free := components.NewFreeFlyCamera(math.NewVec3(0, 0, 5))
	require.NoError(t, e.r.BeginFrame(e.fb, e.pass, free))
	require.NoError(t, rs.Render(reg))
	assert.Equal(t, 2, rs.Drawn())

	objects := e.r.Objects()
	require.Len(t, objects, 2)
	assert.Equal(t, math.NewMat4Translation(math.NewVec3(1, 2, 3)), objects[0].Model)
	assert.Equal(t, math.NewMat4Identity(), objects[1].Model)
	require.NoError(t, e.r.EndFrame())
	assert.Equal(t, 2, e.r.Stats().DrawCalls)
}

func TestRenderSystemOutsideFrame(t *testing.T) {
	e := newTestEnv(t)
	reg := scene.NewRegistry()
	rs := NewRenderSystem(nil, e.r, e.p)
	ent := reg.NewEntity()
	scene.Add(reg, ent, components.NewTransformComponent())
	scene.Add(reg, ent, components.MeshRendererComponent{Mesh: e.cube(t)})
	assert.ErrorIs(t, rs.Render(reg), renderer.ErrNoFrame)
}

func TestRenderSystemSkipsEntitiesWithoutPipeline(t *testing.T) {
	e := newTestEnv(t)
	reg := scene.NewRegistry()
	rs := NewRenderSystem(nil, e.r, nil)
	ent := reg.NewEntity()
	scene.Add(reg, ent, components.NewTransformComponent())
	scene.Add(reg, ent, components.MeshRendererComponent{Mesh: e.cube(t)})

	require.NoError(t, e.r.BeginFrame(e.fb, e.pass, components.NewFreeFlyCamera(math.NewVec3Zero())))
	require.NoError(t, rs.Render(reg))
	assert.Empty(t, e.r.Objects())
	require.NoError(t, e.r.EndFrame())
}

func TestSystemManagerLifecycle(t *testing.T) {
	e := newTestEnv(t)
	sm, err := NewSystemManager(core.DiscardLogger(), e.r, e.p, SystemManagerConfig{Workers: 2, QueueSize: 4, Width: 640, Height: 480})
	require.NoError(t, err)

	reg := scene.NewRegistry()
	cam := scene.Add(reg, reg.NewEntity(), *components.NewCameraComponent())
	sm.Update(reg, nil)
	assert.InDelta(t, 640.0/480.0, cam.Aspect(), 1e-6)
	assert.Same(t, e.p, sm.Render.Pipeline)
	require.NoError(t, sm.Shutdown())
}
