package renderer

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func TestVertexLayoutSizes(t *testing.T) {
	assert.Equal(t, uint32(32), metadata.GetVertexSize(metadata.ElementFloat3, metadata.ElementFloat3, metadata.ElementFloat2))
	assert.Equal(t, uint32(20), metadata.GetVertexSize(metadata.ElementFloat2, metadata.ElementFloat3))
	assert.Equal(t, uint32(32), MeshLayout.Size())
	assert.Equal(t, uint32(28), DebugLayout.Size())
}

func TestRendererDedupPerPipeline(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p1, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	p2, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	t1, t2 := e.texture(t, 0xFF0000FF), e.texture(t, 0x0000FFFF)
	a, b, c := e.mesh(t), e.mesh(t), e.mesh(t)

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.NoError(t, r.Draw(Drawable{Mesh: a, Texture: t1}, p1, math.NewMat4Identity()))
	require.NoError(t, r.Draw(Drawable{Mesh: c, Texture: t2}, p2, math.NewMat4Identity()))
	require.NoError(t, r.Draw(Drawable{Mesh: b, Texture: t1}, p1, math.NewMat4Translation(math.NewVec3(1, 0, 0))))

	assert.Equal(t, 1, p1.UniformUploads(), "uploaded on first use only")
	assert.Equal(t, 1, p2.UniformUploads())

	assert.Len(t, r.FrameTextures(p1), 1)
	i1, ok := r.TextureIndex(p1, t1)
	require.True(t, ok)
	assert.Equal(t, 0, i1)
	i2, ok := r.TextureIndex(p2, t2)
	require.True(t, ok)
	assert.Equal(t, 0, i2, "tables are per pipeline")
	_, ok = r.TextureIndex(p2, t1)
	assert.False(t, ok)

	objects := r.Objects()
	require.Len(t, objects, 3)
	assert.Equal(t, objects[0].TextureIndex, objects[2].TextureIndex)
	assert.Equal(t, []*Pipeline{p1, p2}, r.Pipelines())

	require.NoError(t, r.EndFrame())
	assert.Equal(t, FrameStats{UniformUploads: 2, TextureUploads: 2, DrawCalls: 3, PipelineBinds: 2, Objects: 3}, r.Stats())

	cb := cmdBuffer(r.CommandQueue(), 0)
	var pipelines []*headless.Pipeline
	var vertices []*headless.Buffer
	for _, cmd := range cb.Commands() {
		switch cmd.Op {
		case headless.OpSetPipeline:
			pipelines = append(pipelines, cmd.Pipeline.(*headless.Pipeline))
		case headless.OpSetVertexBuf:
			vertices = append(vertices, cmd.Buffer.(*headless.Buffer))
		}
	}
	assert.Equal(t, []*headless.Pipeline{p1.Handle().(*headless.Pipeline), p2.Handle().(*headless.Pipeline)}, pipelines)
	assert.Equal(t, []*headless.Buffer{
		a.Vertices.buf.Handle().(*headless.Buffer),
		b.Vertices.buf.Handle().(*headless.Buffer),
		c.Vertices.buf.Handle().(*headless.Buffer),
	}, vertices, "objects grouped by pipeline in draw order")
}

func TestRendererUploadsCameraUniform(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	cam := newTestCamera()

	for frame := 0; frame < 2; frame++ {
		require.NoError(t, r.BeginFrame(fb, pass, cam))
		require.NoError(t, r.Draw(Drawable{Mesh: e.mesh(t)}, p, math.NewMat4Identity()))
		require.NoError(t, r.EndFrame())

		want := cam.ProjectionMatrix().AppendBytes(cam.ViewMatrix().AppendBytes(nil))
		assert.Equal(t, want, p.UniformReplica(0, frame).Bytes())
	}
}

func TestRendererDefaultTexture(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	white := r.DefaultTexture()
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, white.Image().(*headless.Image).Pixels())

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.NoError(t, r.Draw(Drawable{Mesh: e.mesh(t)}, p, math.NewMat4Identity()))
	idx, ok := r.TextureIndex(p, white)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	hp := p.Handle().(*headless.Pipeline)
	for set := 0; set < 2; set++ {
		for slot := 0; slot < MaxTextures; slot++ {
			require.Same(t, white.View(), hp.Texture(set, 1, slot), "set %d slot %d", set, slot)
		}
	}
	require.NoError(t, r.EndFrame())
}

func TestRendererPushConstants(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	t1, t2 := e.texture(t, 1), e.texture(t, 2)
	model := math.NewMat4Translation(math.NewVec3(1, 2, 3))

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.NoError(t, r.Draw(Drawable{Mesh: e.mesh(t), Texture: t1}, p, math.NewMat4Identity()))
	require.NoError(t, r.Draw(Drawable{Mesh: e.mesh(t), Texture: t2}, p, model))
	require.NoError(t, r.EndFrame())

	var pushes []headless.Command
	for _, cmd := range cmdBuffer(r.CommandQueue(), 0).Commands() {
		if cmd.Op == headless.OpPushConstants {
			pushes = append(pushes, cmd)
		}
	}
	require.Len(t, pushes, 2)
	last := pushes[1]
	require.Len(t, last.Data, 68)
	assert.Equal(t, model.AppendBytes(nil), last.Data[:64])
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(last.Data[64:]))
	assert.Equal(t, metadata.ShaderStageVertex|metadata.ShaderStageFragment, last.Stages)
}

func TestRendererSamplerOverflow(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	m := e.mesh(t)

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	for i := 0; i < MaxTextures; i++ {
		require.NoError(t, r.Draw(Drawable{Mesh: m, Texture: e.texture(t, uint32(i))}, p, math.NewMat4Identity()))
	}
	err = r.Draw(Drawable{Mesh: m, Texture: e.texture(t, 0xDEADBEEF)}, p, math.NewMat4Identity())
	require.ErrorIs(t, err, ErrDescriptorOverflow)
	assert.Len(t, r.FrameTextures(p), MaxTextures)
	assert.Equal(t, MaxTextures, r.Stats().Objects)
	require.NoError(t, r.EndFrame())
}

func TestRendererDebugGeometry(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.ErrorIs(t, r.DrawDebugLines(make([]DebugVertex, 2)), ErrInvalidPipeline)
	require.NoError(t, r.EndFrame())

	require.NoError(t, r.CreateDebugPipelines(pass, testShader, testShader))
	lines, triangles := r.DebugPipelines()
	assert.Equal(t, metadata.TopologyLines, lines.Topology())
	assert.Equal(t, metadata.TopologyTriangles, triangles.Topology())

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.NoError(t, r.DrawDebugLines(make([]DebugVertex, 24)))
	require.NoError(t, r.DrawDebugLines([]DebugVertex{{Color: math.NewVec4(1, 0, 0, 1)}, {}}))
	require.NoError(t, r.DrawDebugTriangles(make([]DebugVertex, 3)))
	assert.Equal(t, 26, r.debugLines.Count())
	assert.Equal(t, 26, r.debugLines.Capacity(), "grown past the initial capacity")
	require.NoError(t, r.EndFrame())

	var draws []int
	for _, cmd := range cmdBuffer(r.CommandQueue(), 1).Commands() {
		if cmd.Op == headless.OpDraw {
			draws = append(draws, cmd.Count)
		}
	}
	assert.Equal(t, []int{26, 3}, draws)
	assert.Equal(t, 1, lines.UniformUploads())
	assert.Equal(t, FrameStats{UniformUploads: 2, DrawCalls: 2, PipelineBinds: 2}, r.Stats())

	// A frame without debug geometry draws none, even though the replica
	// of an earlier frame still holds vertices.
	for i := 0; i < 2; i++ {
		require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
		require.NoError(t, r.EndFrame())
		assert.Equal(t, 0, r.Stats().DrawCalls)
	}
}

func TestRendererFrameErrors(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)

	require.ErrorIs(t, r.Draw(Drawable{Mesh: e.mesh(t)}, p, math.NewMat4Identity()), ErrNoFrame)
	require.ErrorIs(t, r.EndFrame(), ErrNoFrame)
	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.ErrorIs(t, r.BeginFrame(fb, pass, newTestCamera()), ErrFrameInProgress)
	require.Error(t, r.Draw(Drawable{}, p, math.NewMat4Identity()))
	require.NoError(t, r.EndFrame())
}

// recordingGUI keeps the widgets declared between BeginFrame and EndFrame
// and reports what it was asked to render.
type recordingGUI struct {
	calls    []string
	declared []string
	frame    []string
	rendered []string
}

func (g *recordingGUI) BeginFrame() {
	g.calls = append(g.calls, "begin")
	g.declared = g.declared[:0]
}

func (g *recordingGUI) Widget(name string) { g.declared = append(g.declared, name) }

func (g *recordingGUI) EndFrame() {
	g.calls = append(g.calls, "end")
	g.frame = append([]string(nil), g.declared...)
}

func (g *recordingGUI) Render(cq *CommandQueue) error {
	g.calls = append(g.calls, "render")
	g.rendered = append([]string(nil), g.frame...)
	return cq.Draw(6)
}

func TestRendererDebugGuiPass(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb, _ := e.offscreenTarget(t, 640, 360)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	gui := &recordingGUI{}

	require.ErrorIs(t, r.DrawDebugGui(gui), ErrNoFrame)
	require.NoError(t, r.BeginDebugGuiFrame(fb, pass))
	require.ErrorIs(t, r.Draw(Drawable{Mesh: e.mesh(t)}, p, math.NewMat4Identity()), ErrNoFrame)
	require.NoError(t, r.DrawDebugGui(gui))
	require.ErrorIs(t, r.EndFrame(), ErrNoFrame)
	require.NoError(t, r.EndDebugGuiFrame())

	assert.Equal(t, []string{"render"}, gui.calls)
	assert.Equal(t, []headless.Op{
		headless.OpBeginPass, headless.OpSetViewport, headless.OpSetScissor, headless.OpDraw, headless.OpEndPass,
	}, cmdBuffer(r.CommandQueue(), 0).Ops())
	assert.Equal(t, 1, e.dev.CurrentFrame())
}

func TestRendererDebugGuiKeepsDeclaredWidgets(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	gui := &recordingGUI{}

	gui.BeginFrame()
	gui.Widget("viewport")
	gui.Widget("stats")
	gui.EndFrame()

	require.NoError(t, r.BeginDebugGuiFrame(fb, pass))
	require.NoError(t, r.DrawDebugGui(gui))
	require.NoError(t, r.EndDebugGuiFrame())

	assert.Equal(t, []string{"viewport", "stats"}, gui.rendered)
	assert.Equal(t, []string{"begin", "end", "render"}, gui.calls)
}

func TestRendererFailedFirstUseIsNotCached(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	// The camera is two matrices, this binding holds one.
	p := uniformPipeline(t, e.dev, pass, 64)
	m := e.mesh(t)

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	for i := 0; i < 2; i++ {
		err := r.Draw(Drawable{Mesh: m}, p, math.NewMat4Identity())
		require.ErrorIs(t, err, ErrUniformSize, "draw %d", i)
	}
	assert.Empty(t, r.Objects())
	assert.Empty(t, r.Pipelines())
	assert.Zero(t, r.Stats().UniformUploads)
	require.NoError(t, r.EndFrame())
	assert.Zero(t, r.Stats().DrawCalls)
}

func TestRendererRecoversFromFailedBegin(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	boom := errors.New("begin failed")

	e.gpu.FailNextBegin(boom)
	require.ErrorIs(t, r.BeginFrame(fb, pass, newTestCamera()), boom)
	assert.Equal(t, FrameIdle, r.Scheduler().State())
	assert.Equal(t, StateReady, r.CommandQueue().State())
	assert.Equal(t, 0, e.dev.CurrentFrame())
	for _, sem := range r.Scheduler().imageAvailable {
		assert.False(t, sem.(*headless.Semaphore).Pending)
	}
	assert.True(t, r.Scheduler().fences[0].(*headless.Fence).Signaled(), "fence of the dropped frame")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
		require.NoError(t, r.EndFrame())
	}
	assert.Equal(t, 3, e.gpu.Stats().Submissions)
	assert.Equal(t, 3, e.gpu.Stats().Presents)
	assert.Zero(t, e.gpu.Stats().BlockedWaits)
}

func TestRendererReplacesDebugPipelinesSafely(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	require.NoError(t, r.CreateDebugPipelines(pass, testShader, testShader))
	oldLines, oldTriangles := r.DebugPipelines()

	require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
	require.ErrorIs(t, r.CreateDebugPipelines(pass, testShader, testShader), ErrFrameInProgress)
	require.NoError(t, r.EndFrame())

	waits := e.gpu.Stats().IdleWaits
	require.NoError(t, r.CreateDebugPipelines(pass, testShader, testShader))
	assert.Greater(t, e.gpu.Stats().IdleWaits, waits)
	lines, triangles := r.DebugPipelines()
	assert.NotSame(t, oldLines, lines)
	assert.NotSame(t, oldTriangles, triangles)
	assert.Nil(t, oldLines.Handle(), "replaced pipeline destroyed")
	assert.Nil(t, oldTriangles.Handle())
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	e := newTestEnv(t, 3)
	r := e.renderer(t)
	pass, fb := e.swapchainTarget(t)
	_, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	require.NoError(t, r.CreateDebugPipelines(pass, testShader, testShader))
	m := e.mesh(t)
	tex := e.texture(t, 0x336699FF)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.BeginFrame(fb, pass, newTestCamera()))
		require.NoError(t, r.EndFrame())
	}

	r.Destroy()
	m.Destroy()
	tex.Destroy()
	fb.Destroy()
	pass.Destroy()
	e.dev.Destroy()
	assert.Empty(t, liveHandles(e.gpu))
}
