package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func TestCommandQueueRejectsOutOfOrderCalls(t *testing.T) {
	e := newTestEnv(t, 2)
	cq, err := NewCommandQueue(e.dev)
	require.NoError(t, err)
	pass, fb := e.swapchainTarget(t)

	require.ErrorIs(t, cq.Draw(3), ErrInvalidState)
	require.ErrorIs(t, cq.BeginRenderPass(pass, fb), ErrInvalidState)
	require.ErrorIs(t, cq.EndRecording(), ErrInvalidState)

	require.NoError(t, cq.StartRecording())
	require.ErrorIs(t, cq.StartRecording(), ErrInvalidState)
	require.ErrorIs(t, cq.DrawIndexed(3), ErrInvalidState)
	require.ErrorIs(t, cq.EndRenderPass(), ErrInvalidState)

	require.NoError(t, cq.BeginRenderPass(pass, fb))
	require.ErrorIs(t, cq.EndRecording(), ErrInvalidState)
	require.NoError(t, cq.EndRenderPass())
	require.NoError(t, cq.EndRecording())
	assert.Equal(t, StateRecordingEnded, cq.State())
}

func TestCommandQueueRecordsInOrder(t *testing.T) {
	e := newTestEnv(t, 2)
	r := e.renderer(t)
	cq := r.CommandQueue()
	pass, fb := e.swapchainTarget(t)
	p, err := r.CreatePipeline(pass, testShader, testShader)
	require.NoError(t, err)
	m := e.mesh(t)

	e.dev.SetCurrentFrame(1)
	require.NoError(t, cq.StartRecording())
	require.NoError(t, cq.BeginRenderPass(pass, fb))
	require.NoError(t, cq.SetViewport())
	require.NoError(t, cq.SetScissor())
	require.NoError(t, cq.BindPipeline(p))
	require.NoError(t, cq.BindVertexBuffer(m.Vertices))
	require.NoError(t, cq.BindIndexBuffer(m.Indices))
	require.NoError(t, cq.UploadPushConstants(p, make([]byte, 68)))
	require.NoError(t, cq.DrawIndexed(3))
	require.NoError(t, cq.EndRenderPass())
	require.NoError(t, cq.EndRecording())

	cb := cmdBuffer(cq, 1)
	assert.Same(t, cb, cq.Current())
	assert.Equal(t, []headless.Op{
		headless.OpBeginPass, headless.OpSetViewport, headless.OpSetScissor,
		headless.OpSetPipeline, headless.OpSetVertexBuf, headless.OpSetIndexBuf,
		headless.OpPushConstants, headless.OpDrawIndexed, headless.OpEndPass,
	}, cb.Ops())
	assert.Empty(t, cmdBuffer(cq, 0).Ops(), "frame 0 buffer untouched")

	cmds := cb.Commands()
	assert.Equal(t, pass.ClearValues(), cmds[0].Clear)
	assert.Equal(t, 1, cmds[3].Set, "descriptor set of the current frame")
	assert.Equal(t, driver.Index16, cmds[5].Index)
	assert.Equal(t, 3, cmds[7].Count)
}

func TestCommandQueueViewportFollowsTarget(t *testing.T) {
	e := newTestEnv(t, 2)
	cq, err := NewCommandQueue(e.dev)
	require.NoError(t, err)

	record := func(pass *RenderPass, fb *Framebuffer) []headless.Command {
		require.NoError(t, cq.StartRecording())
		require.NoError(t, cq.BeginRenderPass(pass, fb))
		require.NoError(t, cq.SetViewport())
		require.NoError(t, cq.SetScissor())
		require.NoError(t, cq.EndRenderPass())
		require.NoError(t, cq.EndRecording())
		return cmdBuffer(cq, 0).Commands()
	}

	offPass, offFB, _ := e.offscreenTarget(t, 320, 200)
	cmds := record(offPass, offFB)
	assert.Equal(t, driver.Viewport{Width: 320, Height: 200, Zfar: 1}, cmds[1].Viewport)
	assert.Equal(t, driver.Rect{Width: 320, Height: 200}, cmds[2].Scissor)

	swapPass, swapFB := e.swapchainTarget(t)
	cmds = record(swapPass, swapFB)
	assert.Equal(t, driver.Viewport{Width: 800, Height: 600, Zfar: 1}, cmds[1].Viewport)
	assert.Equal(t, driver.Rect{Width: 800, Height: 600}, cmds[2].Scissor)
}

func TestCommandQueueUsesAcquiredImage(t *testing.T) {
	e := newTestEnv(t, 2)
	cq, err := NewCommandQueue(e.dev)
	require.NoError(t, err)
	pass, fb := e.swapchainTarget(t)

	e.dev.imageIndex = 2
	require.NoError(t, cq.StartRecording())
	require.NoError(t, cq.BeginRenderPass(pass, fb))
	assert.Same(t, fb.Handle(2), cmdBuffer(cq, 0).Commands()[0].Framebuf)
}

func TestUploadPushConstantsPerRange(t *testing.T) {
	e := newTestEnv(t, 2)
	cq, err := NewCommandQueue(e.dev)
	require.NoError(t, err)
	pass, fb := e.swapchainTarget(t)
	p, err := NewPipeline(e.dev, PipelineConfig{
		Name:           "ranges",
		Pass:           pass,
		VertexShader:   testShader,
		FragmentShader: testShader,
		Layout:         MeshLayout,
		PushConstants: []metadata.PushConstantRange{
			{Size: 8, Stages: metadata.ShaderStageVertex},
			{Size: 4, Stages: metadata.ShaderStageFragment},
		},
	})
	require.NoError(t, err)

	require.NoError(t, cq.StartRecording())
	require.NoError(t, cq.BeginRenderPass(pass, fb))
	require.ErrorIs(t, cq.UploadPushConstants(p, make([]byte, 8)), ErrPushConstantSize)
	require.NoError(t, cq.UploadPushConstants(p, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}))

	cmds := cmdBuffer(cq, 0).Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, uint32(0), cmds[1].Offset)
	assert.Equal(t, metadata.ShaderStageVertex, cmds[1].Stages)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, cmds[1].Data)
	assert.Equal(t, uint32(8), cmds[2].Offset)
	assert.Equal(t, metadata.ShaderStageFragment, cmds[2].Stages)
	assert.Equal(t, []byte{9, 10, 11, 12}, cmds[2].Data)
}
