package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// RecordingState tracks a command buffer through one frame.
type RecordingState int

const (
	StateReady RecordingState = iota
	StateRecording
	StateInRenderPass
	StateRecordingEnded
	StateSubmitted
)

func (s RecordingState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateInRenderPass:
		return "in-render-pass"
	case StateRecordingEnded:
		return "recording-ended"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// CommandQueue records one command buffer per frame in flight. The buffer
// of the current frame is the only one touched, so a frame never rewrites
// commands the GPU may still be executing.
type CommandQueue struct {
	dev     *GraphicsDevice
	buffers []driver.CmdBuffer
	states  []RecordingState

	framebuffer *Framebuffer
}

func NewCommandQueue(dev *GraphicsDevice) (*CommandQueue, error) {
	n := dev.FramesInFlight()
	q := &CommandQueue{
		dev:     dev,
		buffers: make([]driver.CmdBuffer, 0, n),
		states:  make([]RecordingState, n),
	}
	for i := 0; i < n; i++ {
		cb, err := dev.gpu.NewCmdBuffer()
		if err != nil {
			q.Destroy()
			err = fmt.Errorf("allocating command buffer %d: %w", i, err)
			dev.logger.Error(err.Error())
			return nil, err
		}
		q.buffers = append(q.buffers, cb)
	}
	return q, nil
}

// Current is the command buffer of the current frame.
func (q *CommandQueue) Current() driver.CmdBuffer {
	return q.buffers[q.dev.CurrentFrame()]
}

// State is the recording state of the current frame's buffer.
func (q *CommandQueue) State() RecordingState {
	return q.states[q.dev.CurrentFrame()]
}

func (q *CommandQueue) expect(op string, want RecordingState) error {
	if got := q.State(); got != want {
		return fmt.Errorf("%w: %s while %s, want %s", ErrInvalidState, op, got, want)
	}
	return nil
}

func (q *CommandQueue) setState(s RecordingState) {
	q.states[q.dev.CurrentFrame()] = s
}

// StartRecording resets and begins the current frame's buffer.
func (q *CommandQueue) StartRecording() error {
	switch q.State() {
	case StateRecording, StateInRenderPass:
		return fmt.Errorf("%w: StartRecording while %s", ErrInvalidState, q.State())
	}
	cb := q.Current()
	if err := cb.Reset(); err != nil {
		return fmt.Errorf("resetting command buffer: %w", err)
	}
	if err := cb.Begin(); err != nil {
		return fmt.Errorf("beginning command buffer: %w", err)
	}
	q.framebuffer = nil
	q.setState(StateRecording)
	return nil
}

func (q *CommandQueue) BeginRenderPass(pass *RenderPass, fb *Framebuffer) error {
	if err := q.expect("BeginRenderPass", StateRecording); err != nil {
		return err
	}
	q.Current().BeginPass(pass.Handle(), fb.Handle(q.dev.ImageIndex()), pass.ClearValues())
	q.framebuffer = fb
	q.setState(StateInRenderPass)
	return nil
}

// BindPipeline binds p together with its descriptor set for this frame.
func (q *CommandQueue) BindPipeline(p *Pipeline) error {
	if err := q.expect("BindPipeline", StateInRenderPass); err != nil {
		return err
	}
	q.Current().SetPipeline(p.Handle(), q.dev.CurrentFrame())
	return nil
}

func (q *CommandQueue) BindVertexBuffer(vb *VertexBuffer) error {
	if err := q.expect("BindVertexBuffer", StateInRenderPass); err != nil {
		return err
	}
	q.Current().SetVertexBuf(vb.buf.Handle(), 0)
	return nil
}

// BindDynamicVertexBuffer binds the current frame's replica of vb.
func (q *CommandQueue) BindDynamicVertexBuffer(vb *DynamicVertexBuffer) error {
	if err := q.expect("BindDynamicVertexBuffer", StateInRenderPass); err != nil {
		return err
	}
	q.Current().SetVertexBuf(vb.current().Handle(), 0)
	return nil
}

func (q *CommandQueue) BindIndexBuffer(ib *IndexBuffer) error {
	if err := q.expect("BindIndexBuffer", StateInRenderPass); err != nil {
		return err
	}
	q.Current().SetIndexBuf(driver.Index16, ib.buf.Handle(), 0)
	return nil
}

// UploadPushConstants pushes data, which must cover every range of p. Each
// range is pushed at its packed offset with its own stages.
func (q *CommandQueue) UploadPushConstants(p *Pipeline, data []byte) error {
	if err := q.expect("UploadPushConstants", StateInRenderPass); err != nil {
		return err
	}
	if uint32(len(data)) != p.PushConstantSize() {
		return fmt.Errorf("%w: %d bytes for pipeline %q, want %d", ErrPushConstantSize, len(data), p.Name(), p.PushConstantSize())
	}
	cb := q.Current()
	for i, r := range p.PushConstants() {
		off := p.pushOffsets[i]
		cb.PushConstants(p.Handle(), r.Stages, off, data[off:off+r.Size])
	}
	return nil
}

func (q *CommandQueue) Draw(vertexCount int) error {
	if err := q.expect("Draw", StateInRenderPass); err != nil {
		return err
	}
	q.Current().Draw(vertexCount, 1, 0, 0)
	return nil
}

func (q *CommandQueue) DrawIndexed(indexCount int) error {
	if err := q.expect("DrawIndexed", StateInRenderPass); err != nil {
		return err
	}
	q.Current().DrawIndexed(indexCount, 1, 0, 0, 0)
	return nil
}

// SetViewport covers the bound framebuffer with a depth range of 0 to 1.
func (q *CommandQueue) SetViewport() error {
	if err := q.expect("SetViewport", StateInRenderPass); err != nil {
		return err
	}
	ext := q.framebuffer.Extent()
	q.Current().SetViewport(driver.Viewport{
		Width:  float32(ext.Width),
		Height: float32(ext.Height),
		Znear:  0,
		Zfar:   1,
	})
	return nil
}

func (q *CommandQueue) SetScissor() error {
	if err := q.expect("SetScissor", StateInRenderPass); err != nil {
		return err
	}
	ext := q.framebuffer.Extent()
	q.Current().SetScissor(driver.Rect{Width: ext.Width, Height: ext.Height})
	return nil
}

func (q *CommandQueue) EndRenderPass() error {
	if err := q.expect("EndRenderPass", StateInRenderPass); err != nil {
		return err
	}
	q.Current().EndPass()
	q.setState(StateRecording)
	return nil
}

func (q *CommandQueue) EndRecording() error {
	if err := q.expect("EndRecording", StateRecording); err != nil {
		return err
	}
	if err := q.Current().End(); err != nil {
		return fmt.Errorf("ending command buffer: %w", err)
	}
	q.setState(StateRecordingEnded)
	return nil
}

// Framebuffer is the target of the open render pass, if any.
func (q *CommandQueue) Framebuffer() *Framebuffer {
	return q.framebuffer
}

// discard drops a recording that will never be submitted. The next
// StartRecording resets the buffer.
func (q *CommandQueue) discard() {
	switch q.State() {
	case StateRecording, StateInRenderPass, StateRecordingEnded:
		q.setState(StateReady)
	}
	q.framebuffer = nil
}

func (q *CommandQueue) markSubmitted() {
	q.setState(StateSubmitted)
}

func (q *CommandQueue) Destroy() {
	for _, cb := range q.buffers {
		cb.Destroy()
	}
	q.buffers = nil
}
