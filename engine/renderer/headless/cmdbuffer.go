package headless

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Op is the kind of a recorded command.
type Op int

const (
	OpBeginPass Op = iota
	OpEndPass
	OpSetPipeline
	OpSetViewport
	OpSetScissor
	OpSetVertexBuf
	OpSetIndexBuf
	OpPushConstants
	OpDraw
	OpDrawIndexed
)

func (o Op) String() string {
	return [...]string{
		"BeginPass", "EndPass", "SetPipeline", "SetViewport", "SetScissor",
		"SetVertexBuf", "SetIndexBuf", "PushConstants", "Draw", "DrawIndexed",
	}[o]
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op       Op
	Pass     driver.RenderPass
	Framebuf driver.Framebuf
	Clear    []driver.ClearValue
	Pipeline driver.Pipeline
	Set      int
	Viewport driver.Viewport
	Scissor  driver.Rect
	Buffer   driver.Buffer
	Index    driver.IndexFmt
	Stages   metadata.ShaderStage
	Offset   uint32
	Data     []byte
	Count    int
}

type cmdState int

const (
	cmdReady cmdState = iota
	cmdRecording
	cmdEnded
	cmdSubmitted
)

type CmdBuffer struct {
	handle
	state    cmdState
	inPass   bool
	commands []Command
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &CmdBuffer{handle: g.newHandle(KindCmdBuffer)}, nil
}

// Commands returns what was recorded since the last Begin.
func (c *CmdBuffer) Commands() []Command { return c.commands }

// Ops returns the kinds of the recorded commands, in order.
func (c *CmdBuffer) Ops() []Op {
	ops := make([]Op, len(c.commands))
	for i, cmd := range c.commands {
		ops[i] = cmd.Op
	}
	return ops
}

func (c *CmdBuffer) Reset() error {
	c.use("Reset")
	c.state = cmdReady
	c.inPass = false
	c.commands = c.commands[:0]
	return nil
}

func (c *CmdBuffer) Begin() error {
	c.use("Begin")
	if c.state == cmdRecording {
		return fmt.Errorf("headless: Begin on a recording command buffer")
	}
	if fail := c.gpu.failBegin; len(fail) > 0 {
		c.gpu.failBegin = fail[1:]
		return fail[0]
	}
	c.state = cmdRecording
	c.commands = c.commands[:0]
	return nil
}

func (c *CmdBuffer) End() error {
	if c.state != cmdRecording {
		return fmt.Errorf("headless: End on a command buffer that is not recording")
	}
	if c.inPass {
		return fmt.Errorf("headless: End inside a render pass")
	}
	c.state = cmdEnded
	return nil
}

func (c *CmdBuffer) record(cmd Command) {
	if c.state != cmdRecording {
		return
	}
	c.commands = append(c.commands, cmd)
}

func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	pass.(*RenderPass).use("BeginPass")
	fb.(*Framebuf).use("BeginPass")
	c.inPass = true
	c.record(Command{Op: OpBeginPass, Pass: pass, Framebuf: fb, Clear: append([]driver.ClearValue(nil), clear...)})
}

func (c *CmdBuffer) EndPass() {
	c.inPass = false
	c.record(Command{Op: OpEndPass})
}

func (c *CmdBuffer) SetPipeline(p driver.Pipeline, set int) {
	p.(*Pipeline).use("SetPipeline")
	c.record(Command{Op: OpSetPipeline, Pipeline: p, Set: set})
}

func (c *CmdBuffer) SetViewport(vp driver.Viewport) {
	c.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (c *CmdBuffer) SetScissor(r driver.Rect) {
	c.record(Command{Op: OpSetScissor, Scissor: r})
}

func (c *CmdBuffer) SetVertexBuf(buf driver.Buffer, off int64) {
	buf.(*Buffer).use("SetVertexBuf")
	c.record(Command{Op: OpSetVertexBuf, Buffer: buf, Offset: uint32(off)})
}

func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	buf.(*Buffer).use("SetIndexBuf")
	c.record(Command{Op: OpSetIndexBuf, Buffer: buf, Index: format, Offset: uint32(off)})
}

func (c *CmdBuffer) PushConstants(p driver.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	c.record(Command{Op: OpPushConstants, Pipeline: p, Stages: stages, Offset: offset, Data: append([]byte(nil), data...)})
}

func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.record(Command{Op: OpDraw, Count: vertCount})
}

func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.record(Command{Op: OpDrawIndexed, Count: idxCount})
}
