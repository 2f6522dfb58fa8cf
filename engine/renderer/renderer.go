package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	stdmath "math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const (
	// MaxTextures is the sampler array length of the mesh pipeline.
	MaxTextures = 128
	// DebugVertexCapacity is the starting size of the debug vertex buffers.
	DebugVertexCapacity = 20
	// DefaultTextureColor is the color of the fallback texture, opaque white.
	DefaultTextureColor uint32 = 0xFFFFFFFF

	cameraBinding  = 0
	textureBinding = 1
	cameraSize     = 2 * math.Mat4Size
	meshPushSize   = math.Mat4Size + 4
)

// MeshLayout is the vertex layout of mesh data: position, normal and uv.
var MeshLayout = metadata.VertexLayout{metadata.ElementFloat3, metadata.ElementFloat3, metadata.ElementFloat2}

// DebugLayout is the vertex layout of debug lines and triangles.
var DebugLayout = metadata.VertexLayout{metadata.ElementFloat3, metadata.ElementFloat4}

// Camera supplies the view and projection of a frame.
type Camera interface {
	ViewMatrix() math.Mat4
	ProjectionMatrix() math.Mat4
}

// Drawable is a mesh with an optional texture. A nil texture draws with the
// default texture.
type Drawable struct {
	Mesh    *Mesh
	Texture *Texture
}

// RenderObject is one draw call collected during a frame.
type RenderObject struct {
	Vertices     *VertexBuffer
	Indices      *IndexBuffer
	Pipeline     *Pipeline
	Model        math.Mat4
	TextureIndex uint32
}

type DebugVertex struct {
	Position math.Vec3
	Color    math.Vec4
}

// FrameStats counts the work of the current or last frame.
type FrameStats struct {
	UniformUploads int
	TextureUploads int
	DrawCalls      int
	PipelineBinds  int
	Objects        int
}

type RendererConfig struct {
	FenceTimeout time.Duration
}

// Renderer turns draw requests into a minimal stream of binds and draws.
// Draws are collected during the frame and issued by EndFrame grouped by
// pipeline, in the order the pipelines were first used.
type Renderer struct {
	logger *log.Logger
	dev    *GraphicsDevice
	cq     *CommandQueue
	sched  *FrameScheduler

	defaultTexture   *Texture
	debugLines       *DynamicVertexBuffer
	debugTriangles   *DynamicVertexBuffer
	linePipeline     *Pipeline
	trianglePipeline *Pipeline
	owned            []*Pipeline

	inFrame    bool
	guiFrame   bool
	camera     []byte
	push       []byte
	pipelines  []*Pipeline
	textures   map[*Pipeline][]*Texture
	objects    []RenderObject
	lineData   []byte
	triData    []byte
	debugBound map[*Pipeline]bool
	stats      FrameStats
}

func NewRenderer(logger *log.Logger, dev *GraphicsDevice, cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		logger:     core.OrDiscard(logger),
		dev:        dev,
		textures:   make(map[*Pipeline][]*Texture),
		debugBound: make(map[*Pipeline]bool),
		camera:     make([]byte, 0, cameraSize),
		push:       make([]byte, 0, meshPushSize),
	}
	var err error
	if r.cq, err = NewCommandQueue(dev); err != nil {
		return nil, err
	}
	if r.sched, err = NewFrameScheduler(dev, cfg.FenceTimeout); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.defaultTexture, err = NewSolidTexture(dev, DefaultTextureColor); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("creating default texture: %w", err)
	}
	if r.debugLines, err = NewDynamicVertexBuffer(dev, DebugLayout, DebugVertexCapacity); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.debugTriangles, err = NewDynamicVertexBuffer(dev, DebugLayout, DebugVertexCapacity); err != nil {
		r.Destroy()
		return nil, err
	}
	r.logger.Info("renderer ready", "frames", dev.FramesInFlight(), "max_textures", MaxTextures)
	return r, nil
}

func cameraBindings() []metadata.DescriptorBinding {
	return []metadata.DescriptorBinding{{
		Binding: cameraBinding,
		Kind:    metadata.DescriptorUniformBuffer,
		Stages:  metadata.ShaderStageVertex,
		Size:    cameraSize,
	}}
}

// CreatePipeline creates the textured mesh pipeline for pass.
func (r *Renderer) CreatePipeline(pass *RenderPass, vertexShader, fragmentShader []byte) (*Pipeline, error) {
	bindings := append(cameraBindings(), metadata.DescriptorBinding{
		Binding: textureBinding,
		Kind:    metadata.DescriptorCombinedImageSampler,
		Stages:  metadata.ShaderStageFragment,
		Count:   MaxTextures,
	})
	p, err := NewPipeline(r.dev, PipelineConfig{
		Name:           "mesh",
		Pass:           pass,
		VertexShader:   vertexShader,
		FragmentShader: fragmentShader,
		Layout:         MeshLayout,
		Bindings:       bindings,
		PushConstants: []metadata.PushConstantRange{{
			Size:   meshPushSize,
			Stages: metadata.ShaderStageVertex | metadata.ShaderStageFragment,
		}},
		Topology:  metadata.TopologyTriangles,
		CullMode:  metadata.FaceCullModeBack,
		DepthTest: true,
	})
	if err != nil {
		return nil, err
	}
	r.owned = append(r.owned, p)
	return p, nil
}

// CreateDebugPipelines creates the line and triangle pipelines used by
// DrawDebugLines and DrawDebugTriangles.
// Replacing them is not allowed while a frame is being recorded.
func (r *Renderer) CreateDebugPipelines(pass *RenderPass, vertexShader, fragmentShader []byte) error {
	if r.inFrame {
		return ErrFrameInProgress
	}
	cfg := PipelineConfig{
		Pass:           pass,
		VertexShader:   vertexShader,
		FragmentShader: fragmentShader,
		Layout:         DebugLayout,
		Bindings:       cameraBindings(),
		CullMode:       metadata.FaceCullModeNone,
		DepthTest:      true,
	}
	cfg.Name, cfg.Topology = "debug-lines", metadata.TopologyLines
	lines, err := NewPipeline(r.dev, cfg)
	if err != nil {
		return err
	}
	cfg.Name, cfg.Topology = "debug-triangles", metadata.TopologyTriangles
	triangles, err := NewPipeline(r.dev, cfg)
	if err != nil {
		lines.Destroy()
		return err
	}
	if r.linePipeline != nil {
		// Frames still in flight may reference the old pair.
		if err := r.dev.WaitIdle(); err != nil {
			lines.Destroy()
			triangles.Destroy()
			return err
		}
		r.linePipeline.Destroy()
		r.trianglePipeline.Destroy()
	}
	r.linePipeline, r.trianglePipeline = lines, triangles
	return nil
}

func (r *Renderer) resetFrame() {
	r.pipelines = r.pipelines[:0]
	clear(r.textures)
	clear(r.debugBound)
	r.objects = r.objects[:0]
	r.lineData = r.lineData[:0]
	r.triData = r.triData[:0]
	r.stats = FrameStats{}
}

// begin starts a frame on fb and opens pass with a full viewport.
func (r *Renderer) begin(fb *Framebuffer, pass *RenderPass) error {
	if r.inFrame {
		return ErrFrameInProgress
	}
	if err := r.sched.BeginFrame(fb); err != nil {
		return err
	}
	if err := r.record(fb, pass); err != nil {
		r.cq.discard()
		return errors.Join(err, r.sched.abort())
	}
	r.inFrame = true
	return nil
}

func (r *Renderer) record(fb *Framebuffer, pass *RenderPass) error {
	if err := r.cq.StartRecording(); err != nil {
		return err
	}
	if err := r.cq.BeginRenderPass(pass, fb); err != nil {
		return err
	}
	if err := r.cq.SetViewport(); err != nil {
		return err
	}
	return r.cq.SetScissor()
}

// finish closes the pass and submits the frame.
func (r *Renderer) finish() error {
	r.inFrame = false
	r.guiFrame = false
	if err := r.cq.EndRenderPass(); err != nil {
		return err
	}
	if err := r.cq.EndRecording(); err != nil {
		return err
	}
	return r.sched.SubmitFrame(r.cq)
}

// BeginFrame starts a frame rendering into fb with pass, seen from camera.
func (r *Renderer) BeginFrame(fb *Framebuffer, pass *RenderPass, camera Camera) error {
	if r.inFrame {
		return ErrFrameInProgress
	}
	r.resetFrame()
	r.camera = camera.ViewMatrix().AppendBytes(r.camera[:0])
	r.camera = camera.ProjectionMatrix().AppendBytes(r.camera)
	return r.begin(fb, pass)
}

// firstUse prepares p the first time it is drawn with in a frame: it gets
// the frame's camera and every sampler slot points at the default texture.
// p only joins the frame once both succeeded, so a failure is reported
// again on the next Draw.
func (r *Renderer) firstUse(p *Pipeline) error {
	if _, seen := r.textures[p]; seen {
		return nil
	}
	if err := p.UploadUniformBufferData(cameraBinding, r.camera); err != nil {
		return fmt.Errorf("uploading camera to pipeline %q: %w", p.Name(), err)
	}
	r.stats.UniformUploads++
	if b, ok := p.SamplerBinding(); ok {
		for i := 0; i < int(b.Count); i++ {
			if err := p.UploadTextureSampler(int(b.Binding), i, r.defaultTexture); err != nil {
				return fmt.Errorf("clearing texture slot %d of pipeline %q: %w", i, p.Name(), err)
			}
		}
	}
	r.pipelines = append(r.pipelines, p)
	r.textures[p] = nil
	return nil
}

// textureIndex returns the slot of tex in p's table for this frame, adding
// it on a miss.
func (r *Renderer) textureIndex(p *Pipeline, tex *Texture) (uint32, error) {
	b, ok := p.SamplerBinding()
	if !ok {
		return 0, nil
	}
	table := r.textures[p]
	if i := slices.Index(table, tex); i >= 0 {
		return uint32(i), nil
	}
	idx := len(table)
	if err := p.UploadTextureSampler(int(b.Binding), idx, tex); err != nil {
		r.logger.Error("texture table of pipeline is full", "pipeline", p.Name(), "capacity", b.Count)
		return 0, err
	}
	r.textures[p] = append(table, tex)
	r.stats.TextureUploads++
	return uint32(idx), nil
}

// Draw queues d for drawing with p at transform.
func (r *Renderer) Draw(d Drawable, p *Pipeline, transform math.Mat4) error {
	if !r.inFrame || r.guiFrame {
		return ErrNoFrame
	}
	if d.Mesh == nil || d.Mesh.Vertices == nil || d.Mesh.Indices == nil {
		return fmt.Errorf("drawable without mesh data")
	}
	if err := r.firstUse(p); err != nil {
		return err
	}
	tex := d.Texture
	if tex == nil {
		tex = r.defaultTexture
	}
	idx, err := r.textureIndex(p, tex)
	if err != nil {
		return err
	}
	r.objects = append(r.objects, RenderObject{
		Vertices:     d.Mesh.Vertices,
		Indices:      d.Mesh.Indices,
		Pipeline:     p,
		Model:        transform,
		TextureIndex: idx,
	})
	r.stats.Objects++
	return nil
}

func packDebug(dst []byte, vertices []DebugVertex) []byte {
	for _, v := range vertices {
		for _, f := range [...]float32{v.Position.X, v.Position.Y, v.Position.Z, v.Color.X, v.Color.Y, v.Color.Z, v.Color.W} {
			dst = binary.LittleEndian.AppendUint32(dst, stdmath.Float32bits(f))
		}
	}
	return dst
}

func (r *Renderer) drawDebug(p *Pipeline, buf *DynamicVertexBuffer, data *[]byte, vertices []DebugVertex) error {
	if !r.inFrame || r.guiFrame {
		return ErrNoFrame
	}
	if p == nil {
		return fmt.Errorf("%w: debug pipelines were not created", ErrInvalidPipeline)
	}
	*data = packDebug(*data, vertices)
	if err := buf.Upload(*data); err != nil {
		return err
	}
	if !r.debugBound[p] {
		if err := p.UploadUniformBufferData(cameraBinding, r.camera); err != nil {
			return err
		}
		r.debugBound[p] = true
		r.stats.UniformUploads++
	}
	return nil
}

// DrawDebugLines adds line list vertices to this frame.
func (r *Renderer) DrawDebugLines(vertices []DebugVertex) error {
	return r.drawDebug(r.linePipeline, r.debugLines, &r.lineData, vertices)
}

// DrawDebugTriangles adds triangle list vertices to this frame.
func (r *Renderer) DrawDebugTriangles(vertices []DebugVertex) error {
	return r.drawDebug(r.trianglePipeline, r.debugTriangles, &r.triData, vertices)
}

func (r *Renderer) issueDebug(p *Pipeline, buf *DynamicVertexBuffer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := r.cq.BindPipeline(p); err != nil {
		return err
	}
	r.stats.PipelineBinds++
	if err := r.cq.BindDynamicVertexBuffer(buf); err != nil {
		return err
	}
	if err := r.cq.Draw(buf.Count()); err != nil {
		return err
	}
	r.stats.DrawCalls++
	return nil
}

func (r *Renderer) issue() error {
	for _, p := range r.pipelines {
		bound := false
		for i := range r.objects {
			o := &r.objects[i]
			if o.Pipeline != p {
				continue
			}
			if !bound {
				if err := r.cq.BindPipeline(p); err != nil {
					return err
				}
				r.stats.PipelineBinds++
				bound = true
			}
			if err := r.cq.BindVertexBuffer(o.Vertices); err != nil {
				return err
			}
			if err := r.cq.BindIndexBuffer(o.Indices); err != nil {
				return err
			}
			r.push = o.Model.AppendBytes(r.push[:0])
			r.push = binary.LittleEndian.AppendUint32(r.push, o.TextureIndex)
			if err := r.cq.UploadPushConstants(p, r.push); err != nil {
				return err
			}
			if err := r.cq.DrawIndexed(o.Indices.Count()); err != nil {
				return err
			}
			r.stats.DrawCalls++
		}
	}
	if err := r.issueDebug(r.linePipeline, r.debugLines, r.lineData); err != nil {
		return err
	}
	return r.issueDebug(r.trianglePipeline, r.debugTriangles, r.triData)
}

// EndFrame records every queued draw, closes the pass and submits.
func (r *Renderer) EndFrame() error {
	if !r.inFrame || r.guiFrame {
		return ErrNoFrame
	}
	if err := r.issue(); err != nil {
		// Submit what was recorded so the frame slot returns to idle.
		return errors.Join(err, r.finish())
	}
	return r.finish()
}

// BeginDebugGuiFrame starts a frame that only draws the debug GUI.
func (r *Renderer) BeginDebugGuiFrame(fb *Framebuffer, pass *RenderPass) error {
	if r.inFrame {
		return ErrFrameInProgress
	}
	r.resetFrame()
	if err := r.begin(fb, pass); err != nil {
		return err
	}
	r.guiFrame = true
	return nil
}

// DrawDebugGui lets gui record itself into the open pass. The widgets must
// already be declared: the caller owns gui's BeginFrame and EndFrame.
func (r *Renderer) DrawDebugGui(gui DebugGUI) error {
	if !r.inFrame {
		return ErrNoFrame
	}
	return gui.Render(r.cq)
}

func (r *Renderer) EndDebugGuiFrame() error {
	if !r.inFrame || !r.guiFrame {
		return ErrNoFrame
	}
	return r.finish()
}

func (r *Renderer) Stats() FrameStats { return r.stats }

// TextureIndex is the slot of tex in p's texture table for this frame.
func (r *Renderer) TextureIndex(p *Pipeline, tex *Texture) (int, bool) {
	i := slices.Index(r.textures[p], tex)
	return i, i >= 0
}

// FrameTextures is p's texture table for this frame.
func (r *Renderer) FrameTextures(p *Pipeline) []*Texture {
	return slices.Clone(r.textures[p])
}

// Pipelines are the pipelines drawn with this frame, in first-use order.
func (r *Renderer) Pipelines() []*Pipeline {
	return slices.Clone(r.pipelines)
}

func (r *Renderer) Objects() []RenderObject {
	return slices.Clone(r.objects)
}

func (r *Renderer) Device() *GraphicsDevice { return r.dev }
func (r *Renderer) Scheduler() *FrameScheduler { return r.sched }
func (r *Renderer) CommandQueue() *CommandQueue { return r.cq }
func (r *Renderer) DefaultTexture() *Texture { return r.defaultTexture }
func (r *Renderer) DebugPipelines() (lines, triangles *Pipeline) { return r.linePipeline, r.trianglePipeline }

// Destroy waits for the device and releases everything the renderer created.
func (r *Renderer) Destroy() {
	if err := r.dev.WaitIdle(); err != nil {
		r.logger.Warn("wait idle before renderer destroy", "err", err)
	}
	for _, p := range r.owned {
		p.Destroy()
	}
	r.owned = nil
	for _, p := range []*Pipeline{r.linePipeline, r.trianglePipeline} {
		if p != nil {
			p.Destroy()
		}
	}
	r.linePipeline, r.trianglePipeline = nil, nil
	for _, b := range []*DynamicVertexBuffer{r.debugLines, r.debugTriangles} {
		if b != nil {
			b.Destroy()
		}
	}
	r.debugLines, r.debugTriangles = nil, nil
	if r.defaultTexture != nil {
		r.defaultTexture.Destroy()
		r.defaultTexture = nil
	}
	if r.sched != nil {
		r.sched.Destroy()
		r.sched = nil
	}
	if r.cq != nil {
		r.cq.Destroy()
		r.cq = nil
	}
}
