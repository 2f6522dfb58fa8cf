package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type PipelineConfig struct {
	Name           string
	Pass           *RenderPass
	VertexShader   []byte
	FragmentShader []byte
	Layout         metadata.VertexLayout
	Bindings       []metadata.DescriptorBinding
	PushConstants  []metadata.PushConstantRange
	Topology       metadata.Topology
	CullMode       metadata.FaceCullMode
	DepthTest      bool
}

func (c *PipelineConfig) validate() error {
	if c.Pass == nil {
		return fmt.Errorf("%w: %q has no render pass", ErrInvalidPipeline, c.Name)
	}
	if len(c.Layout) == 0 {
		return fmt.Errorf("%w: %q has an empty vertex layout", ErrInvalidPipeline, c.Name)
	}
	seen := make(map[uint32]bool, len(c.Bindings))
	for _, b := range c.Bindings {
		if seen[b.Binding] {
			return fmt.Errorf("%w: %q declares binding %d twice", ErrInvalidPipeline, c.Name, b.Binding)
		}
		seen[b.Binding] = true
		switch b.Kind {
		case metadata.DescriptorUniformBuffer:
			if b.Size == 0 {
				return fmt.Errorf("%w: %q uniform binding %d has no size", ErrInvalidPipeline, c.Name, b.Binding)
			}
		case metadata.DescriptorCombinedImageSampler:
			if b.Count == 0 {
				return fmt.Errorf("%w: %q sampler binding %d has no elements", ErrInvalidPipeline, c.Name, b.Binding)
			}
		default:
			return fmt.Errorf("%w: %q binding %d has kind %s", ErrInvalidPipeline, c.Name, b.Binding, b.Kind)
		}
	}
	for i, r := range c.PushConstants {
		if r.Size == 0 || r.Size%4 != 0 {
			return fmt.Errorf("%w: %q push constant range %d has size %d", ErrInvalidPipeline, c.Name, i, r.Size)
		}
	}
	return nil
}

// Pipeline is compiled shader state plus one descriptor set per frame in
// flight. Uniform bindings get one mapped buffer per frame, bound into the
// set of the same frame.
type Pipeline struct {
	id     core.ID
	dev    *GraphicsDevice
	cfg    PipelineConfig
	handle driver.Pipeline

	bindings    map[uint32]metadata.DescriptorBinding
	uniforms    map[uint32][]*Buffer
	pushOffsets []uint32
	pushSize    uint32

	uniformUploads int
}

func NewPipeline(dev *GraphicsDevice, cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		dev.logger.Error(err.Error())
		return nil, err
	}
	n := dev.FramesInFlight()
	handle, err := dev.gpu.NewPipeline(&driver.PipelineDesc{
		Pass:           cfg.Pass.Handle(),
		VertexShader:   cfg.VertexShader,
		FragmentShader: cfg.FragmentShader,
		Layout:         cfg.Layout,
		Bindings:       cfg.Bindings,
		PushConstants:  cfg.PushConstants,
		Topology:       cfg.Topology,
		CullMode:       cfg.CullMode,
		DepthTest:      cfg.DepthTest,
		Sets:           n,
	})
	if err != nil {
		err = fmt.Errorf("creating pipeline %q: %w", cfg.Name, err)
		dev.logger.Error(err.Error())
		return nil, err
	}

	p := &Pipeline{
		id:       core.NewID(),
		dev:      dev,
		cfg:      cfg,
		handle:   handle,
		bindings: make(map[uint32]metadata.DescriptorBinding, len(cfg.Bindings)),
		uniforms: make(map[uint32][]*Buffer),
	}
	p.pushOffsets, p.pushSize = metadata.PushConstantOffsets(cfg.PushConstants)

	for _, b := range cfg.Bindings {
		p.bindings[b.Binding] = b
		if b.Kind != metadata.DescriptorUniformBuffer {
			continue
		}
		replicas := make([]*Buffer, n)
		p.uniforms[b.Binding] = replicas
		for frame := range replicas {
			buf, err := NewBuffer(dev, int64(b.Size), driver.UsageUniform)
			if err != nil {
				p.Destroy()
				return nil, fmt.Errorf("allocating uniform %d of pipeline %q: %w", b.Binding, cfg.Name, err)
			}
			replicas[frame] = buf
			handle.SetBuffer(frame, b.Binding, buf.Handle())
		}
	}

	dev.logger.Debug("pipeline created", "name", cfg.Name, "id", core.ShortID(p.id), "topology", cfg.Topology, "sets", n, "push", p.pushSize)
	return p, nil
}

// UploadUniformBufferData copies data into the current frame's replica of
// the uniform at binding. Replicas of other frames are never touched.
func (p *Pipeline) UploadUniformBufferData(binding int, data []byte) error {
	b, ok := p.bindings[uint32(binding)]
	if !ok || b.Kind != metadata.DescriptorUniformBuffer {
		return fmt.Errorf("%w: pipeline %q has no uniform at binding %d", ErrUnknownBinding, p.cfg.Name, binding)
	}
	if uint32(len(data)) != b.Size {
		return fmt.Errorf("%w: %w: %d bytes for binding %d of %d bytes", ErrDescriptorOverflow, ErrUniformSize, len(data), binding, b.Size)
	}
	if err := p.uniforms[b.Binding][p.dev.CurrentFrame()].Write(0, data); err != nil {
		return err
	}
	p.uniformUploads++
	return nil
}

// UploadTextureSampler points element index of a sampler array at tex, in
// the descriptor set of every frame.
func (p *Pipeline) UploadTextureSampler(binding, index int, tex *Texture) error {
	b, ok := p.bindings[uint32(binding)]
	if !ok || b.Kind != metadata.DescriptorCombinedImageSampler {
		return fmt.Errorf("%w: pipeline %q has no sampler at binding %d", ErrUnknownBinding, p.cfg.Name, binding)
	}
	if index < 0 || index >= int(b.Count) {
		return fmt.Errorf("%w: sampler index %d of binding %d holds %d textures", ErrDescriptorOverflow, index, binding, b.Count)
	}
	for set := 0; set < p.dev.FramesInFlight(); set++ {
		p.handle.SetTexture(set, b.Binding, index, tex.View(), tex.Sampler())
	}
	return nil
}

// PushConstantSize is the byte size of all ranges packed back to back.
func (p *Pipeline) PushConstantSize() uint32 {
	return p.pushSize
}

// UniformReplica is the buffer bound for binding in the set of frame.
func (p *Pipeline) UniformReplica(binding, frame int) *Buffer {
	replicas := p.uniforms[uint32(binding)]
	if frame < 0 || frame >= len(replicas) {
		return nil
	}
	return replicas[frame]
}

// UniformUploads counts successful UploadUniformBufferData calls.
func (p *Pipeline) UniformUploads() int {
	return p.uniformUploads
}

// SamplerBinding returns the first sampler array binding.
func (p *Pipeline) SamplerBinding() (metadata.DescriptorBinding, bool) {
	for _, b := range p.cfg.Bindings {
		if b.Kind == metadata.DescriptorCombinedImageSampler {
			return b, true
		}
	}
	return metadata.DescriptorBinding{}, false
}

func (p *Pipeline) ID() core.ID { return p.id }
func (p *Pipeline) Name() string { return p.cfg.Name }
func (p *Pipeline) Layout() metadata.VertexLayout { return p.cfg.Layout }
func (p *Pipeline) Topology() metadata.Topology { return p.cfg.Topology }
func (p *Pipeline) Bindings() []metadata.DescriptorBinding { return p.cfg.Bindings }
func (p *Pipeline) PushConstants() []metadata.PushConstantRange { return p.cfg.PushConstants }
func (p *Pipeline) Handle() driver.Pipeline { return p.handle }

func (p *Pipeline) Destroy() {
	for binding, replicas := range p.uniforms {
		for _, r := range replicas {
			if r != nil {
				r.Destroy()
			}
		}
		delete(p.uniforms, binding)
	}
	if p.handle != nil {
		p.handle.Destroy()
		p.handle = nil
	}
}
