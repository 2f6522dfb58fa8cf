package headless

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type textureSlot struct {
	View    driver.ImageView
	Sampler driver.Sampler
}

// Pipeline keeps the content of every descriptor set so tests can inspect
// what each frame's set points at.
type Pipeline struct {
	handle
	Desc      driver.PipelineDesc
	Pool      []metadata.PoolSize
	buffers   []map[uint32]driver.Buffer
	textures  []map[uint32][]textureSlot
	Writes    int
	bindingBy map[uint32]metadata.DescriptorBinding
}

func (g *GPU) NewPipeline(desc *driver.PipelineDesc) (driver.Pipeline, error) {
	if desc.Pass == nil {
		return nil, fmt.Errorf("headless: pipeline without render pass")
	}
	if desc.Sets < 1 {
		return nil, fmt.Errorf("headless: pipeline needs at least one descriptor set")
	}
	if len(desc.VertexShader) == 0 || len(desc.FragmentShader) == 0 {
		return nil, fmt.Errorf("headless: pipeline is missing shader code")
	}
	p := &Pipeline{
		handle:    g.newHandle(KindPipeline),
		Desc:      *desc,
		Pool:      metadata.PoolSizes(desc.Bindings, uint32(desc.Sets)),
		bindingBy: make(map[uint32]metadata.DescriptorBinding),
	}
	for _, b := range desc.Bindings {
		p.bindingBy[b.Binding] = b
	}
	for i := 0; i < desc.Sets; i++ {
		p.buffers = append(p.buffers, make(map[uint32]driver.Buffer))
		textures := make(map[uint32][]textureSlot)
		for _, b := range desc.Bindings {
			if b.Kind == metadata.DescriptorCombinedImageSampler {
				textures[b.Binding] = make([]textureSlot, b.ElementCount())
			}
		}
		p.textures = append(p.textures, textures)
	}
	return p, nil
}

func (p *Pipeline) SetBuffer(set int, binding uint32, buf driver.Buffer) {
	p.use("SetBuffer")
	if b, ok := p.bindingBy[binding]; !ok || b.Kind != metadata.DescriptorUniformBuffer {
		panic(fmt.Sprintf("headless: binding %d is not a uniform buffer", binding))
	}
	p.buffers[set][binding] = buf
	p.Writes++
}

func (p *Pipeline) SetTexture(set int, binding uint32, index int, view driver.ImageView, sampler driver.Sampler) {
	p.use("SetTexture")
	slots, ok := p.textures[set][binding]
	if !ok {
		panic(fmt.Sprintf("headless: binding %d is not a sampler array", binding))
	}
	if index < 0 || index >= len(slots) {
		panic(fmt.Sprintf("headless: sampler index %d out of %d", index, len(slots)))
	}
	slots[index] = textureSlot{View: view, Sampler: sampler}
	p.Writes++
}

// Buffer is the buffer bound at binding of set.
func (p *Pipeline) Buffer(set int, binding uint32) driver.Buffer {
	return p.buffers[set][binding]
}

// Texture is the view bound at element index of binding in set.
func (p *Pipeline) Texture(set int, binding uint32, index int) driver.ImageView {
	return p.textures[set][binding][index].View
}
