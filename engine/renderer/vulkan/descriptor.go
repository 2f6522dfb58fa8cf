package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief The descriptor state of a pipeline: one layout, a pool sized for
 * every set and the sets themselves, one per frame in flight.
 */
type descriptorSets struct {
	gpu      *GPU
	layout   vk.DescriptorSetLayout
	pool     vk.DescriptorPool
	sets     []vk.DescriptorSet
	bindings map[uint32]metadata.DescriptorBinding
}

func (g *GPU) newDescriptorSets(bindings []metadata.DescriptorBinding, count int) (*descriptorSets, error) {
	d := &descriptorSets{gpu: g, bindings: make(map[uint32]metadata.DescriptorBinding, len(bindings))}
	if len(bindings) == 0 || count <= 0 {
		return d, nil
	}

	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		d.bindings[b.Binding] = b
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: b.ElementCount(),
			StageFlags:      shaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	sizes := metadata.PoolSizes(bindings, uint32(count))
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{Type: descriptorType(s.Kind), DescriptorCount: s.Count}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(count),
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	err := g.locks.SafeCall(DescriptorManagement, func() error {
		if err := resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(g.device.LogicalDevice, &layoutInfo, g.allocator, &d.layout)); err != nil {
			return err
		}
		if err := resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(g.device.LogicalDevice, &poolInfo, g.allocator, &d.pool)); err != nil {
			return err
		}
		layouts := make([]vk.DescriptorSetLayout, count)
		for i := range layouts {
			layouts[i] = d.layout
		}
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     d.pool,
			DescriptorSetCount: uint32(count),
			PSetLayouts:        layouts,
		}
		d.sets = make([]vk.DescriptorSet, count)
		return resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(g.device.LogicalDevice, &allocInfo, &d.sets[0]))
	})
	if err != nil {
		d.destroy()
		return nil, err
	}
	return d, nil
}

func (d *descriptorSets) check(set int, binding uint32, kind metadata.DescriptorKind) error {
	if set < 0 || set >= len(d.sets) {
		return fmt.Errorf("descriptor set %d out of range [0,%d)", set, len(d.sets))
	}
	b, ok := d.bindings[binding]
	if !ok {
		return fmt.Errorf("binding %d is not declared", binding)
	}
	if b.Kind != kind {
		return fmt.Errorf("binding %d is %s, not %s", binding, b.Kind, kind)
	}
	return nil
}

func (d *descriptorSets) update(write vk.WriteDescriptorSet) {
	_ = d.gpu.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.gpu.device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (d *descriptorSets) writeBuffer(set int, binding uint32, buf driver.Buffer) {
	if err := d.check(set, binding, metadata.DescriptorUniformBuffer); err != nil {
		d.gpu.logger.Error("uniform write dropped", "err", err)
		return
	}
	b := buf.(*Buffer)
	d.update(vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          d.sets[set],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: b.handle,
			Offset: 0,
			Range:  vk.DeviceSize(b.size),
		}},
	})
}

func (d *descriptorSets) writeImage(set int, binding uint32, index int, view driver.ImageView, sampler driver.Sampler) {
	if err := d.check(set, binding, metadata.DescriptorCombinedImageSampler); err != nil {
		d.gpu.logger.Error("sampler write dropped", "err", err)
		return
	}
	if index < 0 || uint32(index) >= d.bindings[binding].ElementCount() {
		d.gpu.logger.Error("sampler write dropped", "binding", binding, "index", index)
		return
	}
	d.update(vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          d.sets[set],
		DstBinding:      binding,
		DstArrayElement: uint32(index),
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler.(*Sampler).handle,
			ImageView:   view.(*ImageView).handle,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	})
}

// destroy frees the pool, which takes the sets with it.
func (d *descriptorSets) destroy() {
	dev := d.gpu.device.LogicalDevice
	if d.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(dev, d.pool, d.gpu.allocator)
		d.pool = vk.NullDescriptorPool
	}
	if d.layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, d.layout, d.gpu.allocator)
		d.layout = vk.NullDescriptorSetLayout
	}
	d.sets = nil
}
