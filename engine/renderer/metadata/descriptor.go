package metadata

import "fmt"

/** @brief The kind of resource a descriptor binding exposes to shaders. */
type DescriptorKind int

const (
	DescriptorUniformBuffer DescriptorKind = iota
	DescriptorCombinedImageSampler
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	case DescriptorCombinedImageSampler:
		return "combined-image-sampler"
	default:
		return fmt.Sprintf("descriptor(%d)", int(k))
	}
}

/**
 * @brief A single slot of a pipeline's descriptor set.
 */
type DescriptorBinding struct {
	/** @brief The binding slot in the shader. */
	Binding uint32
	Kind    DescriptorKind
	/** @brief Shader stages that read the binding. */
	Stages ShaderStage
	/** @brief Byte size of a uniform buffer. Unused for samplers. */
	Size uint32
	/** @brief Array length of a sampler binding. Uniform buffers use 1. */
	Count uint32
}

// ElementCount is the number of descriptors the binding occupies in one set.
func (b DescriptorBinding) ElementCount() uint32 {
	if b.Count == 0 {
		return 1
	}
	return b.Count
}

/**
 * @brief A range of push constant bytes. Ranges are packed back to back in
 * declaration order.
 */
type PushConstantRange struct {
	Size   uint32
	Stages ShaderStage
}

// PoolSize is the number of descriptors of one kind a pool must provide.
type PoolSize struct {
	Kind  DescriptorKind
	Count uint32
}

// PoolSizes sums elementCount x sets for each kind, in first-seen kind order.
func PoolSizes(bindings []DescriptorBinding, sets uint32) []PoolSize {
	var sizes []PoolSize
	index := map[DescriptorKind]int{}
	for _, b := range bindings {
		i, ok := index[b.Kind]
		if !ok {
			i = len(sizes)
			index[b.Kind] = i
			sizes = append(sizes, PoolSize{Kind: b.Kind})
		}
		sizes[i].Count += b.ElementCount() * sets
	}
	return sizes
}

// PushConstantOffsets returns the packed offset of each range and the total size.
func PushConstantOffsets(ranges []PushConstantRange) ([]uint32, uint32) {
	offsets := make([]uint32, len(ranges))
	var total uint32
	for i, r := range ranges {
		offsets[i] = total
		total += r.Size
	}
	return offsets, total
}
