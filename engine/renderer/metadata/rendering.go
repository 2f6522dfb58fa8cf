package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief The primitive assembly mode of a pipeline. */
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

func (t Topology) String() string {
	switch t {
	case TopologyTriangles:
		return "triangles"
	case TopologyLines:
		return "lines"
	default:
		return "unknown"
	}
}

/** @brief A bit mask of shader stages. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000010
)
