package assets

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// floatsPerVertex is position (3) + normal (3) + uv (2).
const floatsPerVertex = 8

// MeshData is interleaved pos3, normal3, uv2 float32 vertices with uint16
// indices, counter-clockwise front faces.
type MeshData struct {
	Vertices []float32
	Indices  []uint16
}

func (MeshData) Layout() metadata.VertexLayout {
	return metadata.VertexLayout{metadata.ElementFloat3, metadata.ElementFloat3, metadata.ElementFloat2}
}

func (m MeshData) VertexCount() int { return len(m.Vertices) / floatsPerVertex }

// VertexBytes is the little-endian encoding of Vertices.
func (m MeshData) VertexBytes() []byte {
	out := make([]byte, 0, len(m.Vertices)*4)
	for _, f := range m.Vertices {
		out = binary.LittleEndian.AppendUint32(out, stdmath.Float32bits(f))
	}
	return out
}

type face struct {
	normal  [3]float32
	corners [4][3]float32
}

// Cube is a unit cube centered on the origin with one quad per face so
// every face has its own normal and full uv range.
func Cube() MeshData {
	faces := []face{
		{[3]float32{0, 0, 1}, [4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}},
	}
	return quads(faces)
}

// Plane is a size x size quad in the XZ plane facing +Y.
func Plane(size float32) MeshData {
	h := size / 2
	return quads([]face{{
		[3]float32{0, 1, 0},
		[4][3]float32{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}},
	}})
}

var quadUVs = [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

func quads(faces []face) MeshData {
	m := MeshData{
		Vertices: make([]float32, 0, len(faces)*4*floatsPerVertex),
		Indices:  make([]uint16, 0, len(faces)*6),
	}
	for i, f := range faces {
		for c, p := range f.corners {
			m.Vertices = append(m.Vertices, p[0], p[1], p[2], f.normal[0], f.normal[1], f.normal[2], quadUVs[c][0], quadUVs[c][1])
		}
		base := uint16(i * 4)
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return m
}
