package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
)

func TestBufferWriteBounds(t *testing.T) {
	e := newTestEnv(t, 2)
	buf, err := NewBuffer(e.dev, 16, driver.UsageUniform)
	require.NoError(t, err)

	require.NoError(t, buf.Write(8, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	err = buf.Write(12, []byte{9, 9, 9, 9, 9})
	require.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}, buf.Bytes())

	buf.Destroy()
	buf.Destroy()
	require.ErrorIs(t, buf.Write(0, nil), ErrDestroyed)
	assert.Equal(t, 0, e.gpu.Live(headless.KindBuffer))
}

func TestVertexBufferCount(t *testing.T) {
	e := newTestEnv(t, 2)
	vb, err := NewVertexBuffer(e.dev, MeshLayout, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 2, vb.Count())
	assert.Equal(t, MeshLayout, vb.Layout())

	_, err = NewVertexBuffer(e.dev, MeshLayout, make([]byte, 33))
	require.Error(t, err)
}

func TestDynamicVertexBufferGrowsPerFrame(t *testing.T) {
	e := newTestEnv(t, 2)
	stride := int(DebugLayout.Size())
	dvb, err := NewDynamicVertexBuffer(e.dev, DebugLayout, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, e.gpu.Live(headless.KindBuffer))
	assert.NotSame(t, dvb.replicas[0], dvb.replicas[1])

	require.NoError(t, dvb.Upload(make([]byte, 3*stride)))
	assert.Equal(t, 3, dvb.Count())
	assert.Equal(t, 3, dvb.Capacity())

	e.dev.SetCurrentFrame(1)
	assert.Equal(t, 0, dvb.Count())
	assert.Equal(t, 2, dvb.Capacity())

	e.dev.SetCurrentFrame(0)
	require.NoError(t, dvb.Upload(make([]byte, stride)))
	assert.Equal(t, 1, dvb.Count())
	assert.Equal(t, 3, dvb.Capacity(), "storage never shrinks")

	assert.Equal(t, 3, e.gpu.Created(headless.KindBuffer))
	assert.Equal(t, 2, e.gpu.Live(headless.KindBuffer))

	require.Error(t, dvb.Upload(make([]byte, stride+1)))
	dvb.Destroy()
	assert.Equal(t, 0, e.gpu.Live(headless.KindBuffer))
}

func TestIndexBufferLittleEndian(t *testing.T) {
	e := newTestEnv(t, 2)
	ib, err := NewIndexBuffer(e.dev, []uint16{1, 0x0203})
	require.NoError(t, err)
	assert.Equal(t, 2, ib.Count())
	assert.Equal(t, []byte{1, 0, 3, 2}, ib.buf.Bytes())

	_, err = NewIndexBuffer(e.dev, nil)
	require.Error(t, err)
}

func TestSolidTexturePixels(t *testing.T) {
	e := newTestEnv(t, 2)
	tex := e.texture(t, 0xFF0000FF)
	assert.Equal(t, 1, tex.Width())
	assert.Equal(t, 1, tex.Height())
	assert.Equal(t, []byte{0xFF, 0, 0, 0xFF}, tex.Image().(*headless.Image).Pixels())
	assert.NotNil(t, tex.Sampler())
}

func TestNewTextureChecksPixelSize(t *testing.T) {
	e := newTestEnv(t, 2)
	_, err := NewTexture(e.dev, 2, 2, make([]byte, 15))
	require.Error(t, err)
	assert.Equal(t, 0, e.gpu.Live(headless.KindImage))
}

func TestTextureResize(t *testing.T) {
	e := newTestEnv(t, 2)
	tex, err := NewTexture(e.dev, 800, 600, nil)
	require.NoError(t, err)
	old := tex.Image().(*headless.Image)

	require.NoError(t, tex.Resize(1920, 1080))
	assert.True(t, old.IsDestroyed())
	assert.Equal(t, driver.Dim{Width: 1920, Height: 1080}, tex.Size())
	assert.Equal(t, 1, e.gpu.Live(headless.KindImage))

	require.NoError(t, tex.Resize(1920, 1080))
	assert.Equal(t, 2, e.gpu.Created(headless.KindImage), "same size keeps the image")

	tex.Destroy()
	assert.Equal(t, 0, e.gpu.Live(headless.KindImage))
	assert.Equal(t, 0, e.gpu.Live(headless.KindSampler))
}
