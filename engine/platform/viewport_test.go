package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadlessViewportResizeFiresListeners(t *testing.T) {
	v := NewHeadlessViewport(640, 480)
	assert.Equal(t, 640, v.Width())
	assert.Equal(t, 480, v.Height())

	var got [][2]int
	v.OnResize(func(w, h int) { got = append(got, [2]int{w, h}) })
	v.OnResize(func(w, h int) { got = append(got, [2]int{-w, -h}) })

	v.Resize(800, 600)
	v.Resize(800, 600)
	assert.Equal(t, [][2]int{{800, 600}, {-800, -600}}, got)

	w, h := v.FramebufferSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestHeadlessViewportClose(t *testing.T) {
	var v Viewport = NewHeadlessViewport(1, 1)
	assert.True(t, v.IsOpen())
	v.PollEvents()
	v.Close()
	assert.False(t, v.IsOpen())
}
