package systems

import (
	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/scene"
)

// CameraSystem keeps scene cameras sized to the viewport and picks the
// camera a frame is drawn with.
type CameraSystem struct {
	logger *log.Logger

	width, height int
	dirty         bool
}

func NewCameraSystem(logger *log.Logger, width, height int) *CameraSystem {
	return &CameraSystem{
		logger: core.OrDiscard(logger).WithPrefix("cameras"),
		width:  width,
		height: height,
		dirty:  true,
	}
}

// OnResize records the new viewport size. Cameras pick it up on the next
// Update.
func (cs *CameraSystem) OnResize(width, height int) {
	if width <= 0 || height <= 0 || (width == cs.width && height == cs.height) {
		return
	}
	cs.width, cs.height = width, height
	cs.dirty = true
}

/**
 * @brief The camera write phase. Updates the projection of every scene
 * camera after a resize and of cameras added since the last one.
 * @param reg The scene registry.
 * @param free The fallback camera, may be nil.
 */
func (cs *CameraSystem) Update(reg *scene.Registry, free *components.FreeFlyCamera) {
	if cs.dirty && free != nil {
		free.SetViewport(cs.width, cs.height)
	}
	scene.Each(reg, func(e scene.Entity, c *components.CameraComponent) {
		if cs.dirty || c.Aspect() != float32(cs.width)/float32(cs.height) {
			c.SetViewport(cs.width, cs.height)
		}
	})
	cs.dirty = false
}

// Resolve returns the first active scene camera, or free when there is none.
func (cs *CameraSystem) Resolve(reg *scene.Registry, free *components.FreeFlyCamera) renderer.Camera {
	var active *components.CameraComponent
	scene.Each(reg, func(e scene.Entity, c *components.CameraComponent) {
		if active == nil && c.Active {
			active = c
		}
	})
	if active != nil {
		return active
	}
	return free
}
