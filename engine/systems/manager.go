package systems

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/scene"
)

type SystemManagerConfig struct {
	Workers   int
	QueueSize int
	Width     int
	Height    int
}

// SystemManager owns the systems and runs them in a fixed order each tick:
// finished jobs, cameras, then rendering.
type SystemManager struct {
	Jobs     *JobSystem
	Textures *TextureSystem
	Cameras  *CameraSystem
	Render   *RenderSystem
}

func NewSystemManager(logger *log.Logger, r *renderer.Renderer, pipeline *renderer.Pipeline, cfg SystemManagerConfig) (*SystemManager, error) {
	js, err := NewJobSystem(logger, cfg.Workers, cfg.QueueSize)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		Jobs:     js,
		Textures: NewTextureSystem(logger, r.Device(), js),
		Cameras:  NewCameraSystem(logger, cfg.Width, cfg.Height),
		Render:   NewRenderSystem(logger, r, pipeline),
	}, nil
}

// Update runs the callbacks of finished jobs and the camera write phase.
func (sm *SystemManager) Update(reg *scene.Registry, free *components.FreeFlyCamera) {
	sm.Jobs.Update()
	sm.Cameras.Update(reg, free)
}

func (sm *SystemManager) Shutdown() error {
	return errors.Join(sm.Jobs.Shutdown(), sm.Textures.Shutdown())
}
