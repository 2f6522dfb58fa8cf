package systems

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/scene"
)

type drawItem struct {
	entity   scene.Entity
	drawable renderer.Drawable
	pipeline *renderer.Pipeline
	model    math.Mat4
}

// RenderSystem draws every entity that has both a transform and a mesh
// renderer. It must run inside an open renderer frame.
type RenderSystem struct {
	logger *log.Logger
	r      *renderer.Renderer
	// Pipeline is used by mesh renderers that do not name their own.
	Pipeline *renderer.Pipeline

	items []drawItem
}

func NewRenderSystem(logger *log.Logger, r *renderer.Renderer, pipeline *renderer.Pipeline) *RenderSystem {
	return &RenderSystem{
		logger:   core.OrDiscard(logger).WithPrefix("render"),
		r:        r,
		Pipeline: pipeline,
	}
}

/**
 * @brief Runs the transform write phase, then the read phase that issues
 * one draw per entity. No component is touched after the write phase.
 * @return ErrDescriptorOverflow when a pipeline runs out of texture slots,
 * which the caller should treat as fatal. Other draw errors are logged and
 * the entity is skipped.
 */
func (rs *RenderSystem) Render(reg *scene.Registry) error {
	rs.items = rs.items[:0]
	scene.Each2(reg, func(e scene.Entity, t *components.TransformComponent, m *components.MeshRendererComponent) {
		p := m.Pipeline
		if p == nil {
			p = rs.Pipeline
		}
		rs.items = append(rs.items, drawItem{entity: e, drawable: m.Drawable(), pipeline: p, model: t.Matrix()})
	})

	for _, it := range rs.items {
		if it.pipeline == nil {
			rs.logger.Warn("entity has no pipeline", "entity", it.entity)
			continue
		}
		err := rs.r.Draw(it.drawable, it.pipeline, it.model)
		if errors.Is(err, renderer.ErrDescriptorOverflow) || errors.Is(err, renderer.ErrNoFrame) {
			return err
		}
		if err != nil {
			rs.logger.Error("draw failed", "entity", it.entity, "err", err)
		}
	}
	return nil
}

// Drawn is the number of entities collected by the last Render.
func (rs *RenderSystem) Drawn() int { return len(rs.items) }
