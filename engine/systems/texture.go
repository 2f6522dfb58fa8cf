package systems

import (
	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
)

// TextureSystem decodes image files on the job system and uploads them on
// the render thread. Textures are cached by path.
type TextureSystem struct {
	logger   *log.Logger
	dev      *renderer.GraphicsDevice
	jobs     *JobSystem
	textures map[string]*renderer.Texture
	pending  map[string][]func(*renderer.Texture, error)
}

func NewTextureSystem(logger *log.Logger, dev *renderer.GraphicsDevice, jobs *JobSystem) *TextureSystem {
	return &TextureSystem{
		logger:   core.OrDiscard(logger).WithPrefix("textures"),
		dev:      dev,
		jobs:     jobs,
		textures: make(map[string]*renderer.Texture),
		pending:  make(map[string][]func(*renderer.Texture, error)),
	}
}

// Get returns the texture loaded from path, if it is ready.
func (ts *TextureSystem) Get(path string) (*renderer.Texture, bool) {
	t, ok := ts.textures[path]
	return t, ok
}

// Load calls fn with the texture at path once it is uploaded. A cached
// texture calls fn at once. Concurrent loads of the same path decode once.
func (ts *TextureSystem) Load(path string, fn func(*renderer.Texture, error)) {
	if t, ok := ts.textures[path]; ok {
		fn(t, nil)
		return
	}
	if waiting, ok := ts.pending[path]; ok {
		ts.pending[path] = append(waiting, fn)
		return
	}
	ts.pending[path] = []func(*renderer.Texture, error){fn}
	err := ts.jobs.Submit(Job{
		Name: "decode " + path,
		Run: func() (any, error) {
			return assets.LoadTexture(path)
		},
		OnComplete: func(result any) {
			img := result.(assets.ImageData)
			t, err := renderer.NewTexture(ts.dev, img.Width, img.Height, img.Pixels)
			if err == nil {
				ts.textures[path] = t
				ts.logger.Info("texture loaded", "path", path, "id", core.ShortID(t.ID()), "width", img.Width, "height", img.Height)
			}
			ts.finish(path, t, err)
		},
		OnFailure: func(err error) { ts.finish(path, nil, err) },
	})
	if err != nil {
		ts.finish(path, nil, err)
	}
}

// Reload decodes path again and calls fn with the new texture. The old
// texture stays cached and alive until the new one is uploaded, and is kept
// if the reload fails. Used when the asset watcher reports a change.
func (ts *TextureSystem) Reload(path string, fn func(*renderer.Texture, error)) {
	old, ok := ts.textures[path]
	if !ok {
		return
	}
	delete(ts.textures, path)
	ts.Load(path, func(t *renderer.Texture, err error) {
		if err != nil {
			ts.textures[path] = old
			fn(old, err)
			return
		}
		fn(t, nil)
		// The previous texture may still be referenced by frames in flight.
		if err := ts.dev.WaitIdle(); err != nil {
			ts.logger.Warn("wait idle before texture reload", "err", err)
		}
		old.Destroy()
	})
}

func (ts *TextureSystem) finish(path string, t *renderer.Texture, err error) {
	waiting := ts.pending[path]
	delete(ts.pending, path)
	if err != nil {
		ts.logger.Error("texture load failed", "path", path, "err", err)
	}
	for _, fn := range waiting {
		fn(t, err)
	}
}

func (ts *TextureSystem) Shutdown() error {
	for path, t := range ts.textures {
		t.Destroy()
		delete(ts.textures, path)
	}
	return nil
}
