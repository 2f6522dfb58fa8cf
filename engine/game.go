package engine

import (
	"errors"

	"github.com/spaghettifunk/prism/engine/renderer"
)

var ErrNoDebugGUI = errors.New("engine: renderer.debug_gui is set but the game has no debug GUI")

// Game is implemented by applications driven by the engine. All methods run
// on the main thread, between frames except for Render.
type Game interface {
	// Init runs once, after the renderer and the render pass exist.
	Init(e *Engine) error
	// Update advances the game by dt seconds.
	Update(e *Engine, dt float64) error
	// Camera is the camera the next frame is drawn with.
	Camera() renderer.Camera
	// Render issues the draws of a frame. The frame is open when it is called.
	Render(e *Engine) error
	// Shutdown releases what Init created. The device is idle.
	Shutdown(e *Engine) error
}

// DebugGUI is an immediate mode GUI that shows the scene in a viewport
// widget.
type DebugGUI interface {
	renderer.DebugGUI
	// SceneViewport declares the widget showing scene and returns the size
	// of its region in pixels. A zero size leaves the scene target as is.
	SceneViewport(scene *renderer.Texture) (width, height int)
}

// DebugGUIGame is a Game with a debug GUI, used when renderer.debug_gui is
// set. Its GUI is fetched after Init.
type DebugGUIGame interface {
	Game
	DebugGUI() DebugGUI
	// DeclareGUI declares the game's own widgets. The GUI frame is open.
	DeclareGUI(e *Engine)
}
