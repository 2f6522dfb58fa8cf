package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	_ "github.com/spaghettifunk/prism/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine completed boot and the game was initialized
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything
	EngineStageStopped
)

type Engine struct {
	cfg    core.Config
	logger *log.Logger
	game   Game
	stage  Stage

	events   *core.EventBus
	input    *core.Input
	viewport platform.Viewport
	gpu      driver.GPU
	device   *renderer.GraphicsDevice
	renderer *renderer.Renderer
	pass     *renderer.RenderPass
	fb       *renderer.Framebuffer

	// With a debug GUI the game draws into the scene target and the GUI
	// draws on the swapchain pass above.
	gui         DebugGUI
	scenePass   *renderer.RenderPass
	sceneFB     *renderer.Framebuffer
	sceneTarget *renderer.Texture

	assets  *assets.Manager
	shaders *assets.ShaderCache

	clock     *core.Clock
	metrics   *core.Metrics
	frames    uint64
	quit      bool
	suspended bool
}

/**
 * @brief Creates the engine: logger, viewport, GPU, graphics device,
 * renderer and the swapchain render pass. The game is initialized last.
 * @param cfg The engine configuration.
 * @param game The game to drive.
 * @return The engine, or an error when any part could not be created.
 */
func New(cfg core.Config, game Game) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := core.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		game:    game,
		events:  core.NewEventBus(),
		clock:   core.NewClock(),
		metrics: core.NewMetrics(),
	}
	e.input = core.NewInput(e.events)

	if err := e.boot(); err != nil {
		e.logger.Error("engine boot failed", "err", err)
		e.release()
		return nil, err
	}

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.viewport.OnResize(e.onResize)
	e.renderer.Scheduler().OnFrameFinished(e.onFrameFinished)

	if err := game.Init(e); err != nil {
		e.logger.Error("game init failed", "err", err)
		e.release()
		return nil, err
	}
	if e.sceneFB != nil {
		if e.gui = game.(DebugGUIGame).DebugGUI(); e.gui == nil {
			e.logger.Error("game returned no debug GUI")
			if err := game.Shutdown(e); err != nil {
				e.logger.Warn("game shutdown", "err", err)
			}
			e.release()
			return nil, ErrNoDebugGUI
		}
	}
	e.stage = EngineStageInitialized
	return e, nil
}

func (e *Engine) boot() error {
	if _, err := driver.Lookup(e.cfg.Renderer.Backend); err != nil {
		return err
	}
	var err error
	if e.cfg.Renderer.Backend == headless.Name {
		e.viewport = platform.NewHeadlessViewport(e.cfg.Window.Width, e.cfg.Window.Height)
	} else {
		if e.viewport, err = platform.NewWindow(e.logger, e.cfg.Window, e.input); err != nil {
			return err
		}
	}

	e.gpu, err = driver.Open(e.cfg.Renderer.Backend, driver.Options{
		AppName:    e.cfg.Engine.Name,
		Surface:    e.viewport,
		Validation: e.cfg.Renderer.Validation,
		Logger:     e.logger.WithPrefix(e.cfg.Renderer.Backend),
	})
	if err != nil {
		return fmt.Errorf("opening %s driver: %w", e.cfg.Renderer.Backend, err)
	}
	e.device, err = renderer.NewGraphicsDevice(e.logger, e.gpu, e.viewport, renderer.DeviceConfig{
		FramesInFlight: e.cfg.Renderer.FramesInFlight,
		VSync:          e.cfg.Renderer.VSync,
	})
	if err != nil {
		return err
	}
	e.renderer, err = renderer.NewRenderer(e.logger, e.device, renderer.RendererConfig{
		FenceTimeout: time.Duration(e.cfg.Renderer.FenceTimeout),
	})
	if err != nil {
		return err
	}
	e.pass, err = renderer.NewRenderPass(e.device, renderer.RenderPassConfig{Target: renderer.TargetSwapchain, Depth: true})
	if err != nil {
		return err
	}
	if e.fb, err = renderer.NewFramebuffer(e.device, e.pass, nil); err != nil {
		return err
	}
	if e.cfg.Renderer.DebugGUI {
		if err := e.bootSceneTarget(); err != nil {
			return err
		}
	}

	e.shaders = assets.NewShaderCache(e.logger, e.cfg.Assets.ShaderCache, e.cfg.Assets.ShaderCompiler)
	if e.cfg.Assets.Watch {
		if e.assets, err = assets.NewManager(e.logger, e.cfg.Assets.Dir); err != nil {
			return err
		}
	}
	return nil
}

// bootSceneTarget creates the offscreen pass the game draws into when the
// debug GUI hosts the scene.
func (e *Engine) bootSceneTarget() error {
	if _, ok := e.game.(DebugGUIGame); !ok {
		return ErrNoDebugGUI
	}
	var err error
	if e.sceneTarget, err = renderer.NewTexture(e.device, e.viewport.Width(), e.viewport.Height(), nil); err != nil {
		return fmt.Errorf("creating scene texture: %w", err)
	}
	if e.scenePass, err = renderer.NewRenderPass(e.device, renderer.RenderPassConfig{Target: renderer.TargetTexture, Depth: true}); err != nil {
		return err
	}
	if e.sceneFB, err = renderer.NewFramebuffer(e.device, e.scenePass, e.sceneTarget); err != nil {
		return err
	}
	e.logger.Info("debug GUI enabled, scene renders offscreen", "width", e.sceneTarget.Width(), "height", e.sceneTarget.Height())
	return nil
}

/**
 * @brief Runs the frame loop until ctx is done, the viewport closes, a quit
 * event fires or the configured frame limit is reached. Shuts down before
 * returning.
 */
func (e *Engine) Run(ctx context.Context) (err error) {
	if e.stage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %d", e.stage)
	}
	e.stage = EngineStageRunning
	defer func() { err = errors.Join(err, e.Shutdown()) }()

	e.clock.Start()
	for !e.quit {
		if ctx.Err() != nil {
			e.logger.Info("context done, shutting down", "cause", context.Cause(ctx))
			return nil
		}
		e.viewport.PollEvents()
		if !e.viewport.IsOpen() {
			return nil
		}
		if e.suspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		dt := e.clock.Tick()
		start := time.Now()
		if err := e.frame(dt); err != nil {
			e.logger.Error("frame failed, shutting down", "frame", e.frames, "err", err)
			return err
		}
		e.metrics.Update(time.Since(start).Seconds())
		// Input state is copied last so this frame saw every event.
		e.input.Update()

		e.frames++
		if limit := e.cfg.Engine.MaxFrames; limit > 0 && e.frames >= limit {
			e.logger.Info("frame limit reached", "frames", e.frames)
			return nil
		}
	}
	return nil
}

func (e *Engine) frame(dt float64) error {
	if err := e.game.Update(e, dt); err != nil {
		return fmt.Errorf("game update: %w", err)
	}
	if e.gui != nil {
		if err := e.declareGUI(); err != nil {
			return err
		}
	}
	if err := e.renderer.BeginFrame(e.Framebuffer(), e.RenderPass(), e.game.Camera()); err != nil {
		return err
	}
	renderErr := e.game.Render(e)
	if err := e.renderer.EndFrame(); err != nil {
		return errors.Join(renderErr, err)
	}
	if renderErr != nil {
		return fmt.Errorf("game render: %w", renderErr)
	}
	if e.gui == nil {
		return nil
	}
	return e.drawGUI()
}

// declareGUI runs the widget declarations of a frame and fits the scene
// target to the viewport widget.
func (e *Engine) declareGUI() error {
	e.gui.BeginFrame()
	width, height := e.gui.SceneViewport(e.sceneTarget)
	e.game.(DebugGUIGame).DeclareGUI(e)
	e.gui.EndFrame()

	if width <= 0 || height <= 0 {
		return nil
	}
	if size := e.sceneFB.Extent(); size.Width == width && size.Height == height {
		return nil
	}
	e.logger.Debug("scene viewport resized", "width", width, "height", height)
	if err := e.sceneFB.OnResize(width, height); err != nil {
		return fmt.Errorf("resizing scene target: %w", err)
	}
	e.fireResized(width, height)
	return nil
}

func (e *Engine) drawGUI() error {
	if err := e.renderer.BeginDebugGuiFrame(e.fb, e.pass); err != nil {
		return err
	}
	guiErr := e.renderer.DrawDebugGui(e.gui)
	if err := e.renderer.EndDebugGuiFrame(); err != nil {
		return errors.Join(guiErr, err)
	}
	if guiErr != nil {
		return fmt.Errorf("debug gui: %w", guiErr)
	}
	return nil
}

// Shutdown waits for the GPU and releases everything in reverse creation
// order. It is safe to call more than once.
func (e *Engine) Shutdown() error {
	if e.stage == EngineStageStopped || e.stage == EngineStageShuttingDown {
		return nil
	}
	e.stage = EngineStageShuttingDown
	var err error
	if e.device != nil {
		if werr := e.device.WaitIdle(); werr != nil {
			e.logger.Warn("wait idle before shutdown", "err", werr)
		}
	}
	if e.game != nil {
		err = e.game.Shutdown(e)
	}
	e.release()
	e.clock.Stop()
	e.logger.Info("engine stopped", "frames", e.frames, "fps", e.metrics.FPS())
	return err
}

func (e *Engine) release() {
	if e.assets != nil {
		if err := e.assets.Close(); err != nil {
			e.logger.Warn("closing asset watcher", "err", err)
		}
	}
	if e.sceneFB != nil {
		e.sceneFB.Destroy()
	}
	if e.scenePass != nil {
		e.scenePass.Destroy()
	}
	if e.sceneTarget != nil {
		e.sceneTarget.Destroy()
	}
	if e.fb != nil {
		e.fb.Destroy()
	}
	if e.pass != nil {
		e.pass.Destroy()
	}
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.gpu != nil {
		e.gpu.Driver().Close()
	}
	if e.viewport != nil {
		e.viewport.Close()
	}
	e.stage = EngineStageStopped
}

func (e *Engine) onQuit(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	e.logger.Info("quit requested")
	e.quit = true
	return true
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		// Firing to ourselves, other listeners may care too.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResize(width, height int) {
	if width == 0 || height == 0 {
		if !e.suspended {
			e.logger.Info("window minimized, suspending")
		}
		e.suspended = true
		return
	}
	if e.suspended {
		e.logger.Info("window restored, resuming")
		e.suspended = false
	}
	if err := e.device.OnResize(width, height); err != nil {
		e.logger.Error("swapchain resize failed", "width", width, "height", height, "err", err)
	}
	// The scene target follows the GUI viewport instead.
	if e.sceneFB == nil {
		e.fireResized(width, height)
	}
}

// fireResized reports the size of the target the game draws into.
func (e *Engine) fireResized(width, height int) {
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	e.events.Fire(core.EVENT_CODE_RESIZED, e, ctx)
}

func (e *Engine) onFrameFinished(frame int) {
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(frame)
	e.events.Fire(core.EVENT_CODE_FRAME_FINISHED, e, ctx)
}

func (e *Engine) Config() core.Config { return e.cfg }
func (e *Engine) Logger() *log.Logger { return e.logger }
func (e *Engine) Events() *core.EventBus { return e.events }
func (e *Engine) Input() *core.Input { return e.input }
func (e *Engine) Viewport() platform.Viewport { return e.viewport }
func (e *Engine) Device() *renderer.GraphicsDevice { return e.device }
func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }
// RenderPass is the pass the game draws with: the scene pass when the debug
// GUI is on, else the swapchain pass.
func (e *Engine) RenderPass() *renderer.RenderPass {
	if e.scenePass != nil {
		return e.scenePass
	}
	return e.pass
}

// Framebuffer is the target the game draws into.
func (e *Engine) Framebuffer() *renderer.Framebuffer {
	if e.sceneFB != nil {
		return e.sceneFB
	}
	return e.fb
}

func (e *Engine) SwapchainPass() *renderer.RenderPass { return e.pass }
func (e *Engine) SwapchainFramebuffer() *renderer.Framebuffer { return e.fb }

// SceneTexture is the offscreen scene target, nil without a debug GUI.
func (e *Engine) SceneTexture() *renderer.Texture { return e.sceneTarget }
func (e *Engine) Shaders() *assets.ShaderCache { return e.shaders }
func (e *Engine) Metrics() *core.Metrics { return e.metrics }
func (e *Engine) Frames() uint64 { return e.frames }
func (e *Engine) Stage() Stage { return e.stage }

// Assets is the asset watcher, nil unless assets.watch is set.
func (e *Engine) Assets() *assets.Manager { return e.assets }
