package testbed

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

const (
	spinSpeed float32 = 0.5
	lookSpeed float32 = 1.5
)

const cubeTexture = "textures/crate.png"

// Shaders names the SPIR-V (or GLSL source) files of the testbed pipelines,
// relative to the asset directory.
type Shaders struct {
	MeshVertex, MeshFragment   string
	DebugVertex, DebugFragment string
}

var DefaultShaders = Shaders{
	MeshVertex:    "shaders/mesh.vert",
	MeshFragment:  "shaders/mesh.frag",
	DebugVertex:   "shaders/debug.vert",
	DebugFragment: "shaders/debug.frag",
}

// Game spins a textured cube in front of a free-fly camera and draws an
// axis gizmo at the origin.
type Game struct {
	logger  *log.Logger
	shaders Shaders
	dir     string

	reg     *scene.Registry
	systems *systems.SystemManager
	free    *components.FreeFlyCamera
	cube    *renderer.Mesh
	entity  scene.Entity
	gizmo   []renderer.DebugVertex
}

func NewGame(shaders Shaders) *Game {
	return &Game{shaders: shaders}
}

func (g *Game) Init(e *engine.Engine) error {
	g.logger = e.Logger().WithPrefix("testbed")
	g.dir = e.Config().Assets.Dir
	r := e.Renderer()

	vert, frag, err := g.loadShaders(e, g.shaders.MeshVertex, g.shaders.MeshFragment)
	if err != nil {
		return err
	}
	pipeline, err := r.CreatePipeline(e.RenderPass(), vert, frag)
	if err != nil {
		return err
	}
	if vert, frag, err = g.loadShaders(e, g.shaders.DebugVertex, g.shaders.DebugFragment); err != nil {
		return err
	}
	if err := r.CreateDebugPipelines(e.RenderPass(), vert, frag); err != nil {
		return err
	}

	vp := e.Viewport()
	g.systems, err = systems.NewSystemManager(g.logger, r, pipeline, systems.SystemManagerConfig{
		Workers:   2,
		QueueSize: 16,
		Width:     vp.Width(),
		Height:    vp.Height(),
	})
	if err != nil {
		return err
	}
	e.Events().Register(core.EVENT_CODE_RESIZED, g, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		g.systems.Cameras.OnResize(int(data.Data.U32[0]), int(data.Data.U32[1]))
		return false
	})

	data := assets.Cube()
	if g.cube, err = renderer.NewMesh(e.Device(), data.Layout(), data.VertexBytes(), data.Indices); err != nil {
		return err
	}

	g.reg = scene.NewRegistry()
	g.free = components.NewFreeFlyCamera(math.NewVec3(0, 1, 4))
	g.free.Pitch = -0.2
	g.entity = g.reg.NewEntity()
	scene.Add(g.reg, g.entity, components.NewTransformComponent())
	scene.Add(g.reg, g.entity, components.MeshRendererComponent{Mesh: g.cube})

	texPath := filepath.Join(g.dir, cubeTexture)
	if _, err := os.Stat(texPath); err == nil {
		g.systems.Textures.Load(texPath, g.setCubeTexture)
	}

	g.gizmo = axisGizmo(1)
	g.logger.Info("testbed ready", "entities", g.reg.Len())
	return nil
}

func (g *Game) setCubeTexture(t *renderer.Texture, err error) {
	if err != nil {
		return
	}
	if m, ok := scene.Get[components.MeshRendererComponent](g.reg, g.entity); ok {
		m.Texture = t
	}
}

func (g *Game) loadShaders(e *engine.Engine, vertex, fragment string) ([]byte, []byte, error) {
	vert, err := e.Shaders().Load(filepath.Join(g.dir, vertex))
	if err != nil {
		return nil, nil, err
	}
	frag, err := e.Shaders().Load(filepath.Join(g.dir, fragment))
	if err != nil {
		return nil, nil, err
	}
	return vert, frag, nil
}

func (g *Game) Update(e *engine.Engine, dt float64) error {
	in := e.Input()
	step := float32(dt)

	var forward, right, up float32
	if in.IsKeyDown(core.KEY_W) {
		forward++
	}
	if in.IsKeyDown(core.KEY_S) {
		forward--
	}
	if in.IsKeyDown(core.KEY_D) {
		right++
	}
	if in.IsKeyDown(core.KEY_A) {
		right--
	}
	if in.IsKeyDown(core.KEY_E) || in.IsKeyDown(core.KEY_SPACE) {
		up++
	}
	if in.IsKeyDown(core.KEY_Q) {
		up--
	}
	g.free.Move(forward, right, up, step)

	var yaw, pitch float32
	if in.IsKeyDown(core.KEY_LEFT) {
		yaw--
	}
	if in.IsKeyDown(core.KEY_RIGHT) {
		yaw++
	}
	if in.IsKeyDown(core.KEY_UP) {
		pitch++
	}
	if in.IsKeyDown(core.KEY_DOWN) {
		pitch--
	}
	g.free.Rotate(yaw*lookSpeed*step, pitch*lookSpeed*step)

	if t, ok := scene.Get[components.TransformComponent](g.reg, g.entity); ok {
		spin := math.NewQuatFromAxisAngle(math.NewVec3Up(), spinSpeed*step, true)
		t.Rotation = t.Rotation.Mul(spin).Normalize()
	}

	g.watchAssets(e.Assets())
	g.systems.Update(g.reg, g.free)
	return nil
}

// watchAssets reloads textures that changed on disk.
func (g *Game) watchAssets(m *assets.Manager) {
	if m == nil {
		return
	}
	for {
		select {
		case ev := <-m.Events():
			if ev.Asset.Kind == assets.KindImage && ev.Op == assets.OpModified {
				g.systems.Textures.Reload(ev.Asset.Path, g.setCubeTexture)
			}
		default:
			return
		}
	}
}

func (g *Game) Camera() renderer.Camera {
	return g.systems.Cameras.Resolve(g.reg, g.free)
}

func (g *Game) Render(e *engine.Engine) error {
	if err := g.systems.Render.Render(g.reg); err != nil {
		return err
	}
	return e.Renderer().DrawDebugLines(g.gizmo)
}

func (g *Game) Shutdown(e *engine.Engine) error {
	var err error
	if g.systems != nil {
		err = g.systems.Shutdown()
	}
	if g.cube != nil {
		g.cube.Destroy()
	}
	return err
}

// axisGizmo is three lines of the given length along +X (red), +Y (green)
// and +Z (blue).
func axisGizmo(length float32) []renderer.DebugVertex {
	origin := math.NewVec3Zero()
	red := math.NewVec4(1, 0, 0, 1)
	green := math.NewVec4(0, 1, 0, 1)
	blue := math.NewVec4(0, 0, 1, 1)
	return []renderer.DebugVertex{
		{Position: origin, Color: red}, {Position: math.NewVec3(length, 0, 0), Color: red},
		{Position: origin, Color: green}, {Position: math.NewVec3(0, length, 0), Color: green},
		{Position: origin, Color: blue}, {Position: math.NewVec3(0, 0, length), Color: blue},
	}
}
