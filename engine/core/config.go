package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that reads and writes as a string such as "2s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type EngineConfig struct {
	Name string `toml:"name"`
	// MaxFrames stops the run loop after that many frames. 0 means unbounded.
	MaxFrames uint64 `toml:"max_frames"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	Backend        string   `toml:"backend"`
	FramesInFlight int      `toml:"frames_in_flight"`
	VSync          bool     `toml:"vsync"`
	Validation     bool     `toml:"validation"`
	FenceTimeout   Duration `toml:"fence_timeout"`
	// DebugGUI renders the scene into a texture hosted by the game's debug
	// GUI, which is what reaches the swapchain.
	DebugGUI bool `toml:"debug_gui"`
}

type AssetsConfig struct {
	Dir            string `toml:"dir"`
	ShaderCache    string `toml:"shader_cache"`
	ShaderCompiler string `toml:"shader_compiler"`
	Watch          bool   `toml:"watch"`
}

// Config is the full engine configuration, usually read from prism.toml.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Name: "prism",
		},
		Window: WindowConfig{
			Title:  "Prism",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:        "vulkan",
			FramesInFlight: 2,
			FenceTimeout:   Duration(2 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Caller: true,
		},
		Assets: AssetsConfig{
			Dir:            "assets",
			ShaderCache:    "assets/.cache/shaders",
			ShaderCompiler: "glslc",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. A missing file is not
// an error: the defaults are returned as-is.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML on top of DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if c.Renderer.FramesInFlight < 2 || c.Renderer.FramesInFlight > 3 {
		problems = append(problems, fmt.Sprintf("renderer.frames_in_flight must be 2 or 3, got %d", c.Renderer.FramesInFlight))
	}
	if c.Renderer.Backend == "" {
		problems = append(problems, "renderer.backend is empty")
	}
	if c.Renderer.FenceTimeout <= 0 {
		problems = append(problems, "renderer.fence_timeout must be positive")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		problems = append(problems, fmt.Sprintf("window size %dx%d is invalid", c.Window.Width, c.Window.Height))
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			problems = append(problems, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Marshal renders the configuration back to TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
