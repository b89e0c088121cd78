package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framegraph/engine/core"
)

const (
	BackendVulkan   = "vulkan"
	BackendHeadless = "headless"
)

type AppConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RenderConfig struct {
	FramesInFlight int     `toml:"frames_in_flight"`
	RenderScaling  float32 `toml:"render_scaling"`
	// Graph is the path of the pass graph description (.toml, .yaml or .yml).
	Graph      string `toml:"graph"`
	GraphName  string `toml:"graph_name"`
	Backend    string `toml:"backend"`
	Validation bool   `toml:"validation"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	ShaderDir string `toml:"shader_dir"`
	// Watch reloads the graph when its file changes on disk.
	Watch bool `toml:"watch"`
}

type EngineConfig struct {
	App    AppConfig    `toml:"app"`
	Render RenderConfig `toml:"render"`
	Log    LogConfig    `toml:"log"`
	Assets AssetsConfig `toml:"assets"`
}

func Default() *EngineConfig {
	return &EngineConfig{
		App: AppConfig{
			Name:   "FrameGraph Testbed",
			Width:  1280,
			Height: 720,
		},
		Render: RenderConfig{
			FramesInFlight: 2,
			RenderScaling:  1.0,
			Graph:          "assets/graph.toml",
			GraphName:      "default",
			Backend:        BackendVulkan,
		},
		Log: LogConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			ShaderDir: "assets/shaders",
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document on top of the defaults and validates it.
func Parse(data []byte) (*EngineConfig, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) Validate() error {
	if c.Render.FramesInFlight < 1 {
		return fmt.Errorf("frames_in_flight must be at least 1, got %d: %w", c.Render.FramesInFlight, core.ErrInvalidData)
	}
	if c.App.Width == 0 || c.App.Height == 0 {
		return fmt.Errorf("window size %dx%d is empty: %w", c.App.Width, c.App.Height, core.ErrInvalidData)
	}
	if c.Render.RenderScaling <= 0 {
		return fmt.Errorf("render_scaling must be positive, got %f: %w", c.Render.RenderScaling, core.ErrInvalidData)
	}
	switch c.Render.Backend {
	case BackendVulkan, BackendHeadless:
	default:
		return fmt.Errorf("unknown backend %q: %w", c.Render.Backend, core.ErrInvalidData)
	}
	return nil
}
