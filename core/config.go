package core

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Title     string `toml:"title"`
	VSync     bool   `toml:"vsync"`
	Resizable bool   `toml:"resizable"`
}

type RenderConfig struct {
	// MaxFPS caps how often a frame is drawn. Zero draws every iteration.
	MaxFPS       int     `toml:"max_fps"`
	PostEffect   int     `toml:"post_effect"`
	PostProcess  bool    `toml:"post_process"`
	OutlineScale float32 `toml:"outline_scale"`
	// GLSLProfile is "core" or "es".
	GLSLProfile string     `toml:"glsl_profile"`
	ClearColor  [4]float32 `toml:"clear_color"`
}

type CameraConfig struct {
	Speed       float32 `toml:"speed"`
	Sensitivity float32 `toml:"sensitivity"`
	FOV         float32 `toml:"fov"`
}

// AssetsConfig paths are relative to Root unless absolute.
type AssetsConfig struct {
	Root         string `toml:"root"`
	Shaders      string `toml:"shaders"`
	Layout       string `toml:"layout"`
	WatchShaders bool   `toml:"watch_shaders"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Config is everything read from config.toml.
type Config struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	Camera CameraConfig `toml:"camera"`
	Assets AssetsConfig `toml:"assets"`
	Log    LogConfig    `toml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Width:     1280,
			Height:    720,
			Title:     "Render Demo",
			VSync:     true,
			Resizable: true,
		},
		Render: RenderConfig{
			MaxFPS:       60,
			PostProcess:  true,
			OutlineScale: 1.05,
			GLSLProfile:  "core",
			ClearColor:   [4]float32{0.1, 0.1, 0.1, 1},
		},
		Camera: CameraConfig{Speed: 2.5, Sensitivity: 0.25, FOV: 45},
		Assets: AssetsConfig{
			Root:    "assets",
			Shaders: "shaders",
			Layout:  "scene.yaml",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig overlays the file at path onto DefaultConfig. Unknown keys
// are rejected so typos do not go unnoticed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

var ErrConfig = errors.New("invalid config")

func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrConfig, c.Window.Width, c.Window.Height)
	case c.Render.MaxFPS < 0:
		return fmt.Errorf("%w: max_fps %d", ErrConfig, c.Render.MaxFPS)
	case c.Render.PostEffect < 0 || c.Render.PostEffect > 5:
		return fmt.Errorf("%w: post_effect %d", ErrConfig, c.Render.PostEffect)
	case c.Render.GLSLProfile != "core" && c.Render.GLSLProfile != "es":
		return fmt.Errorf("%w: glsl_profile %q", ErrConfig, c.Render.GLSLProfile)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Path resolves p against Root.
func (c AssetsConfig) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// DrawInterval is the minimum time between drawn frames.
func (c RenderConfig) DrawInterval() time.Duration {
	if c.MaxFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.MaxFPS)
}

func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Level))
	return l, err
}
