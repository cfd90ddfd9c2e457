package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width. Also the size of every render target.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height. Also the size of every render target.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`

	Heaps renderer.HeapCapacities `toml:"heaps"`

	ShaderDir string `toml:"shader_dir"`
	// Scene is a glTF path or a "procedural:" shape.
	Scene      string `toml:"scene"`
	TextureDir string `toml:"texture_dir"`

	// Headless renders on the simulated device, without a window.
	Headless bool `toml:"headless"`
	// FrameLimit stops the engine after that many frames. Zero runs until quit.
	FrameLimit uint64 `toml:"frame_limit"`
	HotReload  bool   `toml:"hot_reload"`
	VSync      bool   `toml:"vsync"`
	Validation bool   `toml:"validation"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 1000,
		Name:        "Hawk",
		LogLevel:    "info",
		Heaps:       renderer.DefaultHeapCapacities(),
		ShaderDir:   "assets/shaders",
		Scene:       "procedural:sphere",
		TextureDir:  "assets/textures",
		HotReload:   true,
		VSync:       true,
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogInfo("no config at %s, using defaults", path)
		return config, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to read config %s: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	if err := toml.Unmarshal(data, config); err != nil {
		err = fmt.Errorf("failed to parse config %s: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	switch {
	case c.StartWidth == 0 || c.StartHeight == 0:
		return fmt.Errorf("window size %dx%d must be positive", c.StartWidth, c.StartHeight)
	case c.ShaderDir == "":
		return errors.New("shader_dir must be set")
	case c.Scene == "":
		return errors.New("scene must be set")
	case c.Heaps.RTV == 0 || c.Heaps.DSV == 0 || c.Heaps.CBVSRVUAV == 0:
		return fmt.Errorf("descriptor heap capacities must be positive: %+v", c.Heaps)
	}
	return nil
}

func (c *ApplicationConfig) rendererConfig() renderer.RendererConfig {
	return renderer.RendererConfig{
		Width:     c.StartWidth,
		Height:    c.StartHeight,
		ShaderDir: c.ShaderDir,
		Heaps:     c.Heaps,
		VSync:     c.VSync,
	}
}

func (c *ApplicationConfig) rendererType() renderer.RendererType {
	if c.Headless {
		return renderer.Headless
	}
	return renderer.Vulkan
}
