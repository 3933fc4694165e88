package core

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendVulkan   = "vulkan"
	BackendHeadless = "headless"

	mebibyte = 1024 * 1024
)

type Config struct {
	Application ApplicationSection `toml:"application"`
	Log         LogSection         `toml:"log"`
	Renderer    RendererSection    `toml:"renderer"`
	Camera      CameraSection      `toml:"camera"`
	Scene       SceneSection       `toml:"scene"`
}

type ApplicationSection struct {
	// The application name used in windowing, if applicable.
	Name      string `toml:"name"`
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
}

type LogSection struct {
	Level string `toml:"level"`
}

type RendererSection struct {
	Backend string `toml:"backend"`
	// Sizes of the shared geometry buffers, in bytes.
	VertexBufferSize uint64 `toml:"vertex_buffer_size"`
	IndexBufferSize  uint64 `toml:"index_buffer_size"`
	// Size of the persistently mapped per-instance transform stream, in bytes.
	InstanceBufferSize uint64 `toml:"instance_buffer_size"`
	// Upper bound of indirect draw commands (distinct meshes) per frame.
	MaxDrawCommands uint32 `toml:"max_draw_commands"`
	// 1 serializes CPU and GPU on a single fence, 2 alternates halves of the
	// instance stream with one fence each.
	StreamingRegions   uint32     `toml:"streaming_regions"`
	FencePollTimeoutNs uint64     `toml:"fence_poll_timeout_ns"`
	VertexShader       string     `toml:"vertex_shader"`
	FragmentShader     string     `toml:"fragment_shader"`
	ClearColour        [4]float32 `toml:"clear_colour"`
	Validation         bool       `toml:"validation"`
	// Frame count for the headless backend; 0 runs until interrupted.
	HeadlessFrames uint64 `toml:"headless_frames"`
	// Number of unsuccessful polls before a headless fence signals.
	HeadlessLatency uint32 `toml:"headless_latency"`
}

type CameraSection struct {
	Fov            float32    `toml:"fov"`
	Near           float32    `toml:"near"`
	Far            float32    `toml:"far"`
	BaseSpeed      float32    `toml:"base_speed"`
	SpeedModifier  float32    `toml:"speed_modifier"`
	RotationSpeed  float32    `toml:"rotation_speed"`
	MouseThreshold float32    `toml:"mouse_threshold"`
	Position       [3]float32 `toml:"position"`
	// Euler angles in degrees (pitch, yaw, roll).
	Rotation [3]float32 `toml:"rotation"`
}

type SceneSection struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:      "Strata",
			StartPosX: 100,
			StartPosY: 100,
			Width:     1280,
			Height:    720,
		},
		Log: LogSection{
			Level: "info",
		},
		Renderer: RendererSection{
			Backend:            BackendVulkan,
			VertexBufferSize:   16 * mebibyte,
			IndexBufferSize:    16 * mebibyte,
			InstanceBufferSize: 4 * mebibyte,
			MaxDrawCommands:    1024,
			StreamingRegions:   1,
			FencePollTimeoutNs: 1_000_000,
			VertexShader:       "assets/shaders/instanced.vert.spv",
			FragmentShader:     "assets/shaders/instanced.frag.spv",
			ClearColour:        [4]float32{0.16, 0.2, 0.35, 1.0},
			Validation:         false,
			HeadlessFrames:     120,
			HeadlessLatency:    2,
		},
		Camera: CameraSection{
			Fov:            45.0,
			Near:           0.1,
			Far:            1000.0,
			BaseSpeed:      2.0,
			SpeedModifier:  10.0,
			RotationSpeed:  6.0,
			MouseThreshold: 0.0001,
			Position:       [3]float32{0, 0, 5},
			Rotation:       [3]float32{0, -90, 0},
		},
		Scene: SceneSection{
			Path:  "assets/scenes/demo.toml",
			Watch: true,
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Keys missing from
// the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse config %s at %d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	r := c.Renderer
	switch r.Backend {
	case BackendVulkan, BackendHeadless:
	default:
		return fmt.Errorf("renderer.backend must be %q or %q, got %q", BackendVulkan, BackendHeadless, r.Backend)
	}
	// Vertices are packed at 12 byte offsets, a trailing remainder stays unused.
	if r.VertexBufferSize < 12 {
		return fmt.Errorf("renderer.vertex_buffer_size must hold at least one 12 byte vertex, got %d", r.VertexBufferSize)
	}
	if r.IndexBufferSize == 0 || r.IndexBufferSize%4 != 0 {
		return fmt.Errorf("renderer.index_buffer_size must be a non-zero multiple of 4, got %d", r.IndexBufferSize)
	}
	if r.StreamingRegions < 1 || r.StreamingRegions > 2 {
		return fmt.Errorf("renderer.streaming_regions must be 1 or 2, got %d", r.StreamingRegions)
	}
	if r.InstanceBufferSize == 0 || r.InstanceBufferSize%(64*uint64(r.StreamingRegions)) != 0 {
		return fmt.Errorf("renderer.instance_buffer_size must be a non-zero multiple of %d, got %d", 64*r.StreamingRegions, r.InstanceBufferSize)
	}
	if r.MaxDrawCommands == 0 {
		return fmt.Errorf("renderer.max_draw_commands must be greater than zero")
	}
	if r.FencePollTimeoutNs == 0 {
		return fmt.Errorf("renderer.fence_poll_timeout_ns must be greater than zero")
	}
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("application window size must be non-zero, got %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera clip planes must satisfy 0 < near < far, got near=%f far=%f", c.Camera.Near, c.Camera.Far)
	}
	return nil
}
