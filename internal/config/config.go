// Package config loads curlcount settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/curlcount/internal/capture"
	"github.com/ayusman/curlcount/internal/counter"
	"github.com/ayusman/curlcount/internal/geometry"
)

// Frame sources.
const (
	// SourceCamera reads the local camera and runs the pose service.
	SourceCamera = "camera"
	// SourceRemote accepts landmark frames pushed by a client.
	SourceRemote = "remote"
)

const (
	DefaultAddr    = ":8080"
	DefaultDirName = ".curlcount"
	DBFileName     = "curlcount.db"
	HooksDirName   = "hooks"

	DefaultHookTimeoutMS = 2000
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Server struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type Camera struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type Counter struct {
	LowThreshold  float64       `yaml:"low_threshold"`
	HighThreshold float64       `yaml:"high_threshold"`
	AngleMode     geometry.Mode `yaml:"angle_mode"`
	MinVisibility float64       `yaml:"min_visibility"`
}

// Thresholds returns the hysteresis pair.
func (c Counter) Thresholds() counter.Thresholds {
	return counter.Thresholds{Low: c.LowThreshold, High: c.HighThreshold}
}

// Hooks configures the external programs run on session events.
type Hooks struct {
	// Dir defaults to <data_dir>/hooks.
	Dir       string `yaml:"dir"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Config is the root configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Camera  Camera  `yaml:"camera"`
	Counter Counter `yaml:"counter"`
	Hooks   Hooks   `yaml:"hooks"`
	Source  string  `yaml:"source"`
	DataDir string  `yaml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{Addr: DefaultAddr},
		Camera: Camera{
			Device: 0,
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
			FPS:    capture.DefaultFPS,
		},
		Counter: Counter{
			LowThreshold:  counter.DefaultLowThreshold,
			HighThreshold: counter.DefaultHighThreshold,
			AngleMode:     geometry.Mode2D,
		},
		Hooks:   Hooks{TimeoutMS: DefaultHookTimeoutMS},
		Source:  SourceCamera,
		DataDir: DefaultDataDir(),
	}
}

// DefaultDataDir returns ~/.curlcount, or .curlcount if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Counter.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: counter: %v", ErrInvalid, err)
	}
	if !c.Counter.AngleMode.Valid() {
		return fmt.Errorf("%w: counter.angle_mode %q", ErrInvalid, c.Counter.AngleMode)
	}
	if c.Counter.MinVisibility < 0 || c.Counter.MinVisibility > 1 {
		return fmt.Errorf("%w: counter.min_visibility %v not in [0, 1]", ErrInvalid, c.Counter.MinVisibility)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("%w: camera size %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("%w: camera.fps %d", ErrInvalid, c.Camera.FPS)
	}
	if c.Source != SourceCamera && c.Source != SourceRemote {
		return fmt.Errorf("%w: source %q", ErrInvalid, c.Source)
	}
	if c.Hooks.TimeoutMS <= 0 {
		return fmt.Errorf("%w: hooks.timeout_ms %d", ErrInvalid, c.Hooks.TimeoutMS)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	return nil
}

// CaptureOptions converts the camera section.
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{
		DeviceID: c.Camera.Device,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		FPS:      c.Camera.FPS,
	}
}

// DBPath is the SQLite file inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFileName)
}

// HooksDir is Hooks.Dir, or the hooks directory inside DataDir.
func (c *Config) HooksDir() string {
	if c.Hooks.Dir != "" {
		return c.Hooks.Dir
	}
	return filepath.Join(c.DataDir, HooksDirName)
}

// HookTimeout converts Hooks.TimeoutMS.
func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.Hooks.TimeoutMS) * time.Millisecond
}
