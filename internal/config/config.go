package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"gopkg.in/yaml.v3"
)

const (
	MB = 1024 * 1024

	DefaultMaxFileSize     = 100 * MB
	DefaultTransferTimeout = 5 * time.Minute
	DefaultBaseURL         = "http://localhost:3000"
	DefaultWindowClass     = "floatdrop"
)

// WindowConfig configures the floating panel.
type WindowConfig struct {
	// Class is the WM_CLASS used to find the floating window on X11.
	Class  string        `yaml:"class"`
	Normal geometry.Size `yaml:"normal"`
	Mini   geometry.Size `yaml:"mini"`
	// Margin is the inset from the work-area corner used for placement.
	Margin        int      `yaml:"margin"`
	SnapThreshold int      `yaml:"snap_threshold"`
	AutoHideDelay Duration `yaml:"auto_hide_delay"`
	ActiveOpacity float64  `yaml:"active_opacity"`
	FadedOpacity  float64  `yaml:"faded_opacity"`
	AlwaysOnTop   bool     `yaml:"always_on_top"`
	// SmartPosition places the window in the first corner not covered by
	// another window at startup.
	SmartPosition bool `yaml:"smart_position"`
}

// TransferConfig configures the relay client.
type TransferConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size"`
	Timeout     Duration `yaml:"timeout"`
}

// ScratchConfig configures temp directories and their sweep TTLs.
type ScratchConfig struct {
	// Root overrides the scratch root (default: user cache dir).
	Root          string   `yaml:"root,omitempty"`
	DragTTL       Duration `yaml:"drag_ttl"`
	ScreenshotTTL Duration `yaml:"screenshot_ttl"`
	ShareTTL      Duration `yaml:"share_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// HotkeyConfig maps global accelerators to controller commands.
type HotkeyConfig struct {
	Capture        string `yaml:"capture"`
	ToggleMinimize string `yaml:"toggle_minimize"`
	ToggleVisible  string `yaml:"toggle_visible,omitempty"`
}

// CaptureConfig configures screenshots.
type CaptureConfig struct {
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
	// MaxWidth/MaxHeight bound the saved image; 0 keeps native size.
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File is an optional log file; empty logs to stderr.
	File string `yaml:"file,omitempty"`
}

// S3Config configures the relay's S3 blob backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// RelayConfig configures the relay server.
type RelayConfig struct {
	Listen string `yaml:"listen"`
	// PublicURL is used to build download URLs; defaults to http://<listen>.
	PublicURL string `yaml:"public_url,omitempty"`
	// Storage is "local" or "s3".
	Storage   string   `yaml:"storage"`
	LocalPath string   `yaml:"local_path,omitempty"`
	S3        S3Config `yaml:"s3,omitempty"`
	BlobTTL   Duration `yaml:"blob_ttl"`
	MaxUpload int64    `yaml:"max_upload"`
	APIKey    string   `yaml:"api_key,omitempty"`
}

// Config is the effective floatdrop configuration.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Transfer TransferConfig `yaml:"transfer"`
	Scratch  ScratchConfig  `yaml:"scratch"`
	Hotkeys  HotkeyConfig   `yaml:"hotkeys"`
	Capture  CaptureConfig  `yaml:"capture"`
	Logging  LoggingConfig  `yaml:"logging"`
	Relay    RelayConfig    `yaml:"relay"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Class:         DefaultWindowClass,
			Normal:        geometry.Size{Width: 320, Height: 480},
			Mini:          geometry.Size{Width: 60, Height: 60},
			Margin:        20,
			SnapThreshold: 20,
			AutoHideDelay: Duration(3 * time.Second),
			ActiveOpacity: 0.95,
			FadedOpacity:  0.3,
			AlwaysOnTop:   true,
		},
		Transfer: TransferConfig{
			BaseURL:     DefaultBaseURL,
			MaxFileSize: DefaultMaxFileSize,
			Timeout:     Duration(DefaultTransferTimeout),
		},
		Scratch: ScratchConfig{
			DragTTL:       Duration(time.Hour),
			ScreenshotTTL: Duration(time.Hour),
			ShareTTL:      Duration(24 * time.Hour),
			SweepInterval: Duration(10 * time.Minute),
		},
		Hotkeys: HotkeyConfig{
			Capture:        "Control-Shift-s",
			ToggleMinimize: "Control-Shift-m",
		},
		Capture: CaptureConfig{
			Format:    "png",
			Quality:   90,
			MaxWidth:  1920,
			MaxHeight: 1080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Relay: RelayConfig{
			Listen:    "127.0.0.1:3000",
			Storage:   "local",
			BlobTTL:   Duration(24 * time.Hour),
			MaxUpload: DefaultMaxFileSize,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
	}
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config as YAML to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidationError reports an invalid config value by YAML path.
type ValidationError struct {
	Path string
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Err: fmt.Errorf(format, args...)}
}

// Validate checks the config for values the daemon cannot run with.
func (c *Config) Validate() error {
	w := c.Window
	if strings.TrimSpace(w.Class) == "" {
		return invalid("window.class", "window class is required")
	}
	if w.Normal.Width <= 0 || w.Normal.Height <= 0 {
		return invalid("window.normal", "normal size must be positive")
	}
	if w.Mini.Width <= 0 || w.Mini.Height <= 0 {
		return invalid("window.mini", "mini size must be positive")
	}
	if w.Margin < 0 {
		return invalid("window.margin", "margin must be >= 0")
	}
	if w.SnapThreshold < 0 {
		return invalid("window.snap_threshold", "snap_threshold must be >= 0")
	}
	if w.AutoHideDelay < 0 {
		return invalid("window.auto_hide_delay", "auto_hide_delay must be >= 0")
	}
	if w.ActiveOpacity < 0 || w.ActiveOpacity > 1 {
		return invalid("window.active_opacity", "opacity must be within [0,1]")
	}
	if w.FadedOpacity < 0 || w.FadedOpacity > 1 {
		return invalid("window.faded_opacity", "opacity must be within [0,1]")
	}

	if strings.TrimSpace(c.Transfer.BaseURL) == "" {
		return invalid("transfer.base_url", "base_url is required")
	}
	if c.Transfer.MaxFileSize <= 0 {
		return invalid("transfer.max_file_size", "max_file_size must be positive")
	}
	if c.Transfer.Timeout <= 0 {
		return invalid("transfer.timeout", "timeout must be positive")
	}

	if c.Scratch.DragTTL <= 0 || c.Scratch.ScreenshotTTL <= 0 || c.Scratch.ShareTTL <= 0 {
		return invalid("scratch", "ttl values must be positive")
	}
	if c.Scratch.SweepInterval <= 0 {
		return invalid("scratch.sweep_interval", "sweep_interval must be positive")
	}

	switch c.Capture.Format {
	case "png", "jpg", "jpeg":
	default:
		return invalid("capture.format", "format must be one of: png, jpg")
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return invalid("capture.quality", "quality must be within [1,100]")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level", "level must be one of: debug, info, warn, error")
	}

	switch c.Relay.Storage {
	case "local":
	case "s3":
		if strings.TrimSpace(c.Relay.S3.Bucket) == "" {
			return invalid("relay.s3.bucket", "bucket is required for s3 storage")
		}
	default:
		return invalid("relay.storage", "storage must be one of: local, s3")
	}
	if c.Relay.MaxUpload <= 0 {
		return invalid("relay.max_upload", "max_upload must be positive")
	}
	if c.Relay.BlobTTL <= 0 {
		return invalid("relay.blob_ttl", "blob_ttl must be positive")
	}
	return nil
}
