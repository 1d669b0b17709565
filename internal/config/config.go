// Package config loads the spineview configuration with viper: defaults,
// an optional YAML file and SPINEVIEW_ environment overrides. The file is
// watched so running characters can follow edits.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SPINEVIEW_LOGGING_LEVEL.
const EnvPrefix = "SPINEVIEW"

type Config struct {
	Window     WindowConfig      `mapstructure:"window" yaml:"window"`
	Assets     AssetsConfig      `mapstructure:"assets" yaml:"assets"`
	Timings    TimingConfig      `mapstructure:"timings" yaml:"timings"`
	Control    ControlConfig     `mapstructure:"control" yaml:"control"`
	Logging    LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Playing    bool              `mapstructure:"playing" yaml:"playing"`
	Characters []CharacterConfig `mapstructure:"characters" yaml:"characters"`
}

type WindowConfig struct {
	Title  string `mapstructure:"title" yaml:"title"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
	// DeviceScale overrides the monitor scale factor when positive.
	DeviceScale float64 `mapstructure:"device_scale" yaml:"device_scale"`
}

type AssetsConfig struct {
	// Root is the directory relative asset paths are resolved against.
	Root string `mapstructure:"root" yaml:"root"`
}

// TimingConfig holds the session timings in milliseconds.
type TimingConfig struct {
	PollIntervalMs      int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	ReadyTimeoutMs      int `mapstructure:"ready_timeout_ms" yaml:"ready_timeout_ms"`
	LoopStartDelayMs    int `mapstructure:"loop_start_delay_ms" yaml:"loop_start_delay_ms"`
	SwitchSettleMs      int `mapstructure:"switch_settle_ms" yaml:"switch_settle_ms"`
	RescheduleBackoffMs int `mapstructure:"reschedule_backoff_ms" yaml:"reschedule_backoff_ms"`
	StartStaggerMs      int `mapstructure:"start_stagger_ms" yaml:"start_stagger_ms"`
}

func (t TimingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

func (t TimingConfig) ReadyTimeout() time.Duration {
	return time.Duration(t.ReadyTimeoutMs) * time.Millisecond
}

func (t TimingConfig) LoopStartDelay() time.Duration {
	return time.Duration(t.LoopStartDelayMs) * time.Millisecond
}

func (t TimingConfig) SwitchSettle() time.Duration {
	return time.Duration(t.SwitchSettleMs) * time.Millisecond
}

func (t TimingConfig) RescheduleBackoff() time.Duration {
	return time.Duration(t.RescheduleBackoffMs) * time.Millisecond
}

func (t TimingConfig) StartStagger() time.Duration {
	return time.Duration(t.StartStaggerMs) * time.Millisecond
}

type ControlConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	File      string `mapstructure:"file" yaml:"file,omitempty"`
	FeedLimit int    `mapstructure:"feed_limit" yaml:"feed_limit"`
}

type CharacterConfig struct {
	ID       string  `mapstructure:"id" yaml:"id"`
	Atlas    string  `mapstructure:"atlas" yaml:"atlas"`
	Skeleton string  `mapstructure:"skeleton" yaml:"skeleton"`
	Scale    float64 `mapstructure:"scale" yaml:"scale"`
	// Position places the skeleton root inside the canvas. Nil means the
	// default anchor at the bottom center.
	Position *Position `mapstructure:"position" yaml:"position,omitempty"`
	Canvas   Rect      `mapstructure:"canvas" yaml:"canvas"`
}

type Position struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
}

type Rect struct {
	X      int `mapstructure:"x" yaml:"x"`
	Y      int `mapstructure:"y" yaml:"y"`
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// Default returns the built-in configuration. It has no characters.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "spineview",
			Width:  1280,
			Height: 720,
		},
		Assets: AssetsConfig{Root: "assets"},
		Timings: TimingConfig{
			PollIntervalMs:      200,
			ReadyTimeoutMs:      15000,
			LoopStartDelayMs:    100,
			SwitchSettleMs:      200,
			RescheduleBackoffMs: 1000,
			StartStaggerMs:      300,
		},
		Control: ControlConfig{Addr: "127.0.0.1:7420"},
		Logging: LoggingConfig{Level: "info", FeedLimit: 500},
		Playing: true,
	}
}

// Example is the configuration written by `spineview init`.
func Example() *Config {
	cfg := Default()
	cfg.Characters = []CharacterConfig{
		{
			ID:       "hero",
			Atlas:    "hero/hero.atlas",
			Skeleton: "hero/hero.skel",
			Scale:    0.5,
			Canvas:   Rect{X: 0, Y: 0, Width: 640, Height: 720},
		},
		{
			ID:       "villain",
			Atlas:    "villain/villain.atlas",
			Skeleton: "villain/villain.skel",
			Scale:    0.5,
			Position: &Position{X: 320, Y: 600},
			Canvas:   Rect{X: 640, Y: 0, Width: 640, Height: 720},
		},
	}
	return cfg
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("window.title", defaults.Window.Title)
	v.SetDefault("window.width", defaults.Window.Width)
	v.SetDefault("window.height", defaults.Window.Height)
	v.SetDefault("window.device_scale", defaults.Window.DeviceScale)

	v.SetDefault("assets.root", defaults.Assets.Root)

	v.SetDefault("timings.poll_interval_ms", defaults.Timings.PollIntervalMs)
	v.SetDefault("timings.ready_timeout_ms", defaults.Timings.ReadyTimeoutMs)
	v.SetDefault("timings.loop_start_delay_ms", defaults.Timings.LoopStartDelayMs)
	v.SetDefault("timings.switch_settle_ms", defaults.Timings.SwitchSettleMs)
	v.SetDefault("timings.reschedule_backoff_ms", defaults.Timings.RescheduleBackoffMs)
	v.SetDefault("timings.start_stagger_ms", defaults.Timings.StartStaggerMs)

	v.SetDefault("control.enabled", defaults.Control.Enabled)
	v.SetDefault("control.addr", defaults.Control.Addr)
	v.SetDefault("control.allowed_origins", defaults.Control.AllowedOrigins)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.feed_limit", defaults.Logging.FeedLimit)

	v.SetDefault("playing", defaults.Playing)
}

// NewViper prepares a viper instance with defaults and environment
// overrides and reads the config file. An explicit file must exist; without
// one, spineview.yaml is searched in the config dir and the working
// directory and may be absent.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("spineview")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Watch reloads the configuration whenever the file changes. onChange gets
// every valid reload, onError every rejected one.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", event.Name, err))
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ConfigDir is $XDG_CONFIG_HOME/spineview or ~/.config/spineview.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spineview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spineview"
	}
	return filepath.Join(home, ".config", "spineview")
}

// ConfigFile is the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "spineview.yaml")
}

// FindCharacter returns the character with id, or nil.
func (c *Config) FindCharacter(id string) *CharacterConfig {
	for i := range c.Characters {
		if c.Characters[i].ID == id {
			return &c.Characters[i]
		}
	}
	return nil
}
