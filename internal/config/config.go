// Package config loads go-tello settings from defaults, a config file,
// TELLO_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default drone network settings (Tello SDK 2.0).
const (
	DefaultDroneAddr = "192.168.10.1:8889"
	DefaultLocalPort = 8889
	DefaultStatePort = 8890
	DefaultVideoPort = 11111
	DefaultGobotPort = "8888"
	DefaultWebPort   = "8080"
)

// Backend names accepted by drone.backend.
const (
	BackendSDK   = "sdk"
	BackendGobot = "gobot"
)

// Config is the fully resolved application configuration.
type Config struct {
	Drone    DroneConfig    `mapstructure:"drone"`
	Video    VideoConfig    `mapstructure:"video"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Web      WebConfig      `mapstructure:"web"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`
}

// DroneConfig selects and addresses the drone SDK backend.
type DroneConfig struct {
	Backend   string        `mapstructure:"backend"`
	Addr      string        `mapstructure:"addr"`
	LocalPort int           `mapstructure:"local_port"`
	StatePort int           `mapstructure:"state_port"`
	VideoPort int           `mapstructure:"video_port"`
	GobotPort string        `mapstructure:"gobot_port"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Distance  int           `mapstructure:"distance"` // cm per directional command
}

// VideoConfig controls H.264 decoding.
type VideoConfig struct {
	FFmpeg string `mapstructure:"ffmpeg"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// StreamConfig controls JPEG encoding of the outgoing stream.
type StreamConfig struct {
	Encoder string  `mapstructure:"encoder"` // std or gocv
	Quality int     `mapstructure:"quality"`
	MaxFPS  float64 `mapstructure:"max_fps"` // 0 = unthrottled
	Width   int     `mapstructure:"width"`   // 0 = native
}

// WebConfig controls the HTTP server.
type WebConfig struct {
	Port string `mapstructure:"port"`
}

// SnapshotConfig controls saved pictures.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"` // empty disables POST /api/picture
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// New returns a viper instance with defaults, env binding and the config
// file search path applied. A missing config file is not an error.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("TELLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("tello")
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.tello", "/etc/tello"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("drone.backend", BackendSDK)
	v.SetDefault("drone.addr", DefaultDroneAddr)
	v.SetDefault("drone.local_port", DefaultLocalPort)
	v.SetDefault("drone.state_port", DefaultStatePort)
	v.SetDefault("drone.video_port", DefaultVideoPort)
	v.SetDefault("drone.gobot_port", DefaultGobotPort)
	v.SetDefault("drone.timeout", 7*time.Second)
	v.SetDefault("drone.distance", 30)

	v.SetDefault("video.ffmpeg", "ffmpeg")
	v.SetDefault("video.width", 960)
	v.SetDefault("video.height", 720)

	v.SetDefault("stream.encoder", "std")
	v.SetDefault("stream.quality", 80)
	v.SetDefault("stream.max_fps", 0.0)
	v.SetDefault("stream.width", 0)

	v.SetDefault("web.port", DefaultWebPort)

	v.SetDefault("snapshot.dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	switch c.Drone.Backend {
	case BackendSDK, BackendGobot:
	default:
		errs = append(errs, "drone.backend must be sdk or gobot")
	}
	if c.Drone.Addr == "" {
		errs = append(errs, "drone.addr is required")
	}
	if c.Drone.Timeout <= 0 {
		errs = append(errs, "drone.timeout must be positive")
	}
	if c.Drone.Distance < 20 || c.Drone.Distance > 500 {
		errs = append(errs, "drone.distance must be between 20 and 500")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		errs = append(errs, "video.width and video.height must be positive")
	}
	switch c.Stream.Encoder {
	case "std", "gocv":
	default:
		errs = append(errs, "stream.encoder must be std or gocv")
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		errs = append(errs, "stream.quality must be between 1 and 100")
	}
	if c.Stream.MaxFPS < 0 {
		errs = append(errs, "stream.max_fps must not be negative")
	}
	if c.Stream.Width < 0 {
		errs = append(errs, "stream.width must not be negative")
	}
	if c.Web.Port == "" {
		errs = append(errs, "web.port is required")
	}

	return errs
}
