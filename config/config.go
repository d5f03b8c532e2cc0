// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/stream"
)

const EnvPrefix = "AUDSTREAM"

// Config holds everything the engine and the CLI read at startup.
type Config struct {
	Stream  StreamConfig  `mapstructure:"stream"`
	Output  OutputConfig  `mapstructure:"output"`
	Device  DeviceConfig  `mapstructure:"device"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StreamConfig sizes the refill scheduler and each stream's buffer ring.
type StreamConfig struct {
	BufferSize  int  `mapstructure:"buffer_size"`
	BufferCount int  `mapstructure:"buffer_count"`
	UpdateRate  int  `mapstructure:"update_rate"`
	Manual      bool `mapstructure:"manual"`
}

// OutputConfig picks the sink that drains the software device.
type OutputConfig struct {
	Backend    string        `mapstructure:"backend"` // oto, malgo or wav
	SampleRate int           `mapstructure:"sample_rate"`
	Channels   int           `mapstructure:"channels"`
	Latency    time.Duration `mapstructure:"latency"`
}

// DeviceConfig sets what happens to failed device calls.
type DeviceConfig struct {
	ErrorPolicy []string `mapstructure:"error_policy"` // any of ignore, console, file, raise
	ErrorLog    string   `mapstructure:"error_log"`
}

type AudioConfig struct {
	MasterVolume float32 `mapstructure:"master_volume"`
	MusicVolume  float32 `mapstructure:"music_volume"`
	Pitch        float32 `mapstructure:"pitch"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

var Backends = []string{"oto", "malgo", "wav"}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("stream.buffer_size", stream.DefaultBufferSize)
	v.SetDefault("stream.buffer_count", stream.DefaultBufferCount)
	v.SetDefault("stream.update_rate", stream.DefaultUpdateRate)
	v.SetDefault("stream.manual", false)

	v.SetDefault("output.backend", "oto")
	v.SetDefault("output.sample_rate", 44100)
	v.SetDefault("output.channels", 2)
	v.SetDefault("output.latency", "50ms")

	v.SetDefault("device.error_policy", []string{"console"})
	v.SetDefault("device.error_log", "")

	v.SetDefault("audio.master_volume", 1.0)
	v.SetDefault("audio.music_volume", 1.0)
	v.SetDefault("audio.pitch", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// New returns a viper instance with defaults, the audstream.yaml search path
// and AUDSTREAM_* environment overrides set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("audstream")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.audstream")
	v.AddConfigPath("/etc/audstream")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file, if any, and decodes v. A missing file is not an
// error; a file given explicitly with SetConfigFile must exist.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// LoadFile loads path, or the default search path when path is empty.
func LoadFile(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	}

	return Load(v)
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	switch {
	case c.Stream.BufferSize <= 0:
		return &ConfigError{Field: "stream.buffer_size", Message: "must be positive"}
	case c.Stream.BufferCount <= 0:
		return &ConfigError{Field: "stream.buffer_count", Message: "must be positive"}
	case c.Stream.UpdateRate < 0:
		return &ConfigError{Field: "stream.update_rate", Message: "must not be negative"}
	case c.Output.SampleRate <= 0:
		return &ConfigError{Field: "output.sample_rate", Message: "must be positive"}
	case c.Output.Channels != 1 && c.Output.Channels != 2:
		return &ConfigError{Field: "output.channels", Message: "must be 1 or 2"}
	case c.Audio.MasterVolume < 0:
		return &ConfigError{Field: "audio.master_volume", Message: "must not be negative"}
	case c.Audio.MusicVolume < 0:
		return &ConfigError{Field: "audio.music_volume", Message: "must not be negative"}
	case c.Audio.Pitch <= 0:
		return &ConfigError{Field: "audio.pitch", Message: "must be positive"}
	}

	backend := strings.ToLower(c.Output.Backend)
	valid := false
	for _, b := range Backends {
		valid = valid || b == backend
	}
	if !valid {
		return &ConfigError{Field: "output.backend", Message: fmt.Sprintf("unknown backend %q", c.Output.Backend)}
	}

	policy, err := c.Policy()
	if err != nil {
		return &ConfigError{Field: "device.error_policy", Message: err.Error()}
	}
	if policy&device.LogFile != 0 && c.Device.ErrorLog == "" {
		return &ConfigError{Field: "device.error_log", Message: "required by the file policy"}
	}

	return nil
}

// Policy parses the device error policy names.
func (c *Config) Policy() (device.Policy, error) {
	return device.ParsePolicy(c.Device.ErrorPolicy...)
}

// Streamer returns the scheduler settings.
func (c *Config) Streamer() stream.Config {
	return stream.Config{
		BufferSize: c.Stream.BufferSize,
		UpdateRate: c.Stream.UpdateRate,
		Manual:     c.Stream.Manual,
	}
}

// ConfigError names the offending key.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
