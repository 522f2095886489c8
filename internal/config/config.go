// ABOUTME: Application configuration loaded through viper
// ABOUTME: TOML file, STREAMPLAY_* environment variables and bound CLI flags
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/Resonate-Protocol/streamplay/pkg/streamplay"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STREAMPLAY_LOG_LEVEL
const EnvPrefix = "STREAMPLAY"

// DefaultPrefetch is the read-ahead between the source and the feed
const DefaultPrefetch = 256 * 1024

// Configuration keys
const (
	KeyBuffers               = "engine.buffers"
	KeyBufferSize            = "engine.buffer_size"
	KeyMaxPacketDescriptions = "engine.max_packet_descriptions"
	KeyPrimeBuffers          = "engine.prime_buffers"
	KeyFormatChange          = "engine.format_change"
	KeyOutputDevice          = "output.device"
	KeyOutputVolume          = "output.volume"
	KeyOutputPan             = "output.pan"
	KeyPrefetch              = "source.prefetch"
	KeyChunkSize             = "source.chunk_size"
	KeyLogLevel              = "log.level"
	KeyLogFormat             = "log.format"
	KeyLogFile               = "log.file"
	KeyDiscoveryService      = "discovery.service"
)

// Config is the decoded application configuration
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Output    OutputConfig    `mapstructure:"output"`
	Source    SourceConfig    `mapstructure:"source"`
	Log       LogConfig       `mapstructure:"log"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

// EngineConfig sizes the buffer pool
type EngineConfig struct {
	Buffers               int    `mapstructure:"buffers"`
	BufferSize            int    `mapstructure:"buffer_size"`
	MaxPacketDescriptions int    `mapstructure:"max_packet_descriptions"`
	PrimeBuffers          int    `mapstructure:"prime_buffers"`
	FormatChange          string `mapstructure:"format_change"`
}

// OutputConfig selects and controls the output device
type OutputConfig struct {
	Device string  `mapstructure:"device"`
	Volume int     `mapstructure:"volume"`
	Pan    float64 `mapstructure:"pan"`
}

// SourceConfig controls how stream bytes are read
type SourceConfig struct {
	Prefetch  int `mapstructure:"prefetch"`
	ChunkSize int `mapstructure:"chunk_size"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DiscoveryConfig controls mDNS
type DiscoveryConfig struct {
	Service string `mapstructure:"service"`
}

// New returns a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetConfigType("toml")
	v.SetConfigName("config")
	v.AddConfigPath("/etc/streamplay")
	v.AddConfigPath("$HOME/.config/streamplay")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBuffers, playback.DefaultBuffers)
	v.SetDefault(KeyBufferSize, playback.DefaultBufferSize)
	v.SetDefault(KeyMaxPacketDescriptions, playback.DefaultMaxPacketDescriptions)
	v.SetDefault(KeyPrimeBuffers, playback.DefaultPrimeBuffers)
	v.SetDefault(KeyFormatChange, playback.FormatChangeReject.String())
	v.SetDefault(KeyOutputDevice, "malgo")
	v.SetDefault(KeyOutputVolume, 100)
	v.SetDefault(KeyOutputPan, 0.0)
	v.SetDefault(KeyPrefetch, DefaultPrefetch)
	v.SetDefault(KeyChunkSize, streamplay.DefaultChunkSize)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyDiscoveryService, "_streamplay._tcp")
	return v
}

// Read loads path, or the first config file found on the search path when
// path is empty. A missing file on the search path is not an error.
func Read(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate rejects values no component would accept
func (c Config) Validate() error {
	if c.Engine.Buffers < 1 {
		return fmt.Errorf("%s must be at least 1", KeyBuffers)
	}
	if c.Engine.BufferSize < 1 {
		return fmt.Errorf("%s must be at least 1", KeyBufferSize)
	}
	if c.Engine.MaxPacketDescriptions < 1 {
		return fmt.Errorf("%s must be at least 1", KeyMaxPacketDescriptions)
	}
	if c.Engine.PrimeBuffers < 1 {
		return fmt.Errorf("%s must be at least 1", KeyPrimeBuffers)
	}
	if _, err := playback.ParseFormatChangePolicy(c.Engine.FormatChange); err != nil {
		return err
	}
	if c.Output.Volume < 0 || c.Output.Volume > 100 {
		return fmt.Errorf("%s must be between 0 and 100", KeyOutputVolume)
	}
	if c.Output.Pan < -1 || c.Output.Pan > 1 {
		return fmt.Errorf("%s must be between -1 and 1", KeyOutputPan)
	}
	if c.Source.Prefetch < 0 {
		return fmt.Errorf("%s must not be negative", KeyPrefetch)
	}
	if c.Source.ChunkSize < 1 {
		return fmt.Errorf("%s must be at least 1", KeyChunkSize)
	}
	return nil
}

// Player maps the configuration onto player settings
func (c Config) Player() (streamplay.PlayerConfig, error) {
	policy, err := playback.ParseFormatChangePolicy(c.Engine.FormatChange)
	if err != nil {
		return streamplay.PlayerConfig{}, err
	}
	return streamplay.PlayerConfig{
		Output:                c.Output.Device,
		Volume:                c.Output.Volume,
		Pan:                   c.Output.Pan,
		Buffers:               c.Engine.Buffers,
		BufferSize:            c.Engine.BufferSize,
		MaxPacketDescriptions: c.Engine.MaxPacketDescriptions,
		PrimeBuffers:          c.Engine.PrimeBuffers,
		FormatChange:          policy,
		ChunkSize:             c.Source.ChunkSize,
	}, nil
}
