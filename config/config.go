package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Audio output configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Playback engine configuration
	Playback PlaybackConfig `mapstructure:"playback"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// AudioConfig holds output-device and render-graph configuration
type AudioConfig struct {
	BufferLength    time.Duration `mapstructure:"buffer_length"`
	ResampleQuality int           `mapstructure:"resample_quality"`
	ToneFrequency   float64       `mapstructure:"tone_frequency"`
	MeterBands      int           `mapstructure:"meter_bands"`
}

// PlaybackConfig holds controller timing configuration
type PlaybackConfig struct {
	TrackInterval   time.Duration `mapstructure:"track_interval"`
	CompletionGrace time.Duration `mapstructure:"completion_grace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Set defaults
	viper.SetDefault("audio.buffer_length", "100ms")
	viper.SetDefault("audio.resample_quality", 4)
	viper.SetDefault("audio.tone_frequency", 880.0)
	viper.SetDefault("audio.meter_bands", 16)
	viper.SetDefault("playback.track_interval", "100ms")
	viper.SetDefault("playback.completion_grace", "500ms")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.riffloop")
	viper.AddConfigPath("/etc/riffloop")

	// Allow environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("RIFFLOOP")

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Audio.BufferLength <= 0 || c.Audio.BufferLength > time.Second {
		return &ConfigError{Field: "audio.buffer_length", Message: "must be between 0 and 1s"}
	}
	if c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64 {
		return &ConfigError{Field: "audio.resample_quality", Message: "must be between 1 and 64"}
	}
	if c.Audio.ToneFrequency < 20 || c.Audio.ToneFrequency > 10000 {
		return &ConfigError{Field: "audio.tone_frequency", Message: "must be between 20 and 10000 Hz"}
	}
	if c.Audio.MeterBands < 1 || c.Audio.MeterBands > 128 {
		return &ConfigError{Field: "audio.meter_bands", Message: "must be between 1 and 128"}
	}
	if c.Playback.TrackInterval <= 0 || c.Playback.TrackInterval > 200*time.Millisecond {
		return &ConfigError{Field: "playback.track_interval", Message: "must be between 0 and 200ms"}
	}
	if c.Playback.CompletionGrace <= 0 || c.Playback.CompletionGrace > 5*time.Second {
		return &ConfigError{Field: "playback.completion_grace", Message: "must be between 0 and 5s"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
