package sofia

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/sipcraft/sofiacat/internal/pkg/constants"
)

var configOnce sync.Once

// Config holds the tunable frame reader parameters.
type Config struct {
	// ReadChunkSize is the size of one upstream read.
	ReadChunkSize int `mapstructure:"read_chunk_size"`

	// MaxFrameSize bounds how far the reader buffers a single frame while
	// looking for its boundary before recovery fires.
	MaxFrameSize int `mapstructure:"max_frame_size"`
}

// initConfigDefaults initializes viper defaults once
func initConfigDefaults() {
	viper.SetDefault("sofia.read_chunk_size", constants.ReadChunkSize)
	viper.SetDefault("sofia.max_frame_size", constants.DefaultMaxFrameSize)
}

// GetConfig returns the current reader configuration with defaults applied.
func GetConfig() *Config {
	configOnce.Do(initConfigDefaults)

	cfg := &Config{
		ReadChunkSize: viper.GetInt("sofia.read_chunk_size"),
		MaxFrameSize:  viper.GetInt("sofia.max_frame_size"),
	}
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = constants.ReadChunkSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = constants.DefaultMaxFrameSize
	}
	return cfg
}
