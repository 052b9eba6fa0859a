package colorizer

import (
	"errors"
	"fmt"
)

// NumBlocks is the number of backbone blocks that take a dropout probability.
const NumBlocks = 10

// ErrInvalidConfig is returned when a network configuration is rejected.
var ErrInvalidConfig = errors.New("invalid colorizer config")

// Config holds the network hyperparameters.
type Config struct {
	// DropoutLayers holds one dropout probability per backbone block
	// (model1..model10). Zero disables dropout for the block.
	DropoutLayers []float32 `toml:"dropout_layers"`
	// NumExtraBlocks is the number of extra 512m bottleneck blocks inserted
	// after model7.
	NumExtraBlocks int `toml:"num_extra_blocks"`
	// ChannelMultiplier scales every block width.
	ChannelMultiplier int `toml:"channel_multiplier"`
	// Seed drives weight initialization and dropout masks.
	Seed int64 `toml:"seed"`
}

// DefaultConfig returns a multiplier 1 network without dropout or extra blocks.
func DefaultConfig() Config {
	return Config{
		DropoutLayers:     make([]float32, NumBlocks),
		ChannelMultiplier: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.DropoutLayers) != NumBlocks {
		return fmt.Errorf("%w: dropout_layers has %d entries, want %d", ErrInvalidConfig, len(c.DropoutLayers), NumBlocks)
	}
	for i, p := range c.DropoutLayers {
		if p < 0 || p >= 1 {
			return fmt.Errorf("%w: dropout_layers[%d] = %g outside [0, 1)", ErrInvalidConfig, i, p)
		}
	}
	if c.NumExtraBlocks < 0 {
		return fmt.Errorf("%w: num_extra_blocks must be >= 0, got %d", ErrInvalidConfig, c.NumExtraBlocks)
	}
	if c.ChannelMultiplier < 1 {
		return fmt.Errorf("%w: channel_multiplier must be >= 1, got %d", ErrInvalidConfig, c.ChannelMultiplier)
	}
	return nil
}
