package config

import (
	"fmt"
	"strings"

	"videoIngest/core"
)

// Strategy selects how a transcript is split into chunks.
type Strategy string

const (
	StrategyFixed          Strategy = "fixed"
	StrategyRecursive      Strategy = "recursive"
	StrategySemantic       Strategy = "semantic"
	StrategyVideoOptimized Strategy = "video_optimized"
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = StrategySemantic

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyFixed, StrategyRecursive, StrategySemantic, StrategyVideoOptimized}
}

// ParseStrategy resolves a configured strategy name. Empty selects DefaultStrategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if s == "" {
		return DefaultStrategy, nil
	}
	switch s {
	case StrategyFixed, StrategyRecursive, StrategySemantic, StrategyVideoOptimized:
		return s, nil
	}
	return "", core.InvalidConfig("parse strategy", fmt.Sprintf("unknown chunking strategy %q", name))
}

// ChunkingConfig holds the chunker parameters. Sizes are in characters.
type ChunkingConfig struct {
	Strategy     Strategy `json:"strategy" mapstructure:"strategy"`
	MaxChunkSize int      `json:"max_chunk_size" mapstructure:"max_chunk_size"`
	Overlap      int      `json:"overlap" mapstructure:"overlap"`
}

// DefaultChunkingConfig returns the preset for strategy.
func DefaultChunkingConfig(strategy Strategy) ChunkingConfig {
	switch strategy {
	case StrategyFixed:
		return ChunkingConfig{Strategy: StrategyFixed, MaxChunkSize: 400, Overlap: 0}
	case StrategyRecursive:
		return ChunkingConfig{Strategy: StrategyRecursive, MaxChunkSize: 500, Overlap: 50}
	case StrategyVideoOptimized:
		return ChunkingConfig{Strategy: StrategyVideoOptimized, MaxChunkSize: 600, Overlap: 75}
	default:
		return ChunkingConfig{Strategy: StrategySemantic, MaxChunkSize: 400, Overlap: 50}
	}
}

// WithDefaults fills an empty strategy and a zero size from the strategy preset.
// Overlap is only taken from the preset when the size was unset too.
func (c ChunkingConfig) WithDefaults() ChunkingConfig {
	if c.Strategy == "" {
		c.Strategy = DefaultStrategy
	}
	if c.MaxChunkSize == 0 {
		preset := DefaultChunkingConfig(c.Strategy)
		c.MaxChunkSize = preset.MaxChunkSize
		if c.Overlap == 0 {
			c.Overlap = preset.Overlap
		}
	}
	return c
}

// Validate checks the parameters before any split happens.
func (c ChunkingConfig) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.MaxChunkSize <= 0 {
		return core.InvalidConfig("validate chunking", fmt.Sprintf("max_chunk_size must be positive, got %d", c.MaxChunkSize))
	}
	if c.Overlap < 0 {
		return core.InvalidConfig("validate chunking", fmt.Sprintf("overlap must not be negative, got %d", c.Overlap))
	}
	if c.Overlap >= c.MaxChunkSize {
		return core.InvalidConfig("validate chunking",
			fmt.Sprintf("overlap (%d) must be smaller than max_chunk_size (%d)", c.Overlap, c.MaxChunkSize))
	}
	return nil
}
