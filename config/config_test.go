package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoIngest/core"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		got, err := ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStrategy(" Video_Optimized ")
	require.NoError(t, err)
	assert.Equal(t, StrategyVideoOptimized, got)

	got, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, got)

	_, err = ParseStrategy("sliding")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidConfiguration, core.KindOf(err))
}

func TestChunkingPresets(t *testing.T) {
	tests := []struct {
		strategy Strategy
		size     int
		overlap  int
	}{
		{StrategySemantic, 400, 50},
		{StrategyRecursive, 500, 50},
		{StrategyFixed, 400, 0},
		{StrategyVideoOptimized, 600, 75},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			cfg := ChunkingConfig{Strategy: tt.strategy}.WithDefaults()
			assert.Equal(t, tt.size, cfg.MaxChunkSize)
			assert.Equal(t, tt.overlap, cfg.Overlap)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestChunkingValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkingConfig
	}{
		{"zero size", ChunkingConfig{Strategy: StrategyFixed, MaxChunkSize: 0}},
		{"negative size", ChunkingConfig{Strategy: StrategyFixed, MaxChunkSize: -5}},
		{"negative overlap", ChunkingConfig{Strategy: StrategySemantic, MaxChunkSize: 100, Overlap: -1}},
		{"overlap equals size", ChunkingConfig{Strategy: StrategySemantic, MaxChunkSize: 100, Overlap: 100}},
		{"unknown strategy", ChunkingConfig{Strategy: "bogus", MaxChunkSize: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, core.KindInvalidConfiguration, core.KindOf(err))
		})
	}

	assert.NoError(t, ChunkingConfig{Strategy: StrategyFixed, MaxChunkSize: 12}.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 100, cfg.EmbeddingBatchSize)
	assert.Equal(t, core.DefaultIdentityPrefixBytes, cfg.IdentityPrefixBytes)
	assert.Equal(t, StrategySemantic, cfg.Chunking.Strategy)
	assert.Equal(t, 400, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "api_key": "from-file",
  "store": "pgvector",
  "chunking": {"strategy": "recursive", "max_chunk_size": 300, "overlap": 30}
}`), 0644))

	t.Setenv("API_KEY", "from-env")
	t.Setenv("CHUNKING_OVERLAP", "40")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "pgvector", cfg.Store)
	assert.Equal(t, StrategyRecursive, cfg.Chunking.Strategy)
	assert.Equal(t, 300, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 40, cfg.Chunking.Overlap)
	assert.True(t, cfg.HasValidAPI())
}

func TestLoadConfigReadsExistingPathOnly(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(dir)
	require.Error(t, err, "an existing path that is not a config file is read and rejected")
	assert.Contains(t, err.Error(), "failed to read config file")

	cfg, err := LoadConfig(filepath.Join(dir, "absent", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
}

func TestLoadConfigRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("CHUNKING_STRATEGY", "paragraphs")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidConfiguration, core.KindOf(err))
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	cfg.Store = "sqlite"
	cfg.MaxWorkers = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store "sqlite"`)
	assert.Contains(t, err.Error(), "max_workers must be positive")
	assert.Equal(t, core.KindInvalidConfiguration, core.KindOf(err))
}
