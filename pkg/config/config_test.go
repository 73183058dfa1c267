package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, ".data/artifacts", cfg.Storage.ArtifactDir)
	assert.Equal(t, "none", cfg.Storage.Compression)
	assert.Equal(t, 24*time.Hour, cfg.Storage.RetentionDuration())
	assert.Equal(t, int64(512*1024), cfg.Limits.MaxPayloadBytes())
	assert.Equal(t, int64(256*1024*1024), cfg.Limits.MaxInputBytes())
	assert.Equal(t, 600, cfg.Video.MaxFrames)
	assert.Equal(t, 50000, cfg.Detection.SampleSize)
	assert.True(t, cfg.Detection.RunParallel())
	assert.True(t, cfg.Network.IsEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvArtifactDir, "/tmp/art")
	t.Setenv(EnvMaxPayload, "1KiB")
	t.Setenv(EnvNetworkEnabled, "false")
	t.Setenv(EnvVideoMaxFrames, "12")

	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/art", cfg.Storage.ArtifactDir)
	assert.Equal(t, int64(1024), cfg.Limits.MaxPayloadBytes())
	assert.False(t, cfg.Network.IsEnabled())
	assert.Equal(t, 12, cfg.Video.MaxFrames)
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]*Config{
		"compression": {Storage: StorageConfig{Compression: "brotli"}},
		"retention":   {Storage: StorageConfig{Retention: "soon"}},
		"max_payload": {Limits: LimitsConfig{MaxPayload: "lots"}},
		"max_frames":  {Video: VideoConfig{MaxFrames: -1}},
		"log_format":  {Logging: LoggingConfig{Format: "xml"}},
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Finalize())
		})
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, BaseConfigFile)
	require.NoError(t, os.WriteFile(base, []byte(`
[storage]
artifact_dir = "base"
compression = "zstd"

[detection]
sample_size = 100
parallel = true
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "steglab.test.toml"), []byte(`
[storage]
artifact_dir = "overlay"

[detection]
parallel = false
`), 0o644))
	t.Setenv(EnvName, "test")

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, "overlay", cfg.Storage.ArtifactDir)
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	assert.Equal(t, 100, cfg.Detection.SampleSize)
	assert.False(t, cfg.Detection.RunParallel())
}

func TestLoadMissingBaseUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, ".data/artifacts", cfg.Storage.ArtifactDir)
}

func TestLoadRejectsBadToml(t *testing.T) {
	p := filepath.Join(t.TempDir(), BaseConfigFile)
	require.NoError(t, os.WriteFile(p, []byte("[storage\n"), 0o644))
	_, err := Load(p)
	assert.Error(t, err)
}
