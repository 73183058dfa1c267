package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

const (
	EnvArtifactDir      = "STEG_ARTIFACT_DIR"
	EnvCompression      = "STEG_STORAGE_COMPRESSION"
	EnvRetention        = "STEG_STORAGE_RETENTION"
	EnvMaxPayload       = "STEG_MAX_PAYLOAD"
	EnvMaxInput         = "STEG_MAX_INPUT"
	EnvVideoMaxFrames   = "STEG_VIDEO_MAX_FRAMES"
	EnvVideoMaxBytes    = "STEG_VIDEO_MAX_BYTES"
	EnvSampleSize       = "STEG_DETECTION_SAMPLE_SIZE"
	EnvDetectParallel   = "STEG_DETECTION_PARALLEL"
	EnvNetworkEnabled   = "STEG_NETWORK_ENABLED"
	EnvLogLevel         = "STEG_LOG_LEVEL"
	EnvLogFormat        = "STEG_LOG_FORMAT"
	defaultArtifactDir  = ".data/artifacts"
	defaultRetention    = "24h"
	defaultMaxPayload   = "512KiB"
	defaultMaxInput     = "256MiB"
	defaultVideoBytes   = "256MiB"
	defaultVideoFrames  = 600
	defaultSampleSize   = 50000
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
	defaultCompression  = "none"
)

// StorageConfig controls the artifact sandbox.
type StorageConfig struct {
	// ArtifactDir is the sandbox root. Default: ".data/artifacts"
	ArtifactDir string `toml:"artifact_dir"`
	// Compression is one of none, zstd, lz4.
	Compression  string `toml:"compression"`
	Retention    string `toml:"retention"`
	retentionVal time.Duration
}

// RetentionDuration returns the parsed retention window.
func (c *StorageConfig) RetentionDuration() time.Duration { return c.retentionVal }

// Finalize applies defaults, loads environment overrides, and validates.
func (c *StorageConfig) Finalize() error {
	if c.ArtifactDir == "" {
		c.ArtifactDir = defaultArtifactDir
	}
	if c.Compression == "" {
		c.Compression = defaultCompression
	}
	if c.Retention == "" {
		c.Retention = defaultRetention
	}
	if v := os.Getenv(EnvArtifactDir); v != "" {
		c.ArtifactDir = v
	}
	if v := os.Getenv(EnvCompression); v != "" {
		c.Compression = v
	}
	if v := os.Getenv(EnvRetention); v != "" {
		c.Retention = v
	}

	switch c.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return fmt.Errorf("invalid retention: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	c.retentionVal = d
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *StorageConfig) Merge(overlay *StorageConfig) {
	if overlay.ArtifactDir != "" {
		c.ArtifactDir = overlay.ArtifactDir
	}
	if overlay.Compression != "" {
		c.Compression = overlay.Compression
	}
	if overlay.Retention != "" {
		c.Retention = overlay.Retention
	}
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	MaxPayload    string `toml:"max_payload"`
	MaxInput      string `toml:"max_input"`
	maxPayloadVal int64
	maxInputVal   int64
}

// MaxPayloadBytes returns the largest accepted payload.
func (c *LimitsConfig) MaxPayloadBytes() int64 { return c.maxPayloadVal }

// MaxInputBytes returns the largest accepted carrier input.
func (c *LimitsConfig) MaxInputBytes() int64 { return c.maxInputVal }

// Finalize applies defaults, loads environment overrides, and validates.
func (c *LimitsConfig) Finalize() error {
	if c.MaxPayload == "" {
		c.MaxPayload = defaultMaxPayload
	}
	if c.MaxInput == "" {
		c.MaxInput = defaultMaxInput
	}
	if v := os.Getenv(EnvMaxPayload); v != "" {
		c.MaxPayload = v
	}
	if v := os.Getenv(EnvMaxInput); v != "" {
		c.MaxInput = v
	}

	var err error
	if c.maxPayloadVal, err = parseSize("max_payload", c.MaxPayload); err != nil {
		return err
	}
	if c.maxInputVal, err = parseSize("max_input", c.MaxInput); err != nil {
		return err
	}
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *LimitsConfig) Merge(overlay *LimitsConfig) {
	if overlay.MaxPayload != "" {
		c.MaxPayload = overlay.MaxPayload
	}
	if overlay.MaxInput != "" {
		c.MaxInput = overlay.MaxInput
	}
}

// VideoConfig is the decode budget for video carriers.
type VideoConfig struct {
	MaxFrames   int    `toml:"max_frames"`
	MaxBytes    string `toml:"max_bytes"`
	maxBytesVal int64
}

// MaxBytesValue returns the parsed byte budget.
func (c *VideoConfig) MaxBytesValue() int64 { return c.maxBytesVal }

// Finalize applies defaults, loads environment overrides, and validates.
func (c *VideoConfig) Finalize() error {
	if c.MaxFrames == 0 {
		c.MaxFrames = defaultVideoFrames
	}
	if c.MaxBytes == "" {
		c.MaxBytes = defaultVideoBytes
	}
	if v := os.Getenv(EnvVideoMaxFrames); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVideoMaxFrames, err)
		}
		c.MaxFrames = n
	}
	if v := os.Getenv(EnvVideoMaxBytes); v != "" {
		c.MaxBytes = v
	}

	if c.MaxFrames < 1 {
		return fmt.Errorf("max_frames must be positive")
	}
	var err error
	c.maxBytesVal, err = parseSize("max_bytes", c.MaxBytes)
	return err
}

// Merge applies values from overlay that differ from zero values.
func (c *VideoConfig) Merge(overlay *VideoConfig) {
	if overlay.MaxFrames != 0 {
		c.MaxFrames = overlay.MaxFrames
	}
	if overlay.MaxBytes != "" {
		c.MaxBytes = overlay.MaxBytes
	}
}

// DetectionConfig tunes detector runs.
type DetectionConfig struct {
	// SampleSize caps the samples a detector inspects; 0 means all.
	SampleSize int   `toml:"sample_size"`
	Parallel   *bool `toml:"parallel"`
}

// RunParallel reports whether detectors fan out concurrently.
func (c *DetectionConfig) RunParallel() bool { return c.Parallel == nil || *c.Parallel }

// Finalize applies defaults, loads environment overrides, and validates.
func (c *DetectionConfig) Finalize() error {
	if c.SampleSize == 0 {
		c.SampleSize = defaultSampleSize
	}
	if v := os.Getenv(EnvSampleSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSampleSize, err)
		}
		c.SampleSize = n
	}
	if v := os.Getenv(EnvDetectParallel); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDetectParallel, err)
		}
		c.Parallel = &b
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("sample_size must not be negative")
	}
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *DetectionConfig) Merge(overlay *DetectionConfig) {
	if overlay.SampleSize != 0 {
		c.SampleSize = overlay.SampleSize
	}
	if overlay.Parallel != nil {
		c.Parallel = overlay.Parallel
	}
}

// NetworkConfig gates the offline capture carrier.
type NetworkConfig struct {
	Enabled *bool `toml:"enabled"`
}

// IsEnabled reports whether network carrier requests are accepted.
func (c *NetworkConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// Finalize loads environment overrides.
func (c *NetworkConfig) Finalize() error {
	if v := os.Getenv(EnvNetworkEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvNetworkEnabled, err)
		}
		c.Enabled = &b
	}
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *NetworkConfig) Merge(overlay *NetworkConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Finalize applies defaults, loads environment overrides, and validates.
func (c *LoggingConfig) Finalize() error {
	if c.Level == "" {
		c.Level = defaultLogLevel
	}
	if c.Format == "" {
		c.Format = defaultLogFormat
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Format = v
	}
	if c.Format != "console" && c.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *LoggingConfig) Merge(overlay *LoggingConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
}

func parseSize(key, v string) (int64, error) {
	size, err := units.RAMInBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return size, nil
}
