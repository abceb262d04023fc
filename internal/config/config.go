// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/viper"

	"firestige.xyz/hdrstack/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `hdrstack:` root key in YAML.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Decode  DecodeConfig  `mapstructure:"decode"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Decode ───

// DecodeConfig controls how capture files are decoded.
type DecodeConfig struct {
	Entry         string `mapstructure:"entry"`           // auto | link | network
	Workers       int    `mapstructure:"workers"`         // 0 = GOMAXPROCS
	QueueSize     int    `mapstructure:"queue_size"`      // pending packets between reader and workers
	MaxPacketSize string `mapstructure:"max_packet_size"` // e.g. "64KB"; larger packets are skipped
	BPFFile       string `mapstructure:"bpf_file"`        // tcpdump -ddd output, optional

	// MaxPacketBytes is MaxPacketSize parsed by ValidateAndApplyDefaults.
	MaxPacketBytes uint64 `mapstructure:"-"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `hdrstack: ...`.
type configRoot struct {
	HdrStack Config `mapstructure:"hdrstack"`
}

// Load loads configuration from file. An empty path yields the defaults.
// Env vars use the HDRSTACK_ prefix (e.g., HDRSTACK_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `hdrstack.` key prefix maps to `HDRSTACK_` via the key replacer
	// (e.g., key "hdrstack.log.level" → env "HDRSTACK_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.HdrStack

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadOptional loads path when it exists. A missing file is only an error
// when required is set; otherwise the defaults are returned.
func LoadOptional(path string, required bool) (*Config, error) {
	if path != "" && !required {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// setDefaults sets default values for configuration.
// All keys use "hdrstack." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("hdrstack.log.level", "info")
	v.SetDefault("hdrstack.log.format", "text")
	v.SetDefault("hdrstack.log.outputs.file.enabled", false)
	v.SetDefault("hdrstack.log.outputs.file.path", "/var/log/hdrstack/hdrstack.log")
	v.SetDefault("hdrstack.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("hdrstack.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("hdrstack.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("hdrstack.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("hdrstack.metrics.enabled", false)
	v.SetDefault("hdrstack.metrics.listen", ":9091")
	v.SetDefault("hdrstack.metrics.path", "/metrics")

	// Decode defaults
	v.SetDefault("hdrstack.decode.entry", "auto")
	v.SetDefault("hdrstack.decode.workers", 0)
	v.SetDefault("hdrstack.decode.queue_size", 4096)
	v.SetDefault("hdrstack.decode.max_packet_size", "256KB")
	v.SetDefault("hdrstack.decode.bpf_file", "")
}

// ValidateAndApplyDefaults validates the configuration and fills derived fields.
func (cfg *Config) ValidateAndApplyDefaults() error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", core.ErrConfigInvalid, cfg.Log.Level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q (must be json or text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics are enabled", core.ErrConfigInvalid)
	}

	switch strings.ToLower(cfg.Decode.Entry) {
	case "", "auto", "link", "ethernet", "network", "ip":
	default:
		return fmt.Errorf("%w: decode.entry %q (must be auto, link or network)", core.ErrConfigInvalid, cfg.Decode.Entry)
	}

	if cfg.Decode.Workers < 0 {
		return fmt.Errorf("%w: decode.workers must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Decode.QueueSize <= 0 {
		cfg.Decode.QueueSize = 4096
	}

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(cfg.Decode.MaxPacketSize)); err != nil {
		return fmt.Errorf("%w: decode.max_packet_size %q: %v", core.ErrConfigInvalid, cfg.Decode.MaxPacketSize, err)
	}
	if size == 0 {
		return fmt.Errorf("%w: decode.max_packet_size must be positive", core.ErrConfigInvalid)
	}
	cfg.Decode.MaxPacketBytes = size.Bytes()

	return nil
}
