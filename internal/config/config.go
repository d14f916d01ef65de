// Package config holds run settings unmarshalled from Viper (flags,
// ~/.vibe-talon.yaml and VIBE_TALON_* environment variables) and the
// dataset list of a run.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inodb/vibe-talon/internal/alignment"
	"github.com/inodb/vibe-talon/internal/store"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "VIBE_TALON"

// FilterConfig is the read QC thresholds.
type FilterConfig struct {
	// minimum read sequence length
	MinLength int `mapstructure:"min-length"`

	// minimum fraction of the read that is not clipped
	MinCoverage float64 `mapstructure:"min-coverage"`

	// minimum fraction of read bases matching the reference
	MinIdentity float64 `mapstructure:"min-identity"`
}

// Filter converts the thresholds into an alignment filter.
func (f FilterConfig) Filter() alignment.Filter {
	return alignment.Filter{MinLength: f.MinLength, MinCoverage: f.MinCoverage, MinIdentity: f.MinIdentity}
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the root-level settings struct.
type Config struct {
	// path to the registry database
	Database string `mapstructure:"database"`
	// duckdb or sqlite3
	Driver string `mapstructure:"driver"`
	// genome build the run identifies against
	Build string `mapstructure:"build"`
	// rows per multi-row INSERT
	BatchSize int `mapstructure:"batch-size"`
	// SAM decoding goroutines, 0 for one per CPU
	Workers int `mapstructure:"workers"`
	// BAM decompression goroutines
	BAMThreads int `mapstructure:"bam-threads"`

	Filter FilterConfig `mapstructure:"filter"`
	Log    LogConfig    `mapstructure:"log"`
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("driver", store.DriverDuckDB)
	v.SetDefault("batch-size", store.DefaultBatchSize)
	v.SetDefault("workers", 0)
	v.SetDefault("bam-threads", 1)
	v.SetDefault("filter.min-length", alignment.DefaultFilter.MinLength)
	v.SetDefault("filter.min-coverage", alignment.DefaultFilter.MinCoverage)
	v.SetDefault("filter.min-identity", alignment.DefaultFilter.MinIdentity)
	v.SetDefault("log.level", "info")
}

// BindEnv makes VIBE_TALON_* variables override settings, with "." and
// "-" in keys mapped to "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Keys without defaults are only seen by Unmarshal when bound.
	for _, key := range []string{"database", "build"} {
		_ = v.BindEnv(key)
	}
}

// Load decodes the settings held by v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges. Required settings such as the database
// path are checked by the command that needs them.
func (c *Config) Validate() error {
	switch c.Driver {
	case store.DriverDuckDB, store.DriverSQLite:
	default:
		return fmt.Errorf("driver must be %s or %s, got %q", store.DriverDuckDB, store.DriverSQLite, c.Driver)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 0 || c.BAMThreads < 0 {
		return fmt.Errorf("workers and bam-threads must not be negative")
	}
	if c.Filter.MinLength < 0 {
		return fmt.Errorf("filter.min-length must not be negative, got %d", c.Filter.MinLength)
	}
	for name, f := range map[string]float64{
		"filter.min-coverage": c.Filter.MinCoverage,
		"filter.min-identity": c.Filter.MinIdentity,
	} {
		if f < 0 || f > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, f)
		}
	}
	return nil
}
