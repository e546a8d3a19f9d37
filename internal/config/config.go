// Package config loads yase's engine-wide YAML configuration: buffer
// pool sizing, log buffer sizing, deadlock policy, table file paths,
// and the benchmark harness's workload mix. Grounded on the teacher's
// internal/config.go (NovaSqlConfig + viper.New() + mapstructure tags),
// generalized from the teacher's storage-mode/server-port fields to
// yase's own domain.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the full engine configuration, unmarshaled from a single
// YAML document.
type Config struct {
	BufferPool struct {
		PageCount int `mapstructure:"page_count"`
	} `mapstructure:"buffer_pool"`

	Log struct {
		Path  string `mapstructure:"path"`
		BufKB int    `mapstructure:"buf_kb"`
	} `mapstructure:"log"`

	Lock struct {
		// Policy is "no_wait" or "wait_die".
		Policy string `mapstructure:"policy"`
	} `mapstructure:"lock"`

	Table struct {
		DataPath   string `mapstructure:"data_path"`
		RecordSize int    `mapstructure:"record_size"`
	} `mapstructure:"table"`

	Harness struct {
		Threads       int `mapstructure:"threads"`
		DurationSec   int `mapstructure:"duration_sec"`
		TableSize     int `mapstructure:"table_size"`
		PointReadPct  int `mapstructure:"point_read_pct"`
		ReadUpdatePct int `mapstructure:"read_update_pct"`
		ScanUpdatePct int `mapstructure:"scan_update_pct"`
	} `mapstructure:"harness"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.BufferPool.PageCount = 256
	cfg.Log.Path = "yase.log"
	cfg.Log.BufKB = 64
	cfg.Lock.Policy = "wait_die"
	cfg.Table.DataPath = "yase.tbl"
	cfg.Table.RecordSize = 64
	cfg.Harness.Threads = 4
	cfg.Harness.DurationSec = 10
	cfg.Harness.TableSize = 10000
	cfg.Harness.PointReadPct = 70
	cfg.Harness.ReadUpdatePct = 20
	cfg.Harness.ScanUpdatePct = 10
	return cfg
}

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks internal consistency: the harness mix percentages must
// sum to 100, matching the source's simple_bench.cc workload selection.
func (c *Config) Validate() error {
	sum := c.Harness.PointReadPct + c.Harness.ReadUpdatePct + c.Harness.ScanUpdatePct
	if sum != 100 {
		return fmt.Errorf("config: harness mix percentages sum to %d, want 100", sum)
	}
	if c.Lock.Policy != "no_wait" && c.Lock.Policy != "wait_die" {
		return fmt.Errorf("config: unknown lock policy %q", c.Lock.Policy)
	}
	return nil
}
