// Package config defines the payroll service configuration and its loader.
//
// Precedence (low -> high):
//  1. defaults (New)
//  2. YAML file when PAYROLL_CONFIG is set
//  3. environment variables with the PAYROLL_ prefix
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const (
	envPrefix  = "PAYROLL_"
	envFileKey = "PAYROLL_CONFIG"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file; ":memory:" for an ephemeral store.
	DBPath string `koanf:"db_path"`

	// Timezone is the location sessions and Sabbath times are interpreted in.
	Timezone string `koanf:"timezone"`

	// LocalCurrency is the currency the minimum wage applies to.
	LocalCurrency string `koanf:"local_currency"`

	// MinimumWage is the statutory monthly minimum, as a decimal string.
	MinimumWage string `koanf:"minimum_wage"`

	// MinimumWageHours is the monthly hours threshold for the minimum wage.
	MinimumWageHours int `koanf:"minimum_wage_hours"`

	// StrictArithmetic turns arithmetic anomalies into errors instead of warnings.
	StrictArithmetic bool `koanf:"strict_arithmetic"`

	// BatchWorkers bounds the number of employees computed in parallel.
	BatchWorkers int `koanf:"batch_workers"`

	// HolidayCachePath is the buntdb file of the holiday cache; ":memory:" keeps it in RAM.
	HolidayCachePath string `koanf:"holiday_cache_path"`

	// HolidayCacheTTL is how long a cached holiday fact stays valid.
	HolidayCacheTTL time.Duration `koanf:"holiday_cache_ttl"`

	// HebcalEnabled turns on the remote Hebcal provider.
	HebcalEnabled bool `koanf:"hebcal_enabled"`

	// HebcalGeonameID selects the city for candle-lighting times.
	HebcalGeonameID int `koanf:"hebcal_geonameid"`

	// HebcalTimeout bounds one Hebcal request.
	HebcalTimeout time.Duration `koanf:"hebcal_timeout"`

	// SchedulerEnabled starts the periodic recalculation of the current month.
	SchedulerEnabled bool `koanf:"scheduler_enabled"`

	// SchedulerInterval is the period between recalculation runs.
	SchedulerInterval time.Duration `koanf:"scheduler_interval"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8080",
		DBPath:            "payroll.db",
		Timezone:          "Asia/Jerusalem",
		LocalCurrency:     "ILS",
		MinimumWage:       "5300",
		MinimumWageHours:  186,
		BatchWorkers:      runtime.NumCPU() * 2,
		HolidayCachePath:  ":memory:",
		HolidayCacheTTL:   7 * 24 * time.Hour,
		HebcalGeonameID:   281184,
		HebcalTimeout:     10 * time.Second,
		SchedulerInterval: time.Hour,
	}
}

// Load builds a Config by layering defaults, an optional file and env vars.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// PAYROLL_BATCH_WORKERS -> batch_workers. Keys are flat, so underscores
	// are preserved to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.BatchWorkers <= 0:
		return fmt.Errorf("%w: batch_workers must be positive", ErrInvalidConfig)
	case c.MinimumWageHours < 0:
		return fmt.Errorf("%w: minimum_wage_hours must not be negative", ErrInvalidConfig)
	case c.SchedulerEnabled && c.SchedulerInterval <= 0:
		return fmt.Errorf("%w: scheduler_interval must be positive", ErrInvalidConfig)
	}
	if _, err := c.MinimumWageAmount(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// MinimumWageAmount parses MinimumWage.
func (c *Config) MinimumWageAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.MinimumWage)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: minimum_wage %q: %v", ErrInvalidConfig, c.MinimumWage, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: minimum_wage must not be negative", ErrInvalidConfig)
	}
	return d, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}
