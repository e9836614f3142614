// Package config loads the pipeline configuration and sets up logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Period is one [start, end] year window processed independently.
type Period struct {
	Start int `yaml:"start" mapstructure:"start"`
	End   int `yaml:"end" mapstructure:"end"`
}

// Key returns the period's cache and output key, e.g. "1979_2000".
func (p Period) Key() string {
	return fmt.Sprintf("%d_%d", p.Start, p.End)
}

// Contains reports whether a year falls inside the window.
func (p Period) Contains(year int) bool {
	return year >= p.Start && year <= p.End
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%d", p.Start, p.End)
}

// Config holds the full application configuration. It is constructed once
// and passed explicitly into each component's entry point.
type Config struct {
	CacheDir    string `yaml:"cache_dir" mapstructure:"cache_dir"`
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	DatasetsDir string `yaml:"datasets_dir" mapstructure:"datasets_dir"`

	Periods            []Period `yaml:"periods" mapstructure:"periods"`
	ExcludedISOCodes   []string `yaml:"excluded_iso_codes" mapstructure:"excluded_iso_codes"`
	DisasterCategories []string `yaml:"disaster_categories" mapstructure:"disaster_categories"`

	SmallCountryThreshold    float64 `yaml:"small_country_threshold" mapstructure:"small_country_threshold"`
	PoorCountryReferenceYear int     `yaml:"poor_country_reference_year" mapstructure:"poor_country_reference_year"`

	Comtrade ComtradeConfig `yaml:"comtrade" mapstructure:"comtrade"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ComtradeConfig configures the remote export-data fetch.
type ComtradeConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	MaxRecords     int     `yaml:"max_records" mapstructure:"max_records"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ExportsDir returns the directory holding raw export CSV files.
func (c *Config) ExportsDir() string { return filepath.Join(c.DataDir, "exports") }

// EMDATDir returns the directory holding EM-DAT spreadsheets.
func (c *Config) EMDATDir() string { return filepath.Join(c.DataDir, "emdat") }

// GeoMetDir returns the directory holding the GeoMet intensity file.
func (c *Config) GeoMetDir() string { return filepath.Join(c.DataDir, "geomet") }

// WorldBankDir returns the directory holding the income classification.
func (c *Config) WorldBankDir() string { return filepath.Join(c.DataDir, "world_bank") }

// UNDESADir returns the directory holding the population spreadsheet.
func (c *Config) UNDESADir() string { return filepath.Join(c.DataDir, "undesa") }

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRADEPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("data_dir", "data")
	v.SetDefault("datasets_dir", "datasets")
	v.SetDefault("excluded_iso_codes", []string{
		"ANT", "CSK", "DDR", "SCG", "SUN", "YMD", "YMN", "YUG",
	})
	v.SetDefault("disaster_categories", []string{
		"Earthquake", "Flood", "Storm", "Extreme temperature",
	})
	v.SetDefault("small_country_threshold", 1_500_000)
	v.SetDefault("poor_country_reference_year", 2016)
	v.SetDefault("comtrade.base_url", "https://comtradeapi.un.org/public/v1/preview")
	v.SetDefault("comtrade.max_records", 5000)
	v.SetDefault("comtrade.requests_per_sec", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Periods) == 0 {
		cfg.Periods = []Period{{Start: 1979, End: 2000}, {Start: 2001, End: 2024}}
	}
	for _, p := range cfg.Periods {
		if p.Start > p.End {
			return nil, eris.Errorf("config: invalid period %s (start after end)", p)
		}
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
