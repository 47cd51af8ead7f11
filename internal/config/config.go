// Package config provides configuration management for the CLTV pipeline
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/cltv/internal/cltv"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config represents the settings of one pipeline run
type Config struct {
	// Input
	Input string `json:"input" yaml:"input"` // Transactions file (.xlsx, .csv, .parquet)
	Sheet string `json:"sheet" yaml:"sheet"` // Worksheet name, empty for the first sheet

	// Analysis
	Country       string   `json:"country" yaml:"country"`
	ProfitMargin  float64  `json:"profit_margin" yaml:"profit_margin"`
	FeatureMonths []string `json:"feature_months" yaml:"feature_months"` // Month labels such as Dec-2011
	TestSize      float64  `json:"test_size" yaml:"test_size"`
	RandomSeed    uint64   `json:"random_seed" yaml:"random_seed"`

	// Outputs
	TopCountries int    `json:"top_countries" yaml:"top_countries"`
	TopCustomers int    `json:"top_customers" yaml:"top_customers"` // 0 disables the customer table
	ChartPath    string `json:"chart_path" yaml:"chart_path"`       // Empty disables the PNG chart
	ExportPath   string `json:"export_path" yaml:"export_path"`     // Empty disables the export

	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// Default configuration values
const (
	DefaultInput        = "online-retail-data/online-retail.xlsx"
	DefaultTopCountries = 10
	DefaultChartPath    = "top-countries.png"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Environment variable names
const (
	EnvInput         = "CLTV_INPUT"
	EnvSheet         = "CLTV_SHEET"
	EnvCountry       = "CLTV_COUNTRY"
	EnvProfitMargin  = "CLTV_PROFIT_MARGIN"
	EnvFeatureMonths = "CLTV_FEATURE_MONTHS"
	EnvTestSize      = "CLTV_TEST_SIZE"
	EnvRandomSeed    = "CLTV_RANDOM_SEED"
	EnvTopCountries  = "CLTV_TOP_COUNTRIES"
	EnvTopCustomers  = "CLTV_TOP_CUSTOMERS"
	EnvChartPath     = "CLTV_CHART_PATH"
	EnvExportPath    = "CLTV_EXPORT_PATH"
	EnvLogLevel      = "CLTV_LOG_LEVEL"
	EnvLogFormat     = "CLTV_LOG_FORMAT"
)

// NewConfig creates a configuration that reproduces the reference run
func NewConfig() Config {
	return Config{
		Input:         DefaultInput,
		Country:       cltv.DefaultCountry,
		ProfitMargin:  cltv.DefaultProfitMargin,
		FeatureMonths: append([]string{}, cltv.DefaultFeatureMonths...),
		TestSize:      cltv.DefaultTestSize,
		RandomSeed:    cltv.DefaultRandomSeed,
		TopCountries:  DefaultTopCountries,
		ChartPath:     DefaultChartPath,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadFromFile reads a JSON or YAML file over the defaults. Keys absent from
// the file keep their default values.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.NewFileError("LoadConfig", filename, err)
	}

	config := NewConfig()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, errors.NewFormatError("LoadConfig", "", fmt.Sprintf("unsupported config file format: %s", ext))
	}
	if err != nil {
		return Config{}, errors.NewFormatError("LoadConfig", "", fmt.Sprintf("parsing %s: %v", filename, err))
	}
	return config, nil
}

// ApplyEnv overrides fields from CLTV_* variables found by lookup, usually
// os.LookupEnv. A value that does not parse is an error.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if val, ok := lookup(key); ok {
			*dst = val
		}
	}
	str(EnvInput, &c.Input)
	str(EnvSheet, &c.Sheet)
	str(EnvCountry, &c.Country)
	str(EnvChartPath, &c.ChartPath)
	str(EnvExportPath, &c.ExportPath)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)

	if val, ok := lookup(EnvFeatureMonths); ok {
		c.FeatureMonths = SplitList(val)
	}

	if val, ok := lookup(EnvProfitMargin); ok {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return envError(EnvProfitMargin, val)
		}
		c.ProfitMargin = parsed
	}

	if val, ok := lookup(EnvTestSize); ok {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return envError(EnvTestSize, val)
		}
		c.TestSize = parsed
	}

	if val, ok := lookup(EnvRandomSeed); ok {
		parsed, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return envError(EnvRandomSeed, val)
		}
		c.RandomSeed = parsed
	}

	if val, ok := lookup(EnvTopCountries); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return envError(EnvTopCountries, val)
		}
		c.TopCountries = parsed
	}

	if val, ok := lookup(EnvTopCustomers); ok {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return envError(EnvTopCustomers, val)
		}
		c.TopCustomers = parsed
	}

	return nil
}

func envError(key, val string) error {
	return errors.NewInvalidInputError("ApplyEnv", fmt.Sprintf("%s: cannot parse %q", key, val))
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty items
func SplitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate validates the configuration and returns the first problem found.
// The profit margin must be positive and has no upper bound.
func (c *Config) Validate() error {
	const op = "ValidateConfig"

	return validation.NewCompoundValidator(
		notBlank(op, "input path", c.Input),
		notBlank(op, "country", c.Country),
		validation.NewRangeValidator(op, "profit margin", c.ProfitMargin, 0, math.Inf(1)),
		validation.NewRangeValidator(op, "test size", c.TestSize, 0, 1),
		check(op, c.TopCountries >= 1, fmt.Sprintf("top countries must be positive, got %d", c.TopCountries)),
		check(op, c.TopCustomers >= 0, fmt.Sprintf("top customers must be non-negative, got %d", c.TopCustomers)),
		validation.ValidatorFunc(func() error { return validateMonths(op, c.FeatureMonths) }),
		check(op, slices.Contains(logLevels, strings.ToLower(c.Log.Level)), fmt.Sprintf("unknown log level %q", c.Log.Level)),
		check(op, slices.Contains(logFormats, strings.ToLower(c.Log.Format)), fmt.Sprintf("unknown log format %q", c.Log.Format)),
	).Validate()
}

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}
)

func check(op string, ok bool, message string) validation.Validator {
	return validation.ValidatorFunc(func() error {
		if ok {
			return nil
		}
		return errors.NewInvalidInputError(op, message)
	})
}

func notBlank(op, name, value string) validation.Validator {
	return check(op, strings.TrimSpace(value) != "", name+" is empty")
}

// validateMonths requires at least one label, each like Dec-2011 and none
// repeated
func validateMonths(op string, months []string) error {
	if len(months) == 0 {
		return errors.NewInvalidInputError(op, "no feature months")
	}
	seen := make(map[string]bool, len(months))
	for _, month := range months {
		if _, err := time.Parse(cltv.MonthLayout, month); err != nil {
			return errors.NewInvalidInputError(op, fmt.Sprintf("feature month %q is not like %s", month, cltv.MonthLayout))
		}
		if seen[month] {
			return errors.NewInvalidInputError(op, fmt.Sprintf("feature month %q listed twice", month))
		}
		seen[month] = true
	}
	return nil
}

// RegressionOptions returns the regression settings of the configuration
func (c *Config) RegressionOptions() cltv.RegressionOptions {
	return cltv.RegressionOptions{
		FeatureMonths: append([]string{}, c.FeatureMonths...),
		TestSize:      c.TestSize,
		Seed:          c.RandomSeed,
	}
}
