// Package config loads and validates the harness configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"searchrunner/internal/benchdata"
	"searchrunner/internal/logging"
)

// Config is the full harness configuration.
type Config struct {
	Cluster   ClusterConfig   `yaml:"cluster"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Search    SearchConfig    `yaml:"search"`
	Loader    LoaderConfig    `yaml:"loader"`
	Log       LogConfig       `yaml:"log"`
}

// ClusterConfig sizes the query cluster.
type ClusterConfig struct {
	NodeCount int `yaml:"node_count"`
}

// BenchmarkConfig selects the benchmark-data backend and the tables to
// load. An empty table list means every dataset table.
type BenchmarkConfig struct {
	Driver string   `yaml:"driver"`
	DSN    string   `yaml:"dsn"`
	Tables []string `yaml:"tables"`
}

// SearchConfig carries the search catalog settings. Durations are
// strings so the YAML reads the way the catalog keys are documented.
type SearchConfig struct {
	DefaultSchema       string `yaml:"default_schema"`
	TableDescriptionDir string `yaml:"table_description_dir"`
	ScrollSize          int    `yaml:"scroll_size"`
	ScrollTimeout       string `yaml:"scroll_timeout"`
	RequestTimeout      string `yaml:"request_timeout"`
	MaxRequestRetries   int    `yaml:"max_request_retries"`
	MaxRequestRetryTime string `yaml:"max_request_retry_time"`
}

// LoaderConfig bounds batch formation.
type LoaderConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path, or returns the defaults
// when path is empty.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate re-checks a configuration after flag overrides.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Cluster.NodeCount == 0 {
		c.Cluster.NodeCount = 2
	}
	if c.Benchmark.Driver == "" {
		c.Benchmark.Driver = "sqlite"
	}
	if len(c.Benchmark.Tables) == 0 {
		c.Benchmark.Tables = benchdata.TableNames()
	}
	if c.Search.DefaultSchema == "" {
		c.Search.DefaultSchema = benchdata.SchemaName
	}
	if c.Search.TableDescriptionDir == "" {
		c.Search.TableDescriptionDir = "etc/table-descriptions"
	}
	if c.Search.ScrollSize == 0 {
		c.Search.ScrollSize = 1000
	}
	if c.Search.ScrollTimeout == "" {
		c.Search.ScrollTimeout = "1m"
	}
	if c.Search.RequestTimeout == "" {
		c.Search.RequestTimeout = "10s"
	}
	if c.Search.MaxRequestRetries == 0 {
		c.Search.MaxRequestRetries = 5
	}
	if c.Search.MaxRequestRetryTime == "" {
		c.Search.MaxRequestRetryTime = "10s"
	}
	if c.Loader.BatchSize == 0 {
		c.Loader.BatchSize = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Cluster.NodeCount < 1 {
		return fmt.Errorf("cluster.node_count must be at least 1, got %d", c.Cluster.NodeCount)
	}

	switch c.Benchmark.Driver {
	case "sqlite":
	case "postgres":
		if c.Benchmark.DSN == "" {
			return fmt.Errorf("benchmark.dsn is required when driver is postgres")
		}
	default:
		return fmt.Errorf("benchmark.driver must be sqlite or postgres, got %q", c.Benchmark.Driver)
	}

	for _, table := range c.Benchmark.Tables {
		if _, ok := benchdata.Lookup(table); !ok {
			return fmt.Errorf("benchmark.tables: unknown table %q", table)
		}
	}

	if c.Search.ScrollSize < 1 {
		return fmt.Errorf("search.scroll_size must be at least 1, got %d", c.Search.ScrollSize)
	}
	if c.Search.MaxRequestRetries < 1 {
		return fmt.Errorf("search.max_request_retries must be at least 1, got %d", c.Search.MaxRequestRetries)
	}
	for key, value := range map[string]string{
		"search.scroll_timeout":         c.Search.ScrollTimeout,
		"search.request_timeout":        c.Search.RequestTimeout,
		"search.max_request_retry_time": c.Search.MaxRequestRetryTime,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", key, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", key, value)
		}
	}

	if c.Loader.BatchSize < 1 {
		return fmt.Errorf("loader.batch_size must be at least 1, got %d", c.Loader.BatchSize)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// CatalogConfig renders the search settings as the catalog config map,
// with the keys the search plugin parses.
func (c *Config) CatalogConfig() map[string]string {
	return map[string]string{
		"default-schema-name":         c.Search.DefaultSchema,
		"table-description-directory": c.Search.TableDescriptionDir,
		"scroll-size":                 strconv.Itoa(c.Search.ScrollSize),
		"scroll-timeout":              c.Search.ScrollTimeout,
		"request-timeout":             c.Search.RequestTimeout,
		"max-request-retries":         strconv.Itoa(c.Search.MaxRequestRetries),
		"max-request-retry-time":      c.Search.MaxRequestRetryTime,
	}
}
