package access

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/mapping"
)

// Config is the YAML configuration of a DataDomain.
//
//	datamap: model/artist.yaml
//	driver: postgres
//	dsn: postgres://localhost/gallery?sslmode=disable
//	slow_query: 200ms
//	cache_ttl: 1m
type Config struct {
	// DataMap is the path of the mapping file.
	DataMap string `yaml:"datamap"`
	// Driver is the database/sql driver name.
	Driver string `yaml:"driver"`
	// DSN is the data source name passed to the driver.
	DSN string `yaml:"dsn"`
	// Adapter overrides the adapter chosen from the driver dialect.
	Adapter string `yaml:"adapter,omitempty"`
	// SlowQuery logs statements running longer. Zero disables statistics.
	SlowQuery time.Duration `yaml:"slow_query,omitempty"`
	// Debug logs every statement.
	Debug bool `yaml:"debug,omitempty"`
	// CacheTTL enables the in-memory query cache with the entry lifetime.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("access: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a Config from YAML. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("access: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DataMap == "" {
		errs = append(errs, errors.New("access: config: missing datamap"))
	}
	if c.Driver == "" {
		errs = append(errs, errors.New("access: config: missing driver"))
	}
	if c.SlowQuery < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("access: config: negative duration"))
	}
	return errors.Join(errs...)
}

// Open loads the mapping, opens the database and returns the configured
// domain. Options are applied after the configuration.
func Open(cfg *Config, opts ...Option) (*DataDomain, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m, err := mapping.Load(cfg.DataMap)
	if err != nil {
		return nil, err
	}
	drv, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("access: open %s: %w", cfg.Driver, err)
	}
	var base []Option
	if cfg.Adapter != "" {
		a, err := adapter.Lookup(cfg.Adapter)
		if err != nil {
			return nil, errors.Join(err, drv.Close())
		}
		base = append(base, WithAdapter(a))
	}
	if cfg.CacheTTL > 0 {
		base = append(base, WithCache(NewMemoryCache(), cfg.CacheTTL))
	}
	d, err := NewDataDomain(m, drv, append(base, opts...)...)
	if err != nil {
		return nil, errors.Join(err, drv.Close())
	}
	var wrapped dialect.Driver = drv
	if cfg.SlowQuery > 0 {
		wrapped = sql.NewStatsDriver(wrapped, sql.WithSlowThreshold(cfg.SlowQuery), sql.WithSlowQueryLog(d.logger))
	}
	if cfg.Debug {
		wrapped = sql.NewDebugDriver(wrapped, d.logger)
	}
	d.driver = wrapped
	return d, nil
}
