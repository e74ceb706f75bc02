// Package config loads settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"salesdata/internal/sales"
)

// ErrInvalidConfig is returned when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	S3        S3Config        `yaml:"s3"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
}

// GeneratorConfig controls dataset generation.
type GeneratorConfig struct {
	Seed      uint64 `yaml:"seed"`
	Customers int    `yaml:"customers"`
	Products  int    `yaml:"products"`
	Orders    int    `yaml:"orders"`
	OutputDir string `yaml:"output_dir"`

	// Max* cap the counts a generate request may ask for.
	MaxCustomers int `yaml:"max_customers"`
	MaxProducts  int `yaml:"max_products"`
	MaxOrders    int `yaml:"max_orders"`

	// AsOf anchors generated dates, YYYY-MM-DD. Empty means today.
	AsOf string `yaml:"as_of"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// URL is where clients reach the API.
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	opts := sales.DefaultOptions()
	limits := sales.DefaultLimits()
	return Config{
		Generator: GeneratorConfig{
			Seed:         opts.Seed,
			Customers:    opts.Customers,
			Products:     opts.Products,
			Orders:       opts.Orders,
			OutputDir:    "data/raw",
			MaxCustomers: limits.Customers,
			MaxProducts:  limits.Products,
			MaxOrders:    limits.Orders,
		},
		Server: ServerConfig{
			Addr: ":8081",
			URL:  "http://localhost:8081",
		},
		Log: LogConfig{Level: "info"},
		S3: S3Config{
			Prefix: "datasets",
		},
		RabbitMQ: RabbitMQConfig{
			Queue: "dataset.generated",
		},
	}
}

// Load reads path on top of the defaults, when path is not empty, then
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("SALESDATA_SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: SALESDATA_SEED: %v", ErrInvalidConfig, err)
		}
		c.Generator.Seed = seed
	}
	for key, dst := range map[string]*int{
		"SALESDATA_CUSTOMERS":     &c.Generator.Customers,
		"SALESDATA_PRODUCTS":      &c.Generator.Products,
		"SALESDATA_ORDERS":        &c.Generator.Orders,
		"SALESDATA_MAX_CUSTOMERS": &c.Generator.MaxCustomers,
		"SALESDATA_MAX_PRODUCTS":  &c.Generator.MaxProducts,
		"SALESDATA_MAX_ORDERS":    &c.Generator.MaxOrders,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}
	str(&c.Generator.OutputDir, "SALESDATA_OUTPUT_DIR")
	str(&c.Generator.AsOf, "SALESDATA_AS_OF")
	str(&c.Server.Addr, "SALESDATA_ADDR")
	str(&c.Server.URL, "SALESDATA_URL")
	str(&c.Log.Level, "SALESDATA_LOG_LEVEL")
	if v, ok := lookup("SALESDATA_LOG_DEVELOPMENT"); ok && v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SALESDATA_LOG_DEVELOPMENT: %v", ErrInvalidConfig, err)
		}
		c.Log.Development = dev
	}
	str(&c.Postgres.URL, "SALESDATA_DATABASE_URL", "DATABASE_URL")
	str(&c.S3.Bucket, "SALESDATA_S3_BUCKET")
	str(&c.S3.Prefix, "SALESDATA_S3_PREFIX")
	str(&c.S3.Region, "SALESDATA_S3_REGION", "AWS_REGION")
	str(&c.RabbitMQ.URL, "SALESDATA_RABBITMQ_URL", "RABBITMQ_URL")
	str(&c.RabbitMQ.Queue, "SALESDATA_RABBITMQ_QUEUE")
	return nil
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	g := c.Generator
	if g.Customers <= 0 || g.Products <= 0 || g.Orders <= 0 {
		return fmt.Errorf("%w: generator counts must be greater than zero", ErrInvalidConfig)
	}
	if g.MaxCustomers <= 0 || g.MaxProducts <= 0 || g.MaxOrders <= 0 {
		return fmt.Errorf("%w: generator max counts must be greater than zero", ErrInvalidConfig)
	}
	if g.Customers > g.MaxCustomers || g.Products > g.MaxProducts || g.Orders > g.MaxOrders {
		return fmt.Errorf("%w: generator counts exceed the configured maximums", ErrInvalidConfig)
	}
	if g.OutputDir == "" {
		return fmt.Errorf("%w: generator.output_dir is empty", ErrInvalidConfig)
	}
	if g.AsOf != "" {
		if _, err := sales.ParseDate(g.AsOf); err != nil {
			return fmt.Errorf("%w: generator.as_of: %v", ErrInvalidConfig, err)
		}
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		return fmt.Errorf("%w: s3.region is required when s3.bucket is set", ErrInvalidConfig)
	}
	if c.RabbitMQ.URL != "" && c.RabbitMQ.Queue == "" {
		return fmt.Errorf("%w: rabbitmq.queue is required when rabbitmq.url is set", ErrInvalidConfig)
	}
	return nil
}

// GeneratorOptions converts the generator section into sales.Options.
func (c Config) GeneratorOptions() (sales.Options, error) {
	opts := sales.Options{
		Seed:      c.Generator.Seed,
		Customers: c.Generator.Customers,
		Products:  c.Generator.Products,
		Orders:    c.Generator.Orders,
	}
	if c.Generator.AsOf != "" {
		asOf, err := sales.ParseDate(c.Generator.AsOf)
		if err != nil {
			return sales.Options{}, fmt.Errorf("%w: generator.as_of: %v", ErrInvalidConfig, err)
		}
		opts.AsOf = asOf
	}
	return opts, nil
}

// GeneratorLimits converts the generator maximums into sales.Limits.
func (c Config) GeneratorLimits() sales.Limits {
	return sales.Limits{
		Customers: c.Generator.MaxCustomers,
		Products:  c.Generator.MaxProducts,
		Orders:    c.Generator.MaxOrders,
	}
}

// NewLogger builds the zap logger described by the log section.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
		}
		zc.Level = level
	}
	return zc.Build()
}
