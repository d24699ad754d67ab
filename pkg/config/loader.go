package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/gateway/wpcom"
	"github.com/openfroyo/themesync/pkg/stores"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

// TokenEnv overrides wpcom.token when set.
const TokenEnv = "THEMESYNC_WPCOM_TOKEN"

var (
	validateOnce sync.Once
	validate     *validator.Validate

	schemasOnce sync.Once
	schemas     *SchemaRegistry
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

func schemaRegistry() *SchemaRegistry {
	schemasOnce.Do(func() {
		schemas = NewSchemaRegistry()
	})
	return schemas
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: stores.Config{
			Path:            "themesync.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		WPCom:      wpcom.DefaultConfig(),
		Telemetry:  telemetry.DefaultConfig(),
		Dispatcher: DispatcherConfig{QueueSize: engine.DefaultQueueSize},
		Sync: SyncConfig{
			Interval: 15 * time.Minute,
			Catalog:  true,
		},
	}
}

// Load reads, decodes and validates a YAML configuration file. An empty
// path returns the defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnv(cfg)
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(ctx, data)
}

// Parse decodes and validates YAML configuration data.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	if err := schemaRegistry().ValidateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.WPCom.Token = token
	}
}

// Validate checks struct constraints, telemetry settings and site uniqueness.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	seen := make(map[int64]bool, len(c.Sites))
	for _, site := range c.Sites {
		if seen[site.ID] {
			return fmt.Errorf("invalid config: duplicate site id %d", site.ID)
		}
		seen[site.ID] = true
	}

	return nil
}
