package config

import (
	"time"

	"github.com/openfroyo/themesync/pkg/gateway/wpcom"
	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/stores"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

// Config is the themesync configuration file.
type Config struct {
	// Database configures the local theme cache.
	Database stores.Config `yaml:"database"`

	// WPCom configures the WordPress.com REST client.
	WPCom wpcom.Config `yaml:"wpcom"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry *telemetry.Config `yaml:"telemetry" validate:"required"`

	// Dispatcher configures the serialized action loop.
	Dispatcher DispatcherConfig `yaml:"dispatcher"`

	// Sync configures periodic reconciliation in serve mode.
	Sync SyncConfig `yaml:"sync"`

	// Sites lists the sites themesync manages.
	Sites []models.Site `yaml:"sites" validate:"dive"`
}

// DispatcherConfig configures the action queue.
type DispatcherConfig struct {
	// QueueSize is the maximum number of pending actions.
	QueueSize int `yaml:"queue_size" validate:"gte=0"`
}

// SyncConfig configures periodic reconciliation.
type SyncConfig struct {
	// Interval between full syncs. Zero disables periodic sync.
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	// Catalog also refreshes the WordPress.com catalog on each sync.
	Catalog bool `yaml:"catalog"`
}

// Site returns the configured site with the given local id.
func (c *Config) Site(id int64) (*models.Site, bool) {
	for i := range c.Sites {
		if c.Sites[i].ID == id {
			return &c.Sites[i], true
		}
	}
	return nil, false
}
