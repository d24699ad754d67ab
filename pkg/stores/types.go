package stores

import (
	"context"
	"database/sql"

	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/models"
)

// Partition selects which rows a ThemeFilter matches.
type Partition string

const (
	PartitionAll       Partition = ""
	PartitionCatalog   Partition = "wpcom"
	PartitionInstalled Partition = "installed"
)

// ThemeFilter narrows ListThemes. Zero values match everything.
type ThemeFilter struct {
	Partition  Partition
	SiteID     *int64
	ActiveOnly bool
	// Query matches theme id or name, case-insensitively.
	Query  string
	Limit  int
	Offset int
}

// ThemeCounts summarizes the cache contents.
type ThemeCounts struct {
	Catalog   int           `json:"catalog"`
	Installed int           `json:"installed"`
	BySite    map[int64]int `json:"by_site"`
}

// Store defines the interface for the theme persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Cache operations used by the theme engine
	engine.Cache

	// Reporting
	ListThemes(ctx context.Context, filter ThemeFilter) ([]*models.Theme, error)
	CountThemes(ctx context.Context) (*ThemeCounts, error)

	// Utility
	HealthCheck(ctx context.Context) error
}

var _ Store = (*SQLiteStore)(nil)
