package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/themesync/pkg/models"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string        `yaml:"path" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a fresh database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	if s.cfg.Path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = s.RollbackTx(tx)
		return err
	}
	if err := s.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const themeColumns = `id, theme_id, local_site_id, is_wpcom_theme, name, description, slug, version,
		author_name, author_url, theme_url, screenshot_url, demo_url, download_url,
		stylesheet, price, active, auto_update`

const upsertThemeQuery = `
	INSERT INTO themes (
		theme_id, local_site_id, is_wpcom_theme, name, description, slug, version,
		author_name, author_url, theme_url, screenshot_url, demo_url, download_url,
		stylesheet, price, active, auto_update
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(theme_id, is_wpcom_theme, local_site_id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		slug = excluded.slug,
		version = excluded.version,
		author_name = excluded.author_name,
		author_url = excluded.author_url,
		theme_url = excluded.theme_url,
		screenshot_url = excluded.screenshot_url,
		demo_url = excluded.demo_url,
		download_url = excluded.download_url,
		stylesheet = excluded.stylesheet,
		price = excluded.price,
		active = excluded.active,
		auto_update = excluded.auto_update,
		updated_at = CURRENT_TIMESTAMP
`

func upsertTheme(ctx context.Context, db execer, theme *models.Theme) error {
	if err := models.Validate(theme); err != nil {
		return fmt.Errorf("invalid theme %q: %w", theme.ThemeID, err)
	}
	key := theme.Key()
	_, err := db.ExecContext(ctx, upsertThemeQuery,
		key.ThemeID,
		key.LocalSiteID,
		key.IsWPComTheme,
		theme.Name,
		theme.Description,
		theme.Slug,
		theme.Version,
		theme.AuthorName,
		theme.AuthorURL,
		theme.ThemeURL,
		theme.ScreenshotURL,
		theme.DemoURL,
		theme.DownloadURL,
		theme.Stylesheet,
		theme.Price,
		theme.Active,
		theme.AutoUpdate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert theme %s: %w", key, err)
	}
	return nil
}

// asCatalog returns a copy of theme stored in the catalog partition.
func asCatalog(theme *models.Theme) *models.Theme {
	row := theme.Clone()
	row.ID = 0
	row.IsWPComTheme = true
	row.LocalSiteID = 0
	return row
}

// asInstalled returns a copy of theme stored in the site's installed
// partition, keeping its active flag.
func asInstalled(theme *models.Theme, site *models.Site) *models.Theme {
	row := theme.Clone()
	row.ID = 0
	row.IsWPComTheme = false
	row.LocalSiteID = site.LocalID()
	return row
}

const clearActiveQuery = `
	UPDATE themes SET active = 0, updated_at = CURRENT_TIMESTAMP
	WHERE local_site_id = ? AND is_wpcom_theme = 0 AND active = 1
`

func clearActive(ctx context.Context, db execer, siteID int64) error {
	if _, err := db.ExecContext(ctx, clearActiveQuery, siteID); err != nil {
		return fmt.Errorf("failed to clear active theme: %w", err)
	}
	return nil
}

// upsertInstalled writes the site's rows so that at most one of them is
// active. When several incoming rows are active the last one wins, and any
// incoming active row replaces the site's current active theme.
func upsertInstalled(ctx context.Context, tx *sql.Tx, site *models.Site, themes []*models.Theme) error {
	rows := make([]*models.Theme, len(themes))
	active := -1
	for i, t := range themes {
		rows[i] = asInstalled(t, site)
		if rows[i].Active {
			active = i
		}
	}

	if active >= 0 {
		if err := clearActive(ctx, tx, site.ID); err != nil {
			return err
		}
	}
	for i, row := range rows {
		row.Active = i == active
		if err := upsertTheme(ctx, tx, row); err != nil {
			return err
		}
	}
	return nil
}

// deleteMissing removes rows of a partition whose theme id is not in keep.
func deleteMissing(ctx context.Context, tx *sql.Tx, isCatalog bool, siteID int64, keep []*models.Theme) error {
	query := `DELETE FROM themes WHERE is_wpcom_theme = ? AND local_site_id = ?`
	args := []any{isCatalog, siteID}
	if len(keep) > 0 {
		placeholders := make([]string, len(keep))
		for i, t := range keep {
			placeholders[i] = "?"
			args = append(args, t.ThemeID)
		}
		query += ` AND theme_id NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete stale themes: %w", err)
	}
	return nil
}

// UpsertCatalogThemes inserts or updates catalog rows.
func (s *SQLiteStore) UpsertCatalogThemes(ctx context.Context, themes []*models.Theme) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range themes {
			if err := upsertTheme(ctx, tx, asCatalog(t)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceCatalogThemes makes the catalog partition equal to themes. Rows
// present before and after keep their row id.
func (s *SQLiteStore) ReplaceCatalogThemes(ctx context.Context, themes []*models.Theme) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteMissing(ctx, tx, true, 0, themes); err != nil {
			return err
		}
		for _, t := range themes {
			if err := upsertTheme(ctx, tx, asCatalog(t)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertInstalledThemes inserts or updates the site's installed rows.
func (s *SQLiteStore) UpsertInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error {
	if site == nil {
		return fmt.Errorf("site is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertInstalled(ctx, tx, site, themes)
	})
}

// ReplaceInstalledThemes makes the site's installed partition equal to themes.
func (s *SQLiteStore) ReplaceInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error {
	if site == nil {
		return fmt.Errorf("site is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteMissing(ctx, tx, false, site.ID, themes); err != nil {
			return err
		}
		return upsertInstalled(ctx, tx, site, themes)
	})
}

// UpsertTheme inserts or updates a single row by identity. An active
// installed row replaces the site's current active theme.
func (s *SQLiteStore) UpsertTheme(ctx context.Context, theme *models.Theme) error {
	if theme == nil {
		return fmt.Errorf("theme is required")
	}
	if theme.IsWPComTheme || !theme.Active {
		return upsertTheme(ctx, s.db, theme)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearActive(ctx, tx, theme.LocalSiteID); err != nil {
			return err
		}
		return upsertTheme(ctx, tx, theme)
	})
}

// RemoveTheme deletes a single row by identity. Removing a row that does
// not exist is not an error.
func (s *SQLiteStore) RemoveTheme(ctx context.Context, theme *models.Theme) error {
	if theme == nil {
		return fmt.Errorf("theme is required")
	}
	key := theme.Key()
	query := `DELETE FROM themes WHERE theme_id = ? AND is_wpcom_theme = ? AND local_site_id = ?`

	if _, err := s.db.ExecContext(ctx, query, key.ThemeID, key.IsWPComTheme, key.LocalSiteID); err != nil {
		return fmt.Errorf("failed to remove theme %s: %w", key, err)
	}
	return nil
}

// RemoveAllThemesForSite deletes every row of the site in one statement.
func (s *SQLiteStore) RemoveAllThemesForSite(ctx context.Context, site *models.Site) (int64, error) {
	if site == nil {
		return 0, fmt.Errorf("site is required")
	}
	query := `DELETE FROM themes WHERE local_site_id = ? AND is_wpcom_theme = 0`

	result, err := s.db.ExecContext(ctx, query, site.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove themes for site %d: %w", site.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// SetActiveTheme clears every active flag of the site and stores theme,
// bound to the site, as its only active row.
func (s *SQLiteStore) SetActiveTheme(ctx context.Context, site *models.Site, theme *models.Theme) error {
	if site == nil || theme == nil {
		return fmt.Errorf("site and theme are required")
	}

	row := asInstalled(theme, site)
	row.Active = true

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearActive(ctx, tx, site.ID); err != nil {
			return err
		}
		return upsertTheme(ctx, tx, row)
	})
}

// GetActiveTheme returns the site's active theme, or nil.
func (s *SQLiteStore) GetActiveTheme(ctx context.Context, site *models.Site) (*models.Theme, error) {
	if site == nil {
		return nil, nil
	}
	query := `SELECT ` + themeColumns + `
		FROM themes
		WHERE local_site_id = ? AND is_wpcom_theme = 0 AND active = 1
		ORDER BY id
		LIMIT 1
	`

	return s.queryOne(ctx, query, site.ID)
}

// GetThemeByID returns the first catalog or installed theme with themeID, or nil.
func (s *SQLiteStore) GetThemeByID(ctx context.Context, themeID string, isCatalog bool) (*models.Theme, error) {
	query := `SELECT ` + themeColumns + `
		FROM themes
		WHERE theme_id = ? AND is_wpcom_theme = ?
		ORDER BY id
		LIMIT 1
	`

	return s.queryOne(ctx, query, themeID, isCatalog)
}

// GetThemesForSite returns every row associated with the site.
func (s *SQLiteStore) GetThemesForSite(ctx context.Context, site *models.Site) ([]*models.Theme, error) {
	if site == nil {
		return []*models.Theme{}, nil
	}
	query := `SELECT ` + themeColumns + `
		FROM themes
		WHERE local_site_id = ? AND is_wpcom_theme = 0
		ORDER BY id
	`

	return s.queryMany(ctx, query, site.ID)
}

// GetWPComThemes returns the catalog partition.
func (s *SQLiteStore) GetWPComThemes(ctx context.Context) ([]*models.Theme, error) {
	query := `SELECT ` + themeColumns + `
		FROM themes
		WHERE is_wpcom_theme = 1
		ORDER BY id
	`

	return s.queryMany(ctx, query)
}

// ListThemes lists themes with optional filters and pagination
func (s *SQLiteStore) ListThemes(ctx context.Context, filter ThemeFilter) ([]*models.Theme, error) {
	var isCatalog *bool
	switch filter.Partition {
	case PartitionCatalog:
		v := true
		isCatalog = &v
	case PartitionInstalled:
		v := false
		isCatalog = &v
	}

	var like *string
	if q := strings.TrimSpace(filter.Query); q != "" {
		v := "%" + strings.ToLower(q) + "%"
		like = &v
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + themeColumns + `
		FROM themes
		WHERE (? IS NULL OR is_wpcom_theme = ?)
		  AND (? IS NULL OR local_site_id = ?)
		  AND (? = 0 OR active = 1)
		  AND (? IS NULL OR lower(theme_id) LIKE ? OR lower(name) LIKE ?)
		ORDER BY is_wpcom_theme DESC, local_site_id, id
		LIMIT ? OFFSET ?
	`

	return s.queryMany(ctx, query,
		isCatalog, isCatalog,
		filter.SiteID, filter.SiteID,
		filter.ActiveOnly,
		like, like, like,
		limit, filter.Offset,
	)
}

// CountThemes counts cached rows per partition and site.
func (s *SQLiteStore) CountThemes(ctx context.Context) (*ThemeCounts, error) {
	query := `
		SELECT is_wpcom_theme, local_site_id, COUNT(*)
		FROM themes
		GROUP BY is_wpcom_theme, local_site_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count themes: %w", err)
	}
	defer rows.Close()

	counts := &ThemeCounts{BySite: make(map[int64]int)}
	for rows.Next() {
		var (
			isCatalog bool
			siteID    int64
			n         int
		)
		if err := rows.Scan(&isCatalog, &siteID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan theme count: %w", err)
		}
		if isCatalog {
			counts.Catalog += n
			continue
		}
		counts.Installed += n
		counts.BySite[siteID] += n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating theme counts: %w", err)
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTheme(row rowScanner) (*models.Theme, error) {
	t := &models.Theme{}
	err := row.Scan(
		&t.ID,
		&t.ThemeID,
		&t.LocalSiteID,
		&t.IsWPComTheme,
		&t.Name,
		&t.Description,
		&t.Slug,
		&t.Version,
		&t.AuthorName,
		&t.AuthorURL,
		&t.ThemeURL,
		&t.ScreenshotURL,
		&t.DemoURL,
		&t.DownloadURL,
		&t.Stylesheet,
		&t.Price,
		&t.Active,
		&t.AutoUpdate,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (*models.Theme, error) {
	t, err := scanTheme(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Theme, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	defer rows.Close()

	themes := []*models.Theme{}
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		themes = append(themes, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating themes: %w", err)
	}

	return themes, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
