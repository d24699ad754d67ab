package engine

import (
	"context"

	"github.com/openfroyo/themesync/pkg/models"
)

// Gateway performs theme operations against the remote source.
//
// Calls may block; the engine runs each on its own goroutine and feeds the
// returned completion back through the Dispatcher. Implementations must
// report every failure in the payload's Error field and always return a
// non-nil payload.
type Gateway interface {
	// FetchWPComThemes fetches the WordPress.com catalog.
	FetchWPComThemes(ctx context.Context) *FetchedThemesPayload

	// FetchInstalledThemes fetches the themes installed on a Jetpack site.
	FetchInstalledThemes(ctx context.Context, site *models.Site) *FetchedThemesPayload

	// FetchCurrentTheme fetches the site's active theme.
	FetchCurrentTheme(ctx context.Context, site *models.Site) *FetchedCurrentThemePayload

	// SearchThemes searches the catalog.
	SearchThemes(ctx context.Context, searchTerm string) *SearchedThemesPayload

	// ActivateTheme activates a theme on the site.
	ActivateTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload

	// InstallTheme installs a catalog theme on a Jetpack site.
	InstallTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload

	// DeleteTheme deletes an installed theme from a Jetpack site.
	DeleteTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload
}

// Cache is the local persisted mirror of remote theme state.
//
// Each write is atomic for the row set it touches: observers never see a
// half-replaced partition or two active themes for one site.
type Cache interface {
	// UpsertCatalogThemes inserts or updates catalog rows.
	UpsertCatalogThemes(ctx context.Context, themes []*models.Theme) error

	// ReplaceCatalogThemes makes the catalog partition equal to themes.
	ReplaceCatalogThemes(ctx context.Context, themes []*models.Theme) error

	// UpsertInstalledThemes inserts or updates the site's installed rows.
	UpsertInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error

	// ReplaceInstalledThemes makes the site's installed partition equal to themes.
	ReplaceInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error

	// UpsertTheme inserts or updates a single row by identity.
	UpsertTheme(ctx context.Context, theme *models.Theme) error

	// RemoveTheme deletes a single row by identity.
	RemoveTheme(ctx context.Context, theme *models.Theme) error

	// RemoveAllThemesForSite deletes every row of the site and returns the count.
	RemoveAllThemesForSite(ctx context.Context, site *models.Site) (int64, error)

	// SetActiveTheme stores theme as the site's only active theme.
	SetActiveTheme(ctx context.Context, site *models.Site, theme *models.Theme) error

	// GetActiveTheme returns the site's active theme, or nil.
	GetActiveTheme(ctx context.Context, site *models.Site) (*models.Theme, error)

	// GetThemeByID returns a catalog (isCatalog) or installed theme, or nil.
	GetThemeByID(ctx context.Context, themeID string, isCatalog bool) (*models.Theme, error)

	// GetThemesForSite returns every row associated with the site.
	GetThemesForSite(ctx context.Context, site *models.Site) ([]*models.Theme, error)

	// GetWPComThemes returns the catalog partition.
	GetWPComThemes(ctx context.Context) ([]*models.Theme, error)
}

// Emitter publishes notifications to observers.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// Dispatcher feeds actions to the engine.
type Dispatcher interface {
	Dispatch(action Action) error

	// DispatchCompletion queues a gateway completion. It never fails for a
	// full queue, so completions always reach the single action loop.
	DispatchCompletion(action Action) error
}
