package engine

import "github.com/openfroyo/themesync/pkg/models"

// ActionType names an intent. Completion intents use the past tense.
type ActionType string

const (
	ActionFetchWPComThemes       ActionType = "FETCH_WP_COM_THEMES"
	ActionFetchedWPComThemes     ActionType = "FETCHED_WP_COM_THEMES"
	ActionFetchInstalledThemes   ActionType = "FETCH_INSTALLED_THEMES"
	ActionFetchedInstalledThemes ActionType = "FETCHED_INSTALLED_THEMES"
	ActionFetchCurrentTheme      ActionType = "FETCH_CURRENT_THEME"
	ActionFetchedCurrentTheme    ActionType = "FETCHED_CURRENT_THEME"
	ActionSearchThemes           ActionType = "SEARCH_THEMES"
	ActionSearchedThemes         ActionType = "SEARCHED_THEMES"
	ActionActivateTheme          ActionType = "ACTIVATE_THEME"
	ActionActivatedTheme         ActionType = "ACTIVATED_THEME"
	ActionInstallTheme           ActionType = "INSTALL_THEME"
	ActionInstalledTheme         ActionType = "INSTALLED_THEME"
	ActionDeleteTheme            ActionType = "DELETE_THEME"
	ActionDeletedTheme           ActionType = "DELETED_THEME"
	ActionRemoveTheme            ActionType = "REMOVE_THEME"
	ActionRemoveSiteThemes       ActionType = "REMOVE_SITE_THEMES"
)

// Action is an intent handled by ThemeStore.OnAction. The set of
// implementations is closed to this package.
type Action interface {
	Type() ActionType
	isAction()
}

// FetchedThemesPayload completes a catalog or installed-themes fetch.
type FetchedThemesPayload struct {
	Site   *models.Site
	Themes []*models.Theme
	Error  *ThemesError
}

// IsError reports whether the payload is a failure.
func (p *FetchedThemesPayload) IsError() bool { return p != nil && p.Error != nil }

// FetchedCurrentThemePayload completes a current-theme fetch.
type FetchedCurrentThemePayload struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

// IsError reports whether the payload is a failure.
func (p *FetchedCurrentThemePayload) IsError() bool { return p != nil && p.Error != nil }

// SearchedThemesPayload completes a catalog search.
type SearchedThemesPayload struct {
	SearchTerm string
	Themes     []*models.Theme
	Error      *ThemesError
}

// IsError reports whether the payload is a failure.
func (p *SearchedThemesPayload) IsError() bool { return p != nil && p.Error != nil }

// ThemePayload is both the request and the completion of activate, install
// and delete.
type ThemePayload struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

// IsError reports whether the payload is a failure.
func (p *ThemePayload) IsError() bool { return p != nil && p.Error != nil }

// NewThemePayload creates a request payload for site and theme.
func NewThemePayload(site *models.Site, theme *models.Theme) *ThemePayload {
	return &ThemePayload{Site: site, Theme: theme}
}

// FetchWPComThemes requests the WordPress.com catalog.
type FetchWPComThemes struct{}

// FetchedWPComThemes carries the catalog fetch result.
type FetchedWPComThemes struct{ Payload *FetchedThemesPayload }

// FetchInstalledThemes requests the themes installed on a site.
type FetchInstalledThemes struct{ Site *models.Site }

// FetchedInstalledThemes carries the installed-themes fetch result.
type FetchedInstalledThemes struct{ Payload *FetchedThemesPayload }

// FetchCurrentTheme requests a site's active theme.
type FetchCurrentTheme struct{ Site *models.Site }

// FetchedCurrentTheme carries the current-theme fetch result.
type FetchedCurrentTheme struct{ Payload *FetchedCurrentThemePayload }

// SearchThemes searches the catalog.
type SearchThemes struct{ SearchTerm string }

// SearchedThemes carries the search result.
type SearchedThemes struct{ Payload *SearchedThemesPayload }

// ActivateTheme activates a theme on a site.
type ActivateTheme struct{ Payload *ThemePayload }

// ActivatedTheme carries the activation result.
type ActivatedTheme struct{ Payload *ThemePayload }

// InstallTheme installs a catalog theme on a site.
type InstallTheme struct{ Payload *ThemePayload }

// InstalledTheme carries the install result.
type InstalledTheme struct{ Payload *ThemePayload }

// DeleteTheme deletes an installed theme from a site.
type DeleteTheme struct{ Payload *ThemePayload }

// DeletedTheme carries the delete result.
type DeletedTheme struct{ Payload *ThemePayload }

// RemoveTheme drops a theme row from the cache only.
type RemoveTheme struct{ Theme *models.Theme }

// RemoveSiteThemes drops every cached row of a site, e.g. on sign-out.
type RemoveSiteThemes struct{ Site *models.Site }

func (FetchWPComThemes) Type() ActionType       { return ActionFetchWPComThemes }
func (FetchedWPComThemes) Type() ActionType     { return ActionFetchedWPComThemes }
func (FetchInstalledThemes) Type() ActionType   { return ActionFetchInstalledThemes }
func (FetchedInstalledThemes) Type() ActionType { return ActionFetchedInstalledThemes }
func (FetchCurrentTheme) Type() ActionType      { return ActionFetchCurrentTheme }
func (FetchedCurrentTheme) Type() ActionType    { return ActionFetchedCurrentTheme }
func (SearchThemes) Type() ActionType           { return ActionSearchThemes }
func (SearchedThemes) Type() ActionType         { return ActionSearchedThemes }
func (ActivateTheme) Type() ActionType          { return ActionActivateTheme }
func (ActivatedTheme) Type() ActionType         { return ActionActivatedTheme }
func (InstallTheme) Type() ActionType           { return ActionInstallTheme }
func (InstalledTheme) Type() ActionType         { return ActionInstalledTheme }
func (DeleteTheme) Type() ActionType            { return ActionDeleteTheme }
func (DeletedTheme) Type() ActionType           { return ActionDeletedTheme }
func (RemoveTheme) Type() ActionType            { return ActionRemoveTheme }
func (RemoveSiteThemes) Type() ActionType       { return ActionRemoveSiteThemes }

func (FetchWPComThemes) isAction()       {}
func (FetchedWPComThemes) isAction()     {}
func (FetchInstalledThemes) isAction()   {}
func (FetchedInstalledThemes) isAction() {}
func (FetchCurrentTheme) isAction()      {}
func (FetchedCurrentTheme) isAction()    {}
func (SearchThemes) isAction()           {}
func (SearchedThemes) isAction()         {}
func (ActivateTheme) isAction()          {}
func (ActivatedTheme) isAction()         {}
func (InstallTheme) isAction()           {}
func (InstalledTheme) isAction()         {}
func (DeleteTheme) isAction()            {}
func (DeletedTheme) isAction()           {}
func (RemoveTheme) isAction()            {}
func (RemoveSiteThemes) isAction()       {}

// OperationOf returns the operation an action belongs to.
func OperationOf(a Action) Operation {
	switch a.(type) {
	case FetchWPComThemes, FetchedWPComThemes:
		return OpFetchWPComThemes
	case FetchInstalledThemes, FetchedInstalledThemes:
		return OpFetchInstalledThemes
	case FetchCurrentTheme, FetchedCurrentTheme:
		return OpFetchCurrentTheme
	case SearchThemes, SearchedThemes:
		return OpSearchThemes
	case ActivateTheme, ActivatedTheme:
		return OpActivateTheme
	case InstallTheme, InstalledTheme:
		return OpInstallTheme
	case DeleteTheme, DeletedTheme:
		return OpDeleteTheme
	case RemoveTheme:
		return OpRemoveTheme
	case RemoveSiteThemes:
		return OpRemoveSiteThemes
	default:
		return ""
	}
}

// IsCompletion reports whether the action carries a result.
func IsCompletion(a Action) bool {
	switch a.(type) {
	case FetchedWPComThemes, FetchedInstalledThemes, FetchedCurrentTheme,
		SearchedThemes, ActivatedTheme, InstalledTheme, DeletedTheme:
		return true
	default:
		return false
	}
}
