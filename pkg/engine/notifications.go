package engine

import "github.com/openfroyo/themesync/pkg/models"

// EventName names a notification type.
type EventName string

const (
	EventThemesChanged       EventName = "themes_changed"
	EventCurrentThemeFetched EventName = "current_theme_fetched"
	EventThemesSearched      EventName = "themes_searched"
	EventThemeActivated      EventName = "theme_activated"
	EventThemeRemoved        EventName = "theme_removed"
	EventThemeDeleted        EventName = "theme_deleted"
	EventThemeInstalled      EventName = "theme_installed"
)

// Event is a notification published after an intent completes. The set of
// implementations is closed to this package.
type Event interface {
	Name() EventName
	// Err is the failure, or nil on success.
	Err() *ThemesError
	isEvent()
}

// OnThemesChanged follows a catalog or installed fetch and a site teardown.
type OnThemesChanged struct {
	Site   *models.Site
	Origin ActionType
	Error  *ThemesError
}

// OnCurrentThemeFetched follows a current-theme fetch.
type OnCurrentThemeFetched struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

// OnThemesSearched follows a search.
type OnThemesSearched struct {
	SearchTerm string
	Results    []*models.Theme
	Error      *ThemesError
}

// OnThemeActivated follows an activation.
type OnThemeActivated struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

// OnThemeRemoved follows a local-only removal.
type OnThemeRemoved struct {
	Theme *models.Theme
	Error *ThemesError
}

// OnThemeDeleted follows a remote delete.
type OnThemeDeleted struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

// OnThemeInstalled follows an install.
type OnThemeInstalled struct {
	Site  *models.Site
	Theme *models.Theme
	Error *ThemesError
}

func (OnThemesChanged) Name() EventName       { return EventThemesChanged }
func (OnCurrentThemeFetched) Name() EventName { return EventCurrentThemeFetched }
func (OnThemesSearched) Name() EventName      { return EventThemesSearched }
func (OnThemeActivated) Name() EventName      { return EventThemeActivated }
func (OnThemeRemoved) Name() EventName        { return EventThemeRemoved }
func (OnThemeDeleted) Name() EventName        { return EventThemeDeleted }
func (OnThemeInstalled) Name() EventName      { return EventThemeInstalled }

func (e OnThemesChanged) Err() *ThemesError       { return e.Error }
func (e OnCurrentThemeFetched) Err() *ThemesError { return e.Error }
func (e OnThemesSearched) Err() *ThemesError      { return e.Error }
func (e OnThemeActivated) Err() *ThemesError      { return e.Error }
func (e OnThemeRemoved) Err() *ThemesError        { return e.Error }
func (e OnThemeDeleted) Err() *ThemesError        { return e.Error }
func (e OnThemeInstalled) Err() *ThemesError      { return e.Error }

func (OnThemesChanged) isEvent()       {}
func (OnCurrentThemeFetched) isEvent() {}
func (OnThemesSearched) isEvent()      {}
func (OnThemeActivated) isEvent()      {}
func (OnThemeRemoved) isEvent()        {}
func (OnThemeDeleted) isEvent()        {}
func (OnThemeInstalled) isEvent()      {}

// EventFor returns the notification an action ultimately produces. Every
// intent and its completion share one notification type.
func EventFor(a Action) EventName {
	switch a.(type) {
	case FetchWPComThemes, FetchedWPComThemes,
		FetchInstalledThemes, FetchedInstalledThemes,
		RemoveSiteThemes:
		return EventThemesChanged
	case FetchCurrentTheme, FetchedCurrentTheme:
		return EventCurrentThemeFetched
	case SearchThemes, SearchedThemes:
		return EventThemesSearched
	case ActivateTheme, ActivatedTheme:
		return EventThemeActivated
	case InstallTheme, InstalledTheme:
		return EventThemeInstalled
	case DeleteTheme, DeletedTheme:
		return EventThemeDeleted
	case RemoveTheme:
		return EventThemeRemoved
	default:
		return ""
	}
}

// SiteOf returns the site a notification refers to, or nil.
func SiteOf(e Event) *models.Site {
	switch ev := e.(type) {
	case OnThemesChanged:
		return ev.Site
	case OnCurrentThemeFetched:
		return ev.Site
	case OnThemeActivated:
		return ev.Site
	case OnThemeDeleted:
		return ev.Site
	case OnThemeInstalled:
		return ev.Site
	default:
		return nil
	}
}

// ThemeOf returns the theme a notification refers to, or nil.
func ThemeOf(e Event) *models.Theme {
	switch ev := e.(type) {
	case OnCurrentThemeFetched:
		return ev.Theme
	case OnThemeActivated:
		return ev.Theme
	case OnThemeRemoved:
		return ev.Theme
	case OnThemeDeleted:
		return ev.Theme
	case OnThemeInstalled:
		return ev.Theme
	default:
		return nil
	}
}
