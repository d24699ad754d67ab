package models

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Theme is a single cached theme row.
type Theme struct {
	// ID is the row id assigned by the store. It is not part of the identity.
	ID int64 `json:"id,omitempty"`

	// ThemeID is the remote theme identifier (e.g. "twentysixteen").
	ThemeID string `json:"theme_id" validate:"required"`

	// LocalSiteID is the owning site, zero for catalog themes.
	LocalSiteID int64 `json:"local_site_id,omitempty" validate:"gte=0"`

	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Slug          string `json:"slug,omitempty"`
	Version       string `json:"version,omitempty"`
	AuthorName    string `json:"author_name,omitempty"`
	AuthorURL     string `json:"author_url,omitempty"`
	ThemeURL      string `json:"theme_url,omitempty"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	DemoURL       string `json:"demo_url,omitempty"`
	DownloadURL   string `json:"download_url,omitempty"`
	Stylesheet    string `json:"stylesheet,omitempty"`
	Price         string `json:"price,omitempty"`

	Active       bool `json:"active"`
	AutoUpdate   bool `json:"auto_update"`
	IsWPComTheme bool `json:"is_wpcom_theme"`
}

// ThemeKey is the identity of a cached theme row.
type ThemeKey struct {
	ThemeID      string
	IsWPComTheme bool
	LocalSiteID  int64
}

// String formats the key for logs.
func (k ThemeKey) String() string {
	if k.IsWPComTheme {
		return fmt.Sprintf("wpcom/%s", k.ThemeID)
	}
	return fmt.Sprintf("site-%d/%s", k.LocalSiteID, k.ThemeID)
}

// Key returns the theme's identity. Catalog themes never carry a site id.
func (t *Theme) Key() ThemeKey {
	key := ThemeKey{ThemeID: t.ThemeID, IsWPComTheme: t.IsWPComTheme}
	if !t.IsWPComTheme {
		key.LocalSiteID = t.LocalSiteID
	}
	return key
}

// Equal reports whether both themes have the same identity.
func (t *Theme) Equal(other *Theme) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Key() == other.Key()
}

// SameAttributes reports whether every stored attribute matches, ignoring the row id.
func (t *Theme) SameAttributes(other *Theme) bool {
	if t == nil || other == nil {
		return t == other
	}
	a, b := *t, *other
	a.ID, b.ID = 0, 0
	return a == b
}

// Clone returns a copy of the theme.
func (t *Theme) Clone() *Theme {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ForSite returns a copy of the theme bound to the site's installed partition.
func (t *Theme) ForSite(site *Site) *Theme {
	c := t.Clone()
	c.ID = 0
	c.IsWPComTheme = false
	c.LocalSiteID = site.LocalID()
	c.Active = false
	return c
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks struct tags on a Theme or Site.
func Validate(v interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
