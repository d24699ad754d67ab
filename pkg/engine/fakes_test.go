package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/openfroyo/themesync/pkg/models"
)

// fakeGateway records calls and answers from canned results.
type fakeGateway struct {
	mu    sync.Mutex
	calls []Operation

	catalog   []*models.Theme
	installed []*models.Theme
	current   *models.Theme
	searched  []*models.Theme
	err       *ThemesError
}

func (g *fakeGateway) record(op Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, op)
}

func (g *fakeGateway) getCalls() []Operation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Operation{}, g.calls...)
}

func (g *fakeGateway) FetchWPComThemes(ctx context.Context) *FetchedThemesPayload {
	g.record(OpFetchWPComThemes)
	if g.err != nil {
		return &FetchedThemesPayload{Error: g.err}
	}
	return &FetchedThemesPayload{Themes: g.catalog}
}

func (g *fakeGateway) FetchInstalledThemes(ctx context.Context, site *models.Site) *FetchedThemesPayload {
	g.record(OpFetchInstalledThemes)
	if g.err != nil {
		return &FetchedThemesPayload{Site: site, Error: g.err}
	}
	return &FetchedThemesPayload{Site: site, Themes: g.installed}
}

func (g *fakeGateway) FetchCurrentTheme(ctx context.Context, site *models.Site) *FetchedCurrentThemePayload {
	g.record(OpFetchCurrentTheme)
	if g.err != nil {
		return &FetchedCurrentThemePayload{Site: site, Error: g.err}
	}
	return &FetchedCurrentThemePayload{Site: site, Theme: g.current}
}

func (g *fakeGateway) SearchThemes(ctx context.Context, searchTerm string) *SearchedThemesPayload {
	g.record(OpSearchThemes)
	if g.err != nil {
		return &SearchedThemesPayload{SearchTerm: searchTerm, Error: g.err}
	}
	return &SearchedThemesPayload{SearchTerm: searchTerm, Themes: g.searched}
}

func (g *fakeGateway) ActivateTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload {
	g.record(OpActivateTheme)
	return &ThemePayload{Site: site, Theme: theme, Error: g.err}
}

func (g *fakeGateway) InstallTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload {
	g.record(OpInstallTheme)
	return &ThemePayload{Site: site, Theme: theme, Error: g.err}
}

func (g *fakeGateway) DeleteTheme(ctx context.Context, site *models.Site, theme *models.Theme) *ThemePayload {
	g.record(OpDeleteTheme)
	return &ThemePayload{Site: site, Theme: theme, Error: g.err}
}

// memoryCache is an in-memory Cache keyed by theme identity.
type memoryCache struct {
	mu     sync.Mutex
	rows   map[models.ThemeKey]*models.Theme
	writes int
	fail   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{rows: make(map[models.ThemeKey]*models.Theme)}
}

func (c *memoryCache) put(t *models.Theme) {
	c.rows[t.Key()] = t.Clone()
}

func (c *memoryCache) write() error {
	if c.fail != nil {
		return c.fail
	}
	c.writes++
	return nil
}

func (c *memoryCache) seed(themes ...*models.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range themes {
		c.put(t)
	}
}

func (c *memoryCache) UpsertCatalogThemes(ctx context.Context, themes []*models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	for _, t := range themes {
		row := t.Clone()
		row.IsWPComTheme = true
		c.put(row)
	}
	return nil
}

func (c *memoryCache) ReplaceCatalogThemes(ctx context.Context, themes []*models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	for k := range c.rows {
		if k.IsWPComTheme {
			delete(c.rows, k)
		}
	}
	for _, t := range themes {
		row := t.Clone()
		row.IsWPComTheme = true
		c.put(row)
	}
	return nil
}

func (c *memoryCache) UpsertInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	for _, t := range themes {
		c.put(t.ForSite(site))
	}
	return nil
}

func (c *memoryCache) ReplaceInstalledThemes(ctx context.Context, site *models.Site, themes []*models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	for k := range c.rows {
		if !k.IsWPComTheme && k.LocalSiteID == site.ID {
			delete(c.rows, k)
		}
	}
	for _, t := range themes {
		c.put(t.ForSite(site))
	}
	return nil
}

func (c *memoryCache) UpsertTheme(ctx context.Context, theme *models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	c.put(theme)
	return nil
}

func (c *memoryCache) RemoveTheme(ctx context.Context, theme *models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	delete(c.rows, theme.Key())
	return nil
}

func (c *memoryCache) RemoveAllThemesForSite(ctx context.Context, site *models.Site) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return 0, err
	}
	var n int64
	for k := range c.rows {
		if !k.IsWPComTheme && k.LocalSiteID == site.ID {
			delete(c.rows, k)
			n++
		}
	}
	return n, nil
}

func (c *memoryCache) SetActiveTheme(ctx context.Context, site *models.Site, theme *models.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(); err != nil {
		return err
	}
	for _, row := range c.rows {
		if !row.IsWPComTheme && row.LocalSiteID == site.ID {
			row.Active = false
		}
	}
	row := theme.Clone()
	row.IsWPComTheme = false
	row.LocalSiteID = site.ID
	row.Active = true
	c.put(row)
	return nil
}

func (c *memoryCache) GetActiveTheme(ctx context.Context, site *models.Site) (*models.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.sorted() {
		if !row.IsWPComTheme && row.LocalSiteID == site.ID && row.Active {
			return row.Clone(), nil
		}
	}
	return nil, nil
}

func (c *memoryCache) GetThemeByID(ctx context.Context, themeID string, isCatalog bool) (*models.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.sorted() {
		if row.ThemeID == themeID && row.IsWPComTheme == isCatalog {
			return row.Clone(), nil
		}
	}
	return nil, nil
}

func (c *memoryCache) GetThemesForSite(ctx context.Context, site *models.Site) ([]*models.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Theme
	for _, row := range c.sorted() {
		if !row.IsWPComTheme && row.LocalSiteID == site.ID {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (c *memoryCache) GetWPComThemes(ctx context.Context) ([]*models.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Theme
	for _, row := range c.sorted() {
		if row.IsWPComTheme {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (c *memoryCache) sorted() []*models.Theme {
	out := make([]*models.Theme, 0, len(c.rows))
	for _, row := range c.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

func (c *memoryCache) countActive(siteID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, row := range c.rows {
		if !row.IsWPComTheme && row.LocalSiteID == siteID && row.Active {
			n++
		}
	}
	return n
}

var errDiskFull = errors.New("disk full")

// recordingEmitter keeps every notification in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *recordingEmitter) Emit(ctx context.Context, event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) getEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event{}, e.events...)
}

func inline(f func()) { f() }

func newTestStore(gw *fakeGateway, cache *memoryCache) (*ThemeStore, *recordingEmitter) {
	emitter := &recordingEmitter{}
	return NewThemeStore(gw, cache, emitter, WithAsync(inline)), emitter
}
