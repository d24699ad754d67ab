// Package wpcom implements the theme gateway against the WordPress.com REST API.
package wpcom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

const (
	// DefaultBaseURL is the public WordPress.com API host.
	DefaultBaseURL = "https://public-api.wordpress.com"

	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries bounds retries of transient failures.
	DefaultMaxRetries = 3

	// DefaultUserAgent is the user agent string for HTTP requests
	DefaultUserAgent = "themesync/1.0"

	// MaxResponseSize is the maximum allowed response size (20MB)
	MaxResponseSize = 20 * 1024 * 1024

	// catalogPageSize is the number of catalog themes requested per fetch.
	catalogPageSize = 500
)

// Config holds client configuration.
type Config struct {
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries uint          `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`

	// InitialBackoff is the first retry delay. Zero uses the backoff default.
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gte=0"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		UserAgent:  DefaultUserAgent,
	}
}

// Client talks to the WordPress.com REST API. It never returns a Go error
// to the engine: every failure is reported in the completion payload.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

var _ engine.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger.With().Str("component", "wpcom_gateway").Logger() }
}

// WithMetrics records retries on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client. Zero config fields fall back to defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       []byte
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s", e.StatusCode, e.URL)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// do performs a request, retrying transient failures, and returns the body
// of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) ([]byte, error) {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// lastHTTPErr is what the caller sees when the final attempt asked for a
	// Retry-After delay.
	var lastHTTPErr *HTTPError

	operation := func() ([]byte, error) {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(fmt.Errorf("failed to execute request: %w", err))
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.ContentLength > MaxResponseSize {
			return nil, backoff.Permanent(fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
				resp.ContentLength, MaxResponseSize))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if int64(len(data)) > MaxResponseSize {
			return nil, backoff.Permanent(fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize))
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: endpoint, Body: data}
			if !retryable(resp.StatusCode) {
				return nil, backoff.Permanent(httpErr)
			}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				lastHTTPErr = httpErr
				return nil, backoff.RetryAfter(secs)
			}
			return nil, httpErr
		}

		return data, nil
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		b.InitialInterval = c.cfg.InitialBackoff
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.RecordRemoteRetry(path)
			c.logger.Debug().
				Err(err).
				Str("method", method).
				Str("path", path).
				Dur("next", next).
				Msg("Retrying request")
		}),
	)

	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) && lastHTTPErr != nil {
		return nil, lastHTTPErr
	}
	return data, err
}

// toThemesError maps a transport or HTTP failure to a payload error.
func toThemesError(err error) *engine.ThemesError {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return engine.NewThemesError(engine.ErrorTypeGeneric, err.Error())
	}

	wireType := ""
	message := httpErr.Error()
	if gjson.ValidBytes(httpErr.Body) {
		parsed := gjson.ParseBytes(httpErr.Body)
		wireType = parsed.Get("error").String()
		if m := parsed.Get("message").String(); m != "" {
			message = m
		}
	}

	if wireType == "" {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return engine.NewThemesError(engine.ErrorTypeUnauthorized, message)
		}
	}
	return engine.NewThemesErrorFromString(wireType, message)
}

func parseJSON(data []byte) (gjson.Result, *engine.ThemesError) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, engine.NewThemesError(engine.ErrorTypeGeneric, "invalid JSON response")
	}
	return gjson.ParseBytes(data), nil
}

// parseTheme reads a theme object from the API.
func parseTheme(r gjson.Result) *models.Theme {
	price := r.Get("price")
	priceText := price.String()
	if price.IsObject() {
		priceText = price.Get("display").String()
	}

	slug := r.Get("slug").String()
	if slug == "" {
		slug = r.Get("id").String()
	}

	return &models.Theme{
		ThemeID:       r.Get("id").String(),
		Name:          r.Get("name").String(),
		Description:   r.Get("description").String(),
		Slug:          slug,
		Version:       r.Get("version").String(),
		AuthorName:    r.Get("author").String(),
		AuthorURL:     r.Get("author_uri").String(),
		ThemeURL:      r.Get("theme_uri").String(),
		ScreenshotURL: r.Get("screenshot").String(),
		DemoURL:       r.Get("demo_uri").String(),
		DownloadURL:   r.Get("download_uri").String(),
		Stylesheet:    r.Get("stylesheet").String(),
		Price:         priceText,
		Active:        r.Get("active").Bool(),
		AutoUpdate:    r.Get("autoupdate").Bool(),
	}
}

func parseThemeList(r gjson.Result) []*models.Theme {
	items := r.Get("themes").Array()
	themes := make([]*models.Theme, 0, len(items))
	for _, item := range items {
		t := parseTheme(item)
		if t.ThemeID == "" {
			continue
		}
		themes = append(themes, t)
	}
	return themes
}

func asCatalog(themes []*models.Theme) []*models.Theme {
	for _, t := range themes {
		t.IsWPComTheme = true
		t.LocalSiteID = 0
	}
	return themes
}

func bindToSite(t *models.Theme, site *models.Site) *models.Theme {
	t.IsWPComTheme = false
	t.LocalSiteID = site.LocalID()
	return t
}

func sitePath(site *models.Site, version, suffix string) string {
	return fmt.Sprintf("/rest/%s/sites/%d/themes%s", version, site.SiteID, suffix)
}

func siteRequired() *engine.ThemesError {
	return engine.NewThemesError(engine.ErrorTypeGeneric, "site is required")
}

func themeRequired() *engine.ThemesError {
	return engine.NewThemesError(engine.ErrorTypeGeneric, "theme is required")
}

// FetchWPComThemes fetches the WordPress.com catalog.
func (c *Client) FetchWPComThemes(ctx context.Context) *engine.FetchedThemesPayload {
	query := url.Values{"number": {strconv.Itoa(catalogPageSize)}}

	data, err := c.do(ctx, http.MethodGet, "/rest/v1.2/themes", query, nil)
	if err != nil {
		return &engine.FetchedThemesPayload{Error: toThemesError(err)}
	}

	parsed, perr := parseJSON(data)
	if perr != nil {
		return &engine.FetchedThemesPayload{Error: perr}
	}

	themes := asCatalog(parseThemeList(parsed))
	c.logger.Debug().Int("count", len(themes)).Msg("Fetched catalog")
	return &engine.FetchedThemesPayload{Themes: themes}
}

// FetchInstalledThemes fetches the themes installed on a Jetpack site.
func (c *Client) FetchInstalledThemes(ctx context.Context, site *models.Site) *engine.FetchedThemesPayload {
	if site == nil {
		return &engine.FetchedThemesPayload{Error: siteRequired()}
	}

	data, err := c.do(ctx, http.MethodGet, sitePath(site, "v1", ""), nil, nil)
	if err != nil {
		return &engine.FetchedThemesPayload{Site: site, Error: toThemesError(err)}
	}

	parsed, perr := parseJSON(data)
	if perr != nil {
		return &engine.FetchedThemesPayload{Site: site, Error: perr}
	}

	themes := parseThemeList(parsed)
	for _, t := range themes {
		bindToSite(t, site)
	}
	return &engine.FetchedThemesPayload{Site: site, Themes: themes}
}

// FetchCurrentTheme fetches the site's active theme.
func (c *Client) FetchCurrentTheme(ctx context.Context, site *models.Site) *engine.FetchedCurrentThemePayload {
	if site == nil {
		return &engine.FetchedCurrentThemePayload{Error: siteRequired()}
	}

	data, err := c.do(ctx, http.MethodGet, sitePath(site, "v1.1", "/mine"), nil, nil)
	if err != nil {
		return &engine.FetchedCurrentThemePayload{Site: site, Error: toThemesError(err)}
	}

	parsed, perr := parseJSON(data)
	if perr != nil {
		return &engine.FetchedCurrentThemePayload{Site: site, Error: perr}
	}

	theme := parseTheme(parsed)
	if theme.ThemeID == "" {
		return &engine.FetchedCurrentThemePayload{
			Site:  site,
			Error: engine.NewThemesError(engine.ErrorTypeGeneric, "response has no theme id"),
		}
	}
	theme = bindToSite(theme, site)
	theme.Active = true
	return &engine.FetchedCurrentThemePayload{Site: site, Theme: theme}
}

// SearchThemes searches the catalog.
func (c *Client) SearchThemes(ctx context.Context, searchTerm string) *engine.SearchedThemesPayload {
	query := url.Values{
		"search": {searchTerm},
		"number": {strconv.Itoa(catalogPageSize)},
	}

	data, err := c.do(ctx, http.MethodGet, "/rest/v1.2/themes", query, nil)
	if err != nil {
		return &engine.SearchedThemesPayload{SearchTerm: searchTerm, Error: toThemesError(err)}
	}

	parsed, perr := parseJSON(data)
	if perr != nil {
		return &engine.SearchedThemesPayload{SearchTerm: searchTerm, Error: perr}
	}

	return &engine.SearchedThemesPayload{SearchTerm: searchTerm, Themes: asCatalog(parseThemeList(parsed))}
}

// themeMutation runs an activate, install or delete request. The completion
// carries the requested theme so the engine can find it in the cache.
func (c *Client) themeMutation(ctx context.Context, site *models.Site, theme *models.Theme, path string, form url.Values) *engine.ThemePayload {
	payload := &engine.ThemePayload{Site: site, Theme: theme}
	if site == nil {
		payload.Error = siteRequired()
		return payload
	}
	if theme == nil || theme.ThemeID == "" {
		payload.Error = themeRequired()
		return payload
	}

	if _, err := c.do(ctx, http.MethodPost, path, nil, form); err != nil {
		payload.Error = toThemesError(err)
		c.logger.Debug().
			Int64("site_id", site.ID).
			Str("theme_id", theme.ThemeID).
			Str("error_type", string(payload.Error.Type)).
			Msg("Theme mutation failed")
	}
	return payload
}

// ActivateTheme activates a theme on the site.
func (c *Client) ActivateTheme(ctx context.Context, site *models.Site, theme *models.Theme) *engine.ThemePayload {
	var form url.Values
	if theme != nil {
		form = url.Values{"theme": {theme.ThemeID}}
	}
	var path string
	if site != nil {
		path = sitePath(site, "v1.1", "/mine")
	}
	return c.themeMutation(ctx, site, theme, path, form)
}

// InstallTheme installs a catalog theme on a Jetpack site.
func (c *Client) InstallTheme(ctx context.Context, site *models.Site, theme *models.Theme) *engine.ThemePayload {
	var path string
	if site != nil && theme != nil {
		path = sitePath(site, "v1", "/"+url.PathEscape(theme.ThemeID+"-wpcom")+"/install")
	}
	return c.themeMutation(ctx, site, theme, path, url.Values{})
}

// DeleteTheme deletes an installed theme from a Jetpack site.
func (c *Client) DeleteTheme(ctx context.Context, site *models.Site, theme *models.Theme) *engine.ThemePayload {
	var path string
	if site != nil && theme != nil {
		path = sitePath(site, "v1", "/"+url.PathEscape(theme.ThemeID)+"/delete")
	}
	return c.themeMutation(ctx, site, theme, path, url.Values{})
}
