package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

// fakeWPCom serves the subset of the REST API the commands use.
func fakeWPCom(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1.2/themes":
			_, _ = io.WriteString(w, `{"themes": [
				{"id": "twentytwenty", "name": "Twenty Twenty"},
				{"id": "astra", "name": "Astra"}
			]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/sites/1001/themes":
			_, _ = io.WriteString(w, `{"themes": [
				{"id": "twentytwenty", "name": "Twenty Twenty", "active": true},
				{"id": "hello", "name": "Hello"}
			]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1.1/sites/1001/themes/mine":
			_, _ = io.WriteString(w, `{"id": "twentytwenty", "name": "Twenty Twenty"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1.1/sites/1001/themes/mine":
			_, _ = fmt.Fprintf(w, `{"id": %q}`, r.FormValue("theme"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": "unknown_theme", "message": "no such route"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
database:
  path: %s
wpcom:
  base_url: %s
  token: test-token
  max_retries: 0
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
sync:
  interval: 0s
  catalog: true
sites:
  - id: 1
    site_id: 1001
    jetpack_connected: true
    wpcom_rest_api: true
  - id: 2
    site_id: 1002
`, filepath.Join(dir, "themes.db"), baseURL)

	path := filepath.Join(dir, "themesync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand("test", "none", "today")
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func decodeThemes(t *testing.T, out string) []*models.Theme {
	t.Helper()
	var themes []*models.Theme
	if err := json.Unmarshal([]byte(out), &themes); err != nil {
		t.Fatalf("output is not a theme list: %v\n%s", err, out)
	}
	return themes
}

func TestFetchAndListCatalog(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	if _, err := execute(t, "-c", cfg, "fetch", "catalog"); err != nil {
		t.Fatalf("fetch catalog failed: %v", err)
	}

	out, err := execute(t, "-c", cfg, "--json", "list", "catalog")
	if err != nil {
		t.Fatalf("list catalog failed: %v", err)
	}

	themes := decodeThemes(t, out)
	if len(themes) != 2 {
		t.Fatalf("expected 2 catalog themes, got %d", len(themes))
	}
	for _, theme := range themes {
		if !theme.IsWPComTheme {
			t.Errorf("theme %s is not a catalog theme", theme.ThemeID)
		}
	}
}

func TestFetchInstalledAndActivate(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	out, err := execute(t, "-c", cfg, "--json", "fetch", "installed", "--site", "1")
	if err != nil {
		t.Fatalf("fetch installed failed: %v", err)
	}
	if themes := decodeThemes(t, out); len(themes) != 2 {
		t.Fatalf("expected 2 installed themes, got %d", len(themes))
	}

	if _, err := execute(t, "-c", cfg, "activate", "--site", "1", "hello"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	out, err = execute(t, "-c", cfg, "--json", "list", "active", "--site", "1")
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	var active models.Theme
	if err := json.Unmarshal([]byte(out), &active); err != nil {
		t.Fatalf("output is not a theme: %v\n%s", err, out)
	}
	if active.ThemeID != "hello" {
		t.Errorf("active theme = %s, want hello", active.ThemeID)
	}
}

func TestInstallRejectedForSiteWithoutJetpack(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	_, err := execute(t, "-c", cfg, "install", "--site", "2", "astra")
	if err == nil {
		t.Fatal("expected install to fail")
	}
	if !strings.Contains(err.Error(), "NOT_AVAILABLE") {
		t.Errorf("expected NOT_AVAILABLE, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("expected no remote calls, got %d", n)
	}
}

func TestRemoveSite(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	if _, err := execute(t, "-c", cfg, "fetch", "installed", "--site", "1"); err != nil {
		t.Fatalf("fetch installed failed: %v", err)
	}
	if _, err := execute(t, "-c", cfg, "remove-site", "--site", "1"); err != nil {
		t.Fatalf("remove-site failed: %v", err)
	}

	out, err := execute(t, "-c", cfg, "--json", "list", "installed", "--site", "1")
	if err != nil {
		t.Fatalf("list installed failed: %v", err)
	}
	if themes := decodeThemes(t, out); len(themes) != 0 {
		t.Errorf("expected no installed themes, got %d", len(themes))
	}
}

func TestServeOnce(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	// Site 2 has no remote access, so its current theme fetch is refused.
	_, err := execute(t, "-c", cfg, "serve", "--once")
	if err == nil || !strings.Contains(err.Error(), "site 2") {
		t.Fatalf("expected site 2 to fail, got %v", err)
	}

	out, err := execute(t, "-c", cfg, "--json", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if themes := decodeThemes(t, out); len(themes) != 4 {
		t.Errorf("expected 4 cached themes, got %d", len(themes))
	}
}

func TestSiteRequired(t *testing.T) {
	var calls int32
	srv := fakeWPCom(t, &calls)
	cfg := writeTestConfig(t, srv.URL)

	_, err := execute(t, "-c", cfg, "fetch", "current")
	if err == nil || !strings.Contains(err.Error(), "--site is required") {
		t.Errorf("expected missing site error, got %v", err)
	}

	_, err = execute(t, "-c", cfg, "fetch", "current", "--site", "9")
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected unconfigured site error, got %v", err)
	}
}

func TestNotificationLoggerTagsSiteAndTheme(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "info", Format: "json"}, &buf)
	subscriber := notificationLogger(logger.NewComponentLogger("sync"))

	subscriber(context.Background(), engine.OnThemeActivated{
		Site:  &models.Site{ID: 5},
		Theme: &models.Theme{ThemeID: "astra"},
		Error: engine.NewThemesError(engine.ErrorTypeUnknownTheme, "no such theme"),
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	want := map[string]interface{}{
		"component":  "sync",
		"site_id":    float64(5),
		"theme_id":   "astra",
		"error_type": string(engine.ErrorTypeUnknownTheme),
		"level":      "warn",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %v, want %v", key, entry[key], value)
		}
	}
}
