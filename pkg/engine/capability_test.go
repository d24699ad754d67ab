package engine

import (
	"testing"

	"github.com/openfroyo/themesync/pkg/models"
)

func TestCanPerform(t *testing.T) {
	jetpackREST := &models.Site{ID: 1, JetpackConnected: true, WPComRESTAPI: true}
	restOnly := &models.Site{ID: 2, WPComRESTAPI: true}
	jetpackOnly := &models.Site{ID: 3, JetpackConnected: true}
	neither := &models.Site{ID: 4}

	tests := []struct {
		op   Operation
		site *models.Site
		want bool
	}{
		{OpFetchInstalledThemes, jetpackREST, true},
		{OpFetchInstalledThemes, restOnly, false},
		{OpFetchInstalledThemes, jetpackOnly, false},
		{OpInstallTheme, jetpackREST, true},
		{OpInstallTheme, restOnly, false},
		{OpDeleteTheme, jetpackREST, true},
		{OpDeleteTheme, jetpackOnly, false},
		{OpFetchCurrentTheme, restOnly, true},
		{OpFetchCurrentTheme, jetpackOnly, false},
		{OpActivateTheme, restOnly, true},
		{OpActivateTheme, jetpackREST, true},
		{OpActivateTheme, neither, false},
		{OpFetchWPComThemes, neither, true},
		{OpFetchWPComThemes, nil, true},
		{OpSearchThemes, neither, true},
		{OpRemoveTheme, neither, true},
		{OpRemoveSiteThemes, neither, true},
	}

	for _, tt := range tests {
		if got := CanPerform(tt.op, tt.site); got != tt.want {
			t.Errorf("CanPerform(%s, %+v) = %v, want %v", tt.op, tt.site, got, tt.want)
		}
	}
}

func TestDecideRejectsWithNotAvailable(t *testing.T) {
	d := Decide(OpFetchCurrentTheme, &models.Site{ID: 1})
	if d.Proceeds() {
		t.Fatal("expected rejection")
	}
	err := d.Error()
	if err == nil || err.Type != ErrorTypeNotAvailable {
		t.Fatalf("expected NOT_AVAILABLE, got %v", err)
	}

	d = Decide(OpFetchCurrentTheme, &models.Site{ID: 1, WPComRESTAPI: true})
	if !d.Proceeds() || d.Error() != nil {
		t.Fatalf("expected proceed, got %+v", d)
	}
}

// Every remote operation is rejected for sites without the REST API.
func TestDecideWithoutRESTAPI(t *testing.T) {
	site := &models.Site{ID: 5, JetpackConnected: true}
	for _, op := range []Operation{OpFetchInstalledThemes, OpFetchCurrentTheme, OpActivateTheme, OpInstallTheme, OpDeleteTheme} {
		if Decide(op, site).Proceeds() {
			t.Errorf("%s should be rejected without REST API", op)
		}
	}
}
