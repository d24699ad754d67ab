package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypeFromString(t *testing.T) {
	tests := []struct {
		in   string
		want ErrorType
	}{
		{"UNAUTHORIZED", ErrorTypeUnauthorized},
		{"unauthorized", ErrorTypeUnauthorized},
		{" theme_not_found ", ErrorTypeThemeNotFound},
		{"THEME_ALREADY_INSTALLED", ErrorTypeThemeAlreadyInstalled},
		{"UNKNOWN_THEME", ErrorTypeUnknownTheme},
		{"MISSING_THEME", ErrorTypeMissingTheme},
		{"NOT_AVAILABLE", ErrorTypeNotAvailable},
		{"GENERIC_ERROR", ErrorTypeGeneric},
		{"rest_forbidden", ErrorTypeGeneric},
		{"", ErrorTypeGeneric},
	}

	for _, tt := range tests {
		if got := ErrorTypeFromString(tt.in); got != tt.want {
			t.Errorf("ErrorTypeFromString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestErrorTypesAreClosed(t *testing.T) {
	if got := len(ErrorTypes()); got != 7 {
		t.Errorf("Expected 7 error types, got %d", got)
	}
	for _, et := range ErrorTypes() {
		if ErrorTypeFromString(string(et)) != et {
			t.Errorf("%s does not round-trip", et)
		}
	}
}

func TestThemesErrorMatching(t *testing.T) {
	err := fmt.Errorf("install: %w", NewThemesError(ErrorTypeMissingTheme, "no such theme"))

	if !errors.Is(err, NewThemesError(ErrorTypeMissingTheme, "")) {
		t.Error("Expected errors.Is to match by type")
	}
	if errors.Is(err, NewThemesError(ErrorTypeUnauthorized, "")) {
		t.Error("Expected different type not to match")
	}
	if !IsNotFound(err) {
		t.Error("Expected MISSING_THEME to be a not-found error")
	}
	if IsNotAvailable(err) || IsUnauthorized(err) {
		t.Error("Unexpected classification")
	}

	te, ok := AsThemesError(err)
	if !ok || te.Message != "no such theme" {
		t.Errorf("AsThemesError = %+v, %v", te, ok)
	}
}

func TestNewThemesErrorDefaultsToGeneric(t *testing.T) {
	if e := NewThemesError("", "x"); e.Type != ErrorTypeGeneric {
		t.Errorf("Expected GENERIC_ERROR, got %s", e.Type)
	}
	if e := NewThemesErrorFromString("weird", "x"); e.Type != ErrorTypeGeneric {
		t.Errorf("Expected GENERIC_ERROR, got %s", e.Type)
	}
}

func TestPersistError(t *testing.T) {
	e := persistError("catalog themes", errors.New("locked"))
	if e.Type != ErrorTypeGeneric {
		t.Errorf("Expected GENERIC_ERROR, got %s", e.Type)
	}
	if e.Message != "failed to persist catalog themes: locked" {
		t.Errorf("Unexpected message: %q", e.Message)
	}
}
