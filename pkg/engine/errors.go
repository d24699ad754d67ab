package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the closed set of failure kinds a theme operation can report.
type ErrorType string

const (
	// ErrorTypeGeneric is the default for failures that map to no other kind.
	ErrorTypeGeneric ErrorType = "GENERIC_ERROR"

	// ErrorTypeUnauthorized indicates the remote rejected the credentials or scope.
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeNotAvailable indicates the operation is unsupported for the site,
	// either rejected locally by the capability gate or reported by the remote.
	ErrorTypeNotAvailable ErrorType = "NOT_AVAILABLE"

	// ErrorTypeThemeNotFound, ErrorTypeUnknownTheme and ErrorTypeMissingTheme
	// all mean "not found"; they only mirror the remote's vocabulary.
	ErrorTypeThemeNotFound ErrorType = "THEME_NOT_FOUND"
	ErrorTypeUnknownTheme  ErrorType = "UNKNOWN_THEME"
	ErrorTypeMissingTheme  ErrorType = "MISSING_THEME"

	// ErrorTypeThemeAlreadyInstalled indicates an install conflict.
	ErrorTypeThemeAlreadyInstalled ErrorType = "THEME_ALREADY_INSTALLED"
)

var errorTypes = []ErrorType{
	ErrorTypeGeneric,
	ErrorTypeUnauthorized,
	ErrorTypeNotAvailable,
	ErrorTypeThemeNotFound,
	ErrorTypeThemeAlreadyInstalled,
	ErrorTypeUnknownTheme,
	ErrorTypeMissingTheme,
}

// ErrorTypes returns every error kind in declaration order.
func ErrorTypes() []ErrorType {
	out := make([]ErrorType, len(errorTypes))
	copy(out, errorTypes)
	return out
}

// ErrorTypeFromString maps a wire-level error string to an ErrorType.
// Matching is case-insensitive; anything unrecognized becomes ErrorTypeGeneric.
func ErrorTypeFromString(s string) ErrorType {
	s = strings.TrimSpace(s)
	for _, t := range errorTypes {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return ErrorTypeGeneric
}

// ThemesError is the error carried by completion payloads and notifications.
type ThemesError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message,omitempty"`
}

// NewThemesError creates an error of the given kind.
func NewThemesError(t ErrorType, message string) *ThemesError {
	if t == "" {
		t = ErrorTypeGeneric
	}
	return &ThemesError{Type: t, Message: message}
}

// NewThemesErrorFromString creates an error from a remote error string.
func NewThemesErrorFromString(wireType, message string) *ThemesError {
	return &ThemesError{Type: ErrorTypeFromString(wireType), Message: message}
}

// Error implements the error interface.
func (e *ThemesError) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is matches another *ThemesError of the same type, ignoring the message.
func (e *ThemesError) Is(target error) bool {
	t, ok := target.(*ThemesError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// AsThemesError extracts a *ThemesError from err's chain.
func AsThemesError(err error) (*ThemesError, bool) {
	var e *ThemesError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNotAvailable returns true if the operation was not available for the site.
func IsNotAvailable(err error) bool {
	return hasType(err, ErrorTypeNotAvailable)
}

// IsUnauthorized returns true if the remote rejected the credentials.
func IsUnauthorized(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsNotFound returns true for any of the remote's "not found" kinds.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeThemeNotFound) ||
		hasType(err, ErrorTypeUnknownTheme) ||
		hasType(err, ErrorTypeMissingTheme)
}

func hasType(err error, t ErrorType) bool {
	e, ok := AsThemesError(err)
	return ok && e != nil && e.Type == t
}

// persistError converts a local cache failure into a payload error.
func persistError(what string, err error) *ThemesError {
	return NewThemesError(ErrorTypeGeneric, fmt.Sprintf("failed to persist %s: %v", what, err))
}
