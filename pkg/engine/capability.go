package engine

import "github.com/openfroyo/themesync/pkg/models"

// Operation identifies a theme operation for capability checks and metrics.
type Operation string

const (
	OpFetchWPComThemes     Operation = "fetch_wpcom_themes"
	OpFetchInstalledThemes Operation = "fetch_installed_themes"
	OpFetchCurrentTheme    Operation = "fetch_current_theme"
	OpSearchThemes         Operation = "search_themes"
	OpActivateTheme        Operation = "activate_theme"
	OpInstallTheme         Operation = "install_theme"
	OpDeleteTheme          Operation = "delete_theme"
	OpRemoveTheme          Operation = "remove_theme"
	OpRemoveSiteThemes     Operation = "remove_site_themes"
)

// Operations lists every operation the engine handles.
func Operations() []Operation {
	return []Operation{
		OpFetchWPComThemes,
		OpFetchInstalledThemes,
		OpFetchCurrentTheme,
		OpSearchThemes,
		OpActivateTheme,
		OpInstallTheme,
		OpDeleteTheme,
		OpRemoveTheme,
		OpRemoveSiteThemes,
	}
}

// Requirement is a capability a site must have for an operation to proceed.
type Requirement uint8

const (
	// RequiresJetpack needs managed-hosting connectivity.
	RequiresJetpack Requirement = 1 << iota

	// RequiresRESTAPI needs the WordPress.com REST API surface.
	RequiresRESTAPI
)

var requirements = map[Operation]Requirement{
	OpFetchInstalledThemes: RequiresJetpack | RequiresRESTAPI,
	OpInstallTheme:         RequiresJetpack | RequiresRESTAPI,
	OpDeleteTheme:          RequiresJetpack | RequiresRESTAPI,
	OpFetchCurrentTheme:    RequiresRESTAPI,
	OpActivateTheme:        RequiresRESTAPI,
}

// RequirementsFor returns what a site needs for op. Site-independent and
// local-only operations have no requirements.
func RequirementsFor(op Operation) Requirement {
	return requirements[op]
}

// Verdict is the outcome of a capability decision.
type Verdict int

const (
	// Proceed means the operation is forwarded to the gateway.
	Proceed Verdict = iota

	// Reject means the engine synthesizes an error completion locally.
	Reject
)

// Decision is the result of the capability gate.
type Decision struct {
	Verdict   Verdict
	ErrorType ErrorType
}

// Proceeds reports whether the operation may be attempted.
func (d Decision) Proceeds() bool {
	return d.Verdict == Proceed
}

// Error returns the error a rejected operation completes with, or nil.
func (d Decision) Error() *ThemesError {
	if d.Verdict == Proceed {
		return nil
	}
	return NewThemesError(d.ErrorType, "")
}

// Decide is the capability gate. It only looks at the two site booleans.
func Decide(op Operation, site *models.Site) Decision {
	if CanPerform(op, site) {
		return Decision{Verdict: Proceed}
	}
	return Decision{Verdict: Reject, ErrorType: ErrorTypeNotAvailable}
}

// CanPerform reports whether site satisfies op's requirements.
func CanPerform(op Operation, site *models.Site) bool {
	req := RequirementsFor(op)
	if req&RequiresJetpack != 0 && !site.IsJetpackConnected() {
		return false
	}
	if req&RequiresRESTAPI != 0 && !site.IsUsingWPComRESTAPI() {
		return false
	}
	return true
}
