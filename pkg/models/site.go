package models

// Site is the subset of a site's state that decides which remote theme
// operations it supports.
type Site struct {
	// ID is the local site id. It is the site's identity.
	ID int64 `json:"id" yaml:"id" validate:"required,gt=0"`

	// SiteID is the remote (WordPress.com) site id used in REST paths.
	SiteID int64 `json:"site_id" yaml:"site_id" validate:"required,gt=0"`

	// Name is a display name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// URL is the site address.
	URL string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`

	// JetpackConnected reports managed-hosting connectivity.
	JetpackConnected bool `json:"jetpack_connected" yaml:"jetpack_connected"`

	// WPComRESTAPI reports whether the site exposes the WordPress.com REST API.
	WPComRESTAPI bool `json:"wpcom_rest_api" yaml:"wpcom_rest_api"`
}

// IsJetpackConnected reports whether the site has managed-hosting connectivity.
func (s *Site) IsJetpackConnected() bool {
	return s != nil && s.JetpackConnected
}

// IsUsingWPComRESTAPI reports whether the site is reachable through the REST API.
func (s *Site) IsUsingWPComRESTAPI() bool {
	return s != nil && s.WPComRESTAPI
}

// LocalID returns the site's local id, or zero for a nil site.
func (s *Site) LocalID() int64 {
	if s == nil {
		return 0
	}
	return s.ID
}
