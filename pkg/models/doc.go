// Package models defines the value types synchronized by themesync: the Site a
// theme operation targets and the Theme rows mirrored in the local cache.
//
// A theme lives in one of two partitions. Catalog themes come from the
// WordPress.com marketplace, carry IsWPComTheme=true and belong to no site
// (LocalSiteID is zero). Installed themes belong to exactly one site and carry
// IsWPComTheme=false. The identity of a row is ThemeKey, which is also the
// uniqueness key used by the persistence layer.
package models
