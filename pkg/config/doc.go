// Package config loads and validates the themesync configuration file.
//
// # Overview
//
// Configuration is a single YAML file. Loading happens in three passes:
//
//  1. The raw document is checked against a CUE schema, which rejects
//     unknown keys, malformed durations and out-of-range values early.
//  2. The document is decoded over Default(), so omitted fields keep
//     their defaults.
//  3. The decoded Config is checked with validator struct tags, the
//     telemetry rules and site id uniqueness.
//
// The WordPress.com token may be supplied through THEMESYNC_WPCOM_TOKEN
// instead of the file.
//
// # Usage Example
//
//	cfg, err := config.Load(ctx, "themesync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	site, ok := cfg.Site(1)
//
// # File Structure
//
//	database:
//	  path: /var/lib/themesync/themes.db
//	wpcom:
//	  base_url: https://public-api.wordpress.com
//	  max_retries: 3
//	  timeout: 30s
//	telemetry:
//	  logging:
//	    level: info
//	dispatcher:
//	  queue_size: 256
//	sync:
//	  interval: 15m
//	  catalog: true
//	sites:
//	  - id: 1
//	    site_id: 123456
//	    jetpack_connected: true
//
// # Schema Validation
//
// SchemaRegistry holds the built-in CUE definitions (#Config, #Database,
// #WPCom, #Site). Custom schemas can be registered for other documents.
//
// # Hot Reload
//
// Watcher observes the file's directory with fsnotify and calls back with
// each valid new Config, debouncing bursts of writes. Invalid edits are
// logged and ignored, so a typo never replaces a working configuration.
//
// # Thread Safety
//
// SchemaRegistry and Watcher are safe for concurrent use. Config values are
// not; treat a loaded Config as read-only.
package config
