// Package stores provides persistence layer implementations for themesync.
// It includes a SQLite-based theme cache with WAL mode, connection pooling,
// embedded migrations, and the partitioned upsert/replace operations the
// theme engine relies on. Catalog rows carry no site id; installed rows are
// keyed by (theme id, site).
package stores
