// Package catalog loads food catalogs from YAML and seeds them into the
// foods table, either on demand or as a one-time migration.
package catalog
