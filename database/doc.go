// Package database provides connection management, versioned migrations,
// the model and foreign key registries, cascade and restrict enforcement,
// SQL error classification and query logging built on top of Bun.
package database
