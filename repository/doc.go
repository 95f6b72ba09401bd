// Package repository provides a generic repository abstraction built on Bun
// for creating, updating, deleting and querying registered models from
// validated input schemas.
package repository
