// Package memory provides in-memory implementations of the metadata
// store interfaces. Used in tests and for ephemeral sessions that do
// not need persistence.
package memory
