// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding transport, vector and lexical
// indexes, and metadata storage.
package driven
