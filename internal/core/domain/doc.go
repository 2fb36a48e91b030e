// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: an ingested document assembled from extracted text blocks
//   - Chunk: a bounded, overlapping text segment, the unit of retrieval
//   - Candidate: a transient scored retrieval result
//   - ContextPayload: the budgeted context handed to generation
//   - Session: cross-turn conversational state
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
