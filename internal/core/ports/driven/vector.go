package driven

import "context"

// VectorIndex provides persistent semantic similarity search.
// Similarity is cosine over L2-normalised vectors; equal scores are
// broken by original insertion order so queries are stable.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a chunk. Re-upserting
	// the same chunk ID replaces the prior vector atomically from the
	// caller's perspective.
	Upsert(ctx context.Context, chunkID, documentID string, embedding []float32) error

	// Query finds the k nearest neighbours to the query vector.
	// When documentIDs is non-empty, candidates are restricted to
	// chunks of those documents.
	Query(ctx context.Context, embedding []float32, k int, documentIDs []string) ([]VectorHit, error)

	// DeleteByDocument removes all vectors belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close flushes and releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
