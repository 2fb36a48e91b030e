package driven

import "context"

// LexicalIndex provides keyword search over chunk text. It is the
// high-precision half of hybrid retrieval: exact tokens such as codes,
// dates and amounts match here even when embeddings miss them.
type LexicalIndex interface {
	// Index tokenizes the chunk text and updates postings.
	Index(ctx context.Context, chunkID, documentID, text string) error

	// Search scores chunks against the query terms and returns up to
	// limit hits ordered by descending score. When documentIDs is
	// non-empty, hits are restricted to chunks of those documents.
	Search(ctx context.Context, query string, limit int, documentIDs []string) ([]LexicalHit, error)

	// DeleteByDocument removes all postings belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// LexicalHit represents a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25-style).
	Score float64
}
