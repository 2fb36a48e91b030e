package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document, including its status.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SetStatus updates a document's ingestion status.
	SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error

	// SaveChunks stores chunks for a document in one transaction.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document ordered by Seq.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListDocuments returns all documents with chunk counts.
	ListDocuments(ctx context.Context) ([]domain.DocumentStats, error)

	// ListReadyIDs returns the IDs of documents in StatusReady.
	ListReadyIDs(ctx context.Context) ([]string, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// SessionStore persists conversational session state.
type SessionStore interface {
	// Save stores or updates a session.
	Save(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}
