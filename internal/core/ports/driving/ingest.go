package driving

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// IngestService accepts extracted document text and makes it queryable.
type IngestService interface {
	// IngestDocument segments, embeds and indexes the ordered text
	// blocks of one document. The returned status is StatusReady on
	// success or StatusFailed after partial entries were rolled back.
	// A failure is isolated to this document.
	IngestDocument(ctx context.Context, documentID, filename string, blocks []string) (domain.DocumentStatus, error)

	// IngestAll ingests several documents concurrently. Per-document
	// failures are collected, not fatal to siblings.
	IngestAll(ctx context.Context, docs []IngestRequest) map[string]domain.DocumentStatus

	// DropDocument removes a document from the stores and both indexes.
	DropDocument(ctx context.Context, documentID string) error

	// GetDocument retrieves an ingested document including its content.
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// ListDocuments returns all ingested documents with chunk counts.
	ListDocuments(ctx context.Context) ([]domain.DocumentStats, error)
}

// IngestRequest is one document handed to IngestAll.
type IngestRequest struct {
	// DocumentID is the caller-assigned identifier.
	DocumentID string

	// Filename is the source file name, kept for citations.
	Filename string

	// Blocks are the extracted text blocks in document order.
	Blocks []string
}
