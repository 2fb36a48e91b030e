package domain

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
// Only Ready documents are visible to retrieval.
type DocumentStatus string

const (
	// StatusIndexing means ingestion is in progress.
	StatusIndexing DocumentStatus = "indexing"

	// StatusReady means both indexes hold the document's chunks.
	StatusReady DocumentStatus = "ready"

	// StatusFailed means ingestion failed and partial index entries
	// were rolled back.
	StatusFailed DocumentStatus = "failed"
)

// Document represents an ingested document.
// Content is the concatenation of the extracted text blocks supplied by
// the upload collaborator; it is immutable once stored.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the source file name, kept for citations.
	Filename string

	// Content is the full extracted text, blocks joined in order.
	Content string

	// BlockOffsets records the rune offset at which each extracted
	// block begins within Content, one entry per block.
	BlockOffsets []int

	// Status is the ingestion state.
	Status DocumentStatus

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed state.
	UpdatedAt time.Time
}

// Chunk represents a searchable unit within a document.
// Chunks are produced by the segmenter with a configured overlap; ordered
// by Seq they cover the document text without gaps.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Text is the chunk text.
	Text string

	// Seq is the ordinal position within the document.
	Seq int

	// Start is the rune offset of the chunk within the document content.
	Start int

	// End is the rune offset one past the last rune of the chunk.
	End int

	// Overlap is the number of leading runes shared with the previous
	// chunk of the same document. Zero for the first chunk.
	Overlap int

	// Embedding is the vector representation, populated during ingestion
	// and owned by the vector index afterwards.
	Embedding []float32
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// DocumentStats summarises an ingested document for display.
type DocumentStats struct {
	// Document is the summarised document (Content omitted by callers
	// that only need metadata).
	Document Document

	// ChunkCount is the number of chunks indexed for the document.
	ChunkCount int
}
