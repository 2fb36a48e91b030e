package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
	"github.com/custodia-labs/docqa-cli/internal/segmenter"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// blockSeparator joins extracted text blocks into document content.
const blockSeparator = "\n\n"

// Ingestion defaults.
const (
	DefaultEmbedBatchSize = 16
	DefaultEmbedRetries   = 2
	DefaultIngestWorkers  = 4
	defaultRetryBackoff   = 200 * time.Millisecond
)

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithEmbedBatchSize sets the number of chunks embedded per provider call.
func WithEmbedBatchSize(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithEmbedRetries sets the number of retries after a provider failure.
func WithEmbedRetries(n int) IngestOption {
	return func(s *IngestService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithIngestWorkers bounds concurrent document ingestions and in-flight
// embedding batches.
func WithIngestWorkers(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// IngestService turns extracted document text into queryable index
// entries. A document becomes visible to retrieval only once both the
// vector and lexical indexes hold all of its chunks.
type IngestService struct {
	docStore     driven.DocumentStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService
	segmenter    *segmenter.Segmenter

	batchSize  int
	maxRetries int
	workers    int
	embedSem   *semaphore.Weighted
}

// NewIngestService creates an ingestion service.
func NewIngestService(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
	seg *segmenter.Segmenter,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		docStore:     docStore,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		segmenter:    seg,
		batchSize:    DefaultEmbedBatchSize,
		maxRetries:   DefaultEmbedRetries,
		workers:      DefaultIngestWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.embedSem = semaphore.NewWeighted(int64(s.workers))
	return s
}

// IngestDocument segments, embeds and indexes one document. On any
// failure the partial index entries for this document are rolled back
// and the document is marked failed; other documents are unaffected.
func (s *IngestService) IngestDocument(
	ctx context.Context, documentID, filename string, blocks []string,
) (domain.DocumentStatus, error) {
	logger.Stage("Ingestion")
	logger.Debug("Document %s (%s): %d blocks", documentID, filename, len(blocks))

	if documentID == "" || filename == "" {
		return domain.StatusFailed, fmt.Errorf("ingest: %w: document id and filename required", domain.ErrInvalidInput)
	}

	content, offsets := joinBlocks(blocks)
	if strings.TrimSpace(content) == "" {
		return domain.StatusFailed, fmt.Errorf("ingest %s: %w", documentID, domain.ErrEmptyDocument)
	}

	// Re-ingesting an ID replaces the prior version entirely. The new
	// content may yield fewer chunks, so the old entries must go first
	// or trailing chunks of the old version stay queryable.
	if _, err := s.docStore.GetDocument(ctx, documentID); err == nil {
		logger.Debug("Document %s exists, replacing prior version", documentID)
		if err := s.purge(ctx, documentID); err != nil {
			return domain.StatusFailed, fmt.Errorf("ingest %s: replace prior version: %w", documentID, err)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.StatusFailed, fmt.Errorf("ingest %s: %w", documentID, err)
	}

	doc := &domain.Document{
		ID:           documentID,
		Filename:     filename,
		Content:      content,
		BlockOffsets: offsets,
		Status:       domain.StatusIndexing,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return domain.StatusFailed, fmt.Errorf("ingest %s: save document: %w", documentID, err)
	}

	if err := s.indexDocument(ctx, doc); err != nil {
		s.rollback(ctx, documentID)
		return domain.StatusFailed, fmt.Errorf("ingest %s: %w", documentID, err)
	}

	if err := s.docStore.SetStatus(ctx, documentID, domain.StatusReady); err != nil {
		s.rollback(ctx, documentID)
		return domain.StatusFailed, fmt.Errorf("ingest %s: mark ready: %w", documentID, err)
	}

	logger.Info("Document %s ready", documentID)
	return domain.StatusReady, nil
}

// indexDocument runs the segment-embed-index pipeline for a document
// already saved in indexing state.
func (s *IngestService) indexDocument(ctx context.Context, doc *domain.Document) error {
	chunks, err := s.segmenter.Segment(doc)
	if err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := s.embedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}
		for i := range batch {
			chunks[start+i].Embedding = embeddings[i]
		}
	}

	for i := range chunks {
		chunk := &chunks[i]
		if err := s.vectorIndex.Upsert(ctx, chunk.ID, doc.ID, chunk.Embedding); err != nil {
			return fmt.Errorf("vector upsert chunk %d: %w", chunk.Seq, err)
		}
		if err := s.lexicalIndex.Index(ctx, chunk.ID, doc.ID, chunk.Text); err != nil {
			return fmt.Errorf("lexical index chunk %d: %w", chunk.Seq, err)
		}
	}

	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// embedBatch calls the provider under the shared semaphore, retrying
// transient provider failures with exponential backoff.
func (s *IngestService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.embedSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.embedSem.Release(1)

	backoff := defaultRetryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Embedding retry %d/%d after %v: %v", attempt, s.maxRetries, backoff, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

// rollback removes all index entries for a document and marks it
// failed. It runs detached from the caller's cancellation so a
// cancelled ingest still cleans up after itself.
func (s *IngestService) rollback(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)

	if err := s.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		logger.Warn("Rollback: vector delete for %s: %v", documentID, err)
	}
	if err := s.lexicalIndex.DeleteByDocument(ctx, documentID); err != nil {
		logger.Warn("Rollback: lexical delete for %s: %v", documentID, err)
	}
	if err := s.docStore.SetStatus(ctx, documentID, domain.StatusFailed); err != nil {
		logger.Warn("Rollback: mark failed for %s: %v", documentID, err)
	}
}

// IngestAll ingests several documents concurrently. A failing document
// ends up failed in the returned map; its siblings proceed.
func (s *IngestService) IngestAll(ctx context.Context, docs []driving.IngestRequest) map[string]domain.DocumentStatus {
	statuses := make(map[string]domain.DocumentStatus, len(docs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, req := range docs {
		g.Go(func() error {
			status, err := s.IngestDocument(gctx, req.DocumentID, req.Filename, req.Blocks)
			if err != nil {
				logger.Warn("Ingest %s failed: %v", req.DocumentID, err)
			}
			mu.Lock()
			statuses[req.DocumentID] = status
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; failures land in the map
	return statuses
}

// DropDocument removes a document from the stores and both indexes.
func (s *IngestService) DropDocument(ctx context.Context, documentID string) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("drop %s: %w", documentID, err)
	}
	if err := s.purge(ctx, documentID); err != nil {
		return fmt.Errorf("drop %s: %w", documentID, err)
	}

	logger.Info("Document %s dropped", documentID)
	return nil
}

// purge removes a document's index entries, chunk rows and document row.
func (s *IngestService) purge(ctx context.Context, documentID string) error {
	if err := s.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}
	if err := s.lexicalIndex.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("lexical delete: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// GetDocument retrieves an ingested document including its content.
func (s *IngestService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", documentID, err)
	}
	return doc, nil
}

// ListDocuments returns all ingested documents with chunk counts.
func (s *IngestService) ListDocuments(ctx context.Context) ([]domain.DocumentStats, error) {
	stats, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return stats, nil
}

// joinBlocks concatenates extracted text blocks and records the rune
// offset at which each block begins.
func joinBlocks(blocks []string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(blocks))
	runes := 0
	for i, block := range blocks {
		if i > 0 {
			b.WriteString(blockSeparator)
			runes += len([]rune(blockSeparator))
		}
		offsets = append(offsets, runes)
		b.WriteString(block)
		runes += len([]rune(block))
	}
	return b.String(), offsets
}
