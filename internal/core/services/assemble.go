package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// DefaultContextBudget is the payload size limit in runes.
const DefaultContextBudget = 4000

// Assembler hydrates ranked candidates into a bounded context payload
// with provenance for citation.
type Assembler struct {
	docStore driven.DocumentStore
	budget   int
}

// NewAssembler creates a context assembler. budget <= 0 selects the
// default.
func NewAssembler(docStore driven.DocumentStore, budget int) *Assembler {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &Assembler{docStore: docStore, budget: budget}
}

// Assemble fills the payload greedily in rank order. Chunks are
// included whole or not at all; a chunk that does not fit is skipped
// and later, smaller chunks may still be included. Adjacent chunks of
// the same document have their duplicated overlap region trimmed.
func (a *Assembler) Assemble(
	ctx context.Context, candidates []domain.Candidate, degraded bool,
) (*domain.ContextPayload, error) {
	payload := &domain.ContextPayload{
		Budget:   a.budget,
		Degraded: degraded,
	}
	if len(candidates) == 0 {
		payload.Empty = true
		logger.Debug("Assembly: no candidates, empty payload")
		return payload, nil
	}

	logger.Stage("Assembly")
	logger.Debug("Budget: %d runes, %d candidates", a.budget, len(candidates))

	docs := make(map[string]*domain.Document)
	included := make(map[string]map[int]*domain.Chunk) // documentID -> Seq -> chunk

	for _, candidate := range candidates {
		chunk, err := a.docStore.GetChunk(ctx, candidate.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Assembly: chunk %s vanished, skipping", candidate.ChunkID)
				continue
			}
			return nil, fmt.Errorf("assemble: get chunk %s: %w", candidate.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = a.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("assemble: get document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		text := trimOverlap(chunk, included[chunk.DocumentID])
		size := len([]rune(text))
		if payload.Size+size > a.budget {
			logger.Debug("Assembly: chunk %s (%d runes) over budget, skipping", chunk.ID, size)
			continue
		}

		payload.Entries = append(payload.Entries, domain.ContextEntry{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Filename:   doc.Filename,
			Seq:        chunk.Seq,
			Start:      chunk.Start,
			End:        chunk.End,
			Text:       text,
			Score:      candidate.Fused,
		})
		payload.Size += size

		if included[chunk.DocumentID] == nil {
			included[chunk.DocumentID] = make(map[int]*domain.Chunk)
		}
		included[chunk.DocumentID][chunk.Seq] = chunk
	}

	payload.Empty = len(payload.Entries) == 0
	logger.Info("Assembly: %d entries, %d/%d runes", len(payload.Entries), payload.Size, a.budget)
	return payload, nil
}

// trimOverlap drops a chunk's duplicated overlap regions: the leading
// region when the preceding chunk of the same document is already in
// the payload, and the trailing region when the following chunk is.
// Rank order decides which neighbour got in first, so both directions
// matter. A region is only trimmed when it is a verified duplicate of
// the neighbour's text.
func trimOverlap(chunk *domain.Chunk, includedSeqs map[int]*domain.Chunk) string {
	runes := []rune(chunk.Text)

	if prev, ok := includedSeqs[chunk.Seq-1]; ok && chunk.Overlap > 0 && chunk.Overlap <= len(runes) {
		prevRunes := []rune(prev.Text)
		if chunk.Overlap <= len(prevRunes) {
			lead := string(runes[:chunk.Overlap])
			tail := string(prevRunes[len(prevRunes)-chunk.Overlap:])
			if lead == tail {
				runes = runes[chunk.Overlap:]
			}
		}
	}

	if next, ok := includedSeqs[chunk.Seq+1]; ok && next.Overlap > 0 && next.Overlap <= len(runes) {
		nextRunes := []rune(next.Text)
		if next.Overlap <= len(nextRunes) {
			tail := string(runes[len(runes)-next.Overlap:])
			lead := string(nextRunes[:next.Overlap])
			if tail == lead {
				runes = runes[:len(runes)-next.Overlap]
			}
		}
	}

	return string(runes)
}
