// Package segmenter splits extracted document text into overlapping,
// fixed-size chunks suitable for embedding.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of overlapping runes between
// consecutive chunks.
const DefaultOverlap = 100

// chunkNamespace makes chunk IDs deterministic per (document, seq) so
// re-ingestion upserts the same IDs instead of accumulating duplicates.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("docqa.chunk"))

// Segmenter produces deterministic, ordered chunk sequences.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkSize returns the configured chunk size.
func (s *Segmenter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Segmenter) Overlap() int { return s.overlap }

// Segment splits the document content into chunks. Ordered by Seq the
// chunks cover the content exactly: every chunk after the first repeats
// the trailing Overlap runes of its predecessor, and stripping those
// regions reconstructs the content losslessly.
//
// Returns domain.ErrInvalidInput when chunk size does not exceed overlap
// (segmentation would never terminate) and domain.ErrEmptyDocument when
// the content holds no text.
func (s *Segmenter) Segment(doc *domain.Document) ([]domain.Chunk, error) {
	if s.chunkSize <= s.overlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d",
			domain.ErrInvalidInput, s.chunkSize, s.overlap)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document %s", domain.ErrEmptyDocument, doc.ID)
	}

	runes := []rune(doc.Content)
	total := len(runes)
	step := s.chunkSize - s.overlap

	chunks := make([]domain.Chunk, 0, total/step+1)
	for start, seq := 0, 0; ; start, seq = start+step, seq+1 {
		end := start + s.chunkSize
		if end > total {
			end = total
		}

		// Every chunk before the last is full-size, so the region
		// shared with the predecessor is exactly the configured
		// overlap, truncated when the final chunk is shorter.
		overlap := 0
		if seq > 0 {
			overlap = s.overlap
			if overlap > end-start {
				overlap = end - start
			}
		}

		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(doc.ID, seq),
			DocumentID: doc.ID,
			Text:       string(runes[start:end]),
			Seq:        seq,
			Start:      start,
			End:        end,
			Overlap:    overlap,
		})

		if end == total {
			break
		}
	}

	return chunks, nil
}

// ChunkID derives the deterministic chunk identifier for a document
// position.
func ChunkID(documentID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%d", documentID, seq))).String()
}
