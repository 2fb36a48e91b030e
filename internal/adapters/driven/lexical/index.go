// Package lexical provides an in-memory inverted index with BM25
// scoring over chunk text. Postings are rebuilt from the document store
// at startup; the SQLite store is the durable copy.
package lexical

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// BM25 parameters. k1 controls term-frequency saturation, b controls
// length normalisation.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type chunkInfo struct {
	documentID string
	length     int // token count
	order      int // insertion order, for stable tie-breaks
}

// Index is a thread-safe inverted index over chunks.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string]int // term -> chunkID -> term frequency
	chunks   map[string]chunkInfo
	byDoc    map[string]map[string]struct{} // documentID -> chunkIDs
	totalLen int
	nextOrd  int
	closed   bool
}

// New creates an empty lexical index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		chunks:   make(map[string]chunkInfo),
		byDoc:    make(map[string]map[string]struct{}),
	}
}

// Index tokenizes the chunk text and updates postings. Re-indexing a
// chunk ID replaces its prior postings.
func (idx *Index) Index(_ context.Context, chunkID, documentID, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("lexical: index is closed")
	}

	if prior, ok := idx.chunks[chunkID]; ok {
		idx.removeChunkLocked(chunkID, prior)
	}

	terms := tokenize(text)
	order := idx.nextOrd
	idx.nextOrd++

	for _, term := range terms {
		posting, ok := idx.postings[term]
		if !ok {
			posting = make(map[string]int)
			idx.postings[term] = posting
		}
		posting[chunkID]++
	}

	idx.chunks[chunkID] = chunkInfo{documentID: documentID, length: len(terms), order: order}
	idx.totalLen += len(terms)

	docSet, ok := idx.byDoc[documentID]
	if !ok {
		docSet = make(map[string]struct{})
		idx.byDoc[documentID] = docSet
	}
	docSet[chunkID] = struct{}{}

	return nil
}

// Search scores chunks with BM25 against the query terms.
func (idx *Index) Search(_ context.Context, query string, limit int, documentIDs []string) ([]driven.LexicalHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("lexical: index is closed")
	}
	if limit <= 0 || len(idx.chunks) == 0 {
		return nil, nil
	}

	var filter map[string]struct{}
	if len(documentIDs) > 0 {
		filter = make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			filter[id] = struct{}{}
		}
	}

	n := float64(len(idx.chunks))
	avgLen := float64(idx.totalLen) / n

	scores := make(map[string]float64)
	for _, term := range tokenize(query) {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			info := idx.chunks[chunkID]
			if filter != nil {
				if _, ok := filter[info.documentID]; !ok {
					continue
				}
			}
			norm := 1 - bm25B + bm25B*float64(info.length)/avgLen
			freq := float64(tf)
			scores[chunkID] += idf * (freq * (bm25K1 + 1)) / (freq + bm25K1*norm)
		}
	}

	hits := make([]driven.LexicalHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.LexicalHit{ChunkID: chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idx.chunks[hits[i].ChunkID].order < idx.chunks[hits[j].ChunkID].order
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteByDocument removes all postings belonging to a document.
func (idx *Index) DeleteByDocument(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("lexical: index is closed")
	}

	for chunkID := range idx.byDoc[documentID] {
		if info, ok := idx.chunks[chunkID]; ok {
			idx.removeChunkLocked(chunkID, info)
		}
	}
	delete(idx.byDoc, documentID)
	return nil
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.postings = nil
	idx.chunks = nil
	idx.byDoc = nil
	return nil
}

// removeChunkLocked strips a chunk from postings and bookkeeping.
// Caller holds the write lock.
func (idx *Index) removeChunkLocked(chunkID string, info chunkInfo) {
	for term, posting := range idx.postings {
		if _, ok := posting[chunkID]; ok {
			delete(posting, chunkID)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	idx.totalLen -= info.length
	delete(idx.chunks, chunkID)
	if docSet, ok := idx.byDoc[info.documentID]; ok {
		delete(docSet, chunkID)
	}
}
