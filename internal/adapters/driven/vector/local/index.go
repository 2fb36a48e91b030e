// Package local provides a file-backed vector index using exact
// brute-force cosine search. For a working session over a handful of
// documents an exact scan is faster to build than an ANN graph and
// keeps ranking fully deterministic.
package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type record struct {
	chunkID    string
	documentID string
	vector     []float32 // L2-normalised at upsert
	order      int       // original insertion order, survives re-upsert
}

// Index is a thread-safe, persistent brute-force cosine index.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	records   map[string]*record
	nextOrd   int
	dirty     bool
	closed    bool
}

// New creates or opens an index snapshot at path. The dimension must
// match the embedding provider and is validated against any existing
// snapshot. A corrupt or unreadable snapshot surfaces
// domain.ErrIndexUnavailable so callers can fall back to lexical-only
// retrieval.
func New(path string, dimension int) (*Index, error) {
	if path == "" {
		return nil, errors.New("vector: path cannot be empty")
	}
	if dimension <= 0 {
		return nil, errors.New("vector: dimension must be positive")
	}

	idx := &Index{
		path:      path,
		dimension: dimension,
		records:   make(map[string]*record),
	}

	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return idx, nil
}

// Upsert inserts or replaces the vector for a chunk. The stored vector
// is L2-normalised so queries reduce to dot products. Replacement keeps
// the chunk's original insertion order.
func (idx *Index) Upsert(_ context.Context, chunkID, documentID string, embedding []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}
	if len(embedding) != idx.dimension {
		return fmt.Errorf("vector: embedding dimension %d, index expects %d", len(embedding), idx.dimension)
	}

	normalised := normalise(embedding)
	if prior, ok := idx.records[chunkID]; ok {
		prior.documentID = documentID
		prior.vector = normalised
	} else {
		idx.records[chunkID] = &record{
			chunkID:    chunkID,
			documentID: documentID,
			vector:     normalised,
			order:      idx.nextOrd,
		}
		idx.nextOrd++
	}
	idx.dirty = true
	return nil
}

// Query returns the k most similar chunks by cosine similarity.
// Equal similarities are broken by original insertion order.
func (idx *Index) Query(_ context.Context, embedding []float32, k int, documentIDs []string) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("vector: index is closed")
	}
	if len(embedding) != idx.dimension {
		return nil, fmt.Errorf("vector: query dimension %d, index expects %d", len(embedding), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	var filter map[string]struct{}
	if len(documentIDs) > 0 {
		filter = make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			filter[id] = struct{}{}
		}
	}

	query := normalise(embedding)
	type scored struct {
		rec *record
		sim float64
	}
	candidates := make([]scored, 0, len(idx.records))
	for _, rec := range idx.records {
		if filter != nil {
			if _, ok := filter[rec.documentID]; !ok {
				continue
			}
		}
		candidates = append(candidates, scored{rec: rec, sim: dot(query, rec.vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].rec.order < candidates[j].rec.order
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]driven.VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = driven.VectorHit{ChunkID: c.rec.chunkID, Similarity: c.sim}
	}
	return hits, nil
}

// DeleteByDocument removes all vectors belonging to a document.
func (idx *Index) DeleteByDocument(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}
	for chunkID, rec := range idx.records {
		if rec.documentID == documentID {
			delete(idx.records, chunkID)
			idx.dirty = true
		}
	}
	return nil
}

// Flush writes the snapshot to disk if anything changed.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.flushLocked()
}

// Close flushes and releases the index.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	err := idx.flushLocked()
	idx.closed = true
	idx.records = nil
	return err
}

func (idx *Index) flushLocked() error {
	if !idx.dirty || idx.closed {
		return nil
	}

	// Snapshot records in insertion order so reload preserves ordering.
	ordered := make([]*record, 0, len(idx.records))
	for _, rec := range idx.records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	if err := os.MkdirAll(filepath.Dir(idx.path), 0700); err != nil {
		return fmt.Errorf("vector: create snapshot directory: %w", err)
	}

	tmp := idx.path + ".tmp"
	if err := writeSnapshot(tmp, idx.dimension, ordered); err != nil {
		return fmt.Errorf("vector: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("vector: replace snapshot: %w", err)
	}
	idx.dirty = false
	return nil
}

func (idx *Index) load() error {
	records, dimension, err := readSnapshot(idx.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil // fresh index
	}
	if err != nil {
		return err
	}
	if dimension != idx.dimension {
		return fmt.Errorf("snapshot dimension %d, expected %d", dimension, idx.dimension)
	}
	for i, rec := range records {
		rec.order = i
		idx.records[rec.chunkID] = rec
	}
	idx.nextOrd = len(records)
	return nil
}

// normalise returns an L2-normalised copy of v. Zero vectors are
// returned unchanged.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
