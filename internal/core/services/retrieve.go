package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Retrieval defaults.
const (
	// DefaultRetrieveLimit is k, the candidate count handed to assembly.
	DefaultRetrieveLimit = 5

	// Exact-pattern queries shift weight toward the lexical index, which
	// matches codes and numbers that embeddings blur.
	exactSemanticWeight = 0.3
	exactLexicalWeight  = 0.7
)

// Patterns whose presence marks a query as exact-match oriented:
// dates, uppercase codes, decimal amounts, long digit runs.
var exactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}`),
	regexp.MustCompile(`\b[A-Z]{2,}-?\d+\b`),
	regexp.MustCompile(`\d+[.,]\d+`),
	regexp.MustCompile(`\b\d{4,}\b`),
}

// Retriever runs hybrid retrieval: the lexical and vector indexes are
// queried in parallel and their scores fused into a single ranking.
type Retriever struct {
	docStore     driven.DocumentStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService
}

// NewRetriever creates a hybrid retriever.
func NewRetriever(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
) *Retriever {
	return &Retriever{
		docStore:     docStore,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
	}
}

// Retrieve returns up to opts.Limit fused candidates for the query.
// The second return value reports degraded mode: one sub-index failed
// and results came solely from the other. Both failing is an error.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.Candidate, bool, error) {
	logger.Stage("Retrieval")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false, fmt.Errorf("retrieve: %w: empty query", domain.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}
	// Over-fetch so fusion has both rankings to work with.
	fetch := limit * 2

	docIDs, err := r.visibleDocuments(ctx, opts.DocumentIDs)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve: %w", err)
	}
	if len(docIDs) == 0 {
		logger.Debug("No ready documents match the filter")
		return nil, false, nil
	}

	lexicalQuery := query
	if len(opts.ExpansionTerms) > 0 {
		lexicalQuery = query + " " + strings.Join(opts.ExpansionTerms, " ")
		logger.Debug("Expanded lexical query: %q", lexicalQuery)
	}

	var (
		wg          sync.WaitGroup
		vectorHits  []driven.VectorHit
		lexicalHits []driven.LexicalHit
		vectorErr   error
		lexicalErr  error
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		embedding, err := r.embedder.Embed(ctx, query)
		if err != nil {
			vectorErr = fmt.Errorf("query embedding: %w", err)
			return
		}
		vectorHits, vectorErr = r.vectorIndex.Query(ctx, embedding, fetch, docIDs)
	}()

	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = r.lexicalIndex.Search(ctx, lexicalQuery, fetch, docIDs)
	}()

	wg.Wait()

	if vectorErr != nil && lexicalErr != nil {
		return nil, false, fmt.Errorf("retrieve: both indexes failed: vector=%w, lexical=%w", vectorErr, lexicalErr)
	}
	degraded := vectorErr != nil || lexicalErr != nil
	if vectorErr != nil {
		logger.Warn("Vector search failed, lexical results only: %v", vectorErr)
	}
	if lexicalErr != nil {
		logger.Warn("Lexical search failed, vector results only: %v", lexicalErr)
	}

	weights := r.effectiveWeights(query, opts.Weights, vectorErr == nil, lexicalErr == nil)
	logger.Debug("Fusion weights: semantic=%.2f lexical=%.2f", weights.Semantic, weights.Lexical)

	candidates := fuse(vectorHits, lexicalHits, weights)

	// Rank: fused desc, semantic desc, chunk ID asc.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		if a.SemanticOrZero() != b.SemanticOrZero() {
			return a.SemanticOrZero() > b.SemanticOrZero()
		}
		return a.ChunkID < b.ChunkID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if opts.MinScore > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.Fused >= opts.MinScore {
				kept = append(kept, c)
			}
		}
		if len(kept) < len(candidates) {
			logger.Debug("Min score %.2f dropped %d candidates", opts.MinScore, len(candidates)-len(kept))
		}
		candidates = kept
	}

	logger.Info("Retrieved %d candidates (degraded=%t)", len(candidates), degraded)
	return candidates, degraded, nil
}

// visibleDocuments resolves the effective document filter. Only ready
// documents are searchable; an explicit filter is intersected with the
// ready set so half-ingested documents never leak into results.
func (r *Retriever) visibleDocuments(ctx context.Context, requested []string) ([]string, error) {
	ready, err := r.docStore.ListReadyIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ready documents: %w", err)
	}
	if len(requested) == 0 {
		return ready, nil
	}

	readySet := make(map[string]bool, len(ready))
	for _, id := range ready {
		readySet[id] = true
	}
	var visible []string
	for _, id := range requested {
		if readySet[id] {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// effectiveWeights picks the fusion blend. Explicit weights win;
// otherwise exact-match patterns in the query bias toward lexical. In
// degraded mode all weight goes to the surviving index.
func (r *Retriever) effectiveWeights(
	query string, explicit domain.FusionWeights, haveVector, haveLexical bool,
) domain.FusionWeights {
	switch {
	case !haveVector:
		return domain.FusionWeights{Semantic: 0, Lexical: 1}
	case !haveLexical:
		return domain.FusionWeights{Semantic: 1, Lexical: 0}
	case explicit.Semantic > 0 || explicit.Lexical > 0:
		return explicit
	case hasExactPattern(query):
		logger.Debug("Exact-match pattern detected, biasing toward lexical")
		return domain.FusionWeights{Semantic: exactSemanticWeight, Lexical: exactLexicalWeight}
	default:
		return domain.DefaultFusionWeights()
	}
}

// hasExactPattern reports whether the query contains tokens that demand
// exact matching.
func hasExactPattern(query string) bool {
	for _, re := range exactPatterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// fuse blends the two hit lists. Scores are min-max normalised per
// list, then combined with the given weights; a chunk absent from one
// list contributes zero on that side.
func fuse(vectorHits []driven.VectorHit, lexicalHits []driven.LexicalHit, weights domain.FusionWeights) []domain.Candidate {
	byID := make(map[string]*domain.Candidate)

	semScores := make([]float64, len(vectorHits))
	for i, hit := range vectorHits {
		semScores[i] = hit.Similarity
	}
	for i, norm := range minMaxNormalise(semScores) {
		score := norm
		byID[vectorHits[i].ChunkID] = &domain.Candidate{
			ChunkID:  vectorHits[i].ChunkID,
			Semantic: &score,
		}
	}

	lexScores := make([]float64, len(lexicalHits))
	for i, hit := range lexicalHits {
		lexScores[i] = hit.Score
	}
	for i, norm := range minMaxNormalise(lexScores) {
		score := norm
		id := lexicalHits[i].ChunkID
		if c, ok := byID[id]; ok {
			c.Lexical = &score
		} else {
			byID[id] = &domain.Candidate{ChunkID: id, Lexical: &score}
		}
	}

	candidates := make([]domain.Candidate, 0, len(byID))
	for _, c := range byID {
		var sem, lex float64
		if c.Semantic != nil {
			sem = *c.Semantic
		}
		if c.Lexical != nil {
			lex = *c.Lexical
		}
		c.Fused = weights.Semantic*sem + weights.Lexical*lex
		candidates = append(candidates, *c)
	}
	return candidates
}

// minMaxNormalise maps scores onto [0, 1]. A single-element or
// constant list normalises to all ones so one strong hit is not
// accidentally zeroed.
func minMaxNormalise(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}
