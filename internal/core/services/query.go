package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryOption configures a QueryService.
type QueryOption func(*QueryService)

// WithRetrieveLimit sets k, the candidate count per query.
func WithRetrieveLimit(k int) QueryOption {
	return func(s *QueryService) {
		if k > 0 {
			s.limit = k
		}
	}
}

// WithMinScore sets the fused-score floor below which candidates are
// discarded.
func WithMinScore(min float64) QueryOption {
	return func(s *QueryService) {
		if min >= 0 {
			s.minScore = min
		}
	}
}

// WithFusionWeights overrides the default semantic/lexical blend for
// every query. Explicit weights win over the exact-pattern lexical
// bias; only a degraded index still forces a single-signal blend.
func WithFusionWeights(weights domain.FusionWeights) QueryOption {
	return func(s *QueryService) {
		if weights.Semantic > 0 || weights.Lexical > 0 {
			s.weights = weights
		}
	}
}

// QueryService wires session bias, hybrid retrieval and context
// assembly into the single entry point the generation collaborator
// calls.
type QueryService struct {
	retriever *Retriever
	assembler *Assembler
	tracker   *SessionTracker

	limit    int
	minScore float64
	weights  domain.FusionWeights
}

// NewQueryService creates a query service.
func NewQueryService(retriever *Retriever, assembler *Assembler, tracker *SessionTracker, opts ...QueryOption) *QueryService {
	s := &QueryService{
		retriever: retriever,
		assembler: assembler,
		tracker:   tracker,
		limit:     DefaultRetrieveLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query retrieves and assembles context for a question. An empty
// sessionID runs the query without conversational bias.
func (s *QueryService) Query(
	ctx context.Context, question, sessionID string, documentIDs []string,
) (*domain.ContextPayload, error) {
	expansionTerms, err := s.tracker.Bias(ctx, sessionID)
	if err != nil {
		// Bias is best-effort; a broken session must not block answers.
		logger.Warn("Session bias unavailable: %v", err)
		expansionTerms = nil
	}

	candidates, degraded, err := s.retriever.Retrieve(ctx, question, domain.RetrieveOptions{
		Limit:          s.limit,
		DocumentIDs:    documentIDs,
		Weights:        s.weights,
		MinScore:       s.minScore,
		ExpansionTerms: expansionTerms,
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	payload, err := s.assembler.Assemble(ctx, candidates, degraded)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return payload, nil
}

// Observe records a completed question/answer turn on a session.
func (s *QueryService) Observe(ctx context.Context, sessionID, question, answerSummary string) error {
	return s.tracker.Observe(ctx, sessionID, question, answerSummary)
}

// DropSession clears a session's state.
func (s *QueryService) DropSession(ctx context.Context, sessionID string) error {
	return s.tracker.Drop(ctx, sessionID)
}
