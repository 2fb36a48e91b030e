package driving

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// QueryService turns a user question into a bounded context payload.
type QueryService interface {
	// Query retrieves and assembles context for a question. sessionID
	// may be empty for a stateless query. documentIDs restricts
	// retrieval to a subset of documents.
	Query(ctx context.Context, question, sessionID string, documentIDs []string) (*domain.ContextPayload, error)

	// Observe records a completed question/answer turn on a session so
	// later queries are biased toward conversational continuity.
	Observe(ctx context.Context, sessionID, question, answerSummary string) error

	// DropSession clears a session's state.
	DropSession(ctx context.Context, sessionID string) error
}
