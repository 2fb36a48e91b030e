package domain

// DefaultSemanticWeight and DefaultLexicalWeight are the fusion weights
// applied when a query contains no exact-match patterns.
const (
	DefaultSemanticWeight = 0.6
	DefaultLexicalWeight  = 0.4
)

// FusionWeights controls how semantic and lexical scores are blended.
// Weights are applied to min-max normalised score lists.
type FusionWeights struct {
	// Semantic is the weight for vector similarity scores.
	Semantic float64

	// Lexical is the weight for keyword scores.
	Lexical float64
}

// DefaultFusionWeights returns the configured default blend.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Semantic: DefaultSemanticWeight, Lexical: DefaultLexicalWeight}
}

// RetrieveOptions configures a retrieval call.
type RetrieveOptions struct {
	// Limit is the maximum number of candidates (k). Defaults to 5.
	Limit int

	// DocumentIDs restricts retrieval to the given documents.
	// Empty means all ready documents.
	DocumentIDs []string

	// Weights overrides the fusion weights for this query.
	// Zero value means use defaults (with exact-pattern bias).
	Weights FusionWeights

	// MinScore is the fused-score floor below which candidates are
	// discarded. A query whose best candidate falls under the floor
	// yields an empty, not failed, result.
	MinScore float64

	// ExpansionTerms are session-derived terms appended to the lexical
	// query to bias retrieval toward recent conversation topics.
	ExpansionTerms []string
}

// Candidate is a transient scored retrieval result. It exists only for
// the duration of one retrieval call.
type Candidate struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Semantic is the normalised vector score. Nil when the chunk was
	// found only lexically.
	Semantic *float64

	// Lexical is the normalised keyword score. Nil when the chunk was
	// found only semantically.
	Lexical *float64

	// Fused is the blended score used for ranking.
	Fused float64
}

// SemanticOrZero returns the semantic score, or zero when absent.
func (c Candidate) SemanticOrZero() float64 {
	if c.Semantic == nil {
		return 0
	}
	return *c.Semantic
}

// ContextEntry is one chunk included in an assembled context payload,
// with provenance for citation.
type ContextEntry struct {
	// ChunkID identifies the included chunk.
	ChunkID string

	// DocumentID identifies the source document.
	DocumentID string

	// Filename is the source file name.
	Filename string

	// Seq is the chunk's position within the document.
	Seq int

	// Start and End are the chunk's rune offsets within the document.
	Start int
	End   int

	// Text is the chunk text, with any duplicated overlap region
	// trimmed from its leading edge.
	Text string

	// Score is the fused retrieval score.
	Score float64
}

// ContextPayload is the bounded context handed to the generation
// collaborator.
type ContextPayload struct {
	// Entries are the included chunks in rank order.
	Entries []ContextEntry

	// Size is the total payload size in runes after overlap trimming.
	Size int

	// Budget is the size limit the payload was assembled against.
	Budget int

	// Empty reports that no candidate cleared the minimum score
	// threshold. The generation collaborator should answer "no relevant
	// context found" rather than hallucinate.
	Empty bool

	// Degraded reports that one sub-index was unavailable and results
	// came solely from the other.
	Degraded bool
}
