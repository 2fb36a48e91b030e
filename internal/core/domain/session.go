package domain

import "time"

// DefaultMaxTurns bounds the per-session turn log. Older turns are
// evicted in FIFO order.
const DefaultMaxTurns = 20

// DefaultMaxEntities bounds the tracked entity set per session.
const DefaultMaxEntities = 10

// Turn is one question/answer exchange in a session.
type Turn struct {
	// Question is the user's question.
	Question string

	// AnswerSummary is a truncated form of the generated answer.
	AnswerSummary string

	// Entities are the entities extracted from the turn.
	Entities []string

	// At is when the turn was observed.
	At time.Time
}

// Entity is a recently mentioned entity or topic with a recency weight.
// Weights decay as later turns are observed.
type Entity struct {
	// Text is the entity as it appeared.
	Text string

	// Weight is the recency weight in (0, 1].
	Weight float64
}

// Session carries cross-turn conversational state. It biases retrieval
// toward continuity; it never calls the generation collaborator.
type Session struct {
	// ID is the session identifier.
	ID string

	// Turns is the bounded FIFO log of prior exchanges.
	Turns []Turn

	// Entities maps entity text to recency weight.
	Entities map[string]float64

	// Topic is the current conversation topic, if detected.
	Topic string

	// CreatedAt is when the session started.
	CreatedAt time.Time

	// UpdatedAt is when the session last observed a turn.
	UpdatedAt time.Time
}

// NewSession creates an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Entities:  make(map[string]float64),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TopEntities returns up to n entities ordered by descending weight,
// ties broken alphabetically for determinism.
func (s *Session) TopEntities(n int) []string {
	type weighted struct {
		text   string
		weight float64
	}
	entities := make([]weighted, 0, len(s.Entities))
	for text, weight := range s.Entities {
		entities = append(entities, weighted{text, weight})
	}
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0; j-- {
			a, b := entities[j-1], entities[j]
			if b.weight > a.weight || (b.weight == a.weight && b.text < a.text) {
				entities[j-1], entities[j] = b, a
			} else {
				break
			}
		}
	}
	if n > len(entities) {
		n = len(entities)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = entities[i].text
	}
	return out
}
