package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Session tracking constants.
const (
	// entityDecay multiplies existing entity weights each observed turn,
	// so stale topics fade from the bias.
	entityDecay = 0.8

	// maxExpansionTerms bounds how many session entities are appended to
	// the lexical query.
	maxExpansionTerms = 3

	// maxAnswerSummaryRunes truncates stored answer summaries.
	maxAnswerSummaryRunes = 200
)

// Entity extraction patterns: quoted phrases, uppercase codes,
// capitalised word runs.
var (
	quotedPattern   = regexp.MustCompile(`"([^"]{2,60})"`)
	codePattern     = regexp.MustCompile(`\b[A-Z]{2,}-?\d+\b`)
	capitalisedRun  = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)
	entityStopwords = map[string]bool{
		"What": true, "When": true, "Where": true, "Which": true, "Who": true,
		"Why": true, "How": true, "Does": true, "Did": true, "The": true,
		"This": true, "That": true, "Is": true, "Are": true, "Can": true,
	}
)

// SessionTracker carries conversational state across turns and biases
// retrieval toward continuity. It never calls the generation
// collaborator.
type SessionTracker struct {
	sessions    driven.SessionStore
	maxTurns    int
	maxEntities int
	now         func() time.Time
}

// NewSessionTracker creates a tracker. Non-positive bounds select the
// defaults.
func NewSessionTracker(sessions driven.SessionStore, maxTurns, maxEntities int) *SessionTracker {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxTurns
	}
	if maxEntities <= 0 {
		maxEntities = domain.DefaultMaxEntities
	}
	return &SessionTracker{
		sessions:    sessions,
		maxTurns:    maxTurns,
		maxEntities: maxEntities,
		now:         time.Now,
	}
}

// Observe records a completed question/answer turn. Existing entity
// weights decay, entities from this turn reset to full weight, and the
// turn log is trimmed FIFO to the configured bound.
func (t *SessionTracker) Observe(ctx context.Context, sessionID, question, answerSummary string) error {
	if sessionID == "" {
		return fmt.Errorf("observe: %w: empty session id", domain.ErrInvalidInput)
	}

	now := t.now().UTC()
	session, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("observe: load session %s: %w", sessionID, err)
		}
		session = domain.NewSession(sessionID, now)
	}

	if summary := []rune(answerSummary); len(summary) > maxAnswerSummaryRunes {
		answerSummary = string(summary[:maxAnswerSummaryRunes])
	}

	entities := ExtractEntities(question + " " + answerSummary)
	logger.Debug("Session %s: extracted entities %v", sessionID, entities)

	for text := range session.Entities {
		session.Entities[text] *= entityDecay
	}
	for _, entity := range entities {
		session.Entities[entity] = 1.0
	}
	t.pruneEntities(session)

	session.Turns = append(session.Turns, domain.Turn{
		Question:      question,
		AnswerSummary: answerSummary,
		Entities:      entities,
		At:            now,
	})
	if len(session.Turns) > t.maxTurns {
		session.Turns = session.Turns[len(session.Turns)-t.maxTurns:]
	}

	if top := session.TopEntities(1); len(top) > 0 {
		session.Topic = top[0]
	}
	session.UpdatedAt = now

	if err := t.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("observe: save session %s: %w", sessionID, err)
	}
	return nil
}

// Bias returns expansion terms for the next retrieval. An unknown
// session yields no bias rather than an error.
func (t *SessionTracker) Bias(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := t.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("bias: load session %s: %w", sessionID, err)
	}
	terms := session.TopEntities(maxExpansionTerms)
	logger.Debug("Session %s: bias terms %v", sessionID, terms)
	return terms, nil
}

// Drop clears a session's state.
func (t *SessionTracker) Drop(ctx context.Context, sessionID string) error {
	if err := t.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("drop session %s: %w", sessionID, err)
	}
	return nil
}

// pruneEntities keeps only the heaviest maxEntities entries.
func (t *SessionTracker) pruneEntities(session *domain.Session) {
	if len(session.Entities) <= t.maxEntities {
		return
	}
	type weighted struct {
		text   string
		weight float64
	}
	all := make([]weighted, 0, len(session.Entities))
	for text, weight := range session.Entities {
		all = append(all, weighted{text, weight})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].weight != all[j].weight {
			return all[i].weight > all[j].weight
		}
		return all[i].text < all[j].text
	})
	for _, w := range all[t.maxEntities:] {
		delete(session.Entities, w.text)
	}
}

// ExtractEntities pulls candidate entities from turn text: quoted
// phrases, document codes, and capitalised word runs, minus leading
// question words.
func ExtractEntities(text string) []string {
	seen := make(map[string]bool)
	var entities []string

	add := func(entity string) {
		entity = strings.TrimSpace(entity)
		if entity == "" || entityStopwords[entity] || seen[entity] {
			return
		}
		seen[entity] = true
		entities = append(entities, entity)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range codePattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range capitalisedRun.FindAllString(text, -1) {
		// Single short capitalised words are usually sentence starts.
		if !strings.Contains(m, " ") && len(m) <= 3 {
			continue
		}
		add(m)
	}

	return entities
}
