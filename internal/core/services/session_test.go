package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

func TestObserve_CreatesSessionAndExtractsEntities(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 0, 0)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1",
		`What does the "termination clause" say about Acme Corp?`,
		"Acme Corp may terminate with 30 days notice."))

	session, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 1)
	assert.Equal(t, 1.0, session.Entities["termination clause"])
	assert.Equal(t, 1.0, session.Entities["Acme Corp"])
	assert.NotEmpty(t, session.Topic)
}

func TestObserve_DecaysOldEntities(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 0, 0)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Acme Corp", "ok"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "what about the Delivery Schedule?", "ok"))

	session, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, session.Entities["Acme Corp"], 1e-9)
	assert.Equal(t, 1.0, session.Entities["Delivery Schedule"])
}

func TestObserve_TurnLogIsFIFO(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 2, 0)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1", "first question", "a"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "second question", "b"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "third question", "c"))

	session, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 2)
	assert.Equal(t, "second question", session.Turns[0].Question)
	assert.Equal(t, "third question", session.Turns[1].Question)
}

func TestObserve_PrunesEntities(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 0, 2)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Alpha Project", "ok"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Bravo Project", "ok"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Charlie Project", "ok"))

	session, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(session.Entities), 2)
	assert.Contains(t, session.Entities, "Charlie Project")
}

func TestObserve_EmptySessionID(t *testing.T) {
	tracker := NewSessionTracker(newMockSessionStore(), 0, 0)
	err := tracker.Observe(context.Background(), "", "q", "a")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBias_ReturnsTopEntities(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 0, 0)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Acme Corp", "ok"))
	require.NoError(t, tracker.Observe(ctx, "s-1", "and the Refund Policy?", "ok"))

	terms, err := tracker.Bias(ctx, "s-1")
	require.NoError(t, err)
	require.NotEmpty(t, terms)
	// Most recent entity carries full weight and ranks first.
	assert.Equal(t, "Refund Policy", terms[0])
	assert.Contains(t, terms, "Acme Corp")
}

func TestBias_UnknownSessionIsSilent(t *testing.T) {
	tracker := NewSessionTracker(newMockSessionStore(), 0, 0)

	terms, err := tracker.Bias(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, terms)

	terms, err = tracker.Bias(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestDrop(t *testing.T) {
	store := newMockSessionStore()
	tracker := NewSessionTracker(store, 0, 0)
	ctx := context.Background()

	require.NoError(t, tracker.Observe(ctx, "s-1", "tell me about Acme Corp", "ok"))
	require.NoError(t, tracker.Drop(ctx, "s-1"))

	terms, err := tracker.Bias(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "quoted phrase",
			text: `look at the "payment schedule" section`,
			want: []string{"payment schedule"},
		},
		{
			name: "document code",
			text: "status of INV-2024 please",
			want: []string{"INV-2024"},
		},
		{
			name: "capitalised run",
			text: "compare it with the Master Service Agreement",
			want: []string{"Master Service Agreement"},
		},
		{
			name: "question words ignored",
			text: "What is this? How does it work?",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEntities(tt.text))
		})
	}
}
