package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_ExactTokenPrecision(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c1", "d1", "Invoice INV-2024-0042 issued on 15/03/2024 for $1,250.00"))
	require.NoError(t, idx.Index(ctx, "c2", "d1", "General terms and conditions apply to all invoices"))
	require.NoError(t, idx.Index(ctx, "c3", "d2", "Payment reminder for outstanding balance"))

	hits, err := idx.Search(ctx, "INV-2024-0042", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestIndex_CommonTermsPenalised(t *testing.T) {
	idx := New()
	ctx := context.Background()

	// "contract" appears everywhere, "arbitration" only once.
	require.NoError(t, idx.Index(ctx, "c1", "d1", "contract renewal contract terms contract"))
	require.NoError(t, idx.Index(ctx, "c2", "d1", "contract arbitration clause"))
	require.NoError(t, idx.Index(ctx, "c3", "d1", "contract signature page"))

	hits, err := idx.Search(ctx, "arbitration contract", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c2", hits[0].ChunkID, "rare term should dominate ranking")
}

func TestIndex_DocumentFilter(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c1", "docA", "quarterly revenue grew steadily"))
	require.NoError(t, idx.Index(ctx, "c2", "docB", "quarterly revenue declined sharply"))

	hits, err := idx.Search(ctx, "quarterly revenue", 10, []string{"docA"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestIndex_DeleteByDocument(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c1", "docA", "alpha beta gamma"))
	require.NoError(t, idx.Index(ctx, "c2", "docB", "alpha delta epsilon"))

	require.NoError(t, idx.DeleteByDocument(ctx, "docA"))

	hits, err := idx.Search(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID)
}

func TestIndex_ReindexReplacesPostings(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c1", "d1", "original wording"))
	require.NoError(t, idx.Index(ctx, "c1", "d1", "replacement wording"))

	hits, err := idx.Search(ctx, "original", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale postings should be gone after re-index")

	hits, err = idx.Search(ctx, "replacement", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestIndex_StableTieBreak(t *testing.T) {
	idx := New()
	ctx := context.Background()

	// Identical texts score identically; insertion order decides.
	require.NoError(t, idx.Index(ctx, "c2", "d1", "identical twin text"))
	require.NoError(t, idx.Index(ctx, "c1", "d1", "identical twin text"))

	for i := 0; i < 5; i++ {
		hits, err := idx.Search(ctx, "identical twin", 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "c2", hits[0].ChunkID, "earlier insertion wins ties")
	}
}

func TestIndex_StopwordsIgnored(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, "c1", "d1", "the agreement between the parties"))

	hits, err := idx.Search(ctx, "the and of", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "stop-word-only query matches nothing")
}

func TestIndex_LimitAndClosed(t *testing.T) {
	idx := New()
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, idx.Index(ctx, id, "d1", "shared token "+id))
	}

	hits, err := idx.Search(ctx, "shared", 2, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	require.NoError(t, idx.Close())
	_, err = idx.Search(ctx, "shared", 2, nil)
	assert.Error(t, err)
}
