package services

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/lexical"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/vector/local"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/segmenter"
)

const bowDims = 64

// bowEmbedder hashes tokens into a fixed number of dimensions and
// L2-normalises the result. Deterministic, and related texts get
// related vectors, enough to exercise the real indexes end to end.
type bowEmbedder struct{}

func (bowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, bowDims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%bowDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e bowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (bowEmbedder) Dimensions() int            { return bowDims }
func (bowEmbedder) ModelName() string          { return "bag-of-words" }
func (bowEmbedder) Ping(context.Context) error { return nil }
func (bowEmbedder) Close() error               { return nil }

type pipeline struct {
	ingest *IngestService
	query  *QueryService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	docStore := memory.NewDocumentStore()
	vec, err := local.New(filepath.Join(t.TempDir(), "vectors.idx"), bowDims)
	require.NoError(t, err)
	lex := lexical.New()
	seg := segmenter.New(segmenter.WithChunkSize(80), segmenter.WithOverlap(10))
	emb := bowEmbedder{}

	retriever := NewRetriever(docStore, vec, lex, emb)
	assembler := NewAssembler(docStore, 2000)
	tracker := NewSessionTracker(memory.NewSessionStore(), 0, 0)

	return &pipeline{
		ingest: NewIngestService(docStore, vec, lex, emb, seg),
		query:  NewQueryService(retriever, assembler, tracker),
	}
}

var manualSections = []string{
	"The first section describes the painting process. Paint is applied in two coats and dried overnight.",
	"The second section covers the gearbox. The gearbox lubrication interval is two hundred hours.",
	"The third section explains shipping. Crates are sealed and labelled before leaving the plant.",
}

func TestPipeline_TopChunkComesFromMatchingSection(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	status, err := p.ingest.IngestDocument(ctx, "manual", "manual.txt", manualSections)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReady, status)

	payload, err := p.query.Query(ctx, "what is the gearbox lubrication interval?", "", nil)
	require.NoError(t, err)
	require.False(t, payload.Empty)
	require.NotEmpty(t, payload.Entries)

	doc, err := p.ingest.GetDocument(ctx, "manual")
	require.NoError(t, err)
	require.Len(t, doc.BlockOffsets, 3)

	top := payload.Entries[0]
	assert.Contains(t, top.Text, "gearbox")
	sectionStart, sectionEnd := doc.BlockOffsets[1], doc.BlockOffsets[2]
	assert.Less(t, top.Start, sectionEnd, "top chunk starts before the section ends")
	assert.Greater(t, top.End, sectionStart, "top chunk ends after the section starts")
}

func TestPipeline_ReingestServesOnlyTheNewVersion(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.ingest.IngestDocument(ctx, "manual", "manual.txt", manualSections)
	require.NoError(t, err)

	status, err := p.ingest.IngestDocument(ctx, "manual", "manual.txt", []string{
		"Revised edition. Maintenance intervals moved to the service portal.",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReady, status)

	payload, err := p.query.Query(ctx, "gearbox lubrication interval", "", nil)
	require.NoError(t, err)
	for _, entry := range payload.Entries {
		assert.NotContains(t, entry.Text, "two hundred hours")
	}

	stats, err := p.ingest.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].ChunkCount)
}

func TestPipeline_DocumentFilterExcludesOtherDocuments(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.ingest.IngestDocument(ctx, "doc-a", "a.txt", []string{
		"The warranty period for the gearbox is twelve months from delivery.",
	})
	require.NoError(t, err)
	_, err = p.ingest.IngestDocument(ctx, "doc-b", "b.txt", []string{
		"The gearbox warranty excludes damage caused by missed lubrication.",
	})
	require.NoError(t, err)

	payload, err := p.query.Query(ctx, "gearbox warranty", "", []string{"doc-a"})
	require.NoError(t, err)
	require.NotEmpty(t, payload.Entries)
	for _, entry := range payload.Entries {
		assert.Equal(t, "doc-a", entry.DocumentID)
	}
}

func TestPipeline_DroppedDocumentNeverReturned(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.ingest.IngestDocument(ctx, "doc-a", "a.txt", []string{
		"Shipping crates are sealed and labelled before leaving the plant.",
	})
	require.NoError(t, err)
	_, err = p.ingest.IngestDocument(ctx, "doc-b", "b.txt", []string{
		"The gearbox lubrication interval is two hundred hours.",
	})
	require.NoError(t, err)

	require.NoError(t, p.ingest.DropDocument(ctx, "doc-b"))

	payload, err := p.query.Query(ctx, "gearbox lubrication interval", "", nil)
	require.NoError(t, err)
	for _, entry := range payload.Entries {
		assert.NotEqual(t, "doc-b", entry.DocumentID)
	}
}

func TestPipeline_RankingIsDeterministic(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.ingest.IngestDocument(ctx, "manual", "manual.txt", manualSections)
	require.NoError(t, err)

	first, err := p.query.Query(ctx, "painting and shipping", "", nil)
	require.NoError(t, err)
	second, err := p.query.Query(ctx, "painting and shipping", "", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
