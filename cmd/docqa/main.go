// Command docqa is a document question-answering CLI. It ingests
// extracted document text and serves bounded, cited context for
// questions via hybrid semantic and keyword retrieval.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/lexical"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/vector/local"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/services"
	"github.com/custodia-labs/docqa-cli/internal/segmenter"
)

const qdrantCollection = "docqa_chunks"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	docStore := store.DocumentStore()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("configuring embedding provider: %w", err)
	}
	defer embedder.Close()

	vectorIndex, err := openVectorIndex(ctx, cfg, embedder.Dimensions(), os.Stderr)
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	defer vectorIndex.Close()

	// Lexical postings live in memory and are rebuilt from the store.
	lexicalIndex := lexical.New()
	defer lexicalIndex.Close()
	if err := rebuildLexical(ctx, docStore, lexicalIndex); err != nil {
		return fmt.Errorf("rebuilding lexical index: %w", err)
	}

	var segOpts []segmenter.Option
	if size := cfg.GetInt(file.KeyChunkSize); size > 0 {
		segOpts = append(segOpts, segmenter.WithChunkSize(size))
	}
	if overlap := cfg.GetInt(file.KeyChunkOverlap); overlap > 0 {
		segOpts = append(segOpts, segmenter.WithOverlap(overlap))
	}
	seg := segmenter.New(segOpts...)

	var ingestOpts []services.IngestOption
	if retries := cfg.GetInt(file.KeyEmbedRetries); retries > 0 {
		ingestOpts = append(ingestOpts, services.WithEmbedRetries(retries))
	}
	if workers := cfg.GetInt(file.KeyIngestWorkers); workers > 0 {
		ingestOpts = append(ingestOpts, services.WithIngestWorkers(workers))
	}
	ingestSvc := services.NewIngestService(docStore, vectorIndex, lexicalIndex, embedder, seg, ingestOpts...)

	var queryOpts []services.QueryOption
	if limit := cfg.GetInt(file.KeyRetrieveLimit); limit > 0 {
		queryOpts = append(queryOpts, services.WithRetrieveLimit(limit))
	}
	if minScore := cfg.GetFloat(file.KeyMinScore); minScore > 0 {
		queryOpts = append(queryOpts, services.WithMinScore(minScore))
	}
	if sw, lw := cfg.GetFloat(file.KeySemanticWeight), cfg.GetFloat(file.KeyLexicalWeight); sw > 0 || lw > 0 {
		queryOpts = append(queryOpts, services.WithFusionWeights(domain.FusionWeights{Semantic: sw, Lexical: lw}))
	}
	retriever := services.NewRetriever(docStore, vectorIndex, lexicalIndex, embedder)
	assembler := services.NewAssembler(docStore, cfg.GetInt(file.KeyContextBudget))
	tracker := services.NewSessionTracker(
		store.SessionStore(),
		cfg.GetInt(file.KeySessionTurns),
		cfg.GetInt(file.KeySessionTopics),
	)
	querySvc := services.NewQueryService(retriever, assembler, tracker, queryOpts...)

	cli.SetServices(ingestSvc, querySvc)
	return cli.Execute()
}

// buildEmbedder selects the embedding backend from config. Ollama is
// the default; OpenAI is opted into per install.
func buildEmbedder(cfg *file.ConfigStore) (driven.EmbeddingService, error) {
	switch cfg.GetString(file.KeyEmbedBackend) {
	case "openai":
		apiKey := cfg.GetString(file.KeyEmbedAPIKey)
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.NewEmbeddingService(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.GetString(file.KeyEmbedBaseURL),
			Model:   cfg.GetString(file.KeyEmbedModel),
		})
	default:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL: cfg.GetString(file.KeyEmbedBaseURL),
			Model:   cfg.GetString(file.KeyEmbedModel),
		}), nil
	}
}

// openVectorIndex builds the configured vector backend. A corrupt or
// unreadable snapshot must not take queries down with it, so that case
// degrades to a stub and retrieval serves lexical-only results.
func openVectorIndex(ctx context.Context, cfg *file.ConfigStore, dimension int, warnTo io.Writer) (driven.VectorIndex, error) {
	idx, err := buildVectorIndex(ctx, cfg, dimension)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		return nil, err
	}
	fmt.Fprintf(warnTo, "Warning: vector index unavailable, retrieval is lexical-only: %v\n", err)
	return unavailableVectorIndex{}, nil
}

// buildVectorIndex selects the vector backend from config. The local
// snapshot index is the default; qdrant is opted into per install.
func buildVectorIndex(ctx context.Context, cfg *file.ConfigStore, dimension int) (driven.VectorIndex, error) {
	switch cfg.GetString(file.KeyVectorBackend) {
	case "qdrant":
		addr := cfg.GetString(file.KeyQdrantAddr)
		if addr == "" {
			addr = "localhost:6334"
		}
		return qdrant.New(ctx, addr, qdrantCollection, dimension)
	default:
		path := cfg.GetString(file.KeyVectorPath)
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(home, ".docqa", "data", "vectors.idx")
		}
		return local.New(path, dimension)
	}
}

// unavailableVectorIndex stands in when the snapshot cannot be read.
// Every operation reports the index as unavailable, which the
// retriever handles as degraded single-index mode.
type unavailableVectorIndex struct{}

func (unavailableVectorIndex) Upsert(context.Context, string, string, []float32) error {
	return domain.ErrIndexUnavailable
}

func (unavailableVectorIndex) Query(context.Context, []float32, int, []string) ([]driven.VectorHit, error) {
	return nil, domain.ErrIndexUnavailable
}

func (unavailableVectorIndex) DeleteByDocument(context.Context, string) error {
	return domain.ErrIndexUnavailable
}

func (unavailableVectorIndex) Close() error { return nil }

// rebuildLexical reindexes the chunks of every ready document.
func rebuildLexical(ctx context.Context, docStore driven.DocumentStore, idx *lexical.Index) error {
	ids, err := docStore.ListReadyIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		chunks, err := docStore.GetChunks(ctx, id)
		if err != nil {
			return err
		}
		for i := range chunks {
			if err := idx.Index(ctx, chunks[i].ID, chunks[i].DocumentID, chunks[i].Text); err != nil {
				return err
			}
		}
	}
	return nil
}
