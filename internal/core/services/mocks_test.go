package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// ---- document store ----

type mockDocStore struct {
	mu        sync.Mutex
	documents map[string]*domain.Document
	chunks    map[string]*domain.Chunk

	saveChunksErr error
	setStatusErr  error
}

var _ driven.DocumentStore = (*mockDocStore)(nil)

func newMockDocStore() *mockDocStore {
	return &mockDocStore{
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string]*domain.Chunk),
	}
}

func (m *mockDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.documents[doc.ID] = &copied
	return nil
}

func (m *mockDocStore) SetStatus(_ context.Context, documentID string, status domain.DocumentStatus) error {
	if m.setStatusErr != nil {
		return m.setStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	return nil
}

func (m *mockDocStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if m.saveChunksErr != nil {
		return m.saveChunksErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		copied := chunk
		m.chunks[chunk.ID] = &copied
	}
	return nil
}

func (m *mockDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *chunk
	return &copied, nil
}

func (m *mockDocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []domain.Chunk
	for _, chunk := range m.chunks {
		if chunk.DocumentID == documentID {
			chunks = append(chunks, *chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (m *mockDocStore) ListDocuments(_ context.Context) ([]domain.DocumentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, chunk := range m.chunks {
		counts[chunk.DocumentID]++
	}
	var stats []domain.DocumentStats
	for id, doc := range m.documents {
		stats = append(stats, domain.DocumentStats{Document: *doc, ChunkCount: counts[id]})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Document.ID < stats[j].Document.ID })
	return stats, nil
}

func (m *mockDocStore) ListReadyIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, doc := range m.documents {
		if doc.Status == domain.StatusReady {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockDocStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	for chunkID, chunk := range m.chunks {
		if chunk.DocumentID == id {
			delete(m.chunks, chunkID)
		}
	}
	return nil
}

func (m *mockDocStore) status(id string) domain.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.documents[id]; ok {
		return doc.Status
	}
	return ""
}

// ---- embedding service ----

type mockEmbedder struct {
	mu      sync.Mutex
	embedFn func(text string) ([]float32, error)
	calls   int
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		embedFn: func(string) ([]float32, error) { return []float32{1, 0, 0}, nil },
	}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	fn := m.embedFn
	m.mu.Unlock()
	return fn(text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return 3 }
func (m *mockEmbedder) ModelName() string          { return "mock" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---- vector index ----

type mockVectorIndex struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	docOf     map[string]string
	upsertErr error
	queryFn   func(k int, documentIDs []string) ([]driven.VectorHit, error)
}

var _ driven.VectorIndex = (*mockVectorIndex)(nil)

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{
		vectors: make(map[string][]float32),
		docOf:   make(map[string]string),
	}
}

func (m *mockVectorIndex) Upsert(_ context.Context, chunkID, documentID string, embedding []float32) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[chunkID] = embedding
	m.docOf[chunkID] = documentID
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, k int, documentIDs []string) ([]driven.VectorHit, error) {
	if m.queryFn != nil {
		return m.queryFn(k, documentIDs)
	}
	return nil, nil
}

func (m *mockVectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chunkID, docID := range m.docOf {
		if docID == documentID {
			delete(m.vectors, chunkID)
			delete(m.docOf, chunkID)
		}
	}
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors)
}

// ---- lexical index ----

type mockLexicalIndex struct {
	mu        sync.Mutex
	texts     map[string]string
	docOf     map[string]string
	indexErr  error
	lastQuery string
	searchFn  func(query string, limit int, documentIDs []string) ([]driven.LexicalHit, error)
}

var _ driven.LexicalIndex = (*mockLexicalIndex)(nil)

func newMockLexicalIndex() *mockLexicalIndex {
	return &mockLexicalIndex{
		texts: make(map[string]string),
		docOf: make(map[string]string),
	}
}

func (m *mockLexicalIndex) Index(_ context.Context, chunkID, documentID, text string) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[chunkID] = text
	m.docOf[chunkID] = documentID
	return nil
}

func (m *mockLexicalIndex) Search(_ context.Context, query string, limit int, documentIDs []string) ([]driven.LexicalHit, error) {
	m.mu.Lock()
	m.lastQuery = query
	fn := m.searchFn
	m.mu.Unlock()
	if fn != nil {
		return fn(query, limit, documentIDs)
	}
	return nil, nil
}

func (m *mockLexicalIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chunkID, docID := range m.docOf {
		if docID == documentID {
			delete(m.texts, chunkID)
			delete(m.docOf, chunkID)
		}
	}
	return nil
}

func (m *mockLexicalIndex) Close() error { return nil }

func (m *mockLexicalIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *mockLexicalIndex) receivedQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// ---- session store ----

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

var _ driven.SessionStore = (*mockSessionStore)(nil)

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionStore) Save(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	copied.Turns = append([]domain.Turn(nil), session.Turns...)
	copied.Entities = make(map[string]float64, len(session.Entities))
	for text, weight := range session.Entities {
		copied.Entities[text] = weight
	}
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	copied.Turns = append([]domain.Turn(nil), session.Turns...)
	copied.Entities = make(map[string]float64, len(session.Entities))
	for text, weight := range session.Entities {
		copied.Entities[text] = weight
	}
	return &copied, nil
}

func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
