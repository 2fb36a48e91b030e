package cli

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
)

// mockIngestService returns canned data for command tests.
type mockIngestService struct {
	statuses map[string]domain.DocumentStatus
	dropped  []string
}

func (m *mockIngestService) IngestDocument(_ context.Context, documentID, _ string, _ []string) (domain.DocumentStatus, error) {
	if status, ok := m.statuses[documentID]; ok {
		return status, nil
	}
	return domain.StatusReady, nil
}

func (m *mockIngestService) IngestAll(_ context.Context, docs []driving.IngestRequest) map[string]domain.DocumentStatus {
	out := make(map[string]domain.DocumentStatus, len(docs))
	for _, doc := range docs {
		if status, ok := m.statuses[doc.DocumentID]; ok {
			out[doc.DocumentID] = status
		} else {
			out[doc.DocumentID] = domain.StatusReady
		}
	}
	return out
}

func (m *mockIngestService) DropDocument(_ context.Context, documentID string) error {
	m.dropped = append(m.dropped, documentID)
	return nil
}

func (m *mockIngestService) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	contents := map[string]string{
		"invoice-42": "Invoice no. 42. Amount due: 1,200.00. Payment within 30 days.",
		"contract-7": "This agreement between the parties sets out the terms and obligations.",
	}
	content, ok := contents[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Document{
		ID:       documentID,
		Filename: documentID + ".txt",
		Content:  content,
		Status:   domain.StatusReady,
	}, nil
}

func (m *mockIngestService) ListDocuments(context.Context) ([]domain.DocumentStats, error) {
	return []domain.DocumentStats{
		{
			Document: domain.Document{
				ID:        "invoice-42",
				Filename:  "invoice-42.txt",
				Status:    domain.StatusReady,
				CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			ChunkCount: 3,
		},
	}, nil
}

// mockQueryService returns a single-entry payload for any question.
type mockQueryService struct {
	observed     []string
	droppedIDs   []string
	lastQuestion string
}

func (m *mockQueryService) Query(_ context.Context, question, _ string, _ []string) (*domain.ContextPayload, error) {
	m.lastQuestion = question
	return &domain.ContextPayload{
		Entries: []domain.ContextEntry{
			{
				ChunkID:    "invoice-42-0",
				DocumentID: "invoice-42",
				Filename:   "invoice-42.txt",
				Seq:        0,
				Text:       "Payment is due within thirty days of the invoice date.",
				Score:      0.87,
			},
		},
		Size:   54,
		Budget: 4000,
	}, nil
}

func (m *mockQueryService) Observe(_ context.Context, sessionID, _, _ string) error {
	m.observed = append(m.observed, sessionID)
	return nil
}

func (m *mockQueryService) DropSession(_ context.Context, sessionID string) error {
	m.droppedIDs = append(m.droppedIDs, sessionID)
	return nil
}

// mockQueryServiceError fails every call.
type mockQueryServiceError struct{}

func (mockQueryServiceError) Query(context.Context, string, string, []string) (*domain.ContextPayload, error) {
	return nil, errors.New("mock query error")
}

func (mockQueryServiceError) Observe(context.Context, string, string, string) error {
	return errors.New("mock observe error")
}

func (mockQueryServiceError) DropSession(context.Context, string) error {
	return errors.New("mock drop error")
}

// setupTestServices installs mock services and returns a cleanup that
// restores the previous ones.
func setupTestServices() func() {
	oldIngest := ingestService
	oldQuery := queryService

	ingestService = &mockIngestService{}
	queryService = &mockQueryService{}

	return func() {
		ingestService = oldIngest
		queryService = oldQuery
	}
}
