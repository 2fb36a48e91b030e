package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Rejected before any index mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates a document with no extractable text.
	ErrEmptyDocument = errors.New("empty document")

	// ErrProviderUnavailable indicates the embedding provider cannot be
	// reached. Callers retry with bounded backoff before marking the
	// affected document failed.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrIndexUnavailable indicates an index backend failed or is corrupt.
	// Retrieval degrades to the remaining index instead of failing.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrDocumentNotReady indicates a document is still indexing or failed
	// indexing and must not be visible to retrieval.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrSessionNotFound indicates an unknown session identifier.
	ErrSessionNotFound = errors.New("session not found")
)
