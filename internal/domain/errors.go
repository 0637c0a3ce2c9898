package domain

import "errors"

var (
	// ErrNoRelevantColumns signals that column discovery found nothing usable.
	ErrNoRelevantColumns = errors.New("no relevant columns found")
	// ErrNoDataset signals that no dataset or columns are available for SQL generation.
	ErrNoDataset = errors.New("no dataset selected")
	// ErrExecutionFailed signals a query execution backend failure.
	ErrExecutionFailed = errors.New("query execution failed")
	// ErrInferenceFailed signals an inference provider failure.
	ErrInferenceFailed = errors.New("inference provider error")
	// ErrEmbeddingFailed signals an embedding provider failure.
	ErrEmbeddingFailed = errors.New("embedding provider error")
	// ErrInvalidPayload signals a structured inference response that does not
	// conform to the expected shape.
	ErrInvalidPayload = errors.New("invalid structured payload")
	// ErrConversationNotFound signals a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMissingCredentials signals absent external-service credentials at startup.
	ErrMissingCredentials = errors.New("missing required credentials")
)
