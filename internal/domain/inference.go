package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionOptions tune a single inference call.
type CompletionOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Inference produces text and structured completions. Failures are returned
// as errors, never silent empty values; callers catch and fall back.
type Inference interface {
	// Complete generates a free-text completion.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
	// CompleteStructured generates a JSON completion and unmarshals it into
	// out. Responses that do not conform to the expected shape are rejected
	// at this boundary with ErrInvalidPayload.
	CompleteStructured(ctx context.Context, messages []Message, out any, opts CompletionOptions) error
}

// ExecutionBackend runs SQL against one tabular dataset. No idempotency is
// guaranteed, so the core never retries a failed execution.
type ExecutionBackend interface {
	Execute(ctx context.Context, datasetID, sql string) (ExecutionResult, error)
}
