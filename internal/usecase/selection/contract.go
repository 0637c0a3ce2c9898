package selection

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// Inference produces structured completions for column selection.
type Inference interface {
	CompleteStructured(ctx context.Context, messages []domain.Message, out any, opts domain.CompletionOptions) error
}
