package sqlgen

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

// Inference produces structured completions for report plan refinement.
type Inference interface {
	CompleteStructured(ctx context.Context, messages []domain.Message, out any, opts domain.CompletionOptions) error
}

// Cache stores generated SQL between turns.
type Cache interface {
	Get(ctx context.Context, category cache.Category, params map[string]any, out any) (bool, error)
	Set(ctx context.Context, category cache.Category, params map[string]any, value any) error
}
