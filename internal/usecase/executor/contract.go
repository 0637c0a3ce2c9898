package executor

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

// Backend runs SQL against one dataset.
type Backend interface {
	Execute(ctx context.Context, datasetID, sql string) (domain.ExecutionResult, error)
}

// Cache stores complete result sets between turns.
type Cache interface {
	Get(ctx context.Context, category cache.Category, params map[string]any, out any) (bool, error)
	Set(ctx context.Context, category cache.Category, params map[string]any, value any) error
}
