package discovery

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

// Index provides read-only access to the column metadata index.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int, datasetID string) ([]domain.ColumnHit, error)
	ScrollDataset(ctx context.Context, datasetID string, limit int) ([]domain.ColumnHit, error)
	DatasetInfo(ctx context.Context, datasetID string) (domain.DatasetInfo, error)
}

// Embedder vectorizes facet queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cache stores facet search results between turns.
type Cache interface {
	Get(ctx context.Context, category cache.Category, params map[string]any, out any) (bool, error)
	Set(ctx context.Context, category cache.Category, params map[string]any, value any) error
}
