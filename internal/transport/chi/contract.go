package chi

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
	"github.com/colloquy-ai/colloquy/internal/usecase/health"
	"github.com/colloquy-ai/colloquy/internal/usecase/pipeline"
)

// QueryResolver runs one conversational query turn.
type QueryResolver interface {
	Resolve(ctx context.Context, req pipeline.Request) (domain.Response, error)
}

// ConversationReader serves conversation lookups and deletion.
type ConversationReader interface {
	Get(id string) (*domain.Conversation, error)
	List(userID string) []domain.ConversationSummary
	Delete(id string)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// CacheInspector reports cache contents by category.
type CacheInspector interface {
	Stats(ctx context.Context) (cache.Stats, error)
}
