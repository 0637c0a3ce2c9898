package conversation

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// Store is the conversation state contract.
type Store interface {
	Create(userID string) *domain.Conversation
	Get(id string) (*domain.Conversation, error)
	Update(id string, fn func(*domain.Conversation)) error
	AppendMessage(id string, msg domain.Message) error
	Delete(id string)
	ListByUser(userID string) []domain.ConversationSummary
}

// Inference produces free-text completions for history summarization.
type Inference interface {
	Complete(ctx context.Context, messages []domain.Message, opts domain.CompletionOptions) (string, error)
}
