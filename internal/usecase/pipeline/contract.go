package pipeline

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/usecase/selection"
)

// IntentAnalyzer extracts structured intents from utterances.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, utterance string, history []domain.Message) domain.Intent
}

// Router classifies the turn's route.
type Router interface {
	Decide(ctx context.Context, utterance string) domain.RouteDecision
}

// Discovery resolves the dataset for a turn.
type Discovery interface {
	Discover(ctx context.Context, turn *domain.Turn, conv *domain.Conversation) (domain.DatasetContext, error)
}

// Selector picks columns and filter bindings.
type Selector interface {
	Select(ctx context.Context, turn *domain.Turn, dataset domain.DatasetContext) (selection.Selection, error)
}

// Generator produces SQL for a turn.
type Generator interface {
	Generate(ctx context.Context, turn *domain.Turn, dataset domain.DatasetContext, sel selection.Selection, previousSQL string) (string, domain.QueryPlan, error)
}

// Executor resolves the full result buffer for SQL.
type Executor interface {
	Run(ctx context.Context, turn *domain.Turn, datasetID, sql string, previous *domain.ResultBuffer, columns []string) (domain.ResultBuffer, error)
}

// Conversations manages conversation state around a turn.
type Conversations interface {
	Ensure(conversationID, userID string) (*domain.Conversation, error)
	PromptHistory(conv *domain.Conversation) []domain.Message
	RecordTurn(ctx context.Context, turn *domain.Turn, response domain.Response) error
}

// Inference produces free-text completions for response synthesis.
type Inference interface {
	Complete(ctx context.Context, messages []domain.Message, opts domain.CompletionOptions) (string, error)
}
