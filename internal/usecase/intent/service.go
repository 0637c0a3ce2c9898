package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

const systemPrompt = `You analyze one user utterance from a data conversation and extract its structured requirements.

Respond with a JSON object:
{
  "is_continuation": bool,        // does this turn build on the previous one?
  "is_pagination_request": bool,  // is the user asking for more of the same results?
  "continuation_type": "pagination" | "refinement" | "clarification" | "new_query",
  "metrics_needed": [string],     // quantitative concepts, e.g. "premium amount"
  "dimensions_needed": [string],  // categorical or descriptive concepts, e.g. "state"
  "filters": [{"type": string, "value": string, "concept": string}],
  "temporal_needed": bool         // does the question involve dates or time periods?
}

Never include aggregation functions; only name the concepts the user asked about.`

const historyLimit = 6

// Service extracts a structured Intent from one utterance.
type Service struct {
	inference Inference
	logger    *zap.Logger
}

// New creates an intent analyzer.
func New(inference Inference, logger *zap.Logger) *Service {
	return &Service{inference: inference, logger: logger}
}

// Analyze extracts the intent of an utterance given recent conversation
// history. The "show me more" phrase family short-circuits to a pagination
// intent without an inference call. Analysis failures degrade to the empty
// intent; this method never fails the turn.
func (s *Service) Analyze(ctx context.Context, utterance string, history []domain.Message) domain.Intent {
	if domain.IsPaginationPhrase(utterance) {
		return domain.Intent{
			IsContinuation:      true,
			IsPaginationRequest: true,
			ContinuationType:    domain.ContinuationPagination,
			MetricsNeeded:       []string{},
			DimensionsNeeded:    []string{},
			Filters:             []domain.IntentFilter{},
		}
	}

	messages := []domain.Message{{Role: domain.RoleSystem, Content: systemPrompt}}
	if len(history) > 0 {
		messages = append(messages, domain.Message{
			Role:    domain.RoleSystem,
			Content: "Recent conversation:\n" + renderHistory(history, historyLimit),
		})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: utterance})

	var out domain.Intent
	if err := s.inference.CompleteStructured(ctx, messages, &out, domain.CompletionOptions{}); err != nil {
		s.logger.Warn("Intent analysis failed, using empty intent",
			zap.String("utterance", utterance),
			zap.Error(err))
		return domain.EmptyIntent()
	}

	return out.Normalize()
}

func renderHistory(history []domain.Message, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
