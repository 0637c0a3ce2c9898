package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

const summarizePrompt = `Summarize the following data-conversation turns in a few sentences.
Keep dataset names, filter values, and what the user was looking for. Plain text only.`

// Service manages conversation lifecycle, prompt history, and the rolling
// summary that keeps long conversations inside the inference context window.
type Service struct {
	store        Store
	inference    Inference
	summaryAfter int
	recentKept   int
	logger       *zap.Logger
}

// New creates a conversation service. summaryAfter is the message count past
// which older history collapses into a summary; recentKept is the verbatim
// tail preserved.
func New(store Store, inference Inference, summaryAfter, recentKept int, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		inference:    inference,
		summaryAfter: summaryAfter,
		recentKept:   recentKept,
		logger:       logger,
	}
}

// Ensure resolves the conversation for a turn, creating one when no ID is
// given.
func (s *Service) Ensure(conversationID, userID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return s.store.Create(userID), nil
	}
	conv, err := s.store.Get(conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return conv, nil
}

// Get returns a conversation by ID.
func (s *Service) Get(id string) (*domain.Conversation, error) {
	conv, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns the user's conversations, most recent first.
func (s *Service) List(userID string) []domain.ConversationSummary {
	return s.store.ListByUser(userID)
}

// Delete removes a conversation and its carried state.
func (s *Service) Delete(id string) {
	s.store.Delete(id)
}

// PromptHistory renders the history context for inference calls: the rolling
// summary, if any, followed by the verbatim recent tail.
func (s *Service) PromptHistory(conv *domain.Conversation) []domain.Message {
	var out []domain.Message
	if conv.Summary != "" {
		out = append(out, domain.Message{
			Role:    domain.RoleSystem,
			Content: "Earlier in this conversation: " + conv.Summary,
		})
	}
	out = append(out, conv.RecentMessages(s.recentKept, 0)...)
	return out
}

// RecordTurn appends the user and assistant messages and carries the turn's
// execution state forward for pagination and dataset stability. It then
// compacts history when the conversation has grown past the threshold.
func (s *Service) RecordTurn(ctx context.Context, turn *domain.Turn, response domain.Response) error {
	if err := s.store.AppendMessage(turn.ConversationID, domain.Message{
		Role:    domain.RoleUser,
		Content: turn.Utterance,
	}); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	if err := s.store.AppendMessage(turn.ConversationID, domain.Message{
		Role:     domain.RoleAssistant,
		Content:  response.FinalText,
		SQLQuery: response.SQLUsed,
	}); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}

	if err := s.store.Update(turn.ConversationID, func(conv *domain.Conversation) {
		if turn.SQL != "" {
			conv.PreviousSQL = turn.SQL
		}
		if turn.Dataset.DatasetID != "" {
			conv.PreviousDatasetID = turn.Dataset.DatasetID
			dataset := turn.Dataset
			conv.PreviousDataset = &dataset
		}
		if len(turn.Buffer.AllRows) > 0 || turn.Buffer.SQLQuery != "" {
			buffer := turn.Buffer
			conv.PreviousBuffer = &buffer
		}
		if response.FinalText != "" {
			conv.PreviousSummary = response.FinalText
		}
	}); err != nil {
		return fmt.Errorf("carry turn state: %w", err)
	}

	s.maybeSummarize(ctx, turn.ConversationID)
	return nil
}

// maybeSummarize collapses older messages into the rolling summary once the
// conversation exceeds the threshold. Summarization is fail-open: on any
// error the history stays as it was.
func (s *Service) maybeSummarize(ctx context.Context, conversationID string) {
	conv, err := s.store.Get(conversationID)
	if err != nil || len(conv.Messages) <= s.summaryAfter {
		return
	}

	older := conv.Messages[:len(conv.Messages)-s.recentKept]

	var history strings.Builder
	if conv.Summary != "" {
		history.WriteString("Previous summary: ")
		history.WriteString(conv.Summary)
		history.WriteString("\n\n")
	}
	for _, m := range older {
		fmt.Fprintf(&history, "%s: %s\n", m.Role, m.Content)
	}

	summary, err := s.inference.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: summarizePrompt},
		{Role: domain.RoleUser, Content: history.String()},
	}, domain.CompletionOptions{})
	if err != nil || strings.TrimSpace(summary) == "" {
		s.logger.Warn("History summarization failed, keeping full history",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}

	if err := s.store.Update(conversationID, func(conv *domain.Conversation) {
		if len(conv.Messages) <= s.summaryAfter {
			return
		}
		conv.Summary = strings.TrimSpace(summary)
		tail := conv.Messages[len(conv.Messages)-s.recentKept:]
		conv.Messages = append([]domain.Message{}, tail...)
	}); err != nil {
		s.logger.Warn("Failed to apply history summary",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}
