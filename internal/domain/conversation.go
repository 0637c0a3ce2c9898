package domain

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one conversation turn as seen by the inference client.
type Message struct {
	ID        string      `json:"message_id,omitempty"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	SQLQuery  string      `json:"sql_query,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// Conversation holds message history, an optional rolling summary, and the
// context carried forward between turns: the previous SQL, dataset, and the
// complete result buffer for pagination.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `json:"messages"`
	Summary  string    `json:"summary,omitempty"`

	PreviousSQL       string          `json:"previous_sql,omitempty"`
	PreviousDatasetID string          `json:"previous_dataset_id,omitempty"`
	PreviousDataset   *DatasetContext `json:"previous_dataset,omitempty"`
	PreviousBuffer    *ResultBuffer   `json:"previous_buffer,omitempty"`
	PreviousSummary   string          `json:"previous_results_summary,omitempty"`
}

// ConversationSummary is the listing view of a conversation, without messages.
type ConversationSummary struct {
	ID           string    `json:"conversation_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// RecentMessages returns up to limit most recent messages, excluding the last
// excludeTail entries (typically the in-flight user utterance).
func (c *Conversation) RecentMessages(limit, excludeTail int) []Message {
	msgs := c.Messages
	if excludeTail > 0 && excludeTail <= len(msgs) {
		msgs = msgs[:len(msgs)-excludeTail]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}
