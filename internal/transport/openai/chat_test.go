package openai

import (
	"testing"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToChatMessages_RoleMapping(t *testing.T) {
	msgs := toChatMessages([]domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	})

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" || msgs[2].Role != "assistant" {
		t.Errorf("unexpected role mapping: %v %v %v", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
}

func TestResolveOptions_Fallbacks(t *testing.T) {
	c := &Chat{model: "default-model", temperature: 0.1, maxTokens: 500}

	if got := c.resolveModel(domain.CompletionOptions{}); got != "default-model" {
		t.Errorf("expected default model, got %q", got)
	}
	if got := c.resolveModel(domain.CompletionOptions{Model: "override"}); got != "override" {
		t.Errorf("expected override model, got %q", got)
	}
	if got := c.resolveMaxTokens(domain.CompletionOptions{MaxTokens: 100}); got != 100 {
		t.Errorf("expected 100 tokens, got %d", got)
	}
	if got := c.resolveTemperature(domain.CompletionOptions{}); got != 0.1 {
		t.Errorf("expected default temperature, got %f", got)
	}
}
