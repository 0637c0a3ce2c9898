package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/metrics"
)

// Chat is a chat completion provider using the OpenAI-compatible API.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewChat creates an OpenAI-compatible chat completion provider.
func NewChat(cfg *ChatConfig) *Chat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Chat{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Complete implements domain.Inference.
func (c *Chat) Complete(ctx context.Context, messages []domain.Message, opts domain.CompletionOptions) (string, error) {
	return c.complete(ctx, messages, opts, false)
}

// CompleteStructured requests a JSON-object completion and unmarshals it into
// out. Malformed responses are rejected with domain.ErrInvalidPayload.
func (c *Chat) CompleteStructured(ctx context.Context, messages []domain.Message, out any, opts domain.CompletionOptions) error {
	content, err := c.complete(ctx, messages, opts, true)
	if err != nil {
		return err
	}

	content = stripCodeFence(content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		c.logger.Warn("Structured completion is not valid JSON",
			zap.String("model", c.resolveModel(opts)),
			zap.Error(err))
		return fmt.Errorf("decode structured completion: %w", domain.ErrInvalidPayload)
	}
	return nil
}

func (c *Chat) complete(ctx context.Context, messages []domain.Message, opts domain.CompletionOptions, jsonMode bool) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.resolveModel(opts)
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toChatMessages(messages),
		Temperature: c.resolveTemperature(opts),
		MaxTokens:   c.resolveMaxTokens(opts),
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(model, "error").Inc()
		return "", parseAPIError("inference", err, domain.ErrInferenceFailed)
	}

	if len(resp.Choices) == 0 {
		metrics.InferenceRequestsTotal.WithLabelValues(model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrInferenceFailed)
	}

	metrics.InferenceRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.InferenceRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

func (c *Chat) resolveModel(opts domain.CompletionOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

func (c *Chat) resolveTemperature(opts domain.CompletionOptions) float32 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return c.temperature
}

func (c *Chat) resolveMaxTokens(opts domain.CompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.maxTokens
}

func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// stripCodeFence removes a markdown code fence wrapper some models emit even
// in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
