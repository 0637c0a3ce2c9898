package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// Keyword tiers. Report keywords take precedence: an utterance matching both
// tiers is a report request.
var (
	reportKeywords = []string{
		"report",
		"dashboard",
		"kpi",
		"summary",
		"breakdown",
		"trend",
		"aggregate",
		"total by",
		"average by",
		"count by",
		"group by",
		"per month",
		"per year",
		"distribution",
	}

	queryKeywords = []string{
		"show me",
		"list",
		"find",
		"lookup",
		"look up",
		"which",
		"what are",
		"give me",
		"records",
		"rows",
		"details",
	}
)

const (
	reportKeywordConfidence = 0.95
	queryKeywordConfidence  = 0.90
	fallbackConfidence      = 0.3
)

const classifyPrompt = `You classify a data question into one of two routes.

"report": the user wants an aggregated summary, KPI, or grouped breakdown.
"query": the user wants to see raw matching records.

Respond with a JSON object: {"route": "report" | "query", "confidence": 0.0-1.0, "reasoning": string}.`

// Service decides the route for one turn: keyword tiers first, then an
// inference classification, then a safe fallback to the query route.
type Service struct {
	inference Inference
	logger    *zap.Logger
}

// New creates a semantic router.
func New(inference Inference, logger *zap.Logger) *Service {
	return &Service{inference: inference, logger: logger}
}

// Decide classifies the utterance. Pagination turns inherit nothing here;
// the pipeline replays the previous route for them before calling Decide.
func (s *Service) Decide(ctx context.Context, utterance string) domain.RouteDecision {
	start := time.Now()
	lower := strings.ToLower(utterance)

	if kw, ok := matchKeyword(lower, reportKeywords); ok {
		return domain.RouteDecision{
			Route:          domain.RouteReport,
			Confidence:     reportKeywordConfidence,
			Method:         domain.RouteMethodKeyword,
			MatchedKeyword: kw,
			LatencyMS:      time.Since(start).Milliseconds(),
		}
	}

	if kw, ok := matchKeyword(lower, queryKeywords); ok {
		return domain.RouteDecision{
			Route:          domain.RouteQuery,
			Confidence:     queryKeywordConfidence,
			Method:         domain.RouteMethodKeyword,
			MatchedKeyword: kw,
			LatencyMS:      time.Since(start).Milliseconds(),
		}
	}

	decision, err := s.classify(ctx, utterance)
	if err != nil {
		s.logger.Warn("Route classification failed, falling back to query route",
			zap.String("utterance", utterance),
			zap.Error(err))
		return domain.RouteDecision{
			Route:      domain.RouteQuery,
			Confidence: fallbackConfidence,
			Method:     domain.RouteMethodFallback,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	decision.LatencyMS = time.Since(start).Milliseconds()
	return decision
}

func (s *Service) classify(ctx context.Context, utterance string) (domain.RouteDecision, error) {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: classifyPrompt},
		{Role: domain.RoleUser, Content: utterance},
	}

	var out struct {
		Route      string  `json:"route"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := s.inference.CompleteStructured(ctx, messages, &out, domain.CompletionOptions{}); err != nil {
		return domain.RouteDecision{}, err
	}

	route := domain.RouteQuery
	if out.Route == string(domain.RouteReport) {
		route = domain.RouteReport
	}
	conf := out.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}

	return domain.RouteDecision{
		Route:      route,
		Confidence: conf,
		Method:     domain.RouteMethodLLM,
		Reasoning:  out.Reasoning,
	}, nil
}

func matchKeyword(lower string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
