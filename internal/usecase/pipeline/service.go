package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/metrics"
)

// Stage names as they appear in step logs and metrics.
const (
	stageIntent    = "intent_analysis"
	stageRouting   = "semantic_routing"
	stageDiscovery = "column_discovery"
	stageSelection = "column_selection"
	stageSQLGen    = "sql_generation"
	stageExecution = "query_execution"
	stageSynthesis = "response_synthesis"
)

const synthesizePrompt = `You present query results to a business user.
Write a short, direct answer to their question based on the rows provided.
Compute counts, totals, and averages over the complete result set, not only the shown rows.
Mention how many rows are shown out of the total. Do not invent data. Plain text only.`

// Request is one pipeline invocation.
type Request struct {
	ConversationID string
	UserID         string
	Utterance      string
}

// Service orchestrates one turn end to end: intent, routing, discovery,
// selection, SQL generation, execution, and response synthesis. One pipeline
// serves both routes; the route decision parameterizes SQL generation rather
// than selecting a different code path.
type Service struct {
	intents       IntentAnalyzer
	router        Router
	discovery     Discovery
	selector      Selector
	generator     Generator
	executor      Executor
	conversations Conversations
	inference     Inference
	pageSize      int
	logger        *zap.Logger
}

// New creates the pipeline.
func New(
	intents IntentAnalyzer, router Router, discovery Discovery,
	selector Selector, generator Generator, executor Executor,
	conversations Conversations, inference Inference,
	pageSize int, logger *zap.Logger,
) *Service {
	return &Service{
		intents:       intents,
		router:        router,
		discovery:     discovery,
		selector:      selector,
		generator:     generator,
		executor:      executor,
		conversations: conversations,
		inference:     inference,
		pageSize:      pageSize,
		logger:        logger,
	}
}

// Resolve runs one turn. Stage failures degrade to an explanatory response
// where possible; only conversation lookup failures surface as errors.
func (s *Service) Resolve(ctx context.Context, req Request) (domain.Response, error) {
	conv, err := s.conversations.Ensure(req.ConversationID, req.UserID)
	if err != nil {
		return domain.Response{}, err
	}

	turn := domain.NewTurn(conv.ID, req.UserID, req.Utterance)
	history := s.conversations.PromptHistory(conv)

	started := time.Now()
	turn.Intent = s.intents.Analyze(ctx, req.Utterance, history)
	turn.RecordStep(stageIntent, started)

	if turn.Intent.IsPaginationRequest && conv.PreviousBuffer != nil {
		return s.resolvePagination(ctx, turn, conv)
	}

	started = time.Now()
	turn.Route = s.router.Decide(ctx, req.Utterance)
	turn.RecordStep(stageRouting, started)
	s.logger.Debug("Route decided",
		zap.String("conversation_id", turn.ConversationID),
		zap.String("decision", turn.Route.Explain()))

	started = time.Now()
	dataset, err := s.discovery.Discover(ctx, turn, conv)
	if err != nil {
		turn.RecordStepError(stageDiscovery, started, err)
		return s.finishDegraded(ctx, turn, err)
	}
	turn.Dataset = dataset
	turn.RecordStep(stageDiscovery, started)

	started = time.Now()
	sel, err := s.selector.Select(ctx, turn, dataset)
	if err != nil {
		turn.RecordStepError(stageSelection, started, err)
		return s.finishDegraded(ctx, turn, err)
	}
	turn.RecordStep(stageSelection, started)

	started = time.Now()
	sql, plan, err := s.generator.Generate(ctx, turn, dataset, sel, conv.PreviousSQL)
	if err != nil {
		turn.RecordStepError(stageSQLGen, started, err)
		return s.finishDegraded(ctx, turn, err)
	}
	turn.SQL = sql
	turn.Plan = plan
	turn.RecordStep(stageSQLGen, started)

	if sql == "" {
		// Clarification turn: nothing to execute.
		return s.resolveClarification(ctx, turn, conv)
	}

	started = time.Now()
	buffer, err := s.executor.Run(ctx, turn, dataset.DatasetID, sql, conv.PreviousBuffer, plan.SelectColumns)
	if err != nil {
		turn.RecordStepError(stageExecution, started, err)
		return s.finishDegraded(ctx, turn, err)
	}
	turn.RecordStep(stageExecution, started)

	pageSize := s.pageSize
	if n, ok := requestedCount(req.Utterance); ok {
		pageSize = n
	}
	rows, shown := buffer.NextPage(pageSize)
	buffer.RowsShown = shown
	turn.Buffer = buffer

	response := s.synthesize(ctx, turn, rows)
	s.finish(ctx, turn, &response, "success")
	return response, nil
}

// resolvePagination serves the next page straight from the remembered buffer.
func (s *Service) resolvePagination(ctx context.Context, turn *domain.Turn, conv *domain.Conversation) (domain.Response, error) {
	turn.RecordStepSkipped(stageRouting)
	turn.RecordStepSkipped(stageDiscovery)
	turn.RecordStepSkipped(stageSelection)
	turn.RecordStepSkipped(stageSQLGen)
	turn.RecordStepSkipped(stageExecution)

	if conv.PreviousDataset != nil {
		turn.Dataset = *conv.PreviousDataset
	}
	turn.SQL = conv.PreviousSQL

	buffer := *conv.PreviousBuffer
	rows, shown := buffer.NextPage(s.pageSize)
	buffer.RowsShown = shown
	turn.Buffer = buffer

	var response domain.Response
	if len(rows) == 0 {
		response = s.assembleResponse(turn, nil)
		response.FinalText = "That's everything: all matching rows have already been shown."
	} else {
		response = s.synthesize(ctx, turn, rows)
	}

	s.finish(ctx, turn, &response, "success")
	return response, nil
}

// resolveClarification answers a clarification turn conversationally.
func (s *Service) resolveClarification(ctx context.Context, turn *domain.Turn, conv *domain.Conversation) (domain.Response, error) {
	turn.RecordStepSkipped(stageExecution)

	messages := append(s.conversations.PromptHistory(conv), domain.Message{
		Role: domain.RoleSystem,
		Content: "The user's message needs clarification before a query can run. " +
			"Ask one short, specific question that would let you proceed.",
	}, domain.Message{Role: domain.RoleUser, Content: turn.Utterance})

	text, err := s.inference.Complete(ctx, messages, domain.CompletionOptions{})
	if err != nil || text == "" {
		text = "Could you clarify what you'd like to see? For example, name the metric or the time period."
	}

	response := s.assembleResponse(turn, nil)
	response.FinalText = text
	s.finish(ctx, turn, &response, "clarification")
	return response, nil
}

// synthesize renders the final answer. The prompt carries the complete
// result buffer, not just the presentation page: counts and aggregates in
// the answer must reflect every row the query returned. Synthesis failures
// degrade to a deterministic summary line; they never fail the turn.
func (s *Service) synthesize(ctx context.Context, turn *domain.Turn, rows []domain.Row) domain.Response {
	started := time.Now()
	response := s.assembleResponse(turn, rows)

	rowsJSON, err := json.Marshal(turn.Buffer.AllRows)
	if err != nil {
		rowsJSON = []byte("[]")
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: synthesizePrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(
			"Question: %s\n\n%d of the %d result rows are shown to the user. Complete result set:\n%s",
			turn.Utterance, len(rows), response.RowsReturnedTotal, rowsJSON)},
	}

	text, err := s.inference.Complete(ctx, messages, domain.CompletionOptions{})
	if err != nil || text == "" {
		turn.RecordStepError(stageSynthesis, started, err)
		response.FinalText = fmt.Sprintf("Showing %d of %d matching rows.", len(rows), response.RowsReturnedTotal)
		return response
	}

	turn.RecordStep(stageSynthesis, started)
	response.FinalText = text
	return response
}

// finishDegraded produces the user-facing response for a failed stage.
func (s *Service) finishDegraded(ctx context.Context, turn *domain.Turn, cause error) (domain.Response, error) {
	response := s.assembleResponse(turn, nil)
	response.Error = cause.Error()

	switch {
	case errors.Is(cause, domain.ErrNoRelevantColumns), errors.Is(cause, domain.ErrNoDataset):
		response.FinalText = "I couldn't find data matching that question. Try naming the metric or subject differently."
	case errors.Is(cause, domain.ErrExecutionFailed):
		response.FinalText = "The query failed to run. Try rephrasing the question."
	default:
		response.FinalText = "Something went wrong while resolving that question. Please try again."
	}

	s.finish(ctx, turn, &response, "error")
	return response, nil
}

// finish attaches the step log, records metrics, and persists the turn.
func (s *Service) finish(ctx context.Context, turn *domain.Turn, response *domain.Response, status string) {
	response.Steps = turn.Steps

	for _, step := range turn.Steps {
		if step.Status == domain.StepCompleted {
			metrics.PipelineStageDuration.WithLabelValues(step.Name).Observe(float64(step.DurationMS) / 1000)
		}
	}
	metrics.PipelineTurnsTotal.WithLabelValues(string(turn.Route.Route), status).Inc()

	if err := s.conversations.RecordTurn(ctx, turn, *response); err != nil {
		s.logger.Warn("Failed to record turn",
			zap.String("conversation_id", turn.ConversationID),
			zap.Error(err))
	}
}

func (s *Service) assembleResponse(turn *domain.Turn, rows []domain.Row) domain.Response {
	return domain.Response{
		ConversationID:    turn.ConversationID,
		Rows:              rows,
		SQLUsed:           turn.SQL,
		RowsReturnedTotal: len(turn.Buffer.AllRows),
		RowsShown:         len(rows),
		ColumnsUsed:       turn.Buffer.Columns,
		DatasetID:         turn.Dataset.DatasetID,
		DatasetName:       turn.Dataset.DatasetName,
		Route:             string(turn.Route.Route),
	}
}

// requestedCount extracts an explicit result count from the utterance,
// e.g. "top 5 properties" or "show me 10 rows".
var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:top|first)\s+(\d{1,3})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:rows|records|results|items|entries|properties|claims|policies)\b`),
	regexp.MustCompile(`(?i)\b(?:show|give)\s+me\s+(\d{1,3})\b`),
}

func requestedCount(utterance string) (int, bool) {
	for _, p := range countPatterns {
		if m := p.FindStringSubmatch(utterance); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}
