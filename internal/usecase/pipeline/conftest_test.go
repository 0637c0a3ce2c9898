package pipeline

import (
	"context"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/usecase/selection"
)

type mockIntents struct {
	intent domain.Intent
}

func (m *mockIntents) Analyze(_ context.Context, _ string, _ []domain.Message) domain.Intent {
	return m.intent
}

type mockRouter struct {
	decision domain.RouteDecision
	calls    int
}

func (m *mockRouter) Decide(_ context.Context, _ string) domain.RouteDecision {
	m.calls++
	return m.decision
}

type mockDiscovery struct {
	dataset domain.DatasetContext
	err     error
	calls   int
}

func (m *mockDiscovery) Discover(_ context.Context, _ *domain.Turn, _ *domain.Conversation) (domain.DatasetContext, error) {
	m.calls++
	return m.dataset, m.err
}

type mockSelector struct {
	sel selection.Selection
	err error
}

func (m *mockSelector) Select(_ context.Context, _ *domain.Turn, _ domain.DatasetContext) (selection.Selection, error) {
	return m.sel, m.err
}

type mockGenerator struct {
	sql   string
	plan  domain.QueryPlan
	err   error
	calls int
}

func (m *mockGenerator) Generate(_ context.Context, turn *domain.Turn, _ domain.DatasetContext, _ selection.Selection, previousSQL string) (string, domain.QueryPlan, error) {
	m.calls++
	if turn.Intent.IsPaginationRequest && previousSQL != "" {
		return previousSQL, domain.QueryPlan{}, nil
	}
	return m.sql, m.plan, m.err
}

type mockExecutor struct {
	buffer domain.ResultBuffer
	err    error
	calls  int
}

func (m *mockExecutor) Run(_ context.Context, _ *domain.Turn, _, _ string, _ *domain.ResultBuffer, _ []string) (domain.ResultBuffer, error) {
	m.calls++
	return m.buffer, m.err
}

type mockConversations struct {
	conv       *domain.Conversation
	ensureErr  error
	recorded   []domain.Response
	lastTurn   *domain.Turn
	recordErr  error
	recordSeen int
}

func (m *mockConversations) Ensure(_, userID string) (*domain.Conversation, error) {
	if m.ensureErr != nil {
		return nil, m.ensureErr
	}
	if m.conv == nil {
		m.conv = &domain.Conversation{ID: "c1", UserID: userID}
	}
	return m.conv, nil
}

func (m *mockConversations) PromptHistory(_ *domain.Conversation) []domain.Message {
	return nil
}

func (m *mockConversations) RecordTurn(_ context.Context, turn *domain.Turn, response domain.Response) error {
	m.recordSeen++
	m.lastTurn = turn
	m.recorded = append(m.recorded, response)
	return m.recordErr
}

type mockInference struct {
	text    string
	err     error
	calls   int
	prompts [][]domain.Message
}

func (m *mockInference) Complete(_ context.Context, messages []domain.Message, _ domain.CompletionOptions) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, messages)
	return m.text, m.err
}

func (m *mockInference) lastPrompt() []domain.Message {
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

type deps struct {
	intents       *mockIntents
	router        *mockRouter
	discovery     *mockDiscovery
	selector      *mockSelector
	generator     *mockGenerator
	executor      *mockExecutor
	conversations *mockConversations
	inference     *mockInference
}

func defaultDeps() *deps {
	return &deps{
		intents: &mockIntents{intent: domain.EmptyIntent()},
		router:  &mockRouter{decision: domain.RouteDecision{Route: domain.RouteQuery, Confidence: 0.9}},
		discovery: &mockDiscovery{dataset: domain.DatasetContext{
			DatasetID:   "ds1",
			DatasetName: "Claims",
			TableName:   "claims_raw",
			Columns:     []domain.ColumnRecord{{Name: "premium", Type: "DOUBLE"}},
		}},
		selector: &mockSelector{sel: selection.Selection{
			Columns: []domain.ColumnRecord{{Name: "premium", Type: "DOUBLE"}},
		}},
		generator: &mockGenerator{
			sql:  "SELECT premium FROM claims_raw",
			plan: domain.QueryPlan{Table: "claims_raw", SelectColumns: []string{"premium"}},
		},
		executor: &mockExecutor{buffer: domain.ResultBuffer{
			DatasetID: "ds1",
			SQLQuery:  "SELECT premium FROM claims_raw",
			AllRows:   manyRows(25),
			Columns:   []string{"premium"},
		}},
		conversations: &mockConversations{},
		inference:     &mockInference{text: "Here are your results."},
	}
}

func manyRows(n int) []domain.Row {
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{"premium": float64(i)}
	}
	return rows
}
