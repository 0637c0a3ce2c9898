package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

type mockBackend struct {
	result domain.ExecutionResult
	err    error
	calls  int
}

func (m *mockBackend) Execute(_ context.Context, _, _ string) (domain.ExecutionResult, error) {
	m.calls++
	return m.result, m.err
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) key(category cache.Category, params map[string]any) string {
	raw, _ := json.Marshal(params)
	return string(category) + string(raw)
}

func (m *mockCache) Get(_ context.Context, category cache.Category, params map[string]any, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[m.key(category, params)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *mockCache) Set(_ context.Context, category cache.Category, params map[string]any, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[m.key(category, params)] = raw
	return nil
}

func testTurn() *domain.Turn {
	return domain.NewTurn("c1", "u1", "claims")
}

func TestRun_FreshExecutionBuffersAllRows(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{
		Success: true,
		Rows:    []domain.Row{{"a": 1.0}, {"a": 2.0}, {"a": 3.0}},
	}}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	buf, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", nil, []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf.AllRows) != 3 || buf.RowsShown != 0 {
		t.Errorf("expected full untruncated buffer, got %+v", buf)
	}
	if buf.SQLQuery != "SELECT a FROM t" || buf.DatasetID != "ds1" {
		t.Errorf("buffer identity wrong: %+v", buf)
	}
}

func TestRun_SecondExecutionServedFromCacheWithoutBackendCall(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{
		Success: true,
		Rows:    []domain.Row{{"a": 1.0}},
	}}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	if _, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", backend.calls)
	}

	turn2 := testTurn()
	buf, err := svc.Run(context.Background(), turn2, "ds1", "SELECT a FROM t", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("cached execution must not call the backend, got %d calls", backend.calls)
	}
	if !turn2.CacheHits["sql_result"] {
		t.Error("expected cache hit recorded on turn")
	}
	if len(buf.AllRows) != 1 {
		t.Errorf("unexpected cached buffer: %+v", buf)
	}
}

func TestRun_MatchingPreviousBufferReplaysWithoutBackendOrCache(t *testing.T) {
	backend := &mockBackend{}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	previous := &domain.ResultBuffer{
		DatasetID: "ds1",
		SQLQuery:  "SELECT a FROM t",
		AllRows:   []domain.Row{{"a": 1.0}, {"a": 2.0}},
		RowsShown: 1,
	}

	turn := testTurn()
	turn.Intent.IsPaginationRequest = true
	buf, err := svc.Run(context.Background(), turn, "ds1", "SELECT a FROM t", previous, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 0 {
		t.Error("buffer replay must not call the backend")
	}
	if buf.RowsShown != 1 {
		t.Errorf("expected pagination offset preserved, got %d", buf.RowsShown)
	}
}

func TestRun_RepeatedQuestionRestartsPresentationWindow(t *testing.T) {
	backend := &mockBackend{}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	previous := &domain.ResultBuffer{
		DatasetID: "ds1",
		SQLQuery:  "SELECT a FROM t",
		AllRows:   []domain.Row{{"a": 1.0}, {"a": 2.0}, {"a": 3.0}},
		RowsShown: 2,
	}

	buf, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", previous, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 0 {
		t.Error("identical SQL must replay the buffer without executing")
	}
	if buf.RowsShown != 0 {
		t.Errorf("a non-pagination turn must start at the first page, got offset %d", buf.RowsShown)
	}
	if previous.RowsShown != 2 {
		t.Errorf("replay must not mutate the remembered buffer, got %d", previous.RowsShown)
	}
}

func TestRun_DifferentSQLIgnoresPreviousBuffer(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{Success: true, Rows: []domain.Row{{"b": 1.0}}}}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	previous := &domain.ResultBuffer{DatasetID: "ds1", SQLQuery: "SELECT a FROM t"}

	buf, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT b FROM t", previous, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 1 {
		t.Error("expected fresh execution for new SQL")
	}
	if buf.SQLQuery != "SELECT b FROM t" {
		t.Errorf("unexpected buffer: %+v", buf)
	}
}

func TestRun_BackendFailureNotRetried(t *testing.T) {
	backend := &mockBackend{err: domain.ErrExecutionFailed}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	_, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", nil, nil)
	if !errors.Is(err, domain.ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed, got %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("failed executions must not be retried, got %d calls", backend.calls)
	}
}

func TestRun_UnsuccessfulResultIsError(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{Success: false, Error: "bad sql"}}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	_, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", nil, nil)
	if !errors.Is(err, domain.ErrExecutionFailed) {
		t.Errorf("expected ErrExecutionFailed, got %v", err)
	}
}

func TestRun_RowLimitTruncatesBuffer(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{
		Success: true,
		Rows:    []domain.Row{{"a": 1.0}, {"a": 2.0}, {"a": 3.0}, {"a": 4.0}},
	}}
	svc := New(backend, newMockCache(), 2, zap.NewNop())

	buf, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT a FROM t", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf.AllRows) != 2 {
		t.Errorf("expected buffer capped at 2 rows, got %d", len(buf.AllRows))
	}
	if buf.AllRows[0]["a"] != 1.0 {
		t.Errorf("expected a prefix of the result kept, got %+v", buf.AllRows)
	}
}

func TestRun_DerivedColumnOrderIsStable(t *testing.T) {
	backend := &mockBackend{result: domain.ExecutionResult{
		Success: true,
		Rows:    []domain.Row{{"premium": 1.0, "claim_id": "c1", "state": "FL"}},
	}}
	svc := New(backend, newMockCache(), 0, zap.NewNop())

	buf, err := svc.Run(context.Background(), testTurn(), "ds1", "SELECT * FROM t", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"claim_id", "premium", "state"}
	if len(buf.Columns) != len(want) {
		t.Fatalf("unexpected columns: %v", buf.Columns)
	}
	for i, name := range want {
		if buf.Columns[i] != name {
			t.Fatalf("expected sorted column order %v, got %v", want, buf.Columns)
		}
	}
}
