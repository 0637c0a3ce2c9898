package executor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

// Service runs SQL and buffers the complete result set. Pagination never
// reaches the backend: a turn with a live buffer for the same SQL replays
// from memory, and identical executions within the cache TTL replay from
// the result cache. Failed executions are never retried.
type Service struct {
	backend Backend
	cache   Cache
	maxRows int
	logger  *zap.Logger
}

// New creates a query executor. maxRows caps how many rows one execution
// buffers; 0 means unlimited.
func New(backend Backend, c Cache, maxRows int, logger *zap.Logger) *Service {
	return &Service{backend: backend, cache: c, maxRows: maxRows, logger: logger}
}

// Run resolves the full result buffer for one SQL query.
//
// Resolution order: the previous turn's buffer when it matches the SQL, then
// the result cache, then a fresh execution. The returned buffer always holds
// every fetched row; presentation truncation happens in the pipeline.
func (s *Service) Run(
	ctx context.Context, turn *domain.Turn,
	datasetID, sql string, previous *domain.ResultBuffer, columns []string,
) (domain.ResultBuffer, error) {
	if previous != nil && previous.SQLQuery == sql && previous.DatasetID == datasetID {
		replay := *previous
		if !turn.Intent.IsPaginationRequest {
			// Re-asking the same question starts over at the first page;
			// only pagination resumes at the old offset.
			replay.RowsShown = 0
		}
		return replay, nil
	}

	params := map[string]any{"dataset_id": datasetID, "sql": sql}

	var cached domain.ResultBuffer
	if hit, err := s.cache.Get(ctx, cache.CategorySQLResult, params, &cached); err == nil && hit {
		turn.CacheHits["sql_result"] = true
		// A cache replay starts a fresh presentation window.
		cached.RowsShown = 0
		return cached, nil
	}

	result, err := s.backend.Execute(ctx, datasetID, sql)
	if err != nil {
		return domain.ResultBuffer{}, fmt.Errorf("execute on dataset %s: %w", datasetID, err)
	}
	if !result.Success {
		return domain.ResultBuffer{}, fmt.Errorf("%s: %w", result.Error, domain.ErrExecutionFailed)
	}

	rows := result.Rows
	if s.maxRows > 0 && len(rows) > s.maxRows {
		s.logger.Warn("Result truncated to row limit",
			zap.String("dataset_id", datasetID),
			zap.Int("rows", len(rows)),
			zap.Int("limit", s.maxRows))
		rows = rows[:s.maxRows]
	}

	buffer := domain.ResultBuffer{
		DatasetID: datasetID,
		SQLQuery:  sql,
		AllRows:   rows,
		Columns:   columns,
	}
	if len(buffer.Columns) == 0 && len(rows) > 0 {
		buffer.Columns = columnNames(rows[0])
	}

	if err := s.cache.Set(ctx, cache.CategorySQLResult, params, buffer); err != nil {
		s.logger.Warn("Failed to cache result buffer",
			zap.String("dataset_id", datasetID),
			zap.Error(err))
	}

	return buffer, nil
}

// columnNames derives a stable column order from a row when the plan did
// not carry one.
func columnNames(row domain.Row) []string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
