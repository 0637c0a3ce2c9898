package selection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

const selectPrompt = `You pick the columns needed to answer a data question, given the dataset's column catalog.

Rules:
- Pick only columns that exist in the catalog, by their exact names.
- Include every column needed for the answer itself, for any filters, and for any dates the user mentioned.
- Bind each filter concept to the column holding its VALUES, not the column whose name merely sounds similar. Check the example values.

Respond with a JSON object:
{
  "columns": [string],
  "filter_mappings": [{"concept": string, "column": string, "value": string}]
}`

// Selection is the validated output of column selection.
type Selection struct {
	Columns  []domain.ColumnRecord
	Mappings []domain.FilterMapping
}

// Service picks the columns and filter bindings for a turn. Every inference
// answer is validated against the dataset; selection never returns an empty
// column set for a non-empty dataset.
type Service struct {
	inference  Inference
	maxColumns int
	logger     *zap.Logger
}

// New creates a column selection service.
func New(inference Inference, maxColumns int, logger *zap.Logger) *Service {
	return &Service{inference: inference, maxColumns: maxColumns, logger: logger}
}

// Select resolves the column set and filter mappings for the utterance.
func (s *Service) Select(ctx context.Context, turn *domain.Turn, dataset domain.DatasetContext) (Selection, error) {
	if len(dataset.Columns) == 0 {
		return Selection{}, domain.ErrNoDataset
	}

	raw, err := s.ask(ctx, turn, dataset)
	if err != nil {
		s.logger.Warn("Column selection inference failed, using fallback columns",
			zap.String("dataset_id", dataset.DatasetID),
			zap.Error(err))
		return Selection{Columns: fallbackColumns(dataset, s.maxColumns)}, nil
	}

	sel := s.validate(raw, dataset)
	if len(sel.Columns) == 0 {
		sel.Columns = fallbackColumns(dataset, s.maxColumns)
	}
	if len(sel.Columns) > s.maxColumns {
		sel.Columns = sel.Columns[:s.maxColumns]
	}
	if turn.Intent.TemporalNeeded {
		sel.Columns = ensureTemporalColumn(sel.Columns, dataset)
	}
	return sel, nil
}

// ensureTemporalColumn appends the dataset's first date or time column when
// the question needs one and the model picked none.
func ensureTemporalColumn(columns []domain.ColumnRecord, dataset domain.DatasetContext) []domain.ColumnRecord {
	for _, c := range columns {
		if c.IsTemporal() {
			return columns
		}
	}
	for _, c := range dataset.Columns {
		if c.IsTemporal() {
			return append(columns, c)
		}
	}
	return columns
}

type rawSelection struct {
	Columns        []string               `json:"columns"`
	FilterMappings []domain.FilterMapping `json:"filter_mappings"`
}

func (s *Service) ask(ctx context.Context, turn *domain.Turn, dataset domain.DatasetContext) (rawSelection, error) {
	var catalog strings.Builder
	for _, c := range dataset.Columns {
		catalog.WriteString("- ")
		catalog.WriteString(c.PromptText())
		catalog.WriteString("\n")
	}

	var filters strings.Builder
	for _, f := range turn.Intent.Filters {
		fmt.Fprintf(&filters, "- concept %q, value %q\n", f.Concept, f.Value)
	}

	user := fmt.Sprintf("Question: %s\n\nDataset %q columns:\n%s", turn.Utterance, dataset.DatasetName, catalog.String())
	if filters.Len() > 0 {
		user += "\nFilter concepts to bind:\n" + filters.String()
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: selectPrompt},
		{Role: domain.RoleUser, Content: user},
	}

	var out rawSelection
	if err := s.inference.CompleteStructured(ctx, messages, &out, domain.CompletionOptions{}); err != nil {
		return rawSelection{}, err
	}
	return out, nil
}

// validate drops hallucinated column names and rebinds or drops filter
// mappings whose value does not plausibly belong to the mapped column.
func (s *Service) validate(raw rawSelection, dataset domain.DatasetContext) Selection {
	var sel Selection
	seen := make(map[string]bool)

	for _, name := range raw.Columns {
		col, ok := dataset.ColumnByName(name)
		if !ok {
			s.logger.Debug("Dropping unknown column from selection", zap.String("column", name))
			continue
		}
		if !seen[col.Name] {
			seen[col.Name] = true
			sel.Columns = append(sel.Columns, col)
		}
	}

	for _, m := range raw.FilterMappings {
		col, ok := dataset.ColumnByName(m.Column)
		if !ok {
			s.logger.Debug("Dropping filter mapping to unknown column", zap.String("column", m.Column))
			continue
		}

		if !col.MatchesExample(m.Value) {
			rebound, ok := rebind(m.Value, dataset)
			if !ok {
				s.logger.Debug("Dropping filter mapping failing example validation",
					zap.String("column", m.Column),
					zap.String("value", m.Value))
				continue
			}
			s.logger.Debug("Rebinding filter mapping by example match",
				zap.String("from", m.Column),
				zap.String("to", rebound.Name),
				zap.String("value", m.Value))
			col = rebound
			m.Column = rebound.Name
		}

		sel.Mappings = append(sel.Mappings, m)
		if !seen[col.Name] {
			seen[col.Name] = true
			sel.Columns = append(sel.Columns, col)
		}
	}

	return sel
}

// rebind finds a column whose example values actually contain the filter
// value. Only columns with examples qualify: a column without examples
// matches anything and proves nothing.
func rebind(value string, dataset domain.DatasetContext) (domain.ColumnRecord, bool) {
	for _, c := range dataset.Columns {
		if len(c.Examples) > 0 && c.MatchesExample(value) {
			return c, true
		}
	}
	return domain.ColumnRecord{}, false
}

// fallbackColumns picks described columns first, then anything, up to limit.
func fallbackColumns(dataset domain.DatasetContext, limit int) []domain.ColumnRecord {
	var out []domain.ColumnRecord
	for _, c := range dataset.Columns {
		if c.Description != "" || c.BusinessMeaning != "" {
			out = append(out, c)
			if len(out) == limit {
				return out
			}
		}
	}
	for _, c := range dataset.Columns {
		if len(out) == limit {
			break
		}
		if c.Description == "" && c.BusinessMeaning == "" {
			out = append(out, c)
		}
	}
	return out
}
