package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
	"github.com/colloquy-ai/colloquy/internal/usecase/selection"
)

const planShape = `{"table": string, "select_columns": [string], "aggregates": [{"func": string, "column": string, "alias": string}],
 "where_conditions": [{"column": string, "op": string, "value": string}], "group_by": [string],
 "having_conditions": [...], "order_by": [{"column": string, "descending": bool}], "limit": int}`

const refinePrompt = `You refine a query plan for an aggregated report, given the dataset columns and a draft plan.

Rules:
- Use only columns from the provided list, by exact name.
- Aggregate functions allowed: COUNT, SUM, AVG, MAX, MIN.
- Every non-aggregated select column must appear in group_by.
- Keep the draft's where_conditions unless they are wrong for the question.

Respond with a JSON object shaped exactly like the draft plan:
` + planShape

const adaptPrompt = `You adapt the previous SQL of a data conversation to a follow-up question, given the dataset columns and a draft plan built from the follow-up alone.

Rules:
- Start from the previous query and change only what the follow-up asks to change.
- Keep the previous query's WHERE conditions unless the follow-up replaces or removes them.
- Use only columns from the provided list, by exact name.

Respond with a JSON object shaped like:
` + planShape

// Service turns a validated column selection into executable SQL. The query
// route always produces a raw-data plan; the report route may add aggregation
// through a validated refinement call.
type Service struct {
	inference Inference
	cache     Cache
	logger    *zap.Logger
}

// New creates a SQL generation service.
func New(inference Inference, c Cache, logger *zap.Logger) *Service {
	return &Service{inference: inference, cache: c, logger: logger}
}

// Generate produces the SQL for a turn.
//
// Clarification turns produce no SQL. Pagination turns reuse the previous
// SQL verbatim when one exists. Refinement turns adapt the previous SQL to
// the follow-up through a validated structured call. All other turns
// assemble a plan from the selection and render it; generated SQL is cached
// per utterance and dataset.
func (s *Service) Generate(
	ctx context.Context, turn *domain.Turn,
	dataset domain.DatasetContext, sel selection.Selection, previousSQL string,
) (string, domain.QueryPlan, error) {
	if turn.Intent.ContinuationType == domain.ContinuationClarification {
		return "", domain.QueryPlan{}, nil
	}
	if turn.Intent.IsPaginationRequest && previousSQL != "" {
		return previousSQL, domain.QueryPlan{}, nil
	}
	if dataset.TableName == "" || len(sel.Columns) == 0 {
		return "", domain.QueryPlan{}, domain.ErrNoDataset
	}

	refining := turn.Intent.ContinuationType == domain.ContinuationRefinement && previousSQL != ""

	params := map[string]any{
		"utterance":  turn.Utterance,
		"dataset_id": dataset.DatasetID,
		"route":      string(turn.Route.Route),
	}
	if refining {
		// The same utterance means something different depending on the
		// query it refines.
		params["previous_sql"] = previousSQL
	}

	var cached struct {
		SQL  string           `json:"sql"`
		Plan domain.QueryPlan `json:"plan"`
	}
	if hit, err := s.cache.Get(ctx, cache.CategorySQLGeneration, params, &cached); err == nil && hit {
		turn.CacheHits["sql_generation"] = true
		return cached.SQL, cached.Plan, nil
	}

	plan := buildPlan(dataset, sel)

	if refining {
		adapted, err := s.adapt(ctx, turn, dataset, plan, previousSQL)
		if err != nil {
			s.logger.Warn("Previous SQL adaptation failed, using fresh plan",
				zap.String("dataset_id", dataset.DatasetID),
				zap.Error(err))
		} else {
			plan = adapted
		}
	}

	if turn.Route.Route == domain.RouteReport {
		refined, err := s.refine(ctx, turn, dataset, plan)
		if err != nil {
			s.logger.Warn("Report plan refinement failed, keeping raw-data plan",
				zap.String("dataset_id", dataset.DatasetID),
				zap.Error(err))
		} else {
			plan = refined
		}
	}

	sql, err := Render(plan)
	if err != nil {
		return "", domain.QueryPlan{}, fmt.Errorf("render plan: %w", err)
	}

	cached.SQL = sql
	cached.Plan = plan
	if err := s.cache.Set(ctx, cache.CategorySQLGeneration, params, cached); err != nil {
		s.logger.Warn("Failed to cache generated sql", zap.Error(err))
	}

	return sql, plan, nil
}

// buildPlan assembles the deterministic raw-data plan: selected columns,
// filter mappings as WHERE conditions, no aggregation and no limit.
func buildPlan(dataset domain.DatasetContext, sel selection.Selection) domain.QueryPlan {
	plan := domain.QueryPlan{Table: dataset.TableName}
	for _, c := range sel.Columns {
		plan.SelectColumns = append(plan.SelectColumns, c.Name)
	}
	for _, m := range sel.Mappings {
		col, ok := dataset.ColumnByName(m.Column)
		if !ok {
			continue
		}
		plan.WhereConditions = append(plan.WhereConditions, conditionFor(col, m.Value))
	}
	return plan
}

// adapt carries the previous query's constraints into the follow-up: the
// model starts from the previous SQL and the fresh draft, and the answer is
// validated against the dataset like any refinement.
func (s *Service) adapt(
	ctx context.Context, turn *domain.Turn,
	dataset domain.DatasetContext, draft domain.QueryPlan, previousSQL string,
) (domain.QueryPlan, error) {
	draftJSON, err := Render(draft)
	if err != nil {
		return domain.QueryPlan{}, err
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: adaptPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(
			"Follow-up question: %s\n\nPrevious SQL: %s\n\nColumns of table %q:\n%s\nDraft for the follow-up alone (as SQL): %s",
			turn.Utterance, previousSQL, dataset.TableName, columnCatalog(dataset), draftJSON)},
	}

	var out domain.QueryPlan
	if err := s.inference.CompleteStructured(ctx, messages, &out, domain.CompletionOptions{}); err != nil {
		return domain.QueryPlan{}, err
	}

	if err := validatePlan(out, dataset); err != nil {
		return domain.QueryPlan{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	out.Table = dataset.TableName
	return out, nil
}

// conditionFor chooses the operator for one filter. Exact equality is used
// only when the value is confirmed against a column's complete value list;
// text columns otherwise get a partial case-insensitive match.
func conditionFor(col domain.ColumnRecord, value string) domain.Condition {
	if canonical, ok := exactExample(col, value); ok {
		return domain.Condition{Column: col.Name, Op: domain.OpEquals, Value: canonical}
	}
	if col.IsText() {
		return domain.Condition{Column: col.Name, Op: domain.OpContains, Value: value}
	}
	return domain.Condition{Column: col.Name, Op: domain.OpEquals, Value: value}
}

// exactExample returns the canonical casing of value when it equals one of
// the column's examples case-insensitively. Only columns whose example list
// is the complete value set confirm equality; an open-ended example list
// matching the value proves nothing about unlisted values.
func exactExample(col domain.ColumnRecord, value string) (string, bool) {
	if !col.ExamplesExhaustive {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(value))
	for _, ex := range col.Examples {
		if strings.ToLower(ex) == needle {
			return ex, true
		}
	}
	return "", false
}

// refine asks the model for an aggregated version of the draft plan and
// validates the answer against the dataset before trusting it.
func (s *Service) refine(
	ctx context.Context, turn *domain.Turn,
	dataset domain.DatasetContext, draft domain.QueryPlan,
) (domain.QueryPlan, error) {
	draftJSON, err := Render(draft)
	if err != nil {
		return domain.QueryPlan{}, err
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: refinePrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(
			"Question: %s\n\nColumns of table %q:\n%s\nDraft (as SQL): %s",
			turn.Utterance, dataset.TableName, columnCatalog(dataset), draftJSON)},
	}

	var out domain.QueryPlan
	if err := s.inference.CompleteStructured(ctx, messages, &out, domain.CompletionOptions{}); err != nil {
		return domain.QueryPlan{}, err
	}

	if err := validatePlan(out, dataset); err != nil {
		return domain.QueryPlan{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if out.IsRawData() {
		return domain.QueryPlan{}, fmt.Errorf("%w: refined report plan has no aggregation", domain.ErrInvalidPayload)
	}
	out.Table = dataset.TableName
	return out, nil
}

// columnCatalog renders the terse name/type listing used in plan prompts.
func columnCatalog(dataset domain.DatasetContext) string {
	var catalog strings.Builder
	for _, c := range dataset.Columns {
		fmt.Fprintf(&catalog, "- %s (%s)\n", c.Name, c.Type)
	}
	return catalog.String()
}

func validatePlan(p domain.QueryPlan, dataset domain.DatasetContext) error {
	known := func(name string) bool {
		_, ok := dataset.ColumnByName(strings.Trim(name, "`\""))
		return ok
	}

	for _, c := range p.SelectColumns {
		if !known(c) {
			return fmt.Errorf("unknown select column %q", c)
		}
	}
	for _, a := range p.Aggregates {
		fn := strings.ToUpper(strings.TrimSpace(a.Func))
		if !aggregateFuncs[fn] {
			return fmt.Errorf("unknown aggregate function %q", a.Func)
		}
		if a.Column != "" && a.Column != "*" && !known(a.Column) {
			return fmt.Errorf("unknown aggregate column %q", a.Column)
		}
	}
	for _, c := range append(append([]domain.Condition{}, p.WhereConditions...), p.HavingConditions...) {
		if !c.Op.Valid() {
			return fmt.Errorf("unknown operator %q", c.Op)
		}
		if !known(c.Column) {
			return fmt.Errorf("unknown condition column %q", c.Column)
		}
	}
	for _, g := range p.GroupBy {
		if !known(g) {
			return fmt.Errorf("unknown group by column %q", g)
		}
	}
	for _, o := range p.OrderBy {
		if !known(o.Column) && !aliased(p, o.Column) {
			return fmt.Errorf("unknown order by column %q", o.Column)
		}
	}
	return nil
}

func aliased(p domain.QueryPlan, name string) bool {
	for _, a := range p.Aggregates {
		if a.Alias == name {
			return true
		}
	}
	return false
}
