package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// QuoteIdentifier makes an identifier safe for SQL text. Names containing
// anything outside [A-Za-z0-9_] are wrapped in double quotes; backtick
// quoting from upstream models is normalized first. Quoting is idempotent.
func QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`")

	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) && len(name) >= 2 {
		return name
	}

	if isPlainIdentifier(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// Render turns a QueryPlan into SQL text. Rendering is deterministic: the
// same plan always yields the same string. A zero Limit renders no LIMIT
// clause; the pipeline fetches complete result sets.
func Render(p domain.QueryPlan) (string, error) {
	if p.Table == "" {
		return "", fmt.Errorf("plan has no table: %w", domain.ErrNoDataset)
	}

	selects := make([]string, 0, len(p.SelectColumns)+len(p.Aggregates))
	for _, c := range p.SelectColumns {
		selects = append(selects, QuoteIdentifier(c))
	}
	for _, a := range p.Aggregates {
		expr, err := renderAggregate(a)
		if err != nil {
			return "", err
		}
		selects = append(selects, expr)
	}
	if len(selects) == 0 {
		selects = []string{"*"}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdentifier(p.Table))

	if len(p.WhereConditions) > 0 {
		clause, err := renderConditions(p.WhereConditions)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(clause)
	}

	if len(p.GroupBy) > 0 {
		terms := make([]string, 0, len(p.GroupBy))
		for _, c := range p.GroupBy {
			terms = append(terms, QuoteIdentifier(c))
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if len(p.HavingConditions) > 0 {
		clause, err := renderConditions(p.HavingConditions)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(clause)
	}

	if len(p.OrderBy) > 0 {
		terms := make([]string, 0, len(p.OrderBy))
		for _, o := range p.OrderBy {
			term := QuoteIdentifier(o.Column)
			if o.Descending {
				term += " DESC"
			}
			terms = append(terms, term)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if p.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(p.Limit))
	}

	return b.String(), nil
}

var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MAX": true, "MIN": true,
}

func renderAggregate(a domain.Aggregate) (string, error) {
	fn := strings.ToUpper(strings.TrimSpace(a.Func))
	if !aggregateFuncs[fn] {
		return "", fmt.Errorf("unsupported aggregate function %q", a.Func)
	}

	arg := "*"
	if a.Column != "" && a.Column != "*" {
		arg = QuoteIdentifier(a.Column)
	}

	expr := fmt.Sprintf("%s(%s)", fn, arg)
	if a.Alias != "" {
		expr += " AS " + QuoteIdentifier(a.Alias)
	}
	return expr, nil
}

func renderConditions(conds []domain.Condition) (string, error) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		expr, err := renderCondition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, " AND "), nil
}

func renderCondition(c domain.Condition) (string, error) {
	if !c.Op.Valid() {
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
	col := QuoteIdentifier(c.Column)

	switch c.Op {
	case domain.OpIsNull:
		return col + " IS NULL", nil
	case domain.OpIsNotNull:
		return col + " IS NOT NULL", nil
	case domain.OpContains:
		return fmt.Sprintf("%s ILIKE %s", col, quoteString("%"+c.Value+"%")), nil
	default:
		return fmt.Sprintf("%s %s %s", col, c.Op, renderValue(c.Value)), nil
	}
}

// renderValue renders numbers bare and everything else as a quoted string.
func renderValue(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return quoteString(v)
}

func quoteString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
