package domain

// FilterMapping binds an intent filter concept to a concrete column and value.
// A mapping is only valid when the column exists in the selected dataset.
type FilterMapping struct {
	Concept string `json:"concept"`
	Column  string `json:"column"`
	Value   string `json:"value"`
}

// CompareOp is the comparison operator of one WHERE condition.
type CompareOp string

const (
	OpEquals    CompareOp = "="
	OpNotEquals CompareOp = "!="
	OpLess      CompareOp = "<"
	OpLessEq    CompareOp = "<="
	OpGreater   CompareOp = ">"
	OpGreaterEq CompareOp = ">="
	// OpContains is a partial case-insensitive match.
	OpContains  CompareOp = "ilike"
	OpIsNull    CompareOp = "is_null"
	OpIsNotNull CompareOp = "is_not_null"
)

// Valid reports whether the operator is known.
func (o CompareOp) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpLess, OpLessEq, OpGreater, OpGreaterEq,
		OpContains, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Condition is one WHERE or HAVING predicate of a QueryPlan.
type Condition struct {
	Column string    `json:"column"`
	Op     CompareOp `json:"op"`
	Value  string    `json:"value"`
}

// Aggregate is one aggregated select expression, used only on the report
// route. Func is one of COUNT, SUM, AVG, MAX, MIN.
type Aggregate struct {
	Func   string `json:"func"`
	Column string `json:"column"`
	Alias  string `json:"alias"`
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// QueryPlan is the intermediate representation between column selection and
// SQL text. Plans are assembled by the pipeline or returned (and validated)
// from a structured refinement call; SQL is never hand-written.
type QueryPlan struct {
	Table            string      `json:"table"`
	SelectColumns    []string    `json:"select_columns"`
	Aggregates       []Aggregate `json:"aggregates"`
	WhereConditions  []Condition `json:"where_conditions"`
	GroupBy          []string    `json:"group_by"`
	HavingConditions []Condition `json:"having_conditions"`
	OrderBy          []OrderBy   `json:"order_by"`
	Limit            int         `json:"limit"`
}

// IsRawData reports whether the plan requests raw rows with no aggregation.
func (p QueryPlan) IsRawData() bool {
	return len(p.Aggregates) == 0 && len(p.GroupBy) == 0
}
