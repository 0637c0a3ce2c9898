package domain

import "strings"

// ContinuationType classifies how a turn relates to the previous one.
type ContinuationType string

const (
	ContinuationPagination    ContinuationType = "pagination"
	ContinuationRefinement    ContinuationType = "refinement"
	ContinuationClarification ContinuationType = "clarification"
	ContinuationNewQuery      ContinuationType = "new_query"
)

// Valid reports whether t is one of the known continuation types.
func (t ContinuationType) Valid() bool {
	switch t {
	case ContinuationPagination, ContinuationRefinement, ContinuationClarification, ContinuationNewQuery:
		return true
	}
	return false
}

// IntentFilter is a filter concept extracted from the utterance, not yet bound
// to a concrete column.
type IntentFilter struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Concept string `json:"concept"`
}

// Intent is the structured requirement extracted from one user utterance.
// Aggregation functions are never part of an Intent: aggregation is resolved
// in SQL assembly only when the report route is chosen.
type Intent struct {
	IsContinuation      bool             `json:"is_continuation"`
	IsPaginationRequest bool             `json:"is_pagination_request"`
	ContinuationType    ContinuationType `json:"continuation_type"`
	MetricsNeeded       []string         `json:"metrics_needed"`
	DimensionsNeeded    []string         `json:"dimensions_needed"`
	Filters             []IntentFilter   `json:"filters"`
	TemporalNeeded      bool             `json:"temporal_needed"`
}

// EmptyIntent is the safe degraded Intent returned when analysis fails.
// It keeps the pipeline alive with reduced precision.
func EmptyIntent() Intent {
	return Intent{
		ContinuationType: ContinuationNewQuery,
		MetricsNeeded:    []string{},
		DimensionsNeeded: []string{},
		Filters:          []IntentFilter{},
	}
}

// Normalize repairs an Intent received from the inference boundary:
// nil slices become empty, an unknown continuation type falls back to
// new_query, and the pagination flag implies continuation.
func (i Intent) Normalize() Intent {
	if i.MetricsNeeded == nil {
		i.MetricsNeeded = []string{}
	}
	if i.DimensionsNeeded == nil {
		i.DimensionsNeeded = []string{}
	}
	if i.Filters == nil {
		i.Filters = []IntentFilter{}
	}
	if !i.ContinuationType.Valid() {
		i.ContinuationType = ContinuationNewQuery
	}
	if i.IsPaginationRequest {
		i.IsContinuation = true
		i.ContinuationType = ContinuationPagination
	}
	return i
}

// paginationPhrases are surface cues that mark a turn as a "show more"
// request before any inference call is made.
var paginationPhrases = []string{
	"show me more",
	"show more",
	"get more",
	"more results",
	"more data",
	"more of those",
	"more from that",
	"more from the same",
	"what else",
	"any more",
	"are there more",
	"give me more",
	"next page",
}

// IsPaginationPhrase reports whether the utterance matches the "show me more"
// phrase family. Matching is a case-insensitive substring check.
func IsPaginationPhrase(utterance string) bool {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	for _, p := range paginationPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
