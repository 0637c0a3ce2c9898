package domain

import "fmt"

// Route selects the downstream behavior for a turn.
type Route string

const (
	// RouteReport is the aggregated-report behavior.
	RouteReport Route = "report"
	// RouteQuery is the ad-hoc raw-data query behavior: the cheaper,
	// reversible path and the safe default.
	RouteQuery Route = "query"
)

// RouteMethod names how a routing decision was made.
type RouteMethod string

const (
	RouteMethodKeyword  RouteMethod = "keyword"
	RouteMethodLLM      RouteMethod = "llm"
	RouteMethodFallback RouteMethod = "llm_error"
)

// RouteDecision is the semantic router's output for one turn.
type RouteDecision struct {
	Route          Route       `json:"route"`
	Confidence     float64     `json:"confidence"`
	Method         RouteMethod `json:"method"`
	MatchedKeyword string      `json:"matched_keyword,omitempty"`
	Reasoning      string      `json:"reasoning,omitempty"`
	LatencyMS      int64       `json:"latency_ms"`
}

// Explain renders a human-readable explanation of the routing decision.
func (d RouteDecision) Explain() string {
	switch d.Method {
	case RouteMethodKeyword:
		return fmt.Sprintf("routed to %s (keyword match %q, confidence %.0f%%)",
			d.Route, d.MatchedKeyword, d.Confidence*100)
	case RouteMethodLLM:
		return fmt.Sprintf("routed to %s (llm classification, confidence %.0f%%): %s",
			d.Route, d.Confidence*100, d.Reasoning)
	case RouteMethodFallback:
		return fmt.Sprintf("routed to %s (fallback after inference error)", d.Route)
	}
	return fmt.Sprintf("routed to %s (method %s)", d.Route, d.Method)
}
