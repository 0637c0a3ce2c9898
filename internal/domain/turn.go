package domain

import "time"

// StepStatus is the outcome of one pipeline stage.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

// Step records one pipeline stage's outcome and timing for the turn's step log.
type Step struct {
	Name       string     `json:"step"`
	Status     StepStatus `json:"status"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// Turn is one user utterance and the artifacts derived while resolving it.
// Turns are ephemeral: created per request, never persisted by the core.
type Turn struct {
	ConversationID string
	Utterance      string
	UserID         string

	Intent  Intent
	Route   RouteDecision
	Dataset DatasetContext
	Plan    QueryPlan
	SQL     string
	Buffer  ResultBuffer

	Steps     []Step
	CacheHits map[string]bool
}

// NewTurn creates a turn for one utterance.
func NewTurn(conversationID, userID, utterance string) *Turn {
	return &Turn{
		ConversationID: conversationID,
		UserID:         userID,
		Utterance:      utterance,
		CacheHits:      map[string]bool{},
	}
}

// RecordStep appends a completed stage to the step log.
func (t *Turn) RecordStep(name string, started time.Time) {
	t.Steps = append(t.Steps, Step{
		Name:       name,
		Status:     StepCompleted,
		DurationMS: time.Since(started).Milliseconds(),
	})
}

// RecordStepError appends a failed stage to the step log. The failure detail
// stays in the log; it is never raised past the turn boundary.
func (t *Turn) RecordStepError(name string, started time.Time, err error) {
	step := Step{
		Name:       name,
		Status:     StepError,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		step.Error = err.Error()
	}
	t.Steps = append(t.Steps, step)
}

// RecordStepSkipped appends a skipped stage to the step log.
func (t *Turn) RecordStepSkipped(name string) {
	t.Steps = append(t.Steps, Step{Name: name, Status: StepSkipped})
}
