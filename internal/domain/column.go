package domain

import (
	"fmt"
	"strings"
)

// ValueDefinition explains the meaning of one known column value.
type ValueDefinition struct {
	Value   string `json:"value"`
	Meaning string `json:"meaning"`
}

// ColumnRecord is the descriptive metadata record for one dataset column.
// It is immutable reference data owned by the column index; the pipeline
// only reads it.
type ColumnRecord struct {
	Name               string            `json:"name"`
	Type               string            `json:"type"`
	Category           string            `json:"category"`
	Description        string            `json:"description"`
	BusinessMeaning    string            `json:"business_meaning"`
	Examples           []string          `json:"examples"`
	ExamplesExhaustive bool              `json:"examples_exhaustive"`
	Definitions        []ValueDefinition `json:"definitions"`
	BusinessRules      string            `json:"business_rules"`
	DataQualityNotes   string            `json:"data_quality_notes"`
	DatasetID          string            `json:"dataset_id"`
}

// IsTemporal reports whether the column holds date or time values.
func (c ColumnRecord) IsTemporal() bool {
	switch strings.ToUpper(c.Type) {
	case "DATE", "DATETIME", "TIMESTAMP":
		return true
	}
	name := strings.ToLower(c.Name)
	for _, kw := range TemporalVocabulary {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// IsText reports whether the column holds free text, where filters should use
// partial case-insensitive matching.
func (c ColumnRecord) IsText() bool {
	switch strings.ToUpper(c.Type) {
	case "STRING", "TEXT", "VARCHAR":
		return true
	}
	return false
}

// MatchesExample reports whether value plausibly matches one of the column's
// known example values (case-insensitive partial match in either direction).
// Columns without examples always match: their value space is unknown.
func (c ColumnRecord) MatchesExample(value string) bool {
	if len(c.Examples) == 0 {
		return true
	}
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return false
	}
	for _, ex := range c.Examples {
		known := strings.ToLower(ex)
		if strings.Contains(known, needle) || strings.Contains(needle, known) {
			return true
		}
	}
	return false
}

// PromptText renders one column with all available metadata and smart
// truncation, for use in selection and SQL prompts.
func (c ColumnRecord) PromptText() string {
	parts := []string{fmt.Sprintf("%s (%s)", c.Name, c.Type)}

	if c.Category != "" {
		parts = append(parts, "category: "+c.Category)
	}
	if c.Description != "" {
		parts = append(parts, "Description: "+truncate(c.Description, 150))
	}
	if c.BusinessMeaning != "" && c.BusinessMeaning != c.Description {
		parts = append(parts, "Business meaning: "+truncate(c.BusinessMeaning, 150))
	}

	if len(c.Examples) > 0 {
		shown := c.Examples
		if len(shown) > 15 {
			shown = shown[:15]
		}
		text := strings.Join(shown, ", ")
		if len(c.Examples) > 15 {
			text += fmt.Sprintf(" (and %d more)", len(c.Examples)-15)
		}
		label := "Examples: "
		if c.ExamplesExhaustive {
			label = "ONLY valid values: "
		}
		parts = append(parts, label+text)
	}

	if len(c.Definitions) > 0 {
		defs := make([]string, 0, 5)
		for _, d := range c.Definitions {
			if len(defs) == 5 {
				break
			}
			switch {
			case d.Meaning != "":
				defs = append(defs, d.Value+": "+truncate(d.Meaning, 100))
			case d.Value != "":
				defs = append(defs, d.Value)
			}
		}
		if len(defs) > 0 {
			text := strings.Join(defs, "; ")
			if len(c.Definitions) > 5 {
				text += fmt.Sprintf(" (and %d more definitions)", len(c.Definitions)-5)
			}
			parts = append(parts, "Definitions: "+text)
		}
	}

	if strings.TrimSpace(c.BusinessRules) != "" {
		parts = append(parts, "Business rules: "+truncate(c.BusinessRules, 200))
	}
	if strings.TrimSpace(c.DataQualityNotes) != "" {
		parts = append(parts, "Data quality: "+c.DataQualityNotes)
	}

	return strings.Join(parts, ". ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

// TemporalVocabulary is the fixed search vocabulary for temporal columns.
var TemporalVocabulary = []string{"date", "time", "year", "month", "day", "timestamp"}

// ScoredColumn is a column search hit with its similarity score.
type ScoredColumn struct {
	Column ColumnRecord
	Score  float64
}

// ColumnHit is a raw column index hit carrying the dataset metadata stored
// alongside the column record.
type ColumnHit struct {
	Column             ColumnRecord
	Score              float64
	DatasetName        string
	TableName          string
	DatasetDescription string
}

// DatasetInfo is the descriptive metadata record stored per dataset,
// alongside the column index.
type DatasetInfo struct {
	DatasetID   string `json:"dataset_id"`
	Name        string `json:"name"`
	TableName   string `json:"table_name"`
	Description string `json:"description"`
}

// DatasetCandidate groups column hits by dataset during discovery.
// It is built transiently per turn and discarded after selection, except for
// the winner.
type DatasetCandidate struct {
	DatasetID   string
	DatasetName string
	TableName   string
	Description string
	Columns     []ScoredColumn
}

// AggregateScore is the dataset's ranking score: the sum of its hit scores.
func (d DatasetCandidate) AggregateScore() float64 {
	var total float64
	for _, c := range d.Columns {
		total += c.Score
	}
	return total
}

// DatasetContext is the chosen dataset with its full column set, carried
// through selection, SQL generation, and response synthesis.
type DatasetContext struct {
	DatasetID   string
	DatasetName string
	TableName   string
	Description string
	Columns     []ColumnRecord
}

// ColumnByName finds a column in the dataset context.
func (d DatasetContext) ColumnByName(name string) (ColumnRecord, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnRecord{}, false
}

// ColumnNames returns all column names in dataset order.
func (d DatasetContext) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}
