package columnindex

import (
	"encoding/json"
	"strconv"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// columnPayload mirrors the JSON document stored in the index's payload field.
type columnPayload struct {
	Name               string                   `json:"name"`
	Type               string                   `json:"type"`
	Category           string                   `json:"category"`
	Description        string                   `json:"description"`
	BusinessMeaning    string                   `json:"business_meaning"`
	Examples           []string                 `json:"examples"`
	ExamplesExhaustive bool                     `json:"examples_exhaustive"`
	Definitions        []domain.ValueDefinition `json:"definitions"`
	BusinessRules      string                   `json:"business_rules"`
	DataQualityNotes   string                   `json:"data_quality_notes"`
}

// parseHit converts flat hash fields from a search entry into a domain hit.
// Records with an unparseable payload degrade to name-only columns rather
// than being dropped.
func parseHit(fields map[string]string, score float64) domain.ColumnHit {
	hit := domain.ColumnHit{
		Score:              score,
		DatasetName:        fields["dataset_name"],
		TableName:          fields["table_name"],
		DatasetDescription: fields["dataset_description"],
	}

	col := domain.ColumnRecord{
		Name:      fields["name"],
		Type:      fields["type"],
		DatasetID: fields["dataset_id"],
	}

	if raw, ok := fields["payload"]; ok && raw != "" {
		var p columnPayload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			col.Name = p.Name
			col.Type = p.Type
			col.Category = p.Category
			col.Description = p.Description
			col.BusinessMeaning = p.BusinessMeaning
			col.Examples = p.Examples
			col.ExamplesExhaustive = p.ExamplesExhaustive
			col.Definitions = p.Definitions
			col.BusinessRules = p.BusinessRules
			col.DataQualityNotes = p.DataQualityNotes
		}
	}
	if exh, ok := fields["examples_exhaustive"]; ok && !col.ExamplesExhaustive {
		col.ExamplesExhaustive, _ = strconv.ParseBool(exh)
	}

	hit.Column = col
	return hit
}
