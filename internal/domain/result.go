package domain

// Row is one flat record returned by the execution backend.
type Row map[string]any

// ResultBuffer holds the complete fetched row set for one executed query,
// carried across turns for pagination. It always contains every fetched row;
// truncation happens only at presentation time.
type ResultBuffer struct {
	DatasetID string   `json:"dataset_id"`
	SQLQuery  string   `json:"sql_query"`
	AllRows   []Row    `json:"all_rows"`
	RowsShown int      `json:"rows_shown"`
	Columns   []string `json:"columns"`
}

// NextPage returns the next pageSize rows past RowsShown and the updated
// shown offset. The returned offset never exceeds len(AllRows) and never
// decreases.
func (b ResultBuffer) NextPage(pageSize int) ([]Row, int) {
	if pageSize <= 0 {
		return nil, b.RowsShown
	}
	start := b.RowsShown
	if start < 0 {
		start = 0
	}
	if start >= len(b.AllRows) {
		return nil, len(b.AllRows)
	}
	end := start + pageSize
	if end > len(b.AllRows) {
		end = len(b.AllRows)
	}
	return b.AllRows[start:end], end
}

// Exhausted reports whether every buffered row has been shown.
func (b ResultBuffer) Exhausted() bool {
	return b.RowsShown >= len(b.AllRows)
}

// ExecutionResult is the outcome of one backend query execution.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Rows      []Row  `json:"rows"`
	RowCount  int    `json:"row_count"`
	DatasetID string `json:"dataset_id"`
	Error     string `json:"error,omitempty"`
}

// Response is the presentation contract returned to callers of the pipeline.
// Callers decide how much of the buffered rows to render.
type Response struct {
	ConversationID    string   `json:"conversation_id"`
	FinalText         string   `json:"final_text"`
	Rows              []Row    `json:"rows,omitempty"`
	SQLUsed           string   `json:"sql_used"`
	RowsReturnedTotal int      `json:"rows_returned_total"`
	RowsShown         int      `json:"rows_shown"`
	ColumnsUsed       []string `json:"columns_used"`
	DatasetID         string   `json:"dataset_id,omitempty"`
	DatasetName       string   `json:"dataset_name,omitempty"`
	Route             string   `json:"route,omitempty"`
	Steps             []Step   `json:"steps,omitempty"`
	Error             string   `json:"error,omitempty"`
}
