package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/metrics"
)

// Client executes SQL against the tabular data API. Each dataset is queried
// through its own execute endpoint; results come back as column names plus
// row arrays.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the data API settings.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New creates a data API client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

type executeRequest struct {
	SQL string `json:"sql"`
}

type executeResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Execute implements domain.ExecutionBackend. A failed execution is returned
// as ExecutionResult{Success: false} with the error; callers never retry.
func (c *Client) Execute(ctx context.Context, datasetID, sql string) (domain.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{SQL: sql})
	if err != nil {
		return failed(datasetID, err), fmt.Errorf("encode execute request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/datasets/query/execute/%s", c.baseURL, datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failed(datasetID, err), fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExecutionRequestsTotal.WithLabelValues("error").Inc()
		return failed(datasetID, err), fmt.Errorf("execute sql: %w", domain.ErrExecutionFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.ExecutionRequestsTotal.WithLabelValues("error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Data API returned error",
			zap.String("dataset_id", datasetID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail))
		err := fmt.Errorf("data API status %d: %s: %w", resp.StatusCode, string(detail), domain.ErrExecutionFailed)
		return failed(datasetID, err), err
	}

	var parsed executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ExecutionRequestsTotal.WithLabelValues("error").Inc()
		return failed(datasetID, err), fmt.Errorf("decode execute response: %w", domain.ErrExecutionFailed)
	}

	metrics.ExecutionRequestsTotal.WithLabelValues("success").Inc()

	rows := make([]domain.Row, 0, len(parsed.Rows))
	for _, raw := range parsed.Rows {
		row := make(domain.Row, len(parsed.Columns))
		for i, col := range parsed.Columns {
			if i < len(raw) {
				row[col] = raw[i]
			}
		}
		rows = append(rows, row)
	}

	return domain.ExecutionResult{
		Success:   true,
		Rows:      rows,
		RowCount:  len(rows),
		DatasetID: datasetID,
	}, nil
}

func failed(datasetID string, err error) domain.ExecutionResult {
	return domain.ExecutionResult{
		Success:   false,
		DatasetID: datasetID,
		Error:     err.Error(),
	}
}
