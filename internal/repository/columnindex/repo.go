package columnindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/colloquy-ai/colloquy/internal/db"
	"github.com/colloquy-ai/colloquy/internal/domain"
)

// returnFields are the hash fields fetched for every hit.
var returnFields = []string{
	"payload", "name", "type",
	"dataset_id", "dataset_name", "table_name", "dataset_description",
}

// datasetInfoKeyPrefix prefixes the per-dataset metadata hash keys, written
// by the same ingestion job that owns the column index.
const datasetInfoKeyPrefix = "dataset:info:"

// store is the consumer interface for column index search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Scroll(ctx context.Context, q *db.ScrollQuery) (*db.SearchResult, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo provides read-only access to the column metadata index. The index
// contents are written by an external ingestion job; this repo only queries.
type Repo struct {
	store     store
	indexName string
}

// New creates a column index repository over the given FT index.
func New(s store, indexName string) *Repo {
	return &Repo{store: s, indexName: indexName}
}

// Search runs a KNN similarity search for columns, optionally restricted to
// one dataset. Returns hits in descending score order as ranked by the index.
func (r *Repo) Search(ctx context.Context, vector []float32, limit int, datasetID string) ([]domain.ColumnHit, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       vector,
		K:            limit,
		ReturnFields: returnFields,
	}
	if datasetID != "" {
		q.Filter = db.TagFilter{Field: "dataset_id", Value: datasetID}
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("search columns: %w", err)
	}

	return parseHits(sr), nil
}

// ScrollDataset fetches every column of one dataset, without ranking.
func (r *Repo) ScrollDataset(ctx context.Context, datasetID string, limit int) ([]domain.ColumnHit, error) {
	q := &db.ScrollQuery{
		IndexName:    r.indexName,
		Filter:       db.TagFilter{Field: "dataset_id", Value: datasetID},
		Limit:        limit,
		ReturnFields: returnFields,
	}

	sr, err := r.store.Scroll(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scroll dataset %s: %w", datasetID, err)
	}

	return parseHits(sr), nil
}

// DatasetInfo reads the dataset's metadata hash. A missing record returns the
// zero value without an error: not every indexed dataset carries one.
func (r *Repo) DatasetInfo(ctx context.Context, datasetID string) (domain.DatasetInfo, error) {
	fields, err := r.store.HGetAll(ctx, datasetInfoKeyPrefix+datasetID)
	if err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("dataset info %s: %w", datasetID, err)
	}
	if len(fields) == 0 {
		return domain.DatasetInfo{}, nil
	}

	return domain.DatasetInfo{
		DatasetID:   datasetID,
		Name:        fields["name"],
		TableName:   fields["table_name"],
		Description: fields["description"],
	}, nil
}

func parseHits(sr *db.SearchResult) []domain.ColumnHit {
	if sr == nil || sr.Total == 0 {
		return nil
	}
	hits := make([]domain.ColumnHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hit := parseHit(entry.Fields, entry.Score)
		if hit.Column.Name == "" {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}
