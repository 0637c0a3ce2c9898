package columnindex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/colloquy-ai/colloquy/internal/db"
)

type mockStore struct {
	knnResult    *db.SearchResult
	knnErr       error
	knnCalls     int
	lastKNN      *db.KNNQuery
	scrollResult *db.SearchResult
	scrollErr    error
	lastScroll   *db.ScrollQuery
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnCalls++
	m.lastKNN = q
	return m.knnResult, m.knnErr
}

func (m *mockStore) Scroll(_ context.Context, q *db.ScrollQuery) (*db.SearchResult, error) {
	m.lastScroll = q
	return m.scrollResult, m.scrollErr
}

func (m *mockStore) HGetAll(_ context.Context, _ string) (map[string]string, error) {
	return nil, nil
}

func entryWithPayload(t *testing.T, key string, score float64, name, typ, datasetID string) db.SearchEntry {
	t.Helper()
	p := columnPayload{
		Name:        name,
		Type:        typ,
		Description: "test column",
		Examples:    []string{"a", "b"},
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			"payload":             string(raw),
			"dataset_id":          datasetID,
			"dataset_name":        "Claims",
			"table_name":          "claims_raw",
			"dataset_description": "claims data",
		},
	}
}

func TestSearch_ParsesHits(t *testing.T) {
	ms := &mockStore{
		knnResult: &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				entryWithPayload(t, "col:1", 0.92, "loss_date", "DATE", "ds1"),
				entryWithPayload(t, "col:2", 0.81, "loss_reason", "STRING", "ds1"),
			},
		},
	}
	repo := New(ms, "idx:columns")

	hits, err := repo.Search(context.Background(), []float32{0.1, 0.2}, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Column.Name != "loss_date" || hits[0].Score != 0.92 {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Column.DatasetID != "ds1" {
		t.Errorf("expected dataset id ds1, got %q", hits[0].Column.DatasetID)
	}
	if hits[0].DatasetName != "Claims" || hits[0].TableName != "claims_raw" {
		t.Errorf("dataset metadata not parsed: %+v", hits[0])
	}
	if len(hits[1].Column.Examples) != 2 {
		t.Errorf("expected payload examples parsed, got %+v", hits[1].Column.Examples)
	}
}

func TestSearch_DatasetFilterApplied(t *testing.T) {
	ms := &mockStore{knnResult: &db.SearchResult{}}
	repo := New(ms, "idx:columns")

	if _, err := repo.Search(context.Background(), []float32{0.1}, 5, "ds42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.lastKNN.Filter.Field != "dataset_id" || ms.lastKNN.Filter.Value != "ds42" {
		t.Errorf("expected dataset_id filter, got %+v", ms.lastKNN.Filter)
	}
	if ms.lastKNN.K != 5 {
		t.Errorf("expected K=5, got %d", ms.lastKNN.K)
	}
}

func TestSearch_MissingIndexReturnsEmpty(t *testing.T) {
	ms := &mockStore{knnErr: db.ErrIndexNotFound}
	repo := New(ms, "idx:columns")

	hits, err := repo.Search(context.Background(), []float32{0.1}, 5, "")
	if err != nil {
		t.Fatalf("expected missing index to be tolerated, got %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits, got %v", hits)
	}
}

func TestSearch_SkipsNamelessRecords(t *testing.T) {
	ms := &mockStore{
		knnResult: &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "col:broken", Score: 0.9, Fields: map[string]string{"dataset_id": "ds1"}},
				entryWithPayload(t, "col:ok", 0.8, "premium", "DOUBLE", "ds1"),
			},
		},
	}
	repo := New(ms, "idx:columns")

	hits, err := repo.Search(context.Background(), []float32{0.1}, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Column.Name != "premium" {
		t.Errorf("expected only the valid record, got %+v", hits)
	}
}

func TestScrollDataset(t *testing.T) {
	ms := &mockStore{
		scrollResult: &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				entryWithPayload(t, "col:1", 0, "policy_number", "STRING", "ds7"),
			},
		},
	}
	repo := New(ms, "idx:columns")

	hits, err := repo.ScrollDataset(context.Background(), "ds7", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if ms.lastScroll.Filter.Value != "ds7" || ms.lastScroll.Limit != 500 {
		t.Errorf("unexpected scroll query: %+v", ms.lastScroll)
	}
}
