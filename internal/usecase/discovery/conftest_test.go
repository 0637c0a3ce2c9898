package discovery

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/domain"
	"github.com/colloquy-ai/colloquy/internal/repository/cache"
)

type mockIndex struct {
	mu           sync.Mutex
	searchHits   []domain.ColumnHit
	searchErr    error
	searchCalls  int
	queries      []string
	scrollHits   []domain.ColumnHit
	scrollErr    error
	scrolledID   string
	scrolledOnce bool
	info         domain.DatasetInfo
	infoErr      error
	infoCalls    int
}

func (m *mockIndex) Search(_ context.Context, _ []float32, _ int, _ string) ([]domain.ColumnHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	return m.searchHits, m.searchErr
}

func (m *mockIndex) ScrollDataset(_ context.Context, datasetID string, _ int) ([]domain.ColumnHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolledID = datasetID
	m.scrolledOnce = true
	return m.scrollHits, m.scrollErr
}

func (m *mockIndex) DatasetInfo(_ context.Context, datasetID string) (domain.DatasetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls++
	if m.infoErr != nil {
		return domain.DatasetInfo{}, m.infoErr
	}
	if m.info.DatasetID == "" {
		return domain.DatasetInfo{}, nil
	}
	info := m.info
	info.DatasetID = datasetID
	return info, nil
}

type mockEmbedder struct {
	mu      sync.Mutex
	vector  []float32
	err     error
	calls   int
	queries []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	if m.vector == nil {
		return []float32{0.1, 0.2}, nil
	}
	return m.vector, nil
}

// mockCache is a pass-through cache backed by a map.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) key(category cache.Category, params map[string]any) string {
	raw, _ := json.Marshal(params)
	return string(category) + string(raw)
}

func (m *mockCache) Get(_ context.Context, category cache.Category, params map[string]any, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[m.key(category, params)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *mockCache) Set(_ context.Context, category cache.Category, params map[string]any, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[m.key(category, params)] = raw
	return nil
}

func hit(datasetID, name string, score float64) domain.ColumnHit {
	return domain.ColumnHit{
		Column:      domain.ColumnRecord{Name: name, Type: "STRING", DatasetID: datasetID},
		Score:       score,
		DatasetName: "Dataset " + datasetID,
		TableName:   "table_" + datasetID,
	}
}
