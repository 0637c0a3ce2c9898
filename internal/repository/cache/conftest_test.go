package cache

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/db"
)

// memStore is an in-memory key-value store for tests.
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	setCalls int
	delCalls int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delCalls++
	delete(m.data, key)
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestCache(t *testing.T) (*Cache, *memStore) {
	t.Helper()
	ms := newMemStore()
	c := New(ms, "test:cache:", DefaultTTLs(), nil, zap.NewNop())
	return c, ms
}
