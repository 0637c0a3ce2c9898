package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces. Consumers depend
// on the narrow sub-interfaces, not on Store.
type Store interface {
	Pinger
	KVStore
	HashStore
	VectorSearcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashStore provides hash read operations for index payload records.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// TagFilter restricts a search to records whose tag field matches a value.
// The zero value applies no filter.
type TagFilter struct {
	Field string
	Value string
}

// IsEmpty reports whether no filter is set.
func (f TagFilter) IsEmpty() bool { return f.Field == "" || f.Value == "" }

// KNNQuery is the input for vector similarity search over an FT index.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Filter       TagFilter
	ReturnFields []string
}

// ScrollQuery fetches every record matching a tag filter, without ranking.
type ScrollQuery struct {
	IndexName    string
	Filter       TagFilter
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// VectorSearcher provides read-only search over FT indexes. The column index
// contents are owned externally; this layer only queries them.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	Scroll(ctx context.Context, q *ScrollQuery) (*SearchResult, error)
}
