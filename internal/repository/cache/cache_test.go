package cache

import (
	"context"
	"testing"
	"time"
)

func TestKey_ParamOrderDoesNotMatter(t *testing.T) {
	c, _ := newTestCache(t)

	k1, err := c.Key(CategorySQLResult, map[string]any{"dataset": "claims", "sql": "SELECT 1", "user": "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := c.Key(CategorySQLResult, map[string]any{"user": "u1", "sql": "SELECT 1", "dataset": "claims"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if k1 != k2 {
		t.Errorf("expected identical keys for reordered params, got %q and %q", k1, k2)
	}
	if len(k1) != 32 {
		t.Errorf("expected 32-char key, got %d chars", len(k1))
	}
}

func TestKey_DiffersByCategoryAndParams(t *testing.T) {
	c, _ := newTestCache(t)

	base := map[string]any{"sql": "SELECT 1"}
	k1, _ := c.Key(CategorySQLResult, base)
	k2, _ := c.Key(CategorySQLGeneration, base)
	k3, _ := c.Key(CategorySQLResult, map[string]any{"sql": "SELECT 2"})

	if k1 == k2 {
		t.Error("expected different keys for different categories")
	}
	if k1 == k3 {
		t.Error("expected different keys for different params")
	}
}

func TestGetSet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	params := map[string]any{"query": "top properties"}

	type payload struct {
		Rows int    `json:"rows"`
		SQL  string `json:"sql"`
	}

	if err := c.Set(ctx, CategorySQLResult, params, payload{Rows: 42, SQL: "SELECT *"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got payload
	hit, err := c.Get(ctx, CategorySQLResult, params, &got)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Rows != 42 || got.SQL != "SELECT *" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestGet_MissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(t)

	var out string
	hit, err := c.Get(context.Background(), CategoryMetadata, map[string]any{"id": "nope"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("expected miss for unknown key")
	}
}

func TestGet_ExpiredEntryDeleted(t *testing.T) {
	c, ms := newTestCache(t)
	ctx := context.Background()
	params := map[string]any{"q": "x"}

	now := time.Now()
	c.WithClock(func() time.Time { return now })

	if err := c.Set(ctx, CategorySQLResult, params, "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Advance past the sql_result TTL.
	c.WithClock(func() time.Time { return now.Add(2 * time.Hour) })

	var out string
	hit, err := c.Get(ctx, CategorySQLResult, params, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("expected miss for expired entry")
	}
	if ms.delCalls != 1 {
		t.Errorf("expected expired entry to be deleted, delCalls=%d", ms.delCalls)
	}
}

func TestGet_HitBumpsCountWithoutExtendingTTL(t *testing.T) {
	c, ms := newTestCache(t)
	ctx := context.Background()
	params := map[string]any{"q": "hits"}

	now := time.Now()
	c.WithClock(func() time.Time { return now })

	if err := c.Set(ctx, CategorySQLResult, params, "v"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var out string
	for i := 0; i < 3; i++ {
		if hit, _ := c.Get(ctx, CategorySQLResult, params, &out); !hit {
			t.Fatal("expected hit")
		}
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Categories[CategorySQLResult].Hits != 3 {
		t.Errorf("expected 3 hits, got %d", stats.Categories[CategorySQLResult].Hits)
	}

	// The entry still expires at its original deadline.
	c.WithClock(func() time.Time { return now.Add(61 * time.Minute) })
	hit, _ := c.Get(ctx, CategorySQLResult, params, &out)
	if hit {
		t.Error("expected entry to expire at original deadline despite hits")
	}
	_ = ms
}

func TestSweep_RemovesExpiredOnly(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	now := time.Now()
	c.WithClock(func() time.Time { return now })

	if err := c.Set(ctx, CategorySQLResult, map[string]any{"q": "old"}, "v"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Set(ctx, CategoryMetadata, map[string]any{"q": "fresh"}, "v"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// sql_result (1h) expires, metadata (12h) survives.
	c.WithClock(func() time.Time { return now.Add(2 * time.Hour) })

	deleted, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	stats, _ := c.Stats(ctx)
	if stats.TotalEntries != 1 {
		t.Errorf("expected 1 surviving entry, got %d", stats.TotalEntries)
	}
	if stats.Categories[CategoryMetadata].Entries != 1 {
		t.Error("expected metadata entry to survive sweep")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	params := map[string]any{"q": "bye"}

	if err := c.Set(ctx, CategorySQLGeneration, params, "v"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Invalidate(ctx, CategorySQLGeneration, params); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	var out string
	hit, _ := c.Get(ctx, CategorySQLGeneration, params, &out)
	if hit {
		t.Error("expected miss after invalidation")
	}
}
