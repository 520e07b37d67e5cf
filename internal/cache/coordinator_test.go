package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCoordinator(rdb, time.Hour), mr
}

func TestLookupPopulate_RoundTrip(t *testing.T) {
	c, mr := newTestCoordinator(t)
	ctx := context.Background()

	key := Key(3, "how do I block my card?")
	if _, hit := c.Lookup(ctx, key); hit {
		t.Fatalf("expected miss on empty cache")
	}

	c.Populate(ctx, key, &AnswerPayload{
		Answer:      "Open the app and block it under Cards.",
		SourceDocID: 12,
		SourceURL:   "https://kb.example/cards",
		SourceTitle: "Blocking a card",
	})

	got, hit := c.Lookup(ctx, key)
	if !hit {
		t.Fatalf("expected hit after populate")
	}
	if got.Answer != "Open the app and block it under Cards." || got.SourceDocID != 12 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	ttl := mr.TTL(key)
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected bounded ttl, got %s", ttl)
	}
}

func TestInvalidateAll_ClearsOnlyNamespace(t *testing.T) {
	c, mr := newTestCoordinator(t)
	ctx := context.Background()

	key := Key(3, "question one")
	c.Populate(ctx, key, &AnswerPayload{Answer: "a"})
	c.Populate(ctx, Key(4, "question two"), &AnswerPayload{Answer: "b"})
	mr.Set("session:unrelated", "keep me")

	c.InvalidateAll(ctx)

	if _, hit := c.Lookup(ctx, key); hit {
		t.Fatalf("expected namespace key gone after invalidation")
	}
	if v, err := mr.Get("session:unrelated"); err != nil || v != "keep me" {
		t.Fatalf("key outside the namespace was touched: %q err=%v", v, err)
	}
}

func TestInvalidateAll_IdempotentOnEmptyNamespace(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	// No writes at all: both calls must be harmless no-ops.
	c.InvalidateAll(ctx)
	c.InvalidateAll(ctx)
}

func TestLookup_FailsOpenWhenStoreDown(t *testing.T) {
	c, mr := newTestCoordinator(t)
	ctx := context.Background()

	key := Key(1, "anything")
	mr.Close()

	if _, hit := c.Lookup(ctx, key); hit {
		t.Fatalf("store error must degrade to a miss")
	}
	// Populate and InvalidateAll must not panic or error either.
	c.Populate(ctx, key, &AnswerPayload{Answer: "x"})
	c.InvalidateAll(ctx)
}

func TestLookup_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCoordinator(t)
	ctx := context.Background()

	key := Key(2, "broken")
	mr.Set(key, "{not json")

	if _, hit := c.Lookup(ctx, key); hit {
		t.Fatalf("corrupt entry must read as a miss")
	}
}
