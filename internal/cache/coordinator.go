package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnswerPayload is the serialized AI answer stored under a cache key.
// SourceDocID 0 means the AI answered without a source document.
type AnswerPayload struct {
	Answer      string `json:"answer"`
	SourceDocID uint64 `json:"source_document_id"`
	SourceURL   string `json:"source_url"`
	SourceTitle string `json:"source_title"`
}

// Coordinator is the look-aside answer cache. Every call fails open:
// a cache-store error degrades to a miss or a skipped write, never to
// a failed consultation.
type Coordinator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCoordinator(rdb *redis.Client, ttl time.Duration) *Coordinator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Coordinator{rdb: rdb, ttl: ttl}
}

// Lookup returns the cached payload for key, or (nil, false) on a miss.
// Store errors and corrupt entries are logged and treated as misses.
func (c *Coordinator) Lookup(ctx context.Context, key string) (*AnswerPayload, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[AnswerCache] lookup failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	var p AnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("[AnswerCache] corrupt entry key=%s err=%v", key, err)
		return nil, false
	}
	return &p, true
}

// Populate writes the payload under key with the configured TTL.
// Fire-and-forget: the answer was already persisted, so a failed write
// only costs a future cache miss.
func (c *Coordinator) Populate(ctx context.Context, key string, p *AnswerPayload) {
	raw, err := json.Marshal(p)
	if err != nil {
		log.Printf("[AnswerCache] marshal failed key=%s err=%v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[AnswerCache] populate failed key=%s err=%v", key, err)
	}
}

// InvalidateAll removes every key in the answer namespace. Called after
// any knowledge-base mutation commits; a single document edit can shift
// answer relevance for many cached questions, so the whole namespace
// goes. Idempotent, and a no-op when nothing is cached.
func (c *Coordinator) InvalidateAll(ctx context.Context) {
	keys, err := c.rdb.Keys(ctx, Namespace+"*").Result()
	if err != nil {
		log.Printf("[AnswerCache] invalidate scan failed err=%v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[AnswerCache] invalidate delete failed err=%v", err)
		return
	}
	log.Printf("[AnswerCache] cleared %d cached answers", len(keys))
}
