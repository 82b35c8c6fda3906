package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stagehub/internship-api/internal/models"
)

const requestListKeyPrefix = "requests:list:"

type cacheRecorder interface {
	RecordCacheOperation(hit bool)
}

// RequestListCache stores rendered request listings in Redis for a short TTL.
// Listings are invalidated wholesale on every write, so a stale entry lives at
// most one TTL window.
type RequestListCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics cacheRecorder
	logger  *zap.Logger
}

type cachedList struct {
	Items []models.Request `json:"items"`
	Total int              `json:"total"`
}

// NewRequestListCache constructs the cache. A nil client disables caching at
// the call sites, so callers can wire it unconditionally.
func NewRequestListCache(client *redis.Client, ttl time.Duration, metrics cacheRecorder, logger *zap.Logger) *RequestListCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RequestListCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// GetList returns a cached listing when present and fresh.
func (c *RequestListCache) GetList(ctx context.Context, key string) ([]models.Request, int, bool) {
	if c == nil || c.client == nil {
		return nil, 0, false
	}
	raw, err := c.client.Get(ctx, requestListKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("request list cache read failed", zap.Error(err))
		}
		c.record(false)
		return nil, 0, false
	}
	var entry cachedList
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.record(false)
		return nil, 0, false
	}
	c.record(true)
	return entry.Items, entry.Total, true
}

// SetList stores a listing under the key for the configured TTL.
func (c *RequestListCache) SetList(ctx context.Context, key string, items []models.Request, total int) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(cachedList{Items: items, Total: total})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, requestListKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("request list cache write failed", zap.Error(err))
	}
}

// Invalidate drops every cached listing. Called after each workflow write.
func (c *RequestListCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, requestListKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("request list cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("request list cache invalidation failed", zap.Error(err))
	}
}

func (c *RequestListCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(hit)
	}
}
