package actionlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/logging"
)

const flowCacheKeyPrefix = "concord:flow:"

// CachedLog wraps a Log with a Redis-backed cache of each flow's
// completion list, bounded by ttl. It is an optimization only: a cache
// miss or a Redis outage falls through to the wrapped Log transparently
// (§4.1.1).
type CachedLog struct {
	inner  Log
	client *redis.Client
	ttl    time.Duration
}

// NewCachedLog wraps inner with a Redis cache. client may be nil, in
// which case CachedLog behaves as a pass-through (useful for tests that
// want the interface without a Redis dependency).
func NewCachedLog(inner Log, client *redis.Client, ttl time.Duration) *CachedLog {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedLog{inner: inner, client: client, ttl: ttl}
}

func (c *CachedLog) Append(ctx context.Context, comp model.Completion, parent string) (model.Record, error) {
	rec, err := c.inner.Append(ctx, comp, parent)
	if err != nil {
		return rec, err
	}
	c.invalidate(ctx, comp.Flow)
	return rec, nil
}

func (c *CachedLog) AppendInvocation(ctx context.Context, inv model.Invocation, parent string) (model.Record, error) {
	rec, err := c.inner.AppendInvocation(ctx, inv, parent)
	if err != nil {
		return rec, err
	}
	c.invalidate(ctx, inv.Flow)
	return rec, nil
}

func (c *CachedLog) CompletionsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	if c.client == nil {
		return c.inner.CompletionsForFlow(ctx, flow)
	}

	key := flowCacheKeyPrefix + flow
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var recs []model.Record
		if jsonErr := json.Unmarshal(data, &recs); jsonErr == nil {
			return recs, nil
		}
	} else if err != redis.Nil {
		logging.Op().Warn("flow cache read failed, falling back to log", "flow", flow, "error", err)
	}

	recs, err := c.inner.CompletionsForFlow(ctx, flow)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(recs); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.Op().Warn("flow cache write failed", "flow", flow, "error", err)
		}
	}
	return recs, nil
}

func (c *CachedLog) RecordsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	return c.inner.RecordsForFlow(ctx, flow)
}

func (c *CachedLog) RecordSyncFiring(ctx context.Context, matchedIDs []string, syncName string) error {
	return c.inner.RecordSyncFiring(ctx, matchedIDs, syncName)
}

func (c *CachedLog) HasFired(ctx context.Context, matchedIDs []string, syncName string) (bool, error) {
	return c.inner.HasFired(ctx, matchedIDs, syncName)
}

func (c *CachedLog) RecordFiringEdge(ctx context.Context, triggerID, syncName, invocationID string) error {
	return c.inner.RecordFiringEdge(ctx, triggerID, syncName, invocationID)
}

func (c *CachedLog) EdgesForTrigger(ctx context.Context, triggerID string) ([]TriggerEdge, error) {
	return c.inner.EdgesForTrigger(ctx, triggerID)
}

func (c *CachedLog) invalidate(ctx context.Context, flow string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, flowCacheKeyPrefix+flow).Err(); err != nil && err != redis.Nil {
		logging.Op().Warn("flow cache invalidation failed", "flow", flow, "error", err)
	}
}
