// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

const (
	familyPoolKey = "match:pool:families"
	batchStateKey = "match:batch:state"
)

// Cache holds the candidate pool and the batch run snapshot in Redis. All
// read paths degrade silently: a cache failure is logged and treated as a
// miss so matching keeps working against Postgres alone.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: log}
}

// GetFamilyPool returns the cached eligible-family pool, or ok=false on a
// miss or any cache error.
func (c *Cache) GetFamilyPool(ctx context.Context) ([]models.Family, bool) {
	data, err := c.client.Get(ctx, familyPoolKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("family pool cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	var families []models.Family
	if err := json.Unmarshal(data, &families); err != nil {
		c.logger.Warn("family pool cache corrupt, dropping", map[string]interface{}{
			"error": err.Error(),
		})
		c.client.Del(ctx, familyPoolKey)
		return nil, false
	}
	return families, true
}

// SetFamilyPool caches the eligible-family pool for the configured TTL.
func (c *Cache) SetFamilyPool(ctx context.Context, families []models.Family) {
	data, err := json.Marshal(families)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, familyPoolKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("family pool cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// InvalidateFamilyPool drops the cached pool. Called when a family record
// changes so the next run sees fresh eligibility.
func (c *Cache) InvalidateFamilyPool(ctx context.Context) {
	if err := c.client.Del(ctx, familyPoolKey).Err(); err != nil {
		c.logger.Warn("family pool cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// SaveBatchState snapshots the batch run state. The snapshot has no TTL;
// it is overwritten by the next run and consulted on startup to detect a
// run that died mid-flight.
func (c *Cache) SaveBatchState(ctx context.Context, state models.BatchRunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, batchStateKey, data, 0).Err()
}

// LoadBatchState returns the last snapshot, or (nil, nil) when none exists.
func (c *Cache) LoadBatchState(ctx context.Context) (*models.BatchRunState, error) {
	data, err := c.client.Get(ctx, batchStateKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state models.BatchRunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
