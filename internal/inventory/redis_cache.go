package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/solshop/backend/internal/domain"
)

// RedisCache implements Cache on a shared Redis instance so every service
// replica sees the same counters. Records never expire; the periodic flush
// and the bootstrap seed keep them aligned with the durable store.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, itemID int64) (*domain.InventoryRecord, error) {
	data, err := c.client.Get(ctx, recordKey(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record domain.InventoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal inventory record failed: %w", err)
	}
	return &record, nil
}

func (c *RedisCache) GetAll(ctx context.Context, itemIDs []int64) (map[int64]*domain.InventoryRecord, error) {
	if len(itemIDs) == 0 {
		return map[int64]*domain.InventoryRecord{}, nil
	}

	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = recordKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	result := make(map[int64]*domain.InventoryRecord, len(itemIDs))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // missing key
		}
		var record domain.InventoryRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("unmarshal inventory record for item %d failed: %w", itemIDs[i], err)
		}
		result[itemIDs[i]] = &record
	}
	return result, nil
}

func (c *RedisCache) Put(ctx context.Context, record *domain.InventoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal inventory record failed: %w", err)
	}
	if err := c.client.Set(ctx, recordKey(record.ItemID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func recordKey(itemID int64) string {
	return fmt.Sprintf("inventory:%d", itemID)
}
