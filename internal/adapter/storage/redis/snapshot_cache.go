package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// SnapshotCache implements ports.LocalCache on a device-local Redis.
// Entries never expire; each (scope, key) holds the latest snapshot.
type SnapshotCache struct {
	client *goredis.Client
	prefix string
}

// NewSnapshotCache creates a snapshot cache under the given namespace.
func NewSnapshotCache(client *goredis.Client, namespace string) *SnapshotCache {
	if namespace == "" {
		namespace = "payquest"
	}
	return &SnapshotCache{
		client: client,
		prefix: namespace + ":",
	}
}

func (c *SnapshotCache) key(scope, key string) string {
	return c.prefix + scope + ":" + key
}

// Load decodes the stored snapshot into dest. Returns false if nothing is stored.
func (c *SnapshotCache) Load(ctx context.Context, scope, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, c.key(scope, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis snapshot get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return true, nil
}

// Store replaces the snapshot for (scope, key).
func (c *SnapshotCache) Store(ctx context.Context, scope, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(scope, key), b, 0).Err(); err != nil {
		return fmt.Errorf("redis snapshot set %s: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot for (scope, key).
func (c *SnapshotCache) Delete(ctx context.Context, scope, key string) error {
	if err := c.client.Del(ctx, c.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis snapshot del %s: %w", key, err)
	}
	return nil
}
