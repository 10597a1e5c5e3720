package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetStockCount caches the available instance count for a product code.
// The database stays the source of truth; the cache only feeds listings.
func (c *Client) SetStockCount(ctx context.Context, code string, count int) error {
	return c.rdb.Set(ctx, stockKey(code), count, 0).Err()
}

// GetStockCount reads the cached count. The second return reports a hit.
func (c *Client) GetStockCount(ctx context.Context, code string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, stockKey(code)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock count for %s: %w", code, err)
	}
	return count, true, nil
}

// IncrStockCount shifts the cached count after a restock or a commit
func (c *Client) IncrStockCount(ctx context.Context, code string, delta int) error {
	return c.rdb.IncrBy(ctx, stockKey(code), int64(delta)).Err()
}

// DeleteStockCount drops the cached count when a product is removed
func (c *Client) DeleteStockCount(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, stockKey(code)).Err()
}

// AcquireLock acquires a named lock with a TTL, non-blocking
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a named lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

const maintenanceKey = "maintenance"

// SetMaintenance switches maintenance mode on or off
func (c *Client) SetMaintenance(ctx context.Context, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	return c.rdb.Set(ctx, maintenanceKey, val, 0).Err()
}

// IsMaintenance reports whether maintenance mode is active
func (c *Client) IsMaintenance(ctx context.Context) (bool, error) {
	val, err := c.rdb.Get(ctx, maintenanceKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// ToggleMaintenance flips maintenance mode and returns the new state
func (c *Client) ToggleMaintenance(ctx context.Context) (bool, error) {
	on, err := c.IsMaintenance(ctx)
	if err != nil {
		return false, err
	}
	if err := c.SetMaintenance(ctx, !on); err != nil {
		return false, err
	}
	return !on, nil
}

func stockKey(code string) string {
	return fmt.Sprintf("stock:%s", code)
}
