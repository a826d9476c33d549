package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/metrics"
)

// Cache fronts read-heavy API state with Redis, falling back to an
// in-process store with a local pubsub hub when Redis is unreachable.
type Cache struct {
	client *redis.Client
	memory *memoryStore
	hub    *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewCache(addr string, logger *zap.SugaredLogger, metrics *metrics.Metrics) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Warnw("Redis unavailable; using in-memory cache with local pubsub", "error", err)
		}
		return &Cache{
			memory:  newMemoryStore(),
			hub:     NewPubSubHub(),
			logger:  logger,
			metrics: metrics,
		}, nil
	}

	return &Cache{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Cache key prefixes
const (
	KeyVaultState = "ltv:vault:state"
	KeyQueueState = "ltv:queue:state"
	KeyPrice      = "ltv:price"
	KeyPosition   = "ltv:position"
)

// ChannelEvents is the pubsub channel carrying accounting event envelopes.
const ChannelEvents = "ltv:events"

var ErrCacheMiss = fmt.Errorf("cache miss")

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				if c.metrics != nil {
					c.metrics.RecordCacheMiss(ctx, key)
				}
				return ErrCacheMiss
			}
			if c.logger != nil {
				c.logger.Errorw("Cache get error", "key", key, "error", err)
			}
			return fmt.Errorf("cache get error: %w", err)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheHit(ctx, key)
		}
		if err := json.Unmarshal([]byte(val), dest); err != nil {
			return fmt.Errorf("cache unmarshal error: %w", err)
		}
		return nil
	}

	data, ok := c.memory.get(key)
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(ctx, key)
		}
		return ErrCacheMiss
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Cache set error", "key", key, "error", err)
			}
			return fmt.Errorf("cache set error: %w", err)
		}
		return nil
	}
	c.memory.set(key, data, ttl)
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if c.client != nil {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Cache delete error", "keys", keys, "error", err)
			}
			return fmt.Errorf("cache delete error: %w", err)
		}
		return nil
	}
	c.memory.del(keys...)
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client != nil {
		count, err := c.client.Exists(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("cache exists error: %w", err)
		}
		return count > 0, nil
	}
	return c.memory.exists(key), nil
}

// Vault and queue snapshots refresh quickly; short TTLs keep reads fresh
// without hammering the engine on every request.

func (c *Cache) GetVaultState(ctx context.Context, dest interface{}) error {
	return c.Get(ctx, KeyVaultState, dest)
}

func (c *Cache) SetVaultState(ctx context.Context, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, KeyVaultState, value, ttl)
}

func (c *Cache) GetQueueState(ctx context.Context, dest interface{}) error {
	return c.Get(ctx, KeyQueueState, dest)
}

func (c *Cache) SetQueueState(ctx context.Context, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, KeyQueueState, value, ttl)
}

func (c *Cache) GetPosition(ctx context.Context, address string, dest interface{}) error {
	return c.Get(ctx, fmt.Sprintf("%s:%s", KeyPosition, address), dest)
}

func (c *Cache) SetPosition(ctx context.Context, address string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, fmt.Sprintf("%s:%s", KeyPosition, address), value, ttl)
}

func (c *Cache) InvalidatePosition(ctx context.Context, address string) error {
	return c.Delete(ctx, fmt.Sprintf("%s:%s", KeyPosition, address))
}

func (c *Cache) GetPrice(ctx context.Context, dest interface{}) error {
	return c.Get(ctx, KeyPrice, dest)
}

func (c *Cache) SetPrice(ctx context.Context, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, KeyPrice, value, ttl)
}

// Pub/Sub for real-time updates.

func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Publish error", "channel", channel, "error", err)
			}
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	if c.hub != nil {
		c.hub.Publish(channel, string(data))
	}
	return nil
}

// Subscribe returns a Redis subscription, or nil when running in-memory;
// use SubscribeLocal in that case.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if c.client != nil {
		return c.client.Subscribe(ctx, channels...)
	}
	return nil
}

// SubscribeLocal subscribes on the in-process hub.
func (c *Cache) SubscribeLocal(ctx context.Context, channels ...string) *Subscription {
	if c.hub != nil {
		return c.hub.Subscribe(ctx, channels...)
	}
	return nil
}

// IsInMemoryMode reports whether the cache runs without Redis.
func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if c.client != nil {
		return c.client.Ping(ctx).Err()
	}
	// In-memory mode considered healthy
	return nil
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
