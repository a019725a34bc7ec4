package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/thereayou/teamchat/pkg/log"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (*Result, error)
	Set(ctx context.Context, key string, result *Result, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache подключается к Redis по URL
func NewRedisCache(ctx context.Context, redisURL, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Result, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &result, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Cached кэширует успешные результаты и схлопывает одинаковые параллельные запросы
type Cached struct {
	next  Searcher
	cache Cache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCached(next Searcher, cache Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

func (c *Cached) Search(ctx context.Context, query string, count int) Result {
	key := fmt.Sprintf("%d:%s", count, normalize(query))

	v, _, _ := c.sf.Do(key, func() (any, error) {
		if c.cache != nil {
			cached, err := c.cache.Get(ctx, key)
			if err == nil {
				return *cached, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				log.Ctx(ctx).Warn().Err(err).Msg("search cache get error")
			}
		}

		res := c.next.Search(ctx, query, count)
		if res.OK && c.cache != nil {
			if err := c.cache.Set(ctx, key, &res, c.ttl); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("search cache set error")
			}
		}
		return res, nil
	})

	return v.(Result)
}

func normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
