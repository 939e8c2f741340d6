package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sauna-briefing/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis creates a Redis client from configuration.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// SearchCache stores search answers per query and ISO week so re-running
// gather in the same week does not pay for the same searches twice.
// A nil *SearchCache is valid and caches nothing.
type SearchCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSearchCache(rdb *redis.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &SearchCache{rdb: rdb, ttl: ttl}
}

func weekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func searchKey(query string, at time.Time) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("sauna:search:%s:%s", weekKey(at), hex.EncodeToString(sum[:8]))
}

func searchPattern() string {
	return "sauna:search:*"
}

// Get loads a cached value into v. It reports false on a miss.
func (c *SearchCache) Get(ctx context.Context, query string, at time.Time, v any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	b, err := c.rdb.Get(ctx, searchKey(query, at)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v for the query in the week of at.
func (c *SearchCache) Set(ctx context.Context, query string, at time.Time, v any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, searchKey(query, at), b, c.ttl).Err()
}

// Clear deletes every cached search answer and returns how many keys were removed.
func (c *SearchCache) Clear(ctx context.Context) (int, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	var n int
	iter := c.rdb.Scan(ctx, 0, searchPattern(), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}
