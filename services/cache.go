package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheManager wraps the optional Redis cache. A nil manager (or one built
// from an empty REDIS_URL) is valid and turns every operation into a no-op,
// so callers never branch on cache availability.
type CacheManager struct {
	client *redis.Client
}

// NewCacheManager connects to redisURL, or returns a disabled manager when
// the URL is empty or the server is unreachable. Cache problems must never
// take the service down.
func NewCacheManager(redisURL string) *CacheManager {
	if redisURL == "" {
		log.Println("⚠️ REDIS_URL not set, caching disabled")
		return &CacheManager{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("⚠️ Invalid REDIS_URL (%v), caching disabled", err)
		return &CacheManager{}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unreachable (%v), caching disabled", err)
		return &CacheManager{}
	}

	log.Println("✅ Redis cache connected")
	return &CacheManager{client: client}
}

// Enabled reports whether a live Redis connection backs this manager.
func (c *CacheManager) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON loads key into dest. Returns false on miss, decode failure, or any
// Redis error; errors are logged and swallowed.
func (c *CacheManager) GetJSON(key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("⚠️ Cache get %s failed: %v", key, err)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("⚠️ Cache decode %s failed: %v", key, err)
		return false
	}
	return true
}

// SetJSON stores value under key with a TTL. Failures are logged and ignored.
func (c *CacheManager) SetJSON(key string, value interface{}, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("⚠️ Cache encode %s failed: %v", key, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Printf("⚠️ Cache set %s failed: %v", key, err)
	}
}

// Delete removes keys. Used to invalidate after profile writes.
func (c *CacheManager) Delete(keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("⚠️ Cache delete failed: %v", err)
	}
}
