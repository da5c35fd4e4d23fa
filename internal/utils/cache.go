package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"fmt"           // Key formatting
	"time"          // Time durations

	"bank_system/internal/domain" // Transfer details

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
)

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb redis.Cmdable, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb redis.Cmdable, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb redis.Cmdable, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// HistoryCache caches each user's transfer history.
// A nil *HistoryCache is valid and caches nothing. Redis errors are logged and treated as misses.
type HistoryCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewHistoryCache returns nil when rdb is nil, which disables caching
func NewHistoryCache(rdb redis.Cmdable, ttl time.Duration) *HistoryCache {
	if rdb == nil {
		return nil
	}
	return &HistoryCache{rdb: rdb, ttl: ttl}
}

// HistoryKey is the Redis key holding userID's history
func HistoryKey(userID string) string {
	return fmt.Sprintf("transfers:%s", userID)
}

// Get returns the cached history of userID
func (h *HistoryCache) Get(ctx context.Context, userID string) ([]domain.TransferDetail, bool) {
	if h == nil {
		return nil, false
	}
	var list []domain.TransferDetail
	found, err := GetCache(ctx, h.rdb, HistoryKey(userID), &list)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("History cache read failed")
		return nil, false
	}
	return list, found
}

// Set stores userID's history
func (h *HistoryCache) Set(ctx context.Context, userID string, list []domain.TransferDetail) {
	if h == nil {
		return
	}
	if err := SetCache(ctx, h.rdb, HistoryKey(userID), list, h.ttl); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("History cache write failed")
	}
}

// Invalidate drops the cached history of every given user
func (h *HistoryCache) Invalidate(ctx context.Context, userIDs ...string) {
	if h == nil {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, HistoryKey(id))
	}
	if err := DeleteCache(ctx, h.rdb, keys...); err != nil {
		logrus.WithFields(logrus.Fields{"users": userIDs, "error": err.Error()}).Warn("History cache invalidation failed")
	}
}
