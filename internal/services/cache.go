package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

const rosterKeyPrefix = "roster:"

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("roster not found in cache")

// CachedRoster is a finished run as stored in the cache.
type CachedRoster struct {
	RunID    string         `json:"run_id"`
	Solver   string         `json:"solver"`
	Roster   *models.Roster `json:"roster"`
	CachedAt time.Time      `json:"cached_at"`
}

// RosterCache stores rosters by RosterCacheKey.
type RosterCache interface {
	Get(ctx context.Context, key string) (*CachedRoster, error)
	Set(ctx context.Context, key string, entry *CachedRoster) error
}

// RosterCacheKey identifies a run's inputs: the same pool snapshot, metric
// and rules always produce the same roster.
func RosterCacheKey(poolFingerprint, metric string, rules optimizer.SquadRules) string {
	hash := md5.New()
	hash.Write([]byte(poolFingerprint))
	hash.Write([]byte{0})
	hash.Write([]byte(metric))
	hash.Write([]byte{0})
	rulesJSON, _ := json.Marshal(rules)
	hash.Write(rulesJSON)
	return fmt.Sprintf("%s:%x", metric, hash.Sum(nil))
}

// RedisRosterCache is the Redis-backed RosterCache.
type RedisRosterCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *logrus.Entry
	metrics *metrics.Manager
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisRosterCache(client *redis.Client, ttl time.Duration, logger *logrus.Entry, m *metrics.Manager) *RedisRosterCache {
	return &RedisRosterCache{client: client, ttl: ttl, logger: logger, metrics: m}
}

// Set stores entry under key for the configured TTL.
func (c *RedisRosterCache) Set(ctx context.Context, key string, entry *CachedRoster) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}

	fullKey := rosterKeyPrefix + key
	if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set roster in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"expiration": c.ttl,
		"run_id":     entry.RunID,
	}).Debug("Cached roster")
	return nil
}

// Get loads the entry under key, or ErrCacheMiss.
func (c *RedisRosterCache) Get(ctx context.Context, key string) (*CachedRoster, error) {
	fullKey := rosterKeyPrefix + key
	data, err := c.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.RecordCacheLookup("miss")
			return nil, ErrCacheMiss
		}
		c.metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("failed to get roster from cache: %w", err)
	}

	var entry CachedRoster
	if err := json.Unmarshal(data, &entry); err != nil {
		c.metrics.RecordCacheLookup("error")
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}
	c.metrics.RecordCacheLookup("hit")

	c.logger.WithFields(logrus.Fields{
		"cache_key": fullKey,
		"run_id":    entry.RunID,
	}).Debug("Retrieved roster from cache")
	return &entry, nil
}

// Flush removes every cached roster and returns how many were removed.
func (c *RedisRosterCache) Flush(ctx context.Context) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, rosterKeyPrefix+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan roster keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete roster keys: %w", err)
			}
			deleted += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	c.logger.WithField("deleted_keys", deleted).Debug("Flushed roster cache")
	return deleted, nil
}

// Ping reports whether Redis is reachable.
func (c *RedisRosterCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
