// Package redisstate keeps the state shared by several ingestion workers in Redis:
// per-feed circuit breaker records with their locks, and last poll times. Each
// record set is one hash keyed by name; locks are plain keys with a TTL.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by this package.
const DefaultKeyPrefix = "storywire"

// ErrMissingAddr is returned when no Redis address is configured.
var ErrMissingAddr = errors.New("REDIS_ADDR not set")

// HashClient is the subset of redis.Cmdable used by the stores.
// *redis.Client and *redis.ClusterClient satisfy it.
type HashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Config describes the Redis connection.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
	// LockTTL bounds how long a breaker lock outlives a crashed holder. It must
	// exceed the breaker timeout, which is how long an admitted fetch may hold it.
	LockTTL time.Duration
}

// DefaultLockTTL is used when REDIS_LOCK_TTL is unset or invalid.
const DefaultLockTTL = 10 * time.Minute

// LoadConfigFromEnv reads REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX
// and REDIS_LOCK_TTL.
// An empty Addr means Redis is not used.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Addr:        os.Getenv("REDIS_ADDR"),
		Password:    os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:   DefaultKeyPrefix,
		DialTimeout: 5 * time.Second,
		LockTTL:     DefaultLockTTL,
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DB = n
		}
	}
	if v := os.Getenv("REDIS_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("REDIS_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LockTTL = d
		}
	}
	return cfg
}

// Enabled reports whether an address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("NewClient: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func key(prefix, name string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":" + name
}
