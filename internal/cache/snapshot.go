package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/config"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
)

const (
	snapshotKeyPrefix  = "rawmat:snapshot"
	defaultSnapshotTTL = time.Minute
	invalidateBatch    = 100
)

// SnapshotCache memoises policy snapshots per material and parameters.
// Any mutation of a material's records must invalidate that material.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, material string, params policy.Parameters) (*policy.Snapshot, bool, error)
	SetSnapshot(ctx context.Context, material string, params policy.Parameters, snap *policy.Snapshot) error
	InvalidateMaterial(ctx context.Context, material string) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

// RedisSnapshotCache stores snapshots as JSON with a TTL.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSnapshotCache struct{}

// NewSnapshotCache connects to Redis when caching is enabled, otherwise it
// returns a cache that never hits.
func NewSnapshotCache(cfg config.CacheConfig) (SnapshotCache, error) {
	if !cfg.Enabled {
		return &noopSnapshotCache{}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewRedisSnapshotCache(client, time.Duration(cfg.SnapshotTTLSeconds)*time.Second), nil
}

// NewRedisSnapshotCache wraps an existing client. The cache owns the client
// and closes it on Close.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func NewNoopSnapshotCache() SnapshotCache {
	return &noopSnapshotCache{}
}

// redisOptions prefers REDIS_URL and falls back to host, port and DB.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func (c *RedisSnapshotCache) GetSnapshot(ctx context.Context, material string, params policy.Parameters) (*policy.Snapshot, bool, error) {
	payload, err := c.client.Get(ctx, snapshotKey(material, params)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get snapshot: %w", err)
	}

	var snap policy.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, fmt.Errorf("decode cached snapshot: %w", err)
	}

	return &snap, true, nil
}

func (c *RedisSnapshotCache) SetSnapshot(ctx context.Context, material string, params policy.Parameters, snap *policy.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := c.client.Set(ctx, snapshotKey(material, params), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// InvalidateMaterial drops the snapshots of one material for every
// parameter combination.
func (c *RedisSnapshotCache) InvalidateMaterial(ctx context.Context, material string) error {
	return c.deleteMatching(ctx, materialKeyPrefix(material)+"*")
}

func (c *RedisSnapshotCache) InvalidateAll(ctx context.Context) error {
	return c.deleteMatching(ctx, snapshotKeyPrefix+":*")
}

func (c *RedisSnapshotCache) Close() error {
	return c.client.Close()
}

// deleteMatching walks the keyspace with SCAN and deletes each batch, so
// large keyspaces never block Redis the way KEYS would.
func (c *RedisSnapshotCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, invalidateBatch).Iterator()

	batch := make([]string, 0, invalidateBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", pattern, err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == invalidateBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return flush()
}

func (n *noopSnapshotCache) GetSnapshot(context.Context, string, policy.Parameters) (*policy.Snapshot, bool, error) {
	return nil, false, nil
}

func (n *noopSnapshotCache) SetSnapshot(context.Context, string, policy.Parameters, *policy.Snapshot) error {
	return nil
}

func (n *noopSnapshotCache) InvalidateMaterial(context.Context, string) error { return nil }

func (n *noopSnapshotCache) InvalidateAll(context.Context) error { return nil }

func (n *noopSnapshotCache) Close() error { return nil }

// materialKeyPrefix hashes the normalised material name so arbitrary
// user-supplied names stay safe inside a SCAN pattern.
func materialKeyPrefix(material string) string {
	normalized := strings.ToLower(strings.TrimSpace(material))
	hash := sha1.Sum([]byte(normalized))
	return fmt.Sprintf("%s:%s:", snapshotKeyPrefix, hex.EncodeToString(hash[:]))
}

func snapshotKey(material string, params policy.Parameters) string {
	return fmt.Sprintf("%slt=%d|w=%d", materialKeyPrefix(material), params.LeadTimeDays, params.Window())
}

var (
	_ SnapshotCache = (*RedisSnapshotCache)(nil)
	_ SnapshotCache = (*noopSnapshotCache)(nil)
)
