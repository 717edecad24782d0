package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed [Store]. Entries survive process restarts and
// are shared by every replica pointing at the same Redis; tag generations are
// plain integer keys advanced with INCR.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store on an existing client. Keys are written under
// prefix (for example "linksquirrel:").
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// DialRedis creates a client for addr and verifies it with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *RedisStore) entryKey(key string) string { return s.prefix + "entry:" + key }
func (s *RedisStore) tagKey(tag string) string   { return s.prefix + "tag:" + tag }

// Load implements [Store]. The entry and the tag generation are read in one
// round trip.
func (s *RedisStore) Load(ctx context.Context, key, tag string) ([]byte, bool, uint64, error) {
	vals, err := s.rdb.MGet(ctx, s.entryKey(key), s.tagKey(tag)).Result()
	if err != nil {
		return nil, false, 0, err
	}

	var gen uint64
	if g, ok := vals[1].(string); ok {
		gen, err = strconv.ParseUint(g, 10, 64)
		if err != nil {
			return nil, false, 0, err
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, false, gen, nil
	}
	return []byte(raw), true, gen, nil
}

// Save implements [Store].
func (s *RedisStore) Save(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.entryKey(key), raw, ttl).Err()
}

// Bump implements [Store].
func (s *RedisStore) Bump(ctx context.Context, tag string) (uint64, error) {
	n, err := s.rdb.Incr(ctx, s.tagKey(tag)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
