package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis so they survive restarts and
// can be shared across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "session:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) Save(ctx context.Context, tokenHash string, rec Record) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := s.client.Set(ctx, s.key(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
