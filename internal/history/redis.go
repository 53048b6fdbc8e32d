package history

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/twpayne/go-lowlying/internal/config"
)

// A RedisStore is a Store backed by a Redis hash of search counts and a key
// holding the last searched village.
type RedisStore struct {
	client    *redis.Client
	countsKey string
	lastKey   string
}

// OpenRedisStore connects to the Redis server described by cfg.
func OpenRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStore(client, cfg.Prefix), nil
}

// NewRedisStore returns a new RedisStore using client with keys prefixed by
// prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		countsKey: prefix + "search_counts",
		lastKey:   prefix + "last_searched",
	}
}

func (s *RedisStore) Persist(ctx context.Context, village string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.countsKey, village, 1)
		pipe.Set(ctx, s.lastKey, village, 0)
		return nil
	})
	return err
}

func (s *RedisStore) Fetch(ctx context.Context) ([]Entry, error) {
	var countsCmd *redis.MapStringStringCmd
	var lastCmd *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		countsCmd = pipe.HGetAll(ctx, s.countsKey)
		lastCmd = pipe.Get(ctx, s.lastKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	counts, err := countsCmd.Result()
	if err != nil {
		return nil, err
	}
	last, err := lastCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	entries := make([]Entry, 0, len(counts))
	for village, value := range counts {
		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Village: village,
			Count:   count,
			Last:    village == last,
		})
	}
	sortEntries(entries)
	return entries, nil
}

func (s *RedisStore) LastSearched(ctx context.Context) (string, bool, error) {
	switch last, err := s.client.Get(ctx, s.lastKey).Result(); {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	default:
		return last, true, nil
	}
}

// Clear deletes s's keys.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.countsKey, s.lastKey).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
