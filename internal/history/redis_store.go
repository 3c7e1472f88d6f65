package history

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "jarvis:conversation"

// RedisStore keeps the log in a single Redis list, newest record last.
type RedisStore struct {
	client   *redis.Client
	key      string
	capacity int
	now      func() time.Time
}

// NewRedisStore connects to url (redis://...) and checks the connection.
func NewRedisStore(ctx context.Context, url, key string, capacity int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedisStore(client, key, capacity), nil
}

func newRedisStore(client *redis.Client, key string, capacity int) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{
		client:   client,
		key:      key,
		capacity: capacity,
		now:      time.Now,
	}
}

func (r *RedisStore) Append(ctx context.Context, userInput, response string) error {
	recs := pair(r.now(), userInput, response)
	vals := make([]any, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		vals = append(vals, data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key, vals...)
		pipe.LTrim(ctx, r.key, int64(-r.capacity), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *RedisStore) Recent(ctx context.Context, k int) ([]Record, error) {
	start := int64(0)
	if k > 0 {
		start = int64(-k)
	}

	raw, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for _, s := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			log.Warn("Skipping malformed history record", "key", r.key, "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("history length: %w", err)
	}
	return int(n), nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
