package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "canvass:conversation:"

// RedisStates stores conversation states as JSON with a Redis TTL, so they
// survive restarts and expire without a sweeper.
type RedisStates struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStates parses a redis:// URL and pings the server.
func NewRedisStates(ctx context.Context, url string, ttl time.Duration) (*RedisStates, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStatesWithClient(client, ttl), nil
}

func NewRedisStatesWithClient(client *redis.Client, ttl time.Duration) *RedisStates {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStates{client: client, ttl: ttl}
}

func (r *RedisStates) Get(ctx context.Context, threadID string) (State, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("get conversation %s: %w", threadID, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("decode conversation %s: %w", threadID, err)
	}
	return st, true, nil
}

func (r *RedisStates) Put(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", st.ThreadID, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+st.ThreadID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set conversation %s: %w", st.ThreadID, err)
	}
	return nil
}

func (r *RedisStates) Delete(ctx context.Context, threadID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+threadID).Err(); err != nil {
		return fmt.Errorf("delete conversation %s: %w", threadID, err)
	}
	return nil
}

func (r *RedisStates) Close() error {
	return r.client.Close()
}
