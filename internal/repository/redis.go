package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"line-memo-relay/internal/domain"
)

// deleteAtScript removes the element at a 1-based position by overwriting it
// with a unique tombstone and then removing the tombstone.
var deleteAtScript = redis.NewScript(`
local n = redis.call('LLEN', KEYS[1])
local i = tonumber(ARGV[1])
if i == nil or i < 1 or i > n then
	return 0
end
redis.call('LSET', KEYS[1], i - 1, ARGV[2])
redis.call('LREM', KEYS[1], 1, ARGV[2])
return 1
`)

// RedisStore keeps each list in a Redis list and each mode in a plain key.
type RedisStore struct {
	client   *redis.Client
	newToken func() string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("repository: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("repository: ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:   client,
		newToken: func() string { return "\x00deleted:" + uuid.NewString() },
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisListKey(userID string, kind domain.ListKind) string {
	return fmt.Sprintf("list:%s:%s", userID, kind)
}

func redisModeKey(userID string) string {
	return fmt.Sprintf("mode:%s", userID)
}

func (s *RedisStore) Append(ctx context.Context, userID string, kind domain.ListKind, text string) error {
	if !kind.Valid() {
		return fmt.Errorf("repository: Append: unsupported list kind %q", kind)
	}
	if err := s.client.RPush(ctx, redisListKey(userID, kind), text).Err(); err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string, kind domain.ListKind) ([]string, error) {
	entries, err := s.client.LRange(ctx, redisListKey(userID, kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: List: %w", err)
	}
	return entries, nil
}

func (s *RedisStore) DeleteAt(ctx context.Context, userID string, kind domain.ListKind, index int) error {
	if index < 1 {
		return domain.ErrIndexOutOfRange
	}
	n, err := deleteAtScript.Run(ctx, s.client, []string{redisListKey(userID, kind)}, index, s.newToken()).Int64()
	if err != nil {
		return fmt.Errorf("repository: DeleteAt: %w", err)
	}
	if n == 0 {
		return domain.ErrIndexOutOfRange
	}
	return nil
}

func (s *RedisStore) GetMode(ctx context.Context, userID string) (domain.UserMode, error) {
	raw, err := s.client.Get(ctx, redisModeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ModeIdle, nil
	}
	if err != nil {
		return domain.ModeIdle, fmt.Errorf("repository: GetMode: %w", err)
	}
	mode, err := domain.ParseUserMode(raw)
	if err != nil {
		return domain.ModeIdle, fmt.Errorf("repository: GetMode: %w", err)
	}
	return mode, nil
}

func (s *RedisStore) SetMode(ctx context.Context, userID string, mode domain.UserMode) error {
	if mode == domain.ModeIdle {
		return s.ClearMode(ctx, userID)
	}
	if err := s.client.Set(ctx, redisModeKey(userID), mode.String(), 0).Err(); err != nil {
		return fmt.Errorf("repository: SetMode: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearMode(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, redisModeKey(userID)).Err(); err != nil {
		return fmt.Errorf("repository: ClearMode: %w", err)
	}
	return nil
}
