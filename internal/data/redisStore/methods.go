package redisStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (s *Store) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, expiration).Result()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// CompareResult is the outcome of CompareAndDelete.
type CompareResult int

const (
	CompareAbsent   CompareResult = -1
	CompareMismatch CompareResult = 0
	CompareMatched  CompareResult = 1
)

var compareAndDeleteScript = redis.NewScript(`
	local current = redis.call("get", KEYS[1])
	if not current then
		return -1
	end
	if current == ARGV[1] then
		redis.call("del", KEYS[1])
		return 1
	end
	return 0
`)

// CompareAndDelete deletes key only when it holds expected, in one atomic step.
func (s *Store) CompareAndDelete(ctx context.Context, key string, expected string) (CompareResult, error) {
	res, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return CompareAbsent, fmt.Errorf("compare and delete %s: %w", key, err)
	}
	return CompareResult(res), nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ReleaseIfOwner deletes a lock key only while it is still held by owner.
func (s *Store) ReleaseIfOwner(ctx context.Context, key string, owner string) error {
	_, err := releaseScript.Run(ctx, s.client, []string{key}, owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// ExtendIfOwner resets the TTL of key while it is still held by owner.
// It reports false when the key expired or now belongs to someone else.
func (s *Store) ExtendIfOwner(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, s.client, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("extend %s: %w", key, err)
	}
	return res == 1, nil
}
