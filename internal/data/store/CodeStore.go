package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/StudyMentor/internal/data/redisStore"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type CodeCheck int

const (
	CodeAbsent CodeCheck = iota
	CodeMismatch
	CodeMatched
)

// RedisCodeStore keeps one-time verification codes with a server-side TTL.
type RedisCodeStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisCodeStore(store *redisStore.Store) *RedisCodeStore {
	return &RedisCodeStore{store: store, logger: logger_i.NewLogger("CodeStore")}
}

func (s *RedisCodeStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl)
}

// Get and Delete complete the put/get/delete one-time code contract.
// The verification flow itself only calls Put and ConsumeIfMatch.
func (s *RedisCodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.store.Get(ctx, key)
	if s.store.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, key string) error {
	return s.store.Del(ctx, key)
}

func (s *RedisCodeStore) ConsumeIfMatch(ctx context.Context, key, value string) (CodeCheck, error) {
	res, err := s.store.CompareAndDelete(ctx, key, value)
	if err != nil {
		s.logger.WithTrace(ctx).Error("code check failed", "error", err)
		return CodeAbsent, err
	}
	switch res {
	case redisStore.CompareMatched:
		return CodeMatched, nil
	case redisStore.CompareMismatch:
		return CodeMismatch, nil
	default:
		return CodeAbsent, nil
	}
}

type memCode struct {
	value     string
	expiresAt time.Time
}

// InMemoryCodeStore is the fallback when Redis is offline. Expiry is checked lazily.
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memCode
	now   func() time.Time
}

func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[string]memCode), now: time.Now}
}

func (s *InMemoryCodeStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key] = memCode{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get and Delete complete the put/get/delete one-time code contract.
// The verification flow itself only calls Put and ConsumeIfMatch.
func (s *InMemoryCodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.liveLocked(key)
	return c.value, ok, nil
}

func (s *InMemoryCodeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, key)
	return nil
}

func (s *InMemoryCodeStore) ConsumeIfMatch(ctx context.Context, key, value string) (CodeCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.liveLocked(key)
	if !ok {
		return CodeAbsent, nil
	}
	if c.value != value {
		return CodeMismatch, nil
	}
	delete(s.codes, key)
	return CodeMatched, nil
}

func (s *InMemoryCodeStore) liveLocked(key string) (memCode, bool) {
	c, ok := s.codes[key]
	if !ok {
		return memCode{}, false
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.codes, key)
		return memCode{}, false
	}
	return c, true
}
