package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/data/redisStore"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

const lockPrefix = "studymentor:lock:"

// RedisLock serializes writers across instances with SETNX and an owner-checked release.
// A held lock is renewed every ttl/3 until it is released, so long writers keep it.
type RedisLock struct {
	store   *redisStore.Store
	ownerID string
	ttl     time.Duration
	poll    time.Duration
	logger  *logger_i.Logger
}

func NewRedisLock(store *redisStore.Store) *RedisLock {
	return NewRedisLockWithTTL(store, config.IndexLockTTL, config.IndexLockPollInterval)
}

func NewRedisLockWithTTL(store *redisStore.Store, ttl, poll time.Duration) *RedisLock {
	return &RedisLock{
		store:   store,
		ownerID: generateOwnerID(),
		ttl:     ttl,
		poll:    poll,
		logger:  logger_i.NewLogger("RedisLock"),
	}
}

// generateOwnerID returns hostname:pid:random.
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Lock blocks until the named lock is held or ctx is done.
func (l *RedisLock) Lock(ctx context.Context, name string) (func(), error) {
	key := lockPrefix + name
	// each acquisition gets its own token so two goroutines of one process stay exclusive
	token := l.ownerID + ":" + randomSuffix()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return l.hold(name, key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold starts the renewal loop and returns the matching unlock.
func (l *RedisLock) hold(name, key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(name, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := l.store.ReleaseIfOwner(releaseCtx, key, token); err != nil {
				l.logger.Error("lock release failed", "lock", name, "error", err)
			}
		})
	}
}

func (l *RedisLock) renew(name, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := l.store.ExtendIfOwner(ctx, key, token, l.ttl)
			cancel()
			if err != nil {
				l.logger.Warn("lock renewal failed", "lock", name, "error", err)
				continue
			}
			if !held {
				l.logger.Error("lock lost before release", "lock", name)
				return
			}
		}
	}
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// KeyedMutex is the in-process lock used when Redis is unavailable.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, name string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[name]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[name] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(name, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(name, e)
		})
	}, nil
}

func (k *KeyedMutex) drop(name string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, name)
	}
}
