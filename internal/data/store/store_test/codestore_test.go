package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/StudyMentor/internal/data/redisStore"
	"github.com/akolanti/StudyMentor/internal/data/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type codeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	ConsumeIfMatch(ctx context.Context, key, value string) (store.CodeCheck, error)
}

func codeStores(t *testing.T) map[string]codeStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return map[string]codeStore{
		"redis":    store.NewRedisCodeStore(redisStore.NewTestStore(client)),
		"inMemory": store.NewInMemoryCodeStore(),
	}
}

func TestCodeStore_SingleUse(t *testing.T) {
	for name, s := range codeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Put(ctx, "verify:a@b.c", "123456", 300*time.Second); err != nil {
				t.Fatal(err)
			}

			if v, ok, _ := s.Get(ctx, "verify:a@b.c"); !ok || v != "123456" {
				t.Fatalf("Get = %q,%v", v, ok)
			}
			if res, _ := s.ConsumeIfMatch(ctx, "verify:a@b.c", "654321"); res != store.CodeMismatch {
				t.Errorf("wrong code: got %v, want mismatch", res)
			}
			if res, _ := s.ConsumeIfMatch(ctx, "verify:a@b.c", "123456"); res != store.CodeMatched {
				t.Errorf("right code: got %v, want matched", res)
			}
			if res, _ := s.ConsumeIfMatch(ctx, "verify:a@b.c", "123456"); res != store.CodeAbsent {
				t.Errorf("reused code: got %v, want absent", res)
			}
		})
	}
}

func TestCodeStore_ConcurrentConsumeMatchesOnce(t *testing.T) {
	for name, s := range codeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Put(ctx, "verify:race@b.c", "111111", time.Minute)

			var matched int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if res, err := s.ConsumeIfMatch(ctx, "verify:race@b.c", "111111"); err == nil && res == store.CodeMatched {
						atomic.AddInt32(&matched, 1)
					}
				}()
			}
			wg.Wait()
			if matched != 1 {
				t.Errorf("code matched %d times, want exactly 1", matched)
			}
		})
	}
}

func TestRedisCodeStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	s := store.NewRedisCodeStore(redisStore.NewTestStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	ctx := context.Background()

	_ = s.Put(ctx, "verify:ttl@b.c", "222222", 300*time.Second)
	if ttl := mr.TTL("verify:ttl@b.c"); ttl != 300*time.Second {
		t.Errorf("TTL got %v, want 300s", ttl)
	}
	mr.FastForward(301 * time.Second)
	if res, _ := s.ConsumeIfMatch(ctx, "verify:ttl@b.c", "222222"); res != store.CodeAbsent {
		t.Errorf("expired code: got %v, want absent", res)
	}
}

func TestCodeStore_GetAndDelete(t *testing.T) {
	for name, s := range codeStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok, err := s.Get(ctx, "verify:none@b.c"); ok || err != nil {
				t.Fatalf("Get on missing key = %v, %v", ok, err)
			}
			if err := s.Put(ctx, "verify:del@b.c", "222222", time.Minute); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "verify:del@b.c"); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := s.Get(ctx, "verify:del@b.c"); ok {
				t.Error("code still present after Delete")
			}
			if res, _ := s.ConsumeIfMatch(ctx, "verify:del@b.c", "222222"); res != store.CodeAbsent {
				t.Errorf("deleted code: got %v, want absent", res)
			}
		})
	}
}
