package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	Type   int
	logger *logger_i.Logger
}

type Options struct {
	Addr     string
	Password string
}

// Connect opens a client on the given logical DB and pings it once.
// The returned store is closed when ctx is cancelled.
func Connect(ctx context.Context, opts Options, dbType int) (*Store, error) {
	logger := logger_i.NewLogger(fmt.Sprintf("Redis Store %d", dbType))
	newClient := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline", "addr", opts.Addr, "error", err)
		_ = newClient.Close()
		return nil, fmt.Errorf("redis ping %s db %d: %w", opts.Addr, dbType, err)
	}

	logger.Info("Redis store connected", "addr", opts.Addr)
	s := &Store{client: newClient, Type: dbType, logger: logger}
	go s.closeOnDone(ctx)
	return s, nil
}

func (s *Store) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	s.logger.Info("Closing Redis store")
	if err := s.client.Close(); err != nil {
		s.logger.Error("Error closing redis client", "error", err)
	}
}

// NewTestStore wraps an already connected client, usually one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		logger: logger_i.NewLogger("Redis Store test"),
	}
}
