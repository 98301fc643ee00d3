package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastGuard(name string) *Guard {
	return NewGuard(name, Options{MaxRetries: 2, BaseDelay: time.Millisecond})
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	g := fastGuard("retry-ok")
	calls := 0
	got, err := Do(context.Background(), g, "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPStatusError{Code: http.StatusTooManyRequests}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedRetriesBecomeBackendUnavailable(t *testing.T) {
	g := fastGuard("retry-exhausted")
	calls := 0
	_, err := Do(context.Background(), g, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, status.Error(codes.ResourceExhausted, "quota")
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackendUnavailable))
	assert.Equal(t, 3, calls)
}

func TestDo_ClassifiedErrorsAreNotRetried(t *testing.T) {
	g := fastGuard("format")
	calls := 0
	_, err := Do(context.Background(), g, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, apperr.GenerationFormat("test", nil, "bad json")
	})
	assert.True(t, apperr.Is(err, apperr.KindGenerationFormat))
	assert.Equal(t, 1, calls)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	g := fastGuard("client-error")
	calls := 0
	_, err := Do(context.Background(), g, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, &HTTPStatusError{Code: http.StatusBadRequest, Body: "bad"}
	})
	assert.True(t, apperr.Is(err, apperr.KindBackendUnavailable))
	assert.Equal(t, 1, calls)
}

func TestDo_BreakerOpensAfterFailures(t *testing.T) {
	g := NewGuard("breaker", Options{MaxRetries: 0})
	fail := func(ctx context.Context) (int, error) {
		return 0, &HTTPStatusError{Code: http.StatusServiceUnavailable}
	}
	for i := 0; i < 6; i++ {
		_, _ = Do(context.Background(), g, "test", fail)
	}

	called := false
	_, err := Do(context.Background(), g, "test", func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called, "open breaker must short-circuit")
	assert.True(t, apperr.Is(err, apperr.KindBackendUnavailable))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", &HTTPStatusError{Code: 429}, true},
		{"500", &HTTPStatusError{Code: 500}, true},
		{"401", &HTTPStatusError{Code: 401}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "x"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "x"), false},
		{"plain", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
