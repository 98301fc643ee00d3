// Package resilience wraps outbound backend calls with rate limiting, a circuit breaker and retries.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusCoder is implemented by SDK errors that expose an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// HTTPStatusError is returned by hand-written HTTP adapters for non-2xx replies.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return http.StatusText(e.Code) + ": " + e.Body
}

func (e *HTTPStatusError) StatusCode() int { return e.Code }

type Options struct {
	MaxRetries        int
	BaseDelay         time.Duration
	RequestsPerSecond float64
	Burst             int
	// IsRetryable overrides the default classification.
	IsRetryable func(error) bool
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:        config.BackendMaxRetries,
		BaseDelay:         config.BackendRetryBaseDelay,
		RequestsPerSecond: config.BackendRequestsPerSecond,
		Burst:             config.BackendRequestsPerSecond,
	}
}

type Guard struct {
	name    string
	opts    Options
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logger_i.Logger
}

func NewGuard(name string, opts Options) *Guard {
	logger := logger_i.NewLogger("guard:" + name)
	if opts.IsRetryable == nil {
		opts.IsRetryable = IsRetryable
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// caller mistakes and cancellations say nothing about backend health
			return err == nil || !countsAsFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, int(to))
		},
	})
	return &Guard{name: name, opts: opts, breaker: breaker, limiter: limiter, logger: logger}
}

// Do runs fn under the guard. Errors already classified by apperr pass through unchanged,
// anything else that survives the retries becomes BackendUnavailableError.
func Do[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.opts.BaseDelay << (attempt - 1)
			g.logger.WithTrace(ctx).Warn("retrying backend call", "op", op, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return zero, apperr.BackendUnavailable(op, err, "%s cancelled", g.name)
			}
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, apperr.BackendUnavailable(op, err, "%s rate limit wait aborted", g.name)
			}
		}

		res, err := g.breaker.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err == nil {
			v, _ := res.(T)
			return v, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperr.BackendUnavailable(op, err, "%s circuit open", g.name)
		}
		if ctx.Err() != nil {
			return zero, apperr.BackendUnavailable(op, ctx.Err(), "%s call abandoned", g.name)
		}
		var classified *apperr.Error
		if errors.As(err, &classified) {
			return zero, err
		}
		if !g.opts.IsRetryable(err) {
			break
		}
	}
	return zero, apperr.BackendUnavailable(op, lastErr, "%s unavailable", g.name)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRetryable accepts throttling, server errors and transient grpc codes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return true
		case codes.Unknown:
			// non-grpc errors land here; treat them as transport failures
			return true
		}
		return false
	}
	return true
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var classified *apperr.Error
	if errors.As(err, &classified) && classified.Kind != apperr.KindBackendUnavailable {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}
