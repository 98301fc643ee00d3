package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

type step func(re requestResponseStruct) requestResponseStruct

type Chain struct {
	verifier auth.Verifier
	limiter  *IPRateLimiter
}

func New(verifier auth.Verifier, limiter *IPRateLimiter) *Chain {
	return &Chain{verifier: verifier, limiter: limiter}
}

// Wrap runs trace, rate limit and auth before next.
func (c *Chain) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return c.wrap(next, injectTrace, c.rateLimiter, c.authenticate)
}

// Public skips auth. Only the health route uses it.
func (c *Chain) Public(next http.HandlerFunc) http.HandlerFunc {
	return c.wrap(next, injectTrace, c.rateLimiter)
}

// Handler adapts Wrap for http.Handler values such as the MCP endpoint.
func (c *Chain) Handler(next http.Handler) http.Handler {
	return c.Wrap(next.ServeHTTP)
}

func (c *Chain) wrap(next http.HandlerFunc, steps ...step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec}, steps)

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}
		metrics.HttpRequestsTotal.WithLabelValues(routeLabel(re.req), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct, steps []step) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	for _, s := range steps {
		re = s(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return re
}
