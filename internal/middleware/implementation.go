package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/akolanti/StudyMentor/internal/adapter/utils"
	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/handlers"
	"github.com/go-chi/chi/v5"
)

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	trace := req.Header.Get("X-Trace-Id")
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	req.Header.Set("X-Trace-Id", trace)
	re.writer.Header().Set("X-Trace-Id", trace)
	re.req = req.WithContext(ctx)
	return re
}

func (c *Chain) authenticate(re requestResponseStruct) requestResponseStruct {
	token := bearerToken(re.req.Header.Get("Authorization"))
	principal, err := c.verifier.Verify(re.req.Context(), token)
	if err != nil {
		re.logger.Warn("Unauthorized request", "error", err)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusUnauthorized,
			errorMessage: apperr.PublicMessage(err),
		}
		return re
	}
	re.logger = re.logger.With("userId", principal.UserId)
	re.req = re.req.WithContext(auth.WithPrincipal(re.req.Context(), principal))
	re.logger.Debug("Authorized")
	return re
}

// bearerToken takes the second field of the header, so "Bearer <t>" and "bearer <t>" both work.
func bearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

func (c *Chain) rateLimiter(re requestResponseStruct) requestResponseStruct {
	if c.limiter == nil {
		return re
	}
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !c.limiter.GetLimiter(ip).Allow() {
		re.logger.Warn("Too many requests", "ip", ip)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded",
		}
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", re.req.RemoteAddr)
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, "", re.badRequest.errorMessage)
}

// routeLabel prefers the chi route pattern so path ids do not explode label cardinality.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
