package customHttpClient

import (
	"net/http"

	"github.com/akolanti/StudyMentor/internal/config"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewHTTPClient returns a client sharing one pooled transport, so the LLM, vision and
// embedding backends reuse connections instead of dialing per call.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   config.BackendHTTPTimeout,
	}
}
