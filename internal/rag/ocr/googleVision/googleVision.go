package googleVision

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

type Client struct {
	svc    *vision.Service
	guard  *resilience.Guard
	logger *logger_i.Logger
}

// NewClient talks to the Vision REST API. endpoint is only set by tests.
func NewClient(ctx context.Context, apiKey string, httpClient *http.Client, guard *resilience.Guard, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = []option.ClientOption{option.WithHTTPClient(&http.Client{
			Transport: &apiKeyTransport{key: apiKey, base: httpClient.Transport},
			Timeout:   httpClient.Timeout,
		})}
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.BackendUnavailable("vision.new", err, "creating Vision client")
	}
	return &Client{svc: svc, guard: guard, logger: logger_i.NewLogger("ocr_google_vision")}, nil
}

func (c *Client) Detect(ctx context.Context, image []byte) (string, bool, error) {
	const op = "vision.detect"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
		}},
	}
	text, err := resilience.Do(ctx, c.guard, op, func(ctx context.Context) (string, error) {
		resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Responses) == 0 {
			return "", nil
		}
		r := resp.Responses[0]
		if r.Error != nil && r.Error.Message != "" {
			// per-image errors come back inside a 200
			return "", &resilience.HTTPStatusError{Code: http.StatusBadGateway, Body: r.Error.Message}
		}
		if len(r.TextAnnotations) > 0 {
			return r.TextAnnotations[0].Description, nil
		}
		if r.FullTextAnnotation != nil {
			return r.FullTextAnnotation.Text, nil
		}
		return "", nil
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("text detection failed", "error", err)
		return "", false, err
	}
	text = strings.TrimSpace(text)
	return text, text != "", nil
}

func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &resilience.HTTPStatusError{Code: gErr.Code, Body: gErr.Message}
	}
	return err
}

// apiKeyTransport adds the key when a custom HTTP client replaces the option-built one.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	r = r.Clone(r.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return base.RoundTrip(r)
}
