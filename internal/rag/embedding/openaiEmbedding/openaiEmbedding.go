package openaiEmbedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Client struct {
	api    openai.Client
	model  string
	guard  *resilience.Guard
	logger *logger_i.Logger
}

// NewClient builds the embedder. baseURL is empty outside tests.
func NewClient(apiKey, model string, httpClient *http.Client, guard *resilience.Guard, baseURL string) *Client {
	if model == "" {
		model = config.OpenAIEmbeddingModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:    openai.NewClient(opts...),
		model:  model,
		guard:  guard,
		logger: logger_i.NewLogger("openai_embedding"),
	}
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, "openai_embedding.query", []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	return c.embed(ctx, "openai_embedding.batch", chunks)
}

func (c *Client) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	resp, err := resilience.Do(ctx, c.guard, op, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		r, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model:      openai.EmbeddingModel(c.model),
			Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
		})
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				return nil, &resilience.HTTPStatusError{Code: apiErr.StatusCode, Body: apiErr.Message}
			}
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("Error getting Embeddings from OpenAI", "op", op, "error", err)
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.BackendUnavailable(op, nil, "got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// the API may answer out of order; Index maps back to the input position
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, apperr.BackendUnavailable(op, nil, "embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, apperr.BackendUnavailable(op, nil, "missing embedding for input %d", i)
		}
	}
	return out, nil
}
