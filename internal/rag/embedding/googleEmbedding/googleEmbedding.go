package googleEmbedding

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"google.golang.org/genai"
)

var dimension int32 = config.EmbeddingOutputDimensionality

type Client struct {
	genAi  *genai.Client
	model  string
	guard  *resilience.Guard
	logger *logger_i.Logger
}

func NewClient(ctx context.Context, apiKey, modelName string, httpClient *http.Client, guard *resilience.Guard, baseURL string) (*Client, error) {
	if modelName == "" {
		modelName = config.GoogleEmbeddingModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("google_embedding.new", err, "creating Google Embedding client")
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Info("Google Embedding client created", "model", modelName)
	return &Client{genAi: c, model: modelName, guard: guard, logger: logger}, nil
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	res, err := c.doCall(ctx, "google_embedding.query", genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, apperr.BackendUnavailable("google_embedding.query", nil, "no embedding returned")
	}
	return res.Embeddings[0].Values, nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	const op = "google_embedding.batch"
	if len(chunks) == 0 {
		return nil, nil
	}
	res, err := c.doCall(ctx, op, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(chunks) {
		return nil, apperr.BackendUnavailable(op, nil, "got %d embeddings for %d chunks", len(res.Embeddings), len(chunks))
	}
	embeddingResults := make([][]float32, 0, len(res.Embeddings))
	for i, r := range res.Embeddings {
		if r == nil || len(r.Values) == 0 {
			return nil, apperr.BackendUnavailable(op, nil, "empty embedding for chunk %d", i)
		}
		embeddingResults = append(embeddingResults, r.Values)
	}
	return embeddingResults, nil
}

func (c *Client) doCall(ctx context.Context, op string, content []*genai.Content, taskType string) (*genai.EmbedContentResponse, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	res, err := resilience.Do(ctx, c.guard, op, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
			OutputDimensionality: &dimension,
			TaskType:             taskType,
		})
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("Error getting Embeddings from Google", "op", op, "error", err)
		return nil, err
	}
	if res == nil {
		return nil, apperr.BackendUnavailable(op, nil, "empty response")
	}
	return res, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}
