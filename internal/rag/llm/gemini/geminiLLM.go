package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"google.golang.org/genai"
)

type Client struct {
	client    *genai.Client
	modelName string
	guard     *resilience.Guard
	logger    *logger_i.Logger
}

// NewClient builds the Gemini client used for both chat and vision calls.
// An empty baseURL keeps the public endpoint.
func NewClient(ctx context.Context, apiKey, modelName string, httpClient *http.Client, guard *resilience.Guard, baseURL string) (*Client, error) {
	if modelName == "" {
		modelName = config.GeminiModelName
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("gemini.new", err, "creating Gemini client")
	}
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini client created", "model", modelName)
	return &Client{client: c, modelName: modelName, guard: guard, logger: logger}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (json.RawMessage, error) {
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       genai.Ptr(req.Temperature),
		ResponseMIMEType:  "application/json",
	}
	if req.Schema != nil {
		contentConfig.ResponseSchema = req.Schema.GenAI()
	}
	return c.generate(ctx, "gemini.complete", genai.Text(req.User), contentConfig)
}

func (c *Client) Analyze(ctx context.Context, base64Image string, systemPrompt string) (json.RawMessage, error) {
	const op = "gemini.analyze"
	data, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, apperr.DocumentProcessing(op, err, "image is not valid base64")
	}
	parts := []*genai.Part{genai.NewPartFromBytes(data, http.DetectContentType(data))}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       genai.Ptr(config.VisionTemperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    llm.DetectionsSchema(config.VisionDetectionsField).GenAI(),
	}
	return c.generate(ctx, op, contents, contentConfig)
}

func (c *Client) generate(ctx context.Context, op string, contents []*genai.Content, contentConfig *genai.GenerateContentConfig) (json.RawMessage, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	text, err := resilience.Do(ctx, c.guard, op, func(ctx context.Context) (string, error) {
		result, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, contentConfig)
		if err != nil {
			return "", classify(err)
		}
		if result == nil || len(result.Candidates) == 0 {
			return "", &resilience.HTTPStatusError{Code: http.StatusBadGateway, Body: "no candidates returned"}
		}
		return result.Text(), nil
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("gemini call failed", "op", op, "error", err)
		return nil, err
	}
	return json.RawMessage(llm.StripCodeFences(text)), nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &resilience.HTTPStatusError{Code: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}
