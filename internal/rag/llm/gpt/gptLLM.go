package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Options struct {
	APIKey      string
	ChatModel   string
	VisionModel string
	HTTPClient  *http.Client
	// BaseURL points the client at a compatible endpoint (tests use httptest).
	BaseURL string
}

type Client struct {
	api         openai.Client
	chatModel   string
	visionModel string
	guard       *resilience.Guard
	logger      *logger_i.Logger
}

func NewClient(opts Options, guard *resilience.Guard) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// retries are owned by the guard
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.ChatModel == "" {
		opts.ChatModel = config.OpenAIChatModel
	}
	if opts.VisionModel == "" {
		opts.VisionModel = config.OpenAIVisionModel
	}
	return &Client{
		api:         openai.NewClient(reqOpts...),
		chatModel:   opts.ChatModel,
		visionModel: opts.VisionModel,
		guard:       guard,
		logger:      logger_i.NewLogger("llm_openai"),
	}
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (json.RawMessage, error) {
	const op = "openai.complete"
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.Schema != nil {
		params.ResponseFormat = responseFormat(req.SchemaName, req.Schema)
	}
	return c.send(ctx, op, params)
}

func (c *Client) Analyze(ctx context.Context, base64Image string, systemPrompt string) (json.RawMessage, error) {
	const op = "openai.analyze"
	dataURL := "data:" + sniffMime(base64Image) + ";base64," + base64Image
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.visionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature:    openai.Float(float64(config.VisionTemperature)),
		ResponseFormat: responseFormat(config.VisionDetectionsField, llm.DetectionsSchema(config.VisionDetectionsField)),
	}
	return c.send(ctx, op, params)
}

func (c *Client) send(ctx context.Context, op string, params openai.ChatCompletionNewParams) (json.RawMessage, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	content, err := resilience.Do(ctx, c.guard, op, func(ctx context.Context) (string, error) {
		chat, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", classify(err)
		}
		if len(chat.Choices) == 0 {
			return "", &resilience.HTTPStatusError{Code: http.StatusBadGateway, Body: "no choices returned"}
		}
		return chat.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("openai call failed", "op", op, "error", err)
		return nil, err
	}
	return json.RawMessage(llm.StripCodeFences(content)), nil
}

func responseFormat(name string, schema *llm.Schema) openai.ChatCompletionNewParamsResponseFormatUnion {
	if name == "" {
		name = "response"
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema.JSONSchema(),
				Strict: openai.Bool(true),
			},
		},
	}
}

// classify exposes the HTTP status of API errors to the guard's retry policy.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{Code: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}

func sniffMime(base64Image string) string {
	switch {
	case strings.HasPrefix(base64Image, "iVBOR"):
		return "image/png"
	case strings.HasPrefix(base64Image, "R0lG"):
		return "image/gif"
	case strings.HasPrefix(base64Image, "UklG"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
