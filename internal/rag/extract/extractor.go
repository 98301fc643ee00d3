package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/batch"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/internal/rag/ocr"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type Extractor struct {
	raster      Rasterizer
	detector    ocr.TextDetectionService
	vision      llm.VisionAnalysisService
	concurrency int
	logger      *logger_i.Logger
}

func NewExtractor(raster Rasterizer, detector ocr.TextDetectionService, vision llm.VisionAnalysisService, concurrency int) *Extractor {
	if concurrency < 1 {
		concurrency = config.PageConcurrency
	}
	return &Extractor{
		raster:      raster,
		detector:    detector,
		vision:      vision,
		concurrency: concurrency,
		logger:      logger_i.NewLogger("Text Extractor"),
	}
}

// Extract turns the document into one space-joined string in page order.
// A page whose backend call fails becomes a placeholder; only rasterization,
// an unusable document or cancellation fail the whole call.
func (e *Extractor) Extract(ctx context.Context, doc commonModels.Document, mode commonModels.ExtractionMode, customImagePrompt string) (string, error) {
	const op = "extract"
	log := e.logger.WithTrace(ctx).With("document", doc.Name, "mode", mode.String())

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("extract_"+mode.String(), time.Since(start)) }()

	pages, err := e.pages(ctx, doc)
	if err != nil {
		log.Error("document could not be rasterized", "error", err)
		return "", apperr.DocumentProcessing(op, err, "document could not be processed")
	}
	log.Debug("extracting pages", "pages", len(pages))

	var extractPage func(ctx context.Context, i int, page []byte) (string, error)
	switch mode {
	case commonModels.ModeVisionAnalysis:
		if e.vision == nil {
			return "", apperr.BackendUnavailable(op, nil, "vision analysis is not configured")
		}
		systemPrompt := config.VisionSystemPromptBase + customImagePrompt
		extractPage = func(ctx context.Context, _ int, page []byte) (string, error) {
			return e.analyzePage(ctx, page, systemPrompt)
		}
	default:
		if e.detector == nil {
			return "", apperr.BackendUnavailable(op, nil, "text detection is not configured")
		}
		extractPage = e.detectPage
	}

	outcomes := batch.Run(ctx, pages, e.concurrency, extractPage)
	if ctx.Err() != nil {
		return "", apperr.DocumentProcessing(op, ctx.Err(), "extraction cancelled")
	}

	segments := make([]string, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			log.Warn("page extraction failed", "page", i+1, "error", o.Err)
			metrics.CountPage(mode.String(), false)
			segments[i] = fmt.Sprintf(config.PageErrorMarkerFormat, i+1)
			continue
		}
		metrics.CountPage(mode.String(), true)
		segments[i] = o.Value
	}
	if failed := batch.Failed(outcomes); failed > 0 {
		log.Warn("extraction finished with placeholders", "failedPages", failed, "pages", len(pages))
	}
	return strings.Join(segments, " "), nil
}

func (e *Extractor) pages(ctx context.Context, doc commonModels.Document) ([][]byte, error) {
	if len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	switch doc.Kind {
	case commonModels.PDF:
		return e.raster.Rasterize(ctx, doc.Content)
	case commonModels.IMAGE:
		if !IsImage(doc.Content) {
			return nil, errors.New("content is not a supported image")
		}
		return [][]byte{doc.Content}, nil
	default:
		return nil, fmt.Errorf("unsupported document kind %q", doc.Kind)
	}
}

func (e *Extractor) detectPage(ctx context.Context, _ int, page []byte) (string, error) {
	text, found, err := e.detector.Detect(ctx, page)
	if err != nil {
		return "", err
	}
	if !found {
		return config.NoTextFoundMarker, nil
	}
	return text, nil
}

func (e *Extractor) analyzePage(ctx context.Context, page []byte, systemPrompt string) (string, error) {
	raw, err := e.vision.Analyze(ctx, base64.StdEncoding.EncodeToString(page), systemPrompt)
	if err != nil {
		return "", err
	}
	return Detections(raw)
}

// Detections pulls the detections field out of a vision response. Non-string
// values are kept as their JSON text.
func Detections(raw json.RawMessage) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("vision response is not a JSON object: %w", err)
	}
	field, ok := obj[config.VisionDetectionsField]
	if !ok {
		return "", fmt.Errorf("vision response has no %s field", config.VisionDetectionsField)
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s, nil
	}
	return string(field), nil
}

func IsImage(b []byte) bool {
	switch http.DetectContentType(b) {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp":
		return true
	}
	return false
}
