package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// ChatCompletionService runs one structured completion and returns the model's JSON verbatim.
// Callers own schema validation of the returned document.
type ChatCompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error)
}

// VisionAnalysisService sends one base64 encoded image with a system instruction
// and returns the model's JSON object.
type VisionAnalysisService interface {
	Analyze(ctx context.Context, base64Image string, systemPrompt string) (json.RawMessage, error)
}

type CompletionRequest struct {
	System      string
	User        string
	SchemaName  string
	Schema      *Schema
	Temperature float32
}

// StripCodeFences removes a ```json ... ``` wrapper some models put around JSON output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DetectionsSchema is the object every vision call must return.
func DetectionsSchema(field string) *Schema {
	return Object(map[string]*Schema{
		field: String("Text and visual content detected in the image"),
	}, field)
}
