package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type Request struct {
	Text           string
	MultipleChoice int
	// ShortAnswer already includes essays.
	ShortAnswer  int
	CustomPrompt string
	LectureOnly  bool
}

type Generator struct {
	chat   llm.ChatCompletionService
	logger *logger_i.Logger
}

func NewGenerator(chat llm.ChatCompletionService) *Generator {
	return &Generator{chat: chat, logger: logger_i.NewLogger("Question Generator")}
}

// Generate makes a single model call for the whole batch. A reply that does not match the
// schema, or holds any malformed question, fails with GenerationFormatError. Count
// mismatches are resolved per kind: surplus is truncated, a shortfall is kept, and both are
// reported as anomalies.
func (g *Generator) Generate(ctx context.Context, req Request) (commonModels.QuizResult, error) {
	const op = "generate"
	log := g.logger.WithTrace(ctx)
	if req.MultipleChoice < 0 || req.ShortAnswer < 0 || req.MultipleChoice+req.ShortAnswer == 0 {
		return commonModels.QuizResult{}, apperr.Validation(op, "at least one question must be requested")
	}

	start := time.Now()
	raw, err := g.chat.Complete(ctx, llm.CompletionRequest{
		System:      systemPrompt(req.MultipleChoice, req.ShortAnswer, req.LectureOnly, req.CustomPrompt),
		User:        userPrompt(req.Text),
		SchemaName:  config.QuizQuestionsField,
		Schema:      quizSchema(),
		Temperature: config.GenerationTemperature,
	})
	metrics.CaptureExecutionMetrics(op, time.Since(start))
	if err != nil {
		return commonModels.QuizResult{}, err
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		log.Error("model reply failed schema validation", "error", err)
		return commonModels.QuizResult{}, apperr.GenerationFormat(op, err, "model reply does not match the quiz schema")
	}

	result := applyCountPolicy(questions, req.MultipleChoice, req.ShortAnswer)
	if len(result.Questions) == 0 {
		return commonModels.QuizResult{}, apperr.GenerationFormat(op, nil, "model returned no usable questions")
	}
	for _, a := range result.Anomalies {
		log.Warn("question count anomaly", "anomaly", a)
	}
	if len(result.Anomalies) > 0 {
		metrics.CountQuizAnomaly()
	}
	return result, nil
}

func parseQuestions(raw json.RawMessage) ([]commonModels.GeneratedQuestion, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: %w", err)
	}
	list, ok := envelope[config.QuizQuestionsField]
	if !ok {
		return nil, fmt.Errorf("reply has no %s field", config.QuizQuestionsField)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, fmt.Errorf("%s is not an array: %w", config.QuizQuestionsField, err)
	}

	questions := make([]commonModels.GeneratedQuestion, 0, len(items))
	for i, item := range items {
		q, err := decodeQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func decodeQuestion(item json.RawMessage) (commonModels.GeneratedQuestion, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return commonModels.GeneratedQuestion{}, err
	}
	for _, name := range questionFields {
		if _, ok := fields[name]; !ok {
			return commonModels.GeneratedQuestion{}, fmt.Errorf("missing field %q", name)
		}
	}

	var q commonModels.GeneratedQuestion
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return commonModels.GeneratedQuestion{}, err
	}
	if err := q.Validate(); err != nil {
		return commonModels.GeneratedQuestion{}, err
	}
	return q, nil
}

func applyCountPolicy(questions []commonModels.GeneratedQuestion, wantObjective, wantSubjective int) commonModels.QuizResult {
	want := map[commonModels.QuestionCase]int{
		commonModels.CaseObjective:  wantObjective,
		commonModels.CaseSubjective: wantSubjective,
	}
	got := map[commonModels.QuestionCase]int{}

	var result commonModels.QuizResult
	for _, q := range questions {
		got[q.Case]++
		if got[q.Case] > want[q.Case] {
			continue
		}
		result.Questions = append(result.Questions, q)
	}

	for _, c := range []commonModels.QuestionCase{commonModels.CaseObjective, commonModels.CaseSubjective} {
		kept := min(got[c], want[c])
		metrics.CountQuestions(c.String(), kept)
		switch {
		case got[c] > want[c]:
			result.Anomalies = append(result.Anomalies,
				fmt.Sprintf("dropped %d surplus %s questions (requested %d)", got[c]-want[c], c, want[c]))
		case got[c] < want[c]:
			result.Anomalies = append(result.Anomalies,
				fmt.Sprintf("model returned %d of %d requested %s questions", got[c], want[c], c))
		}
	}
	return result
}
