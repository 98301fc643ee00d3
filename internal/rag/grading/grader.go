package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/batch"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type Grader struct {
	chat        llm.ChatCompletionService
	objective   pipeline
	subjective  pipeline
	concurrency int
	logger      *logger_i.Logger
}

func NewGrader(chat llm.ChatCompletionService, concurrency int) *Grader {
	if concurrency < 1 {
		concurrency = config.GradingBatchConcurrency
	}
	return &Grader{
		chat:        chat,
		objective:   newPipeline(objectiveIntro),
		subjective:  newPipeline(subjectiveIntro),
		concurrency: concurrency,
		logger:      logger_i.NewLogger("Answer Grader"),
	}
}

type verdictReply struct {
	Verdict  commonModels.Verdict `json:"verdict"`
	Score    float64              `json:"score"`
	Feedback string               `json:"feedback"`
}

// GradeBatch grades every item concurrently. The result slice matches items in length
// and order; a failed item carries its error instead of a verdict. The error return is
// only set when ctx ends before the batch finishes.
func (g *Grader) GradeBatch(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("grade", time.Since(start)) }()

	outcomes := batch.Run(ctx, items, g.concurrency, g.gradeOne)
	if err := ctx.Err(); err != nil {
		return nil, apperr.BackendUnavailable("grade", err, "grading abandoned")
	}

	results := make([]commonModels.GradingResult, len(items))
	for i, o := range outcomes {
		r := o.Value
		r.Index = i
		r.Case = routeCase(items[i].Question)
		if o.Err != nil {
			g.logger.WithTrace(ctx).Warn("grading item failed", "index", i, "error", o.Err)
			r.Verdict, r.Score, r.Feedback = "", 0, ""
			r.Error = apperr.PublicMessage(o.Err)
			r.ErrorKind = string(apperr.KindOf(o.Err))
			metrics.CountVerdict("error")
		} else {
			metrics.CountVerdict(string(r.Verdict))
		}
		results[i] = r
	}
	return results, nil
}

func (g *Grader) gradeOne(ctx context.Context, i int, item commonModels.GradingItem) (commonModels.GradingResult, error) {
	const op = "grade.item"
	p := g.objective
	if item.Question.IsSubjective() {
		p = g.subjective
	}
	prompt, err := p.render(promptData{
		Question:      item.Question.Question,
		Choices:       item.Question.Choices.Options,
		CorrectAnswer: item.Question.CorrectAnswer.String(),
		Explanation:   item.Question.Explanation,
		Submitted:     item.Answer,
	})
	if err != nil {
		return commonModels.GradingResult{}, apperr.Internal(op, err)
	}

	raw, err := g.chat.Complete(ctx, llm.CompletionRequest{
		System:      systemInstruction,
		User:        prompt,
		SchemaName:  "grading_result",
		Schema:      gradingSchema(),
		Temperature: config.GradingTemperature,
	})
	if err != nil {
		return commonModels.GradingResult{}, err
	}

	reply, err := parseVerdict(raw)
	if err != nil {
		return commonModels.GradingResult{}, apperr.GradingFormat(op, err, "grading reply for item %d does not match the schema", i)
	}
	return commonModels.GradingResult{Verdict: reply.Verdict, Score: reply.Score, Feedback: reply.Feedback}, nil
}

func routeCase(q commonModels.GeneratedQuestion) commonModels.QuestionCase {
	if q.IsSubjective() {
		return commonModels.CaseSubjective
	}
	return commonModels.CaseObjective
}

func parseVerdict(raw json.RawMessage) (verdictReply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return verdictReply{}, fmt.Errorf("reply is not a JSON object: %w", err)
	}
	for _, name := range verdictFields {
		if _, ok := fields[name]; !ok {
			return verdictReply{}, fmt.Errorf("missing field %q", name)
		}
	}
	var v verdictReply
	if err := json.Unmarshal(raw, &v); err != nil {
		return verdictReply{}, err
	}
	if !v.Verdict.Valid() {
		return verdictReply{}, fmt.Errorf("unknown verdict %q", v.Verdict)
	}
	if v.Score < 0 || v.Score > 1 {
		return verdictReply{}, fmt.Errorf("score %v outside [0,1]", v.Score)
	}
	return v, nil
}
