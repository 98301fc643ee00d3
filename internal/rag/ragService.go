package rag

import (
	"context"
	"os"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/rag/quiz"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

/*
Service is the only thing handlers, the worker and the MCP tools call.
The private struct holds the four pipeline stages behind small interfaces,
so tests can swap any stage for a mock without touching callers.
*/
type Service interface {
	GenerateQuiz(ctx context.Context, principal commonModels.Principal, doc commonModels.Document, setting commonModels.ExamSetting) (commonModels.QuizResult, error)
	GradeAnswers(ctx context.Context, principal commonModels.Principal, items []commonModels.GradingItem) ([]commonModels.GradingResult, error)
	Search(ctx context.Context, principal commonModels.Principal, query string) ([]commonModels.SearchHit, error)
	ProcessQuizJob(ctx context.Context, job jobModel.Job) jobModel.Job
}

type TextExtractor interface {
	Extract(ctx context.Context, doc commonModels.Document, mode commonModels.ExtractionMode, customImagePrompt string) (string, error)
}

type CorpusIndexer interface {
	Index(ctx context.Context, userId string, text string) (int, error)
	Query(ctx context.Context, userId string, query string) ([]commonModels.SearchHit, error)
}

type QuestionGenerator interface {
	Generate(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error)
}

type AnswerGrader interface {
	GradeBatch(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error)
}

type service struct {
	extractor TextExtractor
	indexer   CorpusIndexer
	generator QuestionGenerator
	grader    AnswerGrader
	logger    *logger_i.Logger
}

func NewService(extractor TextExtractor, indexer CorpusIndexer, generator QuestionGenerator, grader AnswerGrader) Service {
	return &service{
		extractor: extractor,
		indexer:   indexer,
		generator: generator,
		grader:    grader,
		logger:    logger_i.NewLogger("RAG Service"),
	}
}

// GenerateQuiz extracts the document, then indexes the text and generates questions from it
// concurrently. Either branch failing fails the whole call; no partial quiz is returned.
func (s *service) GenerateQuiz(ctx context.Context, principal commonModels.Principal, doc commonModels.Document, setting commonModels.ExamSetting) (commonModels.QuizResult, error) {
	log := s.logger.WithTrace(ctx).With("userId", principal.UserId, "document", doc.Name)
	if err := setting.Validate(); err != nil {
		return commonModels.QuizResult{}, err
	}
	if principal.UserId == "" {
		return commonModels.QuizResult{}, apperr.Auth("generateQuiz", "no principal on request")
	}

	text, err := s.executeExtractStep(ctx, log, doc, setting)
	if err != nil {
		return commonModels.QuizResult{}, apperr.ForUser(err, principal.UserId)
	}

	var result commonModels.QuizResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.executeIndexStep(gctx, log, principal.UserId, text)
	})
	g.Go(func() error {
		var genErr error
		result, genErr = s.executeGenerateStep(gctx, log, text, setting)
		return genErr
	})
	if err := g.Wait(); err != nil {
		log.Error("quiz generation failed", "error", err)
		return commonModels.QuizResult{}, apperr.ForUser(err, principal.UserId)
	}

	log.Info("quiz generated", "questions", len(result.Questions), "anomalies", len(result.Anomalies))
	return result, nil
}

func (s *service) GradeAnswers(ctx context.Context, principal commonModels.Principal, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("gradeAnswers", "at least one item is required")
	}
	for i, item := range items {
		if err := item.Question.Validate(); err != nil {
			return nil, apperr.Validation("gradeAnswers", "item %d: %v", i, err)
		}
	}
	results, err := s.executeGradeStep(ctx, s.logger.WithTrace(ctx).With("userId", principal.UserId), items)
	if err != nil {
		return nil, apperr.ForUser(err, principal.UserId)
	}
	return results, nil
}

func (s *service) Search(ctx context.Context, principal commonModels.Principal, query string) ([]commonModels.SearchHit, error) {
	return s.indexer.Query(ctx, principal.UserId, query)
}

// ProcessQuizJob runs GenerateQuiz for a queued upload and records the outcome on the job.
// The uploaded file is removed whatever the result.
func (s *service) ProcessQuizJob(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id, "userId", job.UserId)
	job.CurrentStep = jobModel.QuizInit
	path := job.JobPayload.DocumentPath
	defer func() {
		if path == "" {
			return
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Error("Error removing file", "error", err)
		}
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		return s.jobError(job, apperr.Internal("processQuizJob", err), log)
	}

	doc := commonModels.Document{
		Name:    job.JobPayload.DocumentName,
		Kind:    job.JobPayload.DocumentKind,
		Content: content,
	}
	principal := commonModels.Principal{UserId: job.UserId}

	job.CurrentStep = jobModel.GenerateCall
	result, err := s.GenerateQuiz(ctx, principal, doc, job.JobPayload.ExamSetting)
	if err != nil {
		return s.jobError(job, err, log)
	}
	return returnOutput(job, result)
}

func (s *service) executeStepTimer(step string) func() {
	start := time.Now()
	return func() { captureStep(step, time.Since(start)) }
}
