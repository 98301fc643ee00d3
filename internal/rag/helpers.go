package rag

import (
	"context"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/quiz"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

func returnOutput(job jobModel.Job, result commonModels.QuizResult) jobModel.Job {
	job.JobPayload.Quiz = &result
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	job.Error = jobModel.JobError{}
	return job
}

func (s *service) jobError(job jobModel.Job, err error, log *logger_i.Logger) jobModel.Job {
	kind := apperr.KindOf(err)
	log.Error("quiz job failed", "step", job.CurrentStep, "kind", kind, "error", err)

	job.Error = jobModel.JobError{
		Code:    apperr.HTTPStatus(kind),
		Kind:    string(kind),
		Message: apperr.PublicMessage(err),
		Retry:   apperr.Retryable(kind),
	}
	job.CurrentStep = jobModel.Error
	job.Status = jobModel.JobStatusError
	return job
}

func captureStep(step string, elapsed time.Duration) {
	metrics.CaptureExecutionMetrics(step, elapsed)
}

func (s *service) executeExtractStep(ctx context.Context, log *logger_i.Logger, doc commonModels.Document, setting commonModels.ExamSetting) (string, error) {
	defer s.executeStepTimer("pipeline_extract")()
	log.Debug("extract step", "mode", setting.Mode().String(), "kind", doc.Kind)

	customImagePrompt := ""
	if setting.Mode() == commonModels.ModeVisionAnalysis {
		customImagePrompt = setting.CustomImagePrompt
	}
	return s.extractor.Extract(ctx, doc, setting.Mode(), customImagePrompt)
}

func (s *service) executeIndexStep(ctx context.Context, log *logger_i.Logger, userId string, text string) error {
	defer s.executeStepTimer("pipeline_index")()
	n, err := s.indexer.Index(ctx, userId, text)
	if err == nil {
		log.Debug("index step", "chunks", n)
	}
	return err
}

func (s *service) executeGenerateStep(ctx context.Context, log *logger_i.Logger, text string, setting commonModels.ExamSetting) (commonModels.QuizResult, error) {
	defer s.executeStepTimer("pipeline_generate")()
	log.Debug("generate step", "multipleChoice", setting.MultipleChoice, "subjective", setting.SubjectiveCount())
	return s.generator.Generate(ctx, quiz.Request{
		Text:           text,
		MultipleChoice: setting.MultipleChoice,
		ShortAnswer:    setting.SubjectiveCount(),
		CustomPrompt:   setting.CustomPrompt,
		LectureOnly:    setting.LectureOnly(),
	})
}

func (s *service) executeGradeStep(ctx context.Context, log *logger_i.Logger, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	defer s.executeStepTimer("pipeline_grade")()
	log.Debug("grade step", "items", len(items))
	return s.grader.GradeBatch(ctx, items)
}
