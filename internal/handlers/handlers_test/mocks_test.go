package handlers_test

import (
	"context"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
)

type MockRagService struct {
	OnGenerateQuiz   func(ctx context.Context, p commonModels.Principal, doc commonModels.Document, s commonModels.ExamSetting) (commonModels.QuizResult, error)
	OnGradeAnswers   func(ctx context.Context, p commonModels.Principal, items []commonModels.GradingItem) ([]commonModels.GradingResult, error)
	OnSearch         func(ctx context.Context, p commonModels.Principal, q string) ([]commonModels.SearchHit, error)
	OnProcessQuizJob func(ctx context.Context, job jobModel.Job) jobModel.Job
}

func (m *MockRagService) GenerateQuiz(ctx context.Context, p commonModels.Principal, doc commonModels.Document, s commonModels.ExamSetting) (commonModels.QuizResult, error) {
	if m.OnGenerateQuiz != nil {
		return m.OnGenerateQuiz(ctx, p, doc, s)
	}
	return commonModels.QuizResult{}, nil
}

func (m *MockRagService) GradeAnswers(ctx context.Context, p commonModels.Principal, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	if m.OnGradeAnswers != nil {
		return m.OnGradeAnswers(ctx, p, items)
	}
	return nil, nil
}

func (m *MockRagService) Search(ctx context.Context, p commonModels.Principal, q string) ([]commonModels.SearchHit, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, p, q)
	}
	return nil, nil
}

func (m *MockRagService) ProcessQuizJob(ctx context.Context, job jobModel.Job) jobModel.Job {
	if m.OnProcessQuizJob != nil {
		return m.OnProcessQuizJob(ctx, job)
	}
	return job
}

type MockVerification struct {
	OnSendCode   func(ctx context.Context, email string) error
	OnVerifyCode func(ctx context.Context, email, code string) error
}

func (m *MockVerification) SendCode(ctx context.Context, email string) error {
	if m.OnSendCode != nil {
		return m.OnSendCode(ctx, email)
	}
	return nil
}

func (m *MockVerification) VerifyCode(ctx context.Context, email, code string) error {
	if m.OnVerifyCode != nil {
		return m.OnVerifyCode(ctx, email, code)
	}
	return nil
}
