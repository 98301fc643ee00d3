package rag_test

import (
	"context"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/rag/quiz"
)

type MockExtractor struct {
	OnExtract func(ctx context.Context, doc commonModels.Document, mode commonModels.ExtractionMode, prompt string) (string, error)
}

func (m *MockExtractor) Extract(ctx context.Context, doc commonModels.Document, mode commonModels.ExtractionMode, prompt string) (string, error) {
	if m.OnExtract != nil {
		return m.OnExtract(ctx, doc, mode, prompt)
	}
	return "extracted lecture text", nil
}

type MockIndexer struct {
	OnIndex func(ctx context.Context, userId string, text string) (int, error)
	OnQuery func(ctx context.Context, userId string, query string) ([]commonModels.SearchHit, error)
}

func (m *MockIndexer) Index(ctx context.Context, userId string, text string) (int, error) {
	if m.OnIndex != nil {
		return m.OnIndex(ctx, userId, text)
	}
	return 1, nil
}

func (m *MockIndexer) Query(ctx context.Context, userId string, query string) ([]commonModels.SearchHit, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, userId, query)
	}
	return []commonModels.SearchHit{{Rank: 1, Content: "default context"}}, nil
}

type MockGenerator struct {
	OnGenerate func(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error)
}

func (m *MockGenerator) Generate(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	return commonModels.QuizResult{Questions: []commonModels.GeneratedQuestion{sampleQuestion()}}, nil
}

type MockGrader struct {
	OnGradeBatch func(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error)
}

func (m *MockGrader) GradeBatch(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	if m.OnGradeBatch != nil {
		return m.OnGradeBatch(ctx, items)
	}
	out := make([]commonModels.GradingResult, len(items))
	for i := range items {
		out[i] = commonModels.GradingResult{Index: i, Verdict: commonModels.VerdictCorrect, Score: 1}
	}
	return out, nil
}

func sampleQuestion() commonModels.GeneratedQuestion {
	return commonModels.GeneratedQuestion{
		Case:          commonModels.CaseObjective,
		Question:      "Which layer routes packets?",
		Choices:       commonModels.Choices{Options: []string{"Link", "Network", "Transport"}},
		CorrectAnswer: commonModels.IndexAnswer(1),
		Explanation:   "Routing happens at the network layer.",
		Intent:        "layers",
	}
}
