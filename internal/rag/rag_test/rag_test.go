package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/rag"
	"github.com/akolanti/StudyMentor/internal/rag/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mocks struct {
	e *MockExtractor
	i *MockIndexer
	g *MockGenerator
	r *MockGrader
}

func newService() (rag.Service, *mocks) {
	m := &mocks{e: &MockExtractor{}, i: &MockIndexer{}, g: &MockGenerator{}, r: &MockGrader{}}
	return rag.NewService(m.e, m.i, m.g, m.r), m
}

var principal = commonModels.Principal{UserId: "u1"}

func pdfDoc() commonModels.Document {
	return commonModels.Document{Name: "lecture.pdf", Kind: commonModels.PDF, Content: []byte("%PDF")}
}

func TestGenerateQuiz_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		setting      commonModels.ExamSetting
		setupMocks   func(m *mocks)
		expectedKind apperr.Kind
		expectedLen  int
	}{
		{
			name:        "Success_OCR",
			setting:     commonModels.ExamSetting{MultipleChoice: 1},
			expectedLen: 1,
		},
		{
			name:         "Invalid_Setting",
			setting:      commonModels.ExamSetting{},
			expectedKind: apperr.KindValidation,
		},
		{
			name:    "Extraction_Failure",
			setting: commonModels.ExamSetting{MultipleChoice: 1},
			setupMocks: func(m *mocks) {
				m.e.OnExtract = func(ctx context.Context, d commonModels.Document, mode commonModels.ExtractionMode, p string) (string, error) {
					return "", apperr.DocumentProcessing("extract", errors.New("bad pdf"), "could not rasterize")
				}
			},
			expectedKind: apperr.KindDocumentProcessing,
		},
		{
			name:    "Index_Failure_Fails_Request",
			setting: commonModels.ExamSetting{MultipleChoice: 1},
			setupMocks: func(m *mocks) {
				m.i.OnIndex = func(ctx context.Context, u, text string) (int, error) {
					return 0, apperr.BackendUnavailable("index", errors.New("qdrant down"), "vector store unavailable")
				}
			},
			expectedKind: apperr.KindBackendUnavailable,
		},
		{
			name:    "Generation_Format_Failure",
			setting: commonModels.ExamSetting{ShortAnswer: 2},
			setupMocks: func(m *mocks) {
				m.g.OnGenerate = func(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error) {
					return commonModels.QuizResult{}, apperr.GenerationFormat("generate", nil, "no questions")
				}
			},
			expectedKind: apperr.KindGenerationFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService()
			if tt.setupMocks != nil {
				tt.setupMocks(m)
			}

			result, err := svc.GenerateQuiz(context.Background(), principal, pdfDoc(), tt.setting)
			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Questions, tt.expectedLen)
		})
	}
}

func TestGenerateQuiz_PassesSettingThrough(t *testing.T) {
	svc, m := newService()
	var gotMode commonModels.ExtractionMode
	var gotPrompt string
	var gotReq quiz.Request
	var indexedFor string

	m.e.OnExtract = func(ctx context.Context, d commonModels.Document, mode commonModels.ExtractionMode, p string) (string, error) {
		gotMode, gotPrompt = mode, p
		return "slides text", nil
	}
	m.i.OnIndex = func(ctx context.Context, u, text string) (int, error) {
		indexedFor = u
		assert.Equal(t, "slides text", text)
		return 3, nil
	}
	m.g.OnGenerate = func(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error) {
		gotReq = req
		return commonModels.QuizResult{Questions: []commonModels.GeneratedQuestion{sampleQuestion()}}, nil
	}

	setting := commonModels.ExamSetting{
		MultipleChoice:    2,
		ShortAnswer:       1,
		Essay:             1,
		CustomPrompt:      "focus on routing",
		CustomImagePrompt: "describe diagrams",
		IsTextCentered:    1,
		IsLectureOnly:     1,
	}
	_, err := svc.GenerateQuiz(context.Background(), principal, pdfDoc(), setting)
	require.NoError(t, err)

	assert.Equal(t, commonModels.ModeVisionAnalysis, gotMode)
	assert.Equal(t, "describe diagrams", gotPrompt)
	assert.Equal(t, "u1", indexedFor)
	assert.Equal(t, quiz.Request{
		Text:           "slides text",
		MultipleChoice: 2,
		ShortAnswer:    2,
		CustomPrompt:   "focus on routing",
		LectureOnly:    true,
	}, gotReq)
}

func TestGenerateQuiz_OCRIgnoresImagePrompt(t *testing.T) {
	svc, m := newService()
	m.e.OnExtract = func(ctx context.Context, d commonModels.Document, mode commonModels.ExtractionMode, p string) (string, error) {
		assert.Equal(t, commonModels.ModeCharacterRecognition, mode)
		assert.Empty(t, p)
		return "text", nil
	}
	_, err := svc.GenerateQuiz(context.Background(), principal, pdfDoc(), commonModels.ExamSetting{MultipleChoice: 1, CustomImagePrompt: "ignored"})
	require.NoError(t, err)
}

func TestGenerateQuiz_TagsUser(t *testing.T) {
	svc, m := newService()
	m.g.OnGenerate = func(ctx context.Context, req quiz.Request) (commonModels.QuizResult, error) {
		return commonModels.QuizResult{}, apperr.GenerationFormat("generate", nil, "bad json")
	}
	_, err := svc.GenerateQuiz(context.Background(), principal, pdfDoc(), commonModels.ExamSetting{MultipleChoice: 1})

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "u1", ae.UserID)
}

func TestGradeAnswers(t *testing.T) {
	t.Run("Empty_Batch_Is_Validation", func(t *testing.T) {
		svc, _ := newService()
		_, err := svc.GradeAnswers(context.Background(), principal, nil)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("Malformed_Question_Is_Validation", func(t *testing.T) {
		svc, m := newService()
		var calls atomic.Int32
		m.r.OnGradeBatch = func(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
			calls.Add(1)
			return nil, nil
		}
		noChoices := sampleQuestion()
		noChoices.Choices = commonModels.Choices{}
		items := []commonModels.GradingItem{
			{Question: sampleQuestion(), Answer: "1"},
			{Question: noChoices, Answer: "1"},
		}

		_, err := svc.GradeAnswers(context.Background(), principal, items)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Contains(t, apperr.PublicMessage(err), "item 1")
		assert.Equal(t, int32(0), calls.Load(), "grader must not be called for a malformed batch")
	})

	t.Run("Delegates_To_Grader", func(t *testing.T) {
		svc, m := newService()
		var calls atomic.Int32
		m.r.OnGradeBatch = func(ctx context.Context, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
			calls.Add(1)
			return []commonModels.GradingResult{{Index: 0, Verdict: commonModels.VerdictPartial, Score: 0.5}}, nil
		}
		out, err := svc.GradeAnswers(context.Background(), principal, []commonModels.GradingItem{{Question: sampleQuestion(), Answer: "1"}})
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, commonModels.VerdictPartial, out[0].Verdict)
	})
}

func TestSearch_UsesPrincipal(t *testing.T) {
	svc, m := newService()
	m.i.OnQuery = func(ctx context.Context, u, q string) ([]commonModels.SearchHit, error) {
		assert.Equal(t, "u1", u)
		assert.Equal(t, "tcp", q)
		return []commonModels.SearchHit{{Rank: 1, Content: "tcp handshake"}}, nil
	}
	hits, err := svc.Search(context.Background(), principal, "tcp")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestProcessQuizJob(t *testing.T) {
	writeUpload := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), "upload.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
		return path
	}

	t.Run("Success_Stores_Quiz_And_Removes_File", func(t *testing.T) {
		svc, _ := newService()
		path := writeUpload(t)
		job := jobModel.Job{
			Id:     "j1",
			UserId: "u1",
			JobPayload: jobModel.JobPayload{
				DocumentName: "upload.pdf",
				DocumentPath: path,
				DocumentKind: commonModels.PDF,
				ExamSetting:  commonModels.ExamSetting{MultipleChoice: 1},
			},
		}

		out := svc.ProcessQuizJob(context.Background(), job)
		assert.Equal(t, jobModel.JobStatusComplete, out.Status)
		assert.Equal(t, jobModel.Complete, out.CurrentStep)
		require.NotNil(t, out.JobPayload.Quiz)
		assert.Len(t, out.JobPayload.Quiz.Questions, 1)

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Failure_Maps_Kind_To_Status", func(t *testing.T) {
		svc, m := newService()
		m.i.OnIndex = func(ctx context.Context, u, text string) (int, error) {
			return 0, apperr.BackendUnavailable("index", nil, "vector store unavailable")
		}
		job := jobModel.Job{
			Id:     "j2",
			UserId: "u1",
			JobPayload: jobModel.JobPayload{
				DocumentPath: writeUpload(t),
				DocumentKind: commonModels.PDF,
				ExamSetting:  commonModels.ExamSetting{MultipleChoice: 1},
			},
		}

		out := svc.ProcessQuizJob(context.Background(), job)
		assert.Equal(t, jobModel.JobStatusError, out.Status)
		assert.Equal(t, jobModel.Error, out.CurrentStep)
		assert.Equal(t, http.StatusServiceUnavailable, out.Error.Code)
		assert.Equal(t, string(apperr.KindBackendUnavailable), out.Error.Kind)
		assert.Equal(t, "vector store unavailable", out.Error.Message)
		assert.True(t, out.Error.Retry)
		assert.Nil(t, out.JobPayload.Quiz)
	})

	t.Run("Missing_File_Is_Internal", func(t *testing.T) {
		svc, _ := newService()
		job := jobModel.Job{Id: "j3", UserId: "u1", JobPayload: jobModel.JobPayload{DocumentPath: filepath.Join(t.TempDir(), "gone.pdf")}}

		out := svc.ProcessQuizJob(context.Background(), job)
		assert.Equal(t, jobModel.JobStatusError, out.Status)
		assert.Equal(t, http.StatusInternalServerError, out.Error.Code)
		assert.False(t, out.Error.Retry)
	})
}
