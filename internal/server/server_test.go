package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akolanti/StudyMentor/internal/adapter/utils"
	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/data/store"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/handlers"
	"github.com/akolanti/StudyMentor/internal/job"
	"github.com/akolanti/StudyMentor/internal/middleware"
	"github.com/akolanti/StudyMentor/internal/verification"
	"github.com/stretchr/testify/assert"
)

type nopRag struct{}

func (nopRag) GenerateQuiz(ctx context.Context, p commonModels.Principal, d commonModels.Document, s commonModels.ExamSetting) (commonModels.QuizResult, error) {
	return commonModels.QuizResult{}, nil
}

func (nopRag) GradeAnswers(ctx context.Context, p commonModels.Principal, items []commonModels.GradingItem) ([]commonModels.GradingResult, error) {
	return nil, nil
}

func (nopRag) Search(ctx context.Context, p commonModels.Principal, q string) ([]commonModels.SearchHit, error) {
	return []commonModels.SearchHit{}, nil
}

func (nopRag) ProcessQuizJob(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

type nopMailer struct{}

func (nopMailer) Send(ctx context.Context, to, subject, body string) error { return nil }

func newTestRouter() http.Handler {
	jobs := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 1),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          store.NewInMemoryJobStore(),
	})
	verifier := auth.NewStaticTokenVerifier("secret", "u1")
	r := utils.NewRouter()
	RegisterRoutes(r, Routes{
		Handlers: handlers.New(nopRag{}, verification.NewService(store.NewInMemoryCodeStore(), nopMailer{}), handlers.NewJobHandler(jobs)),
		Chain:    middleware.New(verifier, nil),
		MCP: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	return r
}

func TestRoutes_AuthGating(t *testing.T) {
	router := newTestRouter()
	tests := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/upload/pdf", "", http.StatusUnauthorized},
		{http.MethodPost, "/upload/image", "wrong", http.StatusUnauthorized},
		{http.MethodPost, "/feedback", "", http.StatusUnauthorized},
		{http.MethodPost, "/feedback", "secret", http.StatusOK},
		{http.MethodPost, "/auth/email", "", http.StatusUnauthorized},
		{http.MethodPost, "/auth/num", "", http.StatusUnauthorized},
		{http.MethodGet, "/status/abc", "secret", http.StatusNotFound},
		{http.MethodPost, "/mcp", "", http.StatusUnauthorized},
		{http.MethodPost, "/mcp", "secret", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
