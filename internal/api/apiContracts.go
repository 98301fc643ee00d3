package api

import (
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type ErrorResponse struct {
	Error string `json:"error" example:"Invalid JSON format in examSetting"`
	Code  int    `json:"code" example:"400"`
	Id    string `json:"id,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message" example:"good"`
}

type QuizResponse struct {
	QuizData  []commonModels.GeneratedQuestion `json:"quiz_data"`
	Anomalies []string                         `json:"anomalies,omitempty"`
}

type JobResponse struct {
	Id          string            `json:"id" example:"8c1f..."`
	Status      string            `json:"status" example:"COMPLETE"`
	CurrentStep string            `json:"current_step" example:"Generate"`
	Result      *QuizResponse     `json:"result,omitempty"`
	Error       *JobOutgoingError `json:"error,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"502"`
	Kind    string `json:"kind,omitempty" example:"GenerationFormatError"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type FeedbackResponse struct {
	Results []commonModels.GradingResult `json:"results"`
}

type SearchResponse struct {
	Results []commonModels.SearchHit `json:"results"`
}

// requests---------------------

type FeedbackRequest struct {
	Items []commonModels.GradingItem `json:"items" validate:"required"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type VerificationRequest struct {
	Email   string `json:"email" validate:"required"`
	AuthNum string `json:"authnum"`
	Code    string `json:"code,omitempty"`
}

func (r VerificationRequest) SubmittedCode() string {
	if r.AuthNum != "" {
		return r.AuthNum
	}
	return r.Code
}
