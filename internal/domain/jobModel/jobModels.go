package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	QuizInit     InternalStatus = "Init"
	ExtractCall  InternalStatus = "Extract"
	IndexCall    InternalStatus = "Index"
	GenerateCall InternalStatus = "Generate"
	Error        InternalStatus = "Error"
	Complete     InternalStatus = "Complete"

	JobTypeQuiz JobType = "Quiz"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	UserId      string         `json:"user_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	DocumentName string                   `json:"document_name,omitempty"`
	DocumentPath string                   `json:"document_path,omitempty"`
	DocumentKind commonModels.DocKind     `json:"document_kind,omitempty"`
	ExamSetting  commonModels.ExamSetting `json:"exam_setting"`
	Quiz         *commonModels.QuizResult `json:"quiz,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
