package handlers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/job"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type JobHandler struct {
	service *job.Service
	logger  *logger_i.Logger
}

type newJobData struct {
	id           string
	traceId      string
	userId       string
	documentName string
	documentPath string
	documentKind commonModels.DocKind
	setting      commonModels.ExamSetting
}

func NewJobHandler(jobService *job.Service) *JobHandler {
	h := &JobHandler{service: jobService, logger: logger_i.NewLogger("JobHandler")}
	h.logger.Info("Starting job handler")
	return h
}

// CreateQuizJob records the job as queued before handing it to the pool,
// so a status lookup right after the 202 never misses it.
func (h *JobHandler) CreateQuizJob(ctx context.Context, newJob newJobData) error {
	log := h.logger.With("traceId", newJob.traceId, "jobId", newJob.id)
	log.Info("To create new job")

	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		UserId:      newJob.userId,
		JobType:     jobModel.JobTypeQuiz,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.QuizInit,
		JobPayload: jobModel.JobPayload{
			DocumentName: newJob.documentName,
			DocumentPath: newJob.documentPath,
			DocumentKind: newJob.documentKind,
			ExamSetting:  newJob.setting,
		},
	}
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		return fmt.Errorf("saving queued job: %w", err)
	}
	return h.pushToJobChannel(ctx, _job, log)
}

func (h *JobHandler) GetJobStatus(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		return jobModel.Job{}, false
	}
	return h.service.JobStore.GetJob(ctx, id)
}

func (h *JobHandler) pushToJobChannel(ctx context.Context, _job jobModel.Job, log *logger_i.Logger) error {
	metrics.IncrementJobsInQueue()

	//blocking send keeps producers from outrunning the pool
	select {
	case h.service.JobChannel <- _job:
	case <-ctx.Done():
		metrics.DecrementJobsInQueue()
		h.service.JobStore.DeleteJob(context.WithoutCancel(ctx), _job.Id)
		return ctx.Err()
	}
	log.Info("Created new job")

	//quiz jobs call several backends, so every Nth request also asks for another worker
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 {
		metrics.StartDispatcherSignalCount()
		log.Debug("Requesting new worker", "requestCount", accurateCount)
		select {
		case h.service.DispatcherChannel <- true:
		default:
		}
	}
	return nil
}
