package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	jobmodel "github.com/akolanti/StudyMentor/internal/domain/jobModel"
	"github.com/akolanti/StudyMentor/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("Processing job")

	job.Status = jobmodel.JobStatusRunning
	saveJobState(ctx, job)

	switch job.JobType {
	case jobmodel.JobTypeQuiz:
		job = _ragService.ProcessQuizJob(ctx, job)
	default:
		log.Error("Unknown job type", "jobType", job.JobType)
		job.Status = jobmodel.JobStatusError
		job.CurrentStep = jobmodel.Error
		job.Error = jobmodel.JobError{Code: 500, Message: "unknown job type"}
	}

	if job.Status == jobmodel.JobStatusRunning {
		job.Status = jobmodel.JobStatusComplete
	}
	job.EndTime = time.Now()
	// the job ctx may have expired; the final state must still land
	saveJobState(context.WithoutCancel(ctx), job)
	log.Info("Job finished", "status", job.Status, "elapsed", time.Since(start))
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job) {
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.WithTrace(ctx).Error("Failed to update job state", "jobId", job.Id, "error", err)
	}
}
