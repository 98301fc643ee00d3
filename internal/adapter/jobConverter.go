package adapter

import (
	"fmt"

	"github.com/akolanti/StudyMentor/internal/api"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	var result *api.QuizResponse
	if job.JobPayload.Quiz != nil {
		q := ToQuizResponse(*job.JobPayload.Quiz)
		result = &q
	}

	return api.JobResponse{
		Id:          job.Id,
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
		Result:      result,
		Error:       errorPtr,
		StartTime:   job.CreatedTime,
		EndTime:     job.EndTime,
	}
}

// ToQuizResponse never emits a null quiz_data.
func ToQuizResponse(result commonModels.QuizResult) api.QuizResponse {
	questions := result.Questions
	if questions == nil {
		questions = []commonModels.GeneratedQuestion{}
	}
	return api.QuizResponse{QuizData: questions, Anomalies: result.Anomalies}
}

func BadRequest(id string, error string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Error: error,
		Code:  code,
		Id:    id,
	}
}
