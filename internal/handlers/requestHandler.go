package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/adapter"
	"github.com/akolanti/StudyMentor/internal/adapter/utils"
	"github.com/akolanti/StudyMentor/internal/api"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/rag"
	"github.com/akolanti/StudyMentor/internal/verification"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

type Handlers struct {
	rag          rag.Service
	verification verification.Service
	jobs         *JobHandler
	logger       *logger_i.Logger
}

func New(ragService rag.Service, verificationService verification.Service, jobs *JobHandler) *Handlers {
	return &Handlers{
		rag:          ragService,
		verification: verificationService,
		jobs:         jobs,
		logger:       logger_i.NewLogger("RequestHandler"),
	}
}

func (h *Handlers) GetHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJsonResponse(w, http.StatusOK, api.MessageResponse{Message: "good"})
}

// UploadPDFHandler godoc
// @Summary      Generate a quiz from a PDF
// @Description  Extracts the PDF (OCR when isTextCentered=0, vision when 1), indexes the text for the caller and generates questions.
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file         formData  file    true  "PDF study material"
// @Param        examSetting  formData  string  true  "ExamSetting JSON"
// @Success      200  {object}  api.QuizResponse
// @Failure      400  {object}  api.ErrorResponse  "Missing file or examSetting"
// @Failure      401  {object}  api.ErrorResponse
// @Failure      422  {object}  api.ErrorResponse  "Document could not be processed"
// @Failure      502  {object}  api.ErrorResponse  "Model output failed validation"
// @Failure      503  {object}  api.ErrorResponse  "Backend unavailable"
// @Router       /upload/pdf [post]
func (h *Handlers) UploadPDFHandler(w http.ResponseWriter, r *http.Request) {
	h.generateQuiz(w, r, commonModels.PDF)
}

// UploadImageHandler godoc
// @Summary      Generate a quiz from one image
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file         formData  file    true  "JPEG or PNG study material"
// @Param        examSetting  formData  string  true  "ExamSetting JSON"
// @Success      200  {object}  api.QuizResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      422  {object}  api.ErrorResponse
// @Router       /upload/image [post]
func (h *Handlers) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	h.generateQuiz(w, r, commonModels.IMAGE)
}

func (h *Handlers) generateQuiz(w http.ResponseWriter, r *http.Request, kind commonModels.DocKind) {
	if !h.validateContext(r.Context()) {
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	form, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	doc := commonModels.Document{Name: form.fileName, Kind: kind, Content: form.content}
	result, err := h.rag.GenerateQuiz(r.Context(), principal, doc, form.setting)
	if err != nil {
		h.logger.WithTrace(r.Context()).Error("quiz generation failed", "userId", principal.UserId, "error", err)
		writeAppError(w, err, msgProcessingFailed)
		return
	}
	h.writeJsonResponse(w, http.StatusOK, adapter.ToQuizResponse(result))
}

// FeedbackHandler godoc
// @Summary      Grade answers
// @Description  Grades every item concurrently. One item failing is reported on that item only. An empty body returns {"message":"good"}.
// @Tags         Feedback
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.FeedbackRequest  false  "Questions and the user's answers"
// @Success      200      {object}  api.FeedbackResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /feedback [post]
func (h *Handlers) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req api.FeedbackRequest
	present, err := decodeOptionalBody(r, &req)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	if !present {
		h.writeJsonResponse(w, http.StatusOK, api.MessageResponse{Message: "good"})
		return
	}

	results, err := h.rag.GradeAnswers(r.Context(), principal, req.Items)
	if err != nil {
		writeAppError(w, err, "")
		return
	}
	h.writeJsonResponse(w, http.StatusOK, api.FeedbackResponse{Results: results})
}

// SearchHandler godoc
// @Summary      Search the caller's study material
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.SearchRequest  true  "Query text"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /search [post]
func (h *Handlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req api.SearchRequest
	if _, err := decodeOptionalBody(r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "query is required")
		return
	}
	hits, err := h.rag.Search(r.Context(), principal, req.Query)
	if err != nil {
		writeAppError(w, err, "")
		return
	}
	if hits == nil {
		hits = []commonModels.SearchHit{}
	}
	h.writeJsonResponse(w, http.StatusOK, api.SearchResponse{Results: hits})
}

// PostQuizJobHandler godoc
// @Summary      Queue quiz generation
// @Description  Same form as /upload/pdf plus an optional kind (pdf or image). Returns a job id to poll.
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file         formData  file    true   "Study material"
// @Param        examSetting  formData  string  true   "ExamSetting JSON"
// @Param        kind         formData  string  false  "pdf (default) or image"
// @Success      202  {object}  api.InitJobResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse  "Storage error"
// @Router       /jobs/quiz [post]
func (h *Handlers) PostQuizJobHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	form, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	kind := commonModels.PDF
	if raw := r.FormValue("kind"); raw != "" {
		if kind, ok = commonModels.ParseDocKind(raw); !ok {
			WriteErrorResponse(w, http.StatusBadRequest, form.fileName, "kind must be pdf or image")
			return
		}
	}

	targetDir, err := getTargetDirectory()
	if err != nil {
		h.logger.Error("Couldn't get target directory", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage Error")
		return
	}
	tempFilePath := filepath.Join(targetDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(form.fileName)))
	if err := os.WriteFile(tempFilePath, form.content, 0o600); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, form.fileName, "Write error")
		return
	}

	newJob := newJobData{
		id:           utils.GetNewUUID(),
		traceId:      traceId(r.Context()),
		userId:       principal.UserId,
		documentName: form.fileName,
		documentPath: tempFilePath,
		documentKind: kind,
		setting:      form.setting,
	}
	if err := h.jobs.CreateQuizJob(r.Context(), newJob); err != nil {
		_ = os.Remove(tempFilePath)
		h.logger.WithTrace(r.Context()).Error("queueing quiz job failed", "error", err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, newJob.id, "Job queue unavailable")
		return
	}
	h.writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

// GetStatusHandler godoc
// @Summary      Get quiz job status
// @Description  Returns the job with its quiz once complete, or its error. Jobs of other users are reported as not found.
// @Tags         Jobs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse
// @Failure      404  {object}  api.ErrorResponse  "Job not found"
// @Router       /status/{id} [get]
func (h *Handlers) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	idString := utils.GetChiURLParam(r, "id")
	result, isFound := h.jobs.GetJobStatus(r.Context(), idString)
	if !isFound || result.UserId != principal.UserId {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	h.writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// SendCodeHandler godoc
// @Summary      Mail a verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.EmailRequest  true  "Address to verify"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse  "Email is required"
// @Failure      503      {object}  api.ErrorResponse  "Failed to send email"
// @Router       /auth/email [post]
func (h *Handlers) SendCodeHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	var req api.EmailRequest
	if _, err := decodeOptionalBody(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", verification.MsgEmailRequired)
		return
	}
	if err := h.verification.SendCode(r.Context(), req.Email); err != nil {
		writeAppError(w, err, "")
		return
	}
	h.writeJsonResponse(w, http.StatusOK, api.MessageResponse{Message: verification.MsgCodeSent})
}

// VerifyCodeHandler godoc
// @Summary      Check a verification code
// @Description  A matching code is consumed and cannot be used again.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.VerificationRequest  true  "Address and code"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse  "Missing, expired or mismatched code"
// @Router       /auth/num [post]
func (h *Handlers) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r.Context()) {
		return
	}
	var req api.VerificationRequest
	if _, err := decodeOptionalBody(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", verification.MsgMissingFields)
		return
	}
	if err := h.verification.VerifyCode(r.Context(), req.Email, req.SubmittedCode()); err != nil {
		if !apperr.Is(err, apperr.KindValidation) {
			h.logger.WithTrace(r.Context()).Error("verification failed", "error", err)
		}
		writeAppError(w, err, "")
		return
	}
	h.writeJsonResponse(w, http.StatusOK, api.MessageResponse{Message: verification.MsgVerified})
}
