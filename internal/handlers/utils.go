package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/StudyMentor/internal/adapter"
	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

const (
	msgNoFilePart       = "No file part"
	msgNoSelectedFile   = "No selected file"
	msgNoExamSetting    = "No examSetting found in the form data"
	msgInvalidSetting   = "Invalid JSON format in examSetting"
	msgFileTooLarge     = "File too large"
	msgProcessingFailed = "Processing failed: "
)

func (h *Handlers) writeJsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// status is already out
		h.logger.Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	_ = json.NewEncoder(w).Encode(adapter.BadRequest(id, error, httpCode))
}

// writeAppError maps the error kind to its status and prefixes the public message.
func writeAppError(w http.ResponseWriter, err error, prefix string) {
	kind := apperr.KindOf(err)
	WriteErrorResponse(w, apperr.HTTPStatus(kind), "", prefix+apperr.PublicMessage(err))
}

func traceId(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func (h *Handlers) validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		h.logger.WithTrace(ctx).Warn("context error", "error", ctx.Err())
		return false
	}
	return true
}

// principal is set by the auth middleware; its absence means the route was mounted without it.
func (h *Handlers) principal(w http.ResponseWriter, r *http.Request) (commonModels.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteErrorResponse(w, http.StatusUnauthorized, "", auth.MsgTokenMissing)
	}
	return p, ok
}

func getTargetDirectory() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", err
	}
	targetDir := filepath.Join(root, config.UploadDirectory)
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", err
	}
	return targetDir, nil
}

type uploadForm struct {
	fileName string
	content  []byte
	setting  commonModels.ExamSetting
}

// parseUpload reads the multipart file and examSetting fields. On failure it has
// already written the response.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request) (uploadForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "", msgFileTooLarge)
			return uploadForm{}, false
		}
		WriteErrorResponse(w, http.StatusBadRequest, "", msgNoFilePart)
		return uploadForm{}, false
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", msgNoFilePart)
		return uploadForm{}, false
	}
	defer fileReader.Close()
	if fileMetadata.Filename == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", msgNoSelectedFile)
		return uploadForm{}, false
	}

	raw := r.FormValue("examSetting")
	if raw == "" {
		WriteErrorResponse(w, http.StatusBadRequest, fileMetadata.Filename, msgNoExamSetting)
		return uploadForm{}, false
	}
	var setting commonModels.ExamSetting
	if err := json.Unmarshal([]byte(raw), &setting); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, fileMetadata.Filename, msgInvalidSetting)
		return uploadForm{}, false
	}
	if err := setting.Validate(); err != nil {
		writeAppError(w, err, "")
		return uploadForm{}, false
	}

	content, err := io.ReadAll(fileReader)
	if err != nil {
		h.logger.WithTrace(r.Context()).Error("reading upload failed", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, fileMetadata.Filename, msgNoFilePart)
		return uploadForm{}, false
	}
	if len(content) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, fileMetadata.Filename, msgNoSelectedFile)
		return uploadForm{}, false
	}
	return uploadForm{fileName: fileMetadata.Filename, content: content, setting: setting}, true
}

// decodeOptionalBody returns false with no error when the body is empty.
func decodeOptionalBody(r *http.Request, v any) (bool, error) {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("decoding body: %w", err)
	}
	return true, nil
}
