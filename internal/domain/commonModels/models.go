package commonModels

import (
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
)

type DocKind string

const (
	PDF   DocKind = "pdf"
	IMAGE DocKind = "image"
)

type ExtractionMode int

const (
	ModeCharacterRecognition ExtractionMode = 0
	ModeVisionAnalysis       ExtractionMode = 1
)

func (m ExtractionMode) String() string {
	if m == ModeVisionAnalysis {
		return "vision"
	}
	return "ocr"
}

// Document only lives for the duration of one extraction call.
type Document struct {
	Name    string
	Kind    DocKind
	Content []byte
}

func ParseDocKind(s string) (DocKind, bool) {
	switch DocKind(s) {
	case PDF:
		return PDF, true
	case IMAGE:
		return IMAGE, true
	}
	return "", false
}

type ExamSetting struct {
	MultipleChoice    int    `json:"multipleChoice"`
	ShortAnswer       int    `json:"shortAnswer"`
	Essay             int    `json:"essay"`
	ExamNumber        int    `json:"examNumber"`
	CustomPrompt      string `json:"custom_prompt"`
	CustomImagePrompt string `json:"custom_image_prompt"`
	IsTextCentered    int    `json:"isTextCentered"`
	IsLectureOnly     int    `json:"isLectureOnly"`
}

func (s ExamSetting) Validate() error {
	const op = "examSetting.validate"
	if s.MultipleChoice < 0 || s.ShortAnswer < 0 || s.Essay < 0 || s.ExamNumber < 0 {
		return apperr.Validation(op, "question counts must not be negative")
	}
	total := s.MultipleChoice + s.ShortAnswer + s.Essay
	if total == 0 {
		return apperr.Validation(op, "at least one question must be requested")
	}
	if s.ExamNumber != 0 && s.ExamNumber != total {
		return apperr.Validation(op, "examNumber %d does not match multipleChoice+shortAnswer+essay = %d", s.ExamNumber, total)
	}
	if s.IsTextCentered != 0 && s.IsTextCentered != 1 {
		return apperr.Validation(op, "isTextCentered must be 0 or 1")
	}
	if s.IsLectureOnly != 0 && s.IsLectureOnly != 1 {
		return apperr.Validation(op, "isLectureOnly must be 0 or 1")
	}
	return nil
}

func (s ExamSetting) Mode() ExtractionMode {
	if s.IsTextCentered == 1 {
		return ModeVisionAnalysis
	}
	return ModeCharacterRecognition
}

// SubjectiveCount folds essays into the short-answer category.
func (s ExamSetting) SubjectiveCount() int {
	return s.ShortAnswer + s.Essay
}

func (s ExamSetting) LectureOnly() bool {
	return s.IsLectureOnly == 1
}

type DocChunk struct {
	ChunkId    string    `json:"chunk_id"`
	UserId     string    `json:"user_id"`
	Chunk      string    `json:"content"`
	ChunkOrder int       `json:"chunk_order"`
	IngestedAt time.Time `json:"ingested_at"`
}

type SearchHit struct {
	Rank    int    `json:"result_idx"`
	Content string `json:"content"`
}

type Principal struct {
	UserId string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

func CollectionName(userId string) string {
	return fmt.Sprintf(config.UserCollectionFormat, userId)
}

type QuizResult struct {
	Questions []GeneratedQuestion `json:"quiz_data"`
	Anomalies []string            `json:"anomalies,omitempty"`
}
