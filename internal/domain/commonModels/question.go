package commonModels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/akolanti/StudyMentor/internal/config"
)

type QuestionCase int

const (
	CaseObjective  QuestionCase = 0
	CaseSubjective QuestionCase = 1
)

func (c QuestionCase) String() string {
	if c == CaseSubjective {
		return "subjective"
	}
	return "objective"
}

// Choices is either an ordered option list or the blank sentinel used by subjective questions.
type Choices struct {
	Options []string
	Blank   bool
}

func BlankChoices() Choices { return Choices{Blank: true} }

func (c Choices) MarshalJSON() ([]byte, error) {
	if c.Blank {
		return json.Marshal(config.SubjectiveChoicesSentinel)
	}
	if c.Options == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Options)
}

func (c *Choices) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("choices: missing value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != config.SubjectiveChoicesSentinel {
			return fmt.Errorf("choices: unexpected string %q", s)
		}
		*c = BlankChoices()
		return nil
	}
	var opts []string
	if err := json.Unmarshal(data, &opts); err != nil {
		return fmt.Errorf("choices: %w", err)
	}
	*c = Choices{Options: opts}
	return nil
}

// Answer is an option index for objective questions and free text for subjective ones.
type Answer struct {
	Index   int
	Text    string
	IsIndex bool
}

func IndexAnswer(i int) Answer   { return Answer{Index: i, IsIndex: true} }
func TextAnswer(s string) Answer { return Answer{Text: s} }

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsIndex {
		return json.Marshal(a.Index)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("correct_answer: missing value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("correct_answer: %w", err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("correct_answer: %v is not an integer index", f)
	}
	*a = IndexAnswer(int(f))
	return nil
}

func (a Answer) String() string {
	if a.IsIndex {
		return fmt.Sprintf("%d", a.Index)
	}
	return a.Text
}

type GeneratedQuestion struct {
	Case          QuestionCase `json:"case"`
	Question      string       `json:"question"`
	Choices       Choices      `json:"choices"`
	CorrectAnswer Answer       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Intent        string       `json:"intent"`
}

// IsSubjective routes on the choices field, not on case.
func (q GeneratedQuestion) IsSubjective() bool {
	return q.Choices.Blank
}

// Validate checks the shape invariants: objective answers index into choices,
// subjective questions carry the blank sentinel and a non-empty text answer.
func (q GeneratedQuestion) Validate() error {
	if q.Question == "" {
		return errors.New("question text is empty")
	}
	switch q.Case {
	case CaseObjective:
		if q.Choices.Blank {
			return errors.New("objective question has blank choices")
		}
		if len(q.Choices.Options) < 2 {
			return fmt.Errorf("objective question needs at least 2 choices, got %d", len(q.Choices.Options))
		}
		if !q.CorrectAnswer.IsIndex {
			return fmt.Errorf("objective correct_answer %q is not an index", q.CorrectAnswer.Text)
		}
		if q.CorrectAnswer.Index < 0 || q.CorrectAnswer.Index >= len(q.Choices.Options) {
			return fmt.Errorf("correct_answer %d out of range for %d choices", q.CorrectAnswer.Index, len(q.Choices.Options))
		}
	case CaseSubjective:
		if !q.Choices.Blank {
			return errors.New("subjective question must use the blank choices sentinel")
		}
		if q.CorrectAnswer.IsIndex || q.CorrectAnswer.Text == "" {
			return errors.New("subjective correct_answer must be a non-empty string")
		}
	default:
		return fmt.Errorf("unknown case %d", q.Case)
	}
	return nil
}

type GradingItem struct {
	Question GeneratedQuestion `json:"question"`
	Answer   string            `json:"answer"`
}

type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictPartial   Verdict = "partially_correct"
	VerdictIncorrect Verdict = "incorrect"
)

func (v Verdict) Valid() bool {
	return v == VerdictCorrect || v == VerdictPartial || v == VerdictIncorrect
}

// GradingResult carries either a verdict or a per-item error, never both.
type GradingResult struct {
	Index     int          `json:"index"`
	Case      QuestionCase `json:"case"`
	Verdict   Verdict      `json:"verdict,omitempty"`
	Score     float64      `json:"score"`
	Feedback  string       `json:"feedback,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
}
