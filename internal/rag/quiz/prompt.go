package quiz

import (
	"fmt"
	"strings"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/rag/llm"
)

const baseInstruction = `You are an exam writer preparing a test from a student's study material.
Write exactly %d multiple-choice questions (case 0) and exactly %d short-answer questions (case 1).

Rules:
- Multiple-choice: "choices" lists 4 distinct options and "correct_answer" is the 0-based index of the right option.
- Short-answer: "choices" is exactly the string "%s" and "correct_answer" is a complete model answer.
- "explanation" explains why the answer is right; "intent" states what the question checks.
- Write questions in the same language as the study material.
`

const lectureOnlyRule = "- Use only facts stated in the study material.\n"
const openDomainRule = "- You may add closely related general knowledge, but every question must stay on the material's topics.\n"

func systemPrompt(multipleChoice, shortAnswer int, lectureOnly bool, customPrompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, baseInstruction, multipleChoice, shortAnswer, config.SubjectiveChoicesSentinel)
	if lectureOnly {
		b.WriteString(lectureOnlyRule)
	} else {
		b.WriteString(openDomainRule)
	}
	if c := strings.TrimSpace(customPrompt); c != "" {
		b.WriteString("\nAdditional instructions from the student:\n")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}

func userPrompt(text string) string {
	return "Study material:\n" + text
}

var questionFields = []string{"case", "question", "choices", "correct_answer", "explanation", "intent"}

func quizSchema() *llm.Schema {
	question := llm.Object(map[string]*llm.Schema{
		"case":     llm.Integer("0 for multiple-choice, 1 for short-answer"),
		"question": llm.String("The question text"),
		"choices": llm.AnyOf("Options for multiple-choice, the blank marker for short-answer",
			llm.Array(llm.String(""), ""),
			llm.Enum("", config.SubjectiveChoicesSentinel),
		),
		"correct_answer": llm.AnyOf("Option index or model answer",
			llm.Integer(""),
			llm.String(""),
		),
		"explanation": llm.String("Why the answer is correct"),
		"intent":      llm.String("What the question is meant to check"),
	}, questionFields...)
	return llm.Object(map[string]*llm.Schema{
		config.QuizQuestionsField: llm.Array(question, "The generated questions"),
	}, config.QuizQuestionsField)
}
