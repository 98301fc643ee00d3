package grading

import (
	"strings"
	"text/template"

	"github.com/akolanti/StudyMentor/internal/rag/llm"
)

const objectiveIntro = `You are grading a multiple-choice question.
Question: {{.Question}}
Options:
{{range $i, $c := .Choices}}  {{$i}}. {{$c}}
{{end}}Correct option index: {{.CorrectAnswer}}
Explanation: {{.Explanation}}
Student's answer: {{.Submitted}}
The student may answer with the option index or the option text. Any other option is incorrect.`

const subjectiveIntro = `You are grading a short-answer question.
Question: {{.Question}}
Model answer: {{.CorrectAnswer}}
Explanation: {{.Explanation}}
Student's answer: {{.Submitted}}
Judge meaning, not wording. Award partial credit when the core idea is present but incomplete.`

const start = `Grade the student's answer.
Reply with a JSON object holding:
- "verdict": one of "correct", "partially_correct", "incorrect"
- "score": a number from 0 to 1
- "feedback": one or two sentences for the student, in the language of the question`

const final = `{{.Intro}}

{{.Start}}`

const systemInstruction = "You are a fair and concise exam grader. Reply only with JSON."

type promptData struct {
	Question      string
	Choices       []string
	CorrectAnswer string
	Explanation   string
	Submitted     string
}

// pipeline renders a kind-specific intro and the shared start stage, then composes them.
type pipeline struct {
	intro *template.Template
	start *template.Template
	final *template.Template
}

func newPipeline(intro string) pipeline {
	return pipeline{
		intro: template.Must(template.New("intro").Parse(intro)),
		start: template.Must(template.New("start").Parse(start)),
		final: template.Must(template.New("final").Parse(final)),
	}
}

func (p pipeline) render(data promptData) (string, error) {
	var intro, startStage, out strings.Builder
	if err := p.intro.Execute(&intro, data); err != nil {
		return "", err
	}
	if err := p.start.Execute(&startStage, data); err != nil {
		return "", err
	}
	err := p.final.Execute(&out, struct{ Intro, Start string }{intro.String(), startStage.String()})
	return out.String(), err
}

var verdictFields = []string{"verdict", "score", "feedback"}

func gradingSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"verdict":  llm.Enum("Overall judgement", "correct", "partially_correct", "incorrect"),
		"score":    llm.Number("Score between 0 and 1"),
		"feedback": llm.String("Feedback for the student"),
	}, verdictFields...)
}
