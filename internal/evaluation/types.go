// Package evaluation scores a student's answer with an LLM and applies the
// initial / retry / final submission rules.
package evaluation

import "fmt"

// Submission types.
const (
	TypeInitial = "initial"
	TypeRetry   = "retry"
	TypeFinal   = "final"
)

// SufficientScore is the score at which an answer counts as good enough.
const SufficientScore = 0.7

// Kind selects which prompt evaluates a submission.
type Kind int

const (
	// KindInitial scores a first attempt and returns fill-in-the-blank examples.
	KindInitial Kind = iota
	// KindRetry scores a revision and rates it only when it is sufficient.
	KindRetry
	// KindFinal scores the last attempt and always rates it.
	KindFinal
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return TypeInitial
	case KindRetry:
		return TypeRetry
	default:
		return TypeFinal
	}
}

// KindFor picks the prompt for a submission. Only the first submission to a
// question gets the initial prompt. Unknown types are evaluated as final.
func KindFor(submissionType string, firstSubmission bool) Kind {
	switch {
	case submissionType == TypeInitial && firstSubmission:
		return KindInitial
	case submissionType == TypeRetry:
		return KindRetry
	default:
		return KindFinal
	}
}

// Request is the input to an evaluation.
type Request struct {
	QuestionText    string
	ModelAnswer     string
	AnswerText      string
	SubmissionType  string
	FirstSubmission bool
}

// Evaluation is the normalized result of scoring an answer.
type Evaluation struct {
	Kind         Kind
	Score        float64
	Feedback     string
	Examples     []string
	Rating       *int
	IsSufficient bool
}

// IsFinal reports whether a submission of the given type with this
// evaluation closes the question. A retry closes it once it is sufficient.
func IsFinal(submissionType string, ev *Evaluation) bool {
	switch submissionType {
	case TypeFinal:
		return true
	case TypeRetry:
		return ev.IsSufficient
	default:
		return false
	}
}

// Message is the guidance shown to the student after a submission. It is
// empty when there is nothing to add to the feedback.
func Message(submissionType string, ev *Evaluation) string {
	switch submissionType {
	case TypeInitial:
		if len(ev.Examples) > 0 {
			return "Review the feedback and examples below, then refine your answer."
		}
	case TypeRetry:
		if ev.Rating != nil {
			return fmt.Sprintf("Great improvement! Your answer received a rating of %d/5.", *ev.Rating)
		}
		return "Please continue refining your answer based on the feedback."
	case TypeFinal:
		if ev.Rating != nil {
			return fmt.Sprintf("Final answer submitted! Your answer received a rating of %d/5.", *ev.Rating)
		}
		return "Final answer submitted!"
	}
	return ""
}
