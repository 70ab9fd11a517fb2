package reading

import (
	"encoding/json"
	"time"

	"github.com/abhisek/lunareading/internal/evaluation"
)

// SessionSummary is a session in the user's session list.
type SessionSummary struct {
	ID                 int        `json:"id"`
	BookTitle          string     `json:"book_title"`
	Chapter            string     `json:"chapter"`
	TotalQuestions     int        `json:"total_questions"`
	CompletedQuestions int        `json:"completed_questions"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

// SessionDetail is a session with its questions.
type SessionDetail struct {
	ID             int            `json:"id"`
	BookTitle      string         `json:"book_title"`
	Chapter        string         `json:"chapter"`
	TotalQuestions int            `json:"total_questions"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	Questions      []QuestionView `json:"questions"`
}

// QuestionView is a question as the student sees it. Model answers are
// never included. Answer fields come from the final answer and Examples
// from the initial submission.
type QuestionView struct {
	ID       int      `json:"id"`
	Number   int      `json:"question_number"`
	Text     string   `json:"question_text"`
	Answer   *string  `json:"answer"`
	Score    *float64 `json:"score"`
	Rating   *int     `json:"rating"`
	Feedback *string  `json:"feedback"`
	Examples []string `json:"examples"`
}

// SubmitResult is the outcome of submitting an answer.
type SubmitResult struct {
	AnswerID         int      `json:"answer_id"`
	Score            float64  `json:"score"`
	Feedback         string   `json:"feedback"`
	IsSufficient     bool     `json:"is_sufficient"`
	IsFinal          bool     `json:"is_final"`
	SubmissionType   string   `json:"submission_type"`
	Examples         []string `json:"examples,omitempty"`
	Rating           *int     `json:"rating,omitempty"`
	Message          string   `json:"message,omitempty"`
	SessionCompleted bool     `json:"session_completed,omitempty"`
}

// MarshalJSON always includes rating, possibly null, on retry and final
// results. Initial results never carry one.
func (r SubmitResult) MarshalJSON() ([]byte, error) {
	type plain SubmitResult
	if r.SubmissionType == evaluation.TypeInitial {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Rating *int `json:"rating"`
	}{plain(r), r.Rating})
}

// AnswerView is one stored submission.
type AnswerView struct {
	ID             int       `json:"id"`
	AnswerText     string    `json:"answer_text"`
	Feedback       string    `json:"feedback"`
	Score          *float64  `json:"score"`
	Rating         *int      `json:"rating"`
	Examples       []string  `json:"examples"`
	IsFinal        bool      `json:"is_final"`
	SubmissionType string    `json:"submission_type"`
	CreatedAt      time.Time `json:"created_at"`
}
