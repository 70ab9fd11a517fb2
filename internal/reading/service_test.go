package reading

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lunareading/internal/evaluation"
	"github.com/abhisek/lunareading/internal/llm"
	"github.com/abhisek/lunareading/internal/questions"
	"github.com/abhisek/lunareading/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.Store
	mock  *llm.MockProvider
	user  *store.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := llm.NewMockProvider()
	svc := NewService(Deps{
		Store:     st,
		Generator: questions.New(mock, questions.DefaultConfig()),
		Evaluator: evaluation.New(mock, evaluation.DefaultConfig()),
	})

	return &fixture{svc: svc, store: st, mock: mock, user: addUser(t, st, "fern")}
}

func addUser(t *testing.T, st *store.Store, name string) *store.User {
	t.Helper()
	u := &store.User{Username: name, Email: name + "@example.com", PasswordHash: "x", GradeLevel: 5, ReadingLevel: 4.0}
	require.NoError(t, st.Users().Create(context.Background(), u))
	return u
}

func questionSet(n int) string {
	var items []string
	for i := 1; i <= n; i++ {
		items = append(items, fmt.Sprintf(`{"question_number": %d, "question_text": "Question %d?", "model_answer": "Answer %d."}`, i, i, i))
	}
	return `{"questions": [` + strings.Join(items, ",") + `]}`
}

func (f *fixture) createSession(t *testing.T, n int) *SessionDetail {
	t.Helper()
	f.mock.AddJSON(questionSet(n))
	detail, err := f.svc.CreateSession(context.Background(), f.user.ID, CreateSessionParams{
		BookTitle:      "Charlotte's Web",
		Chapter:        "1",
		TotalQuestions: &n,
	})
	require.NoError(t, err)
	return detail
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var e *Error
	require.True(t, errors.As(err, &e), "expected *Error, got %v", err)
	return e.StatusCode()
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	detail := f.createSession(t, 3)

	assert.Equal(t, "Charlotte's Web", detail.BookTitle)
	assert.Equal(t, 3, detail.TotalQuestions)
	require.Len(t, detail.Questions, 3)
	assert.Equal(t, "Question 1?", detail.Questions[0].Text)
	assert.Nil(t, detail.Questions[0].Answer)

	stored, err := f.store.Questions().ListBySession(context.Background(), detail.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "Answer 2.", stored[1].ModelAnswer)

	prompt := f.mock.LastCall().Messages[0].Content
	assert.Contains(t, prompt, "Generate 3 reading comprehension questions.")
	assert.Contains(t, prompt, "Current Reading Level: 4.0")
}

func TestCreateSession_DefaultCount(t *testing.T) {
	f := newFixture(t)
	f.mock.AddJSON(questionSet(5))

	detail, err := f.svc.CreateSession(context.Background(), f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "C"})
	require.NoError(t, err)
	assert.Equal(t, DefaultQuestionCount, detail.TotalQuestions)
	assert.Contains(t, f.mock.LastCall().Messages[0].Content, "Generate 5 reading")
}

func TestCreateSession_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zero, tooMany := 0, 21

	tests := []struct {
		name   string
		userID int
		p      CreateSessionParams
		status int
	}{
		{"missing book", f.user.ID, CreateSessionParams{Chapter: "1"}, http.StatusBadRequest},
		{"blank chapter", f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "  "}, http.StatusBadRequest},
		{"zero questions", f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "1", TotalQuestions: &zero}, http.StatusBadRequest},
		{"too many questions", f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "1", TotalQuestions: &tooMany}, http.StatusBadRequest},
		{"unknown user", 9999, CreateSessionParams{BookTitle: "B", Chapter: "1"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateSession(ctx, tt.userID, tt.p)
			assert.Equal(t, tt.status, statusOf(t, err))
		})
	}
	assert.Zero(t, f.mock.CallCount(), "validation happens before the LLM call")
}

func TestCreateSession_LLMFailureRemovesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.AddResponse(llm.MockResponse{Err: errors.New("fallback model also failed: boom")})
	_, err := f.svc.CreateSession(ctx, f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "1"})
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	assert.Contains(t, err.Error(), "fallback model also failed")

	f.mock.AddResponse(llm.MockResponse{Err: fmt.Errorf("openai: %w", llm.ErrNotConfigured)})
	_, err = f.svc.CreateSession(ctx, f.user.ID, CreateSessionParams{BookTitle: "B", Chapter: "1"})
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))

	sessions, err := f.svc.ListSessions(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSubmitAnswer_FullWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 1)
	qid := detail.Questions[0].ID

	// Initial attempt: examples, never final.
	f.mock.AddJSON(`{"score": 0.4, "feedback": "Add detail.", "examples": ["Wilbur is [_____]."]}`)
	res, err := f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "A pig"})
	require.NoError(t, err)
	assert.Equal(t, evaluation.TypeInitial, res.SubmissionType)
	assert.False(t, res.IsFinal)
	assert.Equal(t, []string{"Wilbur is [_____]."}, res.Examples)
	assert.Equal(t, "Review the feedback and examples below, then refine your answer.", res.Message)
	assert.Contains(t, f.mock.LastCall().Messages[0].Content, "Student's Answer: A pig")

	// Insufficient retry stays open.
	f.mock.AddJSON(`{"score": 0.5, "feedback": "Closer.", "rating": null, "is_sufficient": false}`)
	res, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "A small pig", SubmissionType: "retry"})
	require.NoError(t, err)
	assert.False(t, res.IsFinal)
	assert.Nil(t, res.Rating)
	assert.Equal(t, "Please continue refining your answer based on the feedback.", res.Message)

	// Final answer completes the session.
	f.mock.AddJSON(`{"score": 0.9, "feedback": "Great.", "rating": 5, "is_sufficient": true}`)
	res, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "A runt pig Fern saves", SubmissionType: "final"})
	require.NoError(t, err)
	assert.True(t, res.IsFinal)
	assert.True(t, res.SessionCompleted)
	require.NotNil(t, res.Rating)
	assert.Equal(t, 5, *res.Rating)
	assert.Equal(t, "Final answer submitted! Your answer received a rating of 5/5.", res.Message)

	user, err := f.store.Users().ByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.1, user.ReadingLevel, 1e-9)

	got, err := f.svc.GetSession(ctx, f.user.ID, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	q := got.Questions[0]
	require.NotNil(t, q.Answer)
	assert.Equal(t, "A runt pig Fern saves", *q.Answer)
	assert.InDelta(t, 0.9, *q.Score, 1e-9)
	assert.Equal(t, 5, *q.Rating)
	assert.Equal(t, "Great.", *q.Feedback)
	assert.Equal(t, []string{"Wilbur is [_____]."}, q.Examples, "examples come from the initial submission")

	sessions, err := f.svc.ListSessions(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].CompletedQuestions)
	assert.NotNil(t, sessions[0].CompletedAt)

	answers, err := f.svc.ListAnswers(ctx, f.user.ID, qid)
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, []string{"initial", "retry", "final"},
		[]string{answers[0].SubmissionType, answers[1].SubmissionType, answers[2].SubmissionType})
	assert.True(t, answers[2].IsFinal)
}

func TestSubmitAnswer_SufficientRetryIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 2)

	f.mock.AddJSON(`{"score": 0.75, "feedback": "Good.", "rating": 4, "is_sufficient": true}`)
	res, err := f.svc.SubmitAnswer(ctx, f.user.ID, detail.Questions[0].ID, SubmitParams{AnswerText: "x", SubmissionType: "retry"})
	require.NoError(t, err)
	assert.True(t, res.IsFinal)
	assert.False(t, res.SessionCompleted, "second question still open")
	assert.Equal(t, "Great improvement! Your answer received a rating of 4/5.", res.Message)

	// Second question's first submission uses the retry prompt directly.
	f.mock.AddJSON(`{"score": 0.55, "feedback": "Ok.", "rating": 3, "is_sufficient": true}`)
	res, err = f.svc.SubmitAnswer(ctx, f.user.ID, detail.Questions[1].ID, SubmitParams{AnswerText: "y", SubmissionType: "retry"})
	require.NoError(t, err)
	assert.True(t, res.SessionCompleted)

	// Average 0.65 moves the level up by 0.05.
	user, err := f.store.Users().ByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.05, user.ReadingLevel, 1e-9)
}

func TestSubmitAnswer_ZeroAverageKeepsLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 1)

	f.mock.AddJSON(`{"score": 0.0, "feedback": "Off topic.", "rating": 1, "is_sufficient": false}`)
	res, err := f.svc.SubmitAnswer(ctx, f.user.ID, detail.Questions[0].ID, SubmitParams{AnswerText: "?", SubmissionType: "final"})
	require.NoError(t, err)
	assert.True(t, res.SessionCompleted)

	user, err := f.store.Users().ByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, user.ReadingLevel, 1e-9)
}

func TestSubmitAnswer_FinalOnCompletedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 1)
	qid := detail.Questions[0].ID

	f.mock.AddJSON(`{"score": 0.9, "feedback": "Great.", "rating": 5, "is_sufficient": true}`)
	res, err := f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "first", SubmissionType: "final"})
	require.NoError(t, err)
	require.True(t, res.SessionCompleted)

	before, err := f.store.Sessions().ByID(ctx, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, before.CompletedAt)
	leveled, err := f.store.Users().ByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.1, leveled.ReadingLevel, 1e-9)

	f.svc.now = func() time.Time { return before.CompletedAt.Add(time.Hour) }
	f.mock.AddJSON(`{"score": 1.0, "feedback": "Perfect.", "rating": 5, "is_sufficient": true}`)
	res, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "second", SubmissionType: "final"})
	require.NoError(t, err)
	assert.True(t, res.IsFinal)
	assert.False(t, res.SessionCompleted, "an already completed session is not completed again")

	after, err := f.store.Sessions().ByID(ctx, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, after.CompletedAt)
	assert.True(t, before.CompletedAt.Equal(*after.CompletedAt))

	user, err := f.store.Users().ByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.1, user.ReadingLevel, 1e-9)
}

func TestSubmitAnswer_SecondInitialUsesFinalPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 1)
	qid := detail.Questions[0].ID

	f.mock.AddJSON(`{"score": 0.3, "feedback": "a", "examples": []}`)
	res, err := f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "one"})
	require.NoError(t, err)
	assert.Empty(t, res.Message, "no examples, no message")

	f.mock.AddJSON(`{"score": 0.3, "feedback": "b", "rating": 2, "is_sufficient": false}`)
	res, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "two", SubmissionType: "initial"})
	require.NoError(t, err)
	assert.Equal(t, evaluation.FinalSchema, f.mock.LastCall().Schema)
	assert.False(t, res.IsFinal, "initial submissions never close a question")
}

func TestSubmitAnswer_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.createSession(t, 1)
	qid := detail.Questions[0].ID
	other := addUser(t, f.store, "templeton")

	_, err := f.svc.SubmitAnswer(ctx, f.user.ID, 9999, SubmitParams{AnswerText: "x"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = f.svc.SubmitAnswer(ctx, other.ID, qid, SubmitParams{AnswerText: "x"})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "   "})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = f.svc.ListAnswers(ctx, other.ID, qid)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.svc.GetSession(ctx, other.ID, detail.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	f.mock.AddResponse(llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}})
	_, err = f.svc.SubmitAnswer(ctx, f.user.ID, qid, SubmitParams{AnswerText: "x"})
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))

	answers, err := f.svc.ListAnswers(ctx, f.user.ID, qid)
	require.NoError(t, err)
	assert.Empty(t, answers, "failed evaluations are not stored")
}

func TestAdjustReadingLevel(t *testing.T) {
	tests := []struct {
		name  string
		level float64
		grade int
		avg   float64
		want  float64
	}{
		{"strong", 4.0, 5, 0.85, 4.1},
		{"strong capped", 5.95, 5, 0.9, 6.0},
		{"good", 4.0, 5, 0.6, 4.05},
		{"good capped", 5.5, 5, 0.7, 5.5},
		{"middling unchanged", 4.0, 5, 0.55, 4.0},
		{"weak", 4.0, 5, 0.3, 3.95},
		{"weak floored", 3.52, 5, 0.1, 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AdjustReadingLevel(tt.level, tt.grade, tt.avg), 1e-9)
		})
	}
}
