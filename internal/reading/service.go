// Package reading runs reading sessions: it generates questions for a book
// chapter, records and evaluates answers, and adjusts the student's reading
// level when a session is completed.
package reading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/lunareading/internal/evaluation"
	"github.com/abhisek/lunareading/internal/questions"
	"github.com/abhisek/lunareading/internal/store"
)

// Question count limits for a session.
const (
	DefaultQuestionCount = 5
	MaxQuestionCount     = 20
)

// AnswerEvaluator scores a single answer.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Evaluation, error)
}

// Deps wires a Service to its collaborators.
type Deps struct {
	Store     *store.Store
	Generator questions.Generator
	Evaluator AnswerEvaluator
	Logger    *slog.Logger
}

// Service implements the reading-session operations.
type Service struct {
	users     store.UserRepo
	sessions  store.SessionRepo
	questions store.QuestionRepo
	answers   store.AnswerRepo
	stats     store.StatsRepo
	gen       questions.Generator
	eval      AnswerEvaluator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     d.Store.Users(),
		sessions:  d.Store.Sessions(),
		questions: d.Store.Questions(),
		answers:   d.Store.Answers(),
		stats:     d.Store.Stats(),
		gen:       d.Generator,
		eval:      d.Evaluator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSessionParams are the inputs to CreateSession. A nil
// TotalQuestions selects DefaultQuestionCount.
type CreateSessionParams struct {
	BookTitle      string
	Chapter        string
	TotalQuestions *int
}

// CreateSession creates a session and generates its questions. If
// generation fails the session is removed again.
func (s *Service) CreateSession(ctx context.Context, userID int, p CreateSessionParams) (*SessionDetail, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("User not found")
	}

	book := strings.TrimSpace(p.BookTitle)
	chapter := strings.TrimSpace(p.Chapter)
	if book == "" || chapter == "" {
		return nil, badRequest("Book title and chapter are required")
	}
	total := DefaultQuestionCount
	if p.TotalQuestions != nil {
		total = *p.TotalQuestions
	}
	if total < 1 || total > MaxQuestionCount {
		return nil, badRequest(fmt.Sprintf("total_questions must be between 1 and %d", MaxQuestionCount))
	}

	sess := &store.Session{UserID: userID, BookTitle: book, Chapter: chapter, TotalQuestions: total}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	generated, err := s.gen.Generate(ctx, questions.Input{
		GradeLevel:   user.GradeLevel,
		ReadingLevel: user.ReadingLevel,
		BookTitle:    book,
		Chapter:      chapter,
		Count:        total,
	})
	if err != nil {
		s.discard(sess.ID)
		s.logger.Warn("question generation failed", "user_id", userID, "session_id", sess.ID, "error", err)
		return nil, llmFailure(err)
	}

	detail := &SessionDetail{
		ID:             sess.ID,
		BookTitle:      sess.BookTitle,
		Chapter:        sess.Chapter,
		TotalQuestions: sess.TotalQuestions,
		CreatedAt:      sess.CreatedAt,
		Questions:      make([]QuestionView, 0, len(generated)),
	}
	for _, g := range generated {
		q := &store.Question{SessionID: sess.ID, Text: g.Text, Number: g.Number, ModelAnswer: g.ModelAnswer}
		if err := s.questions.Create(ctx, q); err != nil {
			s.discard(sess.ID)
			return nil, err
		}
		detail.Questions = append(detail.Questions, QuestionView{ID: q.ID, Number: q.Number, Text: q.Text})
	}

	s.logger.Info("session created", "user_id", userID, "session_id", sess.ID, "questions", len(generated))
	return detail, nil
}

// discard deletes a session that could not be populated. It runs on a
// fresh context so a cancelled request still cleans up.
func (s *Service) discard(sessionID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to remove empty session", "session_id", sessionID, "error", err)
	}
}

// ListSessions returns the user's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID int) ([]SessionSummary, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		progress, err := s.stats.SessionProgress(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SessionSummary{
			ID:                 sess.ID,
			BookTitle:          sess.BookTitle,
			Chapter:            sess.Chapter,
			TotalQuestions:     sess.TotalQuestions,
			CompletedQuestions: progress.Completed,
			CreatedAt:          sess.CreatedAt,
			CompletedAt:        sess.CompletedAt,
		})
	}
	return out, nil
}

// GetSession returns one of the user's sessions with its questions and
// their current answers.
func (s *Service) GetSession(ctx context.Context, userID, sessionID int) (*SessionDetail, error) {
	sess, err := s.sessions.ByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, notFound("Session not found")
	}

	qs, err := s.questions.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{
		ID:             sess.ID,
		BookTitle:      sess.BookTitle,
		Chapter:        sess.Chapter,
		TotalQuestions: sess.TotalQuestions,
		CreatedAt:      sess.CreatedAt,
		CompletedAt:    sess.CompletedAt,
		Questions:      make([]QuestionView, 0, len(qs)),
	}
	for _, q := range qs {
		view := QuestionView{ID: q.ID, Number: q.Number, Text: q.Text}

		final, err := s.answers.FinalByQuestion(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if final != nil {
			text, feedback := final.Text, final.Feedback
			view.Answer = &text
			view.Feedback = &feedback
			view.Score = final.Score
			view.Rating = final.Rating
		}

		initial, err := s.answers.InitialByQuestion(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		if initial != nil && len(initial.Examples) > 0 {
			view.Examples = initial.Examples
		}

		detail.Questions = append(detail.Questions, view)
	}
	return detail, nil
}

// SubmitParams are the inputs to SubmitAnswer. An empty SubmissionType
// means an initial submission.
type SubmitParams struct {
	AnswerText     string
	SubmissionType string
}

// SubmitAnswer evaluates and records an answer. A final answer that
// completes the session stamps its completion time and adjusts the
// student's reading level from the session average.
func (s *Service) SubmitAnswer(ctx context.Context, userID, questionID int, p SubmitParams) (*SubmitResult, error) {
	q, err := s.ownedQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.AnswerText) == "" {
		return nil, badRequest("Answer text is required")
	}
	subType := p.SubmissionType
	if subType == "" {
		subType = evaluation.TypeInitial
	}

	existing, err := s.answers.ListByQuestion(ctx, q.ID)
	if err != nil {
		return nil, err
	}

	ev, err := s.eval.Evaluate(ctx, evaluation.Request{
		QuestionText:    q.Text,
		ModelAnswer:     q.ModelAnswer,
		AnswerText:      p.AnswerText,
		SubmissionType:  subType,
		FirstSubmission: len(existing) == 0,
	})
	if err != nil {
		s.logger.Warn("answer evaluation failed", "user_id", userID, "question_id", q.ID, "error", err)
		return nil, llmFailure(err)
	}

	isFinal := evaluation.IsFinal(subType, ev)
	score := ev.Score
	a := &store.Answer{
		QuestionID:     q.ID,
		Text:           p.AnswerText,
		Feedback:       ev.Feedback,
		Score:          &score,
		Rating:         ev.Rating,
		Examples:       ev.Examples,
		IsFinal:        isFinal,
		SubmissionType: subType,
	}
	if err := s.answers.Create(ctx, a); err != nil {
		return nil, err
	}

	res := &SubmitResult{
		AnswerID:       a.ID,
		Score:          ev.Score,
		Feedback:       ev.Feedback,
		IsSufficient:   ev.IsSufficient,
		IsFinal:        isFinal,
		SubmissionType: subType,
		Message:        evaluation.Message(subType, ev),
	}
	switch subType {
	case evaluation.TypeInitial:
		res.Examples = ev.Examples
	case evaluation.TypeRetry, evaluation.TypeFinal:
		res.Rating = ev.Rating
	}

	if isFinal {
		completed, err := s.completeSession(ctx, userID, q.SessionID)
		if err != nil {
			return nil, err
		}
		res.SessionCompleted = completed
	}
	return res, nil
}

// completeSession marks the session completed once every question has a
// final answer. It reports whether this call completed it.
func (s *Service) completeSession(ctx context.Context, userID, sessionID int) (bool, error) {
	sess, err := s.sessions.ByID(ctx, sessionID)
	if err != nil || sess == nil || sess.CompletedAt != nil {
		return false, err
	}
	done, err := s.stats.SessionCompleted(ctx, sessionID)
	if err != nil || !done {
		return false, err
	}
	marked, err := s.sessions.MarkCompleted(ctx, sessionID, s.now())
	if err != nil || !marked {
		return false, err
	}

	avg, err := s.stats.SessionAverageScore(ctx, sessionID)
	if err != nil {
		return true, err
	}
	// A zero average means nothing was scored, so the level stays.
	if avg == nil || *avg == 0 {
		return true, nil
	}
	user, err := s.users.ByID(ctx, userID)
	if err != nil || user == nil {
		return true, err
	}
	level := AdjustReadingLevel(user.ReadingLevel, user.GradeLevel, *avg)
	if level != user.ReadingLevel {
		if err := s.users.UpdateReadingLevel(ctx, userID, level); err != nil {
			return true, err
		}
	}
	s.logger.Info("session completed",
		"user_id", userID,
		"session_id", sessionID,
		"average_score", *avg,
		"reading_level_from", user.ReadingLevel,
		"reading_level_to", level,
	)
	return true, nil
}

// ListAnswers returns every submission for one of the user's questions,
// oldest first.
func (s *Service) ListAnswers(ctx context.Context, userID, questionID int) ([]AnswerView, error) {
	q, err := s.ownedQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByQuestion(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	out := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		out = append(out, AnswerView{
			ID:             a.ID,
			AnswerText:     a.Text,
			Feedback:       a.Feedback,
			Score:          a.Score,
			Rating:         a.Rating,
			Examples:       a.Examples,
			IsFinal:        a.IsFinal,
			SubmissionType: a.SubmissionType,
			CreatedAt:      a.CreatedAt,
		})
	}
	return out, nil
}

// ownedQuestion loads a question and checks that its session belongs to
// userID.
func (s *Service) ownedQuestion(ctx context.Context, userID, questionID int) (*store.Question, error) {
	q, err := s.questions.ByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, notFound("Question not found")
	}
	sess, err := s.sessions.ByID(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, forbidden()
	}
	return q, nil
}
