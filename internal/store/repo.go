package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("unique constraint violated")

// Submission types stored in answers.submission_type.
const (
	SubmissionInitial = "initial"
	SubmissionRetry   = "retry"
	SubmissionFinal   = "final"
)

// User is a registered student.
type User struct {
	ID           int
	Username     string
	Email        string
	PasswordHash string
	GradeLevel   int
	ReadingLevel float64
	CreatedAt    time.Time
}

// Session is one reading session: a book chapter and its questions.
type Session struct {
	ID             int
	UserID         int
	BookTitle      string
	Chapter        string
	TotalQuestions int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Question is a generated comprehension question.
type Question struct {
	ID          int
	SessionID   int
	Text        string
	Number      int
	ModelAnswer string
	CreatedAt   time.Time
}

// Answer is one submission for a question together with its evaluation.
type Answer struct {
	ID             int
	QuestionID     int
	Text           string
	Feedback       string
	Score          *float64
	Rating         *int
	Examples       []string
	IsFinal        bool
	SubmissionType string
	CreatedAt      time.Time
}

// Progress counts answered questions in a session.
type Progress struct {
	Total     int
	Completed int
}

// UserStats aggregates a user's activity across sessions.
type UserStats struct {
	TotalSessions     int
	CompletedSessions int
	TotalQuestions    int
	AverageScore      *float64
	ScoredQuestions   int
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// UserRepo manages users. Lookups return (nil, nil) when nothing matches.
type UserRepo interface {
	Create(ctx context.Context, u *User) error
	ByID(ctx context.Context, id int) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	// List returns all users, newest first.
	List(ctx context.Context) ([]User, error)
	UpdateGradeLevel(ctx context.Context, id, grade int) error
	UpdateReadingLevel(ctx context.Context, id int, level float64) error
	UpdatePassword(ctx context.Context, id int, hash string) error
}

// SessionRepo manages reading sessions.
type SessionRepo interface {
	Create(ctx context.Context, s *Session) error
	ByID(ctx context.Context, id int) (*Session, error)
	// ByIDForUser returns nil unless the session belongs to userID.
	ByIDForUser(ctx context.Context, id, userID int) (*Session, error)
	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID int) ([]Session, error)
	// MarkCompleted stamps completed_at once. It reports false when the
	// session was already completed or does not exist.
	MarkCompleted(ctx context.Context, id int, at time.Time) (bool, error)
	// Delete removes a session and, by cascade, its questions and answers.
	Delete(ctx context.Context, id int) error
}

// QuestionRepo manages questions.
type QuestionRepo interface {
	Create(ctx context.Context, q *Question) error
	ByID(ctx context.Context, id int) (*Question, error)
	// ListBySession returns questions ordered by question number.
	ListBySession(ctx context.Context, sessionID int) ([]Question, error)
}

// AnswerRepo manages answers.
type AnswerRepo interface {
	Create(ctx context.Context, a *Answer) error
	// ListByQuestion returns answers oldest first.
	ListByQuestion(ctx context.Context, questionID int) ([]Answer, error)
	// FinalByQuestion returns the latest final answer.
	FinalByQuestion(ctx context.Context, questionID int) (*Answer, error)
	// InitialByQuestion returns the earliest initial submission.
	InitialByQuestion(ctx context.Context, questionID int) (*Answer, error)
}

// StatsRepo answers aggregate questions about sessions and users.
type StatsRepo interface {
	// SessionCompleted reports whether the session has at least one
	// question and every question has a final answer.
	SessionCompleted(ctx context.Context, sessionID int) (bool, error)
	SessionProgress(ctx context.Context, sessionID int) (Progress, error)
	// SessionAverageScore averages the scores of final answers. Nil when
	// no final answer has a score.
	SessionAverageScore(ctx context.Context, sessionID int) (*float64, error)
	UserStats(ctx context.Context, userID int) (UserStats, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// LLMPurposeUsage aggregates LLM usage for one purpose.
type LLMPurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int
}

// LLMModelUsage aggregates LLM usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)
	LLMUsageByPurpose(ctx context.Context) ([]LLMPurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

// conn runs builder-produced statements against the database.
type conn struct {
	db      *sql.DB
	dialect string
}

func (c conn) sql() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c conn) exec(ctx context.Context, b entsql.Querier) (sql.Result, error) {
	query, args := b.Query()
	return c.db.ExecContext(ctx, query, args...)
}

func (c conn) query(ctx context.Context, b entsql.Querier) (*sql.Rows, error) {
	query, args := b.Query()
	return c.db.QueryContext(ctx, query, args...)
}

// insert runs an INSERT and returns the new row id.
func (c conn) insert(ctx context.Context, b *entsql.InsertBuilder) (int, error) {
	res, err := c.exec(ctx, b)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
