package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// textSize makes ent migrate a string column as TEXT (LONGTEXT on MySQL).
const textSize = 2147483647

var (
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true, Size: 80},
		{Name: "email", Type: field.TypeString, Unique: true, Size: 120},
		{Name: "password_hash", Type: field.TypeString, Size: 255},
		{Name: "grade_level", Type: field.TypeInt},
		{Name: "reading_level", Type: field.TypeFloat64, Default: 0.0},
		{Name: "created_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// ReadingSessionsColumns holds the columns for the "reading_sessions" table.
	ReadingSessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "book_title", Type: field.TypeString, Size: 200},
		{Name: "chapter", Type: field.TypeString, Size: 100},
		{Name: "total_questions", Type: field.TypeInt},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "user_id", Type: field.TypeInt},
	}
	// ReadingSessionsTable holds the schema information for the "reading_sessions" table.
	ReadingSessionsTable = &schema.Table{
		Name:       "reading_sessions",
		Columns:    ReadingSessionsColumns,
		PrimaryKey: []*schema.Column{ReadingSessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "reading_sessions_users_sessions",
				Columns:    []*schema.Column{ReadingSessionsColumns[6]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "readingsession_user_id_created_at",
				Columns: []*schema.Column{ReadingSessionsColumns[6], ReadingSessionsColumns[4]},
			},
		},
	}

	// QuestionsColumns holds the columns for the "questions" table.
	QuestionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "question_text", Type: field.TypeString, Size: textSize},
		{Name: "question_number", Type: field.TypeInt},
		{Name: "model_answer", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeInt},
	}
	// QuestionsTable holds the schema information for the "questions" table.
	QuestionsTable = &schema.Table{
		Name:       "questions",
		Columns:    QuestionsColumns,
		PrimaryKey: []*schema.Column{QuestionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "questions_reading_sessions_questions",
				Columns:    []*schema.Column{QuestionsColumns[5]},
				RefColumns: []*schema.Column{ReadingSessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "question_session_id_question_number",
				Columns: []*schema.Column{QuestionsColumns[5], QuestionsColumns[2]},
			},
		},
	}

	// AnswersColumns holds the columns for the "answers" table.
	AnswersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "answer_text", Type: field.TypeString, Size: textSize},
		{Name: "feedback", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "score", Type: field.TypeFloat64, Nullable: true},
		{Name: "rating", Type: field.TypeInt, Nullable: true},
		{Name: "examples", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "is_final", Type: field.TypeBool, Default: false},
		{Name: "submission_type", Type: field.TypeString, Size: 20, Default: SubmissionInitial},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "question_id", Type: field.TypeInt},
	}
	// AnswersTable holds the schema information for the "answers" table.
	AnswersTable = &schema.Table{
		Name:       "answers",
		Columns:    AnswersColumns,
		PrimaryKey: []*schema.Column{AnswersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "answers_questions_answers",
				Columns:    []*schema.Column{AnswersColumns[9]},
				RefColumns: []*schema.Column{QuestionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "answer_question_id_is_final",
				Columns: []*schema.Column{AnswersColumns[9], AnswersColumns[6]},
			},
		},
	}

	// LlmRequestEventsColumns holds the columns for the "llm_request_events" table.
	LlmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString, Size: 32},
		{Name: "model", Type: field.TypeString, Size: 128},
		{Name: "purpose", Type: field.TypeString, Size: 32},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Nullable: true},
	}
	// LlmRequestEventsTable holds the schema information for the "llm_request_events" table.
	LlmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LlmRequestEventsColumns,
		PrimaryKey: []*schema.Column{LlmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LlmRequestEventsColumns[4]}},
			{Name: "llmrequestevent_model", Columns: []*schema.Column{LlmRequestEventsColumns[3]}},
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{LlmRequestEventsColumns[1]}},
		},
	}

	// Tables holds all the tables in the schema, parents before children.
	Tables = []*schema.Table{
		UsersTable,
		ReadingSessionsTable,
		QuestionsTable,
		AnswersTable,
		LlmRequestEventsTable,
	}
)

func init() {
	ReadingSessionsTable.ForeignKeys[0].RefTable = UsersTable
	QuestionsTable.ForeignKeys[0].RefTable = ReadingSessionsTable
	AnswersTable.ForeignKeys[0].RefTable = QuestionsTable
}

// Migrate creates missing tables, columns and indexes. Existing data is
// never dropped.
func (s *Store) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
