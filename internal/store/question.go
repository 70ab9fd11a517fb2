package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var questionColumns = []string{"id", "session_id", "question_text", "question_number", "model_answer", "created_at"}

type questionRepo struct {
	conn
}

func (r *questionRepo) Create(ctx context.Context, q *Question) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	var modelAnswer any
	if q.ModelAnswer != "" {
		modelAnswer = q.ModelAnswer
	}
	id, err := r.insert(ctx, r.sql().Insert(QuestionsTable.Name).
		Columns("session_id", "question_text", "question_number", "model_answer", "created_at").
		Values(q.SessionID, q.Text, q.Number, modelAnswer, q.CreatedAt))
	if err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	q.ID = id
	return nil
}

func (r *questionRepo) ByID(ctx context.Context, id int) (*Question, error) {
	query, args := r.sql().Select(questionColumns...).
		From(entsql.Table(QuestionsTable.Name)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (r *questionRepo) ListBySession(ctx context.Context, sessionID int) ([]Question, error) {
	rows, err := r.query(ctx, r.sql().Select(questionColumns...).
		From(entsql.Table(QuestionsTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Asc("question_number"), entsql.Asc("id")))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

func scanQuestion(s scanner) (*Question, error) {
	var (
		q           Question
		modelAnswer sql.NullString
	)
	if err := s.Scan(&q.ID, &q.SessionID, &q.Text, &q.Number, &modelAnswer, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.ModelAnswer = modelAnswer.String
	return &q, nil
}
