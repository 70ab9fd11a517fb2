package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var answerColumns = []string{"id", "question_id", "answer_text", "feedback", "score", "rating", "examples", "is_final", "submission_type", "created_at"}

type answerRepo struct {
	conn
}

func (r *answerRepo) Create(ctx context.Context, a *Answer) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.SubmissionType == "" {
		a.SubmissionType = SubmissionInitial
	}

	var feedback, examples any
	if a.Feedback != "" {
		feedback = a.Feedback
	}
	if len(a.Examples) > 0 {
		b, err := json.Marshal(a.Examples)
		if err != nil {
			return fmt.Errorf("marshal examples: %w", err)
		}
		examples = string(b)
	}
	var score, rating any
	if a.Score != nil {
		score = *a.Score
	}
	if a.Rating != nil {
		rating = *a.Rating
	}

	id, err := r.insert(ctx, r.sql().Insert(AnswersTable.Name).
		Columns("question_id", "answer_text", "feedback", "score", "rating", "examples", "is_final", "submission_type", "created_at").
		Values(a.QuestionID, a.Text, feedback, score, rating, examples, a.IsFinal, a.SubmissionType, a.CreatedAt))
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	a.ID = id
	return nil
}

func (r *answerRepo) ListByQuestion(ctx context.Context, questionID int) ([]Answer, error) {
	rows, err := r.query(ctx, r.sql().Select(answerColumns...).
		From(entsql.Table(AnswersTable.Name)).
		Where(entsql.EQ("question_id", questionID)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id")))
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}

func (r *answerRepo) FinalByQuestion(ctx context.Context, questionID int) (*Answer, error) {
	return r.one(ctx,
		entsql.And(entsql.EQ("question_id", questionID), entsql.EQ("is_final", true)),
		entsql.Desc("created_at"), entsql.Desc("id"))
}

func (r *answerRepo) InitialByQuestion(ctx context.Context, questionID int) (*Answer, error) {
	return r.one(ctx,
		entsql.And(entsql.EQ("question_id", questionID), entsql.EQ("submission_type", SubmissionInitial)),
		entsql.Asc("created_at"), entsql.Asc("id"))
}

func (r *answerRepo) one(ctx context.Context, where *entsql.Predicate, order ...string) (*Answer, error) {
	query, args := r.sql().Select(answerColumns...).
		From(entsql.Table(AnswersTable.Name)).
		Where(where).
		OrderBy(order...).
		Limit(1).
		Query()

	a, err := scanAnswer(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return a, nil
}

func scanAnswer(s scanner) (*Answer, error) {
	var (
		a        Answer
		feedback sql.NullString
		score    sql.NullFloat64
		rating   sql.NullInt64
		examples sql.NullString
	)
	if err := s.Scan(&a.ID, &a.QuestionID, &a.Text, &feedback, &score, &rating, &examples, &a.IsFinal, &a.SubmissionType, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Feedback = feedback.String
	a.Score = nullFloat(score)
	if rating.Valid {
		v := int(rating.Int64)
		a.Rating = &v
	}
	if examples.Valid && examples.String != "" {
		// Rows written by other clients may hold malformed JSON; treat it
		// as no examples.
		_ = json.Unmarshal([]byte(examples.String), &a.Examples)
	}
	return &a, nil
}
