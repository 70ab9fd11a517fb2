package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var sessionColumns = []string{"id", "user_id", "book_title", "chapter", "total_questions", "created_at", "completed_at"}

type sessionRepo struct {
	conn
}

func (r *sessionRepo) Create(ctx context.Context, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, r.sql().Insert(ReadingSessionsTable.Name).
		Columns("user_id", "book_title", "chapter", "total_questions", "created_at").
		Values(s.UserID, s.BookTitle, s.Chapter, s.TotalQuestions, s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.ID = id
	return nil
}

func (r *sessionRepo) ByID(ctx context.Context, id int) (*Session, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *sessionRepo) ByIDForUser(ctx context.Context, id, userID int) (*Session, error) {
	return r.one(ctx, entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID)))
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID int) ([]Session, error) {
	rows, err := r.query(ctx, r.sql().Select(sessionColumns...).
		From(entsql.Table(ReadingSessionsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) MarkCompleted(ctx context.Context, id int, at time.Time) (bool, error) {
	res, err := r.exec(ctx, r.sql().Update(ReadingSessionsTable.Name).
		Set("completed_at", at.UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("completed_at"))))
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	return n == 1, nil
}

func (r *sessionRepo) Delete(ctx context.Context, id int) error {
	_, err := r.exec(ctx, r.sql().Delete(ReadingSessionsTable.Name).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *sessionRepo) one(ctx context.Context, where *entsql.Predicate) (*Session, error) {
	query, args := r.sql().Select(sessionColumns...).
		From(entsql.Table(ReadingSessionsTable.Name)).
		Where(where).
		Limit(1).
		Query()

	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func scanSession(sc scanner) (*Session, error) {
	var (
		s         Session
		completed sql.NullTime
	)
	if err := sc.Scan(&s.ID, &s.UserID, &s.BookTitle, &s.Chapter, &s.TotalQuestions, &s.CreatedAt, &completed); err != nil {
		return nil, err
	}
	s.CompletedAt = nullTime(completed)
	return &s, nil
}
