package store

import (
	"context"
	"database/sql"
	"fmt"
)

// The aggregate queries are plain SQL that both SQLite and MySQL accept.

const sessionProgressQuery = `
SELECT
	COUNT(DISTINCT q.id),
	COUNT(DISTINCT CASE WHEN a.id IS NOT NULL THEN q.id END)
FROM questions q
LEFT JOIN answers a ON a.question_id = q.id AND a.is_final = ?
WHERE q.session_id = ?`

const sessionAverageQuery = `
SELECT AVG(a.score)
FROM questions q
JOIN answers a ON a.question_id = q.id
WHERE q.session_id = ? AND a.is_final = ? AND a.score IS NOT NULL`

const userStatsQuery = `
SELECT
	COUNT(DISTINCT s.id),
	COUNT(DISTINCT CASE WHEN s.completed_at IS NOT NULL THEN s.id END),
	COUNT(DISTINCT q.id),
	AVG(a.score),
	COUNT(DISTINCT CASE WHEN a.score IS NOT NULL THEN a.id END)
FROM reading_sessions s
LEFT JOIN questions q ON q.session_id = s.id
LEFT JOIN answers a ON a.question_id = q.id AND a.is_final = ?
WHERE s.user_id = ?`

type statsRepo struct {
	conn
}

func (r *statsRepo) SessionCompleted(ctx context.Context, sessionID int) (bool, error) {
	p, err := r.SessionProgress(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return p.Total > 0 && p.Completed == p.Total, nil
}

func (r *statsRepo) SessionProgress(ctx context.Context, sessionID int) (Progress, error) {
	var p Progress
	err := r.db.QueryRowContext(ctx, sessionProgressQuery, true, sessionID).Scan(&p.Total, &p.Completed)
	if err != nil {
		return Progress{}, fmt.Errorf("session progress: %w", err)
	}
	return p, nil
}

func (r *statsRepo) SessionAverageScore(ctx context.Context, sessionID int) (*float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, sessionAverageQuery, sessionID, true).Scan(&avg); err != nil {
		return nil, fmt.Errorf("session average score: %w", err)
	}
	return nullFloat(avg), nil
}

func (r *statsRepo) UserStats(ctx context.Context, userID int) (UserStats, error) {
	var (
		st  UserStats
		avg sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, userStatsQuery, true, userID).Scan(
		&st.TotalSessions, &st.CompletedSessions, &st.TotalQuestions, &avg, &st.ScoredQuestions)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	st.AverageScore = nullFloat(avg)
	return st, nil
}
