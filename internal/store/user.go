package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var userColumns = []string{"id", "username", "email", "password_hash", "grade_level", "reading_level", "created_at"}

type userRepo struct {
	conn
}

func (r *userRepo) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, r.sql().Insert(UsersTable.Name).
		Columns("username", "email", "password_hash", "grade_level", "reading_level", "created_at").
		Values(u.Username, u.Email, u.PasswordHash, u.GradeLevel, u.ReadingLevel, u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return nil
}

func (r *userRepo) ByID(ctx context.Context, id int) (*User, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *userRepo) ByUsername(ctx context.Context, username string) (*User, error) {
	return r.one(ctx, entsql.EQ("username", username))
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, entsql.EQ("email", email))
}

func (r *userRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.query(ctx, r.sql().Select(userColumns...).
		From(entsql.Table(UsersTable.Name)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) UpdateGradeLevel(ctx context.Context, id, grade int) error {
	return r.update(ctx, id, "grade_level", grade)
}

func (r *userRepo) UpdateReadingLevel(ctx context.Context, id int, level float64) error {
	return r.update(ctx, id, "reading_level", level)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int, hash string) error {
	return r.update(ctx, id, "password_hash", hash)
}

func (r *userRepo) update(ctx context.Context, id int, column string, value any) error {
	_, err := r.exec(ctx, r.sql().Update(UsersTable.Name).
		Set(column, value).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	return nil
}

func (r *userRepo) one(ctx context.Context, where *entsql.Predicate) (*User, error) {
	query, args := r.sql().Select(userColumns...).
		From(entsql.Table(UsersTable.Name)).
		Where(where).
		Limit(1).
		Query()

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(s scanner) (*User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.GradeLevel, &u.ReadingLevel, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
