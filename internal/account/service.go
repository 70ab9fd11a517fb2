// Package account manages student accounts: registration, login, profiles
// and the admin user listing.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/abhisek/lunareading/internal/auth"
	"github.com/abhisek/lunareading/internal/store"
)

// Grade bounds accepted for students.
const (
	MinGrade = 1
	MaxGrade = 12
)

// initialLevelFactor estimates a new student's reading level from grade.
const initialLevelFactor = 0.8

// Deps wires a Service to its collaborators.
type Deps struct {
	Store  *store.Store
	Issuer *auth.Issuer
	Logger *slog.Logger
}

// Service implements the account operations.
type Service struct {
	users  store.UserRepo
	stats  store.StatsRepo
	issuer *auth.Issuer
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  d.Store.Users(),
		stats:  d.Store.Stats(),
		issuer: d.Issuer,
		logger: logger,
	}
}

// RegisterParams are the inputs to Register.
type RegisterParams struct {
	Username   string
	Email      string
	Password   string
	GradeLevel int
}

// Register creates a user and returns an access token for it.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	username := strings.TrimSpace(p.Username)
	email := strings.TrimSpace(p.Email)
	if username == "" || email == "" || p.Password == "" || p.GradeLevel == 0 {
		return nil, badRequest("All fields are required")
	}
	if err := checkGrade(p.GradeLevel); err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	u := &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		GradeLevel:   p.GradeLevel,
		ReadingLevel: float64(p.GradeLevel) * initialLevelFactor,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent registration.
			if cerr := s.checkAvailable(ctx, username, email); cerr != nil {
				return nil, cerr
			}
			return nil, badRequest("Username already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username, "grade_level", u.GradeLevel)
	return &AuthResult{
		Message:     "User created successfully",
		AccessToken: token,
		User:        viewOf(u),
	}, nil
}

func (s *Service) checkAvailable(ctx context.Context, username, email string) error {
	existing, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return badRequest("Username already exists")
	}
	existing, err = s.users.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return badRequest("Email already exists")
	}
	return nil
}

// Login verifies credentials and returns an access token.
func (s *Service) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, badRequest("Username and password are required")
	}

	u, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errInvalidCredentials
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		s.logger.Warn("unreadable password hash", "user_id", u.ID, "error", err)
		return nil, errInvalidCredentials
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	token, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, User: viewOf(u)}, nil
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID int) (*UserView, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := viewOf(u)
	return &v, nil
}

// UpdateProfile changes the user's grade level when grade is non-nil.
func (s *Service) UpdateProfile(ctx context.Context, userID int, grade *int) (*ProfileUpdate, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if grade != nil {
		if err := checkGrade(*grade); err != nil {
			return nil, err
		}
		if err := s.users.UpdateGradeLevel(ctx, userID, *grade); err != nil {
			return nil, err
		}
		u.GradeLevel = *grade
	}
	return &ProfileUpdate{Message: "Profile updated successfully", User: viewOf(u)}, nil
}

// ListUsers returns every user with reading statistics. The requester
// must be an existing user.
func (s *Service) ListUsers(ctx context.Context, requesterID int) (*UserList, error) {
	if _, err := s.user(ctx, requesterID); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	list := &UserList{TotalUsers: len(users), Users: make([]AdminUser, 0, len(users))}
	for i := range users {
		u := &users[i]
		st, err := s.stats.UserStats(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		list.Users = append(list.Users, AdminUser{
			UserView:  viewOf(u),
			CreatedAt: u.CreatedAt,
			Statistics: Statistics{
				TotalSessions:     st.TotalSessions,
				CompletedSessions: st.CompletedSessions,
				TotalQuestions:    st.TotalQuestions,
				AverageScore:      percent(st.AverageScore),
			},
		})
	}
	return list, nil
}

// ResetPassword replaces the password of the named user.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return badRequest("Password is required")
	}
	u, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u == nil {
		return notFound("User not found")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", u.ID, "username", u.Username)
	return nil
}

func (s *Service) user(ctx context.Context, id int) (*store.User, error) {
	u, err := s.users.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("User not found")
	}
	return u, nil
}

func checkGrade(g int) error {
	if g < MinGrade || g > MaxGrade {
		return badRequest(fmt.Sprintf("grade_level must be between %d and %d", MinGrade, MaxGrade))
	}
	return nil
}

// percent converts a 0-1 score to a percentage with two decimals.
func percent(avg *float64) *float64 {
	if avg == nil {
		return nil
	}
	p := math.Round(*avg*100*100) / 100
	return &p
}

func viewOf(u *store.User) UserView {
	return UserView{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		GradeLevel:   u.GradeLevel,
		ReadingLevel: u.ReadingLevel,
	}
}
