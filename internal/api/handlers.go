package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/lunareading/internal/account"
	"github.com/abhisek/lunareading/internal/auth"
	"github.com/abhisek/lunareading/internal/reading"
	"github.com/abhisek/lunareading/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "LunaReading API Server",
		"status":   "running",
		"database": s.store.Config().Describe(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// dbStatus is the body of /api/db-status.
type dbStatus struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	ErrorType      string  `json:"error_type,omitempty"`
	Driver         string  `json:"driver"`
	Instance       string  `json:"instance"`
	Database       string  `json:"database"`
	ResponseTimeMs float64 `json:"response_time_ms"`
}

func (s *Server) handleDBStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cfg := s.store.Config()
	database := cfg.Database
	if cfg.Driver == store.DriverSQLite {
		database = cfg.Path
	}
	st := dbStatus{
		Status:   "connected",
		Message:  "Database connection is working",
		Driver:   cfg.Driver,
		Instance: orNotSet(cfg.Instance),
		Database: orNotSet(database),
	}

	code := http.StatusOK
	err := s.store.Ping(ctx)
	if err == nil {
		_, err = s.store.Users().ByUsername(ctx, "__test_connection__")
	}
	if err != nil {
		code = http.StatusInternalServerError
		st.Status = "error"
		st.Message = "Database connection test failed: " + err.Error()
		st.ErrorType = store.Classify(err)
		loggerFrom(r.Context()).Warn("database status check failed", "error", err, "diagnosis", st.ErrorType)
	}
	st.ResponseTimeMs = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	writeJSON(w, code, st)
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	GradeLevel int    `json:"grade_level"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.accounts.Register(r.Context(), account.RegisterParams{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		GradeLevel: req.GradeLevel,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	res, err := s.accounts.Profile(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type profileRequest struct {
	GradeLevel *int `json:"grade_level"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.accounts.UpdateProfile(r.Context(), currentUser(r), req.GradeLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	res, err := s.accounts.ListUsers(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createSessionRequest struct {
	BookTitle      string `json:"book_title"`
	Chapter        string `json:"chapter"`
	TotalQuestions *int   `json:"total_questions"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.reading.CreateSession(r.Context(), currentUser(r), reading.CreateSessionParams{
		BookTitle:      req.BookTitle,
		Chapter:        req.Chapter,
		TotalQuestions: req.TotalQuestions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	res, err := s.reading.ListSessions(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.reading.GetSession(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type submitAnswerRequest struct {
	AnswerText     string `json:"answer_text"`
	SubmissionType string `json:"submission_type"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitAnswerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.reading.SubmitAnswer(r.Context(), currentUser(r), id, reading.SubmitParams{
		AnswerText:     req.AnswerText,
		SubmissionType: req.SubmissionType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.reading.ListAnswers(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// currentUser returns the id the auth middleware stored. Protected routes
// never run without it.
func currentUser(r *http.Request) int {
	id, _ := auth.UserID(r.Context())
	return id
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, &badRequestError{msg: "Invalid id", err: err}
	}
	return id, nil
}
