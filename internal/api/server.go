// Package api serves the LunaReading JSON HTTP API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/abhisek/lunareading/internal/account"
	"github.com/abhisek/lunareading/internal/auth"
	"github.com/abhisek/lunareading/internal/reading"
	"github.com/abhisek/lunareading/internal/store"
)

// Options configures a Server.
type Options struct {
	Accounts *account.Service
	Reading  *reading.Service
	Store    *store.Store
	Issuer   *auth.Issuer
	Logger   *slog.Logger

	// Registry receives the HTTP metrics and is served on /metrics.
	// Nil uses a fresh registry.
	Registry *prometheus.Registry

	// LoginRate and LoginBurst limit register/login per client IP.
	// A zero LoginRate disables the limit.
	LoginRate  rate.Limit
	LoginBurst int

	// TrustProxy takes the client address from forwarding headers.
	TrustProxy bool
}

// Server holds the API handlers and their dependencies.
type Server struct {
	accounts *account.Service
	reading  *reading.Service
	store    *store.Store
	logger   *slog.Logger
	handler  http.Handler
}

// New builds a Server and its routes.
func New(o Options) *Server {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := o.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		accounts: o.Accounts,
		reading:  o.Reading,
		store:    o.Store,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.Use(newHTTPMetrics(reg).Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("Not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method not allowed"))
	})

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/db-status", s.handleDBStatus).Methods(http.MethodGet)

	public := api.NewRoute().Subrouter()
	if o.LoginRate > 0 {
		public.Use(newIPLimiter(o.LoginRate, max(o.LoginBurst, 1)).Middleware)
	}
	public.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	public.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(o.Issuer.Middleware)
	protected.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id:[0-9]+}", s.handleGetSession).Methods(http.MethodGet)
	protected.HandleFunc("/questions/{id:[0-9]+}/answer", s.handleSubmitAnswer).Methods(http.MethodPost)
	protected.HandleFunc("/questions/{id:[0-9]+}/answers", s.handleListAnswers).Methods(http.MethodGet)
	protected.HandleFunc("/admin/users", s.handleListUsers).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(h)
	h = accessLog(logger)(h)
	if o.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}
	s.handler = h
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
