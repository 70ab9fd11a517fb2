package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abhisek/lunareading/internal/account"
	"github.com/abhisek/lunareading/internal/api"
	"github.com/abhisek/lunareading/internal/auth"
	"github.com/abhisek/lunareading/internal/evaluation"
	"github.com/abhisek/lunareading/internal/llm"
	"github.com/abhisek/lunareading/internal/questions"
	"github.com/abhisek/lunareading/internal/reading"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

// runServe opens the store, builds the services and runs the HTTP server
// until it fails or the process is signalled.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, err := llm.NewProvider(ctx, cfg.LLM, llm.Deps{
		Events:  st.EventRepo(),
		Logger:  logger,
		Metrics: llm.NewMetrics(reg),
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("LLM provider not configured, question generation and grading are unavailable", "error", err)
		provider = llm.Unconfigured(err)
	case err != nil:
		return fmt.Errorf("llm: %w", err)
	default:
		logger.Info("llm provider ready", "provider", cfg.LLM.Provider, "model", provider.ModelID())
	}

	if cfg.InsecureJWTSecret() {
		logger.Warn("JWT_SECRET_KEY is not set, tokens are signed with the development secret")
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	srv := api.New(api.Options{
		Accounts: account.NewService(account.Deps{Store: st, Issuer: issuer, Logger: logger}),
		Reading: reading.NewService(reading.Deps{
			Store:     st,
			Generator: questions.New(provider, questions.DefaultConfig()),
			Evaluator: evaluation.New(provider, evaluation.DefaultConfig()),
			Logger:    logger,
		}),
		Store:      st,
		Issuer:     issuer,
		Logger:     logger,
		Registry:   reg,
		LoginRate:  rate.Limit(cfg.LoginRate),
		LoginBurst: cfg.LoginBurst,
		TrustProxy: cfg.TrustProxy,
	})

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group
	g.Add(func() error {
		logger.Info("listening", "addr", ln.Addr().String(), "database", cfg.DB.Describe())
		return httpSrv.Serve(ln)
	}, func(error) {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	if errors.Is(err, run.ErrSignal) {
		logger.Info("shutting down", "reason", err.Error())
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
