// Package config assembles the service configuration from a .env file,
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/lunareading/internal/llm"
	"github.com/abhisek/lunareading/internal/store"
)

// defaultJWTSecret is used when JWT_SECRET_KEY is unset. It is fine for
// local development only.
const defaultJWTSecret = "your-secret-key-change-in-production"

// Config is the complete service configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	DB  store.Config
	LLM llm.Config

	JWTSecret string
	JWTTTL    time.Duration

	// LoginRate and LoginBurst bound register/login attempts per client IP.
	LoginRate  float64
	LoginBurst int

	// TrustProxy takes the client address from X-Forwarded-For and
	// related headers. Enable only behind a trusted proxy.
	TrustProxy bool

	// Debug switches logging to a text handler at debug level.
	Debug bool
}

// LoadEnvFile loads variables from path into the environment. Variables
// already set in the process environment take precedence over the file.
// A missing default file is not an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from the environment.
func FromEnv() Config {
	cfg := Config{
		Addr:       ":5001",
		DB:         store.ConfigFromEnv(),
		LLM:        llm.ConfigFromEnv(),
		JWTSecret:  os.Getenv("JWT_SECRET_KEY"),
		JWTTTL:     7 * 24 * time.Hour,
		LoginRate:  1,
		LoginBurst: 10,
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if addr := os.Getenv("LUNA_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if v, err := strconv.ParseBool(os.Getenv("LUNA_TRUST_PROXY")); err == nil {
		cfg.TrustProxy = v
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaultJWTSecret
	}
	return cfg
}

// InsecureJWTSecret reports whether the built-in development secret is in use.
func (c Config) InsecureJWTSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}
