package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// WithUserID attaches an authenticated user id to ctx.
func WithUserID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}

// Middleware rejects requests without a valid bearer token. It has the
// shape of mux.MiddlewareFunc.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "Missing Authorization Header")
			return
		}
		fields := strings.Fields(header)
		if len(fields) != 2 || fields[0] != "Bearer" {
			unauthorized(w, "Bad Authorization header. Expected 'Authorization: Bearer <JWT>'")
			return
		}

		id, err := i.Verify(fields[1])
		if err != nil {
			msg := "Signature verification failed"
			if errors.Is(err, ErrTokenExpired) {
				msg = "Token has expired"
			}
			unauthorized(w, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
