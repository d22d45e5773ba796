// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"smartbuilder/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"
)

// SessionStore is the part of session.Store the middleware needs.
type SessionStore interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
	Create(ctx context.Context, w http.ResponseWriter) (*session.Data, error)
	Touch(ctx context.Context, data *session.Data) error
}

// EnsureSession loads the editor session from Valkey, creating one when the
// request has none, and stores it in the request context. Downstream
// handlers read it via SessionFromCtx().
func EnsureSession(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			data, err := store.Get(ctx, r)
			if err != nil {
				// A broken session payload is replaced, not fatal.
				slog.Warn("session load failed", "error", err)
				data = nil
			}

			if data == nil {
				data, err = store.Create(ctx, w)
				if err != nil {
					slog.Error("session create failed", "error", err)
					writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
					return
				}
			} else if err := store.Touch(ctx, data); err != nil {
				slog.Warn("session touch failed", "error", err)
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, SessionKey, data)))
		})
	}
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// RequireToken rejects requests without "Authorization: Bearer <token>".
// An empty token disables the check, which is the development default.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="editor"`)
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
