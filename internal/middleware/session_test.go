// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartbuilder/internal/session"
)

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	existing  *session.Data
	getErr    error
	createErr error
	created   int
	touched   int
}

func (f *fakeSessions) Get(_ context.Context, _ *http.Request) (*session.Data, error) {
	return f.existing, f.getErr
}

func (f *fakeSessions) Create(_ context.Context, _ http.ResponseWriter) (*session.Data, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &session.Data{ID: "new-session"}, nil
}

func (f *fakeSessions) Touch(_ context.Context, _ *session.Data) error {
	f.touched++
	return nil
}

func sessionIDHandler(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s := SessionFromCtx(r.Context()); s != nil {
			*got = s.ID
		}
	})
}

func TestEnsureSession(t *testing.T) {
	t.Run("reuses existing session", func(t *testing.T) {
		store := &fakeSessions{existing: &session.Data{ID: "abc"}}
		var got string
		EnsureSession(store)(sessionIDHandler(&got)).ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/api/editor/homepage", nil))

		if got != "abc" {
			t.Errorf("session id: got %q, want abc", got)
		}
		if store.created != 0 || store.touched != 1 {
			t.Errorf("created=%d touched=%d, want 0 and 1", store.created, store.touched)
		}
	})

	t.Run("creates session when missing", func(t *testing.T) {
		store := &fakeSessions{}
		var got string
		EnsureSession(store)(sessionIDHandler(&got)).ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/api/editor/homepage", nil))

		if got != "new-session" || store.created != 1 {
			t.Errorf("got %q created=%d, want new-session and 1", got, store.created)
		}
	})

	t.Run("replaces unreadable session", func(t *testing.T) {
		store := &fakeSessions{getErr: errors.New("bad payload")}
		var got string
		EnsureSession(store)(sessionIDHandler(&got)).ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/api/editor/homepage", nil))

		if got != "new-session" {
			t.Errorf("got %q, want new-session", got)
		}
	})

	t.Run("503 when store is down", func(t *testing.T) {
		store := &fakeSessions{createErr: errors.New("connection refused")}
		var called bool
		handler := EnsureSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/editor/homepage", nil))

		if called {
			t.Error("next handler should not run")
		}
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status: got %d, want 503", rr.Code)
		}
	})
}

func TestSessionFromCtxEmpty(t *testing.T) {
	if s := SessionFromCtx(context.Background()); s != nil {
		t.Errorf("got %+v, want nil", s)
	}
}

func TestRequireToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"valid", "s3cret", "Bearer s3cret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/editor/homepage/publish", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireToken(tt.token)(ok).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("WWW-Authenticate should be set on 401")
			}
		})
	}
}
