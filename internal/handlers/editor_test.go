// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"smartbuilder/internal/editor"
	"smartbuilder/internal/models"
)

const pageDoc = `<!DOCTYPE html><html><head><title>Bakery</title></head><body><h1>Fresh bread</h1></body></html>`

func TestEditorOpenEmpty(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodGet, "/api/editor/homepage", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var got stateView
	decode(t, rec, &got)
	if got.PageRoute != "homepage" {
		t.Errorf("page_route: got %q, want homepage", got.PageRoute)
	}
	if len(got.Versions) != 0 || len(got.History) != 0 {
		t.Errorf("got %d versions and %d turns, want none", len(got.Versions), len(got.History))
	}
	if got.DisplayMode != models.DisplayPreview {
		t.Errorf("display_mode: got %q, want preview", got.DisplayMode)
	}
}

func TestEditorOpenSelectsNewestAndLoadsLive(t *testing.T) {
	env := newEditorEnv(t)
	old := env.store.add("homepage", "first", "<html><body>one</body></html>")
	env.store.Publish(t.Context(), old.ID)
	env.store.add("homepage", "second", pageDoc)

	rec := do(t, env.router, http.MethodGet, "/api/editor/homepage", nil)
	var got stateView
	decode(t, rec, &got)

	if got.CurrentHTML != pageDoc {
		t.Errorf("current_html: got %q, want newest version", got.CurrentHTML)
	}
	if got.LiveHTML == nil || !strings.Contains(*got.LiveHTML, "one") {
		t.Errorf("live_html: got %v, want the published version", got.LiveHTML)
	}
	if len(got.Versions) != 2 || got.Versions[0].Title != "Bakery" {
		t.Errorf("versions: got %+v, want 2 with newest titled Bakery", got.Versions)
	}
	if !got.Versions[1].Published {
		t.Error("older version should be marked published")
	}
}

func TestEditorOpenStoreDown(t *testing.T) {
	env := newEditorEnv(t)
	env.store.err = models.ErrStoreUnavailable

	rec := do(t, env.router, http.MethodGet, "/api/editor/homepage", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestEditorInvalidRoute(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodGet, "/api/editor/!!!", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestEditorPromptProposesChange(t *testing.T) {
	env := newEditorEnv(t)
	env.gen.propose(pageDoc, "I made the heading **bigger**.")

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", promptRequest{Prompt: "make the heading bigger"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var got actionResponse
	decode(t, rec, &got)
	if got.Turn == nil || !got.Turn.HasChanges || got.Turn.HTML == nil {
		t.Fatalf("turn: got %+v, want a proposal", got.Turn)
	}
	if !strings.Contains(got.Turn.ContentHTML, "<strong>bigger</strong>") {
		t.Errorf("content_html: got %q, want rendered markdown", got.Turn.ContentHTML)
	}
	if len(got.State.History) != 2 {
		t.Errorf("history: got %d turns, want 2", len(got.State.History))
	}
	if n := len(env.store.versions); n != 0 {
		t.Errorf("store: got %d versions, want none before implement", n)
	}
	if env.gen.last.PageRoute != "homepage" {
		t.Errorf("gateway page route: got %q", env.gen.last.PageRoute)
	}
}

func TestEditorPromptQuestion(t *testing.T) {
	env := newEditorEnv(t)
	env.gen.answer("The page has one heading.")

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", promptRequest{Prompt: "what does the page contain?"})
	var got actionResponse
	decode(t, rec, &got)

	if got.Turn == nil || got.Turn.HasChanges {
		t.Fatalf("turn: got %+v, want an answer without changes", got.Turn)
	}
	if got.State.DisplayMode != models.DisplayPreview {
		t.Errorf("display_mode: got %q, want unchanged preview", got.State.DisplayMode)
	}
	if len(env.store.versions) != 0 {
		t.Error("a question must not persist anything")
	}
}

func TestEditorPromptRejectsEmpty(t *testing.T) {
	env := newEditorEnv(t)

	for _, body := range []any{promptRequest{Prompt: "   "}, "not json"} {
		rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: status got %d, want 400", body, rec.Code)
		}
	}
	if env.gen.calls != 0 {
		t.Errorf("generator calls: got %d, want 0", env.gen.calls)
	}
}

func TestEditorPromptGatewayFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream error", &models.GatewayError{Op: "generate", StatusCode: 500, Err: errors.New("boom")}, http.StatusBadGateway},
		{"timeout", &models.GatewayError{Op: "generate", Timeout: true}, http.StatusGatewayTimeout},
		{"flagged", models.ErrPromptFlagged, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEditorEnv(t)
			env.gen.err = tt.err

			rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", promptRequest{Prompt: "add a footer"})
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.want)
			}
			var got actionResponse
			decode(t, rec, &got)
			if got.Error == "" {
				t.Error("error message should be set")
			}
			if got.Turn == nil || !got.Turn.Error {
				t.Errorf("turn: got %+v, want an error turn", got.Turn)
			}
		})
	}
}

func TestEditorImplementTurn(t *testing.T) {
	env := newEditorEnv(t)
	env.gen.propose(pageDoc, "Done.")
	do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", promptRequest{Prompt: "bakery page"})

	turn := 1
	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{Turn: &turn})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var got actionResponse
	decode(t, rec, &got)
	if got.Version == nil || got.Version.Prompt != "bakery page" || got.Version.HTMLPreview != pageDoc {
		t.Fatalf("version: got %+v", got.Version)
	}
	if got.State.SelectedVersionID == nil || *got.State.SelectedVersionID != got.Version.ID {
		t.Error("the new version should be selected")
	}
	if got.State.Unconfirmed {
		t.Error("state should be confirmed after a successful insert")
	}
	if !got.State.History[1].Implemented {
		t.Error("turn should be marked implemented")
	}
	if !env.cache.wasInvalidated("preview:homepage") {
		t.Error("preview cache should be invalidated")
	}

	// The same proposal cannot be implemented twice.
	rec = do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{Turn: &turn})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second implement: got %d, want 400", rec.Code)
	}
}

func TestEditorImplementHTML(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodPost, "/api/editor/about/implement", implementRequest{HTML: pageDoc, Prompt: "manual"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if len(env.store.versions) != 1 || env.store.versions[0].PageRoute != "about" {
		t.Errorf("store: got %+v, want one version on about", env.store.versions)
	}
}

func TestEditorImplementErrors(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{HTML: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty html: got %d, want 400", rec.Code)
	}

	turn := 7
	rec = do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{Turn: &turn})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown turn: got %d, want 404", rec.Code)
	}

	env.store.err = models.ErrStoreUnavailable
	rec = do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{HTML: pageDoc, Prompt: "p"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store down: got %d, want 503", rec.Code)
	}
	var got actionResponse
	decode(t, rec, &got)
	if !got.State.Unconfirmed || got.State.CurrentHTML != pageDoc {
		t.Errorf("failed save should keep the unconfirmed preview, got %+v", got.State.State)
	}
}

func TestEditorPublishWithoutSelection(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/publish", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
	if n := env.store.publishCalls.Load(); n != 0 {
		t.Errorf("store publish calls: got %d, want 0", n)
	}
}

func TestEditorPublish(t *testing.T) {
	env := newEditorEnv(t)
	do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{HTML: pageDoc, Prompt: "p"})

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/publish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var got actionResponse
	decode(t, rec, &got)
	if got.Version == nil || got.Version.HTMLLive == nil || *got.Version.HTMLLive != pageDoc {
		t.Fatalf("version: got %+v, want html_live set", got.Version)
	}
	if got.State.DisplayMode != models.DisplayLive || got.State.DisplayedHTML != pageDoc {
		t.Errorf("state: mode %q displayed %q, want live page", got.State.DisplayMode, got.State.DisplayedHTML)
	}
	if !env.cache.wasInvalidated("live:homepage") {
		t.Error("live cache should be invalidated")
	}
	if len(env.pages.routes) != 1 || env.pages.routes[0] != "homepage" {
		t.Errorf("mirrored routes: got %v, want [homepage]", env.pages.routes)
	}
}

func TestEditorPublishMirrorFailureIgnored(t *testing.T) {
	env := newEditorEnv(t)
	env.pages.err = errors.New("bucket gone")
	do(t, env.router, http.MethodPost, "/api/editor/homepage/implement", implementRequest{HTML: pageDoc, Prompt: "p"})

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/publish", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestEditorSelect(t *testing.T) {
	env := newEditorEnv(t)
	older := env.store.add("homepage", "older", "<html><body>older</body></html>")
	env.store.add("homepage", "newer", pageDoc)
	other := env.store.add("contact", "other", "<html></html>")

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/select", selectRequest{VersionID: older.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var got actionResponse
	decode(t, rec, &got)
	if got.State.CurrentHTML != older.HTMLPreview || got.State.CurrentPrompt != "older" {
		t.Errorf("state: got %q / %q, want the older version", got.State.CurrentPrompt, got.State.CurrentHTML)
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"malformed id", "nope", http.StatusBadRequest},
		{"unknown id", uuid.NewString(), http.StatusNotFound},
		{"other route", other.ID.String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/select", selectRequest{VersionID: tt.id})
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestEditorMode(t *testing.T) {
	env := newEditorEnv(t)

	rec := do(t, env.router, http.MethodPost, "/api/editor/homepage/mode", modeRequest{Mode: "live"})
	var got actionResponse
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.State.DisplayMode != models.DisplayLive {
		t.Errorf("got %d mode %q, want 200 live", rec.Code, got.State.DisplayMode)
	}

	rec = do(t, env.router, http.MethodPost, "/api/editor/homepage/mode", modeRequest{Mode: "fullscreen"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid mode: got %d, want 400", rec.Code)
	}
}

func TestEditorVersionsAndRoutes(t *testing.T) {
	env := newEditorEnv(t)
	for i := 0; i < editor.HistoryLimit+3; i++ {
		env.store.add("homepage", "p", "<html></html>")
	}
	env.store.add("about", "p", "<html></html>")

	rec := do(t, env.router, http.MethodGet, "/api/editor/homepage/versions", nil)
	var versions versionsResponse
	decode(t, rec, &versions)
	if len(versions.Versions) != editor.HistoryLimit {
		t.Errorf("versions: got %d, want %d", len(versions.Versions), editor.HistoryLimit)
	}
	for i := 1; i < len(versions.Versions); i++ {
		if !versions.Versions[i-1].CreatedAt.After(versions.Versions[i].CreatedAt) {
			t.Fatalf("versions not strictly newest first at %d", i)
		}
	}

	rec = do(t, env.router, http.MethodGet, "/api/routes", nil)
	var routes routesResponse
	decode(t, rec, &routes)
	if len(routes.Routes) != 2 || routes.Routes[0].PageRoute != "about" {
		t.Errorf("routes: got %+v", routes.Routes)
	}
}

func TestEditorWorkspaceSurvivesRestart(t *testing.T) {
	env := newEditorEnv(t)
	env.gen.propose(pageDoc, "Done.")
	do(t, env.router, http.MethodPost, "/api/editor/homepage/prompt", promptRequest{Prompt: "bakery page"})

	// A new process sees the Valkey snapshot but has no controllers.
	restarted := env.newRouter(t)
	rec := do(t, restarted, http.MethodGet, "/api/editor/homepage", nil)

	var got stateView
	decode(t, rec, &got)
	if len(got.History) != 2 || !got.History[1].HasChanges {
		t.Fatalf("history: got %+v, want the restored proposal", got.History)
	}

	// The restored proposal can still be implemented.
	turn := 1
	rec = do(t, restarted, http.MethodPost, "/api/editor/homepage/implement", implementRequest{Turn: &turn})
	if rec.Code != http.StatusOK {
		t.Errorf("implement after restart: got %d, want 200", rec.Code)
	}
}
