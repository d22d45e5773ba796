// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// fakes_test.go provides in-memory stand-ins for the store, caches and
// generator so handler tests run without PostgreSQL or Valkey.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"smartbuilder/internal/cache"
	"smartbuilder/internal/editor"
	"smartbuilder/internal/gateway"
	"smartbuilder/internal/middleware"
	"smartbuilder/internal/models"
	"smartbuilder/internal/session"
)

// memVersions is an in-memory version table.
type memVersions struct {
	mu       sync.Mutex
	versions []models.Version // oldest first
	base     time.Time

	err          error         // returned by every call when set
	liveGate     chan struct{} // Live waits on it when set
	liveCalls    atomic.Int32
	publishCalls atomic.Int32
}

func newMemVersions() *memVersions {
	return &memVersions{base: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memVersions) add(route, prompt, html string) models.Version {
	v, _ := m.Insert(context.Background(), models.NewVersion{Prompt: prompt, PageRoute: route, HTMLPreview: html})
	return *v
}

func (m *memVersions) ListRecent(_ context.Context, route string, limit int) ([]models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Version{}
	for i := len(m.versions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.versions[i].PageRoute == route {
			out = append(out, m.versions[i])
		}
	}
	return out, nil
}

func (m *memVersions) Insert(_ context.Context, nv models.NewVersion) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v := models.Version{
		ID:          uuid.New(),
		Prompt:      nv.Prompt,
		PageRoute:   nv.PageRoute,
		HTMLPreview: nv.HTMLPreview,
		CreatedAt:   m.base.Add(time.Duration(len(m.versions)) * time.Second),
	}
	m.versions = append(m.versions, v)
	return &v, nil
}

func (m *memVersions) find(id uuid.UUID) int {
	for i := range m.versions {
		if m.versions[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *memVersions) FindByID(_ context.Context, id uuid.UUID) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	i := m.find(id)
	if i < 0 {
		return nil, fmt.Errorf("version %s: %w", id, models.ErrNotFound)
	}
	v := m.versions[i]
	return &v, nil
}

func (m *memVersions) Publish(_ context.Context, id uuid.UUID) (*models.Version, error) {
	m.publishCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	i := m.find(id)
	if i < 0 {
		return nil, fmt.Errorf("publish %s: %w", id, models.ErrNotFound)
	}
	live := m.versions[i].HTMLPreview
	at := m.base.Add(time.Hour + time.Duration(m.publishCalls.Load())*time.Second)
	m.versions[i].HTMLLive = &live
	m.versions[i].PublishedAt = &at
	v := m.versions[i]
	return &v, nil
}

func (m *memVersions) Live(_ context.Context, route string) (*models.Version, error) {
	m.liveCalls.Add(1)
	if m.liveGate != nil {
		<-m.liveGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var best *models.Version
	for i := range m.versions {
		v := &m.versions[i]
		if v.PageRoute != route || v.PublishedAt == nil {
			continue
		}
		if best == nil || v.PublishedAt.After(*best.PublishedAt) {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("live %s: %w", route, models.ErrNotFound)
	}
	out := *best
	return &out, nil
}

func (m *memVersions) Latest(_ context.Context, route string) (*models.Version, error) {
	list, err := m.ListRecent(context.Background(), route, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("latest %s: %w", route, models.ErrNotFound)
	}
	return &list[0], nil
}

func (m *memVersions) Routes(_ context.Context) ([]models.RouteSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	byRoute := map[string]*models.RouteSummary{}
	for _, v := range m.versions {
		s, ok := byRoute[v.PageRoute]
		if !ok {
			s = &models.RouteSummary{PageRoute: v.PageRoute}
			byRoute[v.PageRoute] = s
		}
		s.Versions++
		if v.CreatedAt.After(s.UpdatedAt) {
			s.UpdatedAt = v.CreatedAt
		}
		s.Published = s.Published || v.PublishedAt != nil
	}
	out := make([]models.RouteSummary, 0, len(byRoute))
	for _, s := range byRoute {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageRoute < out[j].PageRoute })
	return out, nil
}

// fakeCache records page cache traffic.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, kind cache.Kind, route string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[cache.Key(kind, route)]
	return b, ok
}

func (c *fakeCache) Set(_ context.Context, kind cache.Kind, route string, html []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cache.Key(kind, route)] = html
}

func (c *fakeCache) InvalidatePreview(_ context.Context, route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cache.Key(cache.KindPreview, route)
	delete(c.entries, key)
	c.invalidated = append(c.invalidated, key)
}

func (c *fakeCache) InvalidateRoute(_ context.Context, route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range []cache.Kind{cache.KindLive, cache.KindPreview} {
		key := cache.Key(kind, route)
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
}

func (c *fakeCache) wasInvalidated(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.invalidated {
		if k == key {
			return true
		}
	}
	return false
}

// fakePages records mirrored pages.
type fakePages struct {
	mu     sync.Mutex
	routes []string
	err    error
}

func (p *fakePages) PublishPage(_ context.Context, route, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, route)
	if p.err != nil {
		return "", p.err
	}
	return "https://cdn.example.com/pages/" + route + "/index.html", nil
}

// fakeSnapshots keeps workspace snapshots as JSON, like the Valkey store.
type fakeSnapshots struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{items: map[string][]byte{}}
}

func (s *fakeSnapshots) SaveWorkspace(_ context.Context, sessionID, route string, snapshot any) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sessionID+":"+route] = b
	return nil
}

func (s *fakeSnapshots) LoadWorkspace(_ context.Context, sessionID, route string, dst any) (bool, error) {
	s.mu.Lock()
	b, ok := s.items[sessionID+":"+route]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

// fakeGen is a scripted generator.
type fakeGen struct {
	mu     sync.Mutex
	result *gateway.Result
	err    error
	calls  int
	last   gateway.Request
}

func (g *fakeGen) Generate(_ context.Context, req gateway.Request) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *fakeGen) propose(html, explanation string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = &gateway.Result{HTML: &html, Explanation: explanation}
	g.err = nil
}

func (g *fakeGen) answer(explanation string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = &gateway.Result{Explanation: explanation}
	g.err = nil
}

// sessionHeader selects the editor session in tests.
const sessionHeader = "X-Test-Session"

// withTestSession stands in for middleware.EnsureSession.
func withTestSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionHeader)
		if id == "" {
			id = "session-1"
		}
		ctx := context.WithValue(r.Context(), middleware.SessionKey, &session.Data{ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// editorEnv wires the editor API against fakes.
type editorEnv struct {
	store     *memVersions
	cache     *fakeCache
	pages     *fakePages
	gen       *fakeGen
	snapshots *fakeSnapshots
	router    http.Handler
}

func newEditorEnv(t *testing.T) *editorEnv {
	t.Helper()
	env := &editorEnv{
		store:     newMemVersions(),
		cache:     newFakeCache(),
		pages:     &fakePages{},
		gen:       &fakeGen{result: &gateway.Result{Explanation: "ok"}},
		snapshots: newFakeSnapshots(),
	}
	env.router = env.newRouter(t)
	return env
}

// newRouter builds a fresh set of workspaces over the env's dependencies,
// as a restarted process would.
func (env *editorEnv) newRouter(t *testing.T) http.Handler {
	t.Helper()
	ws := editor.NewWorkspaces(time.Hour, func(route string) *editor.Controller {
		return editor.NewController(route, env.store, env.gen, nil)
	})
	t.Cleanup(ws.Stop)

	ed := NewEditor(ws, env.snapshots, env.store, env.cache, env.pages, models.DefaultPageRoute)

	r := chi.NewRouter()
	r.Use(withTestSession)
	r.Get("/api/routes", ed.Routes)
	r.Route("/api/editor/{route}", func(r chi.Router) {
		r.Get("/", ed.Open)
		r.Get("/versions", ed.Versions)
		r.Post("/prompt", ed.Prompt)
		r.Post("/implement", ed.Implement)
		r.Post("/select", ed.Select)
		r.Post("/publish", ed.Publish)
		r.Post("/mode", ed.Mode)
	})
	return r
}

// do sends a request through h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorder body into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
