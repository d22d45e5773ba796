// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"smartbuilder/internal/editor"
	"smartbuilder/internal/markdown"
	"smartbuilder/internal/middleware"
	"smartbuilder/internal/models"
)

// WorkspaceStore persists editor snapshots per session and route.
type WorkspaceStore interface {
	SaveWorkspace(ctx context.Context, sessionID, pageRoute string, snapshot any) error
	LoadWorkspace(ctx context.Context, sessionID, pageRoute string, dst any) (bool, error)
}

// RouteLister lists the page routes that have versions.
type RouteLister interface {
	Routes(ctx context.Context) ([]models.RouteSummary, error)
}

// Editor groups the JSON API used by the editor UI. Every call resolves
// the controller of the caller's session for the {route} parameter.
type Editor struct {
	workspaces   *editor.Workspaces
	snapshots    WorkspaceStore
	routes       RouteLister
	pageCache    PageCache
	pages        PagePublisher
	defaultRoute string
}

// NewEditor creates the editor API handlers. snapshots and pages may be nil.
func NewEditor(workspaces *editor.Workspaces, snapshots WorkspaceStore, routes RouteLister, pageCache PageCache, pages PagePublisher, defaultRoute string) *Editor {
	return &Editor{
		workspaces:   workspaces,
		snapshots:    snapshots,
		routes:       routes,
		pageCache:    pageCache,
		pages:        pages,
		defaultRoute: defaultRoute,
	}
}

// turnView is a conversation turn with its Markdown rendered for display.
type turnView struct {
	models.ConversationTurn
	ContentHTML string `json:"content_html,omitempty"`
}

// versionView adds display fields to a version.
type versionView struct {
	models.Version
	Title     string `json:"title"`
	Published bool   `json:"published"`
}

// stateView is the editor state as sent to the UI.
type stateView struct {
	editor.State
	History       []turnView    `json:"history"`
	Versions      []versionView `json:"versions"`
	DisplayedHTML string        `json:"displayed_html"`
}

// actionResponse answers every editor mutation. Error is set when the
// action failed; State always reflects the controller afterwards.
type actionResponse struct {
	Error   string       `json:"error,omitempty"`
	Turn    *turnView    `json:"turn,omitempty"`
	Version *versionView `json:"version,omitempty"`
	State   stateView    `json:"state"`
}

func newTurnView(t models.ConversationTurn) turnView {
	tv := turnView{ConversationTurn: t}
	if t.Role == models.RoleAssistant && !t.Pending && t.Content != "" {
		rendered, err := markdown.ToSafeHTML(t.Content)
		if err != nil {
			slog.Warn("render assistant markdown failed", "error", err)
		} else {
			tv.ContentHTML = rendered
		}
	}
	return tv
}

func newVersionView(v models.Version) versionView {
	return versionView{Version: v, Title: v.Title(), Published: v.IsPublished()}
}

func newVersionViews(list []models.Version) []versionView {
	out := make([]versionView, len(list))
	for i, v := range list {
		out[i] = newVersionView(v)
	}
	return out
}

func newStateView(s editor.State) stateView {
	history := make([]turnView, len(s.History))
	for i, t := range s.History {
		history[i] = newTurnView(t)
	}
	return stateView{
		State:         s,
		History:       history,
		Versions:      newVersionViews(s.Versions),
		DisplayedHTML: s.DisplayedHTML(),
	}
}

// controller resolves the workspace for the request. A workspace created by
// this call is seeded from the session snapshot when one exists.
func (e *Editor) controller(w http.ResponseWriter, r *http.Request) (*editor.Controller, string, bool) {
	route, ok := routeParam(r, e.defaultRoute)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid page route."})
		return nil, "", false
	}

	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		slog.Error("editor request without session", "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "No editor session."})
		return nil, "", false
	}

	c := e.workspaces.Get(sess.ID, route, func(c *editor.Controller) {
		e.seed(r.Context(), sess.ID, c)
	})
	return c, sess.ID, true
}

// seed restores the saved snapshot of a new workspace.
func (e *Editor) seed(ctx context.Context, sessionID string, c *editor.Controller) {
	if e.snapshots == nil {
		return
	}
	var snap editor.State
	found, err := e.snapshots.LoadWorkspace(ctx, sessionID, c.PageRoute(), &snap)
	switch {
	case err != nil:
		slog.Warn("load workspace failed", "error", err, "page_route", c.PageRoute())
	case found:
		if err := c.Restore(snap); err != nil {
			slog.Warn("restore workspace failed", "error", err, "page_route", c.PageRoute())
		}
	}
}

// save stores the controller snapshot under the session.
func (e *Editor) save(ctx context.Context, sessionID string, c *editor.Controller) {
	if e.snapshots == nil {
		return
	}
	if err := e.snapshots.SaveWorkspace(ctx, sessionID, c.PageRoute(), c.Snapshot()); err != nil {
		slog.Warn("save workspace failed", "error", err, "page_route", c.PageRoute())
	}
}

// respond writes the outcome of an editor mutation and persists the
// workspace whether or not the action succeeded.
func (e *Editor) respond(w http.ResponseWriter, r *http.Request, sessionID string, c *editor.Controller, resp actionResponse, err error) {
	e.save(r.Context(), sessionID, c)
	resp.State = newStateView(c.Snapshot())
	if err != nil {
		resp.Error = editor.UserMessage(err)
	}
	writeJSON(w, statusFor(err), resp)
}

// Open loads the editor for a route: version list, live page and the
// current selection.
func (e *Editor) Open(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	state, err := c.Open(r.Context())
	if err != nil {
		slog.Error("open editor failed", "error", err, "page_route", c.PageRoute())
		writeJSON(w, statusFor(err), actionResponse{
			Error: editor.UserMessage(err),
			State: newStateView(c.Snapshot()),
		})
		return
	}

	e.save(r.Context(), sessionID, c)
	writeJSON(w, http.StatusOK, newStateView(state))
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// Prompt sends a prompt to the generator. Nothing is persisted; a proposed
// document is returned on the assistant turn.
func (e *Editor) Prompt(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "Invalid request body.")
		return
	}
	if msg := validatePrompt(req.Prompt); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	turn, err := c.SubmitPrompt(r.Context(), req.Prompt)
	var resp actionResponse
	if turn != nil {
		tv := newTurnView(*turn)
		resp.Turn = &tv
	}
	e.respond(w, r, sessionID, c, resp, err)
}

type implementRequest struct {
	Turn   *int   `json:"turn,omitempty"`
	HTML   string `json:"html,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// Implement persists a proposed document as a new version, either from an
// assistant turn by index or from an explicit {html, prompt} body.
func (e *Editor) Implement(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	var req implementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "Invalid request body.")
		return
	}

	var (
		v   *models.Version
		err error
	)
	if req.Turn != nil {
		v, err = c.ImplementTurn(r.Context(), *req.Turn)
	} else {
		if msg := validateDocument(req.HTML); msg != "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
			return
		}
		v, err = c.ImplementChange(r.Context(), req.HTML, req.Prompt)
	}

	var resp actionResponse
	if err == nil {
		e.pageCache.InvalidatePreview(r.Context(), v.PageRoute)
		vv := newVersionView(*v)
		resp.Version = &vv
	}
	e.respond(w, r, sessionID, c, resp, err)
}

type selectRequest struct {
	VersionID string `json:"version_id"`
}

// Select restores a stored version into the preview.
func (e *Editor) Select(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "Invalid request body.")
		return
	}
	id, err := uuid.Parse(req.VersionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid version id."})
		return
	}

	v, err := c.SelectVersionByID(r.Context(), id)
	var resp actionResponse
	if err == nil {
		vv := newVersionView(*v)
		resp.Version = &vv
	}
	e.respond(w, r, sessionID, c, resp, err)
}

// Publish makes the selected version live, then refreshes the caches and
// the object storage mirror.
func (e *Editor) Publish(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	v, err := c.Publish(r.Context())
	var resp actionResponse
	if err == nil {
		afterPublish(r.Context(), e.pageCache, e.pages, v)
		vv := newVersionView(*v)
		resp.Version = &vv
	}
	e.respond(w, r, sessionID, c, resp, err)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// Mode switches the preview pane between the preview and the live page.
func (e *Editor) Mode(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "Invalid request body.")
		return
	}

	err := c.SetDisplayMode(models.DisplayMode(req.Mode))
	e.respond(w, r, sessionID, c, actionResponse{}, err)
}

type versionsResponse struct {
	Versions []versionView `json:"versions"`
}

// Versions reloads the recent versions of the route.
func (e *Editor) Versions(w http.ResponseWriter, r *http.Request) {
	c, sessionID, ok := e.controller(w, r)
	if !ok {
		return
	}

	list, err := c.Refresh(r.Context())
	if err != nil {
		slog.Error("list versions failed", "error", err, "page_route", c.PageRoute())
		writeError(w, err, editor.UserMessage(err))
		return
	}

	e.save(r.Context(), sessionID, c)
	writeJSON(w, http.StatusOK, versionsResponse{Versions: newVersionViews(list)})
}

type routesResponse struct {
	Routes []models.RouteSummary `json:"routes"`
}

// Routes lists every page route with at least one version.
func (e *Editor) Routes(w http.ResponseWriter, r *http.Request) {
	routes, err := e.routes.Routes(r.Context())
	if err != nil {
		slog.Error("list routes failed", "error", err)
		writeError(w, err, editor.UserMessage(err))
		return
	}
	if routes == nil {
		routes = []models.RouteSummary{}
	}
	writeJSON(w, http.StatusOK, routesResponse{Routes: routes})
}
