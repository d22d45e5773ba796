// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"smartbuilder/internal/cache"
	"smartbuilder/internal/gateway"
	"smartbuilder/internal/models"
	"smartbuilder/internal/slug"
)

// Generator produces page documents from prompts.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// BackendStore is the version table as the backend endpoints use it.
type BackendStore interface {
	Publish(ctx context.Context, id uuid.UUID) (*models.Version, error)
	Latest(ctx context.Context, pageRoute string) (*models.Version, error)
}

// Backend serves the generation backend contract (POST /prompt,
// POST /publish, GET /preview/{route}) so other editors can use this
// process as their remote generator.
type Backend struct {
	gen          Generator
	store        BackendStore
	pageCache    PageCache
	pages        PagePublisher
	defaultRoute string
}

// NewBackend creates the backend handlers. pages may be nil.
func NewBackend(gen Generator, store BackendStore, pageCache PageCache, pages PagePublisher, defaultRoute string) *Backend {
	return &Backend{
		gen:          gen,
		store:        store,
		pageCache:    pageCache,
		pages:        pages,
		defaultRoute: defaultRoute,
	}
}

// Prompt generates a document for the prompt and chat history.
func (b *Backend) Prompt(w http.ResponseWriter, r *http.Request) {
	var req gateway.PromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "invalid request body")
		return
	}
	if msg := validatePrompt(req.Prompt); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}
	route, ok := slug.Route(req.PageRoute, b.defaultRoute)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid page_route"})
		return
	}

	res, err := b.gen.Generate(r.Context(), gateway.Request{
		Prompt:      req.Prompt,
		PageRoute:   route,
		CurrentHTML: req.CurrentHTML,
		History:     req.ChatHistory,
	})
	if err != nil {
		slog.Error("backend generate failed", "error", err, "page_route", route)
		writeError(w, err, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, gateway.PromptResponse{
		HTML:                 res.HTML,
		VersionTimestamp:     res.VersionTimestamp,
		Instructions:         gateway.PromptInstructions{Message: res.Explanation},
		SupabaseInstructions: res.Instructions,
	})
}

// Publish promotes a version to live by id.
func (b *Backend) Publish(w http.ResponseWriter, r *http.Request) {
	var req gateway.PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.MessageResponse{Error: "invalid request body"})
		return
	}
	id, err := uuid.Parse(req.VersionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.MessageResponse{Error: "invalid version_id"})
		return
	}

	v, err := b.store.Publish(r.Context(), id)
	if err != nil {
		slog.Error("backend publish failed", "error", err, "version_id", id)
		writeJSON(w, statusFor(err), gateway.MessageResponse{Error: err.Error()})
		return
	}

	afterPublish(r.Context(), b.pageCache, b.pages, v)
	writeJSON(w, http.StatusOK, gateway.MessageResponse{Message: "Version published"})
}

// Preview returns the newest version's document for a route.
func (b *Backend) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	route, ok := routeParam(r, b.defaultRoute)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no preview for route"})
		return
	}

	if cached, ok := b.pageCache.Get(ctx, cache.KindPreview, route); ok {
		writeJSON(w, http.StatusOK, gateway.PreviewResponse{HTML: string(cached)})
		return
	}

	v, err := b.store.Latest(ctx, route)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			slog.Error("backend preview failed", "error", err, "page_route", route)
		}
		writeError(w, err, "no preview for route")
		return
	}

	b.pageCache.Set(ctx, cache.KindPreview, route, []byte(v.HTMLPreview))
	writeJSON(w, http.StatusOK, gateway.PreviewResponse{HTML: v.HTMLPreview})
}
