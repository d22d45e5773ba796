// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"smartbuilder/internal/cache"
	"smartbuilder/internal/models"
	"smartbuilder/internal/slug"
)

// LiveReader loads the live version of a route.
type LiveReader interface {
	Live(ctx context.Context, pageRoute string) (*models.Version, error)
}

// Public serves published pages. It checks the Valkey page cache first;
// concurrent misses for one route share a single store read.
type Public struct {
	live         LiveReader
	pageCache    PageCache
	group        singleflight.Group
	defaultRoute string
}

// NewPublic creates the public site handlers.
func NewPublic(live LiveReader, pageCache PageCache, defaultRoute string) *Public {
	return &Public{
		live:         live,
		pageCache:    pageCache,
		defaultRoute: defaultRoute,
	}
}

// Homepage serves the live document of the default route.
func (p *Public) Homepage(w http.ResponseWriter, r *http.Request) {
	p.serve(w, r, p.defaultRoute)
}

// Page serves the live document of the {route} parameter.
func (p *Public) Page(w http.ResponseWriter, r *http.Request) {
	route := chi.URLParam(r, "route")
	if !slug.Valid(route) {
		notPublished(w)
		return
	}
	p.serve(w, r, route)
}

func (p *Public) serve(w http.ResponseWriter, r *http.Request, route string) {
	ctx := r.Context()

	if cached, ok := p.pageCache.Get(ctx, cache.KindLive, route); ok {
		writeHTML(w, cached)
		return
	}

	// The shared load must not die with whichever request started it.
	loadCtx := context.WithoutCancel(ctx)
	doc, err, _ := p.group.Do(route, func() (any, error) {
		v, err := p.live.Live(loadCtx, route)
		if err != nil {
			return nil, err
		}
		if v.HTMLLive == nil {
			return nil, models.ErrNotFound
		}
		html := []byte(*v.HTMLLive)
		p.pageCache.Set(loadCtx, cache.KindLive, route, html)
		return html, nil
	})

	switch {
	case errors.Is(err, models.ErrNotFound):
		notPublished(w)
	case err != nil:
		slog.Error("load live page failed", "error", err, "page_route", route)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		writeHTML(w, doc.([]byte))
	}
}

func writeHTML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc)
}

// notPublished answers 404 with a small placeholder page.
func notPublished(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Not published</title>
<script src="https://cdn.tailwindcss.com"></script></head>
<body class="bg-gray-100 flex items-center justify-center min-h-screen">
<div class="text-center">
<h1 class="text-4xl font-bold text-gray-900">Nothing here yet</h1>
<p class="mt-2 text-gray-500">This page has not been published.</p>
</div></body></html>`))
}
