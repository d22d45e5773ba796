// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the page builder.
// Handlers are grouped by concern (editor API, generation backend, public
// site) and receive their dependencies through the handler struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"smartbuilder/internal/cache"
	"smartbuilder/internal/models"
)

// maxBodyBytes bounds JSON request bodies. Documents sent to implement are
// full HTML pages, so this is generous.
const maxBodyBytes = 4 << 20

// PageCache is the Valkey page cache as seen by the handlers.
type PageCache interface {
	Get(ctx context.Context, kind cache.Kind, pageRoute string) ([]byte, bool)
	Set(ctx context.Context, kind cache.Kind, pageRoute string, html []byte)
	InvalidatePreview(ctx context.Context, pageRoute string)
	InvalidateRoute(ctx context.Context, pageRoute string)
}

// PagePublisher mirrors a published page to object storage.
type PagePublisher interface {
	PublishPage(ctx context.Context, pageRoute, html string) (string, error)
}

// errorResponse is the JSON body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes {"error": msg} with the status mapped from err.
func writeError(w http.ResponseWriter, err error, msg string) {
	writeJSON(w, statusFor(err), errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", models.ErrValidationSkipped)
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var gerr *models.GatewayError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrValidationSkipped), errors.Is(err, models.ErrNoSelection):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPromptFlagged):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &gerr) && gerr.Timeout:
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrGateway):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// afterPublish drops cached copies of the route and mirrors the live
// document to object storage. Failures are logged only; the publish itself
// already succeeded.
func afterPublish(ctx context.Context, pc PageCache, pages PagePublisher, v *models.Version) {
	pc.InvalidateRoute(ctx, v.PageRoute)

	if pages == nil || v.HTMLLive == nil {
		return
	}
	url, err := pages.PublishPage(ctx, v.PageRoute, *v.HTMLLive)
	if err != nil {
		slog.Error("mirror published page failed", "error", err, "page_route", v.PageRoute)
		return
	}
	slog.Info("published page mirrored", "page_route", v.PageRoute, "url", url)
}
