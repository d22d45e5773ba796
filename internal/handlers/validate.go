package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"smartbuilder/internal/slug"
)

// Validation limits for editor inputs.
const (
	maxPromptLen = 4_000
	maxHTMLLen   = 2_000_000
)

// validatePrompt checks a prompt and returns the first error found.
func validatePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Please enter a prompt."
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "Prompt is too long (max 4,000 characters)."
	}
	return ""
}

// validateDocument checks an HTML document sent for implementation.
func validateDocument(doc string) string {
	if strings.TrimSpace(doc) == "" {
		return "There is no document to implement."
	}
	if len(doc) > maxHTMLLen {
		return "Document is too large (max 2 MB)."
	}
	return ""
}

// routeParam normalises the {route} URL parameter. ok is false when the
// parameter cannot become a page route.
func routeParam(r *http.Request, fallback string) (string, bool) {
	return slug.Route(chi.URLParam(r, "route"), fallback)
}
