package handlers

import (
	"log/slog"
	"net/http"
	"strings"
)

// ProviderSwitcher is the runtime view of the AI provider registry.
type ProviderSwitcher interface {
	ActiveName() string
	Available() []string
	SetActive(name string) error
}

// Providers lists and switches the in-process generation provider.
type Providers struct {
	registry ProviderSwitcher
}

// NewProviders creates the provider handlers.
func NewProviders(registry ProviderSwitcher) *Providers {
	return &Providers{registry: registry}
}

type providersResponse struct {
	Active    string   `json:"active"`
	Available []string `json:"available"`
}

// Status reports the active provider and every configured one.
func (p *Providers) Status(w http.ResponseWriter, r *http.Request) {
	available := p.registry.Available()
	if available == nil {
		available = []string{}
	}
	writeJSON(w, http.StatusOK, providersResponse{
		Active:    p.registry.ActiveName(),
		Available: available,
	})
}

type setProviderRequest struct {
	Provider string `json:"provider"`
}

// SetActive switches the active provider at runtime.
func (p *Providers) SetActive(w http.ResponseWriter, r *http.Request) {
	var req setProviderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "Invalid request body.")
		return
	}
	name := strings.TrimSpace(req.Provider)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No provider specified."})
		return
	}

	if err := p.registry.SetActive(name); err != nil {
		slog.Warn("failed to switch AI provider", "provider", name, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Cannot switch to " + name + ": provider not available (no API key configured).",
		})
		return
	}

	slog.Info("ai provider switched", "provider", name)
	p.Status(w, r)
}
