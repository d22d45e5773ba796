// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"time"

	"github.com/google/uuid"

	"smartbuilder/internal/models"
)

// Phase is the controller's position in the generate/persist cycle.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseGenerating     Phase = "generating"
	PhasePendingPersist Phase = "pending_persist"
)

// State is what the editor shows for one page route. The controller owns
// it; everyone else sees copies from Snapshot.
type State struct {
	PageRoute         string             `json:"page_route"`
	CurrentPrompt     string             `json:"current_prompt"`
	CurrentHTML       string             `json:"current_html"`
	LiveHTML          *string            `json:"live_html,omitempty"`
	SelectedVersionID *uuid.UUID         `json:"selected_version_id,omitempty"`
	DisplayMode       models.DisplayMode `json:"display_mode"`
	Phase             Phase              `json:"phase"`

	// Unconfirmed is set while CurrentHTML shows a document the store has
	// not acknowledged. It stays set after a failed save until a refresh
	// or a selection replaces the preview.
	Unconfirmed bool `json:"unconfirmed"`

	History  []models.ConversationTurn `json:"history"`
	Versions []models.Version          `json:"versions"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns the empty state for a route.
func NewState(pageRoute string) State {
	return State{
		PageRoute:   pageRoute,
		DisplayMode: models.DisplayPreview,
		Phase:       PhaseIdle,
		History:     []models.ConversationTurn{},
		Versions:    []models.Version{},
	}
}

// DisplayedHTML returns the document the preview pane renders for the
// current display mode.
func (s *State) DisplayedHTML() string {
	if s.DisplayMode == models.DisplayLive {
		if s.LiveHTML == nil {
			return ""
		}
		return *s.LiveHTML
	}
	return s.CurrentHTML
}

// Snapshot returns a deep copy of s.
func (s *State) Snapshot() State {
	out := *s
	out.LiveHTML = cloneString(s.LiveHTML)
	if s.SelectedVersionID != nil {
		id := *s.SelectedVersionID
		out.SelectedVersionID = &id
	}

	out.History = make([]models.ConversationTurn, len(s.History))
	for i, t := range s.History {
		t.HTML = cloneString(t.HTML)
		out.History[i] = t
	}

	out.Versions = make([]models.Version, len(s.Versions))
	for i, v := range s.Versions {
		out.Versions[i] = cloneVersion(v)
	}
	return out
}

// Restore rehydrates a persisted snapshot. Placeholders of generations that
// never finished are dropped and the phase returns to idle.
func Restore(snap State) State {
	s := snap.Snapshot()
	s.Phase = PhaseIdle
	if !s.DisplayMode.Valid() {
		s.DisplayMode = models.DisplayPreview
	}

	kept := s.History[:0]
	for _, t := range s.History {
		if !t.Pending {
			kept = append(kept, t)
		}
	}
	s.History = kept
	return s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneVersion(v models.Version) models.Version {
	v.HTMLLive = cloneString(v.HTMLLive)
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		v.PublishedAt = &t
	}
	return v
}
