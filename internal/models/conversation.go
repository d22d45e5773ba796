// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayMode selects which HTML the preview pane shows.
type DisplayMode string

const (
	DisplayPreview DisplayMode = "preview"
	DisplayLive    DisplayMode = "live"
)

// Valid reports whether m is a known display mode.
func (m DisplayMode) Valid() bool {
	return m == DisplayPreview || m == DisplayLive
}

// ConversationTurn is one message in the editor conversation. Turns are
// ephemeral: they live in the editor state and the session snapshot, and
// only become a Version when the user implements a proposed change.
type ConversationTurn struct {
	Role    Role    `json:"role"`
	Content string  `json:"content"`
	HTML    *string `json:"html,omitempty"`

	// HasChanges is set on assistant turns that carry a proposed document.
	HasChanges bool `json:"has_changes"`
	// Implemented is set once the proposal was persisted as a version.
	Implemented bool `json:"implemented,omitempty"`
	// Pending marks the placeholder shown while generation is in flight.
	Pending bool `json:"pending,omitempty"`
	// Error marks turns that report a failed action.
	Error bool `json:"error,omitempty"`
	// Prompt is the user prompt an assistant proposal answers.
	Prompt string `json:"prompt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the role/content pair sent to the generation gateway as
// conversation context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
