// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package gateway talks to the page generation service. HTTPClient calls a
// remote generation backend; ProviderGateway generates in-process through
// the ai provider registry. Both return the same Result.
package gateway

import (
	"strings"
	"time"

	"smartbuilder/internal/models"
)

// DefaultTimeout caps every generation call.
const DefaultTimeout = 60 * time.Second

// Request is one generation call for a page route.
type Request struct {
	Prompt      string
	PageRoute   string
	CurrentHTML string
	History     []models.ChatMessage
}

// Result is the outcome of a generation call. HTML is nil when the reply
// carries no new document (a question was answered, nothing to persist).
type Result struct {
	HTML             *string
	Explanation      string
	Instructions     string
	VersionTimestamp string
}

// HasChanges reports whether the result proposes a new document.
func (r *Result) HasChanges() bool {
	return r.HTML != nil && strings.TrimSpace(*r.HTML) != ""
}

// ExtractHTML strips markdown code fences around a model reply and returns
// the trimmed content.
func ExtractHTML(response string) string {
	response = strings.TrimSpace(response)

	// Remove markdown code fences: ```html ... ``` or ``` ... ```
	if strings.HasPrefix(response, "```") {
		if nl := strings.Index(response, "\n"); nl != -1 {
			response = response[nl+1:]
		} else {
			response = strings.TrimPrefix(response, "```")
		}
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
	}

	return strings.TrimSpace(response)
}
