// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartbuilder/internal/ai"
	"smartbuilder/internal/models"
)

// Generator is the slice of ai.Registry the provider gateway needs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, messages []ai.Message) (string, error)
	CheckPrompt(ctx context.Context, prompt string) (*ai.ModerationResult, error)
}

// systemPrompt sets the reply contract for every provider.
const systemPrompt = `You are a web page builder. You edit one complete, self-contained HTML document.

Reply with a single JSON object and nothing else:
{"html": string or null, "explanation": string, "instructions": string}

Rules:
- When the user asks for a change, set "html" to the FULL updated document, starting with <!DOCTYPE html>. Never return a fragment or a diff.
- When the user only asks a question, set "html" to null and answer in "explanation".
- "explanation" is a short Markdown summary of what you changed or the answer.
- "instructions" lists any backend setup the page needs (tables, forms, keys), or is empty.
- Inline all CSS and JavaScript. Use only public CDNs for libraries.`

// ProviderGateway generates pages in-process through the ai registry.
type ProviderGateway struct {
	gen     Generator
	timeout time.Duration
	now     func() time.Time
}

// NewProviderGateway wraps a generator. A zero timeout falls back to
// DefaultTimeout.
func NewProviderGateway(gen Generator, timeout time.Duration) *ProviderGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ProviderGateway{gen: gen, timeout: timeout, now: time.Now}
}

// providerReply is the JSON object the system prompt asks for.
type providerReply struct {
	HTML         *string `json:"html"`
	Explanation  string  `json:"explanation"`
	Instructions string  `json:"instructions"`
}

// Generate screens the prompt, asks the active provider for a reply and
// parses it into a Result.
func (g *ProviderGateway) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	mod, err := g.gen.CheckPrompt(ctx, req.Prompt)
	if err != nil {
		// Moderation is advisory; an unreachable endpoint does not block editing.
		slog.Warn("prompt moderation failed", "error", err)
	} else if !mod.Safe {
		return nil, fmt.Errorf("%w: %s", models.ErrPromptFlagged, strings.Join(mod.Categories, ", "))
	}

	reply, err := g.gen.Generate(ctx, systemPrompt, buildMessages(req))
	if err != nil {
		return nil, &models.GatewayError{Op: "generate", Timeout: isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded), Err: err}
	}

	res := parseReply(reply, req.Prompt)
	res.VersionTimestamp = g.now().UTC().Format(time.RFC3339Nano)
	return res, nil
}

// buildMessages turns the history into provider turns and appends the
// current document and prompt as the final user turn.
func buildMessages(req Request) []ai.Message {
	msgs := make([]ai.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		role := ai.RoleUser
		if h.Role == string(models.RoleAssistant) {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: h.Content})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Page route: %s\n\n", req.PageRoute)
	if strings.TrimSpace(req.CurrentHTML) != "" {
		b.WriteString("Current document:\n```html\n")
		b.WriteString(req.CurrentHTML)
		b.WriteString("\n```\n\n")
	} else {
		b.WriteString("There is no document yet.\n\n")
	}
	b.WriteString("Request: ")
	b.WriteString(req.Prompt)

	return append(msgs, ai.Message{Role: ai.RoleUser, Content: b.String()})
}

// parseReply decodes the JSON contract. Replies that are not JSON fall back
// to the local intent classifier: a change prompt answered with a full
// document yields that document, anything else is treated as an answer.
func parseReply(reply, prompt string) *Result {
	text := ExtractHTML(reply)

	var pr providerReply
	if err := json.Unmarshal([]byte(text), &pr); err == nil {
		res := &Result{Explanation: pr.Explanation, Instructions: pr.Instructions}
		if pr.HTML != nil {
			if html := ExtractHTML(*pr.HTML); models.IsFullDocument(html) {
				res.HTML = &html
			}
		}
		return res
	}

	if ClassifyIntent(prompt) == IntentChange && models.IsFullDocument(text) {
		return &Result{HTML: &text, Explanation: "Updated the page."}
	}
	return &Result{Explanation: text}
}
