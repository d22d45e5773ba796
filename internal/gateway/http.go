// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartbuilder/internal/models"
)

// maxResponseBytes bounds how much of a backend reply is read.
const maxResponseBytes = 8 << 20

// HTTPClient calls a remote generation backend over JSON:
// POST /prompt, POST /publish and GET /preview/{route}.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL. A zero timeout
// falls back to DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// PromptRequest is the body of POST /prompt.
type PromptRequest struct {
	Prompt      string               `json:"prompt"`
	PageRoute   string               `json:"page_route"`
	ChatHistory []models.ChatMessage `json:"chat_history"`
	CurrentHTML string               `json:"current_html,omitempty"`
}

// PromptResponse is the body returned by POST /prompt.
type PromptResponse struct {
	HTML                 *string            `json:"html"`
	VersionTimestamp     string             `json:"version_timestamp"`
	Instructions         PromptInstructions `json:"instructions"`
	SupabaseInstructions string             `json:"supabase_instructions,omitempty"`
}

// PromptInstructions carries the assistant's explanation.
type PromptInstructions struct {
	Message string `json:"message"`
}

// PublishRequest is the body of POST /publish.
type PublishRequest struct {
	VersionID string `json:"version_id"`
}

// MessageResponse is the {message} or {error} reply of the backend.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PreviewResponse is the body returned by GET /preview/{route}.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// Generate sends the prompt, history and current document to POST /prompt.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Result, error) {
	history := req.History
	if history == nil {
		history = []models.ChatMessage{}
	}
	body := PromptRequest{
		Prompt:      req.Prompt,
		PageRoute:   req.PageRoute,
		ChatHistory: history,
		CurrentHTML: req.CurrentHTML,
	}

	var resp PromptResponse
	if err := c.do(ctx, "generate", http.MethodPost, "/prompt", body, &resp); err != nil {
		return nil, err
	}

	res := &Result{
		Explanation:      resp.Instructions.Message,
		Instructions:     resp.SupabaseInstructions,
		VersionTimestamp: resp.VersionTimestamp,
	}
	if resp.HTML != nil && strings.TrimSpace(*resp.HTML) != "" {
		html := *resp.HTML
		res.HTML = &html
	}
	return res, nil
}

// Publish asks the backend to publish a version and returns its message.
func (c *HTTPClient) Publish(ctx context.Context, id uuid.UUID) (string, error) {
	var resp MessageResponse
	err := c.do(ctx, "publish", http.MethodPost, "/publish", PublishRequest{VersionID: id.String()}, &resp)
	if err != nil {
		return "", notFound(err)
	}
	return resp.Message, nil
}

// Preview fetches the current preview document for a route.
func (c *HTTPClient) Preview(ctx context.Context, pageRoute string) (string, error) {
	var resp PreviewResponse
	err := c.do(ctx, "preview", http.MethodGet, "/preview/"+url.PathEscape(pageRoute), nil, &resp)
	if err != nil {
		return "", notFound(err)
	}
	return resp.HTML, nil
}

// notFound turns a gateway 404 into models.ErrNotFound.
func notFound(err error) error {
	var gerr *models.GatewayError
	if errors.As(err, &gerr) && gerr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", gerr.Op, models.ErrNotFound)
	}
	return err
}

// do performs one JSON round trip under the client timeout. Every failure
// is reported as a *models.GatewayError.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &models.GatewayError{Op: op, Err: fmt.Errorf("marshal: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &models.GatewayError{Op: op, Err: fmt.Errorf("request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &models.GatewayError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &models.GatewayError{Op: op, Timeout: isTimeout(err), Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &models.GatewayError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failed reply, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var msg MessageResponse
	if json.Unmarshal(body, &msg) == nil && msg.Error != "" {
		return msg.Error
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response"
	}
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200])
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
