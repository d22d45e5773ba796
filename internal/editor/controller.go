// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor holds the version lifecycle of one editable page: the
// conversation with the generator, the displayed preview, the selected
// version and the publish step.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartbuilder/internal/gateway"
	"smartbuilder/internal/models"
)

// HistoryLimit is how many versions the editor lists for a route.
const HistoryLimit = 20

// VersionStore is the persistence the controller needs.
type VersionStore interface {
	ListRecent(ctx context.Context, pageRoute string, limit int) ([]models.Version, error)
	Insert(ctx context.Context, nv models.NewVersion) (*models.Version, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error)
	Publish(ctx context.Context, id uuid.UUID) (*models.Version, error)
	Live(ctx context.Context, pageRoute string) (*models.Version, error)
}

// Gateway generates page documents from prompts.
type Gateway interface {
	Generate(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// PreviewSource serves the current preview document of a route from
// outside the version store.
type PreviewSource interface {
	Preview(ctx context.Context, pageRoute string) (string, error)
}

// Controller drives the State of one page route. Network calls run without
// holding the state lock, so snapshots and refreshes stay responsive while
// a generation is in flight.
type Controller struct {
	route    string
	mu       sync.Mutex
	state    State
	store    VersionStore
	gw       Gateway
	preview  PreviewSource
	logger   *slog.Logger
	now      func() time.Time
	lastUsed time.Time
}

// NewController creates a controller for pageRoute. A nil logger uses
// slog.Default().
func NewController(pageRoute string, store VersionStore, gw Gateway, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		route:  pageRoute,
		state:  NewState(pageRoute),
		store:  store,
		gw:     gw,
		logger: logger.With("page_route", pageRoute),
		now:    time.Now,
	}
	c.lastUsed = c.now()
	return c
}

// PageRoute returns the route this controller edits.
func (c *Controller) PageRoute() string {
	return c.route
}

// SetPreviewSource makes Open fall back to p when the route has no stored
// versions. Call it before the controller is shared.
func (c *Controller) SetPreviewSource(p PreviewSource) {
	c.preview = p
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// Restore replaces the state with a persisted snapshot of the same route.
// It fails with ErrBusy while a request is in flight.
func (c *Controller) Restore(snap State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseIdle || hasPending(c.state.History) {
		return models.ErrBusy
	}
	c.state = Restore(snap)
	c.state.PageRoute = c.route
	c.touch()
	return nil
}

// SubmitPrompt sends text to the generator. The user turn and a pending
// assistant turn are recorded before the call; the answer replaces the
// placeholder. A proposed document is only marked on the turn, never
// persisted here.
func (c *Controller) SubmitPrompt(ctx context.Context, text string) (*models.ConversationTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrValidationSkipped
	}

	c.mu.Lock()
	if c.state.Phase != PhaseIdle {
		c.mu.Unlock()
		return nil, models.ErrBusy
	}
	req := gateway.Request{
		Prompt:      text,
		PageRoute:   c.route,
		CurrentHTML: c.state.CurrentHTML,
		History:     chatHistory(c.state.History),
	}
	now := c.now()
	c.state.History = append(c.state.History,
		models.ConversationTurn{Role: models.RoleUser, Content: text, CreatedAt: now},
		models.ConversationTurn{Role: models.RoleAssistant, Content: "Generating...", Pending: true, Prompt: text, CreatedAt: now},
	)
	c.state.CurrentPrompt = text
	c.state.Phase = PhaseGenerating
	c.touch()
	c.mu.Unlock()

	res, err := c.gw.Generate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = PhaseIdle
	c.touch()

	turn := c.placeholder(text, now)
	turn.Pending = false
	turn.CreatedAt = c.now()
	if err != nil {
		c.logger.Warn("generation failed", "error", err)
		turn.Error = true
		turn.Content = UserMessage(err)
		out := *turn
		return &out, err
	}

	turn.Content = res.Explanation
	if res.HasChanges() {
		html := *res.HTML
		turn.HTML = &html
		turn.HasChanges = true
		if turn.Content == "" {
			turn.Content = "I prepared an updated version of the page."
		}
	} else if turn.Content == "" {
		turn.Content = "No changes proposed."
	}

	out := *turn
	out.HTML = cloneString(turn.HTML)
	return &out, nil
}

// ImplementChange shows html in the preview at once and persists it as a
// new version. Until the insert succeeds the state is unconfirmed. A failed
// insert keeps the preview, leaves it unconfirmed and appends an error turn.
func (c *Controller) ImplementChange(ctx context.Context, html, originalPrompt string) (*models.Version, error) {
	if strings.TrimSpace(html) == "" {
		return nil, models.ErrValidationSkipped
	}

	c.mu.Lock()
	if c.state.Phase != PhaseIdle {
		c.mu.Unlock()
		return nil, models.ErrBusy
	}
	c.state.Phase = PhasePendingPersist
	c.state.CurrentHTML = html
	c.state.CurrentPrompt = originalPrompt
	c.state.DisplayMode = models.DisplayPreview
	c.state.Unconfirmed = true
	c.touch()
	c.mu.Unlock()

	v, err := c.store.Insert(ctx, models.NewVersion{
		Prompt:      originalPrompt,
		PageRoute:   c.route,
		HTMLPreview: html,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = PhaseIdle
	c.touch()

	if err != nil {
		c.logger.Error("saving version failed", "error", err)
		c.state.History = append(c.state.History, models.ConversationTurn{
			Role:      models.RoleAssistant,
			Content:   UserMessage(err),
			Error:     true,
			Prompt:    originalPrompt,
			CreatedAt: c.now(),
		})
		return nil, err
	}

	c.selectLocked(*v)
	c.state.Versions = prependVersion(c.state.Versions, *v)
	c.markImplemented(html)

	c.logger.Info("version saved", "version_id", v.ID)
	out := cloneVersion(*v)
	return &out, nil
}

// ImplementTurn persists the document proposed by the assistant turn at
// index, using the prompt it answered.
func (c *Controller) ImplementTurn(ctx context.Context, index int) (*models.Version, error) {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.History) {
		c.mu.Unlock()
		return nil, fmt.Errorf("turn %d: %w", index, models.ErrNotFound)
	}
	t := c.state.History[index]
	c.mu.Unlock()

	if t.Role != models.RoleAssistant || !t.HasChanges || t.HTML == nil || t.Implemented {
		return nil, fmt.Errorf("turn %d has no pending change: %w", index, models.ErrValidationSkipped)
	}
	return c.ImplementChange(ctx, *t.HTML, t.Prompt)
}

// Publish makes the selected version live. Without a selection it fails
// with ErrNoSelection before touching the store.
func (c *Controller) Publish(ctx context.Context) (*models.Version, error) {
	c.mu.Lock()
	if c.state.SelectedVersionID == nil {
		c.mu.Unlock()
		return nil, models.ErrNoSelection
	}
	id := *c.state.SelectedVersionID
	c.touch()
	c.mu.Unlock()

	v, err := c.store.Publish(ctx, id)
	if err != nil {
		c.logger.Error("publishing version failed", "version_id", id, "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	live := v.HTMLPreview
	if v.HTMLLive != nil {
		live = *v.HTMLLive
	}
	c.state.LiveHTML = &live
	c.state.DisplayMode = models.DisplayLive
	for i := range c.state.Versions {
		if c.state.Versions[i].ID == v.ID {
			c.state.Versions[i] = cloneVersion(*v)
		}
	}
	c.touch()

	c.logger.Info("version published", "version_id", v.ID)
	out := cloneVersion(*v)
	return &out, nil
}

// SelectVersion shows v in the editor. Calling it again with the same
// version leaves the state unchanged.
func (c *Controller) SelectVersion(v models.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(v)
	c.touch()
}

// SelectVersionByID loads a version of this route and selects it.
func (c *Controller) SelectVersionByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	v, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.PageRoute != c.route {
		return nil, fmt.Errorf("version %s on route %q: %w", id, c.route, models.ErrNotFound)
	}
	c.SelectVersion(*v)
	out := cloneVersion(*v)
	return &out, nil
}

func (c *Controller) selectLocked(v models.Version) {
	id := v.ID
	c.state.CurrentPrompt = v.Prompt
	c.state.CurrentHTML = v.HTMLPreview
	c.state.SelectedVersionID = &id
	c.state.Unconfirmed = false
}

// Refresh reloads the recent versions of the route. An unconfirmed preview
// is reconciled to the newest persisted version.
func (c *Controller) Refresh(ctx context.Context) ([]models.Version, error) {
	versions, err := c.store.ListRecent(ctx, c.route, HistoryLimit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Versions = versions
	if c.state.Unconfirmed && c.state.Phase == PhaseIdle {
		if len(versions) > 0 {
			c.selectLocked(versions[0])
		} else {
			c.state.CurrentHTML = ""
			c.state.CurrentPrompt = ""
			c.state.SelectedVersionID = nil
			c.state.Unconfirmed = false
		}
	}
	c.touch()

	out := make([]models.Version, len(versions))
	for i, v := range versions {
		out[i] = cloneVersion(v)
	}
	return out, nil
}

// Open prepares the editor on first load: it refreshes the version list,
// selects the newest version when nothing is shown and loads the live page.
// A route without stored versions shows the preview source's document, if
// one is set.
func (c *Controller) Open(ctx context.Context) (State, error) {
	versions, err := c.Refresh(ctx)
	if err != nil {
		return State{}, err
	}

	live, err := c.store.Live(ctx, c.route)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return State{}, err
	}

	c.mu.Lock()
	blank := c.state.SelectedVersionID == nil && c.state.CurrentHTML == ""
	c.mu.Unlock()

	var fallback string
	if blank && len(versions) == 0 && c.preview != nil {
		fallback, err = c.preview.Preview(ctx, c.route)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			c.logger.Warn("loading preview failed", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SelectedVersionID == nil && c.state.CurrentHTML == "" {
		switch {
		case len(c.state.Versions) > 0:
			c.selectLocked(c.state.Versions[0])
		case strings.TrimSpace(fallback) != "":
			c.state.CurrentHTML = fallback
		}
	}
	if live != nil && live.HTMLLive != nil {
		c.state.LiveHTML = cloneString(live.HTMLLive)
	}
	return c.state.Snapshot(), nil
}

// SetDisplayMode switches the preview pane between preview and live.
func (c *Controller) SetDisplayMode(mode models.DisplayMode) error {
	if !mode.Valid() {
		return fmt.Errorf("display mode %q: %w", mode, models.ErrValidationSkipped)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DisplayMode = mode
	c.touch()
	return nil
}

// IdleSince reports whether the controller has been unused since t and has
// no request in flight.
func (c *Controller) IdleSince(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase == PhaseIdle && c.lastUsed.Before(t)
}

// touch records activity. Callers hold c.mu.
func (c *Controller) touch() {
	c.lastUsed = c.now()
	c.state.UpdatedAt = c.lastUsed
}

// placeholder returns the pending assistant turn answering prompt, or a new
// assistant turn when the history no longer holds it. Callers hold c.mu.
func (c *Controller) placeholder(prompt string, at time.Time) *models.ConversationTurn {
	for i := len(c.state.History) - 1; i >= 0; i-- {
		t := &c.state.History[i]
		if t.Pending && t.Prompt == prompt && t.CreatedAt.Equal(at) {
			return t
		}
	}
	c.state.History = append(c.state.History, models.ConversationTurn{Role: models.RoleAssistant, Prompt: prompt})
	return &c.state.History[len(c.state.History)-1]
}

func hasPending(turns []models.ConversationTurn) bool {
	for _, t := range turns {
		if t.Pending {
			return true
		}
	}
	return false
}

// markImplemented flags the newest proposal carrying html. Callers hold c.mu.
func (c *Controller) markImplemented(html string) {
	for i := len(c.state.History) - 1; i >= 0; i-- {
		t := &c.state.History[i]
		if t.HasChanges && !t.Implemented && t.HTML != nil && *t.HTML == html {
			t.Implemented = true
			return
		}
	}
}

// chatHistory returns the settled turns as gateway context. Placeholders
// and error reports are not part of the conversation.
func chatHistory(turns []models.ConversationTurn) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if t.Pending || t.Error {
			continue
		}
		out = append(out, models.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func prependVersion(list []models.Version, v models.Version) []models.Version {
	out := make([]models.Version, 0, HistoryLimit)
	out = append(out, v)
	for _, existing := range list {
		if len(out) == HistoryLimit {
			break
		}
		if existing.ID != v.ID {
			out = append(out, existing)
		}
	}
	return out
}

// UserMessage turns an action failure into the text shown to the editor.
func UserMessage(err error) string {
	var gerr *models.GatewayError
	switch {
	case errors.Is(err, models.ErrPromptFlagged):
		return "Your prompt was flagged by moderation and was not sent."
	case errors.As(err, &gerr) && gerr.Timeout:
		return "The generator took too long to answer. Please try again."
	case errors.Is(err, models.ErrGateway):
		return "Generation failed: " + err.Error()
	case errors.Is(err, models.ErrStoreUnavailable):
		return "Saving failed. The preview shows unsaved changes until you refresh."
	case errors.Is(err, models.ErrNoSelection):
		return "Select a version first."
	case errors.Is(err, models.ErrBusy):
		return "A request is already in progress."
	default:
		return "Something went wrong: " + err.Error()
	}
}
