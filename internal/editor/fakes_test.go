package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartbuilder/internal/gateway"
	"smartbuilder/internal/models"
)

// memStore is an in-memory VersionStore that counts calls.
type memStore struct {
	mu       sync.Mutex
	versions []models.Version
	clock    time.Time
	calls    int

	insertErr  error
	publishErr error
	listErr    error

	// When insertBlock is set, Insert signals insertStarted and waits.
	insertStarted chan struct{}
	insertBlock   chan struct{}
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)}
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) ListRecent(_ context.Context, route string, limit int) ([]models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Version{}
	for _, v := range s.versions {
		if v.PageRoute == route {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, nv models.NewVersion) (*models.Version, error) {
	if s.insertBlock != nil {
		close(s.insertStarted)
		<-s.insertBlock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.clock = s.clock.Add(time.Second)
	v := models.Version{
		ID:           uuid.New(),
		Prompt:       nv.Prompt,
		PageRoute:    nv.PageRoute,
		HTMLPreview:  nv.HTMLPreview,
		Instructions: nv.Instructions,
		CreatedAt:    s.clock,
	}
	s.versions = append(s.versions, v)
	return &v, nil
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, v := range s.versions {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("find %s: %w", id, models.ErrNotFound)
}

func (s *memStore) Publish(_ context.Context, id uuid.UUID) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.publishErr != nil {
		return nil, s.publishErr
	}
	for i := range s.versions {
		if s.versions[i].ID == id {
			live := s.versions[i].HTMLPreview
			s.clock = s.clock.Add(time.Second)
			at := s.clock
			s.versions[i].HTMLLive = &live
			s.versions[i].PublishedAt = &at
			v := s.versions[i]
			return &v, nil
		}
	}
	return nil, fmt.Errorf("publish %s: %w", id, models.ErrNotFound)
}

func (s *memStore) Live(_ context.Context, route string) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var best *models.Version
	for i := range s.versions {
		v := &s.versions[i]
		if v.PageRoute != route || v.PublishedAt == nil {
			continue
		}
		if best == nil || v.PublishedAt.After(*best.PublishedAt) {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("live %s: %w", route, models.ErrNotFound)
	}
	out := *best
	return &out, nil
}

// fakeGateway returns a canned result. When block is set, Generate waits
// on it after signalling started.
type fakeGateway struct {
	mu      sync.Mutex
	result  *gateway.Result
	err     error
	calls   int
	last    gateway.Request
	started chan struct{}
	block   chan struct{}
}

func (g *fakeGateway) Generate(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	started, block := g.started, g.block
	res, err := g.result, g.err
	g.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func htmlPtr(s string) *string { return &s }

// fakePreview is a PreviewSource with a canned answer.
type fakePreview struct {
	html  string
	err   error
	calls int
}

func (p *fakePreview) Preview(_ context.Context, _ string) (string, error) {
	p.calls++
	return p.html, p.err
}
