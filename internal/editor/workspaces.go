package editor

import (
	"sync"
	"time"
)

// workspaceKey identifies one editor session on one route.
type workspaceKey struct {
	session string
	route   string
}

// workspace is a registered controller and its one-time seeding.
type workspace struct {
	c      *Controller
	seeded sync.Once
}

// Workspaces keeps one Controller per (session, route). Controllers are
// created on first use and evicted after ttl without activity.
type Workspaces struct {
	mu     sync.Mutex
	items  map[workspaceKey]*workspace
	create func(pageRoute string) *Controller
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

// NewWorkspaces creates the registry and starts the eviction sweeper.
// create builds the controller for a route.
func NewWorkspaces(ttl time.Duration, create func(pageRoute string) *Controller) *Workspaces {
	w := &Workspaces{
		items:  make(map[workspaceKey]*workspace),
		create: create,
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	interval := 5 * time.Minute
	if ttl > 0 && ttl < interval {
		interval = ttl
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.sweep(time.Now())
			case <-w.stopCh:
				return
			}
		}
	}()

	return w
}

// Stop terminates the sweeper. It is safe to call more than once.
func (w *Workspaces) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}

// Get returns the controller for the session and route. The first Get of a
// workspace runs seed on the new controller; concurrent callers wait for it
// so no request sees the controller before seeding is done. seed may be nil.
func (w *Workspaces) Get(sessionID, pageRoute string, seed func(c *Controller)) *Controller {
	key := workspaceKey{session: sessionID, route: pageRoute}

	w.mu.Lock()
	ws, ok := w.items[key]
	if !ok {
		ws = &workspace{c: w.create(pageRoute)}
		w.items[key] = ws
	}
	w.mu.Unlock()

	ws.seeded.Do(func() {
		if seed != nil {
			seed(ws.c)
		}
	})
	return ws.c
}

// Len returns the number of live workspaces.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// sweep drops controllers idle since before now-ttl.
func (w *Workspaces) sweep(now time.Time) int {
	cutoff := now.Add(-w.ttl)

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for key, ws := range w.items {
		if ws.c.IdleSince(cutoff) {
			delete(w.items, key)
			removed++
		}
	}
	return removed
}
