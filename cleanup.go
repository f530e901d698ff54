package bind

import (
	"errors"
	"io"
	"sync"
)

// CleanupGroup accumulates teardown actions for resources acquired while
// resolving a request. Teardown runs in reverse-of-acquisition order, so a
// resource acquired from another dependency is released before the resource
// it came from. Close is idempotent: every action runs exactly once per
// request on every exit path out of the binder.
type CleanupGroup struct {
	mu      sync.Mutex
	actions []func() error
	closed  bool
}

// NewCleanupGroup creates an empty group.
func NewCleanupGroup() *CleanupGroup {
	return &CleanupGroup{}
}

// Add registers a teardown action. Safe for concurrent use: providers within
// one batch may acquire resources concurrently.
func (g *CleanupGroup) Add(fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions = append(g.actions, fn)
}

// AddCloser registers an io.Closer for teardown.
func (g *CleanupGroup) AddCloser(c io.Closer) {
	g.Add(c.Close)
}

// Len returns the number of registered teardown actions.
func (g *CleanupGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.actions)
}

// Close runs all teardown actions in reverse order. Errors from individual
// actions are collected and joined; a failing action never prevents the
// remaining actions from running. Calling Close again is a no-op.
func (g *CleanupGroup) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	actions := g.actions
	g.actions = nil
	g.mu.Unlock()

	var errs []error
	for i := len(actions) - 1; i >= 0; i-- {
		if err := actions[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
