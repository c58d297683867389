// Package demand provides a reference-counted guard that keeps a resource
// active only while at least one consumer is interested in it.
package demand

import "sync"

// Guard activates a resource on the first Acquire and deactivates it when the
// last holder releases. Activate and Deactivate run under the guard's lock, so
// they never overlap and must not call back into the guard.
type Guard struct {
	mu         sync.Mutex
	refs       int
	activate   func()
	deactivate func()
}

// NewGuard returns a guard with no holders. Either callback may be nil.
func NewGuard(activate, deactivate func()) *Guard {
	return &Guard{activate: activate, deactivate: deactivate}
}

// Acquire registers interest and returns its release function.
// Calling the release function more than once has no further effect.
func (g *Guard) Acquire() (release func()) {
	g.mu.Lock()
	g.refs++
	if g.refs == 1 && g.activate != nil {
		g.activate()
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(g.release)
	}
}

func (g *Guard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refs--
	if g.refs == 0 && g.deactivate != nil {
		g.deactivate()
	}
}

// Active reports whether at least one holder exists.
func (g *Guard) Active() bool {
	return g.Refs() > 0
}

// Refs returns the current number of holders.
func (g *Guard) Refs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refs
}
