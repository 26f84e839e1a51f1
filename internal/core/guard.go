package core

import "sync"

// RunGuard is the "automation in progress" flag. Each acquisition gets a
// token; only the matching token releases it, so a watchdog reset is not
// undone by a late release from the run it gave up on.
type RunGuard struct {
	mu      sync.Mutex
	running bool
	gen     uint64
}

// TryAcquire marks a run in progress. ok is false when one already is.
func (g *RunGuard) TryAcquire() (token uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return 0, false
	}
	g.gen++
	g.running = true
	return g.gen, true
}

// Release clears the flag if token still owns it and reports whether it did.
func (g *RunGuard) Release(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running || g.gen != token {
		return false
	}
	g.running = false
	return true
}

// Running reports whether a run holds the guard.
func (g *RunGuard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
