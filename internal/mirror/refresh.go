package mirror

import (
	"sync"
	"time"
)

// DefaultRefreshTTL is how long a refresh keeps a scope fresh.
const DefaultRefreshTTL = 10 * time.Minute

// Scope names a class of cached data that is refreshed as a whole.
type Scope string

// The fixed scopes. Directory listings use DirScope; any other string may be
// used as a named pull-to-refresh scope.
const (
	ScopeRepos   Scope = "repos"
	ScopeStarred Scope = "starred"
)

// DirScope is the scope of the listing of (repoID, path). Equivalent
// spellings of path share one scope.
func DirScope(repoID, path string) Scope {
	return Scope("dir:" + repoID + ":" + cleanPath(path))
}

// RefreshGate tracks when each scope was last refreshed. It is advisory:
// callers use it to skip a server round trip while a scope is fresh.
type RefreshGate struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  Clock
	last map[Scope]time.Time
}

// NewRefreshGate returns a gate with the given TTL and clock.
func NewRefreshGate(ttl time.Duration, now Clock) *RefreshGate {
	return &RefreshGate{
		ttl:  ttl,
		now:  now,
		last: make(map[Scope]time.Time),
	}
}

// IsStale is true if scope was never refreshed or its TTL has run out.
func (g *RefreshGate) IsStale(scope Scope) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.last[scope]
	return !ok || !g.now().Before(t.Add(g.ttl))
}

// MarkRefreshed records that scope was refreshed now.
func (g *RefreshGate) MarkRefreshed(scope Scope) {
	g.SetLastRefresh(scope, g.now())
}

// SetLastRefresh records t as the last refresh of scope.
func (g *RefreshGate) SetLastRefresh(scope Scope, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last[scope] = t
}

// LastRefresh returns the last refresh of scope.
func (g *RefreshGate) LastRefresh(scope Scope) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.last[scope]
	return t, ok
}

// Invalidate makes scope stale.
func (g *RefreshGate) Invalidate(scope Scope) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.last, scope)
}
